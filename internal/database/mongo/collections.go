package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"docsample/internal/docdb"
	"docsample/internal/lib/sl"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type collectionRecord struct {
	ID         string `bson:"_id"`
	Definition string `bson:"definition"`
}

func (m *MongoDB) databaseExists(ctx context.Context, id string) (bool, error) {
	names, err := m.client.ListDatabaseNames(ctx, bson.M{"name": id})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// CreateDatabase creates the database together with its metadata collection,
// MongoDB only keeps databases that hold a collection.
func (m *MongoDB) CreateDatabase(ctx context.Context, id string) (*docdb.Response, error) {
	const op = "CreateDatabase"
	exists, err := m.databaseExists(ctx, id)
	if err != nil {
		return nil, classify(op, err)
	}
	if exists {
		return nil, docdb.NewError(op, http.StatusConflict, "database "+id+" already exists")
	}

	db := m.client.Database(id)
	if err = db.CreateCollection(ctx, metaCollection); err != nil {
		return nil, classify(op, err)
	}
	m.log.Debug("database created", slog.String("database", id))
	return m.response(ctx, db, http.StatusCreated, ""), nil
}

func (m *MongoDB) CreateCollection(ctx context.Context, database string, def docdb.CollectionDefinition) (*docdb.Response, error) {
	const op = "CreateCollection"
	if def.ID == "" {
		return nil, docdb.NewError(op, http.StatusBadRequest, "collection id is required")
	}
	exists, err := m.databaseExists(ctx, database)
	if err != nil {
		return nil, classify(op, err)
	}
	if !exists {
		return nil, docdb.NewError(op, http.StatusNotFound, "database "+database+" not found")
	}

	db := m.client.Database(database)
	if m.shard {
		err = db.Client().Database("admin").RunCommand(ctx, bson.D{
			{Key: "shardCollection", Value: database + "." + def.ID},
			{Key: "key", Value: bson.D{{Key: fieldPK, Value: "hashed"}}},
		}).Err()
	} else {
		err = db.CreateCollection(ctx, def.ID)
	}
	switch {
	case existing(err):
		// left over from an attempt that failed before the definition was
		// recorded, the metadata insert below decides the conflict
		m.log.Debug("collection exists", slog.String("database", database), slog.String("collection", def.ID))
	case err != nil:
		return nil, classify(op, err)
	}

	if _, err = db.Collection(def.ID).Indexes().CreateMany(ctx, indexModels(def)); err != nil {
		return nil, classify(op, err)
	}

	data, err := json.Marshal(def)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}
	if _, err = db.Collection(metaCollection).InsertOne(ctx, collectionRecord{ID: def.ID, Definition: string(data)}); err != nil {
		return nil, classify(op, err)
	}

	m.mu.Lock()
	m.defs[docdb.CollectionLink{Database: database, Collection: def.ID}.String()] = def
	m.mu.Unlock()

	m.log.Debug("collection created",
		slog.String("database", database),
		slog.String("collection", def.ID),
		slog.Bool("sharded", m.shard),
	)
	return m.response(ctx, db, http.StatusCreated, ""), nil
}

// definition loads a collection definition, caching it for the client lifetime.
func (m *MongoDB) definition(ctx context.Context, op string, link docdb.CollectionLink) (docdb.CollectionDefinition, error) {
	key := link.String()
	m.mu.RLock()
	def, ok := m.defs[key]
	m.mu.RUnlock()
	if ok {
		return def, nil
	}

	var rec collectionRecord
	err := m.client.Database(link.Database).Collection(metaCollection).
		FindOne(ctx, bson.M{fieldMongoID: link.Collection}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return def, docdb.NewError(op, http.StatusNotFound, "collection "+link.String()+" not found")
	}
	if err != nil {
		return def, classify(op, err)
	}
	if err = json.Unmarshal([]byte(rec.Definition), &def); err != nil {
		m.log.Error("broken collection definition", slog.String("link", key), sl.Err(err))
		return def, docdb.Wrap(op, http.StatusInternalServerError, err)
	}

	m.mu.Lock()
	m.defs[key] = def
	m.mu.Unlock()
	return def, nil
}

// indexModels translates an indexing policy. Every collection gets a unique
// index on partition key and id.
func indexModels(def docdb.CollectionDefinition) []mongo.IndexModel {
	models := []mongo.IndexModel{{
		Keys:    bson.D{{Key: fieldPK, Value: 1}, {Key: docdb.PropertyID, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("pk_id"),
	}}
	if def.IndexingPolicy == nil {
		return models
	}

	for _, included := range def.IndexingPolicy.IncludedPaths {
		path := included.Path
		wildcard := strings.HasSuffix(path, "/*")
		segs := docdb.PathSegments(strings.TrimSuffix(path, "*"))

		field := strings.Join(segs, ".")
		switch {
		case wildcard && field == "":
			field = "$**"
		case wildcard:
			field += ".$**"
		}
		if field == "" {
			continue
		}

		var value any = 1
		for _, idx := range included.Indexes {
			if idx.Kind == docdb.IndexKindHash && !wildcard {
				value = "hashed"
			}
		}
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: field, Value: value}}})
	}
	return models
}
