package repository

import (
	"context"
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

const defaultMaxItemCount = 100

func (m *MongoDB) collection(ctx context.Context, op string, link docdb.CollectionLink) (*mongo.Collection, docdb.CollectionDefinition, error) {
	def, err := m.definition(ctx, op, link)
	if err != nil {
		return nil, def, err
	}
	return m.client.Database(link.Database).Collection(link.Collection), def, nil
}

func (m *MongoDB) CreateDocument(ctx context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "CreateDocument"
	coll, def, err := m.collection(ctx, op, link)
	if err != nil {
		return nil, err
	}
	stored, pk, err := docdb.Stamp(op, doc, def.PartitionKeyPath(), "", opts, docdb.NewETag(), m.now())
	if err != nil {
		return nil, err
	}
	if _, err = coll.InsertOne(ctx, toStored(stored, pk)); err != nil {
		return nil, classify(op, err)
	}
	return m.item(ctx, coll, http.StatusCreated, stored), nil
}

func (m *MongoDB) UpsertDocument(ctx context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "UpsertDocument"
	coll, def, err := m.collection(ctx, op, link)
	if err != nil {
		return nil, err
	}
	stored, pk, err := docdb.Stamp(op, doc, def.PartitionKeyPath(), "", opts, docdb.NewETag(), m.now())
	if err != nil {
		return nil, err
	}

	ifMatch := docdb.IfMatch(opts)
	if ifMatch == "" {
		res, err := coll.ReplaceOne(ctx, keyFilter(pk, stored.ID()), toStored(stored, pk), options.Replace().SetUpsert(true))
		if err != nil {
			return nil, classify(op, err)
		}
		status := http.StatusOK
		if res.UpsertedCount > 0 {
			status = http.StatusCreated
		}
		return m.item(ctx, coll, status, stored), nil
	}

	res, err := coll.ReplaceOne(ctx, etagFilter(pk, stored.ID(), ifMatch), toStored(stored, pk))
	if err != nil {
		return nil, classify(op, err)
	}
	if res.MatchedCount > 0 {
		return m.item(ctx, coll, http.StatusOK, stored), nil
	}
	// a conditional upsert of a missing document is a plain insert
	if exists, err := m.exists(ctx, coll, pk, stored.ID()); err != nil {
		return nil, classify(op, err)
	} else if exists {
		return nil, docdb.NewError(op, http.StatusPreconditionFailed, "etag mismatch")
	}
	if _, err = coll.InsertOne(ctx, toStored(stored, pk)); err != nil {
		return nil, classify(op, err)
	}
	return m.item(ctx, coll, http.StatusCreated, stored), nil
}

func (m *MongoDB) ReadDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReadDocument"
	coll, def, err := m.collection(ctx, op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	pk, err := docdb.PointPartitionKey(op, def.PartitionKeyPath(), opts)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	if err = coll.FindOne(ctx, keyFilter(pk, link.ID)).Decode(&raw); err != nil {
		return nil, classify(op, err)
	}
	doc, err := fromStored(raw)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
	}

	if inm := docdb.IfNoneMatch(opts); inm != "" && inm == doc.ETag() {
		resp := m.item(ctx, coll, http.StatusNotModified, nil)
		resp.ETag = doc.ETag()
		return resp, nil
	}
	return m.item(ctx, coll, http.StatusOK, doc), nil
}

func (m *MongoDB) ReadDocuments(ctx context.Context, link docdb.CollectionLink, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return m.feed(ctx, "ReadDocuments", link, docdb.Query{}, opts)
}

func (m *MongoDB) QueryDocuments(ctx context.Context, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return m.feed(ctx, "QueryDocuments", link, query, opts)
}

func (m *MongoDB) ReplaceDocument(ctx context.Context, link docdb.DocumentLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReplaceDocument"
	coll, def, err := m.collection(ctx, op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	stored, pk, err := docdb.Stamp(op, doc, def.PartitionKeyPath(), link.ID, opts, docdb.NewETag(), m.now())
	if err != nil {
		return nil, err
	}

	filter := keyFilter(pk, link.ID)
	if ifMatch := docdb.IfMatch(opts); ifMatch != "" {
		filter = etagFilter(pk, link.ID, ifMatch)
	}
	res, err := coll.ReplaceOne(ctx, filter, toStored(stored, pk))
	if err != nil {
		return nil, classify(op, err)
	}
	if res.MatchedCount == 0 {
		return nil, m.missing(ctx, op, coll, pk, link.ID, opts)
	}
	return m.item(ctx, coll, http.StatusOK, stored), nil
}

func (m *MongoDB) DeleteDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.Response, error) {
	const op = "DeleteDocument"
	coll, def, err := m.collection(ctx, op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	pk, err := docdb.PointPartitionKey(op, def.PartitionKeyPath(), opts)
	if err != nil {
		return nil, err
	}

	filter := keyFilter(pk, link.ID)
	if ifMatch := docdb.IfMatch(opts); ifMatch != "" {
		filter = etagFilter(pk, link.ID, ifMatch)
	}
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return nil, classify(op, err)
	}
	if res.DeletedCount == 0 {
		return nil, m.missing(ctx, op, coll, pk, link.ID, opts)
	}
	return m.response(ctx, coll.Database(), http.StatusNoContent, ""), nil
}

func (m *MongoDB) feed(ctx context.Context, op string, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	coll, _, err := m.collection(ctx, op, link)
	if err != nil {
		return nil, err
	}
	o := docdb.Feed(opts)
	filter, err := feedFilter(o, query)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}

	limit := o.MaxItemCount
	if limit <= 0 {
		limit = defaultMaxItemCount
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: fieldPK, Value: 1}, {Key: docdb.PropertyID, Value: 1}}).
		SetLimit(int64(limit) + 1)

	cursor, err := coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, classify(op, err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			m.log.Debug("close cursor", sl.Err(err))
		}
	}()

	var raws []bson.M
	if err = cursor.All(ctx, &raws); err != nil {
		return nil, classify(op, err)
	}

	resp := &docdb.FeedResponse{Response: *m.response(ctx, coll.Database(), http.StatusOK, "")}
	for i, raw := range raws {
		if i == limit {
			last := raws[i-1]
			pk, _ := last[fieldPK].(string)
			id, _ := last[docdb.PropertyID].(string)
			resp.Continuation = docdb.Cursor{PK: pk, ID: id}.Encode()
			break
		}
		doc, err := fromStored(raw)
		if err != nil {
			return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
		}
		resp.Documents = append(resp.Documents, doc)
	}

	m.log.Debug("feed page",
		slog.String("collection", link.String()),
		slog.Int("count", len(resp.Documents)),
		slog.Bool("more", resp.Continuation != ""),
	)
	return resp, nil
}

// missing tells a precondition failure from an absent document after a
// conditional write matched nothing.
func (m *MongoDB) missing(ctx context.Context, op string, coll *mongo.Collection, pk, id string, opts *docdb.RequestOptions) error {
	if docdb.IfMatch(opts) != "" {
		exists, err := m.exists(ctx, coll, pk, id)
		if err != nil {
			return classify(op, err)
		}
		if exists {
			return docdb.NewError(op, http.StatusPreconditionFailed, "etag mismatch")
		}
	}
	return docdb.NewError(op, http.StatusNotFound, "document "+id+" not found")
}

func (m *MongoDB) exists(ctx context.Context, coll *mongo.Collection, pk, id string) (bool, error) {
	err := coll.FindOne(ctx, keyFilter(pk, id), options.FindOne().SetProjection(bson.M{fieldMongoID: 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (m *MongoDB) item(ctx context.Context, coll *mongo.Collection, status int, doc docdb.Document) *docdb.ItemResponse {
	return &docdb.ItemResponse{
		Response: *m.response(ctx, coll.Database(), status, doc.ETag()),
		Document: doc,
	}
}

func keyFilter(pk, id string) bson.D {
	return bson.D{{Key: fieldPK, Value: pk}, {Key: docdb.PropertyID, Value: id}}
}

func etagFilter(pk, id, etag string) bson.D {
	return append(keyFilter(pk, id), bson.E{Key: docdb.PropertyETag, Value: etag})
}

// feedFilter scopes a feed to a partition, the query conditions and the
// position after the continuation.
func feedFilter(o docdb.FeedOptions, query docdb.Query) (bson.M, error) {
	var and bson.A
	if o.PartitionKey != "" {
		and = append(and, bson.M{fieldPK: o.PartitionKey})
	}
	for _, cond := range query.Conditions {
		field := strings.Join(docdb.PathSegments(cond.Path), ".")
		if field == "" {
			return nil, errors.New("query condition without a path")
		}
		and = append(and, bson.M{field: cond.Value})
	}
	if o.Continuation != "" {
		after, err := docdb.DecodeCursor(o.Continuation)
		if err != nil {
			return nil, err
		}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{fieldPK: bson.M{"$gt": after.PK}},
			bson.M{fieldPK: after.PK, docdb.PropertyID: bson.M{"$gt": after.ID}},
		}})
	}
	if len(and) == 0 {
		return bson.M{}, nil
	}
	return bson.M{"$and": and}, nil
}

// toStored adds the partition key field used by the key index.
func toStored(doc docdb.Document, pk string) bson.M {
	raw := make(bson.M, len(doc)+1)
	for k, v := range doc {
		raw[k] = v
	}
	raw[fieldPK] = pk
	return raw
}

func fromStored(raw bson.M) (docdb.Document, error) {
	delete(raw, fieldMongoID)
	delete(raw, fieldPK)
	return docdb.ToDocument(raw)
}
