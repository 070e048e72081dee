// Package repository stores documents in MongoDB or in the MongoDB API of a
// managed document service. One MongoDB database maps to one service
// database and one MongoDB collection to one service collection.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"docsample/internal/config"
	"docsample/internal/docdb"
	"docsample/internal/lib/sl"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// metaCollection keeps collection definitions of a database.
	metaCollection = "__collections"
	fieldPK        = "_pk"
	fieldMongoID   = "_id"
)

// Server error codes, see https://www.mongodb.com/docs/manual/reference/error-codes/
const (
	codeUnauthorized       = 13
	codeAuthFailed         = 18
	codeAlreadyInitialized = 23
	codeNamespaceNotFound  = 26
	codeNamespaceExists    = 48
	codeMaxTimeExpired     = 50
	codeTooManyRequests    = 16500
)

var _ docdb.Client = (*MongoDB)(nil)

type MongoDB struct {
	client        *mongo.Client
	shard         bool
	requestCharge bool
	defs          map[string]docdb.CollectionDefinition
	mu            sync.RWMutex
	now           func() time.Time
	log           *slog.Logger
}

func NewMongoClient(ctx context.Context, conf *config.Config, logger *slog.Logger) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(conf.Mongo.Uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if conf.Mongo.RequestCharge {
		// request statistics are kept per connection
		clientOptions.SetMaxPoolSize(1)
	}

	connection, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}
	if err = connection.Ping(ctx, readpref.Primary()); err != nil {
		_ = connection.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping error: %w", err)
	}

	return &MongoDB{
		client:        connection,
		shard:         conf.Mongo.ShardCollection,
		requestCharge: conf.Mongo.RequestCharge,
		defs:          make(map[string]docdb.CollectionDefinition),
		now:           time.Now,
		log:           logger.With(sl.Module("mongodb")),
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// charge reads the request units of the last operation on the connection.
// Plain MongoDB does not know the command and costs nothing.
func (m *MongoDB) charge(ctx context.Context, db *mongo.Database) float64 {
	if !m.requestCharge {
		return 0
	}
	var stats struct {
		RequestCharge float64 `bson:"RequestCharge"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "getLastRequestStatistics", Value: 1}}).Decode(&stats); err != nil {
		m.log.Debug("request statistics unavailable", sl.Err(err))
		return 0
	}
	return stats.RequestCharge
}

func (m *MongoDB) response(ctx context.Context, db *mongo.Database, status int, etag string) *docdb.Response {
	return &docdb.Response{
		StatusCode:    status,
		RequestCharge: m.charge(ctx, db),
		ETag:          etag,
	}
}

// existing reports whether a create failed only because the namespace is
// already there.
func existing(err error) bool {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return cmdErr.Code == codeNamespaceExists || cmdErr.Code == codeAlreadyInitialized
}

// classify maps driver errors onto service status codes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var docErr *docdb.Error
	if errors.As(err, &docErr) {
		return err
	}

	status := http.StatusInternalServerError
	var cmdErr mongo.CommandError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		status = http.StatusNotFound
	case mongo.IsDuplicateKeyError(err):
		status = http.StatusConflict
	case errors.As(err, &cmdErr):
		switch cmdErr.Code {
		case codeNamespaceExists, codeAlreadyInitialized:
			status = http.StatusConflict
		case codeNamespaceNotFound:
			status = http.StatusNotFound
		case codeUnauthorized, codeAuthFailed:
			status = http.StatusUnauthorized
		case codeTooManyRequests:
			status = http.StatusTooManyRequests
		case codeMaxTimeExpired:
			status = http.StatusRequestTimeout
		}
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	case mongo.IsNetworkError(err):
		status = http.StatusServiceUnavailable
	}
	return docdb.Wrap(op, status, err)
}
