package document

import (
	"context"

	"docsample/internal/docdb"
)

type Core interface {
	CreateDocument(ctx context.Context, coll docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error)
	UpsertDocument(ctx context.Context, coll docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error)
	ReadDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.ItemResponse, error)
	ReadDocuments(ctx context.Context, coll docdb.CollectionLink, opts *docdb.FeedOptions) (*docdb.FeedResponse, error)
	QueryDocuments(ctx context.Context, coll docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error)
	ReplaceDocument(ctx context.Context, link docdb.DocumentLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error)
	DeleteDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.Response, error)
}
