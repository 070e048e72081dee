package core

import (
	"context"

	"docsample/internal/docdb"

	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateDatabase(ctx context.Context, id string) (*docdb.Response, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*docdb.Response)
	return resp, args.Error(1)
}

func (m *mockClient) CreateCollection(ctx context.Context, database string, def docdb.CollectionDefinition) (*docdb.Response, error) {
	args := m.Called(ctx, database, def)
	resp, _ := args.Get(0).(*docdb.Response)
	return resp, args.Error(1)
}

func (m *mockClient) CreateDocument(ctx context.Context, coll docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	args := m.Called(ctx, coll, doc, opts)
	resp, _ := args.Get(0).(*docdb.ItemResponse)
	return resp, args.Error(1)
}

func (m *mockClient) UpsertDocument(ctx context.Context, coll docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	args := m.Called(ctx, coll, doc, opts)
	resp, _ := args.Get(0).(*docdb.ItemResponse)
	return resp, args.Error(1)
}

func (m *mockClient) ReadDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	args := m.Called(ctx, link, opts)
	resp, _ := args.Get(0).(*docdb.ItemResponse)
	return resp, args.Error(1)
}

func (m *mockClient) ReadDocuments(ctx context.Context, coll docdb.CollectionLink, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	args := m.Called(ctx, coll, opts)
	resp, _ := args.Get(0).(*docdb.FeedResponse)
	return resp, args.Error(1)
}

func (m *mockClient) QueryDocuments(ctx context.Context, coll docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	args := m.Called(ctx, coll, query, opts)
	resp, _ := args.Get(0).(*docdb.FeedResponse)
	return resp, args.Error(1)
}

func (m *mockClient) ReplaceDocument(ctx context.Context, link docdb.DocumentLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	args := m.Called(ctx, link, doc, opts)
	resp, _ := args.Get(0).(*docdb.ItemResponse)
	return resp, args.Error(1)
}

func (m *mockClient) DeleteDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.Response, error) {
	args := m.Called(ctx, link, opts)
	resp, _ := args.Get(0).(*docdb.Response)
	return resp, args.Error(1)
}

func (m *mockClient) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
