// Package docdb defines the contract between the sample runner and a
// document database service: resource links, documents, request options,
// response metadata and the status-carrying error type.
package docdb

import (
	"context"
	"net/url"
)

const (
	PropertyID        = "id"
	PropertyETag      = "_etag"
	PropertyTimestamp = "_ts"
)

// CollectionLink addresses a collection inside a database.
type CollectionLink struct {
	Database   string
	Collection string
}

func (l CollectionLink) String() string {
	return "dbs/" + url.PathEscape(l.Database) + "/colls/" + url.PathEscape(l.Collection)
}

// Doc returns the link of the document with the given id in this collection.
func (l CollectionLink) Doc(id string) DocumentLink {
	return DocumentLink{CollectionLink: l, ID: id}
}

type DocumentLink struct {
	CollectionLink
	ID string
}

func (l DocumentLink) String() string {
	return l.CollectionLink.String() + "/docs/" + url.PathEscape(l.ID)
}

type PartitionKey struct {
	Paths []string `json:"paths"`
	Kind  string   `json:"kind,omitempty"`
}

type Index struct {
	Kind      string `json:"kind"`
	DataType  string `json:"dataType"`
	Precision int    `json:"precision,omitempty"`
}

type IncludedPath struct {
	Path    string  `json:"path"`
	Indexes []Index `json:"indexes,omitempty"`
}

type IndexingPolicy struct {
	IndexingMode  string         `json:"indexingMode,omitempty"`
	Automatic     bool           `json:"automatic"`
	IncludedPaths []IncludedPath `json:"includedPaths,omitempty"`
	ExcludedPaths []IncludedPath `json:"excludedPaths,omitempty"`
}

type CollectionDefinition struct {
	ID             string          `json:"id"`
	PartitionKey   *PartitionKey   `json:"partitionKey,omitempty"`
	IndexingPolicy *IndexingPolicy `json:"indexingPolicy,omitempty"`
}

// PartitionKeyPath returns the single partition key path, or an empty string
// for an unpartitioned collection.
func (d CollectionDefinition) PartitionKeyPath() string {
	if d.PartitionKey == nil || len(d.PartitionKey.Paths) == 0 {
		return ""
	}
	return d.PartitionKey.Paths[0]
}

const (
	IndexKindRange    = "Range"
	IndexKindHash     = "Hash"
	DataTypeNumber    = "Number"
	DataTypeString    = "String"
	PartitionKindHash = "Hash"
)

type RequestOptions struct {
	PartitionKey string
	IfMatch      string
	IfNoneMatch  string
}

type FeedOptions struct {
	PartitionKey string
	MaxItemCount int
	Continuation string
}

// Response carries the metadata every service call returns.
type Response struct {
	StatusCode    int
	RequestCharge float64
	ETag          string
	ActivityID    string
}

// ItemResponse is returned by single-document operations. Document is nil
// when StatusCode is 304 Not Modified.
type ItemResponse struct {
	Response
	Document Document
}

// FeedResponse holds one page of a read feed or a query. An empty
// Continuation means the feed is exhausted.
type FeedResponse struct {
	Response
	Documents    []Document
	Continuation string
}

type Client interface {
	CreateDatabase(ctx context.Context, id string) (*Response, error)
	CreateCollection(ctx context.Context, database string, def CollectionDefinition) (*Response, error)
	CreateDocument(ctx context.Context, coll CollectionLink, doc Document, opts *RequestOptions) (*ItemResponse, error)
	UpsertDocument(ctx context.Context, coll CollectionLink, doc Document, opts *RequestOptions) (*ItemResponse, error)
	ReadDocument(ctx context.Context, link DocumentLink, opts *RequestOptions) (*ItemResponse, error)
	ReadDocuments(ctx context.Context, coll CollectionLink, opts *FeedOptions) (*FeedResponse, error)
	QueryDocuments(ctx context.Context, coll CollectionLink, query Query, opts *FeedOptions) (*FeedResponse, error)
	ReplaceDocument(ctx context.Context, link DocumentLink, doc Document, opts *RequestOptions) (*ItemResponse, error)
	DeleteDocument(ctx context.Context, link DocumentLink, opts *RequestOptions) (*Response, error)
	Close(ctx context.Context) error
}

// RequestPartitionKey returns the partition key of possibly nil options.
func RequestPartitionKey(o *RequestOptions) string {
	if o == nil {
		return ""
	}
	return o.PartitionKey
}

// IfMatch returns the If-Match ETag of possibly nil options.
func IfMatch(o *RequestOptions) string {
	if o == nil {
		return ""
	}
	return o.IfMatch
}

// IfNoneMatch returns the If-None-Match ETag of possibly nil options.
func IfNoneMatch(o *RequestOptions) string {
	if o == nil {
		return ""
	}
	return o.IfNoneMatch
}

// Feed returns a copy of possibly nil feed options.
func Feed(o *FeedOptions) FeedOptions {
	if o == nil {
		return FeedOptions{}
	}
	return *o
}
