// Package rest talks to a document service over its REST dialect, signing
// every request with the account master key.
package rest

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"docsample/internal/config"
	"docsample/internal/docdb"
	"docsample/internal/lib/api/request"
	"docsample/internal/lib/api/response"
	"docsample/internal/lib/sl"

	"golang.org/x/time/rate"
)

var _ docdb.Client = (*Client)(nil)

type Client struct {
	host      *url.URL
	masterKey string
	http      *http.Client
	limiter   *rate.Limiter
	now       func() time.Time
	log       *slog.Logger
}

type call struct {
	op      string
	method  string
	path    string
	headers http.Header
	body    any
	out     any
}

func New(conf *config.Config, log *slog.Logger) (*Client, error) {
	host, err := url.Parse(conf.Rest.Host)
	if err != nil {
		return nil, fmt.Errorf("parse host: %w", err)
	}
	if host.Scheme != "http" && host.Scheme != "https" {
		return nil, fmt.Errorf("host %q must be an http or https url", conf.Rest.Host)
	}
	if _, err = base64.StdEncoding.DecodeString(conf.Rest.MasterKey); err != nil || conf.Rest.MasterKey == "" {
		return nil, fmt.Errorf("master key must be a non-empty base64 string")
	}

	limit := rate.Inf
	if conf.Rest.RequestsPerSecond > 0 {
		limit = rate.Limit(conf.Rest.RequestsPerSecond)
	}
	burst := conf.Rest.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		host:      host,
		masterKey: conf.Rest.MasterKey,
		http:      &http.Client{Timeout: conf.Timeout},
		limiter:   rate.NewLimiter(limit, burst),
		now:       time.Now,
		log:       log.With(sl.Module("rest"), slog.String("host", host.Host)),
	}
	c.log.Debug("rest client created",
		sl.Secret("master_key", conf.Rest.MasterKey),
		slog.Float64("requests_per_second", float64(limit)),
	)
	return c, nil
}

// SetHTTPClient replaces the transport, e.g. with a test server client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.http = client
}

func (c *Client) Close(_ context.Context) error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) CreateDatabase(ctx context.Context, id string) (*docdb.Response, error) {
	return c.do(ctx, call{
		op:     "CreateDatabase",
		method: http.MethodPost,
		path:   "dbs",
		body:   request.Database{ID: id},
	})
}

func (c *Client) CreateCollection(ctx context.Context, database string, def docdb.CollectionDefinition) (*docdb.Response, error) {
	return c.do(ctx, call{
		op:     "CreateCollection",
		method: http.MethodPost,
		path:   "dbs/" + url.PathEscape(database) + "/colls",
		body:   def,
	})
}

func (c *Client) CreateDocument(ctx context.Context, coll docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	return c.item(ctx, call{
		op:      "CreateDocument",
		method:  http.MethodPost,
		path:    coll.String() + "/docs",
		headers: itemHeaders(opts),
		body:    doc,
	})
}

func (c *Client) UpsertDocument(ctx context.Context, coll docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	h := itemHeaders(opts)
	h.Set(docdb.HeaderIsUpsert, "true")
	return c.item(ctx, call{
		op:      "UpsertDocument",
		method:  http.MethodPost,
		path:    coll.String() + "/docs",
		headers: h,
		body:    doc,
	})
}

func (c *Client) ReadDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	return c.item(ctx, call{
		op:      "ReadDocument",
		method:  http.MethodGet,
		path:    link.String(),
		headers: itemHeaders(opts),
	})
}

func (c *Client) ReplaceDocument(ctx context.Context, link docdb.DocumentLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	return c.item(ctx, call{
		op:      "ReplaceDocument",
		method:  http.MethodPut,
		path:    link.String(),
		headers: itemHeaders(opts),
		body:    doc,
	})
}

func (c *Client) DeleteDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.Response, error) {
	return c.do(ctx, call{
		op:      "DeleteDocument",
		method:  http.MethodDelete,
		path:    link.String(),
		headers: itemHeaders(opts),
	})
}

func (c *Client) ReadDocuments(ctx context.Context, coll docdb.CollectionLink, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return c.feed(ctx, call{
		op:      "ReadDocuments",
		method:  http.MethodGet,
		path:    coll.String() + "/docs",
		headers: feedHeaders(opts),
	})
}

func (c *Client) QueryDocuments(ctx context.Context, coll docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	h := feedHeaders(opts)
	h.Set(docdb.HeaderIsQuery, "true")
	h.Set("Content-Type", "application/query+json")
	return c.feed(ctx, call{
		op:      "QueryDocuments",
		method:  http.MethodPost,
		path:    coll.String() + "/docs",
		headers: h,
		body:    request.Query{Text: query.Text(), Query: query},
	})
}

func itemHeaders(opts *docdb.RequestOptions) http.Header {
	h := http.Header{}
	if pk := docdb.RequestPartitionKey(opts); pk != "" {
		h.Set(docdb.HeaderPartitionKey, docdb.FormatPartitionKey(pk))
	}
	if v := docdb.IfMatch(opts); v != "" {
		h.Set("If-Match", v)
	}
	if v := docdb.IfNoneMatch(opts); v != "" {
		h.Set("If-None-Match", v)
	}
	return h
}

func feedHeaders(opts *docdb.FeedOptions) http.Header {
	o := docdb.Feed(opts)
	h := http.Header{}
	if o.PartitionKey != "" {
		h.Set(docdb.HeaderPartitionKey, docdb.FormatPartitionKey(o.PartitionKey))
	}
	if o.MaxItemCount > 0 {
		h.Set(docdb.HeaderMaxItemCount, strconv.Itoa(o.MaxItemCount))
	}
	if o.Continuation != "" {
		h.Set(docdb.HeaderContinuation, o.Continuation)
	}
	return h
}

func (c *Client) item(ctx context.Context, cl call) (*docdb.ItemResponse, error) {
	var doc docdb.Document
	cl.out = &doc
	resp, err := c.do(ctx, cl)
	if err != nil {
		return nil, err
	}
	return &docdb.ItemResponse{Response: *resp, Document: doc}, nil
}

func (c *Client) feed(ctx context.Context, cl call) (*docdb.FeedResponse, error) {
	var page response.Feed
	cl.out = &page
	resp, header, err := c.exec(ctx, cl)
	if err != nil {
		return nil, err
	}
	return &docdb.FeedResponse{
		Response:     *resp,
		Documents:    page.Documents,
		Continuation: header.Get(docdb.HeaderContinuation),
	}, nil
}
