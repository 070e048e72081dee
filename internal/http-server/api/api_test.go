package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docsample/internal/database/memory"
	"docsample/internal/docdb"
	"docsample/internal/http-server/middleware/authenticate"
	"docsample/internal/lib/api/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="

type emulator struct {
	t      *testing.T
	router http.Handler
}

func newEmulator(t *testing.T) *emulator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &emulator{t: t, router: NewRouter(log, authenticate.MasterKey(testKey), memory.New())}
}

func (e *emulator) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	require.NoError(e.t, docdb.SignRequest(req, testKey, time.Now()))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func (e *emulator) seed() {
	e.t.Helper()
	require.Equal(e.t, http.StatusCreated, e.do(http.MethodPost, "/dbs", map[string]string{"id": "db"}, nil).Code)
	require.Equal(e.t, http.StatusCreated, e.do(http.MethodPost, "/dbs/db/colls", docdb.CollectionDefinition{
		ID:           "orders",
		PartitionKey: &docdb.PartitionKey{Paths: []string{"/account_number"}},
	}, nil).Code)
}

func TestDatabaseAndCollection(t *testing.T) {
	e := newEmulator(t)
	e.seed()

	rec := e.do(http.MethodPost, "/dbs", map[string]string{"id": "db"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Conflict", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get(docdb.HeaderActivityID))
	assert.NotEmpty(t, rec.Header().Get(docdb.HeaderRequestCharge))

	rec = e.do(http.MethodPost, "/dbs/db/colls", docdb.CollectionDefinition{ID: "orders"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodPost, "/dbs/missing/colls", docdb.CollectionDefinition{ID: "orders"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPost, "/dbs", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	e := newEmulator(t)
	e.seed()
	order := map[string]any{"id": "SalesOrder1", "account_number": "Account1", "total_due": 985.018}
	pk := map[string]string{docdb.HeaderPartitionKey: `["Account1"]`}

	rec := e.do(http.MethodPost, "/dbs/db/colls/orders/docs", order, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = e.do(http.MethodPost, "/dbs/db/colls/orders/docs", order, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodPost, "/dbs/db/colls/orders/docs", order, map[string]string{docdb.HeaderIsUpsert: "true"})
	assert.Equal(t, http.StatusOK, rec.Code)
	etag = rec.Header().Get("ETag")

	rec = e.do(http.MethodGet, "/dbs/db/colls/orders/docs/SalesOrder1", nil, pk)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc docdb.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "SalesOrder1", doc.ID())
	assert.Equal(t, etag, doc.ETag())

	rec = e.do(http.MethodGet, "/dbs/db/colls/orders/docs/SalesOrder1", nil, map[string]string{
		docdb.HeaderPartitionKey: `["Account1"]`,
		"If-None-Match":          etag,
	})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = e.do(http.MethodPut, "/dbs/db/colls/orders/docs/SalesOrder1", order, map[string]string{
		docdb.HeaderPartitionKey: `["Account1"]`,
		"If-Match":               `"stale"`,
	})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "PreconditionFailed", errorCode(t, rec))

	rec = e.do(http.MethodPut, "/dbs/db/colls/orders/docs/SalesOrder1", order, map[string]string{
		docdb.HeaderPartitionKey: `["Account1"]`,
		"If-Match":               etag,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodDelete, "/dbs/db/colls/orders/docs/SalesOrder1", nil, pk)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(http.MethodGet, "/dbs/db/colls/orders/docs/SalesOrder1", nil, pk)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedAndQuery(t *testing.T) {
	e := newEmulator(t)
	e.seed()
	for _, id := range []string{"a", "b", "c"} {
		rec := e.do(http.MethodPost, "/dbs/db/colls/orders/docs", map[string]any{"id": id, "account_number": "Account1"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := e.do(http.MethodGet, "/dbs/db/colls/orders/docs", nil, map[string]string{docdb.HeaderMaxItemCount: "2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var feed response.Feed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Len(t, feed.Documents, 2)
	assert.Equal(t, "2", rec.Header().Get(docdb.HeaderItemCount))
	continuation := rec.Header().Get(docdb.HeaderContinuation)
	require.NotEmpty(t, continuation)

	rec = e.do(http.MethodGet, "/dbs/db/colls/orders/docs", nil, map[string]string{
		docdb.HeaderMaxItemCount: "2",
		docdb.HeaderContinuation: continuation,
	})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Len(t, feed.Documents, 1)
	assert.Empty(t, rec.Header().Get(docdb.HeaderContinuation))

	rec = e.do(http.MethodPost, "/dbs/db/colls/orders/docs", map[string]any{
		"query":      "SELECT * FROM root r WHERE r.id='b'",
		"conditions": []docdb.Condition{{Path: "/id", Value: "b"}},
	}, map[string]string{docdb.HeaderIsQuery: "true"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed.Documents, 1)
	assert.Equal(t, "b", feed.Documents[0].ID())

	rec = e.do(http.MethodGet, "/dbs/db/colls/orders/docs", nil, map[string]string{docdb.HeaderMaxItemCount: "zero"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouting(t *testing.T) {
	e := newEmulator(t)

	rec := e.do(http.MethodGet, "/nothing/here", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", errorCode(t, rec))

	rec = e.do(http.MethodPatch, "/dbs", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/dbs/db/colls/orders/docs", nil)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorCode(t, rec))
}
