package memory

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"docsample/internal/docdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var link = docdb.CollectionLink{Database: "db", Collection: "orders"}

func newStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New(WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	_, err := s.CreateDatabase(ctx, link.Database)
	require.NoError(t, err)
	_, err = s.CreateCollection(ctx, link.Database, docdb.CollectionDefinition{
		ID:           link.Collection,
		PartitionKey: &docdb.PartitionKey{Paths: []string{"/account_number"}, Kind: docdb.PartitionKindHash},
	})
	require.NoError(t, err)
	return s
}

func order(id, account string) docdb.Document {
	return docdb.Document{"id": id, "account_number": account, "total_due": 985.018}
}

func pk(v string) *docdb.RequestOptions {
	return &docdb.RequestOptions{PartitionKey: v}
}

func TestCreateDatabaseConflict(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateDatabase(context.Background(), link.Database)
	assert.True(t, docdb.IsConflict(err))

	_, err = s.CreateCollection(context.Background(), link.Database, docdb.CollectionDefinition{ID: link.Collection})
	assert.True(t, docdb.IsConflict(err))

	_, err = s.CreateCollection(context.Background(), "missing", docdb.CollectionDefinition{ID: "x"})
	assert.True(t, docdb.IsNotFound(err))

	assert.Equal(t, []string{"db"}, s.Databases())
	assert.Equal(t, []string{"orders"}, s.Collections("db"))
}

func TestCreateAndRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	created, err := s.CreateDocument(ctx, link, order("SalesOrder1", "Account1"), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, created.StatusCode)
	assert.NotEmpty(t, created.ETag)
	assert.Equal(t, created.ETag, created.Document.ETag())
	assert.Equal(t, float64(1700000000), created.Document[docdb.PropertyTimestamp])
	assert.Greater(t, created.RequestCharge, 0.0)

	_, err = s.CreateDocument(ctx, link, order("SalesOrder1", "Account1"), nil)
	assert.True(t, docdb.IsConflict(err))

	// same id in another partition is a distinct document
	_, err = s.CreateDocument(ctx, link, order("SalesOrder1", "Account2"), nil)
	require.NoError(t, err)

	read, err := s.ReadDocument(ctx, link.Doc("SalesOrder1"), pk("Account1"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, read.StatusCode)
	assert.Equal(t, "Account1", read.Document["account_number"])
	assert.Equal(t, 985.018, read.Document["total_due"])

	_, err = s.ReadDocument(ctx, link.Doc("SalesOrder1"), pk("Account9"))
	assert.True(t, docdb.IsNotFound(err))

	_, err = s.ReadDocument(ctx, link.Doc("SalesOrder1"), nil)
	assert.Equal(t, http.StatusBadRequest, docdb.StatusOf(err))
}

func TestReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.CreateDocument(ctx, link, order("o", "a"), nil)
	require.NoError(t, err)

	read, err := s.ReadDocument(ctx, link.Doc("o"), pk("a"))
	require.NoError(t, err)
	read.Document["total_due"] = 0.0

	again, err := s.ReadDocument(ctx, link.Doc("o"), pk("a"))
	require.NoError(t, err)
	assert.Equal(t, 985.018, again.Document["total_due"])
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateDocument(ctx, link, docdb.Document{"id": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, docdb.StatusOf(err))

	_, err = s.CreateDocument(ctx, link, order("x", "a"), pk("b"))
	assert.Equal(t, http.StatusBadRequest, docdb.StatusOf(err))

	_, err = s.CreateDocument(ctx, docdb.CollectionLink{Database: "db", Collection: "nope"}, order("x", "a"), nil)
	assert.True(t, docdb.IsNotFound(err))

	resp, err := s.CreateDocument(ctx, link, docdb.Document{"account_number": "a"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Document.ID())
}

func TestReplaceConditions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	created, err := s.CreateDocument(ctx, link, order("o", "a"), nil)
	require.NoError(t, err)

	doc := created.Document.Clone()
	doc["total_due"] = 1.5
	replaced, err := s.ReplaceDocument(ctx, link.Doc("o"), doc, &docdb.RequestOptions{IfMatch: created.ETag})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, replaced.StatusCode)
	assert.NotEqual(t, created.ETag, replaced.ETag)
	assert.Equal(t, 1.5, replaced.Document["total_due"])

	_, err = s.ReplaceDocument(ctx, link.Doc("o"), doc, &docdb.RequestOptions{IfMatch: created.ETag})
	assert.True(t, docdb.IsPreconditionFailed(err))

	_, err = s.ReplaceDocument(ctx, link.Doc("missing"), order("missing", "a"), nil)
	assert.True(t, docdb.IsNotFound(err))

	_, err = s.ReplaceDocument(ctx, link.Doc("o"), order("other", "a"), nil)
	assert.Equal(t, http.StatusBadRequest, docdb.StatusOf(err))
}

func TestReadIfNoneMatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	created, err := s.CreateDocument(ctx, link, order("o", "a"), nil)
	require.NoError(t, err)

	resp, err := s.ReadDocument(ctx, link.Doc("o"), &docdb.RequestOptions{PartitionKey: "a", IfNoneMatch: created.ETag})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Nil(t, resp.Document)
	assert.Equal(t, created.ETag, resp.ETag)

	resp, err = s.ReadDocument(ctx, link.Doc("o"), &docdb.RequestOptions{PartitionKey: "a", IfNoneMatch: `"stale"`})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, resp.Document)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	resp, err := s.UpsertDocument(ctx, link, order("o", "a"), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = s.UpsertDocument(ctx, link, order("o", "a"), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = s.UpsertDocument(ctx, link, order("o", "a"), &docdb.RequestOptions{IfMatch: `"stale"`})
	assert.True(t, docdb.IsPreconditionFailed(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	created, err := s.CreateDocument(ctx, link, order("o", "a"), nil)
	require.NoError(t, err)

	_, err = s.DeleteDocument(ctx, link.Doc("o"), &docdb.RequestOptions{PartitionKey: "a", IfMatch: `"stale"`})
	assert.True(t, docdb.IsPreconditionFailed(err))

	resp, err := s.DeleteDocument(ctx, link.Doc("o"), &docdb.RequestOptions{PartitionKey: "a", IfMatch: created.ETag})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = s.DeleteDocument(ctx, link.Doc("o"), pk("a"))
	assert.True(t, docdb.IsNotFound(err))
}

func TestFeedPaging(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for i := 0; i < 25; i++ {
		account := "Account1"
		if i%5 == 0 {
			account = "Account2"
		}
		_, err := s.CreateDocument(ctx, link, order(fmt.Sprintf("o%02d", i), account), nil)
		require.NoError(t, err)
	}

	it := docdb.ReadFeed(s, link, &docdb.FeedOptions{MaxItemCount: 10})
	docs, err := it.All(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 25)
	assert.Equal(t, 3, it.Pages())

	seen := make(map[string]bool)
	for _, d := range docs {
		key := d["account_number"].(string) + "/" + d.ID()
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
	}

	page, err := s.ReadDocuments(ctx, link, &docdb.FeedOptions{PartitionKey: "Account2"})
	require.NoError(t, err)
	assert.Len(t, page.Documents, 5)
	assert.Empty(t, page.Continuation)

	_, err = s.ReadDocuments(ctx, link, &docdb.FeedOptions{Continuation: "!!"})
	assert.Equal(t, http.StatusBadRequest, docdb.StatusOf(err))
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, d := range []docdb.Document{order("o1", "Account1"), order("o2", "Account2"), order("o3", "Account1")} {
		_, err := s.CreateDocument(ctx, link, d, nil)
		require.NoError(t, err)
	}

	it := docdb.QueryFeed(s, link, docdb.Equal("/account_number", "Account1"), &docdb.FeedOptions{MaxItemCount: 1})
	docs, err := it.All(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "o1", docs[0].ID())
	assert.Equal(t, "o3", docs[1].ID())

	page, err := s.QueryDocuments(ctx, link, docdb.Equal("/account_number", "Account9"), nil)
	require.NoError(t, err)
	assert.Empty(t, page.Documents)
	assert.Empty(t, page.Continuation)
}
