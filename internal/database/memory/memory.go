// Package memory is an in-process document service. It backs the emulator
// and the tests, and applies the same status code, ETag and paging rules as
// the managed service.
package memory

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"docsample/internal/docdb"

	"github.com/google/uuid"
)

const defaultMaxItemCount = 100

var _ docdb.Client = (*Store)(nil)

type docKey = docdb.Cursor

type collection struct {
	def  docdb.CollectionDefinition
	docs map[docKey]docdb.Document
}

type database struct {
	collections map[string]*collection
}

type Store struct {
	mu        sync.RWMutex
	databases map[string]*database
	now       func() time.Time
	newETag   func() string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		databases: make(map[string]*database),
		now:       time.Now,
		newETag:   docdb.NewETag,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) CreateDatabase(_ context.Context, id string) (*docdb.Response, error) {
	const op = "CreateDatabase"
	if id == "" {
		return nil, docdb.NewError(op, http.StatusBadRequest, "database id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.databases[id]; ok {
		return nil, docdb.NewError(op, http.StatusConflict, "database "+id+" already exists")
	}
	s.databases[id] = &database{collections: make(map[string]*collection)}
	return s.response(http.StatusCreated, 1, ""), nil
}

func (s *Store) CreateCollection(_ context.Context, dbID string, def docdb.CollectionDefinition) (*docdb.Response, error) {
	const op = "CreateCollection"
	if def.ID == "" {
		return nil, docdb.NewError(op, http.StatusBadRequest, "collection id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.databases[dbID]
	if !ok {
		return nil, docdb.NewError(op, http.StatusNotFound, "database "+dbID+" not found")
	}
	if _, ok = db.collections[def.ID]; ok {
		return nil, docdb.NewError(op, http.StatusConflict, "collection "+def.ID+" already exists")
	}
	cloned, err := cloneDefinition(def)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}
	db.collections[def.ID] = &collection{def: cloned, docs: make(map[docKey]docdb.Document)}
	return s.response(http.StatusCreated, 1, ""), nil
}

func (s *Store) CreateDocument(_ context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "CreateDocument"

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(op, link)
	if err != nil {
		return nil, err
	}
	stored, key, err := s.prepare(op, coll, doc, "", opts)
	if err != nil {
		return nil, err
	}
	if _, exists := coll.docs[key]; exists {
		return nil, docdb.NewError(op, http.StatusConflict, "document "+key.ID+" already exists")
	}
	coll.docs[key] = stored
	return s.itemResponse(http.StatusCreated, writeCharge(stored), stored), nil
}

func (s *Store) UpsertDocument(_ context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "UpsertDocument"

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(op, link)
	if err != nil {
		return nil, err
	}
	stored, key, err := s.prepare(op, coll, doc, "", opts)
	if err != nil {
		return nil, err
	}
	status := http.StatusCreated
	if existing, exists := coll.docs[key]; exists {
		if ifMatch := docdb.IfMatch(opts); ifMatch != "" && ifMatch != existing.ETag() {
			return nil, docdb.NewError(op, http.StatusPreconditionFailed, "etag mismatch")
		}
		status = http.StatusOK
	}
	coll.docs[key] = stored
	return s.itemResponse(status, writeCharge(stored), stored), nil
}

func (s *Store) ReadDocument(_ context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReadDocument"

	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection(op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	key, err := pointKey(op, coll, link.ID, opts)
	if err != nil {
		return nil, err
	}
	doc, ok := coll.docs[key]
	if !ok {
		return nil, docdb.NewError(op, http.StatusNotFound, "document "+link.ID+" not found")
	}
	if inm := docdb.IfNoneMatch(opts); inm != "" && inm == doc.ETag() {
		resp := s.itemResponse(http.StatusNotModified, 1, nil)
		resp.ETag = doc.ETag()
		return resp, nil
	}
	return s.itemResponse(http.StatusOK, readCharge(doc), doc), nil
}

func (s *Store) ReadDocuments(_ context.Context, link docdb.CollectionLink, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return s.feed("ReadDocuments", link, docdb.Query{}, opts)
}

func (s *Store) QueryDocuments(_ context.Context, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return s.feed("QueryDocuments", link, query, opts)
}

func (s *Store) ReplaceDocument(_ context.Context, link docdb.DocumentLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReplaceDocument"

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	stored, key, err := s.prepare(op, coll, doc, link.ID, opts)
	if err != nil {
		return nil, err
	}
	existing, ok := coll.docs[key]
	if !ok {
		return nil, docdb.NewError(op, http.StatusNotFound, "document "+link.ID+" not found")
	}
	if ifMatch := docdb.IfMatch(opts); ifMatch != "" && ifMatch != existing.ETag() {
		return nil, docdb.NewError(op, http.StatusPreconditionFailed, "etag mismatch")
	}
	coll.docs[key] = stored
	return s.itemResponse(http.StatusOK, writeCharge(stored), stored), nil
}

func (s *Store) DeleteDocument(_ context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.Response, error) {
	const op = "DeleteDocument"

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	key, err := pointKey(op, coll, link.ID, opts)
	if err != nil {
		return nil, err
	}
	existing, ok := coll.docs[key]
	if !ok {
		return nil, docdb.NewError(op, http.StatusNotFound, "document "+link.ID+" not found")
	}
	if ifMatch := docdb.IfMatch(opts); ifMatch != "" && ifMatch != existing.ETag() {
		return nil, docdb.NewError(op, http.StatusPreconditionFailed, "etag mismatch")
	}
	delete(coll.docs, key)
	return s.response(http.StatusNoContent, writeCharge(existing), ""), nil
}

// Databases lists database ids in lexical order.
func (s *Store) Databases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.databases))
	for id := range s.databases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Collections lists the collection ids of a database in lexical order.
func (s *Store) Collections(dbID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, ok := s.databases[dbID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(db.collections))
	for id := range db.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) feed(op string, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection(op, link)
	if err != nil {
		return nil, err
	}
	o := docdb.Feed(opts)

	var after *docKey
	if o.Continuation != "" {
		cursor, err := docdb.DecodeCursor(o.Continuation)
		if err != nil {
			return nil, docdb.Wrap(op, http.StatusBadRequest, err)
		}
		after = &cursor
	}

	keys := make([]docKey, 0, len(coll.docs))
	for key, doc := range coll.docs {
		if o.PartitionKey != "" && key.PK != o.PartitionKey {
			continue
		}
		if after != nil && !after.Less(key) {
			continue
		}
		if !query.Matches(doc) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	limit := o.MaxItemCount
	if limit <= 0 {
		limit = defaultMaxItemCount
	}

	resp := &docdb.FeedResponse{Response: *s.response(http.StatusOK, 0, "")}
	size := 0
	for i, key := range keys {
		if i == limit {
			resp.Continuation = keys[i-1].Encode()
			break
		}
		doc := coll.docs[key]
		size += doc.Size()
		resp.Documents = append(resp.Documents, doc.Clone())
	}
	resp.RequestCharge = feedCharge(len(resp.Documents), size)
	return resp, nil
}

func (s *Store) collection(op string, link docdb.CollectionLink) (*collection, error) {
	db, ok := s.databases[link.Database]
	if !ok {
		return nil, docdb.NewError(op, http.StatusNotFound, "database "+link.Database+" not found")
	}
	coll, ok := db.collections[link.Collection]
	if !ok {
		return nil, docdb.NewError(op, http.StatusNotFound, "collection "+link.Collection+" not found")
	}
	return coll, nil
}

func (s *Store) prepare(op string, coll *collection, doc docdb.Document, id string, opts *docdb.RequestOptions) (docdb.Document, docKey, error) {
	stored, pk, err := docdb.Stamp(op, doc, coll.def.PartitionKeyPath(), id, opts, s.newETag(), s.now())
	if err != nil {
		return nil, docKey{}, err
	}
	return stored, docKey{PK: pk, ID: stored.ID()}, nil
}

func pointKey(op string, coll *collection, id string, opts *docdb.RequestOptions) (docKey, error) {
	pk, err := docdb.PointPartitionKey(op, coll.def.PartitionKeyPath(), opts)
	if err != nil {
		return docKey{}, err
	}
	return docKey{PK: pk, ID: id}, nil
}

func (s *Store) response(status int, charge float64, etag string) *docdb.Response {
	return &docdb.Response{
		StatusCode:    status,
		RequestCharge: charge,
		ETag:          etag,
		ActivityID:    uuid.NewString(),
	}
}

func (s *Store) itemResponse(status int, charge float64, doc docdb.Document) *docdb.ItemResponse {
	return &docdb.ItemResponse{Response: *s.response(status, charge, doc.ETag()), Document: doc.Clone()}
}

func cloneDefinition(def docdb.CollectionDefinition) (docdb.CollectionDefinition, error) {
	var out docdb.CollectionDefinition
	data, err := json.Marshal(def)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

// Synthetic request units: a 1 KB point read costs 1, writes cost five times
// more, feeds pay a base plus per-document and per-KB terms.
func readCharge(doc docdb.Document) float64 {
	return round(1 + kb(doc.Size()))
}

func writeCharge(doc docdb.Document) float64 {
	return round(5 + 5*kb(doc.Size()))
}

func feedCharge(count, size int) float64 {
	return round(2 + 0.1*float64(count) + kb(size))
}

func kb(size int) float64 {
	return float64(size) / 1024
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
