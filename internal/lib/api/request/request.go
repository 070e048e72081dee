package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"docsample/internal/docdb"
)

// maxBodySize matches the service limit for a single document.
const maxBodySize = 2 << 20

var (
	ErrEmptyBody = errors.New("request body is empty")
	ErrTooLarge  = errors.New("request body is too large")
)

// Database is the body of a create database request.
type Database struct {
	ID string `json:"id"`
}

// Query is the body of a query request. Text is informational; documents
// are filtered by the structured conditions.
type Query struct {
	Text string `json:"query"`
	docdb.Query
}

// Decode decodes the JSON request body into v
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return ErrEmptyBody
	case errors.As(err, &tooLarge):
		return ErrTooLarge
	default:
		return err
	}
}

func DecodeDatabase(w http.ResponseWriter, r *http.Request) (string, error) {
	var db Database
	if err := Decode(w, r, &db); err != nil {
		return "", err
	}
	if db.ID == "" {
		return "", errors.New("database id is required")
	}
	return db.ID, nil
}

func DecodeCollection(w http.ResponseWriter, r *http.Request) (docdb.CollectionDefinition, error) {
	var def docdb.CollectionDefinition
	if err := Decode(w, r, &def); err != nil {
		return def, err
	}
	if def.ID == "" {
		return def, errors.New("collection id is required")
	}
	return def, nil
}

func DecodeDocument(w http.ResponseWriter, r *http.Request) (docdb.Document, error) {
	var doc docdb.Document
	if err := Decode(w, r, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("document must be a JSON object")
	}
	return doc, nil
}

func DecodeQuery(w http.ResponseWriter, r *http.Request) (docdb.Query, error) {
	var q Query
	if err := Decode(w, r, &q); err != nil {
		return docdb.Query{}, err
	}
	for _, c := range q.Conditions {
		if c.Path == "" {
			return docdb.Query{}, errors.New("query condition without path")
		}
	}
	return q.Query, nil
}

// RequestOptions reads partition key and precondition headers.
func RequestOptions(r *http.Request) (*docdb.RequestOptions, error) {
	pk, err := docdb.ParsePartitionKey(r.Header.Get(docdb.HeaderPartitionKey))
	if err != nil {
		return nil, err
	}
	return &docdb.RequestOptions{
		PartitionKey: pk,
		IfMatch:      r.Header.Get("If-Match"),
		IfNoneMatch:  r.Header.Get("If-None-Match"),
	}, nil
}

// FeedOptions reads the paging headers. A max item count of -1 lets the
// service choose the page size.
func FeedOptions(r *http.Request) (*docdb.FeedOptions, error) {
	pk, err := docdb.ParsePartitionKey(r.Header.Get(docdb.HeaderPartitionKey))
	if err != nil {
		return nil, err
	}
	opts := &docdb.FeedOptions{
		PartitionKey: pk,
		Continuation: r.Header.Get(docdb.HeaderContinuation),
	}
	if v := r.Header.Get(docdb.HeaderMaxItemCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < -1 || n == 0 {
			return nil, fmt.Errorf("invalid %s header %q", docdb.HeaderMaxItemCount, v)
		}
		if n > 0 {
			opts.MaxItemCount = n
		}
	}
	return opts, nil
}

func IsUpsert(r *http.Request) bool {
	return flag(r, docdb.HeaderIsUpsert)
}

func IsQuery(r *http.Request) bool {
	return flag(r, docdb.HeaderIsQuery) || strings.HasPrefix(r.Header.Get("Content-Type"), "application/query+json")
}

func flag(r *http.Request, header string) bool {
	v, err := strconv.ParseBool(r.Header.Get(header))
	return err == nil && v
}
