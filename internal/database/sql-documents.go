package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"docsample/internal/docdb"

	sq "github.com/Masterminds/squirrel"
)

const defaultMaxItemCount = 100

type row struct {
	pk   string
	id   string
	etag string
	ts   int64
	body []byte
}

func (s *MySql) prepare(ctx context.Context, op string, link docdb.CollectionLink, doc docdb.Document, id string, opts *docdb.RequestOptions) (string, docdb.Document, row, error) {
	def, err := s.definition(ctx, op, link)
	if err != nil {
		return "", nil, row{}, err
	}
	now := s.now()
	stored, pk, err := docdb.Stamp(op, doc, def.PartitionKeyPath(), id, opts, docdb.NewETag(), now)
	if err != nil {
		return "", nil, row{}, err
	}
	body, err := json.Marshal(stored)
	if err != nil {
		return "", nil, row{}, docdb.Wrap(op, http.StatusBadRequest, err)
	}
	r := row{pk: pk, id: stored.ID(), etag: stored.ETag(), ts: now.Unix(), body: body}
	return table(link.Database, link.Collection), stored, r, nil
}

func (s *MySql) CreateDocument(ctx context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "CreateDocument"
	name, stored, r, err := s.prepare(ctx, op, link, doc, "", opts)
	if err != nil {
		return nil, err
	}
	stmt, err := s.stmtInsertDocument(ctx, name)
	if err != nil {
		return nil, classify(op, err)
	}
	if _, err = stmt.ExecContext(ctx, r.pk, r.id, r.etag, r.ts, r.body); err != nil {
		return nil, classify(op, err)
	}
	return item(http.StatusCreated, stored), nil
}

func (s *MySql) UpsertDocument(ctx context.Context, link docdb.CollectionLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "UpsertDocument"
	name, stored, r, err := s.prepare(ctx, op, link, doc, "", opts)
	if err != nil {
		return nil, err
	}

	ifMatch := docdb.IfMatch(opts)
	if ifMatch == "" {
		stmt, err := s.stmtUpsertDocument(ctx, name)
		if err != nil {
			return nil, classify(op, err)
		}
		res, err := stmt.ExecContext(ctx, r.pk, r.id, r.etag, r.ts, r.body)
		if err != nil {
			return nil, classify(op, err)
		}
		// one affected row for an insert, two for an update
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, classify(op, err)
		}
		status := http.StatusOK
		if affected == 1 {
			status = http.StatusCreated
		}
		return item(status, stored), nil
	}

	affected, err := s.update(ctx, name, r, ifMatch)
	if err != nil {
		return nil, classify(op, err)
	}
	if affected > 0 {
		return item(http.StatusOK, stored), nil
	}
	exists, err := s.exists(ctx, name, r.pk, r.id)
	if err != nil {
		return nil, classify(op, err)
	}
	if exists {
		return nil, docdb.NewError(op, http.StatusPreconditionFailed, "etag mismatch")
	}
	stmt, err := s.stmtInsertDocument(ctx, name)
	if err != nil {
		return nil, classify(op, err)
	}
	if _, err = stmt.ExecContext(ctx, r.pk, r.id, r.etag, r.ts, r.body); err != nil {
		return nil, classify(op, err)
	}
	return item(http.StatusCreated, stored), nil
}

func (s *MySql) ReadDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReadDocument"
	def, err := s.definition(ctx, op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	pk, err := docdb.PointPartitionKey(op, def.PartitionKeyPath(), opts)
	if err != nil {
		return nil, err
	}
	stmt, err := s.stmtSelectDocument(ctx, table(link.Database, link.Collection))
	if err != nil {
		return nil, classify(op, err)
	}

	var (
		etag string
		body []byte
	)
	err = stmt.QueryRowContext(ctx, pk, link.ID).Scan(&etag, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docdb.NewError(op, http.StatusNotFound, "document "+link.ID+" not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}

	if inm := docdb.IfNoneMatch(opts); inm != "" && inm == etag {
		resp := item(http.StatusNotModified, nil)
		resp.ETag = etag
		return resp, nil
	}
	doc, err := decodeBody(body)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
	}
	return item(http.StatusOK, doc), nil
}

func (s *MySql) ReplaceDocument(ctx context.Context, link docdb.DocumentLink, doc docdb.Document, opts *docdb.RequestOptions) (*docdb.ItemResponse, error) {
	const op = "ReplaceDocument"
	name, stored, r, err := s.prepare(ctx, op, link.CollectionLink, doc, link.ID, opts)
	if err != nil {
		return nil, err
	}
	affected, err := s.update(ctx, name, r, docdb.IfMatch(opts))
	if err != nil {
		return nil, classify(op, err)
	}
	if affected == 0 {
		return nil, s.missing(ctx, op, name, r.pk, r.id, opts)
	}
	return item(http.StatusOK, stored), nil
}

func (s *MySql) DeleteDocument(ctx context.Context, link docdb.DocumentLink, opts *docdb.RequestOptions) (*docdb.Response, error) {
	const op = "DeleteDocument"
	def, err := s.definition(ctx, op, link.CollectionLink)
	if err != nil {
		return nil, err
	}
	pk, err := docdb.PointPartitionKey(op, def.PartitionKeyPath(), opts)
	if err != nil {
		return nil, err
	}
	name := table(link.Database, link.Collection)

	ifMatch := docdb.IfMatch(opts)
	stmt, err := s.stmtDeleteDocument(ctx, name, ifMatch != "")
	if err != nil {
		return nil, classify(op, err)
	}
	args := []any{pk, link.ID}
	if ifMatch != "" {
		args = append(args, ifMatch)
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, classify(op, err)
	}
	if affected == 0 {
		return nil, s.missing(ctx, op, name, pk, link.ID, opts)
	}
	return &docdb.Response{StatusCode: http.StatusNoContent}, nil
}

func (s *MySql) ReadDocuments(ctx context.Context, link docdb.CollectionLink, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return s.feed(ctx, "ReadDocuments", link, docdb.Query{}, opts)
}

func (s *MySql) QueryDocuments(ctx context.Context, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	return s.feed(ctx, "QueryDocuments", link, query, opts)
}

func (s *MySql) feed(ctx context.Context, op string, link docdb.CollectionLink, query docdb.Query, opts *docdb.FeedOptions) (*docdb.FeedResponse, error) {
	if _, err := s.definition(ctx, op, link); err != nil {
		return nil, err
	}
	o := docdb.Feed(opts)
	limit := o.MaxItemCount
	if limit <= 0 {
		limit = defaultMaxItemCount
	}

	text, args, err := feedQuery(table(link.Database, link.Collection), o, query, limit)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	resp := &docdb.FeedResponse{Response: docdb.Response{StatusCode: http.StatusOK}}
	var last docdb.Cursor
	for rows.Next() {
		var (
			cursor docdb.Cursor
			body   []byte
		)
		if err = rows.Scan(&cursor.PK, &cursor.ID, &body); err != nil {
			return nil, classify(op, err)
		}
		if len(resp.Documents) == limit {
			resp.Continuation = last.Encode()
			break
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, docdb.Wrap(op, http.StatusInternalServerError, err)
		}
		resp.Documents = append(resp.Documents, doc)
		last = cursor
	}
	if err = rows.Err(); err != nil {
		return nil, classify(op, err)
	}

	s.log.Debug("feed page",
		slog.String("collection", link.String()),
		slog.Int("count", len(resp.Documents)),
		slog.Bool("more", resp.Continuation != ""),
	)
	return resp, nil
}

// feedQuery selects one row past the page so that the caller can tell
// whether a continuation is needed.
func feedQuery(name string, o docdb.FeedOptions, query docdb.Query, limit int) (string, []any, error) {
	builder := sq.Select("pk", "id", "body").
		From(name).
		OrderBy("pk", "id").
		Limit(uint64(limit) + 1)

	if o.PartitionKey != "" {
		builder = builder.Where(sq.Eq{"pk": o.PartitionKey})
	}
	for _, cond := range query.Conditions {
		path, err := jsonPath(cond.Path)
		if err != nil {
			return "", nil, err
		}
		value, err := json.Marshal(cond.Value)
		if err != nil {
			return "", nil, fmt.Errorf("query value for %s: %w", cond.Path, err)
		}
		builder = builder.Where(sq.Expr("JSON_EXTRACT(body, ?) = CAST(? AS JSON)", path, string(value)))
	}
	if o.Continuation != "" {
		after, err := docdb.DecodeCursor(o.Continuation)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(sq.Or{
			sq.Gt{"pk": after.PK},
			sq.And{sq.Eq{"pk": after.PK}, sq.Gt{"id": after.ID}},
		})
	}
	return builder.ToSql()
}

// jsonPath converts /a/b into the MySQL path $."a"."b".
func jsonPath(path string) (string, error) {
	segs := docdb.PathSegments(path)
	if len(segs) == 0 {
		return "", errors.New("query condition without a path")
	}
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range segs {
		key, err := json.Marshal(seg)
		if err != nil {
			return "", err
		}
		b.WriteString(".")
		b.Write(key)
	}
	return b.String(), nil
}

func (s *MySql) update(ctx context.Context, name string, r row, ifMatch string) (int64, error) {
	stmt, err := s.stmtUpdateDocument(ctx, name, ifMatch != "")
	if err != nil {
		return 0, err
	}
	args := []any{r.etag, r.ts, r.body, r.pk, r.id}
	if ifMatch != "" {
		args = append(args, ifMatch)
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MySql) missing(ctx context.Context, op, name, pk, id string, opts *docdb.RequestOptions) error {
	if docdb.IfMatch(opts) != "" {
		exists, err := s.exists(ctx, name, pk, id)
		if err != nil {
			return classify(op, err)
		}
		if exists {
			return docdb.NewError(op, http.StatusPreconditionFailed, "etag mismatch")
		}
	}
	return docdb.NewError(op, http.StatusNotFound, "document "+id+" not found")
}

func (s *MySql) exists(ctx context.Context, name, pk, id string) (bool, error) {
	stmt, err := s.stmtSelectDocument(ctx, name)
	if err != nil {
		return false, err
	}
	var (
		etag string
		body []byte
	)
	err = stmt.QueryRowContext(ctx, pk, id).Scan(&etag, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func item(status int, doc docdb.Document) *docdb.ItemResponse {
	return &docdb.ItemResponse{
		Response: docdb.Response{StatusCode: status, ETag: doc.ETag()},
		Document: doc,
	}
}

func decodeBody(body []byte) (docdb.Document, error) {
	var doc docdb.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return doc, nil
}
