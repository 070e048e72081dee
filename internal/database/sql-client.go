// Package database stores documents in MySQL. A service database is a MySQL
// schema, a collection is a table of JSON bodies keyed by partition key and
// id, and the __collections table of each schema keeps the definitions.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"docsample/internal/config"
	"docsample/internal/docdb"
	"docsample/internal/lib/sl"

	"github.com/go-sql-driver/mysql"
)

const metaTable = "__collections"

// Server error numbers, see https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDatabaseExists  = 1007
	errAccessDenied    = 1045
	errUnknownDatabase = 1049
	errTableExists     = 1050
	errDuplicateEntry  = 1062
	errNoSuchTable     = 1146
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

var identifier = regexp.MustCompile(`^[A-Za-z0-9_$-]{1,64}$`)

var _ docdb.Client = (*MySql)(nil)

type MySql struct {
	db         *sql.DB
	defs       map[string]docdb.CollectionDefinition
	statements map[string]*sql.Stmt
	mu         sync.Mutex
	now        func() time.Time
	log        *slog.Logger
}

func NewSQLClient(ctx context.Context, conf *config.Config, log *slog.Logger) (*MySql, error) {
	dsn := mysql.NewConfig()
	dsn.User = conf.SQL.UserName
	dsn.Passwd = conf.SQL.Password
	dsn.Net = "tcp"
	dsn.Addr = conf.SQL.HostName + ":" + conf.SQL.Port
	dsn.ParseTime = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	return &MySql{
		db:         db,
		defs:       make(map[string]docdb.CollectionDefinition),
		statements: make(map[string]*sql.Stmt),
		now:        time.Now,
		log:        log.With(sl.Module("mysql")),
	}, nil
}

func (s *MySql) Close(_ context.Context) error {
	s.closeStmt()
	return s.db.Close()
}

// Stats returns database info only if there are connections in use.
func (s *MySql) Stats() string {
	stats := s.db.Stats()
	if stats.InUse == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("open: %d, inuse: %d, idle: %d, stmts: %d, collections: %d",
		stats.OpenConnections,
		stats.InUse,
		stats.Idle,
		len(s.statements),
		len(s.defs))
}

func (s *MySql) CreateDatabase(ctx context.Context, id string) (*docdb.Response, error) {
	const op = "CreateDatabase"
	if !identifier.MatchString(id) {
		return nil, docdb.NewError(op, http.StatusBadRequest, "invalid database id "+id)
	}
	_, err := s.db.ExecContext(ctx, "CREATE DATABASE "+quote(id))
	found := isServerError(err, errDatabaseExists)
	if err != nil && !found {
		return nil, classify(op, err)
	}
	// an earlier attempt may have stopped before the metadata table
	if _, err = s.db.ExecContext(ctx, createMetaTable(id)); err != nil {
		return nil, classify(op, err)
	}
	if found {
		return nil, docdb.NewError(op, http.StatusConflict, "database "+id+" already exists")
	}
	s.log.Debug("database created", slog.String("database", id))
	return &docdb.Response{StatusCode: http.StatusCreated}, nil
}

func (s *MySql) CreateCollection(ctx context.Context, database string, def docdb.CollectionDefinition) (*docdb.Response, error) {
	const op = "CreateCollection"
	if !identifier.MatchString(database) || !identifier.MatchString(def.ID) || def.ID == metaTable {
		return nil, docdb.NewError(op, http.StatusBadRequest, "invalid collection link")
	}
	data, err := json.Marshal(def)
	if err != nil {
		return nil, docdb.Wrap(op, http.StatusBadRequest, err)
	}

	// the table may be left over from a failed attempt, the definition
	// record decides the conflict
	if _, err = s.db.ExecContext(ctx, createDocumentTable(database, def.ID)); err != nil {
		return nil, classify(op, err)
	}
	stmt, err := s.stmtInsertCollection(ctx, database)
	if err != nil {
		return nil, classify(op, err)
	}
	if _, err = stmt.ExecContext(ctx, def.ID, string(data)); err != nil {
		return nil, classify(op, err)
	}

	s.mu.Lock()
	s.defs[table(database, def.ID)] = def
	s.mu.Unlock()

	s.log.Debug("collection created", slog.String("database", database), slog.String("collection", def.ID))
	return &docdb.Response{StatusCode: http.StatusCreated}, nil
}

// definition returns the cached collection definition, loading it on first use.
func (s *MySql) definition(ctx context.Context, op string, link docdb.CollectionLink) (docdb.CollectionDefinition, error) {
	var def docdb.CollectionDefinition
	if !identifier.MatchString(link.Database) || !identifier.MatchString(link.Collection) {
		return def, docdb.NewError(op, http.StatusBadRequest, "invalid collection link")
	}
	key := table(link.Database, link.Collection)

	s.mu.Lock()
	def, ok := s.defs[key]
	s.mu.Unlock()
	if ok {
		return def, nil
	}

	stmt, err := s.stmtSelectCollection(ctx, link.Database)
	if err != nil {
		return def, classify(op, err)
	}
	var data string
	err = stmt.QueryRowContext(ctx, link.Collection).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return def, docdb.NewError(op, http.StatusNotFound, "collection "+link.String()+" not found")
	}
	if err != nil {
		return def, classify(op, err)
	}
	if err = json.Unmarshal([]byte(data), &def); err != nil {
		return def, docdb.Wrap(op, http.StatusInternalServerError, err)
	}

	s.mu.Lock()
	s.defs[key] = def
	s.mu.Unlock()
	return def, nil
}

func isServerError(err error, number uint16) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
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
	var myErr *mysql.MySQLError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		status = http.StatusNotFound
	case errors.As(err, &myErr):
		switch myErr.Number {
		case errDatabaseExists, errTableExists, errDuplicateEntry:
			status = http.StatusConflict
		case errUnknownDatabase, errNoSuchTable:
			status = http.StatusNotFound
		case errAccessDenied:
			status = http.StatusUnauthorized
		case errLockWaitTimeout:
			status = http.StatusRequestTimeout
		case errDeadlock:
			status = http.StatusTooManyRequests
		}
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	case errors.Is(err, mysql.ErrInvalidConn), errors.Is(err, sql.ErrConnDone):
		status = http.StatusServiceUnavailable
	}
	return docdb.Wrap(op, status, err)
}
