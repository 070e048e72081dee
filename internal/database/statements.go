package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func table(database, collection string) string {
	return quote(database) + "." + quote(collection)
}

func createMetaTable(database string) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			definition JSON NOT NULL
		)`,
		table(database, metaTable),
	)
}

func createDocumentTable(database, collection string) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			pk VARCHAR(255) NOT NULL,
			id VARCHAR(255) NOT NULL,
			etag VARCHAR(64) NOT NULL,
			ts BIGINT NOT NULL,
			body JSON NOT NULL,
			PRIMARY KEY (pk, id)
		)`,
		table(database, collection),
	)
}

func (s *MySql) prepareStmt(ctx context.Context, name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}

	s.statements[name] = stmt
	return stmt, nil
}

func (s *MySql) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
}

func (s *MySql) stmtInsertCollection(ctx context.Context, database string) (*sql.Stmt, error) {
	name := table(database, metaTable)
	query := fmt.Sprintf(`INSERT INTO %s (id, definition) VALUES (?, ?)`, name)
	return s.prepareStmt(ctx, "insertCollection"+name, query)
}

func (s *MySql) stmtSelectCollection(ctx context.Context, database string) (*sql.Stmt, error) {
	name := table(database, metaTable)
	query := fmt.Sprintf(`SELECT definition FROM %s WHERE id = ?`, name)
	return s.prepareStmt(ctx, "selectCollection"+name, query)
}

func (s *MySql) stmtInsertDocument(ctx context.Context, name string) (*sql.Stmt, error) {
	query := fmt.Sprintf(`INSERT INTO %s (pk, id, etag, ts, body) VALUES (?, ?, ?, ?, ?)`, name)
	return s.prepareStmt(ctx, "insertDocument"+name, query)
}

func (s *MySql) stmtUpsertDocument(ctx context.Context, name string) (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`INSERT INTO %s (pk, id, etag, ts, body) VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		 	etag = VALUES(etag),
		 	ts = VALUES(ts),
		 	body = VALUES(body)`,
		name,
	)
	return s.prepareStmt(ctx, "upsertDocument"+name, query)
}

func (s *MySql) stmtSelectDocument(ctx context.Context, name string) (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT etag, body FROM %s WHERE pk = ? AND id = ?`, name)
	return s.prepareStmt(ctx, "selectDocument"+name, query)
}

func (s *MySql) stmtUpdateDocument(ctx context.Context, name string, conditional bool) (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET
			etag = ?,
			ts = ?,
			body = ?
		 WHERE pk = ? AND id = ?`,
		name,
	)
	if conditional {
		return s.prepareStmt(ctx, "updateDocumentIfMatch"+name, query+" AND etag = ?")
	}
	return s.prepareStmt(ctx, "updateDocument"+name, query)
}

func (s *MySql) stmtDeleteDocument(ctx context.Context, name string, conditional bool) (*sql.Stmt, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE pk = ? AND id = ?`, name)
	if conditional {
		return s.prepareStmt(ctx, "deleteDocumentIfMatch"+name, query+" AND etag = ?")
	}
	return s.prepareStmt(ctx, "deleteDocument"+name, query)
}
