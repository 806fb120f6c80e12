// Package sqlstore implements the relational frontmatter store and the
// embedded SQL block rewriter behind the "sqlite" observer.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/norg/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id    INTEGER PRIMARY KEY,
	title TEXT UNIQUE NOT NULL,
	path  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS frontmatter (
	file_id INTEGER,
	key     TEXT,
	value   TEXT,
	PRIMARY KEY (file_id, key),
	FOREIGN KEY (file_id) REFERENCES notes(id)
);
`

// Querier executes a query and returns its columns and rows as strings.
// Satisfied by *DB; the rewriter depends on this rather than the concrete
// type so it can be tested with a canned result set.
type Querier interface {
	Query(ctx context.Context, query string) (*models.QueryResult, error)
}

// DB wraps the SQLite connection. All access is serialised through a
// mutex: one round's store write must not interleave with a query
// executed for a block rewrite.
type DB struct {
	mu   sync.Mutex
	conn *sql.DB
}

// Verify *DB satisfies Querier at compile time.
var _ Querier = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// StoreFrontmatter upserts the note row and replaces its frontmatter
// key/value rows within one transaction.
func (db *DB) StoreFrontmatter(ctx context.Context, title, path string, fm map[string]string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (title, path) VALUES (?, ?)
		ON CONFLICT(title) DO UPDATE SET path = excluded.path
	`, title, path)
	if err != nil {
		return fmt.Errorf("sqlstore: upsert note: %w", err)
	}

	var fileID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE title = ?`, title).Scan(&fileID); err != nil {
		return fmt.Errorf("sqlstore: note id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM frontmatter WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("sqlstore: clear frontmatter: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO frontmatter (file_id, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlstore: prepare frontmatter insert: %w", err)
	}
	defer stmt.Close()
	for key, value := range fm {
		if _, err := stmt.ExecContext(ctx, fileID, key, value); err != nil {
			return fmt.Errorf("sqlstore: insert frontmatter: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its frontmatter rows by title.
func (db *DB) DeleteNote(ctx context.Context, title string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.ExecContext(ctx, `DELETE FROM frontmatter WHERE file_id IN (SELECT id FROM notes WHERE title = ?)`, title)
	_, _ = tx.ExecContext(ctx, `DELETE FROM notes WHERE title = ?`, title)

	return tx.Commit()
}

// Query runs an arbitrary read query and materialises every column as a
// string. Failures are fatal to the enclosing sync operation.
func (db *DB) Query(ctx context.Context, query string) (*models.QueryResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: columns: %w", err)
	}

	result := &models.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			row[col] = values[i].String
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: rows: %w", err)
	}
	return result, nil
}
