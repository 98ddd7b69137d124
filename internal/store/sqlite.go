package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS summaries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    filename    TEXT NOT NULL,
    data        BLOB NOT NULL,
    "timestamp" TEXT NOT NULL
)`

// SQLite is the embedded default store.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating when missing) the database at path. ":memory:"
// keeps everything in one private connection.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path must not be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, rec Record) (int64, error) {
	rec, err := prepare(rec)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (filename, data, "timestamp") VALUES (?, ?, ?)`,
		rec.Filename, rec.Data, rec.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("store: insert summary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: read summary id: %w", err)
	}
	return id, nil
}

func (s *SQLite) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, filename, "timestamp", length(data) FROM summaries ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query summaries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Filename, &e.Timestamp, &e.Size); err != nil {
			return nil, fmt.Errorf("store: scan summary: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id int64) (Record, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, data, "timestamp" FROM summaries WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Filename, &rec.Data, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("store: id %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: get summary: %w", err)
	}
	return rec, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
