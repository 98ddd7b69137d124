package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the shared summaries table.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS summaries (
    id          BIGSERIAL PRIMARY KEY,
    filename    TEXT NOT NULL,
    data        BYTEA NOT NULL,
    "timestamp" TEXT NOT NULL
);
`

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres stores summaries in a shared PostgreSQL database.
type Postgres struct {
	db   DB
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an existing connection. Call Migrate before use.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects a pool and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	p := &Postgres{db: pool, pool: pool}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, rec Record) (int64, error) {
	rec, err := prepare(rec)
	if err != nil {
		return 0, err
	}
	var id int64
	err = p.db.QueryRow(ctx,
		`INSERT INTO summaries (filename, data, "timestamp") VALUES ($1, $2, $3) RETURNING id`,
		rec.Filename, rec.Data, rec.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert summary: %w", err)
	}
	return id, nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, filename, "timestamp", octet_length(data) FROM summaries ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.Query(ctx, query, args...)
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

func (p *Postgres) Get(ctx context.Context, id int64) (Record, error) {
	var rec Record
	err := p.db.QueryRow(ctx,
		`SELECT id, filename, data, "timestamp" FROM summaries WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Filename, &rec.Data, &rec.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("store: id %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: get summary: %w", err)
	}
	return rec, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p.pool != nil {
		return p.pool.Ping(ctx)
	}
	var one int
	return p.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
