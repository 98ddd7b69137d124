// Package store persists shared summary documents for later retrieval by a
// consultant. Rows are only ever appended.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rbright/consult/internal/config"
)

// TimestampLayout is the textual timestamp stored with every row.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("summary not found")

// Record is one row of the summaries table.
type Record struct {
	ID        int64
	Filename  string
	Data      []byte
	Timestamp string
}

// NewRecord stamps a document with at in TimestampLayout.
func NewRecord(filename string, data []byte, at time.Time) Record {
	return Record{Filename: filename, Data: data, Timestamp: at.Format(TimestampLayout)}
}

// Entry lists a row without its document bytes.
type Entry struct {
	ID        int64
	Filename  string
	Timestamp string
	Size      int64
}

// Store is the record store boundary.
type Store interface {
	// Append inserts one row and returns its id.
	Append(ctx context.Context, rec Record) (int64, error)
	// List returns the newest rows first, at most limit when limit > 0.
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id int64) (Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// prepare checks a row before insert. A nil document is stored as an
// empty one.
func prepare(rec Record) (Record, error) {
	if strings.TrimSpace(rec.Filename) == "" {
		return rec, errors.New("store: filename must not be empty")
	}
	if rec.Timestamp == "" {
		return rec, errors.New("store: timestamp must not be empty")
	}
	if rec.Data == nil {
		rec.Data = []byte{}
	}
	return rec, nil
}

// Open connects to the configured driver and ensures the schema exists.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		dsn := cfg.DSN
		if cfg.DSNEnv != "" {
			if v := strings.TrimSpace(os.Getenv(cfg.DSNEnv)); v != "" {
				dsn = v
			}
		}
		if dsn == "" {
			return nil, errors.New("store: postgres driver requires store.dsn or store.dsn_env")
		}
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
