package session

import (
	"context"

	"github.com/rbright/consult/internal/store"
)

// Appender persists one shared document.
type Appender interface {
	Append(context.Context, store.Record) (int64, error)
}

// AppendFunc adapts a function to the Appender interface.
type AppendFunc func(context.Context, store.Record) (int64, error)

func (f AppendFunc) Append(ctx context.Context, rec store.Record) (int64, error) {
	return f(ctx, rec)
}
