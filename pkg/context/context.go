// Package context carries the storage manager and trace-aware loggers through
// request and job contexts.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/sharevault/pkg/internal/storage"
	dbc "github.com/yeisme/sharevault/pkg/internal/storage/db"
	kvc "github.com/yeisme/sharevault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/sharevault/pkg/internal/storage/mq"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
)

type ContextKey string

const (
	StorageManagerKey ContextKey = "storageManager"
)

// WithStorageManager stores mgr in ctx.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, StorageManagerKey, mgr)
}

// GetManager returns the manager in ctx, or nil.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(StorageManagerKey).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

func GetObjectStore(ctx context.Context) objstore.Store {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetObjectStore()
	}

	return nil
}

func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetDBClient()
	}

	return nil
}

func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetMQClient()
	}

	return nil
}

func GetKVClient(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetKVClient()
	}

	return nil
}

// WithTraceContext adds trace and span ids to logger when ctx carries a recording span.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		return logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
