// Package objstore holds uploaded file contents. Backends are interchangeable
// behind Store; New picks one from configuration and wraps it with bounded
// retries and an optional circuit breaker.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yeisme/sharevault/pkg/configs"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

var (
	// ErrNotFound is returned by Get and Stat for a missing key.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey rejects keys that would escape the store namespace.
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is the minimal object storage contract the transfer flows rely on.
type Store interface {
	// Put stores size bytes from r under key. Passing an io.ReadSeeker lets
	// decorators replay the body on retry.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get opens key for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Name() string
}

// New builds the configured backend and decorates it.
func New(ctx context.Context, cfg *configs.StorageConfig, cb *configs.CircuitBreakerConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case configs.StorageLocal, "":
		store, err = NewLocalStore(cfg.LocalRoot)
	case configs.StorageMinio:
		store, err = NewMinioStore(ctx, cfg)
	case configs.StorageS3:
		store, err = NewS3Store(ctx, cfg)
	default:
		err = fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}

	if err != nil {
		return nil, err
	}

	if cfg.Breaker && cb != nil {
		store = WithBreaker(store, cb)
	}

	store = WithRetry(store, RetryPolicy{Attempts: cfg.Retries, Delay: cfg.RetryDelay})

	nlog.Logger().Info().Str("backend", store.Name()).Msg("object store ready")

	return store, nil
}

// ShareKey lays files out per share so a share can be inspected or purged as a prefix.
func ShareKey(shareID, fileID string) string {
	return "shares/" + shareID + "/" + fileID
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}

	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}

	return nil
}
