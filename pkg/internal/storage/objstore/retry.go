package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"github.com/yeisme/sharevault/pkg/configs"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// ErrUnavailable wraps the last error once retries are exhausted or the breaker is open.
var ErrUnavailable = errors.New("object store unavailable")

// RetryPolicy bounds attempts of a single operation.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

type retryStore struct {
	Store
	policy RetryPolicy
}

// WithRetry retries transient failures with exponential backoff. Missing keys
// and invalid keys are not retried.
func WithRetry(s Store, p RetryPolicy) Store {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	if p.Delay <= 0 {
		p.Delay = 100 * time.Millisecond
	}

	return &retryStore{Store: s, policy: p}
}

func (r *retryStore) backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.Delay
	b.MaxInterval = 16 * r.policy.Delay

	return b
}

func do[T any](ctx context.Context, r *retryStore, op string, key string, fn func() (T, error)) (T, error) {
	attempt := 0

	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++

		v, err := fn()
		if err == nil {
			return v, nil
		}

		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return v, backoff.Permanent(err)
		}

		nlog.Logger().Warn().Err(err).Str("op", op).Str("key", key).Int("attempt", attempt).Msg("object store attempt failed")

		return v, err
	}, backoff.WithBackOff(r.backoff()), backoff.WithMaxTries(uint(r.policy.Attempts)))
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidKey) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return res, fmt.Errorf("%w: %s %s after %d attempts: %w", ErrUnavailable, op, key, attempt, err)
	}

	return res, err
}

func (r *retryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	seeker, replayable := body.(io.Seeker)
	first := true

	_, err := do(ctx, r, "put", key, func() (struct{}, error) {
		if !first {
			if !replayable {
				return struct{}{}, backoff.Permanent(errors.New("body is not replayable"))
			}

			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return struct{}{}, backoff.Permanent(err)
			}
		}

		first = false

		return struct{}{}, r.Store.Put(ctx, key, body, size, contentType)
	})

	return err
}

type getResult struct {
	rc   io.ReadCloser
	info *ObjectInfo
}

func (r *retryStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	res, err := do(ctx, r, "get", key, func() (getResult, error) {
		rc, info, err := r.Store.Get(ctx, key)
		return getResult{rc: rc, info: info}, err
	})
	if err != nil {
		return nil, nil, err
	}

	return res.rc, res.info, nil
}

func (r *retryStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	return do(ctx, r, "stat", key, func() (*ObjectInfo, error) {
		return r.Store.Stat(ctx, key)
	})
}

func (r *retryStore) Delete(ctx context.Context, key string) error {
	_, err := do(ctx, r, "delete", key, func() (struct{}, error) {
		return struct{}{}, r.Store.Delete(ctx, key)
	})

	return err
}

type breakerStore struct {
	Store
	cb *gobreaker.CircuitBreaker
}

// WithBreaker fails fast while the backend keeps erroring. Missing keys do not count as failures.
func WithBreaker(s Store, cfg *configs.CircuitBreakerConfig) Store {
	settings := cfg.Settings("objstore-" + s.Name())
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey)
	}

	return &breakerStore{Store: s, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerStore) run(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return v, err
}

func (b *breakerStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := b.run(func() (any, error) {
		return nil, b.Store.Put(ctx, key, body, size, contentType)
	})

	return err
}

func (b *breakerStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	v, err := b.run(func() (any, error) {
		rc, info, err := b.Store.Get(ctx, key)
		return getResult{rc: rc, info: info}, err
	})
	if err != nil {
		return nil, nil, err
	}

	res := v.(getResult)

	return res.rc, res.info, nil
}

func (b *breakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.run(func() (any, error) {
		return nil, b.Store.Delete(ctx, key)
	})

	return err
}
