package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

// LocalStore keeps objects on a filesystem. Production uses a base-path
// OS filesystem; tests use afero.NewMemMapFs.
type LocalStore struct {
	fs afero.Fs
}

// NewLocalStore roots the store at dir, creating it when missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", dir, err)
	}

	return NewFsStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewFsStore wraps an arbitrary afero filesystem.
func NewFsStore(fs afero.Fs) *LocalStore {
	return &LocalStore{fs: fs}
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, _ string) error {
	if err := validKey(key); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(path.Dir(key), 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", path.Dir(key), err)
	}

	// write to a sibling then rename, so readers never see a partial object
	tmp := key + ".part"

	f, err := s.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write for %s: %d of %d bytes", key, n, size)
	}

	if err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}

	return s.fs.Rename(tmp, key)
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	if err := validKey(key); err != nil {
		return nil, nil, err
	}

	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}

		return nil, nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	return f, &ObjectInfo{Key: key, Size: st.Size()}, nil
}

func (s *LocalStore) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	st, err := s.fs.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &ObjectInfo{Key: key, Size: st.Size()}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

func (s *LocalStore) Ping(_ context.Context) error {
	_, err := s.fs.Stat("/")
	return err
}

// ctxReader stops a copy once the request context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
