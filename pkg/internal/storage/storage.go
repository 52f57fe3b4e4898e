// Package storage aggregates the backing resources of the service: the
// relational database, the object store holding file bytes, the key/value
// cache and the event bus.
//
//	mgr, err := storage.Init(ctx)
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	db := mgr.GetDBClient()
//	objects := mgr.GetObjectStore()
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yeisme/sharevault/pkg/configs"
	dbc "github.com/yeisme/sharevault/pkg/internal/storage/db"
	kvc "github.com/yeisme/sharevault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/sharevault/pkg/internal/storage/mq"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// Manager holds every storage resource. MQ is nil when the bus is disabled.
type Manager struct {
	DB      *dbc.Client
	Objects objstore.Store
	KV      *kvc.Client
	MQ      *mqc.Client
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init builds the process-wide manager from the global configuration.
// Later calls return the same instance.
func Init(ctx context.Context) (*Manager, error) {
	mgrOnce.Do(func() {
		cfg := configs.GetConfig()
		mgr, mgrErr = New(ctx, cfg)
	})

	return mgr, mgrErr
}

// New opens every resource named by cfg. Resources opened before a failure are closed.
func New(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{}

	db, err := dbc.New(ctx, &cfg.DB)
	if err != nil {
		return nil, err
	}

	m.DB = db

	if cfg.Metrics.Enabled {
		if err := db.RegisterGORMMetrics(cfg.DB.Database); err != nil {
			nlog.Logger().Warn().Err(err).Msg("gorm metrics not registered")
		}
	}

	if m.Objects, err = objstore.New(ctx, &cfg.Storage, &cfg.CircuitBreaker); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("object store: %w", err)
	}

	if m.KV, err = kvc.NewKVClient(ctx, &cfg.KV); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("kv store: %w", err)
	}

	m.MQ, err = mqc.New(ctx, &cfg.MQ)

	switch {
	case errors.Is(err, mqc.ErrDisabled):
		m.MQ = nil
	case err != nil:
		_ = m.Close()
		return nil, err
	}

	nlog.Logger().Info().
		Str("db", string(cfg.DB.Type)).
		Str("objects", m.Objects.Name()).
		Str("kv", string(m.KV.Type())).
		Str("mq", string(cfg.MQ.Type)).
		Msg("storage manager initialized")

	return m, nil
}

// GetDBClient returns the database client.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetObjectStore returns the object store.
func (m *Manager) GetObjectStore() objstore.Store {
	return m.Objects
}

// GetKVClient returns the key/value client.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient returns the event bus, or nil when it is disabled.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// Ping checks the database and the object store.
func (m *Manager) Ping(ctx context.Context) error {
	var err error

	if m.DB != nil {
		err = errors.Join(err, m.DB.Ping(ctx))
	}

	if m.Objects != nil {
		err = errors.Join(err, m.Objects.Ping(ctx))
	}

	return err
}

// Close releases every resource, bus first so no event outlives the database.
func (m *Manager) Close() error {
	var err error

	if m.MQ != nil {
		err = errors.Join(err, m.MQ.Close())
	}

	if m.KV != nil {
		err = errors.Join(err, m.KV.Close())
	}

	if m.DB != nil {
		err = errors.Join(err, m.DB.Close())
	}

	return err
}
