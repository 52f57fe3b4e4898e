// Package testkit builds a complete service graph on a throwaway sqlite file
// and an in-memory object store.
package testkit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	dbc "github.com/yeisme/sharevault/pkg/internal/storage/db"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
	"github.com/yeisme/sharevault/pkg/internal/types"
)

// BaselineQuotaMB is the ceiling of users without a plan.
const BaselineQuotaMB = 100

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t.UTC()} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Env is one isolated instance of the service graph.
type Env struct {
	DB       *gorm.DB
	Objects  objstore.Store
	ObjectFS afero.Fs
	KV       kv.KVStore
	Clock    *Clock
	Deps     service.Deps
	*service.Services
}

// OpenDB opens a migrated sqlite database that lives as long as t.
// One connection keeps ordinary tests deterministic.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	return connect(t, sqlite.Open(sqliteDSN(t)), 1)
}

// PostgresEnv names a postgres DSN used by OpenPool instead of sqlite.
const PostgresEnv = "SHAREVAULT_TEST_PG"

// OpenPool opens a migrated database with up to conns connections, so
// concurrent callers really run in parallel transactions. With PostgresEnv
// set it uses a throwaway schema on that server; otherwise a WAL sqlite file
// whose transactions begin immediate.
func OpenPool(t testing.TB, conns int) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(PostgresEnv)
	if dsn == "" {
		return connect(t, sqlite.Open(sqliteDSN(t)), conns)
	}

	admin, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	schema := "sv_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	require.NoError(t, admin.Exec("CREATE SCHEMA " + schema).Error)

	t.Cleanup(func() {
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error

		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return connect(t, postgres.Open(withSearchPath(dsn, schema)), conns)
}

// WithPool swaps the Env's database for OpenPool(t, conns).
func WithPool(t testing.TB, conns int) func(*service.Deps) {
	return func(d *service.Deps) {
		d.DB = OpenPool(t, conns)
	}
}

func sqliteDSN(t testing.TB) string {
	path := filepath.Join(t.TempDir(), "sharevault.db")

	return fmt.Sprintf("file:%s?%s", path, configs.DefaultSQLitePragmas)
}

func withSearchPath(dsn, schema string) string {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema
	}

	if strings.Contains(dsn, "?") {
		return dsn + "&search_path=" + schema
	}

	return dsn + "?search_path=" + schema
}

func connect(t testing.TB, dialector gorm.Dialector, conns int) *gorm.DB {
	t.Helper()

	client, err := dbc.Open(context.Background(), dialector, &configs.DBConfig{
		MaxOpenConns: conns,
		MaxIdleConns: conns,
		LogLevel:     "silent",
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	gdb := client.GetDB()
	require.NoError(t, model.Migrate(gdb))
	require.NoError(t, model.SeedBaselinePlan(gdb, configs.DefaultBaselinePlanID, BaselineQuotaMB))

	return gdb
}

// FakeHasher stores passwords with a readable prefix so tests skip bcrypt's cost.
func FakeHasher(password string) (string, error) { return "hashed:" + password, nil }

// FakeVerifier matches FakeHasher.
func FakeVerifier(hash, password string) bool { return hash == "hashed:"+password }

// New builds an Env. Options may adjust Deps before the services are built.
func New(t testing.TB, opts ...func(*service.Deps)) *Env {
	t.Helper()

	gdb := OpenDB(t)
	clock := NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	objectFS := afero.NewMemMapFs()
	objects := objstore.NewFsStore(objectFS)

	store, err := kv.NewMemoryKV(context.Background(), &configs.KVConfig{})
	require.NoError(t, err)

	cfg := configs.Defaults()
	cfg.Server.BaseURL = "http://share.test"
	cfg.Transfer.SpoolDir = "/spool"

	deps := service.Deps{
		DB:       gdb,
		Objects:  objects,
		KV:       store,
		Spool:    afero.NewMemMapFs(),
		Config:   cfg,
		Now:      clock.Now,
		Verifier: FakeVerifier,
		Hasher:   FakeHasher,
	}

	require.NoError(t, deps.Spool.MkdirAll(cfg.Transfer.SpoolDir, 0o750))

	for _, opt := range opts {
		opt(&deps)
	}

	env := &Env{
		DB:       deps.DB,
		Objects:  objects,
		ObjectFS: objectFS,
		KV:       store,
		Clock:    clock,
		Deps:     deps,
		Services: service.New(deps),
	}

	t.Cleanup(env.Analytics.Wait)

	return env
}

// User provisions a user on the baseline plan.
func (e *Env) User(t testing.TB, id string) *model.User {
	t.Helper()

	u, err := e.Users.Upsert(context.Background(), &types.UpsertUserRequest{ID: id, Name: id})
	require.NoError(t, err)

	return u
}

// Plan moves userID onto a plan with the given ceiling.
func (e *Env) Plan(t testing.TB, userID string, quotaMB int64) {
	t.Helper()

	ctx := context.Background()
	plan := &model.Plan{ID: 2, Name: "team", QuotaMB: quotaMB}

	require.NoError(t, e.Plans.Upsert(ctx, plan))

	_, err := e.Users.SetPlan(ctx, userID, &types.SetPlanRequest{PlanID: plan.ID})
	require.NoError(t, err)
}

// Share creates a share owned by owner. A nil req creates a public, unrestricted share.
func (e *Env) Share(t testing.TB, owner string, req *types.CreateShareRequest) *types.ShareInfo {
	t.Helper()

	if req == nil {
		req = &types.CreateShareRequest{Title: "share of " + owner}
	}

	info, err := e.Shares.CreateShare(context.Background(), owner, req)
	require.NoError(t, err)

	return info
}

// Intent reserves sizeMB for count files on shareID.
func (e *Env) Intent(t testing.TB, owner, shareID string, count int, sizeMB int64) *types.UploadIntentResponse {
	t.Helper()

	intent, err := e.Uploads.CreateIntent(context.Background(), owner, shareID, &types.CreateUploadIntentRequest{
		ExpectedFileCount:  count,
		ExpectedFileSizeMB: sizeMB,
	})
	require.NoError(t, err)

	return intent
}

// Parts turns name/content pairs into an upload body.
func Parts(nameContent ...string) *service.SliceParts {
	parts := make(service.SliceParts, 0, len(nameContent)/2)

	for i := 0; i+1 < len(nameContent); i += 2 {
		parts = append(parts, &service.FilePart{
			Name:        nameContent[i],
			ContentType: "text/plain",
			Body:        strings.NewReader(nameContent[i+1]),
		})
	}

	return &parts
}

// SizedPart is a part of n bytes of filler.
func SizedPart(name string, n int64) *service.FilePart {
	return &service.FilePart{
		Name:        name,
		ContentType: "application/octet-stream",
		Body:        io.LimitReader(zeroReader{}, n),
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// Used returns the user's running total in MB.
func (e *Env) Used(t testing.TB, userID string) int64 {
	t.Helper()

	usage, err := e.Ledger.Usage(context.Background(), userID)
	require.NoError(t, err)

	return usage.UsedMB
}
