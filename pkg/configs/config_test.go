package configs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := configs.Defaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, configs.SQLite, cfg.DB.Type)
	assert.Equal(t, configs.StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, configs.MQTypeMemory, cfg.MQ.Type)
	assert.Equal(t, configs.KVTypeMemory, cfg.KV.Type)
	assert.Equal(t, time.Hour, cfg.Transfer.UploadTTL)
	assert.Equal(t, 1, cfg.Transfer.BaselinePlanID)
}

func TestInitConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`
server:
  port: 9000
db:
  type: postgres
  host: db.internal
transfer:
  upload_ttl: 15m
  sweep_cron: "*/5 * * * *"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o600))

	require.NoError(t, configs.InitConfig(dir))

	cfg := configs.GetConfig()
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, configs.Postgres, cfg.DB.Type)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 15*time.Minute, cfg.Transfer.UploadTTL)
	assert.Equal(t, "*/5 * * * *", cfg.Transfer.SweepCron)
	// untouched sections keep their defaults
	assert.Equal(t, configs.DefaultStorageRetries, cfg.Storage.Retries)
}

func TestInitConfigEnvOverride(t *testing.T) {
	t.Setenv("SHAREVAULT_SERVER_PORT", "7070")

	require.NoError(t, configs.InitConfig(t.TempDir()))
	assert.Equal(t, 7070, configs.GetConfig().Server.Port)
}

func TestValidateRejectsBadTTL(t *testing.T) {
	cfg := configs.Defaults()
	cfg.Transfer.UploadTTL = 30 * 24 * time.Hour

	assert.Error(t, cfg.Validate())
}

func TestSQLiteDSN(t *testing.T) {
	cfg := configs.DBConfig{Type: configs.SQLite, Database: "data/share"}
	assert.Contains(t, cfg.GetDSN(), "file:data/share.db?")
	assert.Contains(t, cfg.GetDSN(), "_txlock=immediate")

	cfg.Database = "x.sqlite"
	assert.Contains(t, cfg.GetDSN(), "file:x.sqlite?")
}
