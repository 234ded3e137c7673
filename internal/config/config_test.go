package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(1), cfg.Server.WorkerID)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "skillexchange.ledger", cfg.Kafka.Topic.LedgerEvents)
	assert.False(t, cfg.Payment.Verify)
	assert.Equal(t, int64(0), cfg.Business.CommunityUserID)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  worker_id: 12
database:
  driver: postgres
  dsn: "postgres://u:p@localhost/db"
business:
  community_user_id: 7
  audit_interval: 1m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(12), cfg.Server.WorkerID)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int64(7), cfg.Business.CommunityUserID)
	assert.Equal(t, time.Minute, cfg.Business.AuditInterval)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SKILLEX_SERVER_PORT", "7070")
	t.Setenv("SKILLEX_SERVER_WORKER_ID", "3")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, int64(3), cfg.Server.WorkerID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"worker id":    "server:\n  worker_id: 1024\n",
		"driver":       "database:\n  driver: oracle\n",
		"payment":      "payment:\n  verify: true\n",
		"auth":         "auth:\n  enabled: true\n",
		"community id": "business:\n  community_user_id: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
