package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDRESS", "SECRET_KEY", "INSTANCE_PATH", "LOG_LEVEL", "POSTGRES_CONN",
		"DATABASE_DRIVER", "DATABASE_URL", "SESSION_TTL", "COOKIE_SECURE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigRequiresSecretKey(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: ":9000"
secret_key: from-file
instance_path: /var/lib/social
session_ttl: 1h
database:
  path: social.db
`), 0o600))
	t.Setenv("SERVER_ADDRESS", ":9100")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Address)
	assert.Equal(t, "from-file", cfg.SecretKey)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, driverSQLite, cfg.Database.Driver)
	assert.Equal(t, filepath.Join("/var/lib/social", "social.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/var/lib/social", "uploads"), cfg.UploadsPath())
	assert.Contains(t, cfg.DataSourceName(), "_pragma=foreign_keys(1)")
}

func TestLoadConfigPostgresConn(t *testing.T) {
	clearEnv(t)
	t.Setenv("SECRET_KEY", "s")
	t.Setenv("POSTGRES_CONN", "postgres://user:pass@db:5432/social?sslmode=disable")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, driverPgx, cfg.Database.Driver)
	assert.Equal(t, "postgres://user:pass@db:5432/social?sslmode=disable", cfg.DataSourceName())
}

func TestLoadConfigBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SECRET_KEY", "s")
	t.Setenv("SESSION_TTL", "forever")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.SecretKey = "s"
	require.NoError(t, cfg.Validate())

	cfg.Database.Path = ":memory:"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.SecretKey = "s"
	cfg.Database.Driver = driverPostgres
	assert.Error(t, cfg.Validate(), "postgres without DSN")

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestAllowedFile(t *testing.T) {
	cfg := defaultConfig()
	assert.True(t, cfg.allowedFile("cat.PNG"))
	assert.True(t, cfg.allowedFile("notes.docx"))
	assert.False(t, cfg.allowedFile("evil.exe"))
	assert.False(t, cfg.allowedFile("README"))
}
