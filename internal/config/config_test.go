package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "SERVER_READ_TIMEOUT", "DATABASE_DRIVER", "DATABASE_DSN", "POSTGRES_URL",
	"DB_HOST", "DB_PORT", "DB_SSLMODE", "APP_ENV", "INVOICES_STORAGE_ERROR_POLICY",
	"CACHE_TTL", "REDIS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 15, cfg.Server.ReadTimeout)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "report", cfg.App.StorageErrorPolicy)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, "invoices:revalidate", cfg.Redis.Channel)
		assert.Empty(t, cfg.Redis.Addr)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("environment overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "9000")
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("DB_PORT", "5433")
		t.Setenv("INVOICES_STORAGE_ERROR_POLICY", "swallow")
		t.Setenv("CACHE_TTL", "30s")
		t.Setenv("APP_ENV", "production")

		cfg, err := Load(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.Server.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "swallow", cfg.App.StorageErrorPolicy)
		assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("legacy POSTGRES_URL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POSTGRES_URL", "postgres://u:p@db:5432/app?sslmode=require")

		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db:5432/app?sslmode=require", cfg.Database.DSN())
	})

	t.Run("config file", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		yaml := "port: \"7070\"\ndatabase_driver: sqlite\ndb_name: local\nlog_format: json\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "7070", cfg.Server.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "local.db", cfg.Database.DSN())
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INVOICES_STORAGE_ERROR_POLICY", "ignore")

		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "invoices", SSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=invoices sslmode=disable", d.DSN())
	assert.Equal(t, "postgres://u:p@localhost:5432/invoices?sslmode=disable", d.URL())
}
