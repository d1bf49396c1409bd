package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/openmediamap")
	t.Setenv("APP_ENV", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, devSigningKey, cfg.Auth.SigningKey)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 5*time.Second, cfg.Spaces.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.Spaces.RequestTimeout)
	assert.Equal(t, 2, cfg.Spaces.MaxRetries)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/app")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DATABASE_QUERY_TIMEOUT", "2s")
	t.Setenv("SPACES_BUCKET", "photos")
	t.Setenv("SPACES_CDN_URL", "https://cdn.example.com/")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, "https://cdn.example.com", cfg.Spaces.CDNBaseURL)
}

func TestFromEnvErrors(t *testing.T) {
	t.Run("production requires signing key", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://db/app")
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SIGNING_KEY", "")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SIGNING_KEY")
	})

	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://db/app")
		t.Setenv("REDIS_READ_TIMEOUT", "soon")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REDIS_READ_TIMEOUT")
	})

	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")

		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("bucket without cdn", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://db/app")
		t.Setenv("SPACES_BUCKET", "photos")
		t.Setenv("SPACES_CDN_URL", "")

		_, err := FromEnv()
		require.Error(t, err)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OMM_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("OMM_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("OMM_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
