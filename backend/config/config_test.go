package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_URL", "DB_POOL_SIZE", "CACHE_TTL", "TIMEZONE", "AUTH_RATE_LIMIT", "MONGODB_DB"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, 10, cfg.DBPoolSize)
	assert.Equal(t, 30, cfg.AuthRateLimit)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, "gainz", cfg.MongoDB)
}

func TestLoadFromEnvFile(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("DB_POOL_SIZE", "")
	os.Unsetenv("JWT_SIGNING_KEY")
	os.Unsetenv("DB_POOL_SIZE")

	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("JWT_SIGNING_KEY=secret\nDB_POOL_SIZE=4\n"), 0o600))

	cfg, err := Load(file, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.JWTSigningKey)
	assert.Equal(t, 4, cfg.DBPoolSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DB_POOL_SIZE", "zero")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_POOL_SIZE", "")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.JWTSigningKey = "key"
	assert.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/gainz"
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.SMTPEnabled())
	assert.False(t, cfg.CloudinaryEnabled())
}
