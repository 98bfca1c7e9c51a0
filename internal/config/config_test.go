package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreNone, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.Debug)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("ORIGIN_PATTERNS", "localhost:5173,example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"localhost:5173", "example.com"}, cfg.OriginPatterns)
}

func TestLoadRejectsBadBackends(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err = Load()
	assert.Error(t, err)
}
