package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("STORAGE_BUCKET", "")
	t.Setenv("CACHE_TTL_SECONDS", "")

	cfg := FromEnv()
	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, "documents", cfg.StorageBucket)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.StorageUseSSL)
	assert.Equal(t, 20, cfg.DBMaxOpen)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("CACHE_TTL_SECONDS", "30")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("GIT_BRANCH", "feature/licenses")

	cfg := FromEnv()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.StorageUseSSL)
	assert.Equal(t, "feature/licenses", cfg.GitBranch)
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("ACCESS_TTL_SECONDS", "soon")
	t.Setenv("STORAGE_USE_SSL", "maybe")

	cfg := FromEnv()
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.False(t, cfg.StorageUseSSL)
}
