package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 20*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, int64(1<<20), cfg.MaxBodySize)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, DefaultCacheKey, cfg.CacheKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDUCTIONIST_HOST", "127.0.0.1")
	t.Setenv("REDUCTIONIST_PORT", "9000")
	t.Setenv("REDUCTIONIST_MEMORY_LIMIT", "1073741824")
	t.Setenv("REDUCTIONIST_S3_CONNECTION_LIMIT", "16")
	t.Setenv("REDUCTIONIST_USE_CPU_POOL", "true")
	t.Setenv("REDUCTIONIST_CACHE_ENABLED", "true")
	t.Setenv("REDUCTIONIST_CACHE_PATH", "/tmp/chunks")
	t.Setenv("REDUCTIONIST_CACHE_TTL", "3600")
	t.Setenv("REDUCTIONIST_CACHE_SIZE_LIMIT", "52428800")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, int64(1<<30), cfg.MemoryLimit)
	assert.Equal(t, int64(16), cfg.S3ConnectionLimit)
	assert.True(t, cfg.UseCPUPool)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, int64(50<<20), cfg.CacheSizeLimit)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidInteger(t *testing.T) {
	t.Setenv("REDUCTIONIST_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadInvalidBool(t *testing.T) {
	t.Setenv("REDUCTIONIST_CACHE_ENABLED", "maybe")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateCacheRequiresPath(t *testing.T) {
	cfg := Default()
	cfg.CacheEnabled = true
	assert.Error(t, cfg.Validate())
	cfg.CachePath = "/tmp/chunks"
	assert.NoError(t, cfg.Validate())
}

func TestValidateTLSRequiresFiles(t *testing.T) {
	cfg := Default()
	cfg.TLSEnabled = true
	assert.Error(t, cfg.Validate())
	cfg.TLSCert = "cert.pem"
	cfg.TLSKey = "key.pem"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCacheKeyTemplate(t *testing.T) {
	cfg := Default()
	cfg.CacheEnabled = true
	cfg.CachePath = "/tmp/chunks"

	cfg.CacheKey = "%source-%bucket-%object-%offset-%size"
	assert.NoError(t, cfg.Validate())

	cfg.CacheKey = "%source-%frobnicate"
	assert.Error(t, cfg.Validate())

	cfg.CacheKey = ""
	assert.Error(t, cfg.Validate())
}

func TestEffectiveCPULimit(t *testing.T) {
	cfg := Default()
	cfg.CPULimit = 4
	assert.Equal(t, int64(4), cfg.EffectiveCPULimit())
	cfg.CPULimit = 0
	assert.GreaterOrEqual(t, cfg.EffectiveCPULimit(), int64(1))
}
