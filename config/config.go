// Package config loads server configuration from the environment.
// Each setting has exactly one startup-time binding with the
// REDUCTIONIST_ prefix; nothing is reloaded at runtime.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/c360/reductionist/errors"
)

// Defaults for optional settings.
const (
	DefaultHost               = "0.0.0.0"
	DefaultPort               = 8080
	DefaultShutdownTimeout    = 20 * time.Second
	DefaultMaxBodySize        = 1 << 20
	DefaultCacheTTL           = 24 * time.Hour
	DefaultCachePruneInterval = 60 * time.Second
	DefaultCacheQueueSize     = 32
	DefaultCacheKey           = "%source-%bucket-%object-%offset-%size-%auth"
)

// Config holds all startup-time settings.
type Config struct {
	// Listener
	Host       string
	Port       int
	TLSEnabled bool
	TLSCert    string
	TLSKey     string

	ShutdownTimeout time.Duration
	MaxBodySize     int64

	// Resource governor. Zero means unlimited for MemoryLimit and
	// S3ConnectionLimit; zero CPULimit means NumCPU-1.
	MemoryLimit       int64
	S3ConnectionLimit int64
	CPULimit          int64
	UseCPUPool        bool

	// Chunk cache
	CacheEnabled       bool
	CachePath          string
	CacheTTL           time.Duration
	CachePruneInterval time.Duration
	CacheSizeLimit     int64
	CacheQueueSize     int
	CacheKey           string
	CacheBypassAuth    bool

	// Tracing
	TracingEnabled  bool
	TracingEndpoint string
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		Host:               DefaultHost,
		Port:               DefaultPort,
		ShutdownTimeout:    DefaultShutdownTimeout,
		MaxBodySize:        DefaultMaxBodySize,
		CacheTTL:           DefaultCacheTTL,
		CachePruneInterval: DefaultCachePruneInterval,
		CacheQueueSize:     DefaultCacheQueueSize,
		CacheKey:           DefaultCacheKey,
	}
}

// Load reads configuration from the environment on top of defaults.
func Load() (*Config, error) {
	cfg := Default()
	var err error

	if v := os.Getenv("REDUCTIONIST_HOST"); v != "" {
		cfg.Host = v
	}
	if cfg.Port, err = intVar("REDUCTIONIST_PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.TLSEnabled, err = boolVar("REDUCTIONIST_TLS_ENABLED", cfg.TLSEnabled); err != nil {
		return nil, err
	}
	cfg.TLSCert = os.Getenv("REDUCTIONIST_TLS_CERT_FILE")
	cfg.TLSKey = os.Getenv("REDUCTIONIST_TLS_KEY_FILE")
	if cfg.ShutdownTimeout, err = secondsVar("REDUCTIONIST_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = int64Var("REDUCTIONIST_MAX_BODY_SIZE", cfg.MaxBodySize); err != nil {
		return nil, err
	}

	if cfg.MemoryLimit, err = int64Var("REDUCTIONIST_MEMORY_LIMIT", cfg.MemoryLimit); err != nil {
		return nil, err
	}
	if cfg.S3ConnectionLimit, err = int64Var("REDUCTIONIST_S3_CONNECTION_LIMIT", cfg.S3ConnectionLimit); err != nil {
		return nil, err
	}
	if cfg.CPULimit, err = int64Var("REDUCTIONIST_CPU_LIMIT", cfg.CPULimit); err != nil {
		return nil, err
	}
	if cfg.UseCPUPool, err = boolVar("REDUCTIONIST_USE_CPU_POOL", cfg.UseCPUPool); err != nil {
		return nil, err
	}

	if cfg.CacheEnabled, err = boolVar("REDUCTIONIST_CACHE_ENABLED", cfg.CacheEnabled); err != nil {
		return nil, err
	}
	if v := os.Getenv("REDUCTIONIST_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if cfg.CacheTTL, err = secondsVar("REDUCTIONIST_CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.CachePruneInterval, err = secondsVar("REDUCTIONIST_CACHE_PRUNE_INTERVAL", cfg.CachePruneInterval); err != nil {
		return nil, err
	}
	if cfg.CacheSizeLimit, err = int64Var("REDUCTIONIST_CACHE_SIZE_LIMIT", cfg.CacheSizeLimit); err != nil {
		return nil, err
	}
	if cfg.CacheQueueSize, err = intVar("REDUCTIONIST_CACHE_QUEUE_SIZE", cfg.CacheQueueSize); err != nil {
		return nil, err
	}
	if v := os.Getenv("REDUCTIONIST_CACHE_KEY"); v != "" {
		cfg.CacheKey = v
	}
	if cfg.CacheBypassAuth, err = boolVar("REDUCTIONIST_CACHE_BYPASS_AUTH", cfg.CacheBypassAuth); err != nil {
		return nil, err
	}

	if cfg.TracingEnabled, err = boolVar("REDUCTIONIST_TRACING_ENABLED", cfg.TracingEnabled); err != nil {
		return nil, err
	}
	cfg.TracingEndpoint = os.Getenv("REDUCTIONIST_TRACING_ENDPOINT")

	return cfg, nil
}

// EffectiveCPULimit resolves the CPU limit, leaving one core for I/O when
// unset.
func (c *Config) EffectiveCPULimit() int64 {
	if c.CPULimit > 0 {
		return c.CPULimit
	}
	n := int64(runtime.NumCPU()) - 1
	if n < 1 {
		n = 1
	}
	return n
}

// ListenAddr returns the host:port listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks cross-field consistency of the configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Newf(errors.KindInternal, "config", "Validate", "port %d out of range", c.Port)
	}
	if c.MaxBodySize <= 0 {
		return errors.New(errors.KindInternal, "config", "Validate", "max body size must be positive")
	}
	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return errors.New(errors.KindInternal, "config", "Validate",
			"TLS enabled but cert or key file not set")
	}
	if c.MemoryLimit < 0 || c.S3ConnectionLimit < 0 || c.CPULimit < 0 {
		return errors.New(errors.KindInternal, "config", "Validate", "resource limits must be nonnegative")
	}
	if c.CacheEnabled {
		if c.CachePath == "" {
			return errors.New(errors.KindInternal, "config", "Validate",
				"cache enabled but REDUCTIONIST_CACHE_PATH not set")
		}
		if c.CacheTTL <= 0 {
			return errors.New(errors.KindInternal, "config", "Validate", "cache TTL must be positive")
		}
		if c.CachePruneInterval <= 0 {
			return errors.New(errors.KindInternal, "config", "Validate", "cache prune interval must be positive")
		}
		if c.CacheQueueSize <= 0 {
			return errors.New(errors.KindInternal, "config", "Validate", "cache queue size must be positive")
		}
		if err := validateCacheKey(c.CacheKey); err != nil {
			return err
		}
	}
	return nil
}

// cacheKeyTokens are the tokens substitutable in a cache key template.
var cacheKeyTokens = []string{
	"%source", "%bucket", "%object", "%offset", "%size",
	"%dtype", "%byte_order", "%compression", "%auth",
}

// validateCacheKey rejects templates with unknown tokens. Substituted
// values have their own '%' characters sanitized, so any '%' left after
// removing known tokens is a configuration error.
func validateCacheKey(key string) error {
	if key == "" {
		return errors.New(errors.KindInternal, "config", "Validate", "cache key template is empty")
	}
	remainder := key
	for _, token := range cacheKeyTokens {
		remainder = strings.ReplaceAll(remainder, token, "")
	}
	if strings.Contains(remainder, "%") {
		return errors.Newf(errors.KindInternal, "config", "Validate",
			"cache key template %q contains unknown tokens", key)
	}
	return nil
}

func intVar(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Newf(errors.KindInternal, "config", "Load", "%s: invalid integer %q", name, v)
	}
	return n, nil
}

func int64Var(name string, def int64) (int64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Newf(errors.KindInternal, "config", "Load", "%s: invalid integer %q", name, v)
	}
	return n, nil
}

func boolVar(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Newf(errors.KindInternal, "config", "Load", "%s: invalid boolean %q", name, v)
	}
	return b, nil
}

func secondsVar(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Newf(errors.KindInternal, "config", "Load", "%s: invalid seconds value %q", name, v)
	}
	return time.Duration(n) * time.Second, nil
}
