package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session drivers.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds the mlsearch service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Index    IndexConfig    `yaml:"index"`
	Session  SessionConfig  `yaml:"session"`
	Cache    CacheConfig    `yaml:"cache"`
	URLSync  URLSyncConfig  `yaml:"urlsync"`
	Surfaces SurfacesConfig `yaml:"surfaces"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig holds search backend settings.
type IndexConfig struct {
	Addresses      []string `yaml:"addresses"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	IndexPrefix    string   `yaml:"index_prefix"`
	RequestTimeout int      `yaml:"request_timeout_ms"`
	RetryBackoff   int      `yaml:"retry_backoff_ms"`
	// MaxResultWindow is the deepest from+size the backend serves.
	MaxResultWindow int `yaml:"max_result_window"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	Driver     string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
	KeyPrefix  string   `yaml:"key_prefix"`
	TTLMinutes int      `yaml:"ttl_minutes"`
	// MaxSessions bounds the memory driver.
	MaxSessions int `yaml:"max_sessions"`
}

// CacheConfig holds the response cache settings. Size 0 disables the cache.
type CacheConfig struct {
	Size   int `yaml:"size"`
	TTLSec int `yaml:"ttl_sec"`
}

// URLSyncConfig holds URL write settings for mounted surfaces.
type URLSyncConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// SurfacesConfig bounds the mounted surfaces.
type SurfacesConfig struct {
	IdleMinutes int `yaml:"idle_minutes"`
	Max         int `yaml:"max"`
}

// RequestTimeoutDuration returns the per-request backend timeout.
func (c IndexConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// RetryBackoffDuration returns the pause before the single retry.
func (c IndexConfig) RetryBackoffDuration() time.Duration {
	return time.Duration(c.RetryBackoff) * time.Millisecond
}

// TTL returns the session lifetime.
func (c SessionConfig) TTL() time.Duration { return time.Duration(c.TTLMinutes) * time.Minute }

// TTL returns the response cache lifetime.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

// Debounce returns the URL write delay.
func (c URLSyncConfig) Debounce() time.Duration { return time.Duration(c.DebounceMS) * time.Millisecond }

// IdleTTL returns how long an untouched surface stays mounted.
func (c SurfacesConfig) IdleTTL() time.Duration { return time.Duration(c.IdleMinutes) * time.Minute }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.RequestTimeout <= 0 {
		c.Index.RequestTimeout = 5000
	}
	if c.Index.RetryBackoff <= 0 {
		c.Index.RetryBackoff = 200
	}
	if c.Index.MaxResultWindow <= 0 {
		c.Index.MaxResultWindow = 10000
	}
	if c.Session.Driver == "" {
		c.Session.Driver = SessionMemory
	}
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 30
	}
	if c.Session.MaxSessions <= 0 {
		c.Session.MaxSessions = 10000
	}
	if c.Session.KeyPrefix == "" {
		c.Session.KeyPrefix = "mlsearch:session:"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 30
	}
	if c.URLSync.DebounceMS <= 0 {
		c.URLSync.DebounceMS = 500
	}
	if c.Surfaces.IdleMinutes <= 0 {
		c.Surfaces.IdleMinutes = 30
	}
	if c.Surfaces.Max <= 0 {
		c.Surfaces.Max = 10000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if len(c.Index.Addresses) == 0 {
		errs = append(errs, fmt.Errorf("index.addresses is required"))
	}
	switch c.Session.Driver {
	case SessionMemory:
	case SessionRedis:
		if len(c.Session.Addrs) == 0 {
			errs = append(errs, fmt.Errorf("session.addrs is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.driver must be %q or %q, got %q", SessionMemory, SessionRedis, c.Session.Driver))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size))
	}
	return errors.Join(errs...)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
