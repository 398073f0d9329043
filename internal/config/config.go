package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML scalars like
// "250ms" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config holds the docgate gateway configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Search     SearchConfig     `yaml:"search"`
	Sharding   ShardingConfig   `yaml:"sharding"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_sec"`
}

// DatabaseConfig holds backing-store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	// Collections get their query indexes (base plus one per regional
	// partition) created at startup.
	Collections []string `yaml:"collections"`
}

// ResilienceConfig holds retry and circuit-breaker settings.
type ResilienceConfig struct {
	Enabled                 *bool         `yaml:"enabled"`
	MaxRetries              int           `yaml:"max_retries"`
	InitialRetryDelay       Duration      `yaml:"initial_retry_delay"`
	MaxRetryDelay           Duration      `yaml:"max_retry_delay"`
	JitterFraction          float64       `yaml:"jitter_fraction"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerCooldown  Duration      `yaml:"circuit_breaker_cooldown"`
}

// SearchConfig holds relevance-search settings.
type SearchConfig struct {
	Enabled        *bool              `yaml:"enabled"`
	MaxResults     int                `yaml:"max_results"`
	MinQueryLength int                `yaml:"min_query_length"`
	CacheTTL       Duration           `yaml:"cache_ttl"`
	FieldWeights   map[string]float64 `yaml:"field_weights"`
}

// ShardingConfig holds region-sharding settings.
type ShardingConfig struct {
	Enabled                 *bool             `yaml:"enabled"`
	RegionTable             map[string]string `yaml:"region_table"` // jurisdiction -> region; empty = built-in table
	EnableCrossRegionSearch *bool             `yaml:"enable_cross_region_fallback"`
	MigrationBatchSize      int               `yaml:"migration_batch_size"`
}

// CacheConfig holds cache-substrate settings.
type CacheConfig struct {
	Enabled              *bool         `yaml:"enabled"`
	MemoryCapacity       int           `yaml:"memory_capacity"`
	DurableCapacity      int           `yaml:"durable_capacity"`
	DurableMaxBytes      int64         `yaml:"durable_max_bytes"`
	CompressionThreshold int           `yaml:"compression_threshold_bytes"`
	SweepInterval        Duration      `yaml:"sweep_interval"`
	Path                 string        `yaml:"path"` // empty = in-memory durable tier
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "docgate:"
	}

	if c.Resilience.Enabled == nil {
		c.Resilience.Enabled = boolPtr(true)
	}
	if c.Resilience.MaxRetries <= 0 {
		c.Resilience.MaxRetries = 3
	}
	if c.Resilience.InitialRetryDelay <= 0 {
		c.Resilience.InitialRetryDelay = Duration(time.Second)
	}
	if c.Resilience.MaxRetryDelay <= 0 {
		c.Resilience.MaxRetryDelay = Duration(10 * time.Second)
	}
	if c.Resilience.JitterFraction <= 0 {
		c.Resilience.JitterFraction = 0.2
	}
	if c.Resilience.CircuitBreakerThreshold <= 0 {
		c.Resilience.CircuitBreakerThreshold = 5
	}
	if c.Resilience.CircuitBreakerCooldown <= 0 {
		c.Resilience.CircuitBreakerCooldown = Duration(5 * time.Minute)
	}

	if c.Search.Enabled == nil {
		c.Search.Enabled = boolPtr(true)
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 50
	}
	if c.Search.MinQueryLength <= 0 {
		c.Search.MinQueryLength = 2
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = Duration(10 * time.Minute)
	}

	if c.Sharding.Enabled == nil {
		c.Sharding.Enabled = boolPtr(true)
	}
	if c.Sharding.EnableCrossRegionSearch == nil {
		c.Sharding.EnableCrossRegionSearch = boolPtr(true)
	}
	if c.Sharding.MigrationBatchSize <= 0 {
		c.Sharding.MigrationBatchSize = 50
	}

	if c.Cache.Enabled == nil {
		c.Cache.Enabled = boolPtr(true)
	}
	if c.Cache.MemoryCapacity <= 0 {
		c.Cache.MemoryCapacity = 100
	}
	if c.Cache.DurableCapacity <= 0 {
		c.Cache.DurableCapacity = 500
	}
	if c.Cache.DurableMaxBytes <= 0 {
		c.Cache.DurableMaxBytes = 50 << 20 // 50 MB
	}
	if c.Cache.CompressionThreshold <= 0 {
		c.Cache.CompressionThreshold = 1 << 10 // 1 KB
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = Duration(5 * time.Minute)
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Resilience.MaxRetryDelay < c.Resilience.InitialRetryDelay {
		return fmt.Errorf(
			"resilience.max_retry_delay (%s) must be >= initial_retry_delay (%s)",
			c.Resilience.MaxRetryDelay, c.Resilience.InitialRetryDelay,
		)
	}
	if c.Resilience.JitterFraction >= 1 {
		return fmt.Errorf("resilience.jitter_fraction must be < 1, got %g", c.Resilience.JitterFraction)
	}
	for field, w := range c.Search.FieldWeights {
		if w <= 0 {
			return fmt.Errorf("search.field_weights.%s must be positive, got %g", field, w)
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

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

	// 3. Fallback to ./config/
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
