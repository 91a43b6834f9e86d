// Package config provides configuration management for the engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/duration"
)

// Duration is an alias for the shared duration.Duration type.
type Duration = duration.Duration

// Config represents the complete engine configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Collector CollectorConfig `yaml:"collector"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Budget    BudgetConfig    `yaml:"budget"`
	Janitor   JanitorConfig   `yaml:"janitor"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains the operational HTTP server settings.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// Engine selects the backend: "badger" or "memory".
	Engine  string `yaml:"engine"`
	DataDir string `yaml:"data_dir"`
}

// RedisConfig contains settings for the shared Redis used by the cache tier
// and the queue views. Disabled means everything stays in-process.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	MemoryBudgetBytes int64    `yaml:"memory_budget_bytes"`
	DefaultTTL        Duration `yaml:"default_ttl"`
}

// SourceConfig describes one external content source.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`
	Timeout Duration          `yaml:"timeout"`
}

// CollectorConfig contains content collection settings.
type CollectorConfig struct {
	Primary             SourceConfig `yaml:"primary"`
	Fallback            SourceConfig `yaml:"fallback"`
	Groups              []string     `yaml:"groups"`
	WindowDays          int          `yaml:"window_days"`
	MaxPerGroup         int          `yaml:"max_per_group"`
	Keywords            []string     `yaml:"keywords"`
	MinDelay            Duration     `yaml:"min_delay"`
	RequestsPerMinute   int          `yaml:"requests_per_minute"`
	RetryAttempts       int          `yaml:"retry_attempts"`
	BackoffBase         Duration     `yaml:"backoff_base"`
	BackoffCap          Duration     `yaml:"backoff_cap"`
	PageSize            int          `yaml:"page_size"`
	PageTTL             Duration     `yaml:"page_ttl"`
	MaxReplyDepth       int          `yaml:"max_reply_depth"`
	ReplyLimit          int          `yaml:"reply_limit"`
	ReplySort           string       `yaml:"reply_sort"`
	HighValueProportion float64      `yaml:"high_value_proportion"`
	AnonymizationSalt   string       `yaml:"anonymization_salt"`
}

// BreakerConfig contains circuit breaker settings shared by all breakers.
type BreakerConfig struct {
	FailureThreshold  float64  `yaml:"failure_threshold"`
	MinimumThroughput int      `yaml:"minimum_throughput"`
	ResetTimeout      Duration `yaml:"reset_timeout"`
}

// BudgetConfig contains budget enforcement settings.
type BudgetConfig struct {
	ApproachingRatio float64  `yaml:"approaching_ratio"`
	CancelRatio      float64  `yaml:"cancel_ratio"`
	WebhookURL       string   `yaml:"webhook_url"`
	NotifyTimeout    Duration `yaml:"notify_timeout"`
}

// JanitorConfig contains cleanup sweep settings.
type JanitorConfig struct {
	Interval      Duration `yaml:"interval"`
	StaleJobAge   Duration `yaml:"stale_job_age"`
	RetryAttempts int      `yaml:"retry_attempts"`
	Retention     Duration `yaml:"retention"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "0.0.0.0:8080",
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Storage: StorageConfig{
			Engine:  "badger",
			DataDir: "./data",
		},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "engine",
		},
		Cache: CacheConfig{
			MemoryBudgetBytes: 32 << 20,
			DefaultTTL:        Duration(5 * time.Minute),
		},
		Collector: CollectorConfig{
			WindowDays:          30,
			MaxPerGroup:         500,
			MinDelay:            Duration(1 * time.Second),
			RequestsPerMinute:   30,
			RetryAttempts:       3,
			BackoffBase:         Duration(1 * time.Second),
			BackoffCap:          Duration(10 * time.Second),
			PageSize:            100,
			PageTTL:             Duration(10 * time.Minute),
			MaxReplyDepth:       3,
			ReplyLimit:          200,
			ReplySort:           "top",
			HighValueProportion: 0.1,
		},
		Breaker: BreakerConfig{
			FailureThreshold:  0.5,
			MinimumThroughput: 5,
			ResetTimeout:      Duration(30 * time.Second),
		},
		Budget: BudgetConfig{
			ApproachingRatio: 0.8,
			CancelRatio:      0.95,
			NotifyTimeout:    Duration(10 * time.Second),
		},
		Janitor: JanitorConfig{
			Interval:      Duration(1 * time.Hour),
			StaleJobAge:   Duration(24 * time.Hour),
			RetryAttempts: 3,
			Retention:     Duration(30 * 24 * time.Hour),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ENGINE_HTTP_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("ENGINE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("ENGINE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("ENGINE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ENGINE_GROUPS"); v != "" {
		c.Collector.Groups = strings.Split(v, ",")
	}
	if v := os.Getenv("ENGINE_ANONYMIZATION_SALT"); v != "" {
		c.Collector.AnonymizationSalt = v
	}
	if v := os.Getenv("ENGINE_WEBHOOK_URL"); v != "" {
		c.Budget.WebhookURL = v
	}
	if v := os.Getenv("ENGINE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	switch c.Storage.Engine {
	case "badger":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the badger engine")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.engine must be badger or memory, got %q", c.Storage.Engine)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Breaker.FailureThreshold <= 0 || c.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("breaker.failure_threshold must be in (0, 1]")
	}
	if c.Budget.CancelRatio < c.Budget.ApproachingRatio {
		return fmt.Errorf("budget.cancel_ratio must not be below budget.approaching_ratio")
	}
	if c.Collector.MaxReplyDepth < 0 || c.Collector.MaxReplyDepth > 3 {
		return fmt.Errorf("collector.max_reply_depth must be between 0 and 3")
	}
	if c.Collector.HighValueProportion < 0 || c.Collector.HighValueProportion > 1 {
		return fmt.Errorf("collector.high_value_proportion must be in [0, 1]")
	}
	return nil
}
