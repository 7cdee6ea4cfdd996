// Package config provides configuration loading for the pipeline service.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" json:"scheduler"`
	Resilience ResilienceConfig `yaml:"resilience" json:"resilience"`
	Webhook    WebhookConfig    `yaml:"webhook" json:"webhook"`
	Rules      RulesConfig      `yaml:"rules" json:"rules"`
}

// ServerConfig configures the service process.
type ServerConfig struct {
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "postgres".
	Backend string `yaml:"backend" json:"backend"`

	// Path is the sqlite database file path.
	Path string `yaml:"path" json:"path"`

	// DSN is the postgres connection string.
	DSN string `yaml:"dsn" json:"dsn"`

	// Redis configures the optional snapshot cache.
	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the snapshot cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// SchedulerConfig configures the durable scheduler.
type SchedulerConfig struct {
	// TickInterval is how often due jobs and elapsed-time triggers
	// are scanned.
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// MaxCascadeDepth bounds automated cascade chains.
	MaxCascadeDepth int `yaml:"max_cascade_depth" json:"max_cascade_depth"`
}

// ResilienceConfig configures collaborator call protection.
type ResilienceConfig struct {
	MaxConcurrent           int           `yaml:"max_concurrent" json:"max_concurrent"`
	RetryMaxAttempts        int           `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryInitialDelay       time.Duration `yaml:"retry_initial_delay" json:"retry_initial_delay"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout" json:"circuit_breaker_timeout"`
	CallTimeout             time.Duration `yaml:"call_timeout" json:"call_timeout"`
}

// WebhookConfig configures outbound notification delivery.
type WebhookConfig struct {
	Endpoint      string        `yaml:"endpoint" json:"endpoint"`
	SigningSecret string        `yaml:"signing_secret" json:"signing_secret"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// RulesConfig configures rule file loading.
type RulesConfig struct {
	// Path is a yaml file or directory of yaml files holding rule
	// and approval flow definitions.
	Path string `yaml:"path" json:"path"`

	// Watch enables hot reload on file changes.
	Watch bool `yaml:"watch" json:"watch"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Backend: "memory",
			Redis: RedisConfig{
				TTL: 5 * time.Minute,
			},
		},
		Scheduler: SchedulerConfig{
			TickInterval:    30 * time.Second,
			MaxCascadeDepth: 8,
		},
		Resilience: ResilienceConfig{
			MaxConcurrent:           10,
			RetryMaxAttempts:        3,
			RetryInitialDelay:       100 * time.Millisecond,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
			CallTimeout:             10 * time.Second,
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: sqlite backend requires storage.path", ErrValidationFailed)
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: postgres backend requires storage.dsn", ErrValidationFailed)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrValidationFailed, c.Storage.Backend)
	}

	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("%w: scheduler.tick_interval must be positive", ErrValidationFailed)
	}
	if c.Scheduler.MaxCascadeDepth <= 0 {
		return fmt.Errorf("%w: scheduler.max_cascade_depth must be positive", ErrValidationFailed)
	}
	if c.Storage.Redis.Enabled && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("%w: redis cache requires storage.redis.addr", ErrValidationFailed)
	}
	return nil
}
