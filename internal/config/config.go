package config

import (
	"fmt"
	"math"
	"time"

	"github.com/quotagate/quotagate/internal/core/engine"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then an optional YAML config file,
// then QUOTAGATE_* environment variables and flag overrides.
type Config struct {
	Limiter LimiterConfig `mapstructure:"limiter" yaml:"limiter" json:"limiter"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store" json:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Health  HealthConfig  `mapstructure:"health" yaml:"health" json:"health"`
	Demo    DemoConfig    `mapstructure:"demo" yaml:"demo" json:"demo"`
	Stress  StressConfig  `mapstructure:"stress" yaml:"stress" json:"stress"`
}

// LimiterConfig describes the single outbound quota.
type LimiterConfig struct {
	// MaxRequests is the number of permits allowed per window.
	MaxRequests int `mapstructure:"max_requests" yaml:"max_requests" json:"max_requests"`

	// Window is the trailing window duration.
	Window time.Duration `mapstructure:"window" yaml:"window" json:"window"`

	// Margin scales MaxRequests down by a ratio in (0, 1]. Zero disables it.
	Margin float64 `mapstructure:"margin" yaml:"margin" json:"margin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// MaxAdmitTimeout caps the timeout a client may request on /v1/admit.
	MaxAdmitTimeout time.Duration `mapstructure:"max_admit_timeout" yaml:"max_admit_timeout" json:"max_admit_timeout"`
}

// StoreConfig contains database configuration for the libsql admission journal
type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver" json:"driver"`
	Path      string `mapstructure:"path" yaml:"path" json:"path"`
	URL       string `mapstructure:"url" yaml:"url" json:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token" json:"-"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level" json:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile" yaml:"profile" json:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" json:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// DemoConfig tunes the scripted demo run. Quota and Window are separate from
// the limiter section.
type DemoConfig struct {
	Quota     int           `mapstructure:"quota" yaml:"quota" json:"quota"`
	Window    time.Duration `mapstructure:"window" yaml:"window" json:"window"`
	CallDelay time.Duration `mapstructure:"call_delay" yaml:"call_delay" json:"call_delay"`
}

// Limiter returns the limiter section the demo runs against.
func (d DemoConfig) Limiter() LimiterConfig {
	return LimiterConfig{MaxRequests: d.Quota, Window: d.Window}
}

// StressConfig tunes the concurrent stress run.
type StressConfig struct {
	Workers   int           `mapstructure:"workers" yaml:"workers" json:"workers"`
	Rounds    int           `mapstructure:"rounds" yaml:"rounds" json:"rounds"`
	MaxBatch  int           `mapstructure:"max_batch" yaml:"max_batch" json:"max_batch"`
	MaxJitter time.Duration `mapstructure:"max_jitter" yaml:"max_jitter" json:"max_jitter"`
}

// EffectiveLimit applies the safety margin to MaxRequests, never going below 1.
func (l LimiterConfig) EffectiveLimit() int {
	if l.Margin <= 0 || l.Margin > 1 {
		return l.MaxRequests
	}
	adjusted := int(math.Floor(float64(l.MaxRequests) * l.Margin))
	if adjusted < 1 {
		adjusted = 1
	}
	return adjusted
}

// Validate reports configuration the limiter cannot be built from.
func (l LimiterConfig) Validate() error {
	if l.MaxRequests <= 0 {
		return fmt.Errorf("%w: limiter.max_requests must be positive, got %d", engine.ErrInvalidConfiguration, l.MaxRequests)
	}
	if l.Window < 0 {
		return fmt.Errorf("%w: limiter.window must not be negative, got %s", engine.ErrInvalidConfiguration, l.Window)
	}
	if l.Margin < 0 || l.Margin > 1 {
		return fmt.Errorf("%w: limiter.margin must be within [0, 1], got %v", engine.ErrInvalidConfiguration, l.Margin)
	}
	return nil
}

// NewLimiter builds a rate limiter from the limiter section.
func (l LimiterConfig) NewLimiter(opts ...engine.Option) (*engine.RateLimiter, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return engine.New(l.EffectiveLimit(), l.Window, opts...)
}

// Validate checks every section that has hard constraints.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", engine.ErrInvalidConfiguration)
	}
	if err := c.Limiter.Validate(); err != nil {
		return err
	}
	if c.Stress.Workers < 0 || c.Stress.Rounds < 0 || c.Stress.MaxBatch < 0 {
		return fmt.Errorf("%w: stress settings must not be negative", engine.ErrInvalidConfiguration)
	}
	return nil
}
