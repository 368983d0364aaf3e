// Package config loads the substrate's settings from TOML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tasknetics/taskcore/breaker"
	"github.com/tasknetics/taskcore/executor"
	"github.com/tasknetics/taskcore/ratelimit"
	"github.com/tasknetics/taskcore/retry"
)

// Config is the full substrate configuration.
type Config struct {
	Lock       LockConfig       `toml:"lock"`
	RateLimit  RateLimitConfig  `toml:"ratelimit"`
	Breaker    BreakerConfig    `toml:"breaker"`
	Retry      RetryConfig      `toml:"retry"`
	Executor   ExecutorConfig   `toml:"executor"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	EventLog   EventLogConfig   `toml:"eventlog"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// LockConfig configures the resource lock registry.
type LockConfig struct {
	// TimeoutSeconds is the auto-release hold timeout.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the hold timeout as a duration.
func (c LockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RateLimitConfig configures the per-class rate limiter.
type RateLimitConfig struct {
	// WindowSeconds is the trailing window length.
	WindowSeconds int `toml:"window_seconds"`

	// Margin scales each configured limit down, e.g. 0.8 admits up to
	// 80% of the raw limit.
	Margin float64 `toml:"margin"`

	// Classes maps resource class names to their window limits.
	Classes map[string]ClassLimits `toml:"classes"`
}

// ClassLimits are the raw per-window limits for one resource class.
type ClassLimits struct {
	RequestsPerWindow    int   `toml:"requests_per_window"`
	InputUnitsPerWindow  int64 `toml:"input_units_per_window"`
	OutputUnitsPerWindow int64 `toml:"output_units_per_window"`
}

// BreakerConfig configures circuit breaker defaults.
type BreakerConfig struct {
	FailureThreshold    int `toml:"failure_threshold"`
	ResetTimeoutSeconds int `toml:"reset_timeout_seconds"`
}

// RetryConfig configures the default retry policy.
type RetryConfig struct {
	MaxAttempts    int     `toml:"max_attempts"`
	InitialDelayMS int     `toml:"initial_delay_ms"`
	MaxDelayMS     int     `toml:"max_delay_ms"`
	BackoffFactor  float64 `toml:"backoff_factor"`
}

// ExecutorConfig configures the parallel step executor.
type ExecutorConfig struct {
	MaxParallel        int  `toml:"max_parallel"`
	StepTimeoutSeconds int  `toml:"step_timeout_seconds"`
	MaxRetries         int  `toml:"max_retries"`
	RetryFailed        bool `toml:"retry_failed"`
	AbortOnError       bool `toml:"abort_on_error"`
}

// CheckpointConfig configures checkpoint storage.
type CheckpointConfig struct {
	Dir string `toml:"dir"`
}

// EventLogConfig configures event persistence.
type EventLogConfig struct {
	// Path is the SQLite database file. Empty keeps events in memory.
	Path string `toml:"path"`

	// IndexPath enables full-text indexing of events when set.
	IndexPath string `toml:"index_path"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`

	// Protocol selects the OTLP transport, "http" or "grpc".
	Protocol string `toml:"protocol"`

	ServiceName string `toml:"service_name"`
}

// Default returns a configuration with every knob at its standard value.
func Default() *Config {
	return &Config{
		Lock: LockConfig{TimeoutSeconds: 300},
		RateLimit: RateLimitConfig{
			WindowSeconds: 60,
			Margin:        0.8,
			Classes:       map[string]ClassLimits{},
		},
		Breaker: BreakerConfig{
			FailureThreshold:    5,
			ResetTimeoutSeconds: 30,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMS: 1000,
			MaxDelayMS:     30000,
			BackoffFactor:  2.0,
		},
		Executor: ExecutorConfig{
			MaxParallel:        10,
			StepTimeoutSeconds: 30,
			MaxRetries:         2,
			RetryFailed:        true,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "http",
			ServiceName: "taskcore",
		},
	}
}

// LoadFile loads configuration from a TOML file, layered over defaults.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(string(content))
}

// Parse parses TOML content layered over defaults.
func Parse(content string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Lock.TimeoutSeconds <= 0 {
		return fmt.Errorf("lock.timeout_seconds must be positive")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("ratelimit.window_seconds must be positive")
	}
	if c.RateLimit.Margin <= 0 || c.RateLimit.Margin > 1 {
		return fmt.Errorf("ratelimit.margin must be in (0, 1], got %v", c.RateLimit.Margin)
	}
	for name, class := range c.RateLimit.Classes {
		if class.RequestsPerWindow < 0 || class.InputUnitsPerWindow < 0 || class.OutputUnitsPerWindow < 0 {
			return fmt.Errorf("ratelimit.classes.%s: limits must be non-negative", name)
		}
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be positive")
	}
	if c.Breaker.ResetTimeoutSeconds <= 0 {
		return fmt.Errorf("breaker.reset_timeout_seconds must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be at least 1")
	}
	if c.Executor.MaxParallel <= 0 {
		return fmt.Errorf("executor.max_parallel must be positive")
	}
	if c.Executor.StepTimeoutSeconds <= 0 {
		return fmt.Errorf("executor.step_timeout_seconds must be positive")
	}
	switch c.Telemetry.Protocol {
	case "", "http", "grpc":
	default:
		return fmt.Errorf("telemetry.protocol must be http or grpc, got %q", c.Telemetry.Protocol)
	}
	return nil
}

// BreakerSettings converts to the breaker package's settings type.
func (c *Config) BreakerSettings() breaker.Settings {
	return breaker.Settings{
		FailureThreshold: c.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(c.Breaker.ResetTimeoutSeconds) * time.Second,
	}
}

// RetryPolicy converts to the retry package's policy type.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:   c.Retry.MaxAttempts,
		InitialDelay:  time.Duration(c.Retry.InitialDelayMS) * time.Millisecond,
		MaxDelay:      time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		BackoffFactor: c.Retry.BackoffFactor,
	}
}

// ExecutorOptions converts to the executor package's options type.
func (c *Config) ExecutorOptions() executor.Options {
	return executor.Options{
		MaxParallel:  c.Executor.MaxParallel,
		StepTimeout:  time.Duration(c.Executor.StepTimeoutSeconds) * time.Second,
		MaxRetries:   c.Executor.MaxRetries,
		RetryFailed:  c.Executor.RetryFailed,
		AbortOnError: c.Executor.AbortOnError,
	}
}

// LimiterConfig converts to the rate limiter's window configuration.
func (c *Config) LimiterConfig() ratelimit.MemoryConfig {
	return ratelimit.MemoryConfig{
		Window: time.Duration(c.RateLimit.WindowSeconds) * time.Second,
		Margin: c.RateLimit.Margin,
	}
}

// ApplyLimits configures lim with every class in the configuration.
func (c *Config) ApplyLimits(lim ratelimit.Limiter) {
	for name, class := range c.RateLimit.Classes {
		lim.SetLimits(name, ratelimit.Limits{
			RequestsPerWindow:    class.RequestsPerWindow,
			InputUnitsPerWindow:  class.InputUnitsPerWindow,
			OutputUnitsPerWindow: class.OutputUnitsPerWindow,
		})
	}
}
