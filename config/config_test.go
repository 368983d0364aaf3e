package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tasknetics/taskcore/ratelimit"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}
}

func TestParse_LayersOverDefaults(t *testing.T) {
	cfg, err := Parse(`
[lock]
timeout_seconds = 120

[ratelimit]
margin = 0.5

[ratelimit.classes.agent]
requests_per_window = 50
input_units_per_window = 200000

[telemetry]
enabled = true
endpoint = "collector:4318"
`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Lock.Timeout() != 2*time.Minute {
		t.Errorf("lock timeout = %v", cfg.Lock.Timeout())
	}
	if cfg.RateLimit.Margin != 0.5 {
		t.Errorf("margin = %v", cfg.RateLimit.Margin)
	}
	// Untouched sections keep their defaults.
	if cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("window = %d, want default 60", cfg.RateLimit.WindowSeconds)
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("failure threshold = %d, want default 5", cfg.Breaker.FailureThreshold)
	}

	agent, ok := cfg.RateLimit.Classes["agent"]
	if !ok {
		t.Fatal("agent class missing")
	}
	if agent.RequestsPerWindow != 50 || agent.InputUnitsPerWindow != 200000 {
		t.Errorf("agent limits = %+v", agent)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "collector:4318" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestParse_MalformedTOML(t *testing.T) {
	if _, err := Parse("not [valid toml"); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero lock timeout", func(c *Config) { c.Lock.TimeoutSeconds = 0 }, "lock.timeout_seconds"},
		{"zero window", func(c *Config) { c.RateLimit.WindowSeconds = 0 }, "window_seconds"},
		{"margin too large", func(c *Config) { c.RateLimit.Margin = 1.5 }, "margin"},
		{"margin zero", func(c *Config) { c.RateLimit.Margin = 0 }, "margin"},
		{"negative class limit", func(c *Config) {
			c.RateLimit.Classes["agent"] = ClassLimits{RequestsPerWindow: -1}
		}, "non-negative"},
		{"zero threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }, "failure_threshold"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"backoff below one", func(c *Config) { c.Retry.BackoffFactor = 0.5 }, "backoff_factor"},
		{"zero parallel", func(c *Config) { c.Executor.MaxParallel = 0 }, "max_parallel"},
		{"bad protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }, "protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskcore.toml")
	content := "[executor]\nmax_parallel = 4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Executor.MaxParallel != 4 {
		t.Errorf("max_parallel = %d", cfg.Executor.MaxParallel)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Breaker = BreakerConfig{FailureThreshold: 7, ResetTimeoutSeconds: 45}
	cfg.Retry = RetryConfig{MaxAttempts: 4, InitialDelayMS: 250, MaxDelayMS: 8000, BackoffFactor: 3}
	cfg.Executor = ExecutorConfig{MaxParallel: 6, StepTimeoutSeconds: 90, MaxRetries: 1, RetryFailed: true, AbortOnError: true}

	bs := cfg.BreakerSettings()
	if bs.FailureThreshold != 7 || bs.ResetTimeout != 45*time.Second {
		t.Errorf("BreakerSettings() = %+v", bs)
	}

	rp := cfg.RetryPolicy()
	if rp.MaxAttempts != 4 || rp.InitialDelay != 250*time.Millisecond || rp.MaxDelay != 8*time.Second || rp.BackoffFactor != 3 {
		t.Errorf("RetryPolicy() = %+v", rp)
	}

	eo := cfg.ExecutorOptions()
	if eo.MaxParallel != 6 || eo.StepTimeout != 90*time.Second || !eo.RetryFailed || !eo.AbortOnError {
		t.Errorf("ExecutorOptions() = %+v", eo)
	}

	lc := cfg.LimiterConfig()
	if lc.Window != time.Minute || lc.Margin != 0.8 {
		t.Errorf("LimiterConfig() = %+v", lc)
	}
}

func TestApplyLimits(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Classes["agent"] = ClassLimits{RequestsPerWindow: 1}

	lim := ratelimit.NewMemoryLimiter(ratelimit.WithConfig(ratelimit.MemoryConfig{
		PollInterval: time.Millisecond,
	}))
	defer lim.Close()
	cfg.ApplyLimits(lim)

	if err := lim.WaitForCapacity(context.Background(), "agent", 0); err != nil {
		t.Fatalf("first call must be admitted: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := lim.WaitForCapacity(ctx, "agent", 0); err == nil {
		t.Error("configured request cap should block the second call")
	}
}
