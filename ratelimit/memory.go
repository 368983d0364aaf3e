package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sample is one usage record inside the window.
// A reservation carries requests=1 with zero units; a RecordUsage sample
// carries the actual units with requests=0, so actuals never double-count
// the request slot their reservation already took.
type sample struct {
	at          time.Time
	requests    int
	inputUnits  int64
	outputUnits int64
}

// window tracks the trailing usage for one resource class.
type window struct {
	limits  Limits
	samples []sample
}

// prune drops samples older than the window. Called on read and write.
func (w *window) prune(cutoff time.Time) {
	keep := w.samples[:0]
	for _, s := range w.samples {
		if s.at.After(cutoff) {
			keep = append(keep, s)
		}
	}
	w.samples = keep
}

// usage sums the samples still inside the window.
func (w *window) usage() Usage {
	var u Usage
	for _, s := range w.samples {
		u.Requests += s.requests
		u.InputUnits += s.inputUnits
		u.OutputUnits += s.outputUnits
	}
	return u
}

// MemoryLimiter implements Limiter with in-process sliding windows.
// Capacity is a shared global counter per class, visible to and consumed
// cooperatively by every task in the process. Safe for concurrent use.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     MemoryConfig
	closed  bool
	nowFunc func() time.Time // for testing
}

// MemoryConfig tunes the limiter.
type MemoryConfig struct {
	// Window is the trailing measurement interval. Default: 60s.
	Window time.Duration

	// Margin scales limits down before admission. Default: 0.8.
	Margin float64

	// PollInterval is the sleep between capacity re-checks. Default: 1s.
	PollInterval time.Duration
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithConfig sets the window configuration.
func WithConfig(cfg MemoryConfig) MemoryOption {
	return func(m *MemoryLimiter) {
		if cfg.Window > 0 {
			m.cfg.Window = cfg.Window
		}
		if cfg.Margin > 0 && cfg.Margin <= 1 {
			m.cfg.Margin = cfg.Margin
		}
		if cfg.PollInterval > 0 {
			m.cfg.PollInterval = cfg.PollInterval
		}
	}
}

// WithNowFunc overrides the clock. For tests.
func WithNowFunc(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) {
		m.nowFunc = now
	}
}

// NewMemoryLimiter creates a new in-memory sliding-window limiter.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		windows: make(map[string]*window),
		cfg: MemoryConfig{
			Window:       DefaultWindow,
			Margin:       DefaultMargin,
			PollInterval: DefaultPollInterval,
		},
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLimits configures the limits for a resource class.
func (m *MemoryLimiter) SetLimits(class string, limits Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || class == "" {
		return
	}
	w, ok := m.windows[class]
	if !ok {
		w = &window{}
		m.windows[class] = w
	}
	w.limits = limits
}

// WaitForCapacity blocks until the class has headroom, then reserves a
// request slot. Admission checks the request count and the input estimate
// against margin-scaled limits; output is checked against actuals only.
func (m *MemoryLimiter) WaitForCapacity(ctx context.Context, class string, estimatedInput int64) error {
	if class == "" {
		return ErrInvalidClass
	}

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}

		w, ok := m.windows[class]
		if !ok {
			// Unconfigured class: unlimited.
			m.mu.Unlock()
			return nil
		}

		now := m.nowFunc()
		w.prune(now.Add(-m.cfg.Window))

		if m.admits(w, estimatedInput) {
			// Reserve the request slot; actuals arrive via RecordUsage.
			w.samples = append(w.samples, sample{at: now, requests: 1})
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// admits checks the window against its margin-scaled limits.
// Caller must hold m.mu.
func (m *MemoryLimiter) admits(w *window, estimatedInput int64) bool {
	u := w.usage()
	lim := w.limits

	if lim.RequestsPerWindow > 0 &&
		float64(u.Requests) >= float64(lim.RequestsPerWindow)*m.cfg.Margin {
		return false
	}
	if lim.InputUnitsPerWindow > 0 &&
		float64(u.InputUnits+estimatedInput) >= float64(lim.InputUnitsPerWindow)*m.cfg.Margin {
		return false
	}
	if lim.OutputUnitsPerWindow > 0 &&
		float64(u.OutputUnits) >= float64(lim.OutputUnitsPerWindow)*m.cfg.Margin {
		return false
	}
	return true
}

// RecordUsage records the actual consumption of a completed call.
func (m *MemoryLimiter) RecordUsage(class string, inputUnits, outputUnits int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	w, ok := m.windows[class]
	if !ok {
		return
	}
	now := m.nowFunc()
	w.prune(now.Add(-m.cfg.Window))
	w.samples = append(w.samples, sample{at: now, inputUnits: inputUnits, outputUnits: outputUnits})
}

// GetUsage returns the trailing-window consumption for a class.
func (m *MemoryLimiter) GetUsage(class string) Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[class]
	if !ok {
		return Usage{}
	}
	w.prune(m.nowFunc().Add(-m.cfg.Window))
	return w.usage()
}

// Close shuts down the limiter.
func (m *MemoryLimiter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return nil
}

// Ensure MemoryLimiter implements Limiter.
var _ Limiter = (*MemoryLimiter)(nil)
