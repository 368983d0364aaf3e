package breaker

import (
	"sync"
	"time"

	"github.com/tasknetics/taskcore/errors"
	"github.com/tasknetics/taskcore/logging"
	"github.com/tasknetics/taskcore/result"
)

// State represents the condition of one circuit.
type State int

const (
	// StateClosed allows calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a single probe call through.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings configures one circuit.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long an open circuit rejects calls before
	// allowing a half-open probe. Default: 30s.
	ResetTimeout time.Duration
}

// DefaultSettings returns the default circuit settings.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// circuit tracks the state of one named breaker.
type circuit struct {
	settings      Settings
	state         State
	failures      int
	lastFailureAt time.Time
	openedAt      time.Time
	probing       bool
}

// Registry holds named circuits. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	circuits map[string]*circuit
	defaults Settings
	logger   *logging.Logger
	nowFunc  func() time.Time // for testing
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaults sets the default settings applied to new circuits.
func WithDefaults(s Settings) RegistryOption {
	return func(r *Registry) {
		r.defaults = normalize(s)
	}
}

// WithLogger sets the logger used for state-transition messages.
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l.WithComponent("breaker")
	}
}

// WithNowFunc overrides the clock. For tests.
func WithNowFunc(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowFunc = now
	}
}

// NewRegistry creates an empty breaker registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		circuits: make(map[string]*circuit),
		defaults: DefaultSettings(),
		logger:   logging.Nop(),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func normalize(s Settings) Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
	return s
}

// Configure sets the settings for a named circuit, creating it if needed.
func (r *Registry) Configure(name string, s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.get(name)
	c.settings = normalize(s)
}

// State returns the current state of a named circuit. Unknown circuits
// report closed.
func (r *Registry) State(name string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return StateClosed
	}
	r.refresh(name, c)
	return c.state
}

// Failures returns the consecutive failure count of a named circuit.
func (r *Registry) Failures(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return 0
	}
	return c.failures
}

// Reset forces a named circuit back to closed with a clean counter.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.circuits[name]
	if !ok {
		return
	}
	c.state = StateClosed
	c.failures = 0
	c.probing = false
}

// get returns the circuit for name, creating it with defaults if needed.
// Caller must hold r.mu.
func (r *Registry) get(name string) *circuit {
	c, ok := r.circuits[name]
	if !ok {
		c = &circuit{settings: r.defaults, state: StateClosed}
		r.circuits[name] = c
	}
	return c
}

// refresh moves an open circuit to half-open once its reset timeout has
// elapsed. Caller must hold r.mu.
func (r *Registry) refresh(name string, c *circuit) {
	if c.state == StateOpen && r.nowFunc().Sub(c.openedAt) >= c.settings.ResetTimeout {
		c.state = StateHalfOpen
		c.probing = false
		r.logger.Info("circuit half-open", map[string]interface{}{"circuit": name})
	}
}

// admit decides whether a call may proceed. Returns an error when the
// circuit rejects the call. On admission in half-open state the probe slot
// is claimed.
func (r *Registry) admit(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(name)
	r.refresh(name, c)

	switch c.state {
	case StateOpen:
		return errors.CircuitOpen(name)
	case StateHalfOpen:
		if c.probing {
			// Another probe is already in flight.
			return errors.CircuitOpen(name)
		}
		c.probing = true
	}
	return nil
}

// record applies the outcome of an admitted call.
func (r *Registry) record(name string, callErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(name)
	now := r.nowFunc()

	if callErr == nil {
		if c.state == StateHalfOpen {
			r.logger.Info("circuit closed", map[string]interface{}{"circuit": name})
		}
		c.state = StateClosed
		c.failures = 0
		c.probing = false
		return
	}

	c.failures++
	c.lastFailureAt = now

	switch c.state {
	case StateHalfOpen:
		c.state = StateOpen
		c.openedAt = now
		c.probing = false
		r.logger.Warn("circuit reopened", map[string]interface{}{
			"circuit": name,
			"error":   callErr.Error(),
		})
	case StateClosed:
		if c.failures >= c.settings.FailureThreshold {
			c.state = StateOpen
			c.openedAt = now
			r.logger.Warn("circuit opened", map[string]interface{}{
				"circuit":  name,
				"failures": c.failures,
			})
		}
	}
}

// Execute runs fn under the named circuit and returns its error, or a
// CIRCUIT_OPEN error without invoking fn when the circuit rejects the call.
func (r *Registry) Execute(name string, fn func() error) error {
	if err := r.admit(name); err != nil {
		return err
	}
	err := fn()
	r.record(name, err)
	return err
}

// Do runs fn under the named circuit in reg and returns a tagged Result.
// When the circuit is open the Result fails fast without invoking fn.
func Do[T any](reg *Registry, name string, fn func() (T, error)) result.Result[T] {
	if err := reg.admit(name); err != nil {
		return result.Errf[T](err, "circuit %s rejected call", name)
	}
	data, err := fn()
	reg.record(name, err)
	if err != nil {
		return result.Err[T](err, "")
	}
	return result.Ok(data)
}
