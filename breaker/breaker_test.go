package breaker

import (
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/tasknetics/taskcore/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(clock *fakeClock) *Registry {
	return NewRegistry(
		WithDefaults(Settings{FailureThreshold: 3, ResetTimeout: 30 * time.Second}),
		WithNowFunc(clock.Now),
	)
}

var errBoom = stderrors.New("boom")

func failNTimes(r *Registry, name string, n int) {
	for i := 0; i < n; i++ {
		_ = r.Execute(name, func() error { return errBoom })
	}
}

func TestExecute_ClosedPassesThrough(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	ran := false
	if err := r.Execute("api", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !ran {
		t.Error("closed circuit must invoke the function")
	}
	if r.State("api") != StateClosed {
		t.Errorf("state = %v, want closed", r.State("api"))
	}
}

func TestExecute_OpensAtThreshold(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	failNTimes(r, "api", 2)
	if r.State("api") != StateClosed {
		t.Fatalf("circuit must stay closed below threshold, state = %v", r.State("api"))
	}

	failNTimes(r, "api", 1)
	if r.State("api") != StateOpen {
		t.Fatalf("circuit must open at threshold, state = %v", r.State("api"))
	}
}

func TestExecute_OpenFailsFast(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	failNTimes(r, "api", 3)

	ran := false
	err := r.Execute("api", func() error { ran = true; return nil })
	if err == nil {
		t.Fatal("open circuit must reject the call")
	}
	if ran {
		t.Error("open circuit must not invoke the function")
	}
	if errors.GetCode(err) != errors.CodeCircuitOpen {
		t.Errorf("code = %v, want CIRCUIT_OPEN", errors.GetCode(err))
	}
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	failNTimes(r, "api", 2)
	if err := r.Execute("api", func() error { return nil }); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if r.Failures("api") != 0 {
		t.Errorf("failures = %d, want 0 after success", r.Failures("api"))
	}

	// The counter restarted, so two more failures stay under threshold.
	failNTimes(r, "api", 2)
	if r.State("api") != StateClosed {
		t.Errorf("state = %v, want closed", r.State("api"))
	}
}

func TestHalfOpen_ProbeAfterResetTimeout(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	failNTimes(r, "api", 3)

	clock.Advance(31 * time.Second)
	if r.State("api") != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after reset timeout", r.State("api"))
	}

	// A successful probe closes the circuit.
	if err := r.Execute("api", func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if r.State("api") != StateClosed {
		t.Errorf("state = %v, want closed after successful probe", r.State("api"))
	}
}

func TestHalfOpen_FailedProbeReopens(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	failNTimes(r, "api", 3)

	clock.Advance(31 * time.Second)
	_ = r.Execute("api", func() error { return errBoom })
	if r.State("api") != StateOpen {
		t.Errorf("state = %v, want open after failed probe", r.State("api"))
	}

	// The open period restarts from the failed probe.
	clock.Advance(10 * time.Second)
	if err := r.Execute("api", func() error { return nil }); err == nil {
		t.Error("circuit must stay open until the reset timeout elapses again")
	}
}

func TestHalfOpen_SingleProbeSlot(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(clock)
	failNTimes(r, "api", 3)
	clock.Advance(31 * time.Second)

	release := make(chan struct{})
	probeStarted := make(chan struct{})
	go func() {
		_ = r.Execute("api", func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()
	<-probeStarted

	// A second call while the probe is in flight is rejected.
	err := r.Execute("api", func() error { return nil })
	if errors.GetCode(err) != errors.CodeCircuitOpen {
		t.Errorf("concurrent probe should be rejected, got %v", err)
	}
	close(release)
}

func TestConfigure_PerCircuitSettings(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	r.Configure("fragile", Settings{FailureThreshold: 1, ResetTimeout: time.Minute})

	failNTimes(r, "fragile", 1)
	if r.State("fragile") != StateOpen {
		t.Error("configured threshold of 1 should open on first failure")
	}

	// Other circuits keep the registry defaults.
	failNTimes(r, "sturdy", 1)
	if r.State("sturdy") != StateClosed {
		t.Error("default circuit must not inherit the fragile settings")
	}
}

func TestReset_ForcesClosed(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	failNTimes(r, "api", 3)

	r.Reset("api")
	if r.State("api") != StateClosed || r.Failures("api") != 0 {
		t.Errorf("Reset must close and clear: state=%v failures=%d", r.State("api"), r.Failures("api"))
	}
}

func TestDo_TypedResult(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	res := Do(r, "api", func() (string, error) { return "value", nil })
	if !res.OK() || res.Data() != "value" {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = Do(r, "api", func() (string, error) { return "", errBoom })
	if res.OK() {
		t.Fatal("expected failed result")
	}
	if _, err := res.Unwrap(); !stderrors.Is(err, errBoom) {
		t.Errorf("Unwrap err = %v, want errBoom", err)
	}
}

func TestDo_OpenCircuitFailsFast(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	failNTimes(r, "api", 3)

	ran := false
	res := Do(r, "api", func() (int, error) { ran = true; return 1, nil })
	if res.OK() || ran {
		t.Errorf("open circuit must fail fast without invoking fn: ok=%v ran=%v", res.OK(), ran)
	}
}

func TestState_UnknownCircuitIsClosed(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	if r.State("never-seen") != StateClosed {
		t.Error("unknown circuits report closed")
	}
}

func TestState_String(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" || StateHalfOpen.String() != "half-open" {
		t.Error("unexpected state names")
	}
}
