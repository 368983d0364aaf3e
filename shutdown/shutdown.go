package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tasknetics/taskcore/logging"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the deadline.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Standard drain phases. Lower drains first.
const (
	PhaseExecutors = 10 // stop dispatching steps
	PhaseLocks     = 20 // release held resource locks
	PhaseLimiters  = 30 // unblock capacity waiters
	PhaseStores    = 40 // close event logs, state and checkpoints
	PhaseTelemetry = 90 // flush trace export last
)

// DefaultTimeout bounds ShutdownWithTimeout when no timeout is given.
const DefaultTimeout = 30 * time.Second

// Handler is implemented by components that need a graceful drain.
type Handler interface {
	// OnShutdown is called once when the drain reaches this handler's
	// phase. The context is cancelled when the overall deadline passes.
	OnShutdown(ctx context.Context) error
}

// Func adapts a function to the Handler interface.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// HandlerResult records one handler's drain outcome.
type HandlerResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the full drain outcome.
type Result struct {
	TotalDuration time.Duration
	Results       []HandlerResult
	Err           error
}

// FailedHandlers returns the names of handlers that failed.
func (r *Result) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

type registration struct {
	name    string
	handler Handler
	phase   int
}

// Coordinator runs registered handlers phase by phase.
type Coordinator struct {
	logger *logging.Logger

	mu       sync.Mutex
	handlers []registration

	started atomic.Bool
	done    chan struct{}
	result  *Result
	signals chan os.Signal
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		logger:  logger.WithComponent("shutdown"),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a handler under the given phase.
func (c *Coordinator) Register(name string, phase int, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: handler, phase: phase})
}

// RegisterFunc adds a plain function under the given phase.
func (c *Coordinator) RegisterFunc(name string, phase int, fn func(ctx context.Context) error) {
	c.Register(name, phase, Func(fn))
}

// Shutdown drains every registered handler. While a drain is in
// flight, a second call returns ErrAlreadyShutdown immediately; after
// the drain completes, repeat calls return the stored outcome.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		select {
		case <-c.done:
			return c.result.Err
		default:
			return ErrAlreadyShutdown
		}
	}
	c.result = c.drain(ctx)
	close(c.done)
	return c.result.Err
}

// ShutdownWithTimeout drains with a deadline.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals drains on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-c.signals
		_ = c.ShutdownWithTimeout(DefaultTimeout)
	}()
}

// Trigger injects a synthetic signal. For tests.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Done closes when the drain has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Result returns the drain outcome, or nil before Done closes.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) drain(ctx context.Context) *Result {
	start := time.Now()

	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	result := &Result{Results: make([]HandlerResult, 0, len(handlers))}
	for i := 0; i < len(handlers); {
		select {
		case <-ctx.Done():
			result.Err = ErrTimeout
			result.TotalDuration = time.Since(start)
			return result
		default:
		}

		// Collect the contiguous run of handlers sharing this phase.
		j := i + 1
		for j < len(handlers) && handlers[j].phase == handlers[i].phase {
			j++
		}
		phase := c.drainPhase(ctx, handlers[i:j])
		result.Results = append(result.Results, phase...)
		for _, hr := range phase {
			if hr.Err != nil {
				result.Err = ErrHandlerFailed
			}
		}
		i = j
	}
	result.TotalDuration = time.Since(start)
	return result
}

// drainPhase runs one phase's handlers concurrently and joins them.
func (c *Coordinator) drainPhase(ctx context.Context, handlers []registration) []HandlerResult {
	results := make([]HandlerResult, len(handlers))
	var wg sync.WaitGroup
	for i, reg := range handlers {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()
			start := time.Now()
			err := r.handler.OnShutdown(ctx)
			results[idx] = HandlerResult{
				Name:     r.name,
				Phase:    r.phase,
				Duration: time.Since(start),
				Err:      err,
			}
			if err != nil {
				c.logger.Warn("handler failed during drain", map[string]interface{}{
					"handler": r.name,
					"phase":   r.phase,
					"error":   err.Error(),
				})
			}
		}(i, reg)
	}
	wg.Wait()
	return results
}
