package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tasknetics/taskcore/logging"
)

// Defaults for execution knobs.
const (
	DefaultMaxParallel = 10
	DefaultStepTimeout = 30 * time.Second
	DefaultMaxRetries  = 2
	// retryBackoffUnit scales the linear per-attempt backoff.
	retryBackoffUnit = time.Second
)

// Options tunes an Executor.
type Options struct {
	// MaxParallel caps concurrently running steps per batch. Default: 10.
	MaxParallel int

	// StepTimeout bounds each individual step execution. Default: 30s.
	StepTimeout time.Duration

	// RetryFailed enables per-step retries.
	RetryFailed bool

	// MaxRetries is the retry budget per step when RetryFailed. Default: 2.
	MaxRetries int

	// AbortOnError stops the schedule after a failed batch, marking
	// unexecuted steps as skipped. Default: false, i.e. continue on error.
	AbortOnError bool

	// Rules supplies the scheduling rules. Nil means DefaultRuleSet.
	Rules *RuleSet

	// Logger receives scheduling warnings. Nil means no output.
	Logger *logging.Logger
}

// Executor plans and runs step batches.
type Executor struct {
	opts   Options
	rules  *RuleSet
	logger *logging.Logger
	tracer trace.Tracer
}

// New creates an Executor.
func New(opts Options) *Executor {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRuleSet()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{
		opts:   opts,
		rules:  rules,
		logger: logger.WithComponent("executor"),
		tracer: otel.Tracer("taskcore/executor"),
	}
}

// Execute plans steps and runs them with runner. Step failures are
// isolated to their own ToolResult; only AbortOnError stops the schedule
// early, marking unexecuted steps as skipped.
func (e *Executor) Execute(ctx context.Context, steps []ToolCall, runner Runner) (*ExecutionResult, error) {
	plan, err := e.Plan(steps)
	if err != nil {
		return nil, err
	}
	return e.ExecutePlan(ctx, plan, runner)
}

// ExecutePlan runs an already-built plan.
func (e *Executor) ExecutePlan(ctx context.Context, plan *ExecutionPlan, runner Runner) (*ExecutionResult, error) {
	ctx, span := e.tracer.Start(ctx, "executor.execute", trace.WithAttributes(
		attribute.Int("batches", len(plan.Batches)),
		attribute.Int("parallelizable", plan.Parallelizable),
		attribute.Int("sequential", plan.Sequential),
	))
	defer span.End()

	start := time.Now()
	res := &ExecutionResult{}
	aborted := false

	for i, batch := range plan.Batches {
		if aborted {
			for _, s := range batch.Steps {
				res.Results = append(res.Results, skippedResult(s))
				res.FailedCount++
			}
			continue
		}

		batchResults := e.runBatch(ctx, batch, runner)
		batchFailed := false
		for _, r := range batchResults {
			if !r.Success {
				res.FailedCount++
				batchFailed = true
			}
		}
		res.Results = append(res.Results, batchResults...)

		if batchFailed && e.opts.AbortOnError {
			e.logger.Warn("aborting after failed batch", map[string]interface{}{
				"batch": i,
			})
			aborted = true
		}
	}

	res.TotalDuration = time.Since(start)
	var stepTime time.Duration
	for _, r := range res.Results {
		stepTime += r.Duration
	}
	if res.TotalDuration > 0 {
		res.Speedup = float64(stepTime) / float64(res.TotalDuration)
	}

	span.SetAttributes(attribute.Int("failed", res.FailedCount))
	return res, nil
}

// runBatch executes one batch, chunking parallel batches to MaxParallel.
func (e *Executor) runBatch(ctx context.Context, batch Batch, runner Runner) []ToolResult {
	if !batch.Parallel {
		results := make([]ToolResult, 0, len(batch.Steps))
		for _, s := range batch.Steps {
			results = append(results, e.runStep(ctx, s, runner))
		}
		return results
	}

	results := make([]ToolResult, 0, len(batch.Steps))
	for off := 0; off < len(batch.Steps); off += e.opts.MaxParallel {
		end := off + e.opts.MaxParallel
		if end > len(batch.Steps) {
			end = len(batch.Steps)
		}
		chunk := batch.Steps[off:end]

		chunkResults := make([]ToolResult, len(chunk))
		var wg sync.WaitGroup
		for i, s := range chunk {
			wg.Add(1)
			go func(i int, s ToolCall) {
				defer wg.Done()
				chunkResults[i] = e.runStep(ctx, s, runner)
			}(i, s)
		}
		wg.Wait()
		results = append(results, chunkResults...)
	}
	return results
}

// runStep executes one step with its own timeout and retry budget.
func (e *Executor) runStep(ctx context.Context, call ToolCall, runner Runner) ToolResult {
	attempts := 1
	if e.opts.RetryFailed {
		attempts += e.opts.MaxRetries
	}

	started := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			// Linear backoff between attempts.
			select {
			case <-ctx.Done():
				return failedResult(call, started, ctx.Err())
			case <-time.After(retryBackoffUnit * time.Duration(attempt-1)):
			}
		}

		out, err := e.runOnce(ctx, call, runner)
		if err == nil {
			completed := time.Now()
			return ToolResult{
				ID:          call.ID,
				Name:        call.Name,
				Success:     true,
				Result:      out,
				Duration:    completed.Sub(started),
				StartedAt:   started,
				CompletedAt: completed,
			}
		}
		lastErr = err
	}
	return failedResult(call, started, lastErr)
}

// runOnce races one attempt against the step timeout. A slower outcome is
// discarded; the runner observes cancellation through its context.
func (e *Executor) runOnce(ctx context.Context, call ToolCall, runner Runner) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()

	type outcome struct {
		out interface{}
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		out, err := runner.Run(ctx, call)
		ch <- outcome{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("step %s timed out after %s: %w", call.ID, e.opts.StepTimeout, ctx.Err())
	case o := <-ch:
		return o.out, o.err
	}
}

func failedResult(call ToolCall, started time.Time, err error) ToolResult {
	completed := time.Now()
	return ToolResult{
		ID:          call.ID,
		Name:        call.Name,
		Success:     false,
		Error:       err.Error(),
		Duration:    completed.Sub(started),
		StartedAt:   started,
		CompletedAt: completed,
	}
}

func skippedResult(call ToolCall) ToolResult {
	now := time.Now()
	return ToolResult{
		ID:          call.ID,
		Name:        call.Name,
		Success:     false,
		Error:       "skipped: earlier batch failed",
		StartedAt:   now,
		CompletedAt: now,
	}
}
