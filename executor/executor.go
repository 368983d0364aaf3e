package executor

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNoSteps     = errors.New("no steps to execute")
	ErrDuplicateID = errors.New("duplicate step ID")
	ErrEmptyID     = errors.New("step has empty ID")
	ErrUnknownDep  = errors.New("step depends on unknown step")
)

// ToolCall is one schedulable step within a task phase.
type ToolCall struct {
	// ID uniquely identifies the step within one executor invocation.
	ID string `json:"id"`

	// Name is the tool to invoke.
	Name string `json:"name"`

	// Args are the tool arguments.
	Args map[string]interface{} `json:"args,omitempty"`

	// DependsOn lists step IDs that must complete before this step starts.
	DependsOn []string `json:"depends_on,omitempty"`

	// Priority orders steps inside a sequential group. Higher runs first.
	Priority int `json:"priority,omitempty"`
}

// ToolResult is the outcome of one executed step.
type ToolResult struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Success     bool          `json:"success"`
	Result      interface{}   `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Batch is one scheduling unit of the plan.
type Batch struct {
	// Steps run concurrently when Parallel, one after another otherwise.
	Steps []ToolCall

	// Parallel marks a batch whose steps may run at the same time.
	Parallel bool
}

// ExecutionPlan is the ordered batch schedule for a set of steps.
type ExecutionPlan struct {
	// Batches execute in order; a batch starts only after the previous
	// one has fully completed.
	Batches []Batch

	// Parallelizable counts steps scheduled into parallel batches.
	Parallelizable int

	// Sequential counts steps scheduled into single-step batches.
	Sequential int
}

// ExecutionResult aggregates the outcome of one Execute call.
type ExecutionResult struct {
	// Results holds one entry per step, in completion order.
	Results []ToolResult

	// TotalDuration is the wall-clock time of the whole execution.
	TotalDuration time.Duration

	// Speedup is the ratio of summed step durations to wall-clock time.
	Speedup float64

	// FailedCount is the number of steps that did not succeed.
	FailedCount int
}

// ResultFor returns the result for a step ID, or nil.
func (r *ExecutionResult) ResultFor(id string) *ToolResult {
	for i := range r.Results {
		if r.Results[i].ID == id {
			return &r.Results[i]
		}
	}
	return nil
}

// Runner executes one tool call. Implementations are supplied by the
// orchestrator; the executor only schedules.
type Runner interface {
	Run(ctx context.Context, call ToolCall) (interface{}, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, call ToolCall) (interface{}, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, call ToolCall) (interface{}, error) {
	return f(ctx, call)
}

// validate checks step IDs and dependency references.
func validate(steps []ToolCall) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return ErrEmptyID
		}
		if seen[s.ID] {
			return ErrDuplicateID
		}
		seen[s.ID] = true
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return ErrUnknownDep
			}
		}
	}
	return nil
}
