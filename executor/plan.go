package executor

import (
	"sort"
)

// Plan builds the batch schedule for steps. The schedule is deterministic
// for the same input and rule set: ready steps are considered in input
// order, and partition decisions depend only on the rules.
func (e *Executor) Plan(steps []ToolCall) (*ExecutionPlan, error) {
	if err := validate(steps); err != nil {
		return nil, err
	}

	// Full dependency set per step: explicit ∪ implicit. Implicit
	// dependencies only look backwards, so a later step never gates an
	// earlier one.
	deps := make(map[string]map[string]bool, len(steps))
	for i, s := range steps {
		set := make(map[string]bool)
		for _, d := range s.DependsOn {
			set[d] = true
		}
		for _, d := range e.rules.ImplicitDeps(s, steps[:i]) {
			set[d] = true
		}
		delete(set, s.ID) // self-dependency is meaningless
		deps[s.ID] = set
	}

	plan := &ExecutionPlan{}
	scheduled := make(map[string]bool, len(steps))
	remaining := append([]ToolCall(nil), steps...)

	for len(remaining) > 0 {
		ready := readySteps(remaining, deps, scheduled)

		if len(ready) == 0 {
			// Dependency cycle. Break it by forcibly scheduling the first
			// remaining step — lossy, but never silent.
			forced := remaining[0]
			e.logger.Warn("dependency cycle broken by forced scheduling", map[string]interface{}{
				"step_id": forced.ID,
				"tool":    forced.Name,
			})
			ready = []ToolCall{forced}
		}

		parallel, sequential := e.partition(ready)

		if len(parallel) > 0 {
			plan.Batches = append(plan.Batches, Batch{Steps: parallel, Parallel: true})
			plan.Parallelizable += len(parallel)
		}
		// Higher priority sequential steps run first.
		sort.SliceStable(sequential, func(i, j int) bool {
			return sequential[i].Priority > sequential[j].Priority
		})
		for _, s := range sequential {
			plan.Batches = append(plan.Batches, Batch{Steps: []ToolCall{s}})
			plan.Sequential++
		}

		for _, s := range ready {
			scheduled[s.ID] = true
		}
		remaining = without(remaining, scheduled)
	}

	return plan, nil
}

// readySteps returns the not-yet-scheduled steps whose dependencies are
// all scheduled, preserving input order.
func readySteps(remaining []ToolCall, deps map[string]map[string]bool, scheduled map[string]bool) []ToolCall {
	var ready []ToolCall
	for _, s := range remaining {
		ok := true
		for d := range deps[s.ID] {
			if !scheduled[d] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, s)
		}
	}
	return ready
}

// partition splits a ready set into one parallel group and the sequential
// rest. A step joins the parallel group when its tool is read-only, or
// when it mutates a target no other ready step touches. Two mutating
// steps with the same target never share the parallel group.
func (e *Executor) partition(ready []ToolCall) (parallel, sequential []ToolCall) {
	// Count how many ready steps touch each target.
	targets := make(map[string]int)
	for _, s := range ready {
		if t := e.rules.Target(s); t != "" {
			targets[t]++
		}
	}

	for _, s := range ready {
		if e.rules.ReadOnly(s) {
			parallel = append(parallel, s)
			continue
		}
		t := e.rules.Target(s)
		if t != "" && targets[t] == 1 {
			// Sole toucher of its target: safe to run alongside others.
			parallel = append(parallel, s)
			continue
		}
		sequential = append(sequential, s)
	}
	return parallel, sequential
}

// without filters out scheduled steps, preserving order.
func without(steps []ToolCall, scheduled map[string]bool) []ToolCall {
	out := steps[:0]
	for _, s := range steps {
		if !scheduled[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
