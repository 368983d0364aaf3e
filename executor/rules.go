package executor

import (
	"fmt"
	"path"
	"strings"
)

// StepRule contributes scheduling knowledge for one step kind. New step
// kinds register their own rule instead of editing a central table.
type StepRule interface {
	// Kind returns the tool name this rule governs.
	Kind() string

	// ReadOnly reports whether the tool only reads its target.
	ReadOnly() bool

	// Target returns the resource the call touches, empty if none.
	Target(call ToolCall) string

	// ImplicitDeps returns IDs of earlier steps this call implicitly
	// depends on. earlier preserves input order.
	ImplicitDeps(call ToolCall, earlier []ToolCall) []string
}

// RuleSet resolves rules by step kind. Unknown kinds fall back to a
// conservative mutating rule so a missing registration cannot make an
// unsafe schedule.
type RuleSet struct {
	rules map[string]StepRule
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]StepRule)}
}

// Register adds or replaces the rule for a step kind.
func (rs *RuleSet) Register(rule StepRule) {
	rs.rules[rule.Kind()] = rule
}

// rule returns the registered rule for a call, or the fallback.
func (rs *RuleSet) rule(call ToolCall) StepRule {
	if r, ok := rs.rules[call.Name]; ok {
		return r
	}
	return fallbackRule{}
}

// ReadOnly reports whether the call's tool is on the known-safe allowlist.
func (rs *RuleSet) ReadOnly(call ToolCall) bool {
	return rs.rule(call).ReadOnly()
}

// Target returns the normalized resource target of the call.
func (rs *RuleSet) Target(call ToolCall) string {
	t := rs.rule(call).Target(call)
	if t == "" {
		return ""
	}
	return path.Clean(strings.ToLower(t))
}

// ImplicitDeps returns implicit dependency IDs for the call.
func (rs *RuleSet) ImplicitDeps(call ToolCall, earlier []ToolCall) []string {
	return rs.rule(call).ImplicitDeps(call, earlier)
}

// argTarget pulls a target resource out of common argument names.
func argTarget(call ToolCall) string {
	for _, key := range []string{"path", "file", "target", "repo"} {
		if v, ok := call.Args[key]; ok {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// fallbackRule treats unknown tools as mutating with an argument-derived
// target and no implicit dependencies.
type fallbackRule struct{}

func (fallbackRule) Kind() string             { return "" }
func (fallbackRule) ReadOnly() bool           { return false }
func (fallbackRule) Target(c ToolCall) string { return argTarget(c) }
func (fallbackRule) ImplicitDeps(ToolCall, []ToolCall) []string {
	return nil
}

// ReadRule marks a tool as read-only with an argument-derived target.
type ReadRule struct {
	Name string
}

func (r ReadRule) Kind() string             { return r.Name }
func (r ReadRule) ReadOnly() bool           { return true }
func (r ReadRule) Target(c ToolCall) string { return argTarget(c) }
func (r ReadRule) ImplicitDeps(ToolCall, []ToolCall) []string {
	return nil
}

// MutateRule marks a tool as mutating. A mutating step implicitly depends
// on every earlier read step touching the same target, so reads observe
// the pre-mutation state they were scheduled against.
type MutateRule struct {
	Name  string
	rules *RuleSet
}

func (r MutateRule) Kind() string             { return r.Name }
func (r MutateRule) ReadOnly() bool           { return false }
func (r MutateRule) Target(c ToolCall) string { return argTarget(c) }

func (r MutateRule) ImplicitDeps(call ToolCall, earlier []ToolCall) []string {
	target := argTarget(call)
	if target == "" || r.rules == nil {
		return nil
	}
	target = path.Clean(strings.ToLower(target))
	var deps []string
	for _, prior := range earlier {
		if prior.ID == call.ID {
			continue
		}
		if r.rules.ReadOnly(prior) && r.rules.Target(prior) == target {
			deps = append(deps, prior.ID)
		}
	}
	return deps
}

// DefaultRuleSet returns the rule set covering the built-in tool kinds.
func DefaultRuleSet() *RuleSet {
	rs := NewRuleSet()
	for _, name := range []string{
		"read_file", "list_directory", "search_code", "git_status",
		"git_diff", "git_log", "fetch_url", "inspect",
	} {
		rs.Register(ReadRule{Name: name})
	}
	for _, name := range []string{
		"write_file", "edit_file", "delete_file", "git_commit",
		"git_push", "run_command",
	} {
		rs.Register(MutateRule{Name: name, rules: rs})
	}
	return rs
}
