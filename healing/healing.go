package healing

import (
	"context"
	"fmt"

	"github.com/tasknetics/taskcore/gitops"
	"github.com/tasknetics/taskcore/logging"
	"github.com/tasknetics/taskcore/telemetry"
)

// Actions reported by a HealingResult.
const (
	ActionChangesCommitted = "changes_committed"
	ActionBranchSynced     = "branch_synced"
	ActionAlreadyMerged    = "already_merged"
	ActionNoFixFound       = "no_fix_found"
)

// HealingContext describes the repository state a strategy diagnoses.
type HealingContext struct {
	// RepoPath is the working tree the repair operates on.
	RepoPath string

	// ResourceRef is the shared trunk ref the working branch integrates
	// into, e.g. "origin/main".
	ResourceRef string

	// OwnerID identifies the task that hit the failure. It appears in
	// commit messages and logs, never in repair decisions.
	OwnerID string

	// Epic and Story carry work-item labels for commit messages.
	Epic  string
	Story string
}

// HealingResult is the outcome of one repair attempt.
type HealingResult struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Details string `json:"details,omitempty"`
}

// Strategy is one diagnosis and repair unit.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// CanHandle reports whether the context shows the condition this
	// strategy repairs. It must not mutate the repository.
	CanHandle(ctx context.Context, hc HealingContext) (bool, error)

	// Heal applies the repair.
	Heal(ctx context.Context, hc HealingContext) HealingResult
}

// Chain tries strategies in order until one succeeds.
type Chain struct {
	strategies []Strategy
	logger     *logging.Logger
}

// NewChain creates a chain over the given strategies. Order matters: the
// first strategy that both claims and succeeds ends the chain.
func NewChain(logger *logging.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Chain{
		strategies: strategies,
		logger:     logger.WithComponent("healing"),
	}
}

// NewDefaultChain builds the standard repair order: commit stranded local
// changes first, then sync a branch that fell behind trunk, then recognize
// an already merged branch, with a force-push as the last resort.
func NewDefaultChain(git *gitops.Client, logger *logging.Logger) *Chain {
	return NewChain(logger,
		&UncommittedChanges{Git: git},
		&BranchBehind{Git: git},
		&ZeroDiff{Git: git},
		&ForcePush{Git: git},
	)
}

// Insert adds a strategy at position i, shifting later strategies down.
// An out-of-range i appends.
func (c *Chain) Insert(i int, s Strategy) {
	if i < 0 || i >= len(c.strategies) {
		c.strategies = append(c.strategies, s)
		return
	}
	c.strategies = append(c.strategies[:i], append([]Strategy{s}, c.strategies[i:]...)...)
}

// Heal walks the chain. Only strategies whose CanHandle returns true are
// attempted, in list order; the first success is returned immediately. A
// CanHandle error skips that strategy. When every attempted strategy fails,
// or none claims the context, the result is no_fix_found.
func (c *Chain) Heal(ctx context.Context, hc HealingContext) HealingResult {
	ctx, span := telemetry.StartHealSpan(ctx, hc.RepoPath)
	defer span.End()

	log := c.logger.WithTaskID(hc.OwnerID)
	attempted := 0
	for _, s := range c.strategies {
		claims, err := s.CanHandle(ctx, hc)
		if err != nil {
			log.Warn("strategy diagnosis failed", map[string]interface{}{
				"strategy": s.Name(),
				"error":    err.Error(),
			})
			continue
		}
		if !claims {
			continue
		}
		attempted++
		log.Info("attempting repair", map[string]interface{}{
			"strategy": s.Name(),
			"repo":     hc.RepoPath,
		})
		res := s.Heal(ctx, hc)
		if res.Success {
			log.Info("repair succeeded", map[string]interface{}{
				"strategy": s.Name(),
				"action":   res.Action,
			})
			return res
		}
		log.Warn("repair failed", map[string]interface{}{
			"strategy": s.Name(),
			"details":  res.Details,
		})
	}
	return HealingResult{
		Success: false,
		Action:  ActionNoFixFound,
		Details: fmt.Sprintf("%d of %d strategies attempted, none succeeded", attempted, len(c.strategies)),
	}
}
