package healing

import (
	"context"
	"fmt"
	"strings"

	"github.com/tasknetics/taskcore/gitops"
)

// commitMessage formats the message used when a strategy commits on the
// task's behalf.
func commitMessage(hc HealingContext) string {
	parts := []string{"checkpoint work in progress"}
	if hc.Epic != "" {
		parts = append(parts, hc.Epic)
	}
	if hc.Story != "" {
		parts = append(parts, hc.Story)
	}
	return strings.Join(parts, ": ")
}

// UncommittedChanges commits and pushes a dirty working tree that is
// blocking repository operations.
type UncommittedChanges struct {
	Git *gitops.Client
}

func (s *UncommittedChanges) Name() string { return "uncommitted-changes" }

func (s *UncommittedChanges) CanHandle(ctx context.Context, hc HealingContext) (bool, error) {
	return s.Git.HasUncommittedChanges(ctx, hc.RepoPath)
}

func (s *UncommittedChanges) Heal(ctx context.Context, hc HealingContext) HealingResult {
	if err := s.Git.CommitAll(ctx, hc.RepoPath, commitMessage(hc)); err != nil {
		return HealingResult{Action: ActionNoFixFound, Details: fmt.Sprintf("commit: %v", err)}
	}
	if err := s.Git.Push(ctx, hc.RepoPath); err != nil {
		// The commit alone may unblock local operations; report the push
		// failure but claim the committed state.
		return HealingResult{
			Success: true,
			Action:  ActionChangesCommitted,
			Details: fmt.Sprintf("committed locally, push failed: %v", err),
		}
	}
	return HealingResult{Success: true, Action: ActionChangesCommitted, Details: "committed and pushed local changes"}
}

// BranchBehind syncs a working branch that fell behind the shared trunk.
// Rebase is tried first, then merge on conflict. A branch with no commits
// of its own relative to trunk needs no sync and is classified as already
// integrated.
type BranchBehind struct {
	Git *gitops.Client
}

func (s *BranchBehind) Name() string { return "branch-behind" }

func (s *BranchBehind) CanHandle(ctx context.Context, hc HealingContext) (bool, error) {
	if err := s.Git.Fetch(ctx, hc.RepoPath); err != nil {
		return false, err
	}
	behind, err := s.Git.BehindCount(ctx, hc.RepoPath, hc.ResourceRef)
	if err != nil {
		return false, err
	}
	return behind > 0, nil
}

func (s *BranchBehind) Heal(ctx context.Context, hc HealingContext) HealingResult {
	ahead, err := s.Git.AheadCount(ctx, hc.RepoPath, hc.ResourceRef)
	if err != nil {
		return HealingResult{Action: ActionNoFixFound, Details: fmt.Sprintf("ahead count: %v", err)}
	}
	if ahead == 0 {
		return HealingResult{
			Success: true,
			Action:  ActionAlreadyMerged,
			Details: "branch has no unique commits relative to trunk",
		}
	}
	if err := s.Git.Rebase(ctx, hc.RepoPath, hc.ResourceRef); err == nil {
		return HealingResult{Success: true, Action: ActionBranchSynced, Details: "rebased onto trunk"}
	}
	// Conflicted rebase leaves the tree mid-rebase; abort before merging.
	_ = s.Git.RebaseAbort(ctx, hc.RepoPath)
	if err := s.Git.Merge(ctx, hc.RepoPath, hc.ResourceRef); err != nil {
		return HealingResult{Action: ActionNoFixFound, Details: fmt.Sprintf("rebase and merge both failed: %v", err)}
	}
	return HealingResult{Success: true, Action: ActionBranchSynced, Details: "merged trunk after rebase conflict"}
}

// ZeroDiff recognizes a branch whose content is already fully contained in
// trunk, so no further integration work is needed.
type ZeroDiff struct {
	Git *gitops.Client
}

func (s *ZeroDiff) Name() string { return "zero-diff" }

func (s *ZeroDiff) CanHandle(ctx context.Context, hc HealingContext) (bool, error) {
	names, err := s.Git.DiffNames(ctx, hc.RepoPath, hc.ResourceRef)
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}

func (s *ZeroDiff) Heal(ctx context.Context, hc HealingContext) HealingResult {
	return HealingResult{
		Success: true,
		Action:  ActionAlreadyMerged,
		Details: "branch introduces no changes relative to trunk",
	}
}

// ForcePush resolves remote divergence by force-pushing the local branch.
// It claims any context with a diverged remote and sits last in the
// default order so every gentler repair runs first.
type ForcePush struct {
	Git *gitops.Client
}

func (s *ForcePush) Name() string { return "force-push" }

func (s *ForcePush) CanHandle(ctx context.Context, hc HealingContext) (bool, error) {
	branch, err := s.Git.CurrentBranch(ctx, hc.RepoPath)
	if err != nil {
		return false, err
	}
	return s.Git.RemoteBranchExists(ctx, hc.RepoPath, branch)
}

func (s *ForcePush) Heal(ctx context.Context, hc HealingContext) HealingResult {
	if err := s.Git.ForcePush(ctx, hc.RepoPath); err != nil {
		return HealingResult{Action: ActionNoFixFound, Details: fmt.Sprintf("force push: %v", err)}
	}
	return HealingResult{Success: true, Action: ActionBranchSynced, Details: "force-pushed local branch over diverged remote"}
}
