package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tasknetics/taskcore/logging"
)

// Output captures one git invocation.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes git in a repository directory.
type Runner interface {
	Run(ctx context.Context, repoPath string, args ...string) (Output, error)
}

// RunnerFunc adapts a function to the Runner interface. Used by tests to
// script git behavior without a real repository.
type RunnerFunc func(ctx context.Context, repoPath string, args ...string) (Output, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, repoPath string, args ...string) (Output, error) {
	return f(ctx, repoPath, args...)
}

// ShellRunner invokes the git binary.
type ShellRunner struct {
	logger *logging.Logger
}

// NewShellRunner creates a runner around the git binary.
func NewShellRunner(logger *logging.Logger) *ShellRunner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ShellRunner{logger: logger.WithComponent("gitops")}
}

// Run executes git with args inside repoPath. A non-zero exit is returned
// as an error carrying the captured stderr.
func (r *ShellRunner) Run(ctx context.Context, repoPath string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		out.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("git", map[string]interface{}{
		"args": strings.Join(args, " "),
		"exit": out.ExitCode,
	})

	if err != nil {
		return out, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(out.Stderr))
	}
	return out, nil
}

// Ensure ShellRunner implements Runner.
var _ Runner = (*ShellRunner)(nil)

// Client wraps a Runner with the repository queries the substrate needs.
type Client struct {
	runner Runner
}

// NewClient creates a Client around runner.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// HasUncommittedChanges reports whether the working tree is dirty.
func (c *Client) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	out, err := c.runner.Run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out.Stdout) != "", nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	out, err := c.runner.Run(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

// CommitAll stages everything and commits with message.
func (c *Client) CommitAll(ctx context.Context, repoPath, message string) error {
	if _, err := c.runner.Run(ctx, repoPath, "add", "-A"); err != nil {
		return err
	}
	_, err := c.runner.Run(ctx, repoPath, "commit", "-m", message)
	return err
}

// Fetch updates remote tracking refs.
func (c *Client) Fetch(ctx context.Context, repoPath string) error {
	_, err := c.runner.Run(ctx, repoPath, "fetch", "origin")
	return err
}

// revCount counts commits in a rev range (e.g., "HEAD..origin/main").
func (c *Client) revCount(ctx context.Context, repoPath, revRange string) (int, error) {
	out, err := c.runner.Run(ctx, repoPath, "rev-list", "--count", revRange)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out.Stdout))
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out.Stdout, err)
	}
	return n, nil
}

// BehindCount counts commits on baseRef the current branch lacks.
func (c *Client) BehindCount(ctx context.Context, repoPath, baseRef string) (int, error) {
	return c.revCount(ctx, repoPath, "HEAD.."+baseRef)
}

// AheadCount counts commits unique to the current branch relative to baseRef.
func (c *Client) AheadCount(ctx context.Context, repoPath, baseRef string) (int, error) {
	return c.revCount(ctx, repoPath, baseRef+"..HEAD")
}

// Rebase replays the current branch onto ref.
func (c *Client) Rebase(ctx context.Context, repoPath, ref string) error {
	_, err := c.runner.Run(ctx, repoPath, "rebase", ref)
	return err
}

// RebaseAbort abandons an in-progress rebase. Errors are returned so
// callers can log them; an already-clean tree is not a failure mode the
// healing chain cares about.
func (c *Client) RebaseAbort(ctx context.Context, repoPath string) error {
	_, err := c.runner.Run(ctx, repoPath, "rebase", "--abort")
	return err
}

// Merge merges ref into the current branch.
func (c *Client) Merge(ctx context.Context, repoPath, ref string) error {
	_, err := c.runner.Run(ctx, repoPath, "merge", ref)
	return err
}

// Push pushes the current branch.
func (c *Client) Push(ctx context.Context, repoPath string) error {
	_, err := c.runner.Run(ctx, repoPath, "push", "origin", "HEAD")
	return err
}

// ForcePush force-pushes the current branch with lease protection.
func (c *Client) ForcePush(ctx context.Context, repoPath string) error {
	_, err := c.runner.Run(ctx, repoPath, "push", "--force-with-lease", "origin", "HEAD")
	return err
}

// DiffNames returns the files that differ between baseRef and HEAD.
func (c *Client) DiffNames(ctx context.Context, repoPath, baseRef string) ([]string, error) {
	out, err := c.runner.Run(ctx, repoPath, "diff", "--name-only", baseRef+"...HEAD")
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(out.Stdout)
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// RemoteBranchExists checks whether branch exists on origin.
func (c *Client) RemoteBranchExists(ctx context.Context, repoPath, branch string) (bool, error) {
	out, err := c.runner.Run(ctx, repoPath, "ls-remote", "--heads", "origin", branch)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out.Stdout) != "", nil
}
