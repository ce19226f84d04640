package gitutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// Repo is a thin handle bundling a Runner with a fixed directory and
// per-operation timeout; every method issues exactly one git subcommand.
type Repo struct {
	runner  Runner
	dir     string
	timeout time.Duration
}

// Open returns a Repo handle over an existing or yet-to-exist directory.
func Open(runner Runner, dir string, timeout time.Duration) *Repo {
	return &Repo{runner: runner, dir: dir, timeout: timeout}
}

// Dir returns the repository's working directory.
func (r *Repo) Dir() string {
	return r.dir
}

// Exists reports whether dir/.git is present and looks like a git
// worktree, used by the materializer's fetch-vs-clone branch.
func (r *Repo) Exists() bool {
	info, err := os.Stat(filepath.Join(r.dir, ".git"))

	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

// Clone runs `git clone --branch <branch> --single-branch <url> <dir>`.
func (r *Repo) Clone(ctx context.Context, url, branch string) error {
	_, err := r.runner.Run(ctx, filepath.Dir(r.dir), r.timeout,
		"clone", "--branch", branch, "--single-branch", url, r.dir)
	if err != nil {
		return fmt.Errorf("%w: clone %s: %w", model.ErrGitOp, url, err)
	}

	return nil
}

// CloneDefault runs `git clone <url> <dir>` without pinning a branch, used
// for the branch-fallback path when AllowBranchFallback is enabled.
func (r *Repo) CloneDefault(ctx context.Context, url string) error {
	_, err := r.runner.Run(ctx, filepath.Dir(r.dir), r.timeout, "clone", url, r.dir)
	if err != nil {
		return fmt.Errorf("%w: clone %s: %w", model.ErrGitOp, url, err)
	}

	return nil
}

// FetchAll runs `git fetch --all --prune`.
func (r *Repo) FetchAll(ctx context.Context) error {
	_, err := r.runner.Run(ctx, r.dir, r.timeout, "fetch", "--all", "--prune")
	if err != nil {
		return fmt.Errorf("%w: fetch: %w", model.ErrGitOp, err)
	}

	return nil
}

// Checkout runs `git checkout <ref>`.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	_, err := r.runner.Run(ctx, r.dir, r.timeout, "checkout", ref)
	if err != nil {
		return fmt.Errorf("%w: checkout %s: %w", model.ErrGitOp, ref, err)
	}

	return nil
}

// ResetHard runs `git reset --hard <ref>`.
func (r *Repo) ResetHard(ctx context.Context, ref string) error {
	_, err := r.runner.Run(ctx, r.dir, r.timeout, "reset", "--hard", ref)
	if err != nil {
		return fmt.Errorf("%w: reset --hard %s: %w", model.ErrGitOp, ref, err)
	}

	return nil
}

// HeadCommit runs `git rev-parse HEAD`.
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: rev-parse HEAD: %w", model.ErrGitOp, err)
	}

	return out, nil
}

// CurrentBranch runs `git rev-parse --abbrev-ref HEAD`, used to verify
// P-BranchCheckout.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: rev-parse --abbrev-ref HEAD: %w", model.ErrGitOp, err)
	}

	return out, nil
}

// RemoteBranchExists runs `git branch -a` and checks whether branch
// appears in its output, either as a local branch name or as the last
// segment of a remote-tracking ref.
func (r *Repo) RemoteBranchExists(ctx context.Context, branch string) (bool, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "branch", "-a")
	if err != nil {
		return false, fmt.Errorf("%w: branch -a: %w", model.ErrGitOp, err)
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "* "))
		if line == branch || strings.HasSuffix(line, "/"+branch) {
			return true, nil
		}
	}

	return false, nil
}

// DiffNameOnly runs `git diff --name-only <base> <target>`.
func (r *Repo) DiffNameOnly(ctx context.Context, base, target string) ([]string, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "diff", "--name-only", base, target)
	if err != nil {
		return nil, fmt.Errorf("%w: diff --name-only %s %s: %w", model.ErrGitOp, base, target, err)
	}

	if out == "" {
		return nil, nil
	}

	return strings.Split(out, "\n"), nil
}

// UnifiedDiff runs `git diff <base> <target>` and returns the full unified
// diff text.
func (r *Repo) UnifiedDiff(ctx context.Context, base, target string) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "diff", base, target)
	if err != nil {
		return "", fmt.Errorf("%w: diff %s %s: %w", model.ErrGitOp, base, target, err)
	}

	return out, nil
}

// FileDiff runs `git diff <base> <target> -- <path>`, the per-file unified
// diff the orchestrator associates with each changed file.
func (r *Repo) FileDiff(ctx context.Context, base, target, path string) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "diff", base, target, "--", path)
	if err != nil {
		return "", fmt.Errorf("%w: diff %s %s -- %s: %w", model.ErrGitOp, base, target, path, err)
	}

	return out, nil
}

// ShowFile runs `git show <rev>:<path>`, the post-image of path at rev,
// used to build code-snippet windows.
func (r *Repo) ShowFile(ctx context.Context, rev, path string) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "show", rev+":"+path)
	if err != nil {
		return "", fmt.Errorf("%w: show %s:%s: %w", model.ErrGitOp, rev, path, err)
	}

	return out, nil
}

// Log runs `git log --pretty=<format>` against a single ref.
func (r *Repo) Log(ctx context.Context, format, ref string) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, r.timeout, "log", "--pretty="+format, "-1", ref)
	if err != nil {
		return "", fmt.Errorf("%w: log --pretty=%s %s: %w", model.ErrGitOp, format, ref, err)
	}

	return out, nil
}
