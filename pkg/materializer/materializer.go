// Package materializer clones or fast-forwards each related repository
// into a workspace directory at a configured branch, in parallel,
// tolerating partial failure.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zlbkkk/cloudimpact/pkg/gitutil"
	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// Options configures a Materialize call.
type Options struct {
	// ParallelLimit bounds the worker pool; 0 means min(len(projects), 8).
	ParallelLimit int
	// GitOpTimeout is the per-invocation wall clock limit (default 120s).
	GitOpTimeout time.Duration
	// AllowBranchFallback enables the legacy {branch, master, main}
	// fallback chain. Default false: a missing branch fails the repo.
	AllowBranchFallback bool
	Runner              gitutil.Runner
	Logger              *slog.Logger
}

const defaultGitOpTimeout = 120 * time.Second

const defaultParallelLimit = 8

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.Default()
}

func (o Options) timeout() time.Duration {
	if o.GitOpTimeout > 0 {
		return o.GitOpTimeout
	}

	return defaultGitOpTimeout
}

func (o Options) runner() gitutil.Runner {
	if o.Runner != nil {
		return o.Runner
	}

	return gitutil.NewSubprocessRunner()
}

// Failure describes one related project that could not be materialized.
type Failure struct {
	Name  string
	Error string
}

// Result is the return value of Materialize: the successfully
// materialized repos plus the per-repo failures.
type Result struct {
	OK   []OKEntry
	Fail []Failure
}

// OKEntry is one successfully materialized repo.
type OKEntry struct {
	Name       string
	Path       string
	Branch     string
	HeadCommit string
}

// Materialize fans out over a bounded worker pool (size min(N, 8) by
// default), cloning or updating each related project. A worker's failure
// never cancels siblings.
func Materialize(ctx context.Context, projects []model.RelatedProject, workspace string, opts Options) Result {
	limit := opts.ParallelLimit
	if limit <= 0 {
		limit = defaultParallelLimit
	}

	if limit > len(projects) {
		limit = len(projects)
	}

	if limit <= 0 {
		limit = 1
	}

	var (
		mu     sync.Mutex
		result Result
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	for _, proj := range projects {
		proj := proj

		group.Go(func() error {
			entry, err := materializeOne(gctx, proj, workspace, opts)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Fail = append(result.Fail, Failure{Name: proj.Name, Error: err.Error()})

				return nil // a worker's failure never cancels siblings
			}

			result.OK = append(result.OK, *entry)

			return nil
		})
	}

	_ = group.Wait()

	sort.Slice(result.OK, func(i, j int) bool { return result.OK[i].Name < result.OK[j].Name })
	sort.Slice(result.Fail, func(i, j int) bool { return result.Fail[i].Name < result.Fail[j].Name })

	return result
}

func materializeOne(ctx context.Context, proj model.RelatedProject, workspace string, opts Options) (*OKEntry, error) {
	if workspace == "" {
		return nil, ErrNoWorkspace
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCancel, err)
	}

	branch := proj.Branch
	if branch == "" {
		branch = model.DefaultRelatedBranch
	}

	dir := filepath.Join(workspace, proj.Name)
	repo := gitutil.Open(opts.runner(), dir, opts.timeout())
	logger := opts.logger()

	if repo.Exists() {
		if err := repo.FetchAll(ctx); err != nil {
			return nil, err
		}

		if err := repo.Checkout(ctx, branch); err != nil {
			return nil, err
		}

		if err := repo.ResetHard(ctx, "origin/"+branch); err != nil {
			return nil, err
		}
	} else {
		cloneErr := repo.Clone(ctx, proj.GitURL, branch)
		if cloneErr != nil {
			if !opts.AllowBranchFallback {
				if isMissingBranchError(cloneErr) {
					return nil, fmt.Errorf("%w: %s: %w", model.ErrBranchNotFound, branch, cloneErr)
				}

				return nil, fmt.Errorf("%w: clone %s: %w", model.ErrGitOp, proj.Name, cloneErr)
			}

			logger.Warn("materializer: branch clone failed, falling back", "repo", proj.Name, "branch", branch, "error", cloneErr)

			fallbackErr := repo.CloneDefault(ctx, proj.GitURL)
			if fallbackErr != nil {
				return nil, fallbackErr
			}

			resolved, resolveErr := resolveFallbackBranch(ctx, repo, branch)
			if resolveErr != nil {
				return nil, resolveErr
			}

			branch = resolved

			if checkoutErr := repo.Checkout(ctx, branch); checkoutErr != nil {
				return nil, checkoutErr
			}
		}
	}

	head, headErr := repo.HeadCommit(ctx)
	if headErr != nil {
		return nil, headErr
	}

	return &OKEntry{Name: proj.Name, Path: dir, Branch: branch, HeadCommit: head}, nil
}

// isMissingBranchError reports whether a `git clone --branch` failure was
// caused by the branch itself not existing upstream (git's "Remote branch
// <branch> not found in upstream <remote>"), as opposed to some other
// clone failure (bad URL, network error, auth failure, repo not found).
func isMissingBranchError(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "remote branch") && strings.Contains(msg, "not found")
}

// resolveFallbackBranch tries {branch, "master", "main"} in order,
// returning the first that resolves.
func resolveFallbackBranch(ctx context.Context, repo *gitutil.Repo, branch string) (string, error) {
	candidates := []string{branch, "master", "main"}

	for _, candidate := range candidates {
		ok, err := repo.RemoteBranchExists(ctx, candidate)
		if err != nil {
			continue
		}

		if ok {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: none of %v resolved", model.ErrBranchNotFound, candidates)
}

// ErrNoWorkspace is the failure recorded for each project when Materialize
// is called with an empty workspace path.
var ErrNoWorkspace = errors.New("materializer: workspace directory required")
