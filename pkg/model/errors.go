package model

import "errors"

// Sentinel errors identifying the kinds of failure a task or operation can
// report. Callers classify a wrapped error with errors.Is against these
// values.
var (
	// ErrConfig marks a ConfigError: missing or malformed input. Fatal to
	// the task; the task transitions to FAILED before any work starts.
	ErrConfig = errors.New("config error")

	// ErrGitOp marks a GitOpError: clone/fetch/checkout/diff failure.
	// Fatal only when it concerns the main repo; per-repo failures for
	// related projects downgrade that repo to degraded.
	ErrGitOp = errors.New("git operation error")

	// ErrParse marks a ParseError: a Java file could not be parsed. Logged
	// and skipped; never fatal.
	ErrParse = errors.New("parse error")

	// ErrCache marks a CacheError: the index cache failed to read or
	// write. Logged; the caller falls back to a fresh build.
	ErrCache = errors.New("cache error")

	// ErrLLM marks an LLMError: an invalid reply shape or transport
	// failure. One retry is attempted before the file's report is marked
	// failed.
	ErrLLM = errors.New("llm error")

	// ErrCancel marks a CancelError: the task was cancelled between files
	// or between repo workers.
	ErrCancel = errors.New("task cancelled")

	// ErrBranchNotFound is returned by the materializer when the
	// requested branch does not exist on the remote and branch fallback
	// is disabled (the default, per Open Question 1).
	ErrBranchNotFound = errors.New("branch not found")
)
