// Package config loads the impact engine's external configuration
// surface: workspace/cache locations, cross-project scanning toggles, and
// the resource knobs the orchestrator and
// materializer read at task start.
package config

import "errors"

// Config is the top-level configuration struct for cloudimpact. Field tags
// use mapstructure for viper unmarshalling.
type Config struct {
	Workspace          string               `mapstructure:"workspace"`
	CacheDir           string               `mapstructure:"cache_dir"`
	EnableCrossProject bool                 `mapstructure:"enable_cross_project"`
	RelatedProjects    []RelatedProjectSpec `mapstructure:"related_projects"`
	Git                GitConfig            `mapstructure:"git"`
	Prompt             PromptConfig         `mapstructure:"prompt"`
	Observability      ObservabilityConfig  `mapstructure:"observability"`
}

// RelatedProjectSpec is one configured main->related repo pairing.
type RelatedProjectSpec struct {
	Name   string `mapstructure:"name"`
	GitURL string `mapstructure:"git_url"`
	Branch string `mapstructure:"branch"`
}

// GitConfig holds the repo materializer's resource knobs.
type GitConfig struct {
	ParallelCloneLimit  int  `mapstructure:"parallel_clone_limit"`
	GitOpTimeoutSeconds int  `mapstructure:"git_op_timeout_seconds"`
	AllowBranchFallback bool `mapstructure:"allow_branch_fallback"`
}

// PromptConfig holds the prompt assembler's budgeting knobs.
type PromptConfig struct {
	ContextLinesK int `mapstructure:"context_lines_k"`
	MaxTokens     int `mapstructure:"max_tokens"`
}

// ObservabilityConfig holds logging/tracing/metrics bootstrap settings.
type ObservabilityConfig struct {
	LogLevel      string `mapstructure:"log_level"`
	LogJSON       bool   `mapstructure:"log_json"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	EnableTracing bool   `mapstructure:"enable_tracing"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	Environment   string `mapstructure:"environment"`
}

// Sentinel errors for configuration validation.
var (
	ErrInvalidParallelCloneLimit = errors.New("git.parallel_clone_limit must be positive")
	ErrInvalidGitOpTimeout       = errors.New("git.git_op_timeout_seconds must be positive")
	ErrInvalidContextLinesK      = errors.New("prompt.context_lines_k must be non-negative")
	ErrInvalidMaxTokens          = errors.New("prompt.max_tokens must be positive")
	ErrWorkspaceRequired         = errors.New("workspace must be set")
	ErrRelatedProjectMissingName = errors.New("related_projects entries require a name")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return ErrWorkspaceRequired
	}

	if c.Git.ParallelCloneLimit <= 0 {
		return ErrInvalidParallelCloneLimit
	}

	if c.Git.GitOpTimeoutSeconds <= 0 {
		return ErrInvalidGitOpTimeout
	}

	if c.Prompt.ContextLinesK < 0 {
		return ErrInvalidContextLinesK
	}

	if c.Prompt.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}

	for _, rp := range c.RelatedProjects {
		if rp.Name == "" {
			return ErrRelatedProjectMissingName
		}
	}

	return nil
}
