package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlbkkk/cloudimpact/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Workspace: "/tmp/workspace",
		Git: config.GitConfig{
			ParallelCloneLimit:  8,
			GitOpTimeoutSeconds: 120,
		},
		Prompt: config.PromptConfig{
			ContextLinesK: 2,
			MaxTokens:     6000,
		},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingWorkspace(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Workspace = ""

	assert.ErrorIs(t, cfg.Validate(), config.ErrWorkspaceRequired)
}

func TestValidateRejectsNonPositiveParallelCloneLimit(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Git.ParallelCloneLimit = 0

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidParallelCloneLimit)
}

func TestValidateRejectsNonPositiveGitOpTimeout(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Git.GitOpTimeoutSeconds = -1

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidGitOpTimeout)
}

func TestValidateRejectsNegativeContextLinesK(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Prompt.ContextLinesK = -1

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidContextLinesK)
}

func TestValidateRejectsRelatedProjectMissingName(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RelatedProjects = []config.RelatedProjectSpec{{GitURL: "https://git/related"}}

	assert.ErrorIs(t, cfg.Validate(), config.ErrRelatedProjectMissingName)
}
