package commands

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zlbkkk/cloudimpact/internal/config"
	"github.com/zlbkkk/cloudimpact/pkg/model"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}

	for input, want := range cases {
		assert.Equal(t, want, parseLogLevel(input), "input %q", input)
	}
}

func TestResolveTaskIDFallsBackToGeneratedUUID(t *testing.T) {
	t.Parallel()

	ac := &AnalyzeCommand{}
	id := ac.resolveTaskID()
	assert.NotEmpty(t, id)

	ac.taskID = "fixed-id"
	assert.Equal(t, "fixed-id", ac.resolveTaskID())
}

func TestProjectRelationsFromConfigConvertsEachEntry(t *testing.T) {
	t.Parallel()

	specs := []config.RelatedProjectSpec{
		{Name: "gateway", GitURL: "https://git/gateway", Branch: "main"},
		{Name: "billing", GitURL: "https://git/billing", Branch: "develop"},
	}

	relations := projectRelationsFromConfig(specs, "https://git/main-repo")

	require := assert.New(t)
	require.Len(relations, 2)
	require.Equal("https://git/main-repo", relations[0].MainGitURL)
	require.Equal("gateway", relations[0].RelatedName)
	require.Equal("https://git/gateway", relations[0].RelatedGitURL)
	require.Equal("main", relations[0].RelatedBranch)
	require.True(relations[0].Active)
	require.Equal("develop", relations[1].RelatedBranch)
}

func TestProjectRelationsFromConfigEmptyInputYieldsEmptySlice(t *testing.T) {
	t.Parallel()

	assert.Empty(t, projectRelationsFromConfig(nil, "https://git/main-repo"))
}

func TestRelatedProjectsFromRelationsConvertsEachEntry(t *testing.T) {
	t.Parallel()

	relations := []model.ProjectRelation{
		{RelatedName: "gateway", RelatedGitURL: "https://git/gateway", RelatedBranch: "main"},
	}

	related := relatedProjectsFromRelations(relations)

	require := assert.New(t)
	require.Len(related, 1)
	require.Equal("gateway", related[0].Name)
	require.Equal("https://git/gateway", related[0].GitURL)
	require.Equal("main", related[0].Branch)
}
