package promptasm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlbkkk/cloudimpact/pkg/model"
	"github.com/zlbkkk/cloudimpact/pkg/promptasm"
)

func TestBuildPromptOmitsMissingSections(t *testing.T) {
	t.Parallel()

	body := promptasm.BuildPrompt(promptasm.Context{
		Intent: promptasm.ChangeIntent{FileName: "PointManager.java", Verb: "modified"},
	})

	assert.Contains(t, body, "modified PointManager.java")
	assert.NotContains(t, body, "Downstream usages")
	assert.NotContains(t, body, "Cross-project impacts")
}

func TestBuildPromptIncludesGroupedSections(t *testing.T) {
	t.Parallel()

	ctx := promptasm.Context{
		Intent:      promptasm.ChangeIntent{FileName: "PointManager.java", Verb: "modified"},
		UnifiedDiff: "@@ -1,1 +1,1 @@\n-old\n+new\n",
		Downstream: []promptasm.DownstreamGroup{
			{CallsiteClass: "reference", Usages: []model.Usage{
				{Path: "a/PointClient.java", Line: 42, Kind: "reference"},
			}},
		},
		CrossProject: []promptasm.CrossProjectGroup{
			{
				Project: "billing-service",
				Class:   []model.Impact{{Project: "billing-service", File: "b/Foo.java", Line: 7}},
				API:     []model.Impact{{Project: "billing-service", File: "b/Bar.java", Line: 9, API: "GET /points"}},
			},
		},
		Snippets: map[string]model.Snippet{
			promptasm.SnippetKey("a/PointClient.java", 42): {
				TargetLine: 42, TargetCode: "pointClient.batchUpdatePoints();",
				ContextBefore: []string{"// before"}, ContextAfter: []string{"// after"},
			},
		},
	}

	body := promptasm.BuildPrompt(ctx)

	assert.Contains(t, body, "## Diff")
	assert.Contains(t, body, "### reference")
	assert.Contains(t, body, "a/PointClient.java:42")
	assert.Contains(t, body, "pointClient.batchUpdatePoints();")
	assert.Contains(t, body, "### billing-service")
	assert.Contains(t, body, "#### class")
	assert.Contains(t, body, "#### api")
	assert.Contains(t, body, "(GET /points)")
}

func TestTrimDropsOldestCrossProjectGroupUntilUnderBudget(t *testing.T) {
	t.Parallel()

	counter, err := promptasm.NewTokenCounter()
	require.NoError(t, err)

	ctx := promptasm.Context{
		Intent: promptasm.ChangeIntent{FileName: "X.java"},
		CrossProject: []promptasm.CrossProjectGroup{
			{Project: "first", Class: []model.Impact{{Project: "first", File: "f1.java", Line: 1}}},
			{Project: "second", Class: []model.Impact{{Project: "second", File: "f2.java", Line: 1}}},
		},
	}

	trimmed := counter.Trim(ctx, 1, nil)

	assert.Empty(t, trimmed.CrossProject)
}

func TestTrimKeepsEverythingUnderBudget(t *testing.T) {
	t.Parallel()

	counter, err := promptasm.NewTokenCounter()
	require.NoError(t, err)

	ctx := promptasm.Context{
		Intent: promptasm.ChangeIntent{FileName: "X.java"},
		CrossProject: []promptasm.CrossProjectGroup{
			{Project: "first", Class: []model.Impact{{Project: "first", File: "f1.java", Line: 1}}},
		},
	}

	trimmed := counter.Trim(ctx, promptasm.DefaultMaxTokens, nil)

	assert.Len(t, trimmed.CrossProject, 1)
}

func TestGroupByCallsiteClassPreservesFirstSeenOrder(t *testing.T) {
	t.Parallel()

	usages := []model.Usage{
		{Path: "a.java", Line: 1, Kind: "injection"},
		{Path: "b.java", Line: 2, Kind: "reference"},
		{Path: "c.java", Line: 3, Kind: "injection"},
	}

	groups := promptasm.GroupByCallsiteClass(usages)

	require.Len(t, groups, 2)
	assert.Equal(t, "injection", groups[0].CallsiteClass)
	assert.Len(t, groups[0].Usages, 2)
	assert.Equal(t, "reference", groups[1].CallsiteClass)
}

func TestGroupCrossProjectSplitsByType(t *testing.T) {
	t.Parallel()

	impacts := []model.Impact{
		{Project: "svc", Type: model.ImpactClassReference, File: "a.java", Line: 1},
		{Project: "svc", Type: model.ImpactAPICall, File: "b.java", Line: 2, API: "GET /x"},
		{Project: "svc", Type: model.ImpactRPCReference, File: "c.java", Line: 3},
	}

	groups := promptasm.GroupCrossProject(impacts)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Class, 1)
	assert.Len(t, groups[0].API, 1)
	assert.Len(t, groups[0].RPC, 1)
}
