package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

func TestSimpleName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fqn  string
		want string
	}{
		{"qualified", "com.cloudE.pay.client.PointClient", "PointClient"},
		{"bare", "PointClient", "PointClient"},
		{"trailing dot edge case", "a.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, model.SimpleName(tt.fqn))
		})
	}
}

func TestSymbolIndexAddClassPreservesDuplicateSimpleNames(t *testing.T) {
	t.Parallel()

	idx := model.NewSymbolIndex("/repo", "deadbeef")
	idx.AddClass("com.a.Foo", model.ClassEntry{File: "a/Foo.java", Line: 3})
	idx.AddClass("com.b.Foo", model.ClassEntry{File: "b/Foo.java", Line: 5})

	require.Len(t, idx.SimpleNames["Foo"], 2)
	assert.ElementsMatch(t, []string{"com.a.Foo", "com.b.Foo"}, idx.SimpleNames["Foo"])

	// Re-adding the same FQN must not duplicate the simple-name entry.
	idx.AddClass("com.a.Foo", model.ClassEntry{File: "a/Foo.java", Line: 3})
	assert.Len(t, idx.SimpleNames["Foo"], 2)
}

func TestSortImpactsOrdersByProjectFileLine(t *testing.T) {
	t.Parallel()

	impacts := []model.Impact{
		{Project: "b-svc", File: "X.java", Line: 10},
		{Project: "a-svc", File: "Z.java", Line: 1},
		{Project: "a-svc", File: "A.java", Line: 5},
		{Project: "a-svc", File: "A.java", Line: 2},
	}

	model.SortImpacts(impacts)

	want := []model.Impact{
		{Project: "a-svc", File: "A.java", Line: 2},
		{Project: "a-svc", File: "A.java", Line: 5},
		{Project: "a-svc", File: "Z.java", Line: 1},
		{Project: "b-svc", File: "X.java", Line: 10},
	}
	assert.Equal(t, want, impacts)
}

func TestSnippetFlatten(t *testing.T) {
	t.Parallel()

	snippet := model.Snippet{
		TargetLine:    10,
		TargetCode:    "pointClient.batchUpdatePoints(req);",
		ContextBefore: []string{"// before 1", "// before 2"},
		ContextAfter:  []string{"// after 1"},
	}

	want := "// before 1\n// before 2\npointClient.batchUpdatePoints(req);\n// after 1"
	assert.Equal(t, want, snippet.Flatten())
}
