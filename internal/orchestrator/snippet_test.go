package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zlbkkk/cloudimpact/internal/orchestrator"
)

func TestBuildSnippetWindowsAroundTargetLine(t *testing.T) {
	t.Parallel()

	lines := []string{"one", "two", "three", "four", "five"}

	snippet := orchestrator.BuildSnippet(lines, 3, 1)

	assert.Equal(t, 3, snippet.TargetLine)
	assert.Equal(t, "three", snippet.TargetCode)
	assert.Equal(t, []string{"two"}, snippet.ContextBefore)
	assert.Equal(t, []string{"four"}, snippet.ContextAfter)
}

func TestBuildSnippetClampsAtFileBoundaries(t *testing.T) {
	t.Parallel()

	lines := []string{"one", "two", "three"}

	snippet := orchestrator.BuildSnippet(lines, 1, 2)

	assert.Empty(t, snippet.ContextBefore)
	assert.Equal(t, []string{"two", "three"}, snippet.ContextAfter)
}

func TestBuildSnippetOutOfRangeLineYieldsPlaceholder(t *testing.T) {
	t.Parallel()

	snippet := orchestrator.BuildSnippet([]string{"one"}, 99, 2)

	assert.Equal(t, 99, snippet.TargetLine)
	assert.Contains(t, snippet.TargetCode, "unavailable")
}
