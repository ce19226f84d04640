package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/zlbkkk/cloudimpact/pkg/gitutil"
	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// BuildSnippet slices a ±k line window (1-indexed, inclusive) out of
// lines around targetLine.
// A targetLine outside [1, len(lines)] yields a placeholder, matching
// "if the file moved or was deleted, target_code carries a placeholder".
func BuildSnippet(lines []string, targetLine, k int) model.Snippet {
	if targetLine < 1 || targetLine > len(lines) {
		return model.Snippet{TargetLine: targetLine, TargetCode: "<unavailable: line out of range>"}
	}

	start := targetLine - k
	if start < 1 {
		start = 1
	}

	end := targetLine + k
	if end > len(lines) {
		end = len(lines)
	}

	snippet := model.Snippet{TargetLine: targetLine, TargetCode: lines[targetLine-1]}

	for i := start; i < targetLine; i++ {
		snippet.ContextBefore = append(snippet.ContextBefore, lines[i-1])
	}

	for i := targetLine + 1; i <= end; i++ {
		snippet.ContextAfter = append(snippet.ContextAfter, lines[i-1])
	}

	return snippet
}

// snippetSource reads and caches file contents per (repo root, path) so a
// task's citations reuse a single ShowFile call per file.
type snippetSource struct {
	repos map[string]*gitutil.Repo // project basename -> repo handle
	cache map[string][]string      // "root|path" -> lines
}

func newSnippetSource() *snippetSource {
	return &snippetSource{repos: map[string]*gitutil.Repo{}, cache: map[string][]string{}}
}

func (s *snippetSource) register(project string, repo *gitutil.Repo) {
	s.repos[project] = repo
}

// window reads path from the project's repo at HEAD and returns the ±k
// snippet window around line. A missing repo or unreadable file produces
// the placeholder window rather than an error, since a stale citation
// (file moved/deleted since indexing) is an expected condition.
func (s *snippetSource) window(ctx context.Context, project, path string, line, k int) model.Snippet {
	repo, ok := s.repos[project]
	if !ok {
		return model.Snippet{TargetLine: line, TargetCode: "<unavailable: unknown project>"}
	}

	key := repo.Dir() + "|" + path

	lines, ok := s.cache[key]
	if !ok {
		content, err := repo.ShowFile(ctx, "HEAD", path)
		if err != nil {
			s.cache[key] = nil
		} else {
			lines = strings.Split(content, "\n")
			s.cache[key] = lines
		}
	}

	if lines == nil {
		return model.Snippet{TargetLine: line, TargetCode: fmt.Sprintf("<unavailable: %s not found at HEAD>", path)}
	}

	return BuildSnippet(lines, line, k)
}
