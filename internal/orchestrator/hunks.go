package orchestrator

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zlbkkk/cloudimpact/pkg/javaidx"
)

// LineRange is an inclusive, 1-indexed [Start, End] span.
type LineRange struct {
	Start int
	End   int
}

// ParseHunkTargetRanges extracts the target-file (post-image) line ranges
// touched by each hunk of a `git diff` unified diff, using
// sergi/go-diff's patch-text parser for the "@@ -a,b +c,d @@" hunk
// bookkeeping.
// `git diff` output carries file headers (`diff --git`, `index`, `---`,
// `+++`) the patch-text format does not expect, so only the `@@`-led hunk
// bodies are handed to PatchFromText.
func ParseHunkTargetRanges(unifiedDiff string) ([]LineRange, error) {
	hunkText := extractHunkBodies(unifiedDiff)
	if hunkText == "" {
		return nil, nil
	}

	dmp := diffmatchpatch.New()

	patches, err := dmp.PatchFromText(hunkText)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parse diff hunks: %w", err)
	}

	ranges := make([]LineRange, 0, len(patches))

	for _, p := range patches {
		if p.Length2 <= 0 {
			continue // pure deletion hunk touches no post-image lines
		}

		start := p.Start2 + 1 // Start2 is 0-indexed in diffmatchpatch's internal model
		ranges = append(ranges, LineRange{Start: start, End: start + p.Length2 - 1})
	}

	return ranges, nil
}

// extractHunkBodies drops everything before the first "@@" line, which is
// where `git diff`'s file-level headers end and patch-text-compatible
// hunks begin.
func extractHunkBodies(unifiedDiff string) string {
	lines := strings.Split(unifiedDiff, "\n")

	for i, line := range lines {
		if strings.HasPrefix(line, "@@") {
			return strings.Join(lines[i:], "\n")
		}
	}

	return ""
}

// ChangedMethods intersects a Java file's method body ranges with the
// diff's target-line ranges.
func ChangedMethods(relPath, postImage, unifiedDiff string) ([]string, error) {
	parse, err := javaidx.BuildFile(relPath, postImage)
	if err != nil {
		return nil, err
	}

	hunks, err := ParseHunkTargetRanges(unifiedDiff)
	if err != nil {
		return nil, err
	}

	var changed []string

	for _, method := range parse.Methods {
		for _, hunk := range hunks {
			if rangesOverlap(method.StartLine, method.EndLine, hunk.Start, hunk.End) {
				changed = append(changed, method.Name)

				break
			}
		}
	}

	return changed, nil
}

func rangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && bStart <= aEnd
}
