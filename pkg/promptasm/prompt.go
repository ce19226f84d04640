// Package promptasm implements the Prompt Assembler / Report Merger (C6):
// it renders a fixed-order prompt for one changed file, budgets it against
// a token ceiling, wraps it as chat messages, and validates the model's
// structured reply.
package promptasm

import (
	"strconv"
	"strings"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// ChangeIntent is the short stub derived from a diff header, e.g. "modified
// src/main/java/.../PointManager.java".
type ChangeIntent struct {
	FileName string
	Verb     string // "added", "modified", "deleted", "renamed"
}

// DownstreamGroup is one callsite-class bucket of in-repo findings.
type DownstreamGroup struct {
	CallsiteClass string
	Usages        []model.Usage
}

// CrossProjectGroup is one related-project bucket of cross-repo impacts,
// itself split by impact type: grouped by related-project name, then by
// type (class / api / rpc).
type CrossProjectGroup struct {
	Project string
	Class   []model.Impact
	API     []model.Impact
	RPC     []model.Impact
}

// Context is everything BuildPrompt needs for one changed file. Any slice
// left empty omits its section entirely -- a missing section is omitted,
// never stubbed.
type Context struct {
	Intent        ChangeIntent
	UnifiedDiff   string
	Downstream    []DownstreamGroup
	CrossProject  []CrossProjectGroup
	Snippets      map[string]model.Snippet // key: "path:line"
	ContextWindow int                      // K, default 2
}

// SnippetKey builds the Snippets map key for a (path, line) citation.
func SnippetKey(path string, line int) string {
	return path + ":" + strconv.Itoa(line)
}

// BuildPrompt renders the fixed-order prompt body.
// Budgeting against a token ceiling is applied separately by Trim.
func BuildPrompt(ctx Context) string {
	var b strings.Builder

	writeIntent(&b, ctx.Intent)

	if ctx.UnifiedDiff != "" {
		b.WriteString("\n## Diff\n")
		b.WriteString(ctx.UnifiedDiff)
		b.WriteString("\n")
	}

	writeDownstream(&b, ctx)
	writeCrossProject(&b, ctx)

	return b.String()
}

func writeIntent(b *strings.Builder, intent ChangeIntent) {
	b.WriteString("## Change\n")

	verb := intent.Verb
	if verb == "" {
		verb = "modified"
	}

	b.WriteString(verb)
	b.WriteString(" ")
	b.WriteString(intent.FileName)
	b.WriteString("\n")
}

func writeDownstream(b *strings.Builder, ctx Context) {
	if len(ctx.Downstream) == 0 {
		return
	}

	b.WriteString("\n## Downstream usages\n")

	for _, group := range ctx.Downstream {
		if len(group.Usages) == 0 {
			continue
		}

		b.WriteString("### ")
		b.WriteString(group.CallsiteClass)
		b.WriteString("\n")

		for _, usage := range group.Usages {
			b.WriteString("- ")
			b.WriteString(usage.Path)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(usage.Line))
			b.WriteString("\n")
			writeSnippet(b, ctx, usage.Path, usage.Line)
		}
	}
}

func writeCrossProject(b *strings.Builder, ctx Context) {
	if len(ctx.CrossProject) == 0 {
		return
	}

	b.WriteString("\n## Cross-project impacts\n")

	for _, group := range ctx.CrossProject {
		hasAny := len(group.Class) > 0 || len(group.API) > 0 || len(group.RPC) > 0
		if !hasAny {
			continue
		}

		b.WriteString("### ")
		b.WriteString(group.Project)
		b.WriteString("\n")

		writeImpactBucket(b, ctx, "class", group.Class)
		writeImpactBucket(b, ctx, "api", group.API)
		writeImpactBucket(b, ctx, "rpc", group.RPC)
	}
}

func writeImpactBucket(b *strings.Builder, ctx Context, label string, impacts []model.Impact) {
	if len(impacts) == 0 {
		return
	}

	b.WriteString("#### ")
	b.WriteString(label)
	b.WriteString("\n")

	for _, impact := range impacts {
		b.WriteString("- ")
		b.WriteString(impact.File)
		b.WriteString(":")
		b.WriteString(strconv.Itoa(impact.Line))

		if impact.API != "" {
			b.WriteString(" (")
			b.WriteString(impact.API)
			b.WriteString(")")
		}

		b.WriteString("\n")
		writeSnippet(b, ctx, impact.File, impact.Line)
	}
}

func writeSnippet(b *strings.Builder, ctx Context, path string, line int) {
	snippet, ok := ctx.Snippets[SnippetKey(path, line)]
	if !ok {
		return
	}

	start := line - len(snippet.ContextBefore)

	for i, before := range snippet.ContextBefore {
		b.WriteString("  ")
		b.WriteString(strconv.Itoa(start + i))
		b.WriteString(": ")
		b.WriteString(before)
		b.WriteString("\n")
	}

	b.WriteString("  ")
	b.WriteString(strconv.Itoa(line))
	b.WriteString(": ")
	b.WriteString(snippet.TargetCode)
	b.WriteString("\n")

	for i, after := range snippet.ContextAfter {
		b.WriteString("  ")
		b.WriteString(strconv.Itoa(line + 1 + i))
		b.WriteString(": ")
		b.WriteString(after)
		b.WriteString("\n")
	}
}
