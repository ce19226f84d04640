package promptasm

import (
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// DefaultMaxTokens is used when Config.Prompt.MaxTokens is unset.
const DefaultMaxTokens = 6000

const cl100kEncoding = "cl100k_base"

// TokenCounter counts tokens the same way the target model's tokenizer
// would, so Trim's budget matches what actually gets sent.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(cl100kEncoding)
	if err != nil {
		return nil, fmt.Errorf("promptasm: load %s encoding: %w", cl100kEncoding, err)
	}

	return &TokenCounter{enc: enc}, nil
}

// Count returns the token length of text.
func (c *TokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Trim drops lowest-priority cross-project groups (oldest first, by slice
// order) until the rendered prompt fits under maxTokens. It never
// truncates a snippet mid-window, and never touches the diff or downstream
// sections — those are the primary findings this engine exists to surface.
// Every drop is logged so the caller can record what was omitted (the
// "no silent caps" principle).
func (c *TokenCounter) Trim(ctx Context, maxTokens int, logger *slog.Logger) Context {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	if logger == nil {
		logger = slog.Default()
	}

	for {
		rendered := BuildPrompt(ctx)
		if c.Count(rendered) <= maxTokens || len(ctx.CrossProject) == 0 {
			return ctx
		}

		dropped := ctx.CrossProject[0]
		ctx.CrossProject = ctx.CrossProject[1:]

		logger.Warn("promptasm: dropped cross-project group to honor token budget",
			"project", dropped.Project, "max_tokens", maxTokens)
	}
}

// GroupByCallsiteClass buckets usages the way the prompt groups downstream
// findings, keyed by Usage.Kind (the callsite class: "reference" or
// "injection").
func GroupByCallsiteClass(usages []model.Usage) []DownstreamGroup {
	order := []string{}
	buckets := map[string][]model.Usage{}

	for _, u := range usages {
		if _, ok := buckets[u.Kind]; !ok {
			order = append(order, u.Kind)
		}

		buckets[u.Kind] = append(buckets[u.Kind], u)
	}

	groups := make([]DownstreamGroup, 0, len(order))
	for _, kind := range order {
		groups = append(groups, DownstreamGroup{CallsiteClass: kind, Usages: buckets[kind]})
	}

	return groups
}

// GroupCrossProject buckets impacts by project then type, in the project
// order they were first seen (callers typically pre-sort via
// model.SortImpacts so this preserves (project, file, line) order).
func GroupCrossProject(impacts []model.Impact) []CrossProjectGroup {
	order := []string{}
	byProject := map[string]*CrossProjectGroup{}

	for _, impact := range impacts {
		group, ok := byProject[impact.Project]
		if !ok {
			group = &CrossProjectGroup{Project: impact.Project}
			byProject[impact.Project] = group
			order = append(order, impact.Project)
		}

		switch impact.Type {
		case model.ImpactClassReference:
			group.Class = append(group.Class, impact)
		case model.ImpactAPICall:
			group.API = append(group.API, impact)
		case model.ImpactRPCReference:
			group.RPC = append(group.RPC, impact)
		}
	}

	groups := make([]CrossProjectGroup, 0, len(order))
	for _, name := range order {
		groups = append(groups, *byProject[name])
	}

	return groups
}
