package orchestrator

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// LLMClient is the orchestrator's only dependency on a model backend. The
// core never specifies which model or provider answers a prompt; callers
// inject a concrete implementation (e.g. a langchaingo llms.Model
// adapter).
type LLMClient interface {
	Generate(ctx context.Context, messages []llms.MessageContent) (string, error)
}
