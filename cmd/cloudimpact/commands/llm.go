package commands

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

// ErrNoLLMConfigured is returned by a langchainModel wrapping a nil model:
// the engine never specifies which model or provider answers a prompt
// (that wiring is the deployment's responsibility), so the CLI ships with
// no backend selected by default.
var ErrNoLLMConfigured = errors.New("commands: no LLM backend configured")

// langchainModel adapts any langchaingo llms.Model into the orchestrator's
// narrower LLMClient contract, which only needs the model's first reply
// text for a single prompt/response turn.
type langchainModel struct {
	model llms.Model
}

// Generate implements orchestrator.LLMClient.
func (a *langchainModel) Generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	if a.model == nil {
		return "", ErrNoLLMConfigured
	}

	resp, err := a.model.GenerateContent(ctx, messages)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("commands: llm returned no choices")
	}

	return resp.Choices[0].Content, nil
}
