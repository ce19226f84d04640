package promptasm

import (
	"github.com/tmc/langchaingo/llms"
)

// SystemPrompt is the fixed system turn instructing the model to return a
// JSON object shaped like model.AnalysisReport.
const SystemPrompt = `You are a senior engineer assessing the blast radius of a code change.
Given a diff, its in-repo usages, and any cross-project impacts, respond with a single JSON object
with exactly these fields: risk_level, change_intent, downstream_dependency, cross_service_impact,
functional_impact, test_strategy. Do not include any text outside the JSON object.`

// ToMessages wraps an assembled prompt body into the system+human turn
// shape the orchestrator's LLMClient interface expects.
func ToMessages(body string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, body),
	}
}

// RetryMessages appends a clarifying human turn asking the model to
// correct a reply that failed schema validation. The engine retries once
// before a FAILED report is stored.
func RetryMessages(body string, validationError string) []llms.MessageContent {
	messages := ToMessages(body)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
		"Your previous reply did not match the required JSON shape ("+validationError+
			"). Reply again with a single valid JSON object matching exactly the fields described above."))

	return messages
}
