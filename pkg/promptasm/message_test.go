package promptasm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/zlbkkk/cloudimpact/pkg/promptasm"
)

func TestToMessagesProducesSystemThenHumanTurn(t *testing.T) {
	t.Parallel()

	messages := promptasm.ToMessages("body text")

	require.Len(t, messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
}

func TestRetryMessagesAppendsClarifyingTurn(t *testing.T) {
	t.Parallel()

	messages := promptasm.RetryMessages("body text", "missing risk_level")

	require.Len(t, messages, 3)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[2].Role)
}
