package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestMessageResponseText(t *testing.T) {
	t.Parallel()

	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "first "},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "second"},
	}}
	assert.Equal(t, "first second", resp.Text())

	empty := &MessageResponse{}
	assert.Empty(t, empty.Text())
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.00, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
	assert.Zero(t, u.EstimateCost("unknown-model"))

	small := TokenUsage{InputTokens: 1000, OutputTokens: 500}
	assert.InDelta(t, 0.0105, small.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
}

func TestToSDKMessages(t *testing.T) {
	t.Parallel()

	out := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	assert.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
}
