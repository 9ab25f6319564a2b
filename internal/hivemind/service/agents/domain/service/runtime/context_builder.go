package runtime

import (
	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/pkg"
	"github.com/kiosk404/hivelink/pkg/logger"
)

// ContextBuilder assembles the messages for one turn: system prompt, as much recent
// history as fits the budget, then the user input.
type ContextBuilder struct {
	estimator        *TokenEstimator
	maxHistoryTokens int
}

// NewContextBuilder creates a builder. maxHistoryTokens <= 0 keeps the whole history.
func NewContextBuilder(estimator *TokenEstimator, maxHistoryTokens int) *ContextBuilder {
	if estimator == nil {
		estimator = NewTokenEstimator(DefaultCharsPerToken)
	}
	return &ContextBuilder{estimator: estimator, maxHistoryTokens: maxHistoryTokens}
}

// Build returns the model input. History is trimmed from the oldest end, one
// user/assistant exchange at a time.
func (b *ContextBuilder) Build(systemPrompt string, history []*schema.Message, input string) []*schema.Message {
	kept := b.trim(history)

	msgs := make([]*schema.Message, 0, len(kept)+2)
	if systemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(systemPrompt))
	}
	msgs = append(msgs, kept...)
	return append(msgs, schema.UserMessage(input))
}

func (b *ContextBuilder) trim(history []*schema.Message) []*schema.Message {
	if b.maxHistoryTokens <= 0 {
		return history
	}
	dropped := 0
	for len(history) > 0 && b.estimator.EstimateMessages(history) > b.maxHistoryTokens {
		n := 2
		if len(history) < n {
			n = len(history)
		}
		history = history[n:]
		dropped += n
	}
	if dropped > 0 {
		logger.DebugX(pkg.ModuleName, "[ContextBuilder] dropped %d history messages to fit %d tokens", dropped, b.maxHistoryTokens)
	}
	return history
}
