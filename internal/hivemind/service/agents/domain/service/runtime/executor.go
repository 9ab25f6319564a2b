package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

// TurnResult is the output of a successful turn.
type TurnResult struct {
	FinalMessage *schema.Message
	Usage        *entity.TokenUsage
}

// TurnExecutor streams one model turn and reports text deltas as they arrive.
type TurnExecutor struct {
	estimator *TokenEstimator
}

// NewTurnExecutor creates a TurnExecutor.
func NewTurnExecutor(estimator *TokenEstimator) *TurnExecutor {
	if estimator == nil {
		estimator = NewTokenEstimator(DefaultCharsPerToken)
	}
	return &TurnExecutor{estimator: estimator}
}

// Execute streams msgs through cm. onDelta is called for every non-empty chunk.
func (te *TurnExecutor) Execute(
	ctx context.Context,
	cm einoModel.BaseChatModel,
	msgs []*schema.Message,
	onDelta func(delta string),
) (*TurnResult, error) {
	sr, err := cm.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	defer sr.Close()

	var chunks []*schema.Message
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream recv error: %w", err)
		}
		if msg == nil {
			continue
		}
		chunks = append(chunks, msg)
		if msg.Content != "" && onDelta != nil {
			onDelta(msg.Content)
		}
	}

	final := &schema.Message{Role: schema.Assistant}
	if len(chunks) > 0 {
		final, err = schema.ConcatMessages(chunks)
		if err != nil {
			return nil, fmt.Errorf("failed to concat messages: %w", err)
		}
	}
	return &TurnResult{FinalMessage: final, Usage: te.usage(msgs, final)}, nil
}

// usage prefers the provider's numbers and falls back to an estimate.
func (te *TurnExecutor) usage(input []*schema.Message, final *schema.Message) *entity.TokenUsage {
	if final.ResponseMeta != nil && final.ResponseMeta.Usage != nil {
		u := final.ResponseMeta.Usage
		return &entity.TokenUsage{
			PromptTokens:     int64(u.PromptTokens),
			CompletionTokens: int64(u.CompletionTokens),
			TotalTokens:      int64(u.TotalTokens),
		}
	}
	prompt := int64(te.estimator.EstimateMessages(input))
	completion := int64(te.estimator.EstimateMessage(final))
	return &entity.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
