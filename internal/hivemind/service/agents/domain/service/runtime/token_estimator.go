package runtime

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

// TokenEstimator approximates token counts from rune counts. It is used to bound
// the history sent to the model and to fill in usage when a provider reports none.
type TokenEstimator struct {
	charsPerToken float64
}

const (
	// DefaultCharsPerToken blends English (~4) and CJK (~2) text.
	DefaultCharsPerToken = 3.5

	// PerMessageOverhead accounts for role tokens and delimiters.
	PerMessageOverhead = 4
)

// NewTokenEstimator creates an estimator. A ratio <= 0 uses DefaultCharsPerToken.
func NewTokenEstimator(charsPerToken float64) *TokenEstimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &TokenEstimator{charsPerToken: charsPerToken}
}

// EstimateString estimates tokens for a raw string.
func (te *TokenEstimator) EstimateString(s string) int {
	if len(s) == 0 {
		return 0
	}
	return int(float64(utf8.RuneCountInString(s))/te.charsPerToken) + 1
}

// EstimateMessage estimates tokens for a single message.
func (te *TokenEstimator) EstimateMessage(msg *schema.Message) int {
	if msg == nil {
		return 0
	}
	return PerMessageOverhead + te.EstimateString(msg.Content) + te.EstimateString(msg.Name)
}

// EstimateMessages estimates total tokens for a slice of messages.
func (te *TokenEstimator) EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, msg := range msgs {
		total += te.EstimateMessage(msg)
	}
	return total
}
