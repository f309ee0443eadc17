// Package tokens enforces provider token budgets on text before
// submission. It uses the cl100k_base BPE when available and degrades to
// a rune-count approximation when the encoding cannot be loaded (e.g. in
// offline test environments).
package tokens

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/salesmind/ragcore/internal/logger"
)

// DefaultEncoding is the BPE used by current OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// approxRunesPerToken is the fallback ratio when no encoder is available.
const approxRunesPerToken = 4

// Budget truncates text to a maximum token count.
type Budget struct {
	enc   *tiktoken.Tiktoken
	limit int
}

// NewBudget creates a Budget of limit tokens using the named encoding.
// A load failure is logged and the budget falls back to approximation.
func NewBudget(encoding string, limit int) *Budget {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("Token encoding %q unavailable, using rune approximation: %v", encoding, err)
		enc = nil
	}

	return &Budget{enc: enc, limit: limit}
}

// Limit returns the configured token limit.
func (b *Budget) Limit() int {
	return b.limit
}

// Count returns the token count of text, approximated when no encoder
// is loaded.
func (b *Budget) Count(text string) int {
	if b.enc == nil {
		return (len([]rune(text)) + approxRunesPerToken - 1) / approxRunesPerToken
	}
	return len(b.enc.Encode(text, nil, nil))
}

// Truncate returns text cut down to the token limit. Text within budget
// is returned unchanged.
func (b *Budget) Truncate(text string) string {
	if b.limit <= 0 {
		return text
	}

	if b.enc == nil {
		runes := []rune(text)
		max := b.limit * approxRunesPerToken
		if len(runes) <= max {
			return text
		}
		return string(runes[:max])
	}

	ids := b.enc.Encode(text, nil, nil)
	if len(ids) <= b.limit {
		return text
	}
	return b.enc.Decode(ids[:b.limit])
}
