package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt sizes so history trimming can respect a
// token budget instead of a raw message count.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter for the given model. When no encoding is
// known for the model (or the encoder cannot be initialized offline), enc
// stays nil and Count falls back to a character-based estimate.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	}
	return &TokenCounter{enc: enc}
}

// Count returns the approximate token footprint of the messages, including
// the per-message framing overhead.
func (c *TokenCounter) Count(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		// every message carries a few tokens of role/format framing
		total += 4
		total += c.countText(m.Content)
		for _, tc := range m.ToolCalls {
			total += c.countText(tc.Name) + c.countText(tc.Arguments)
		}
	}
	return total
}

func (c *TokenCounter) countText(s string) int {
	if c.enc == nil {
		// rough heuristic: one token per four characters
		return (len(s) + 3) / 4
	}
	return len(c.enc.Encode(s, nil, nil))
}
