// Package tokenizer wraps tiktoken behind the two operations the prompt
// budgeter needs: counting tokens and truncating text to a token limit.
package tokenizer

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkoukk/tiktoken-go"
)

// TruncationMarker is appended whenever Truncate has to cut text, so that
// downstream consumers and logs can tell the content is lossy.
const TruncationMarker = " [truncated]"

const fallbackEncoding = "cl100k_base"

type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New returns a tokenizer matching the given model's vocabulary. If tiktoken
// has no encoding registered for the model, it falls back to cl100k_base and
// logs a warning; the fallback is never surfaced as an error.
func New(model string) *Tokenizer {
	if model != "" {
		enc, err := tiktoken.EncodingForModel(model)
		if err == nil {
			return &Tokenizer{enc: enc}
		}
		log.Warn("no tokenizer for model, falling back", "model", model, "fallback", fallbackEncoding, "error", err)
	}
	enc, err := tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		// cl100k_base ships with tiktoken-go; this only fires if the
		// library itself is broken.
		panic("tokenizer: fallback encoding unavailable: " + err.Error())
	}
	return &Tokenizer{enc: enc}
}

// CountTokens returns the number of tokens in text. Empty text counts as 0.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate cuts text down so that the result fits within maxTokens, marker
// included. Text already within the limit is returned unchanged. The marker's
// own tokens are reserved out of the limit, so the result only exceeds
// maxTokens in the degenerate case where the limit is smaller than the marker
// itself (the marker alone is still emitted so the cut stays visible).
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if text == "" {
		return ""
	}
	if maxTokens < 0 {
		maxTokens = 0
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}

	keep := maxTokens - t.CountTokens(TruncationMarker)
	if keep <= 0 {
		return strings.TrimSpace(TruncationMarker)
	}
	return t.enc.Decode(ids[:keep]) + TruncationMarker
}
