package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTokenizer skips the test when the BPE vocabulary cannot be loaded
// (tiktoken fetches it on first use and caches it).
func newTestTokenizer(t *testing.T, model string) *Tokenizer {
	t.Helper()
	var tk *Tokenizer
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Skipf("tokenizer data unavailable: %v", r)
			}
		}()
		tk = New(model)
	}()
	return tk
}

func TestCountTokens(t *testing.T) {
	tk := newTestTokenizer(t, "gpt-4o")

	assert.Equal(t, 0, tk.CountTokens(""))
	assert.Positive(t, tk.CountTokens("Once upon a time there was a small fox."))
	assert.Greater(t,
		tk.CountTokens("Once upon a time there was a small fox who loved the rain."),
		tk.CountTokens("Once upon a time."))
}

func TestUnknownModelFallsBack(t *testing.T) {
	tk := newTestTokenizer(t, "definitely-not-a-real-model")
	assert.Positive(t, tk.CountTokens("hello world"))
}

func TestTruncateWithinLimitUnchanged(t *testing.T) {
	tk := newTestTokenizer(t, "gpt-4o")

	text := "A short sentence."
	n := tk.CountTokens(text)
	assert.Equal(t, text, tk.Truncate(text, n))
	assert.Equal(t, text, tk.Truncate(text, n+100))
	assert.Equal(t, "", tk.Truncate("", 10))
}

func TestTruncateMarksAndFitsBudget(t *testing.T) {
	tk := newTestTokenizer(t, "gpt-4o")

	text := strings.Repeat("The little boat drifted past the lighthouse. ", 40)
	limit := 25
	require.Greater(t, tk.CountTokens(text), limit)

	got := tk.Truncate(text, limit)
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
	assert.LessOrEqual(t, tk.CountTokens(got), limit)
	assert.NotEqual(t, text, got)
}

func TestTruncateTinyLimitStillMarked(t *testing.T) {
	tk := newTestTokenizer(t, "gpt-4o")

	got := tk.Truncate("plenty of words that cannot possibly fit", 1)
	assert.Equal(t, strings.TrimSpace(TruncationMarker), got)

	got = tk.Truncate("plenty of words that cannot possibly fit", 0)
	assert.Equal(t, strings.TrimSpace(TruncationMarker), got)
}
