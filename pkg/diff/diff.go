// Package diff produces word-level diffs of story paragraph revisions, so the
// reader UI can highlight exactly what a rewrite changed.
package diff

import (
	"strings"

	"github.com/aryann/difflib"

	"fable/pkg/utils"
)

type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

// WordDelta is one word-level change between the original and revised text.
type WordDelta struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Words diffs two strings at word granularity.
func Words(original, revised string) []WordDelta {
	at := utils.TokenizeWords(original)
	bt := utils.TokenizeWords(revised)
	recs := difflib.Diff(at, bt)
	out := make([]WordDelta, 0, len(recs))
	for _, r := range recs {
		switch r.Delta {
		case difflib.Common:
			out = append(out, WordDelta{Op: Equal, Text: r.Payload})
		case difflib.LeftOnly:
			out = append(out, WordDelta{Op: Delete, Text: r.Payload})
		case difflib.RightOnly:
			out = append(out, WordDelta{Op: Insert, Text: r.Payload})
		}
	}
	return out
}

// Changed reports whether the delta list contains any non-equal entries.
func Changed(deltas []WordDelta) bool {
	for _, d := range deltas {
		if d.Op != Equal {
			return true
		}
	}
	return false
}

// Summary renders deltas as a compact inline marker string, insertions in
// {+...+} and deletions in [-...-].
func Summary(deltas []WordDelta) string {
	var b strings.Builder
	for _, d := range deltas {
		switch d.Op {
		case Equal:
			b.WriteString(d.Text)
		case Insert:
			b.WriteString("{+" + d.Text + "+}")
		case Delete:
			b.WriteString("[-" + d.Text + "-]")
		}
	}
	return b.String()
}
