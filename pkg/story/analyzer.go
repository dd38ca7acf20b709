// Package story analyzes generated story text with deterministic lexical
// heuristics: it identifies characters, settings, and the four canonical
// narrative beats, recommends which paragraphs to illustrate, and builds
// narratively grounded image-generation prompts from the result.
//
// Everything here is pure pattern matching over in-memory text. No ML, no
// I/O; identical input always yields identical output.
package story

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// BeatType names one of the four canonical story-structure moments.
type BeatType string

const (
	BeatIntroduction BeatType = "introduction"
	BeatAction       BeatType = "action"
	BeatClimax       BeatType = "climax"
	BeatResolution   BeatType = "resolution"
)

// Character is one extracted character, ordered by importance in the
// analysis.
type Character struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	FirstAppearance int    `json:"first_appearance"`
	Importance      int    `json:"importance"`
}

// Setting is a location phrase extracted from the opening paragraphs.
type Setting struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	FirstAppearance int    `json:"first_appearance"`
}

// NarrativeElement is one identified beat with the per-paragraph detail the
// image prompt builder consumes.
type NarrativeElement struct {
	ParagraphIndex int      `json:"paragraph_index"`
	Type           BeatType `json:"type"`
	Importance     int      `json:"importance"`
	Characters     []string `json:"characters,omitempty"`
	Setting        string   `json:"setting,omitempty"`
	Action         string   `json:"action,omitempty"`
	Description    string   `json:"description"`
	EmotionalTone  string   `json:"emotional_tone"`
}

// Analysis is the full result of analyzing one story. It is computed fresh
// per story and never mutated afterwards.
type Analysis struct {
	Title                      string             `json:"title"`
	Theme                      string             `json:"theme,omitempty"`
	MainCharacters             []Character        `json:"main_characters"`
	Settings                   []Setting          `json:"settings"`
	NarrativeElements          []NarrativeElement `json:"narrative_elements"`
	RecommendedImageParagraphs []int              `json:"recommended_image_paragraphs"`
}

const (
	maxMainCharacters = 3
	maxIllustrations  = 4
	// settings are assumed to be established early in children's stories
	settingScanParagraphs = 5
)

// capitalizedWordRX matches single capitalized words, the conservative name
// candidate shape used for character detection.
var capitalizedWordRX = regexp.MustCompile(`\b[[:upper:]][[:lower:]]+\b`)

// nameStoplist holds capitalized function words that start sentences and are
// never character names.
var nameStoplist = map[string]struct{}{
	"The": {}, "A": {}, "An": {}, "It": {}, "This": {}, "That": {},
	"Then": {}, "But": {}, "And": {},
}

// settingIndicators are checked in order; the first hit in a paragraph wins.
var settingIndicators = []string{
	"in the", "at the", "inside", "near the", "under the", "beyond the",
	"castle", "forest", "ocean", "village", "mountain", "garden", "meadow",
}

// settingIndicatorRXs match the indicators case-insensitively against the
// original paragraph. Byte offsets from a strings.ToLower copy are unusable:
// lowering can change a rune's encoded length, so offsets found in the
// lowered string may land mid-rune or past the end of the original.
var settingIndicatorRXs = compileIndicators(settingIndicators)

func compileIndicators(indicators []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(indicators))
	for i, s := range indicators {
		out[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s))
	}
	return out
}

var actionKeywords = []string{
	"suddenly", "raced", "burst", "discovery", "ran", "jumped", "chased",
	"rushed", "grabbed", "leaped", "dashed",
}

var climaxKeywords = []string{
	"finally", "at last", "realized", "revealed", "discovered", "bravest",
	"most important", "remembered", "understood",
}

// Analyze runs the full heuristic pipeline over one story. Every extraction
// step is independently optional: degenerate input produces empty collections,
// never an error.
func Analyze(title string, paragraphs []string, theme string) Analysis {
	a := Analysis{
		Title: title,
		Theme: theme,
	}
	a.MainCharacters = extractCharacters(paragraphs)
	a.Settings = extractSettings(paragraphs)
	a.NarrativeElements = identifyNarrativeElements(paragraphs)
	a.RecommendedImageParagraphs = recommendImageParagraphs(a.MainCharacters, a.NarrativeElements)
	return a
}

// extractCharacters scans the joined text for repeated capitalized words.
// Single mentions are treated as noise, not characters.
func extractCharacters(paragraphs []string) []Character {
	joined := strings.Join(paragraphs, "\n")
	counts := make(map[string]int)
	for _, m := range capitalizedWordRX.FindAllString(joined, -1) {
		if _, stopped := nameStoplist[m]; stopped {
			continue
		}
		counts[m]++
	}

	var out []Character
	for name, n := range counts {
		if n < 2 {
			continue
		}
		out = append(out, Character{
			Name:            name,
			Description:     fmt.Sprintf("%s, a character who appears throughout the story", name),
			FirstAppearance: firstParagraphContaining(paragraphs, name),
			Importance:      importanceFromMentions(n),
		})
	}

	// Importance desc, then mention-independent tie-breaks so the result is
	// stable for identical input.
	slices.SortStableFunc(out, func(a, b Character) int {
		if a.Importance != b.Importance {
			return b.Importance - a.Importance
		}
		if a.FirstAppearance != b.FirstAppearance {
			return a.FirstAppearance - b.FirstAppearance
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out) > maxMainCharacters {
		out = out[:maxMainCharacters]
	}
	return out
}

func importanceFromMentions(mentions int) int {
	imp := (mentions + 1) / 2 // ceil(mentions/2)
	return min(10, max(1, imp))
}

func firstParagraphContaining(paragraphs []string, name string) int {
	lower := strings.ToLower(name)
	for i, p := range paragraphs {
		if strings.Contains(strings.ToLower(p), lower) {
			return i
		}
	}
	return 0
}

// extractSettings looks for locative phrases in the opening paragraphs, one
// entry per paragraph with a match.
func extractSettings(paragraphs []string) []Setting {
	limit := min(settingScanParagraphs, len(paragraphs))

	var out []Setting
	for i := 0; i < limit; i++ {
		phrase, ok := settingPhrase(paragraphs[i])
		if !ok {
			continue
		}
		out = append(out, Setting{
			Name:            phrase,
			Description:     phrase,
			FirstAppearance: i,
		})
	}
	return out
}

// settingPhrase extracts the substring from the first locative indicator to
// the next sentence-terminating period, or the end of the paragraph if none.
func settingPhrase(paragraph string) (string, bool) {
	for _, rx := range settingIndicatorRXs {
		loc := rx.FindStringIndex(paragraph)
		if loc == nil {
			continue
		}
		rest := paragraph[loc[0]:]
		if end := strings.Index(rest, "."); end != -1 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// paragraphCharacters applies the character name rule to one paragraph,
// without the repeated-mention filter used for the global scan.
func paragraphCharacters(paragraph string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range capitalizedWordRX.FindAllString(paragraph, -1) {
		if _, stopped := nameStoplist[m]; stopped {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// recommendImageParagraphs selects at most four paragraph indices for
// illustration: the identified beats by importance, plus the top character's
// first appearance if it can claim a slot. Climax- and resolution-tier beats
// (importance >= 8) are never evicted for a character-introduction shot.
func recommendImageParagraphs(characters []Character, elements []NarrativeElement) []int {
	selected := slices.Clone(elements)
	slices.SortStableFunc(selected, func(a, b NarrativeElement) int {
		return b.Importance - a.Importance
	})
	if len(selected) > maxIllustrations {
		selected = selected[:maxIllustrations]
	}

	indices := make([]int, 0, maxIllustrations)
	for _, e := range selected {
		indices = append(indices, e.ParagraphIndex)
	}

	if len(characters) > 0 {
		first := characters[0].FirstAppearance
		if !slices.Contains(indices, first) {
			if len(indices) < maxIllustrations {
				indices = append(indices, first)
			} else if last := len(selected) - 1; last >= 0 && selected[last].Importance < 8 {
				indices[last] = first
			}
		}
	}

	slices.Sort(indices)
	return slices.Compact(indices)
}
