package story

import (
	"regexp"
	"strings"
)

const (
	importanceIntroduction = 9
	importanceAction       = 7
	// the climax is the single most visually important moment
	importanceClimax     = 10
	importanceResolution = 8
)

// actionPhraseRXs match verb-led motion, sensory, and speech phrases. The
// first match across the lists is kept as the beat's action phrase.
var actionPhraseRXs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:ran|raced|jumped|climbed|flew|dashed|chased|swam|leaped|tiptoed)\b[^.!?]*`),
	regexp.MustCompile(`(?i)\b(?:saw|heard|found|discovered|noticed|watched|spotted)\b[^.!?]*`),
	regexp.MustCompile(`(?i)\b(?:said|shouted|whispered|called|asked|exclaimed)\b[^.!?]*`),
}

type toneCategory struct {
	name     string
	keywords []string
}

// toneCategories are scanned in order; on equal hit counts the earlier
// category wins, and a zero count for every category yields "neutral".
var toneCategories = []toneCategory{
	{"happy", []string{"happy", "joy", "laughed", "smiled", "delighted", "cheerful", "giggled"}},
	{"sad", []string{"sad", "cried", "tears", "lonely", "missed", "sorrow"}},
	{"scared", []string{"scared", "afraid", "frightened", "terrified", "trembled", "shivered"}},
	{"angry", []string{"angry", "furious", "grumbled", "stomped", "scowled"}},
	{"peaceful", []string{"calm", "peaceful", "quiet", "gentle", "softly", "rested"}},
	{"mysterious", []string{"mysterious", "strange", "curious", "wondered", "secret", "hidden"}},
	{"adventurous", []string{"adventure", "explore", "journey", "brave", "quest", "daring"}},
}

// ToneNeutral is the emotional tone reported when no category scores a hit.
const ToneNeutral = "neutral"

// identifyNarrativeElements finds at most one beat per category, each
// independently gated on story length:
//
//	introduction  paragraph 0, whenever the story has any paragraphs
//	action        best keyword scorer in [1, floor(0.6N)), stories of 3+
//	climax        best scorer in [floor(0.6N), floor(0.9N)), stories of 4+
//	resolution    the last paragraph, stories of 2+
//
// Beats without a positive keyword score fall back to a fixed position
// (range midpoint for action, the 75th-percentile paragraph for climax), so a
// long enough story always yields all four beats.
func identifyNarrativeElements(paragraphs []string) []NarrativeElement {
	n := len(paragraphs)
	if n == 0 {
		return nil
	}

	elements := []NarrativeElement{
		makeElement(paragraphs, 0, BeatIntroduction, importanceIntroduction),
	}

	if n > 2 {
		end := int(float64(n) * 0.6)
		idx := bestScoringParagraph(paragraphs, 1, end, actionScore)
		if idx == -1 {
			idx = (1 + end) / 2 // midpoint of the search range
		}
		elements = append(elements, makeElement(paragraphs, idx, BeatAction, importanceAction))
	}

	if n > 3 {
		start := int(float64(n) * 0.6)
		end := int(float64(n) * 0.9)
		idx := bestScoringParagraph(paragraphs, start, end, climaxScore)
		if idx == -1 {
			idx = min(int(float64(n)*0.75), n-1)
		}
		elements = append(elements, makeElement(paragraphs, idx, BeatClimax, importanceClimax))
	}

	if n > 1 {
		elements = append(elements, makeElement(paragraphs, n-1, BeatResolution, importanceResolution))
	}

	return elements
}

// bestScoringParagraph returns the index in [start, end) with the highest
// positive score, earliest index winning ties, or -1 when nothing scores.
func bestScoringParagraph(paragraphs []string, start, end int, score func(string) int) int {
	start = max(start, 0)
	end = min(end, len(paragraphs))

	best, bestIdx := 0, -1
	for i := start; i < end; i++ {
		if s := score(paragraphs[i]); s > best {
			best, bestIdx = s, i
		}
	}
	return bestIdx
}

func actionScore(paragraph string) int {
	lower := strings.ToLower(paragraph)
	var score int
	for _, kw := range actionKeywords {
		score += strings.Count(lower, kw)
	}
	return score
}

func climaxScore(paragraph string) int {
	lower := strings.ToLower(paragraph)
	var score int
	for _, kw := range climaxKeywords {
		score += strings.Count(lower, kw)
	}
	// exclamation marks mark heightened moments
	score += 2 * strings.Count(paragraph, "!")
	return score
}

func makeElement(paragraphs []string, idx int, beat BeatType, importance int) NarrativeElement {
	p := paragraphs[idx]
	setting, _ := settingPhrase(p)
	return NarrativeElement{
		ParagraphIndex: idx,
		Type:           beat,
		Importance:     importance,
		Characters:     paragraphCharacters(p),
		Setting:        setting,
		Action:         actionPhrase(p),
		Description:    firstSentence(p),
		EmotionalTone:  emotionalTone(p),
	}
}

func actionPhrase(paragraph string) string {
	for _, rx := range actionPhraseRXs {
		if m := rx.FindString(paragraph); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// emotionalTone counts keyword hits per category and picks the strongest.
func emotionalTone(paragraph string) string {
	lower := strings.ToLower(paragraph)
	best, tone := 0, ToneNeutral
	for _, cat := range toneCategories {
		var hits int
		for _, kw := range cat.keywords {
			hits += strings.Count(lower, kw)
		}
		if hits > best {
			best, tone = hits, cat.name
		}
	}
	return tone
}

func firstSentence(paragraph string) string {
	paragraph = strings.TrimSpace(paragraph)
	if idx := strings.IndexAny(paragraph, ".!?"); idx != -1 {
		return paragraph[:idx+1]
	}
	return paragraph
}
