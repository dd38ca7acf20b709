package story

import (
	"fmt"
	"strings"
)

// sceneLabels maps each beat to the shot description used in image prompts.
var sceneLabels = map[BeatType]string{
	BeatIntroduction: "establishing shot",
	BeatAction:       "action scene",
	BeatClimax:       "climactic moment",
	BeatResolution:   "resolution scene",
}

const defaultSceneLabel = "scene from a children's story"

// narrativeContexts gives each beat a one-sentence clause grounding the image
// in story structure.
var narrativeContexts = map[BeatType]string{
	BeatIntroduction: "This is the beginning of the story, introducing the world and its characters.",
	BeatAction:       "This is an exciting moment in the middle of the story.",
	BeatClimax:       "This is the most important and dramatic moment of the story.",
	BeatResolution:   "This is the end of the story, where everything is resolved.",
}

// ImagePrompt assembles an image-generation prompt for one paragraph, grounded
// in the analysis. Pure string assembly: calling it twice with the same input
// yields byte-identical output, so callers may retry generation freely.
func ImagePrompt(paragraph string, analysis Analysis, index int) string {
	var element *NarrativeElement
	for i := range analysis.NarrativeElements {
		if analysis.NarrativeElements[i].ParagraphIndex == index {
			element = &analysis.NarrativeElements[i]
			break
		}
	}

	scene := defaultSceneLabel
	if element != nil {
		if label, ok := sceneLabels[element.Type]; ok {
			scene = label
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Children's book illustration for %q: %s. %s", analysis.Title, scene, strings.TrimSpace(paragraph))

	if chars := charactersInParagraph(paragraph, analysis.MainCharacters); len(chars) > 0 {
		b.WriteString(" Featuring ")
		for i, c := range chars {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(c.Description)
		}
		b.WriteString(".")
	}

	if setting := settingInParagraph(paragraph, analysis.Settings); setting != "" {
		fmt.Fprintf(&b, " Setting: %s.", setting)
	}

	if element != nil {
		if element.EmotionalTone != ToneNeutral {
			fmt.Fprintf(&b, " The emotional tone is %s.", element.EmotionalTone)
		}
		if ctx, ok := narrativeContexts[element.Type]; ok {
			b.WriteString(" " + ctx)
		}
	}

	return strings.TrimSpace(b.String())
}

func charactersInParagraph(paragraph string, characters []Character) []Character {
	lower := strings.ToLower(paragraph)
	var out []Character
	for _, c := range characters {
		if strings.Contains(lower, strings.ToLower(c.Name)) {
			out = append(out, c)
		}
	}
	return out
}

// settingInParagraph returns the first analyzed setting mentioned by the
// paragraph.
func settingInParagraph(paragraph string, settings []Setting) string {
	lower := strings.ToLower(paragraph)
	for _, s := range settings {
		if s.Name != "" && strings.Contains(lower, strings.ToLower(s.Name)) {
			return s.Name
		}
	}
	return ""
}
