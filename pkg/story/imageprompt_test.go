package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storyAnalysisFixture() ([]string, Analysis) {
	paragraphs := []string{
		"Pip the mouse lived in the cozy burrow. Pip loved mornings.",
		"One day Pip raced across the field.",
		"Pip found a shiny button at last! Pip laughed with joy!",
		"Pip carried the button home and rested.",
	}
	return paragraphs, Analyze("Pip's Button", paragraphs, "")
}

func TestImagePromptSceneLabels(t *testing.T) {
	paragraphs, a := storyAnalysisFixture()
	require.Len(t, a.NarrativeElements, 4)

	labels := map[BeatType]string{
		BeatIntroduction: "establishing shot",
		BeatAction:       "action scene",
		BeatClimax:       "climactic moment",
		BeatResolution:   "resolution scene",
	}
	for _, e := range a.NarrativeElements {
		p := ImagePrompt(paragraphs[e.ParagraphIndex], a, e.ParagraphIndex)
		assert.Contains(t, p, labels[e.Type], "beat %s", e.Type)
	}
}

func TestImagePromptDefaultScene(t *testing.T) {
	paragraphs, a := storyAnalysisFixture()

	// An index with no identified beat falls back to the generic scene.
	p := ImagePrompt(paragraphs[0], a, 99)
	assert.Contains(t, p, "scene from a children's story")
}

func TestImagePromptIncludesTitleAndParagraph(t *testing.T) {
	paragraphs, a := storyAnalysisFixture()

	p := ImagePrompt(paragraphs[0], a, 0)
	assert.True(t, strings.HasPrefix(p, `Children's book illustration for "Pip's Button":`))
	assert.Contains(t, p, paragraphs[0])
}

func TestImagePromptCharacterAndSettingClauses(t *testing.T) {
	paragraphs, a := storyAnalysisFixture()
	require.NotEmpty(t, a.MainCharacters)
	require.NotEmpty(t, a.Settings)

	p := ImagePrompt(paragraphs[0], a, 0)
	assert.Contains(t, p, "Featuring "+a.MainCharacters[0].Description)
	assert.Contains(t, p, "Setting: "+a.Settings[0].Name+".")
}

func TestImagePromptToneClauseOmittedWhenNeutral(t *testing.T) {
	paragraphs, a := storyAnalysisFixture()

	// The climax paragraph laughs with joy; the resolution rests quietly.
	var climax, resolution NarrativeElement
	for _, e := range a.NarrativeElements {
		switch e.Type {
		case BeatClimax:
			climax = e
		case BeatResolution:
			resolution = e
		}
	}

	happy := ImagePrompt(paragraphs[climax.ParagraphIndex], a, climax.ParagraphIndex)
	assert.Contains(t, happy, "The emotional tone is happy.")

	calm := ImagePrompt(paragraphs[resolution.ParagraphIndex], a, resolution.ParagraphIndex)
	if resolution.EmotionalTone == ToneNeutral {
		assert.NotContains(t, calm, "The emotional tone is")
	} else {
		assert.Contains(t, calm, "The emotional tone is "+resolution.EmotionalTone+".")
	}
}

func TestImagePromptNarrativeContext(t *testing.T) {
	paragraphs, a := storyAnalysisFixture()

	p := ImagePrompt(paragraphs[0], a, 0)
	assert.Contains(t, p, "This is the beginning of the story")
}

func TestImagePromptIsIdempotent(t *testing.T) {
	paragraphs, a := storyAnalysisFixture()

	for idx := range paragraphs {
		first := ImagePrompt(paragraphs[idx], a, idx)
		second := ImagePrompt(paragraphs[idx], a, idx)
		assert.Equal(t, first, second)
	}
}

func TestImagePromptEmptyAnalysis(t *testing.T) {
	p := ImagePrompt("A lone paragraph.", Analysis{Title: "Untitled"}, 0)
	assert.Contains(t, p, "scene from a children's story")
	assert.Contains(t, p, "A lone paragraph.")
	assert.NotContains(t, p, "Featuring")
	assert.NotContains(t, p, "Setting:")
}
