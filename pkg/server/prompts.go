package server

import (
	"fmt"

	"fable/pkg/prompt"
	"fable/pkg/schema"
)

const storySystemPrompt = `You are a celebrated children's story author. You write warm, imaginative, age-appropriate stories with a clear beginning, middle, and end. Your stories always feature a likeable main character, a vivid setting established early, a moment of excitement or discovery in the middle, a single dramatic turning point near the end, and a gentle, satisfying resolution. Never include violence, scary imagery beyond mild suspense, or any content unsuitable for young children.`

const templateInstruction = `Write a children's story based on this premise:

{{template}}

Stay faithful to the premise while adding your own charming details.`

const keywordsInstruction = `Write an original children's story that naturally weaves in all of these keywords:

{{keywords}}

Every keyword must appear in the story.`

const lengthContext = `The story should be {{length_guidance}}. Use {{reading_guidance}}.`

const formattingInstruction = `Respond with a single JSON object and nothing else. The object must have:
- "title": the story title
- "content": an array of strings, one per paragraph
- "theme": the central theme in one or two words
- "keywords": the key words or ideas the story is built on
- "keyMoments": an array of {"paragraphIndex", "description", "emotionalTone"} for the 3-4 most illustration-worthy moments

Do not wrap the JSON in markdown code fences.`

const exampleStory = `Example of the expected shape (do not reuse its content):
{"title":"Pip and the Moon Garden","content":["Pip the field mouse lived in the old stone wall at the edge of the meadow.","One night Pip noticed a silver glow beyond the hedge..."],"theme":"curiosity","keywords":["mouse","garden","moon"],"keyMoments":[{"paragraphIndex":1,"description":"Pip discovers the glowing garden","emotionalTone":"mysterious"}]}`

const reviseSystemPrompt = `You are editing one paragraph of a children's story. Rewrite the paragraph following the instruction you are given, keeping the characters, events, and tone consistent with the rest of the story. Return only the rewritten paragraph, with no commentary, quotes, or markdown.`

const fixJSONPrompt = `The previous output was malformed JSON. Return the same data as one valid, complete JSON object. Output only the JSON object.`

var lengthGuidance = map[string]string{
	"short":  "a short story of 5 to 7 paragraphs",
	"medium": "a story of 8 to 12 paragraphs",
	"long":   "a longer story of 13 to 16 paragraphs",
}

var readingGuidance = map[string]string{
	"easy":     "very simple words and short sentences a beginning reader can follow",
	"moderate": "everyday vocabulary with some longer sentences",
	"advanced": "richer vocabulary and varied sentence structure for confident readers",
}

// storyBudget is the token ceiling for one generation prompt. The reserve
// leaves headroom for the chat protocol's own overhead.
var storyBudget = prompt.Budget{
	Total:    2048,
	Reserved: 128,
	PerType: map[prompt.ComponentType]int{
		prompt.TypeSystem: 512,
	},
}

// buildStoryPrompt assembles the generation prompt from budgeted components.
// The example is the only optional component; under a tight budget it is the
// first thing to go.
func (s *Server) buildStoryPrompt(params schema.GenerateParams) (prompt.BuiltPrompt, error) {
	m := prompt.NewManager(s.Tokenizer, storyBudget)

	instruction := templateInstruction
	if params.Mode == schema.ModeKeywords {
		instruction = keywordsInstruction
	}

	err := m.AddComponents([]prompt.Component{
		{ID: "persona", Type: prompt.TypeSystem, Content: storySystemPrompt, Required: true, Priority: 10},
		{ID: "premise", Type: prompt.TypeInstruction, Content: instruction, Required: true, Priority: 9},
		{ID: "length", Type: prompt.TypeContext, Content: lengthContext, Priority: 8},
		{ID: "format", Type: prompt.TypeFormatting, Content: formattingInstruction, Required: true, Priority: 7},
		{ID: "example", Type: prompt.TypeExample, Content: exampleStory, Priority: 5},
	})
	if err != nil {
		return prompt.BuiltPrompt{}, fmt.Errorf("assembling story prompt: %w", err)
	}

	length, ok := lengthGuidance[params.Options.StoryLength]
	if !ok {
		length = lengthGuidance["medium"]
	}
	reading, ok := readingGuidance[params.Options.ReadingLevel]
	if !ok {
		reading = readingGuidance["moderate"]
	}
	m.SetVariables(map[string]string{
		"template":         params.Template,
		"keywords":         params.Keywords,
		"length_guidance":  length,
		"reading_guidance": reading,
	})

	return m.Build(), nil
}
