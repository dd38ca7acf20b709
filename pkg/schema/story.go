package schema

// Story is the JSON object the chat model is asked to return.
type Story struct {
	Title    string   `json:"title" jsonschema_description:"Title of the story"`
	Content  []string `json:"content" jsonschema_description:"Story text as an ordered array of paragraphs"`
	Theme    string   `json:"theme,omitempty" jsonschema_description:"Central theme of the story (e.g., friendship, courage)"`
	Keywords []string `json:"keywords,omitempty" jsonschema_description:"Key words or phrases the story was built around"`
	// KeyMoments are the model's own picks for illustration-worthy moments.
	// They are advisory; the analyzer's heuristics remain the source of truth.
	KeyMoments []KeyMoment `json:"keyMoments,omitempty" jsonschema_description:"Moments the model considers most worth illustrating"`
}

type KeyMoment struct {
	ParagraphIndex int    `json:"paragraphIndex" jsonschema_description:"Zero-based index of the paragraph this moment occurs in"`
	Description    string `json:"description" jsonschema_description:"Short description of the moment"`
	EmotionalTone  string `json:"emotionalTone,omitempty" jsonschema_description:"Dominant emotion of the moment"`
}

// Generation modes.
const (
	ModeTemplate = "template"
	ModeKeywords = "keywords"
)

// GenerateOptions tune story length and language difficulty.
type GenerateOptions struct {
	StoryLength  string `json:"storyLength,omitempty"`  // short | medium | long
	ReadingLevel string `json:"readingLevel,omitempty"` // easy | moderate | advanced
}

// GenerateParams are the story-generation request parameters collected by the
// reading UI.
type GenerateParams struct {
	Mode     string          `json:"mode"`
	Template string          `json:"template,omitempty"`
	Keywords string          `json:"keywords,omitempty"`
	Options  GenerateOptions `json:"options,omitempty"`
}
