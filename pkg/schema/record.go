package schema

import (
	"fable/pkg/story"
)

// StoredStory is one generated story with everything the reader UI needs:
// the story text, its analysis, the image prompts that were issued, and the
// illustration files produced so far.
type StoredStory struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Params    GenerateParams `json:"params"`
	Story     Story          `json:"story"`
	Analysis  story.Analysis `json:"analysis"`

	// ImagePrompts maps paragraph index to the prompt sent for it.
	ImagePrompts map[int]string `json:"image_prompts,omitempty"`
	// Images maps paragraph index to the saved illustration filename.
	Images map[int]string `json:"images,omitempty"`

	Revisions []Revision `json:"revisions,omitempty"`
}

// Revision records one paragraph rewrite, newest first.
type Revision struct {
	ID             string `json:"id"`
	ParagraphIndex int    `json:"paragraph_index"`
	Instruction    string `json:"instruction"`
	ReadingLevel   string `json:"reading_level,omitempty"`
	Original       string `json:"original"`
	Result         string `json:"result"`
	CreatedAt      string `json:"created_at"`
}

// ImageRequest is one unit of work for the image generation queue.
type ImageRequest struct {
	Prompt         string `json:"prompt"`
	StoryID        string `json:"story_id"`
	ParagraphIndex int    `json:"paragraph_index"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
}

// DefaultImageRequest returns an ImageRequest with the landscape aspect the
// page-flip reader lays out for.
func DefaultImageRequest(prompt string) *ImageRequest {
	return &ImageRequest{
		Prompt:      prompt,
		AspectRatio: "4:3",
	}
}
