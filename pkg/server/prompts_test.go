package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable/pkg/schema"
	"fable/pkg/tokenizer"
)

func newPromptServer(t *testing.T) *Server {
	t.Helper()
	var tk *tokenizer.Tokenizer
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Skipf("tokenizer data unavailable: %v", r)
			}
		}()
		tk = tokenizer.New("gpt-4o")
	}()
	return &Server{Tokenizer: tk}
}

func TestBuildStoryPromptTemplateMode(t *testing.T) {
	s := newPromptServer(t)

	built, err := s.buildStoryPrompt(schema.GenerateParams{
		Mode:     schema.ModeTemplate,
		Template: "A hedgehog who is afraid of the dark finds a glowing pebble.",
		Options:  schema.GenerateOptions{StoryLength: "short", ReadingLevel: "easy"},
	})
	require.NoError(t, err)

	assert.Contains(t, built.UserPrompt, "afraid of the dark finds a glowing pebble")
	assert.NotContains(t, built.UserPrompt, "{{template}}")
	assert.Contains(t, built.UserPrompt, "5 to 7 paragraphs")
	assert.Contains(t, built.UserPrompt, "very simple words")
	assert.Contains(t, built.SystemPrompt, "children's story author")

	for _, u := range built.Components {
		assert.True(t, u.Included, "component %s under the default budget", u.ID)
	}
	assert.Equal(t, built.SystemTokens+built.UserTokens, built.TotalTokens)
}

func TestBuildStoryPromptKeywordsMode(t *testing.T) {
	s := newPromptServer(t)

	built, err := s.buildStoryPrompt(schema.GenerateParams{
		Mode:     schema.ModeKeywords,
		Keywords: "dragon, teacup, lighthouse",
	})
	require.NoError(t, err)

	assert.Contains(t, built.UserPrompt, "dragon, teacup, lighthouse")
	assert.NotContains(t, built.UserPrompt, "{{keywords}}")
	// unknown options fall back to the medium/moderate guidance
	assert.Contains(t, built.UserPrompt, "8 to 12 paragraphs")
	assert.Contains(t, built.UserPrompt, "everyday vocabulary")
}

func TestBuildStoryPromptMessages(t *testing.T) {
	s := newPromptServer(t)

	built, err := s.buildStoryPrompt(schema.GenerateParams{
		Mode:     schema.ModeTemplate,
		Template: "A tiny boat.",
	})
	require.NoError(t, err)

	msgs := built.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}
