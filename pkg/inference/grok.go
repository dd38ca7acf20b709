package inference

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GrokInferencer runs inference against the xAI API, which speaks the OpenAI
// chat-completion protocol.
type GrokInferencer struct {
	OpenAIInferencer
}

// NewGrokInferencer creates a new inferencer instance using the xAI endpoint.
func NewGrokInferencer(apiKey string, model string) *GrokInferencer {
	if model == "" {
		model = "grok-4-fast-reasoning"
	}
	client := openai.NewClient(
		option.WithBaseURL("https://api.x.ai/v1"),
		option.WithAPIKey(apiKey),
	)
	return &GrokInferencer{
		OpenAIInferencer: OpenAIInferencer{
			client: &client,
			apiKey: apiKey,
			model:  model,
		},
	}
}

// Verify checks that the result is non-empty.
func (o *GrokInferencer) Verify(ctx context.Context, result string) (bool, error) {
	return o.OpenAIInferencer.Verify(ctx, result)
}
