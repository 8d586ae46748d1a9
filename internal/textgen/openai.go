package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultModel = "gpt-4o-mini"

// OpenAIGenerator renders coaching lines through the chat completions API.
// The request carries the persona's system style and a trigger-specific cue;
// the completion is clamped client-side so an over-long model reply never
// busts the word budget downstream.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = defaultModel
	}
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	system := fmt.Sprintf("%s Respond in at most %d words. Plain text only, no markdown, no emoji.", p.Persona.SystemStyle, p.MaxWords)
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(buildCue(p)),
		},
		Model: openai.ChatModel(g.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion returned empty text")
	}
	return text, nil
}
