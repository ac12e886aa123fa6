// This file defines the interface to the hosted chat model. The model is used
// for three distinct purposes (answer synthesis, Cypher generation, and agent
// action selection) that differ only in prompt content, so a single Generate
// method covers all of them.
package graphrag

import (
	"context"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
)

// GenerationParams are the optional sampling parameters for a completion.
// Nil pointers leave the provider's defaults in place.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLM defines the standard interface for any chat model backend.
type LLM interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// OpenAIChat implements LLM on top of the OpenAI chat completions API.
type OpenAIChat struct {
	client *openai.Client
	model  string

	// SystemPrompt is prepended to every request as the system message.
	// Leave empty to use a plain assistant persona.
	SystemPrompt string
}

// NewOpenAIChat creates a chat client for the given API key and model name.
//
// Parameters:
//   - apiKey: The OpenAI API key.
//   - model: The chat model name (e.g., "gpt-4o-mini").
//
// Returns:
//
//	A configured OpenAIChat, or an error if the API key is empty.
func NewOpenAIChat(apiKey, model string) (*OpenAIChat, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIChat{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// NewOpenAIChatWithClient creates a chat client around an existing go-openai
// client. Useful for custom base URLs, proxies, and tests.
func NewOpenAIChatWithClient(client *openai.Client, model string) *OpenAIChat {
	return &OpenAIChat{client: client, model: model}
}

// Generate implements the LLM interface. It sends a single-turn chat request
// and returns the first choice's content.
func (o *OpenAIChat) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	systemRoleContent := o.SystemPrompt
	if systemRoleContent == "" {
		systemRoleContent = "You are a helpful assistant."
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemRoleContent},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		temperature := *params.Temperature
		if temperature == 0 {
			// The request struct omits a zero temperature from the JSON
			// body, which would leave the provider default in effect.
			// Send the smallest representable value instead.
			temperature = math.SmallestNonzeroFloat32
		}
		req.Temperature = temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// deterministic returns generation parameters with temperature zero, the
// setting used by the chains so prompt output stays as reproducible as the
// provider allows.
func deterministic(stop ...string) GenerationParams {
	var zero float32
	return GenerationParams{Temperature: &zero, Stop: stop}
}
