package graphrag

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Embedder converts text into fixed-length numeric vectors. Implementations
// wrap a remote embedding service; no vector math happens locally.
type Embedder interface {
	// EmbedDocuments returns one vector per input text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery returns the vector for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder implements Embedder on top of the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder for the given API key and model name.
//
// Parameters:
//   - apiKey: The OpenAI API key.
//   - model: The embedding model name (e.g., "text-embedding-ada-002").
//
// Returns:
//
//	A configured OpenAIEmbedder, or an error if the API key is empty.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}, nil
}

// NewOpenAIEmbedderWithClient creates an embedder around an existing go-openai
// client. Useful for custom base URLs, proxies, and tests.
func NewOpenAIEmbedderWithClient(client *openai.Client, model string) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
	}
	return &OpenAIEmbedder{client: client, model: openai.EmbeddingModel(model)}
}

// EmbedDocuments embeds a batch of texts in a single API call.
// The returned vectors are ordered to match the input texts, regardless of
// the order the provider returns them in.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding service returned out-of-range index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
