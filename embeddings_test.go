package graphrag

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, response string) (*openai.Client, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	return openai.NewClientWithConfig(config), &requests
}

func TestNewOpenAIEmbedder(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "text-embedding-ada-002")
	assert.ErrorContains(t, err, "api key")

	embedder, err := NewOpenAIEmbedder("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, openai.AdaEmbeddingV2, embedder.model)
}

func TestEmbedDocumentsReordersByIndex(t *testing.T) {
	// The provider answers out of order; vectors must come back in input order.
	client, _ := embeddingServer(t, `{
		"object": "list",
		"data": [
			{"object": "embedding", "index": 1, "embedding": [3, 4]},
			{"object": "embedding", "index": 0, "embedding": [1, 2]}
		]
	}`)

	embedder := NewOpenAIEmbedderWithClient(client, "")
	vectors, err := embedder.EmbedDocuments(t.Context(), []string{"first", "second"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 2}, vectors[0])
	assert.Equal(t, []float32{3, 4}, vectors[1])
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	client, requests := embeddingServer(t, `{}`)

	embedder := NewOpenAIEmbedderWithClient(client, "")
	vectors, err := embedder.EmbedDocuments(t.Context(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	// No round trip for an empty batch.
	assert.Zero(t, requests.Load())
}

func TestEmbedDocumentsCountMismatch(t *testing.T) {
	client, _ := embeddingServer(t, `{
		"data": [{"object": "embedding", "index": 0, "embedding": [1, 2]}]
	}`)

	embedder := NewOpenAIEmbedderWithClient(client, "")
	_, err := embedder.EmbedDocuments(t.Context(), []string{"first", "second"})
	assert.ErrorContains(t, err, "2 inputs")
}

func TestEmbedDocumentsOutOfRangeIndex(t *testing.T) {
	client, _ := embeddingServer(t, `{
		"data": [{"object": "embedding", "index": 5, "embedding": [1, 2]}]
	}`)

	embedder := NewOpenAIEmbedderWithClient(client, "")
	_, err := embedder.EmbedDocuments(t.Context(), []string{"only"})
	assert.ErrorContains(t, err, "out-of-range index")
}

func TestEmbedQuery(t *testing.T) {
	client, _ := embeddingServer(t, `{
		"data": [{"object": "embedding", "index": 0, "embedding": [0.5, 0.25]}]
	}`)

	embedder := NewOpenAIEmbedderWithClient(client, "")
	vector, err := embedder.EmbedQuery(t.Context(), "login problems")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vector)
}
