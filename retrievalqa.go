// This file implements the retrieval question-answering wrapper: vector
// similarity lookup followed by a single model call over a fixed prompt.
package graphrag

import (
	"context"
	"fmt"
	"strings"
)

// Retriever is the neighbour-lookup dependency of the retrieval chain.
// *VectorIndex implements it.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error)
}

// RetrievalAnswer is the result of one retrieval QA run: the model's answer
// and the documents it was shown.
type RetrievalAnswer struct {
	Answer  string
	Sources []Document
}

// RetrievalQA answers natural-language questions by retrieving the most
// similar documents from a vector index and asking the model to answer from
// them.
type RetrievalQA struct {
	retriever Retriever
	llm       LLM

	// TopK is the number of documents retrieved per question. Default: 4
	TopK int
}

// NewRetrievalQA creates a retrieval QA chain over the given retriever and model.
func NewRetrievalQA(retriever Retriever, llm LLM) *RetrievalQA {
	return &RetrievalQA{
		retriever: retriever,
		llm:       llm,
		TopK:      4,
	}
}

// Answer runs the chain for one question: retrieve, build the prompt, and
// generate. The model is called with temperature zero.
//
// Parameters:
//   - ctx: The context for the retrieval and model calls.
//   - question: The user's natural-language question.
//
// Returns:
//
//	The answer together with the retrieved source documents, or an error if
//	retrieval, prompt formatting, or generation fails.
func (qa *RetrievalQA) Answer(ctx context.Context, question string) (*RetrievalAnswer, error) {
	docs, err := qa.retriever.SimilaritySearch(ctx, question, qa.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	contents := make([]string, len(docs))
	for i, doc := range docs {
		contents[i] = doc.PageContent
	}

	prompt, err := retrievalQAPrompt.Format(map[string]any{
		"context":  strings.Join(contents, "\n\n"),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("could not format retrieval prompt: %w", err)
	}

	answer, err := qa.llm.Generate(ctx, prompt, deterministic())
	if err != nil {
		return nil, err
	}

	return &RetrievalAnswer{
		Answer:  strings.TrimSpace(answer),
		Sources: docs,
	}, nil
}
