package graphrag

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// executedQuery captures one call made against a fakeRunner.
type executedQuery struct {
	Query  string
	Params map[string]interface{}
}

// fakeRunner is an in-memory DBRunner. Each call pops the next queued result;
// an exhausted queue yields an empty result.
type fakeRunner struct {
	results []*neo4j.EagerResult
	err     error
	calls   []executedQuery
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	f.calls = append(f.calls, executedQuery{Query: query, Params: params})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &neo4j.EagerResult{}, nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result, nil
}

// queue appends a result to the runner's queue and returns the runner for chaining.
func (f *fakeRunner) queue(result *neo4j.EagerResult) *fakeRunner {
	f.results = append(f.results, result)
	return f
}

// resultWithRecords builds an eager result from raw rows.
func resultWithRecords(keys []string, rows ...[]interface{}) *neo4j.EagerResult {
	records := make([]*db.Record, len(rows))
	for i, row := range rows {
		records[i] = &db.Record{Keys: keys, Values: row}
	}
	return &neo4j.EagerResult{Keys: keys, Records: records}
}

// testNode builds a node value for result rows.
func testNode(elementID, label string, props map[string]interface{}) neo4j.Node {
	return neo4j.Node{ElementId: elementID, Labels: []string{label}, Props: props}
}

// scriptedLLM returns canned responses in order and records every prompt and
// parameter set it was called with.
type scriptedLLM struct {
	responses []string
	prompts   []string
	params    []GenerationParams
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, params GenerationParams) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.params = append(s.params, params)
	if len(s.responses) == 0 {
		return "", ErrNoCompletion
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, nil
}

// fakeEmbedder produces deterministic vectors: each document's vector encodes
// its batch index so tests can tell the vectors apart.
type fakeEmbedder struct {
	queries   []string
	documents [][]string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.documents = append(f.documents, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1, 2}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	return []float32{9, 9, 9}, nil
}

// fakeSchemaProvider returns a fixed schema.
type fakeSchemaProvider struct {
	schema *GraphSchema
}

func (f *fakeSchemaProvider) Schema(_ context.Context) (*GraphSchema, error) {
	return f.schema, nil
}
