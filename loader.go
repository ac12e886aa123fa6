// This file implements the bulk dataset loader: it fetches a static dataset
// definition over HTTP and submits it to the database as a single bulk query.
package graphrag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultDatasetURL points at the hosted synthetic microservices dataset
// (about a hundred nodes describing microservices, tasks, and teams) used by
// the examples. The payload is a JSON document whose "query" field holds one
// large Cypher import statement.
const DefaultDatasetURL = "https://raw.githubusercontent.com/tomasonjo/blogs/master/microservices/microservices.json"

// HTTPClient is the subset of http.Client the loader needs. It exists so
// tests can inject a fake transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// datasetEnvelope is the JSON wrapper format of hosted datasets.
type datasetEnvelope struct {
	Query string `json:"query"`
}

// DatasetLoader fetches a dataset definition over plain HTTP and loads it
// into the graph with a single bulk query.
type DatasetLoader struct {
	runner DBRunner

	// HTTPClient performs the dataset fetch. Defaults to http.DefaultClient.
	HTTPClient HTTPClient

	// Logger receives progress messages. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewDatasetLoader creates a loader that writes through the given runner.
func NewDatasetLoader(runner DBRunner) *DatasetLoader {
	return &DatasetLoader{
		runner:     runner,
		HTTPClient: http.DefaultClient,
		Logger:     slog.Default(),
	}
}

// Fetch downloads the dataset definition and returns its import query.
//
// Two payload formats are accepted: a JSON document with a "query" field (the
// format of the hosted datasets), or a plain Cypher text file. The JSON form
// is tried first; anything that does not parse as it is treated as raw Cypher.
//
// Parameters:
//   - ctx: The context for the HTTP request.
//   - url: The dataset URL. An empty url falls back to DefaultDatasetURL.
//
// Returns:
//
//	The Cypher import statement, or an error if the fetch fails or the body
//	is empty.
func (l *DatasetLoader) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		url = DefaultDatasetURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("could not build dataset request: %w", err)
	}

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dataset fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read dataset body: %w", err)
	}

	query := extractImportQuery(body)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("dataset at %s contains no import query", url)
	}
	return query, nil
}

// Load fetches the dataset and runs its import query as one bulk write.
//
// Parameters:
//   - ctx: The context for the fetch and the query execution.
//   - url: The dataset URL. An empty url falls back to DefaultDatasetURL.
//
// Returns:
//
//	An error if the fetch or the import query fails.
func (l *DatasetLoader) Load(ctx context.Context, url string) error {
	query, err := l.Fetch(ctx, url)
	if err != nil {
		return err
	}

	l.Logger.Info("loading dataset", "url", urlOrDefault(url), "query_bytes", len(query))
	result, err := l.runner.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("dataset import failed: %w", err)
	}

	if result.Summary != nil {
		counters := result.Summary.Counters()
		l.Logger.Info("dataset loaded",
			"nodes_created", counters.NodesCreated(),
			"relationships_created", counters.RelationshipsCreated(),
		)
	}
	return nil
}

// extractImportQuery pulls the Cypher statement out of a dataset payload.
func extractImportQuery(body []byte) string {
	var envelope datasetEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Query != "" {
		return envelope.Query
	}
	return string(body)
}

func urlOrDefault(url string) string {
	if url == "" {
		return DefaultDatasetURL
	}
	return url
}
