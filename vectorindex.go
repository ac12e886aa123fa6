// This file implements the vector index adapter. The index itself lives in
// Neo4j; this adapter issues the index DDL, computes and persists embeddings
// for a node label's text properties, and exposes nearest-neighbour lookup.
package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// VectorIndexConfig describes which node label and properties feed a vector
// index, and how the index is parameterized.
type VectorIndexConfig struct {
	// IndexName is the name of the Neo4j vector index (e.g., "tasks").
	IndexName string

	// Label is the node label whose nodes are indexed (e.g., "Task").
	Label string

	// TextProperties are the node properties concatenated into the text that
	// gets embedded, in order (e.g., ["name", "description", "status"]).
	TextProperties []string

	// EmbeddingProperty is the node property the vector is stored under.
	// Default: "embedding"
	EmbeddingProperty string

	// Dimensions is the length of the embedding vectors.
	// Default: 1536 (OpenAI text-embedding-ada-002)
	Dimensions int

	// SimilarityFunction is the index distance metric, "cosine" or "euclidean".
	// Default: "cosine"
	SimilarityFunction string

	// BatchSize is the number of nodes embedded per round trip during Populate.
	// Default: 100
	BatchSize int
}

// withDefaults returns a copy of the config with unset fields filled in.
func (c VectorIndexConfig) withDefaults() VectorIndexConfig {
	if c.EmbeddingProperty == "" {
		c.EmbeddingProperty = "embedding"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 1536
	}
	if c.SimilarityFunction == "" {
		c.SimilarityFunction = "cosine"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	return c
}

// VectorIndexConfigFor derives a VectorIndexConfig from the `crud` struct tags
// of a model type T: the label comes from the struct name and the text
// properties from the fields tagged with the `embed` component.
//
// Parameters:
//   - indexName: The name for the Neo4j vector index.
//
// Returns:
//
//	A config with defaults applied, or an error if T carries no `embed` tags.
func VectorIndexConfigFor[T any](indexName string) (VectorIndexConfig, error) {
	meta, err := parseTags[T]()
	if err != nil {
		return VectorIndexConfig{}, err
	}
	if len(meta.EmbedProps) == 0 {
		return VectorIndexConfig{}, fmt.Errorf("type %s has no fields tagged 'embed'", meta.Label)
	}
	return VectorIndexConfig{
		IndexName:      indexName,
		Label:          meta.Label,
		TextProperties: meta.EmbedProps,
	}.withDefaults(), nil
}

// Document is one item returned by a similarity search: the reconstructed
// text the embedding was computed from, the node's remaining properties, and
// the similarity score reported by the index.
type Document struct {
	PageContent string
	Metadata    map[string]interface{}
	Score       float64
}

// VectorIndex manages one Neo4j vector index over a node label's text
// properties: creation, embedding population, and nearest-neighbour lookup.
type VectorIndex struct {
	runner   DBRunner
	embedder Embedder
	config   VectorIndexConfig

	// Logger receives progress messages during Populate. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewVectorIndex creates a vector index adapter.
//
// Parameters:
//   - runner: Query executor for the target database.
//   - embedder: The embedding service adapter.
//   - config: The index configuration; defaults are applied to unset fields.
//
// Returns:
//
//	A VectorIndex, or an error if the config lacks an index name, label, or
//	text properties.
func NewVectorIndex(runner DBRunner, embedder Embedder, config VectorIndexConfig) (*VectorIndex, error) {
	config = config.withDefaults()
	if config.IndexName == "" {
		return nil, fmt.Errorf("vector index config needs an index name")
	}
	if config.Label == "" {
		return nil, fmt.Errorf("vector index config needs a node label")
	}
	if len(config.TextProperties) == 0 {
		return nil, fmt.Errorf("vector index config needs at least one text property")
	}
	return &VectorIndex{
		runner:   runner,
		embedder: embedder,
		config:   config,
		Logger:   slog.Default(),
	}, nil
}

// Config returns the effective configuration, defaults included.
func (vi *VectorIndex) Config() VectorIndexConfig {
	return vi.config
}

// EnsureIndex creates the vector index if it does not exist yet.
// Index names and schema identifiers cannot be query parameters in Cypher,
// so the DDL statement is assembled with backtick quoting.
func (vi *VectorIndex) EnsureIndex(ctx context.Context) error {
	query := fmt.Sprintf(
		"CREATE VECTOR INDEX `%s` IF NOT EXISTS FOR (n:`%s`) ON (n.`%s`) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: '%s'}}",
		vi.config.IndexName, vi.config.Label, vi.config.EmbeddingProperty,
		vi.config.Dimensions, vi.config.SimilarityFunction,
	)
	if _, err := vi.runner.Run(ctx, query, nil); err != nil {
		return fmt.Errorf("could not create vector index %s: %w", vi.config.IndexName, err)
	}
	return nil
}

// Populate computes and persists embeddings for every node of the configured
// label that does not have one yet. Nodes are processed in batches: each round
// trip fetches a page of unembedded nodes, embeds their text in one call to
// the embedding service, and writes the vectors back.
//
// Returns:
//
//	The number of nodes embedded, or an error if any fetch, embed, or write fails.
func (vi *VectorIndex) Populate(ctx context.Context) (int, error) {
	total := 0
	for {
		batch, err := vi.fetchUnembedded(ctx)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}

		texts := make([]string, len(batch))
		for i, node := range batch {
			texts[i] = node.text
		}
		vectors, err := vi.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("could not embed %d nodes: %w", len(batch), err)
		}
		if len(vectors) != len(batch) {
			return total, fmt.Errorf("embedder returned %d vectors for %d nodes", len(vectors), len(batch))
		}

		rows := make([]interface{}, len(batch))
		for i, node := range batch {
			rows[i] = map[string]interface{}{
				"id":        node.id,
				"embedding": toFloat64Slice(vectors[i]),
			}
		}

		query := "UNWIND $rows AS row " +
			"MATCH (n) WHERE elementId(n) = row.id " +
			"CALL db.create.setNodeVectorProperty(n, $property, row.embedding) " +
			"RETURN count(*) AS updated"
		_, err = vi.runner.Run(ctx, query, map[string]interface{}{
			"rows":     rows,
			"property": vi.config.EmbeddingProperty,
		})
		if err != nil {
			return total, fmt.Errorf("could not store embeddings: %w", err)
		}

		total += len(batch)
		vi.Logger.Info("embedded nodes", "label", vi.config.Label, "batch", len(batch), "total", total)
	}
}

// SimilaritySearch embeds the query text and returns the k nearest nodes from
// the index, best first.
//
// Parameters:
//   - ctx: The context for the embed and query calls.
//   - query: The natural-language query text.
//   - k: The number of neighbours to return; must be positive.
//
// Returns:
//
//	Up to k documents ordered by descending similarity score, or an error.
func (vi *VectorIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, fmt.Errorf("similarity search needs a positive k, got %d", k)
	}

	vector, err := vi.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not embed query: %w", err)
	}

	cypher := "CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score " +
		"RETURN node, score"
	eagerResult, err := vi.runner.Run(ctx, cypher, map[string]interface{}{
		"index":     vi.config.IndexName,
		"k":         k,
		"embedding": toFloat64Slice(vector),
	})
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	docs := make([]Document, 0, len(eagerResult.Records))
	for _, record := range eagerResult.Records {
		nodeValue, ok := record.Get("node")
		if !ok {
			continue
		}
		node, ok := nodeValue.(neo4j.Node)
		if !ok {
			continue
		}
		scoreValue, _ := record.Get("score")
		score, _ := scoreValue.(float64)

		docs = append(docs, Document{
			PageContent: vi.nodeText(node.Props),
			Metadata:    vi.nodeMetadata(node.Props),
			Score:       score,
		})
	}
	return docs, nil
}

// embeddedNode is one unembedded node fetched during Populate.
type embeddedNode struct {
	id   string
	text string
}

// fetchUnembedded returns the next page of nodes missing an embedding,
// together with the text to embed for each.
func (vi *VectorIndex) fetchUnembedded(ctx context.Context) ([]embeddedNode, error) {
	returns := make([]string, 0, len(vi.config.TextProperties)+1)
	returns = append(returns, "elementId(n) AS id")
	for _, prop := range vi.config.TextProperties {
		returns = append(returns, fmt.Sprintf("n.`%s` AS `%s`", prop, prop))
	}

	query := fmt.Sprintf(
		"MATCH (n:`%s`) WHERE n.`%s` IS NULL RETURN %s LIMIT $batch",
		vi.config.Label, vi.config.EmbeddingProperty, strings.Join(returns, ", "),
	)
	eagerResult, err := vi.runner.Run(ctx, query, map[string]interface{}{"batch": vi.config.BatchSize})
	if err != nil {
		return nil, fmt.Errorf("could not fetch unembedded nodes: %w", err)
	}

	nodes := make([]embeddedNode, 0, len(eagerResult.Records))
	for _, record := range eagerResult.Records {
		idValue, ok := record.Get("id")
		if !ok {
			continue
		}
		id, _ := idValue.(string)

		props := make(map[string]interface{}, len(vi.config.TextProperties))
		for _, prop := range vi.config.TextProperties {
			if v, ok := record.Get(prop); ok {
				props[prop] = v
			}
		}
		nodes = append(nodes, embeddedNode{id: id, text: vi.nodeText(props)})
	}
	return nodes, nil
}

// nodeText builds the embedding text for a node: one "property: value" line
// per configured text property, in configuration order. Missing properties
// render with an empty value so the line structure stays stable.
func (vi *VectorIndex) nodeText(props map[string]interface{}) string {
	lines := make([]string, 0, len(vi.config.TextProperties))
	for _, prop := range vi.config.TextProperties {
		value := props[prop]
		if value == nil {
			value = ""
		}
		lines = append(lines, fmt.Sprintf("%s: %v", prop, value))
	}
	return strings.Join(lines, "\n")
}

// nodeMetadata returns the node properties that are not the stored embedding.
func (vi *VectorIndex) nodeMetadata(props map[string]interface{}) map[string]interface{} {
	metadata := make(map[string]interface{}, len(props))
	for key, value := range props {
		if key == vi.config.EmbeddingProperty {
			continue
		}
		metadata[key] = value
	}
	return metadata
}

// toFloat64Slice converts an embedding vector to the float list type the
// driver serializes natively.
func toFloat64Slice(vector []float32) []float64 {
	out := make([]float64, len(vector))
	for i, v := range vector {
		out[i] = float64(v)
	}
	return out
}
