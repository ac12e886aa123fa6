// This file implements the query-translation wrapper: the model turns a
// question plus the graph schema into a Cypher statement, the statement runs
// against the database, and the model phrases the raw rows as an answer.
package graphrag

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// SchemaProvider supplies the graph schema handed to the Cypher-generation
// prompt. *PersistenceManager implements it.
type SchemaProvider interface {
	Schema(ctx context.Context) (*GraphSchema, error)
}

// CypherAnswer is the result of one Cypher QA run: the phrased answer, the
// generated Cypher statement, and the raw rows it returned.
type CypherAnswer struct {
	Answer string
	Cypher string
	Rows   []map[string]interface{}
}

// CypherQA answers natural-language questions by asking the model to generate
// a Cypher query against the live schema, executing it, and asking the model
// again to phrase the result.
//
// Generated queries are refused when they contain write clauses, unless
// AllowWrites is set.
type CypherQA struct {
	runner DBRunner
	llm    LLM
	schema SchemaProvider

	// AllowWrites permits generated queries containing write clauses.
	// Default: false
	AllowWrites bool

	// MaxRows caps how many result rows are serialized into the answer
	// prompt. Default: 10
	MaxRows int
}

// NewCypherQA creates a Cypher QA chain.
//
// Parameters:
//   - runner: Query executor the generated statements run against.
//   - llm: The chat model used for both generation steps.
//   - schema: The schema provider, typically a *PersistenceManager.
func NewCypherQA(runner DBRunner, llm LLM, schema SchemaProvider) *CypherQA {
	return &CypherQA{
		runner:  runner,
		llm:     llm,
		schema:  schema,
		MaxRows: 10,
	}
}

// Answer runs the chain for one question.
//
// The steps are sequential: introspect the schema, generate Cypher
// (temperature zero), validate it, execute it, and phrase the rows. Each
// remote call honors ctx.
//
// Returns:
//
//	The phrased answer plus the generated Cypher and raw rows, or an error.
//	ErrWriteQueryBlocked (wrapped) is returned when the model generated a
//	mutating statement and AllowWrites is false.
func (qa *CypherQA) Answer(ctx context.Context, question string) (*CypherAnswer, error) {
	// 1. Fetch the current schema and render it for the prompt.
	schema, err := qa.schema.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not introspect schema: %w", err)
	}

	generationPrompt, err := cypherGenerationPrompt.Format(map[string]any{
		"schema":   schema.String(),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("could not format cypher generation prompt: %w", err)
	}

	// 2. Ask the model for a Cypher statement and clean it up.
	generated, err := qa.llm.Generate(ctx, generationPrompt, deterministic())
	if err != nil {
		return nil, err
	}
	cypher := extractCypher(generated)
	if cypher == "" {
		return nil, fmt.Errorf("model produced no cypher statement")
	}
	if !qa.AllowWrites && isWriteQuery(cypher) {
		return nil, fmt.Errorf("%w: %s", ErrWriteQueryBlocked, cypher)
	}

	// 3. Execute the generated statement.
	eagerResult, err := qa.runner.Run(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("generated cypher failed: %w", err)
	}

	rows := recordsToRows(eagerResult)
	contextRows := rows
	if len(contextRows) > qa.MaxRows {
		contextRows = contextRows[:qa.MaxRows]
	}
	contextJSON, err := json.Marshal(contextRows)
	if err != nil {
		return nil, fmt.Errorf("could not serialize query result: %w", err)
	}

	// 4. Ask the model to phrase the rows as a natural-language answer.
	answerPrompt, err := cypherAnswerPrompt.Format(map[string]any{
		"context":  string(contextJSON),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("could not format answer prompt: %w", err)
	}
	answer, err := qa.llm.Generate(ctx, answerPrompt, deterministic())
	if err != nil {
		return nil, err
	}

	return &CypherAnswer{
		Answer: strings.TrimSpace(answer),
		Cypher: cypher,
		Rows:   rows,
	}, nil
}

// codeFencePattern matches a fenced code block, with or without a language tag.
var codeFencePattern = regexp.MustCompile("(?s)```(?:cypher)?\\s*(.*?)```")

// extractCypher cleans up model output into a bare Cypher statement: fenced
// blocks are unwrapped and a stray leading "cypher" language tag is dropped.
func extractCypher(output string) string {
	if match := codeFencePattern.FindStringSubmatch(output); match != nil {
		output = match[1]
	}
	output = strings.TrimSpace(output)
	output = strings.TrimPrefix(output, "cypher\n")
	return strings.TrimSpace(output)
}

// writeClausePattern matches Cypher clauses that mutate the graph. A read
// query mentioning one of these words in a string literal is refused too.
var writeClausePattern = regexp.MustCompile(`(?i)\b(create|merge|delete|detach|set|remove|drop)\b`)

// isWriteQuery reports whether the statement contains write clauses.
func isWriteQuery(cypher string) bool {
	return writeClausePattern.MatchString(cypher)
}

// recordsToRows converts driver records into plain maps. Graph entities are
// flattened to their property maps so the rows serialize cleanly to JSON.
func recordsToRows(result *neo4j.EagerResult) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(result.Records))
	for _, record := range result.Records {
		row := make(map[string]interface{}, len(record.Keys))
		for i, key := range record.Keys {
			if i < len(record.Values) {
				row[key] = normalizeValue(record.Values[i])
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// normalizeValue recursively replaces graph entities with their properties.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case neo4j.Node:
		return v.Props
	case neo4j.Relationship:
		return v.Props
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeValue(item)
		}
		return out
	default:
		return value
	}
}
