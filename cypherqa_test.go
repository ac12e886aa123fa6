package graphrag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchemaProvider() *fakeSchemaProvider {
	return &fakeSchemaProvider{schema: &GraphSchema{
		NodeProperties: map[string][]SchemaProperty{
			"Task": {{Name: "name", Type: "String"}, {Name: "status", Type: "String"}},
		},
		RelProperties: map[string][]SchemaProperty{},
		Patterns: []SchemaPattern{
			{From: "Team", Rel: "ASSIGNED_TO", To: "Task"},
		},
	}}
}

func TestCypherQAAnswer(t *testing.T) {
	runner := (&fakeRunner{}).queue(resultWithRecords(
		[]string{"openTasks"},
		[]interface{}{int64(12)},
	))
	llm := &scriptedLLM{responses: []string{
		"```cypher\nMATCH (t:Task {status: 'Open'}) RETURN count(t) AS openTasks\n```",
		"There are 12 open tasks.",
	}}

	qa := NewCypherQA(runner, llm, testSchemaProvider())
	answer, err := qa.Answer(t.Context(), "How many open tasks are there?")
	require.NoError(t, err)

	assert.Equal(t, "MATCH (t:Task {status: 'Open'}) RETURN count(t) AS openTasks", answer.Cypher)
	assert.Equal(t, "There are 12 open tasks.", answer.Answer)
	require.Len(t, answer.Rows, 1)
	assert.Equal(t, int64(12), answer.Rows[0]["openTasks"])

	// The generation prompt carries the schema; the answer prompt carries the rows.
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "Task {name: String, status: String}")
	assert.Contains(t, llm.prompts[0], "How many open tasks are there?")
	assert.Contains(t, llm.prompts[1], `"openTasks":12`)

	// Both calls run at temperature zero.
	for _, params := range llm.params {
		require.NotNil(t, params.Temperature)
		assert.Zero(t, *params.Temperature)
	}

	// The generated statement is what actually ran.
	require.Len(t, runner.calls, 1)
	assert.Equal(t, answer.Cypher, runner.calls[0].Query)
}

func TestCypherQABlocksWrites(t *testing.T) {
	runner := &fakeRunner{}
	llm := &scriptedLLM{responses: []string{"MATCH (t:Task) DETACH DELETE t"}}

	qa := NewCypherQA(runner, llm, testSchemaProvider())
	_, err := qa.Answer(t.Context(), "Remove all tasks")
	assert.ErrorIs(t, err, ErrWriteQueryBlocked)
	// Nothing reached the database.
	assert.Empty(t, runner.calls)
}

func TestCypherQAAllowWrites(t *testing.T) {
	runner := &fakeRunner{}
	llm := &scriptedLLM{responses: []string{
		"CREATE (t:Task {name: 'new'})",
		"Done.",
	}}

	qa := NewCypherQA(runner, llm, testSchemaProvider())
	qa.AllowWrites = true
	answer, err := qa.Answer(t.Context(), "Create a task named new")
	require.NoError(t, err)
	assert.Equal(t, "Done.", answer.Answer)
	require.Len(t, runner.calls, 1)
}

func TestCypherQAEmptyGeneration(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"   "}}
	qa := NewCypherQA(&fakeRunner{}, llm, testSchemaProvider())

	_, err := qa.Answer(t.Context(), "anything")
	assert.ErrorContains(t, err, "no cypher statement")
}

func TestCypherQAFlattensNestedEntities(t *testing.T) {
	// Nodes nested inside map and list values are reduced to their
	// properties, just like top-level ones.
	runner := (&fakeRunner{}).queue(resultWithRecords(
		[]string{"result"},
		[]interface{}{map[string]interface{}{
			"svc":  testNode("4:abc:1", "Microservice", map[string]interface{}{"name": "billing"}),
			"deps": []interface{}{testNode("4:abc:2", "Microservice", map[string]interface{}{"name": "auth"})},
		}},
	))
	llm := &scriptedLLM{responses: []string{
		"MATCH (m:Microservice) RETURN {svc: m, deps: []} AS result",
		"The billing service.",
	}}

	qa := NewCypherQA(runner, llm, testSchemaProvider())
	answer, err := qa.Answer(t.Context(), "Which service?")
	require.NoError(t, err)

	require.Len(t, answer.Rows, 1)
	result := answer.Rows[0]["result"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"name": "billing"}, result["svc"])
	deps := result["deps"].([]interface{})
	require.Len(t, deps, 1)
	assert.Equal(t, map[string]interface{}{"name": "auth"}, deps[0])
	// The flattened rows serialize into the answer prompt.
	assert.Contains(t, llm.prompts[1], `"name":"billing"`)
}

func TestExtractCypher(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		output string
	}{
		{"bare statement", "MATCH (n) RETURN n", "MATCH (n) RETURN n"},
		{"fenced", "```\nMATCH (n) RETURN n\n```", "MATCH (n) RETURN n"},
		{"fenced with language tag", "```cypher\nMATCH (n) RETURN n\n```", "MATCH (n) RETURN n"},
		{"leading language word", "cypher\nMATCH (n) RETURN n", "MATCH (n) RETURN n"},
		{"surrounding prose", "Here you go: ```cypher\nMATCH (n) RETURN n\n``` Enjoy!", "MATCH (n) RETURN n"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.output, extractCypher(tc.input))
		})
	}
}

func TestIsWriteQuery(t *testing.T) {
	assert.True(t, isWriteQuery("CREATE (n:Task)"))
	assert.True(t, isWriteQuery("match (n) detach delete n"))
	assert.True(t, isWriteQuery("MATCH (n) SET n.status = 'Done'"))
	assert.False(t, isWriteQuery("MATCH (n:Task) RETURN n"))
	assert.False(t, isWriteQuery("MATCH (n) RETURN n.created"))
}
