package graphrag

import "errors"

// Sentinel errors returned by this package. Callers should test for them
// with errors.Is, since most are returned wrapped with additional context.
var (
	// ErrNotFound is returned by Find operations when no record
	// matching the criteria is found in the database.
	ErrNotFound = errors.New("record not found")

	// ErrNoCompletion is returned when the language model responds
	// without producing any usable text.
	ErrNoCompletion = errors.New("model returned no completion")

	// ErrWriteQueryBlocked is returned by the Cypher chain when the model
	// generates a mutating query and writes have not been allowed.
	ErrWriteQueryBlocked = errors.New("generated cypher contains write clauses")

	// ErrMaxIterations is returned by the agent when the iteration cap is
	// reached before the model produces a final answer.
	ErrMaxIterations = errors.New("agent reached the iteration limit without a final answer")
)
