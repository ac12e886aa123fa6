package graphrag

// GraphNode is a domain-agnostic representation of a node returned by a graph
// query: its internal element id, its labels, and its properties. It
// serializes cleanly to JSON for frontends or other services.
type GraphNode struct {
	// ID is the unique internal identifier assigned by Neo4j to the node (ElementId).
	ID string `json:"id"`

	// Labels contains all labels attached to the node (e.g., ["Microservice"]).
	Labels []string `json:"labels"`

	// Properties is a map containing the key-value properties of the node.
	Properties map[string]interface{} `json:"properties"`
}

// GraphEdge represents a relationship between two nodes, carrying the
// ElementIds of the source and target nodes it connects.
type GraphEdge struct {
	// ID is the unique internal identifier assigned by Neo4j to the relationship (ElementId).
	ID string `json:"id"`

	// Source is the ElementId of the node where the relationship starts.
	Source string `json:"source"`

	// Target is the ElementId of the node where the relationship ends.
	Target string `json:"target"`

	// Type is the relationship's type (e.g., "DEPENDS_ON", "MAINTAINED_BY").
	Type string `json:"type"`

	// Properties is a map containing the key-value properties of the relationship.
	Properties map[string]interface{} `json:"properties"`
}

// GraphResult is a top-level container for a generic graph query result,
// composed of de-duplicated nodes and edges. The shape is the standard input
// format of most graph visualization libraries (e.g., D3.js, Cytoscape.js).
type GraphResult struct {
	// Nodes contains all the unique nodes retrieved by the query.
	Nodes []*GraphNode `json:"nodes"`

	// Edges contains all the unique relationships retrieved by the query.
	Edges []*GraphEdge `json:"edges"`
}
