// This file implements graph schema introspection. The resulting schema text
// is what the Cypher question-answering chain hands to the language model so
// generated queries only reference labels, relationship types, and properties
// that actually exist. Only vanilla `db.schema.*` procedures are used, so no
// APOC installation is required.
package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SchemaProperty describes a single property of a node label or relationship type.
type SchemaProperty struct {
	// Name is the property name as stored in the database.
	Name string
	// Type is the Cypher type reported by the introspection procedure (e.g., "String").
	Type string
}

// SchemaPattern describes one observed relationship pattern in the graph,
// e.g. (:Task)-[:LINKED]->(:Microservice).
type SchemaPattern struct {
	From string
	Rel  string
	To   string
}

// GraphSchema is a snapshot of the database schema: properties per node label,
// properties per relationship type, and the relationship patterns present.
type GraphSchema struct {
	NodeProperties map[string][]SchemaProperty
	RelProperties  map[string][]SchemaProperty
	Patterns       []SchemaPattern
}

// String renders the schema in the compact textual form expected by
// Cypher-generation prompts. The output is deterministic: labels and
// relationship types are sorted alphabetically.
func (s *GraphSchema) String() string {
	var b strings.Builder

	b.WriteString("Node properties:\n")
	for _, label := range sortedKeys(s.NodeProperties) {
		b.WriteString(formatPropertyLine(label, s.NodeProperties[label]))
	}

	b.WriteString("Relationship properties:\n")
	for _, relType := range sortedKeys(s.RelProperties) {
		b.WriteString(formatPropertyLine(relType, s.RelProperties[relType]))
	}

	b.WriteString("The relationships:\n")
	for _, p := range s.Patterns {
		fmt.Fprintf(&b, "(:%s)-[:%s]->(:%s)\n", p.From, p.Rel, p.To)
	}

	return b.String()
}

// Schema introspects the database and returns its current schema.
//
// Three queries run sequentially: node properties via
// db.schema.nodeTypeProperties(), relationship properties via
// db.schema.relTypeProperties(), and the distinct relationship patterns via a
// sampled MATCH. The pattern sample is capped to keep introspection cheap on
// large graphs.
//
// Parameters:
//   - ctx: The context for the query executions.
//
// Returns:
//
//	A populated GraphSchema, or an error if any introspection query fails.
func (pm *PersistenceManager) Schema(ctx context.Context) (*GraphSchema, error) {
	schema := &GraphSchema{
		NodeProperties: make(map[string][]SchemaProperty),
		RelProperties:  make(map[string][]SchemaProperty),
	}

	// 1. Node labels and their properties.
	nodeResult, err := pm.runner.Run(ctx,
		"CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName, propertyTypes "+
			"RETURN nodeLabels, propertyName, propertyTypes", nil)
	if err != nil {
		return nil, fmt.Errorf("could not introspect node properties: %w", err)
	}
	for _, record := range nodeResult.Records {
		labels := stringSliceValue(record.Values[0])
		prop := stringValue(record.Values[1])
		propType := firstStringValue(record.Values[2])
		for _, label := range labels {
			if _, ok := schema.NodeProperties[label]; !ok {
				schema.NodeProperties[label] = nil
			}
			if prop != "" {
				schema.NodeProperties[label] = append(schema.NodeProperties[label],
					SchemaProperty{Name: prop, Type: propType})
			}
		}
	}

	// 2. Relationship types and their properties.
	relResult, err := pm.runner.Run(ctx,
		"CALL db.schema.relTypeProperties() YIELD relType, propertyName, propertyTypes "+
			"RETURN relType, propertyName, propertyTypes", nil)
	if err != nil {
		return nil, fmt.Errorf("could not introspect relationship properties: %w", err)
	}
	for _, record := range relResult.Records {
		relType := trimRelType(stringValue(record.Values[0]))
		if relType == "" {
			continue
		}
		if _, ok := schema.RelProperties[relType]; !ok {
			schema.RelProperties[relType] = nil
		}
		prop := stringValue(record.Values[1])
		if prop != "" {
			schema.RelProperties[relType] = append(schema.RelProperties[relType],
				SchemaProperty{Name: prop, Type: firstStringValue(record.Values[2])})
		}
	}

	// 3. Observed relationship patterns, sampled.
	patternResult, err := pm.runner.Run(ctx,
		"MATCH (a)-[r]->(b) "+
			"WITH labels(a) AS fromLabels, type(r) AS relType, labels(b) AS toLabels "+
			"RETURN DISTINCT fromLabels, relType, toLabels LIMIT $limit",
		map[string]interface{}{"limit": 100})
	if err != nil {
		return nil, fmt.Errorf("could not introspect relationship patterns: %w", err)
	}
	for _, record := range patternResult.Records {
		fromLabels := stringSliceValue(record.Values[0])
		relType := stringValue(record.Values[1])
		toLabels := stringSliceValue(record.Values[2])
		if len(fromLabels) == 0 || len(toLabels) == 0 || relType == "" {
			continue
		}
		schema.Patterns = append(schema.Patterns, SchemaPattern{
			From: fromLabels[0],
			Rel:  relType,
			To:   toLabels[0],
		})
	}
	sort.Slice(schema.Patterns, func(i, j int) bool {
		a, b := schema.Patterns[i], schema.Patterns[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Rel != b.Rel {
			return a.Rel < b.Rel
		}
		return a.To < b.To
	})

	return schema, nil
}

// formatPropertyLine renders one "Label {prop: Type, ...}" line.
func formatPropertyLine(name string, props []SchemaProperty) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return fmt.Sprintf("%s {%s}\n", name, strings.Join(parts, ", "))
}

// trimRelType strips the leading colon and backticks from relType values as
// returned by db.schema.relTypeProperties(), e.g. ":`DEPENDS_ON`" -> "DEPENDS_ON".
func trimRelType(relType string) string {
	relType = strings.TrimPrefix(relType, ":")
	return strings.Trim(relType, "`")
}

// sortedKeys returns the map keys in alphabetical order.
func sortedKeys(m map[string][]SchemaProperty) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringValue extracts a string from a driver value, returning "" for nulls.
func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

// stringSliceValue extracts a []string from a driver list value.
func stringSliceValue(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// firstStringValue extracts the first string of a driver list value, used for
// the propertyTypes column which reports a list of candidate types.
func firstStringValue(v interface{}) string {
	items := stringSliceValue(v)
	if len(items) == 0 {
		return ""
	}
	return items[0]
}
