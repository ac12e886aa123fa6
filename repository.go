// This file implements a generic repository pattern for the demo graph,
// simplifying CRUD (Create, Read, Update, Delete) operations on node entities.
package graphrag

import (
	"context"
	"fmt"
	"reflect"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Repository provides a generic abstraction for CRUD operations for a specific
// entity type T. It relies on struct tags to map struct fields to node properties.
type Repository[T any] struct {
	runner DBRunner
	meta   *entityMetadata
}

// NewRepository creates a new generic repository for the type T.
// It parses the struct tags of T to understand its mapping to a Neo4j node.
//
// Parameters:
//   - runner: An instance of DBRunner, used to execute all Cypher queries.
//
// Returns:
//
//	A new Repository instance or an error if the struct tags are invalid.
func NewRepository[T any](runner DBRunner) (*Repository[T], error) {
	meta, err := parseTags[T]()
	if err != nil {
		return nil, err
	}
	return &Repository[T]{
		runner: runner,
		meta:   meta,
	}, nil
}

// Label returns the node label the repository operates on.
func (r *Repository[T]) Label() string {
	return r.meta.Label
}

// Save creates a new node or updates an existing one.
// It uses a MERGE query based on the struct's primary key (`pk` tag).
// All other tagged fields are set on the node.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - entity: A pointer to the struct instance to be saved.
//
// Returns:
//
//	An error if the query building or execution fails.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	val := reflect.ValueOf(entity).Elem()
	pkValue := val.FieldByName(r.meta.PKField).Interface()
	mergeProps := map[string]interface{}{r.meta.PKProp: pkValue}

	setProps := make(map[string]interface{})
	for fieldName, propName := range r.meta.Mappings {
		if fieldName != r.meta.PKField {
			// The property is prefixed with 'n.' for the SET clause.
			setProps["n."+propName] = val.FieldByName(fieldName).Interface()
		}
	}

	qb := gocypher.NewQueryBuilder().
		Merge(gocypher.N("n", r.meta.Label).WithProperties(mergeProps)).
		Set(setProps).
		Return("n")

	query, params, err := qb.Build()
	if err != nil {
		return err
	}
	_, err = r.runner.Run(ctx, query, params)
	return err
}

// FindByID retrieves a single entity from the database by its primary key.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The primary key value of the entity to find.
//
// Returns:
//
//	A pointer to the found entity, ErrNotFound if no record is found, or another
//	error if the query or mapping fails.
func (r *Repository[T]) FindByID(ctx context.Context, id interface{}) (*T, error) {
	props := map[string]interface{}{r.meta.PKProp: id}
	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(props)).
		Return("n")
	return r.FindOne(ctx, qb)
}

// Find executes a custom query defined by a gocypher.QueryBuilder and maps each
// returned node to an entity of type T. The query must RETURN exactly one node
// alias; the first node value of each record is mapped.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A configured query builder whose RETURN clause yields the target nodes.
//
// Returns:
//
//	A slice of mapped entities (possibly empty), or an error if the query
//	building, execution, or mapping fails.
func (r *Repository[T]) Find(ctx context.Context, qb *gocypher.QueryBuilder) ([]*T, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	eagerResult, err := r.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	entities := make([]*T, 0, len(eagerResult.Records))
	for _, record := range eagerResult.Records {
		node, ok := firstNode(record.Values)
		if !ok {
			continue // Record rows without a node value are skipped.
		}
		entity := new(T)
		if err := mapNodeToStruct(node, entity, r.meta); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// FindOne executes a custom query that is expected to match at most one node.
// It is a convenience for unique lookups: callers get a single entity back
// instead of a slice they have to length-check.
//
// Returns:
//
//	The single matched entity, ErrNotFound when the query matches nothing, or
//	an error when more than one record comes back (a data integrity issue for
//	a query the caller believed unique).
func (r *Repository[T]) FindOne(ctx context.Context, qb *gocypher.QueryBuilder) (*T, error) {
	entities, err := r.Find(ctx, qb)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, ErrNotFound
	}
	if len(entities) > 1 {
		return nil, fmt.Errorf("expected 1 record but found %d", len(entities))
	}
	return entities[0], nil
}

// FindAll retrieves every node with the repository's label.
//
// Returns:
//
//	A slice of all mapped entities, or an error if the query or mapping fails.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label)).
		Return("n")
	return r.Find(ctx, qb)
}

// FindByProperty retrieves all nodes whose given property equals the given value.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - property: The database property name (not the struct field name).
//   - value: The value the property must equal.
//
// Returns:
//
//	A slice of matching entities (possibly empty), or an error.
func (r *Repository[T]) FindByProperty(ctx context.Context, property string, value interface{}) ([]*T, error) {
	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(map[string]interface{}{property: value})).
		Return("n")
	return r.Find(ctx, qb)
}

// Count returns the total number of nodes with the repository's label.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("MATCH (n:`%s`) RETURN count(n) AS total", r.meta.Label)
	return r.runCount(ctx, query, nil)
}

// CountByProperty returns the number of nodes whose given property equals the
// given value.
func (r *Repository[T]) CountByProperty(ctx context.Context, property string, value interface{}) (int64, error) {
	query := fmt.Sprintf("MATCH (n:`%s`) WHERE n.`%s` = $value RETURN count(n) AS total", r.meta.Label, property)
	return r.runCount(ctx, query, map[string]interface{}{"value": value})
}

// Delete removes a node from the database by its primary key.
// It uses a DETACH DELETE query to also remove any relationships connected to the node.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The primary key value of the entity to delete.
//
// Returns:
//
//	An error if the query building or execution fails.
func (r *Repository[T]) Delete(ctx context.Context, id interface{}) error {
	props := map[string]interface{}{r.meta.PKProp: id}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(props)).
		DetachDelete("n").
		Build()
	if err != nil {
		return err
	}
	_, err = r.runner.Run(ctx, query, params)
	return err
}

// runCount executes a count aggregation and extracts the single int64 result.
func (r *Repository[T]) runCount(ctx context.Context, query string, params map[string]interface{}) (int64, error) {
	eagerResult, err := r.runner.Run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	if len(eagerResult.Records) == 0 {
		return 0, fmt.Errorf("count query returned no records")
	}
	value, ok := eagerResult.Records[0].Get("total")
	if !ok {
		return 0, fmt.Errorf("could not find return value 'total' in query result")
	}
	total, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("count value is not an integer: %T", value)
	}
	return total, nil
}

// isIntegerKind reports whether the reflect kind is an integer type.
func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// isFloatKind reports whether the reflect kind is a float type.
func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// isLosslessNumericConversion reports whether converting between the two
// numeric kinds preserves the value: integer to integer, float to float, and
// integer to float are allowed, float to integer is not (it would truncate).
func isLosslessNumericConversion(from, to reflect.Kind) bool {
	if isIntegerKind(from) {
		return isIntegerKind(to) || isFloatKind(to)
	}
	return isFloatKind(from) && isFloatKind(to)
}

// firstNode returns the first neo4j.Node among the record values, if any.
func firstNode(values []interface{}) (neo4j.Node, bool) {
	for _, value := range values {
		if node, ok := value.(neo4j.Node); ok {
			return node, true
		}
	}
	return neo4j.Node{}, false
}

// mapNodeToStruct is an internal helper function that populates a struct's fields
// from a neo4j.Node's properties, based on the parsed metadata. Properties whose
// database type is not assignable to the struct field (for example a stored
// embedding vector) are skipped rather than causing a panic.
func mapNodeToStruct(node neo4j.Node, entity any, meta *entityMetadata) error {
	val := reflect.ValueOf(entity).Elem()

	for fieldName, propName := range meta.Mappings {
		field := val.FieldByName(fieldName)
		if !field.IsValid() || !field.CanSet() {
			continue // Skip if the struct field cannot be set.
		}

		propValue, ok := node.Props[propName]
		if !ok || propValue == nil {
			continue // Skip if the property does not exist on the node.
		}

		pv := reflect.ValueOf(propValue)
		if !pv.Type().AssignableTo(field.Type()) {
			// The driver returns integers as int64 and floats as float64;
			// convert only where the value survives intact, skip everything
			// else (a float64 property does not truncate into an int field).
			if isLosslessNumericConversion(pv.Kind(), field.Kind()) {
				field.Set(pv.Convert(field.Type()))
			}
			continue
		}

		// Set the struct field's value.
		field.Set(pv)
	}
	return nil
}
