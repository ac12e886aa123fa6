package graphrag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testService struct {
	Name        string `crud:"pk,property:name"`
	Description string `crud:"property:description"`
	Replicas    int    `crud:"property:replicas"`
}

func serviceNodeResult(props map[string]interface{}) []interface{} {
	return []interface{}{testNode("4:abc:1", "testService", props)}
}

func TestRepositorySave(t *testing.T) {
	runner := &fakeRunner{}
	repo, err := NewRepository[testService](runner)
	require.NoError(t, err)

	err = repo.Save(t.Context(), &testService{Name: "billing", Description: "invoices", Replicas: 3})
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0].Query, "MERGE")
	assert.Contains(t, runner.calls[0].Query, "testService")
}

func TestRepositoryFindByID(t *testing.T) {
	t.Run("maps node properties onto the struct", func(t *testing.T) {
		runner := (&fakeRunner{}).queue(resultWithRecords(
			[]string{"n"},
			serviceNodeResult(map[string]interface{}{
				"name":        "billing",
				"description": "invoices",
				"replicas":    int64(3), // the driver returns integers as int64
			}),
		))
		repo, err := NewRepository[testService](runner)
		require.NoError(t, err)

		found, err := repo.FindByID(t.Context(), "billing")
		require.NoError(t, err)
		assert.Equal(t, &testService{Name: "billing", Description: "invoices", Replicas: 3}, found)
	})

	t.Run("returns ErrNotFound for zero records", func(t *testing.T) {
		repo, err := NewRepository[testService](&fakeRunner{})
		require.NoError(t, err)

		_, err = repo.FindByID(t.Context(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects multiple records for a pk lookup", func(t *testing.T) {
		runner := (&fakeRunner{}).queue(resultWithRecords(
			[]string{"n"},
			serviceNodeResult(map[string]interface{}{"name": "a"}),
			serviceNodeResult(map[string]interface{}{"name": "b"}),
		))
		repo, err := NewRepository[testService](runner)
		require.NoError(t, err)

		_, err = repo.FindByID(t.Context(), "dup")
		assert.ErrorContains(t, err, "expected 1 record")
	})
}

func TestRepositoryFindAll(t *testing.T) {
	runner := (&fakeRunner{}).queue(resultWithRecords(
		[]string{"n"},
		serviceNodeResult(map[string]interface{}{"name": "billing"}),
		serviceNodeResult(map[string]interface{}{"name": "search"}),
	))
	repo, err := NewRepository[testService](runner)
	require.NoError(t, err)

	all, err := repo.FindAll(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "billing", all[0].Name)
	assert.Equal(t, "search", all[1].Name)
}

func TestRepositoryFindSkipsUnmappableProperties(t *testing.T) {
	// A stored embedding vector must not panic the mapper; it just is not
	// assignable to any struct field.
	runner := (&fakeRunner{}).queue(resultWithRecords(
		[]string{"n"},
		serviceNodeResult(map[string]interface{}{
			"name":        "billing",
			"description": []interface{}{1.0, 2.0}, // wrong type for a string field
		}),
	))
	repo, err := NewRepository[testService](runner)
	require.NoError(t, err)

	found, err := repo.FindByID(t.Context(), "billing")
	require.NoError(t, err)
	assert.Equal(t, "billing", found.Name)
	assert.Empty(t, found.Description)
}

func TestRepositoryFindSkipsLossyNumericConversions(t *testing.T) {
	// A float64 property must not be truncated into an integer field.
	runner := (&fakeRunner{}).queue(resultWithRecords(
		[]string{"n"},
		serviceNodeResult(map[string]interface{}{
			"name":     "billing",
			"replicas": 3.7,
		}),
	))
	repo, err := NewRepository[testService](runner)
	require.NoError(t, err)

	found, err := repo.FindByID(t.Context(), "billing")
	require.NoError(t, err)
	assert.Equal(t, "billing", found.Name)
	assert.Zero(t, found.Replicas)
}

func TestRepositoryCount(t *testing.T) {
	t.Run("returns the aggregate", func(t *testing.T) {
		runner := (&fakeRunner{}).queue(resultWithRecords(
			[]string{"total"},
			[]interface{}{int64(42)},
		))
		repo, err := NewRepository[testService](runner)
		require.NoError(t, err)

		total, err := repo.Count(t.Context())
		require.NoError(t, err)
		assert.Equal(t, int64(42), total)
		assert.Equal(t, "MATCH (n:`testService`) RETURN count(n) AS total", runner.calls[0].Query)
	})

	t.Run("CountByProperty filters on the property", func(t *testing.T) {
		runner := (&fakeRunner{}).queue(resultWithRecords(
			[]string{"total"},
			[]interface{}{int64(7)},
		))
		repo, err := NewRepository[testService](runner)
		require.NoError(t, err)

		total, err := repo.CountByProperty(t.Context(), "description", "invoices")
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
		assert.Contains(t, runner.calls[0].Query, "WHERE n.`description` = $value")
		assert.Equal(t, "invoices", runner.calls[0].Params["value"])
	})
}

func TestRepositoryDelete(t *testing.T) {
	runner := &fakeRunner{}
	repo, err := NewRepository[testService](runner)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(t.Context(), "billing"))
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0].Query, "DETACH DELETE")
}
