package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/colindex"
	"github.com/bitdex/bitdex/internal/column"
	"github.com/bitdex/bitdex/internal/config"
	"github.com/bitdex/bitdex/internal/partstore"
	"github.com/bitdex/bitdex/internal/query"
)

func int32Column(t *testing.T, name string, vals []int32) *column.Column {
	t.Helper()
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		for b := 0; b < 4; b++ {
			buf[i*4+b] = byte(v >> (8 * b))
		}
	}
	return column.NewFixedWidth(name, column.Int32, uint32(len(vals)), column.MemBackend{Data: buf}, nil)
}

func testConfig() config.TableConfig {
	return config.TableConfig{AdmissionQPS: 1000, AdmissionBurst: 1000}
}

func TestOpenBuildsIndexPerNumericColumn(t *testing.T) {
	store := partstore.NewMemoryKeyValue()
	a := int32Column(t, "a", []int32{1, 2, 3, 2, 1})
	b := int32Column(t, "b", []int32{9, 8, 9, 8, 9})

	tab, err := Open(testConfig(), store, []*column.Column{a, b}, "range", nil)
	require.NoError(t, err)
	require.EqualValues(t, 5, tab.Size())

	count, err := store.Get(columnCountKey)
	require.NoError(t, err)
	require.Equal(t, "2", count)
}

func TestOpenRejectsMismatchedColumnLengths(t *testing.T) {
	a := int32Column(t, "a", []int32{1, 2, 3})
	b := int32Column(t, "b", []int32{1, 2})
	_, err := Open(testConfig(), nil, []*column.Column{a, b}, "", nil)
	require.Error(t, err)
}

func TestQueryOverOpenedTable(t *testing.T) {
	a := int32Column(t, "a", []int32{1, 1, 2, 2, 3})
	b := int32Column(t, "b", []int32{9, 8, 9, 8, 9})
	tab, err := Open(testConfig(), nil, []*column.Column{a, b}, "equality", nil)
	require.NoError(t, err)

	q := tab.NewQuery()
	require.NoError(t, q.SetWhereClause(
		query.And(query.Leaf("a", colindex.EQ, 1), query.Leaf("b", colindex.EQ, 9)),
	))
	hits, err := q.Evaluate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, false, false, false}, hits.ToBits())
}

func TestColumnFloatsProjectsWholeColumn(t *testing.T) {
	a := int32Column(t, "a", []int32{3, 1, 4, 1, 5})
	tab, err := Open(testConfig(), nil, []*column.Column{a}, "range", nil)
	require.NoError(t, err)

	vals, err := tab.ColumnFloats("a")
	require.NoError(t, err)
	require.Equal(t, []float64{3, 1, 4, 1, 5}, vals)
}

func TestColumnFloatsUnknownColumn(t *testing.T) {
	a := int32Column(t, "a", []int32{1, 2, 3})
	tab, err := Open(testConfig(), nil, []*column.Column{a}, "range", nil)
	require.NoError(t, err)

	_, err = tab.ColumnFloats("missing")
	require.Error(t, err)
}
