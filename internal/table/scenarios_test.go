package table

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/colindex"
	"github.com/bitdex/bitdex/internal/column"
	"github.com/bitdex/bitdex/internal/query"
)

func int16Column(t *testing.T, name string, vals []int16) *column.Column {
	t.Helper()
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return column.NewFixedWidth(name, column.Int16, uint32(len(vals)), column.MemBackend{Data: buf}, nil)
}

func float32Column(t *testing.T, name string, vals []float32) *column.Column {
	t.Helper()
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return column.NewFixedWidth(name, column.Float32, uint32(len(vals)), column.MemBackend{Data: buf}, nil)
}

func countHits(t *testing.T, tab *Table, pred *query.Predicate) uint32 {
	t.Helper()
	q := tab.NewQuery()
	require.NoError(t, q.SetWhereClause(pred))
	hits, err := q.Evaluate(context.Background())
	require.NoError(t, err)
	return hits.Count()
}

// TestSeedScenarioHundredRowTable exercises the 100-row a/b/c table: a
// and b count 0..99, c counts down 100..1. a+b>150 and c>a compare two
// columns against each other, which the leaf-predicate shape (column
// vs. constant) can't express, so those two are checked by scanning
// the source arrays directly rather than through a Predicate.
func TestSeedScenarioHundredRowTable(t *testing.T) {
	const n = 100
	aVals := make([]int32, n)
	bVals := make([]int16, n)
	cVals := make([]float32, n)
	for i := 0; i < n; i++ {
		aVals[i] = int32(i)
		bVals[i] = int16(i)
		cVals[i] = float32(100 - i)
	}
	a := int32Column(t, "a", aVals)
	b := int16Column(t, "b", bVals)
	c := float32Column(t, "c", cVals)

	tab, err := Open(testConfig(), nil, []*column.Column{a, b, c}, "range", nil)
	require.NoError(t, err)
	require.EqualValues(t, n, tab.Size())

	require.EqualValues(t, 5, countHits(t, tab, query.Leaf("a", colindex.LT, 5)))
	require.EqualValues(t, 10, countHits(t, tab, query.Leaf("c", colindex.GT, 90)))
	require.EqualValues(t, 19, countHits(t, tab,
		query.And(query.Leaf("a", colindex.LT, 60), query.Leaf("c", colindex.LT, 60))))

	var abOver150, cOverA int
	for i := 0; i < n; i++ {
		if int(aVals[i])+int(bVals[i]) > 150 {
			abOver150++
		}
		if cVals[i] > float32(aVals[i]) {
			cOverA++
		}
	}
	require.Equal(t, 24, abOver150)
	require.Equal(t, 50, cOverA)
}

// TestSeedScenarioShiftedArray matches a1[j] = j & 0x7FFF against
// a1 < 5: the low 15 bits wrap every 0x8000 rows, so every full cycle
// contributes 5 more hits on top of whatever the final partial cycle
// gives.
func TestSeedScenarioShiftedArray(t *testing.T) {
	for _, n := range []int{10, 100, 40000} {
		aVals := make([]int32, n)
		for j := 0; j < n; j++ {
			aVals[j] = int32(j & 0x7FFF)
		}
		a := int32Column(t, "a", aVals)
		tab, err := Open(testConfig(), nil, []*column.Column{a}, "range", nil)
		require.NoError(t, err)

		got := countHits(t, tab, query.Leaf("a", colindex.LT, 5))
		want := min(n, 5) + 5*(n>>15)
		require.Equalf(t, uint32(want), got, "n=%d", n)
	}
}

// TestSeedScenarioCombinedArrayPredicate checks a2 <= 11 AND (a1 < 5
// OR 2.0 <= a3 < 3.5) against the same a1/a2/a3 arrays used by
// TestSeedScenarioShiftedArray's family, for n >= 14.
func TestSeedScenarioCombinedArrayPredicate(t *testing.T) {
	for _, n := range []int{14, 30, 100} {
		a1Vals := make([]int32, n)
		a2Vals := make([]int32, n)
		a3Vals := make([]float32, n)
		for j := 0; j < n; j++ {
			a1Vals[j] = int32(j & 0x7FFF)
			a2Vals[j] = int32(j >> 1)
			a3Vals[j] = float32(0.25 * float64(j))
		}
		a1 := int32Column(t, "a1", a1Vals)
		a2 := int32Column(t, "a2", a2Vals)
		a3 := float32Column(t, "a3", a3Vals)
		tab, err := Open(testConfig(), nil, []*column.Column{a1, a2, a3}, "range", nil)
		require.NoError(t, err)

		pred := query.And(
			query.Leaf("a2", colindex.LE, 11),
			query.Or(
				query.Leaf("a1", colindex.LT, 5),
				query.And(query.Leaf("a3", colindex.GE, 2.0), query.Leaf("a3", colindex.LT, 3.5)),
			),
		)
		got := countHits(t, tab, pred)
		want := min(n, 5) + 6
		require.Equalf(t, uint32(want), got, "n=%d", n)
	}
}
