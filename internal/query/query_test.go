package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/bitvec"
	"github.com/bitdex/bitdex/internal/colindex"
)

func buildCols(t *testing.T, values map[string][]float64) map[string]*ColumnIndex {
	t.Helper()
	cols := map[string]*ColumnIndex{}
	for name, vals := range values {
		idx, err := colindex.BuildEquality(vals)
		require.NoError(t, err)
		cols[name] = &ColumnIndex{Name: name, Index: idx}
	}
	return cols
}

func TestLeafPredicateExact(t *testing.T) {
	cols := buildCols(t, map[string][]float64{"a": {1, 2, 3, 2, 1}})
	p := Leaf("a", colindex.EQ, 2)
	require.NoError(t, p.CheckValid())

	hits, err := Evaluate(p, cols, 5)
	require.NoError(t, err)
	require.Equal(t, []bool{false, true, false, true, false}, hits.ToBits())
}

func TestAndOrNotCombination(t *testing.T) {
	cols := buildCols(t, map[string][]float64{
		"a": {1, 1, 2, 2, 3},
		"b": {9, 8, 9, 8, 9},
	})
	p := And(Leaf("a", colindex.EQ, 1), Leaf("b", colindex.EQ, 9))
	hits, err := Evaluate(p, cols, 5)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, false, false, false}, hits.ToBits())

	p2 := Or(Leaf("a", colindex.EQ, 3), Leaf("b", colindex.EQ, 8))
	hits2, err := Evaluate(p2, cols, 5)
	require.NoError(t, err)
	require.Equal(t, []bool{false, true, false, true, true}, hits2.ToBits())

	p3 := Not(Leaf("a", colindex.EQ, 1))
	hits3, err := Evaluate(p3, cols, 5)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false, true, true, true}, hits3.ToBits())
}

func TestXorCombination(t *testing.T) {
	cols := buildCols(t, map[string][]float64{
		"a": {1, 1, 0, 0},
		"b": {1, 0, 1, 0},
	})
	p := Xor(Leaf("a", colindex.EQ, 1), Leaf("b", colindex.EQ, 1))
	hits, err := Evaluate(p, cols, 4)
	require.NoError(t, err)
	require.Equal(t, []bool{false, true, true, false}, hits.ToBits())
}

func TestEstimateBracketEnclosesExact(t *testing.T) {
	vals := make([]float64, 200)
	for i := range vals {
		vals[i] = float64(i)
	}
	idx, err := colindex.BuildEqualWidthRange(vals)
	require.NoError(t, err)
	cols := map[string]*ColumnIndex{
		"a": {Name: "a", Index: idx, ExactEvaluate: func(pred colindex.RangePredicate, candidates *bitvec.Bitvector) (*bitvec.Bitvector, error) {
			result := bitvec.New()
			bits := candidates.ToBits()
			for i, on := range bits {
				v := vals[i]
				match := on && matchesOp(pred.Op, v, pred.Value)
				result.AppendBit(match)
			}
			return result, nil
		}},
	}
	p := Leaf("a", colindex.LT, 100)
	bracket, err := Estimate(p, cols, 200)
	require.NoError(t, err)
	exact, err := Evaluate(p, cols, 200)
	require.NoError(t, err)

	lowerBits, exactBits, upperBits := bracket.Lower.ToBits(), exact.ToBits(), bracket.Upper.ToBits()
	for i := range exactBits {
		if lowerBits[i] {
			require.True(t, exactBits[i])
		}
		if exactBits[i] {
			require.True(t, upperBits[i])
		}
	}
}

func matchesOp(op colindex.Op, v, target float64) bool {
	switch op {
	case colindex.LT:
		return v < target
	case colindex.LE:
		return v <= target
	case colindex.EQ:
		return v == target
	case colindex.GE:
		return v >= target
	case colindex.GT:
		return v > target
	case colindex.NE:
		return v != target
	}
	return false
}

func TestQueryStateMachine(t *testing.T) {
	cols := buildCols(t, map[string][]float64{"a": {1, 2, 3}})
	q := New(cols, 3, nil, nil)
	require.Equal(t, Uninitialised, q.State())

	_, err := q.Evaluate(context.Background())
	require.Error(t, err)

	require.NoError(t, q.SetWhereClause(Leaf("a", colindex.EQ, 2)))
	require.Equal(t, Specified, q.State())

	bracket, err := q.Estimate(context.Background())
	require.NoError(t, err)
	require.Equal(t, QuickEstimated, q.State())
	require.EqualValues(t, 1, bracket.Lower.Count())

	hits, err := q.Evaluate(context.Background())
	require.NoError(t, err)
	require.Equal(t, FullyEvaluated, q.State())
	require.EqualValues(t, 1, hits.Count())

	got, err := q.Hits()
	require.NoError(t, err)
	require.Equal(t, hits.ToBits(), got.ToBits())
}

func TestQueryTruncateHits(t *testing.T) {
	cols := buildCols(t, map[string][]float64{"a": {1, 1, 1, 1, 2}})
	q := New(cols, 5, nil, nil)
	require.NoError(t, q.SetWhereClause(Leaf("a", colindex.EQ, 1)))
	_, err := q.Evaluate(context.Background())
	require.NoError(t, err)

	require.NoError(t, q.TruncateHits(2))
	require.Equal(t, HitsTruncated, q.State())
	hits, err := q.Hits()
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Count())
}
