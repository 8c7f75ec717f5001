package colindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualityIndexExactBrackets(t *testing.T) {
	values := []float64{1, 2, 2, 3, 1, 4}
	idx, err := BuildEquality(values)
	require.NoError(t, err)

	b, err := idx.Evaluate(RangePredicate{Op: EQ, Value: 2})
	require.NoError(t, err)
	require.True(t, b.Exact())
	require.EqualValues(t, 2, b.Lower.Count())

	b, err = idx.Evaluate(RangePredicate{Op: NE, Value: 2})
	require.NoError(t, err)
	require.True(t, b.Exact())
	require.EqualValues(t, 4, b.Lower.Count())
}

func TestRangeIndexOneSidedBrackets(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	idx, err := BuildEqualWidthRange(values)
	require.NoError(t, err)

	b, err := idx.Evaluate(RangePredicate{Op: LT, Value: 50})
	require.NoError(t, err)
	require.True(t, b.Lower.Count() <= 50)
	require.True(t, b.Upper.Count() >= b.Lower.Count())

	b, err = idx.Evaluate(RangePredicate{Op: GE, Value: 50})
	require.NoError(t, err)
	require.True(t, b.Lower.Count() <= 50)
}

func TestRangeIndexLowerIsSubsetOfUpper(t *testing.T) {
	values := make([]float64, 64)
	for i := range values {
		values[i] = float64(i) * 1.5
	}
	idx, err := BuildEqualWidthRange(values)
	require.NoError(t, err)

	for _, op := range []Op{LT, LE, GE, GT} {
		b, err := idx.Evaluate(RangePredicate{Op: op, Value: 47})
		require.NoError(t, err)
		lowerBits := b.Lower.ToBits()
		upperBits := b.Upper.ToBits()
		for i := range lowerBits {
			if lowerBits[i] {
				require.True(t, upperBits[i], "lower not subset of upper at %d for op %v", i, op)
			}
		}
	}
}

func TestDivideCountsBalancesWeight(t *testing.T) {
	weights := make([]uint32, 64)
	for i := range weights {
		weights[i] = 1
	}
	cuts := DivideCounts(weights, 8)
	require.Equal(t, 0, cuts[0])
	require.Equal(t, 64, cuts[len(cuts)-1])
	require.LessOrEqual(t, len(cuts)-1, 8)
	for i := 1; i < len(cuts); i++ {
		require.Greater(t, cuts[i], cuts[i-1])
	}
}

func TestDivideCountsEmptyAndDegenerate(t *testing.T) {
	require.Equal(t, []int{0, 0}, DivideCounts(nil, 4))
	require.Equal(t, []int{0, 3}, DivideCounts([]uint32{0, 0, 0}, 4))
}

func TestBitSlicedIndexEqualityAndRange(t *testing.T) {
	values := make([]float64, 500)
	for i := range values {
		values[i] = float64(i % 50)
	}
	idx, err := BuildBitSliced(values)
	require.NoError(t, err)

	lt, err := idx.Evaluate(RangePredicate{Op: LT, Value: 25})
	require.NoError(t, err)
	ge, err := idx.Evaluate(RangePredicate{Op: GE, Value: 25})
	require.NoError(t, err)
	// lt.Upper (code <= threshold) and ge.Lower (code > threshold) always
	// partition the full row set, whether or not 25 lands on a code boundary.
	require.EqualValues(t, idx.Size(), lt.Upper.Count()+ge.Lower.Count())
}

func TestRegistryBuild(t *testing.T) {
	values := []float64{1, 2, 3}
	idx, err := Build("equality", values)
	require.NoError(t, err)
	require.NotNil(t, idx)

	_, err = Build("nonexistent", values)
	require.Error(t, err)
}
