package sampling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicWithSameSeed(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.NextUint32(), b.NextUint32())
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	same := true
	for i := 0; i < 20; i++ {
		if a.NextUint32() != b.NextUint32() {
			same = false
		}
	}
	require.False(t, same)
}

func TestNextDoubleInUnitRange(t *testing.T) {
	tw := New(7)
	for i := 0; i < 1000; i++ {
		v := tw.NextDouble()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestPermutationIsBijection(t *testing.T) {
	tw := New(123)
	perm := tw.Permutation(50)
	seen := make(map[int]bool, 50)
	for _, v := range perm {
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 50)
		require.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	require.Len(t, seen, 50)
}

func TestSampleWithoutReplacement(t *testing.T) {
	tw := New(9)
	sample := tw.Sample(1000, 30)
	require.Len(t, sample, 30)
	seen := make(map[int]bool, 30)
	for _, v := range sample {
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 1000)
		require.False(t, seen[v])
		seen[v] = true
	}
}

func TestSampleClampsToSize(t *testing.T) {
	tw := New(3)
	sample := tw.Sample(5, 50)
	require.Len(t, sample, 5)
}
