package histogram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sumCounts1D(bins []Bin1D) uint32 {
	var total uint32
	for _, b := range bins {
		total += b.Count
	}
	return total
}

func TestBuild1DFixedBoundariesCountsEveryRowOnce(t *testing.T) {
	values := []float64{0, 1, 2, 5, 9, 10, 15, 20}
	bins, err := Build1D(values, []float64{0, 5, 10, 20}, 0, false)
	require.NoError(t, err)
	require.Len(t, bins, 3)
	require.EqualValues(t, len(values), sumCounts1D(bins))
	require.Nil(t, bins[0].Bits)
}

func TestBuild1DFixedBoundariesRejectsNonAscending(t *testing.T) {
	_, err := Build1D([]float64{1, 2, 3}, []float64{0, 5, 5}, 0, false)
	require.Error(t, err)
}

func TestBuild1DAdaptiveTotalsMatchRowCount(t *testing.T) {
	values := make([]float64, 97)
	for i := range values {
		values[i] = float64(i)
	}
	bins, err := Build1D(values, nil, 8, true)
	require.NoError(t, err)
	require.EqualValues(t, len(values), sumCounts1D(bins))
	for _, b := range bins {
		require.NotNil(t, b.Bits)
		require.Equal(t, b.Count, b.Bits.Count())
	}
}

func TestBuild2DGridTotalsMatchRowCount(t *testing.T) {
	n := 64
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = float64(i % 8)
		b[i] = float64(i / 8)
	}
	grid, err := Build2D(a, b, nil, nil, 4, 4, true)
	require.NoError(t, err)

	var total uint32
	for _, row := range grid {
		for _, cell := range row {
			total += cell.Count
			require.Equal(t, cell.Count, cell.Bits.Count())
		}
	}
	require.EqualValues(t, n, total)
}

func TestBuild2DRejectsLengthMismatch(t *testing.T) {
	_, err := Build2D([]float64{1, 2}, []float64{1}, nil, nil, 2, 2, false)
	require.Error(t, err)
}

func TestBuild3DGridTotalsMatchRowCount(t *testing.T) {
	n := 27
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = float64(i % 3)
		b[i] = float64((i / 3) % 3)
		c[i] = float64(i / 9)
	}
	grid, err := Build3D(a, b, c, nil, nil, nil, 3, 3, 3, false)
	require.NoError(t, err)

	var total uint32
	for _, plane := range grid {
		for _, row := range plane {
			for _, cell := range row {
				total += cell.Count
			}
		}
	}
	require.EqualValues(t, n, total)
}
