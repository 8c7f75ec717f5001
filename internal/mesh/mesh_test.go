package mesh

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/bitvec"
)

func gridBitvector(t *testing.T, dims []uint32, set [][]uint32) *bitvec.Bitvector {
	t.Helper()
	n := product(dims)
	bits := make([]bool, n)
	for _, c := range set {
		bits[coordToLinear(c, dims)] = true
	}
	return bitvec.FromBits(bits)
}

func TestToBlocksSingleLine(t *testing.T) {
	dims := []uint32{1, 10}
	bv := gridBitvector(t, dims, [][]uint32{{0, 3}, {0, 4}, {0, 5}})
	blocks, err := ToBlocks(bv, dims)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []uint32{0, 3}, blocks[0].Lo)
	require.Equal(t, []uint32{1, 6}, blocks[0].Hi)
}

func TestToBlocksFullGrid(t *testing.T) {
	dims := []uint32{3, 4}
	bv := bitvec.New()
	bv.AppendRun(true, product(dims))
	blocks, err := ToBlocks(bv, dims)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []uint32{0, 0}, blocks[0].Lo)
	require.Equal(t, dims, blocks[0].Hi)
}

func TestToBlocksMergesAdjacentLinesInto2DBlock(t *testing.T) {
	dims := []uint32{3, 3}
	var set [][]uint32
	for r := uint32(0); r < 3; r++ {
		for c := uint32(1); c < 3; c++ {
			set = append(set, []uint32{r, c})
		}
	}
	bv := gridBitvector(t, dims, set)
	blocks, err := ToBlocks(bv, dims)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []uint32{0, 1}, blocks[0].Lo)
	require.Equal(t, []uint32{3, 3}, blocks[0].Hi)
}

func TestBitvectorToCoordinates(t *testing.T) {
	dims := []uint32{2, 2}
	bv := gridBitvector(t, dims, [][]uint32{{0, 1}, {1, 0}})
	coords, err := BitvectorToCoordinates(bv, dims)
	require.NoError(t, err)
	require.Len(t, coords, 2)
	require.Equal(t, []uint32{0, 1}, coords[0])
	require.Equal(t, []uint32{1, 0}, coords[1])
}

func TestPointsOnBoundarySquareRing(t *testing.T) {
	dims := []uint32{3, 3}
	var set [][]uint32
	for r := uint32(0); r < 3; r++ {
		for c := uint32(0); c < 3; c++ {
			set = append(set, []uint32{r, c})
		}
	}
	bv := gridBitvector(t, dims, set)
	boundary, err := PointsOnBoundary(bv, dims)
	require.NoError(t, err)
	// Every point but the center (1,1) touches the grid edge.
	require.Len(t, boundary, 8)
	found := map[[2]uint32]bool{}
	for _, c := range boundary {
		found[[2]uint32{c[0], c[1]}] = true
	}
	require.False(t, found[[2]uint32{1, 1}])
}

func TestDimMismatchIsFatal(t *testing.T) {
	bv := bitvec.New()
	bv.AppendRun(true, 5)
	_, err := ToBlocks(bv, []uint32{2, 2})
	require.Error(t, err)
}

func TestToBlocksCoverageMatchesOriginalPositions(t *testing.T) {
	dims := []uint32{4, 5}
	set := [][]uint32{{0, 0}, {0, 1}, {2, 3}, {3, 3}, {3, 4}}
	bv := gridBitvector(t, dims, set)
	blocks, err := ToBlocks(bv, dims)
	require.NoError(t, err)

	var recovered [][2]uint32
	for _, b := range blocks {
		walkBlock(b, 0, make([]uint32, len(dims)), &recovered)
	}
	sort.Slice(recovered, func(i, j int) bool {
		if recovered[i][0] != recovered[j][0] {
			return recovered[i][0] < recovered[j][0]
		}
		return recovered[i][1] < recovered[j][1]
	})
	var want [][2]uint32
	for _, c := range set {
		want = append(want, [2]uint32{c[0], c[1]})
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i][0] != want[j][0] {
			return want[i][0] < want[j][0]
		}
		return want[i][1] < want[j][1]
	})
	require.Equal(t, want, recovered)
}

func walkBlock(b Block, dim int, cur []uint32, out *[][2]uint32) {
	if dim == len(b.Lo) {
		var pt [2]uint32
		copy(pt[:], cur)
		*out = append(*out, pt)
		return
	}
	for v := b.Lo[dim]; v < b.Hi[dim]; v++ {
		cur[dim] = v
		walkBlock(b, dim+1, cur, out)
	}
}

// TestSeedScenarioTwoFullRowsMergeIntoOneBlock covers a 4x5 grid with
// rows 1 and 2 entirely set: the two row-blocks share identical bounds
// on dimension 1 and touch on dimension 0, so they merge into a single
// block, and every point in it is on the boundary because the grid is
// only 4 wide on that axis.
func TestSeedScenarioTwoFullRowsMergeIntoOneBlock(t *testing.T) {
	dims := []uint32{4, 5}
	var set [][]uint32
	for _, row := range []uint32{1, 2} {
		for col := uint32(0); col < 5; col++ {
			set = append(set, []uint32{row, col})
		}
	}
	bv := gridBitvector(t, dims, set)

	blocks, err := ToBlocks(bv, dims)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []uint32{1, 0}, blocks[0].Lo)
	require.Equal(t, []uint32{3, 5}, blocks[0].Hi)

	boundary, err := PointsOnBoundary(bv, dims)
	require.NoError(t, err)
	require.Len(t, boundary, 10)
}

// TestSeedScenarioCentrePointIsItsOwnBlockAndBoundary covers a 3x3x3
// grid with only the centre point set: it forms a degenerate
// single-point block, and it's on the boundary because all six of its
// neighbours are unset.
func TestSeedScenarioCentrePointIsItsOwnBlockAndBoundary(t *testing.T) {
	dims := []uint32{3, 3, 3}
	bv := gridBitvector(t, dims, [][]uint32{{1, 1, 1}})

	blocks, err := ToBlocks(bv, dims)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []uint32{1, 1, 1}, blocks[0].Lo)
	require.Equal(t, []uint32{2, 2, 2}, blocks[0].Hi)

	boundary, err := PointsOnBoundary(bv, dims)
	require.NoError(t, err)
	require.Equal(t, [][]uint32{{1, 1, 1}}, boundary)
}
