// Package mesh implements the N-D mesh geometry operations of spec
// §4.5: converting a row bitmap over a raster-scanned grid into
// rectangular blocks, extracting boundary points, and mapping a
// bitmap to explicit coordinate vectors.
//
// Grounded on _examples/original_source/src/meshQuery.cpp's
// toBlocks/block2d/block3d/blocknd family (the raster-order,
// last-dimension-fastest convention, and the "line then merge" block
// construction strategy) and, for the Go-side iteration idiom, on
// internal/bitvec's IndexSet cursor rather than a per-dimension
// specialized function for each of the 1D/2D/3D/nD cases the original
// hand-unrolls — one generic line-then-merge pass covers all of them.
package mesh

import (
	"fmt"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
)

// Block is an axis-aligned hyperrectangle on the grid: Lo is
// inclusive, Hi is exclusive, both indexed the same way as dims.
type Block struct {
	Lo []uint32
	Hi []uint32
}

func product(dims []uint32) uint32 {
	var n uint32 = 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func validateDims(bv *bitvec.Bitvector, dims []uint32) error {
	if len(dims) == 0 {
		return bitdexerr.New(bitdexerr.DimOverflow, "mesh", fmt.Errorf("empty dims"))
	}
	if product(dims) != bv.Size() {
		return bitdexerr.New(bitdexerr.DimOverflow, "mesh",
			fmt.Errorf("grid of %d points does not match bitmap size %d", product(dims), bv.Size()))
	}
	return nil
}

// linearToCoord decodes a raster-scan linear position into grid
// coordinates, dims[0] slowest varying.
func linearToCoord(pos uint32, dims []uint32) []uint32 {
	coord := make([]uint32, len(dims))
	for i := len(dims) - 1; i >= 0; i-- {
		coord[i] = pos % dims[i]
		pos /= dims[i]
	}
	return coord
}

// coordToLinear is the inverse of linearToCoord.
func coordToLinear(coord, dims []uint32) uint32 {
	var pos uint32
	for i := 0; i < len(dims); i++ {
		pos = pos*dims[i] + coord[i]
	}
	return pos
}

// ToBlocks decomposes the set positions of bv into a minimal list of
// rectangular blocks covering exactly those positions. It first splits
// set runs into maximal "lines" along the fastest-varying dimension
// (never crossing a row boundary), then repeatedly merges adjacent
// blocks that differ in exactly one dimension with touching bounds and
// identical bounds elsewhere, until no further merge applies.
func ToBlocks(bv *bitvec.Bitvector, dims []uint32) ([]Block, error) {
	if err := validateDims(bv, dims); err != nil {
		return nil, err
	}
	if bv.Size() == 0 {
		return nil, nil
	}
	if bv.Count() == bv.Size() {
		lo := make([]uint32, len(dims))
		hi := make([]uint32, len(dims))
		copy(hi, dims)
		return []Block{{Lo: lo, Hi: hi}}, nil
	}

	lines := decomposeLines(bv, dims)
	return mergeBlocks(lines), nil
}

// decomposeLines walks the bitmap's set positions and emits one Block
// per maximal contiguous run that stays within a single row (a "line"
// in meshQuery.cpp's terminology: positions differing only in their
// last coordinate).
func decomposeLines(bv *bitvec.Bitvector, dims []uint32) []Block {
	rowLen := dims[len(dims)-1]
	var lines []Block

	addRun := func(lo, hiExcl uint32) {
		for lo < hiExcl {
			rowStart := (lo / rowLen) * rowLen
			rowEnd := rowStart + rowLen
			end := hiExcl
			if end > rowEnd {
				end = rowEnd
			}
			loCoord := linearToCoord(lo, dims)
			hiCoord := make([]uint32, len(loCoord))
			for d := range loCoord {
				hiCoord[d] = loCoord[d] + 1
			}
			hiCoord[len(hiCoord)-1] = loCoord[len(loCoord)-1] + (end - lo)
			lines = append(lines, Block{Lo: loCoord, Hi: hiCoord})
			lo = end
		}
	}

	it := bv.FirstIndexSet()
	for {
		step, ok := it.Next()
		if !ok {
			break
		}
		if step.Kind == bitvec.RangeStep {
			addRun(step.Range[0], step.Range[1])
			continue
		}
		if len(step.Indices) == 0 {
			continue
		}
		runStart := step.Indices[0]
		prev := runStart
		for _, idx := range step.Indices[1:] {
			if idx == prev+1 {
				prev = idx
				continue
			}
			addRun(runStart, prev+1)
			runStart = idx
			prev = idx
		}
		addRun(runStart, prev+1)
	}
	return lines
}

// mergeBlocks repeatedly folds pairs of blocks that share identical
// bounds on every dimension but one, and touch along that dimension,
// into a single larger block. This generalizes meshQuery.cpp's
// dimension-specialized block2d/block3d/blocknd merge passes into one
// dimension-agnostic fixed-point loop.
func mergeBlocks(blocks []Block) []Block {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(blocks); i++ {
			for j := i + 1; j < len(blocks); j++ {
				if merged, ok := tryMerge(blocks[i], blocks[j]); ok {
					blocks[i] = merged
					blocks = append(blocks[:j], blocks[j+1:]...)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
	return blocks
}

func tryMerge(a, b Block) (Block, bool) {
	diffDim := -1
	for d := range a.Lo {
		if a.Lo[d] != b.Lo[d] || a.Hi[d] != b.Hi[d] {
			if diffDim != -1 {
				return Block{}, false
			}
			diffDim = d
		}
	}
	if diffDim == -1 {
		return a, true
	}
	if a.Hi[diffDim] == b.Lo[diffDim] {
		out := Block{Lo: append([]uint32{}, a.Lo...), Hi: append([]uint32{}, a.Hi...)}
		out.Hi[diffDim] = b.Hi[diffDim]
		return out, true
	}
	if b.Hi[diffDim] == a.Lo[diffDim] {
		out := Block{Lo: append([]uint32{}, b.Lo...), Hi: append([]uint32{}, a.Hi...)}
		out.Lo[diffDim] = b.Lo[diffDim]
		return out, true
	}
	return Block{}, false
}

// BitvectorToCoordinates decodes every set position of bv into its
// grid coordinate vector, in ascending position order.
func BitvectorToCoordinates(bv *bitvec.Bitvector, dims []uint32) ([][]uint32, error) {
	if err := validateDims(bv, dims); err != nil {
		return nil, err
	}
	positions := bv.ToSlice()
	out := make([][]uint32, len(positions))
	for i, pos := range positions {
		out[i] = linearToCoord(pos, dims)
	}
	return out, nil
}

// PointsOnBoundary returns the coordinates of every set point that has
// at least one of its 2*len(dims) axis-aligned neighbors either out of
// grid range or unset — the points where the region's surface lies.
func PointsOnBoundary(bv *bitvec.Bitvector, dims []uint32) ([][]uint32, error) {
	if err := validateDims(bv, dims); err != nil {
		return nil, err
	}
	positions := bv.ToSlice()
	set := make(map[uint32]struct{}, len(positions))
	for _, p := range positions {
		set[p] = struct{}{}
	}
	var boundary [][]uint32
	for _, pos := range positions {
		coord := linearToCoord(pos, dims)
		isBoundary := false
		for d := 0; d < len(dims) && !isBoundary; d++ {
			for _, delta := range [2]int{-1, 1} {
				nc := append([]uint32{}, coord...)
				v := int(nc[d]) + delta
				if v < 0 || uint32(v) >= dims[d] {
					isBoundary = true
					break
				}
				nc[d] = uint32(v)
				if _, ok := set[coordToLinear(nc, dims)]; !ok {
					isBoundary = true
					break
				}
			}
		}
		if isBoundary {
			boundary = append(boundary, coord)
		}
	}
	return boundary, nil
}
