// Package histogram implements the 1-D/2-D/3-D histogram API of
// spec.md §6: counts (optionally with per-bin bitvectors) over one,
// two, or three columns' values, with either caller-supplied bin
// boundaries or adaptive placement.
//
// Grounded on internal/colindex's BuildInterval/DivideCounts adaptive
// binning (build ~8x fine equal-width bins, then coalesce to roughly
// equal weight) — the same rule, reused here to drive a dense N-D grid
// instead of one column's index.
package histogram

import (
	"fmt"
	"sort"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
	"github.com/bitdex/bitdex/internal/colindex"
)

// fineFanout is how many fine equal-width bins Build1D constructs per
// requested output bin before coalescing, mirroring
// colindex.DefaultFanout's "~8x" adaptive rule.
const fineFanout = colindex.DefaultFanout

// Bin1D is one bucket of a 1-D histogram.
type Bin1D struct {
	Lo, Hi float64
	Count  uint32
	Bits   *bitvec.Bitvector // nil unless withBitmaps was requested
}

// Bin2D is one cell of a 2-D histogram's dense grid.
type Bin2D struct {
	A, B  Bin1D
	Count uint32
	Bits  *bitvec.Bitvector
}

// Bin3D is one cell of a 3-D histogram's dense grid.
type Bin3D struct {
	A, B, C Bin1D
	Count   uint32
	Bits    *bitvec.Bitvector
}

func validateAscending(boundaries []float64) error {
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return bitdexerr.New(bitdexerr.InvalidState, "histogram",
				fmt.Errorf("boundaries must be strictly ascending, got %v <= %v at index %d",
					boundaries[i], boundaries[i-1], i))
		}
	}
	return nil
}

// row1D always carries its bitvector internally, even when the public
// API's caller didn't ask for one, since multi-dimensional histograms
// need every dimension's per-bin bitvector to AND together.
func row1D(values []float64, boundaries []float64, requestedBins int) ([]Bin1D, error) {
	if boundaries != nil {
		if err := validateAscending(boundaries); err != nil {
			return nil, err
		}
		return assignToBins(values, boundaries)
	}
	return adaptiveBins(values, requestedBins)
}

// assignToBins places each value into the bin whose [Lo, Hi) it falls
// in; values at or past the last boundary land in the final bin.
func assignToBins(values []float64, boundaries []float64) ([]Bin1D, error) {
	nBins := len(boundaries) - 1
	bins := make([]Bin1D, nBins)
	for i := range bins {
		bins[i] = Bin1D{Lo: boundaries[i], Hi: boundaries[i+1], Bits: bitvec.New()}
		bins[i].Bits.AppendRun(false, uint32(len(values)))
	}
	for row, v := range values {
		bi := sort.Search(nBins, func(i int) bool { return boundaries[i+1] > v })
		if bi >= nBins {
			bi = nBins - 1
		}
		if err := bins[bi].Bits.SetBit(uint32(row), true); err != nil {
			return nil, err
		}
		bins[bi].Count++
	}
	return bins, nil
}

// adaptiveBins builds fineFanout*requestedBins equal-width bins over
// values' observed range, then coalesces them via colindex.DivideCounts
// so every output bin carries roughly equal weight. The output bin
// count may differ slightly from requestedBins, per spec.md §6/§9.
func adaptiveBins(values []float64, requestedBins int) ([]Bin1D, error) {
	if requestedBins < 1 {
		requestedBins = 1
	}
	fine := requestedBins * fineFanout
	lo, hi := colindex.BoundsOf(values)
	if hi == lo {
		hi = lo + 1
	}
	boundaries := make([]float64, fine+1)
	step := (hi - lo) / float64(fine)
	for i := 0; i <= fine; i++ {
		boundaries[i] = lo + step*float64(i)
	}
	boundaries[fine] = hi + step
	fineBins, err := assignToBins(values, boundaries)
	if err != nil {
		return nil, err
	}

	weights := make([]uint32, len(fineBins))
	for i, b := range fineBins {
		weights[i] = b.Count
	}
	cuts := colindex.DivideCounts(weights, requestedBins)

	out := make([]Bin1D, 0, len(cuts)-1)
	for i := 0; i < len(cuts)-1; i++ {
		loIdx, hiIdx := cuts[i], cuts[i+1]
		merged := Bin1D{Lo: fineBins[loIdx].Lo, Hi: fineBins[hiIdx-1].Hi, Bits: bitvec.New()}
		merged.Bits.AppendRun(false, uint32(len(values)))
		for j := loIdx; j < hiIdx; j++ {
			combined, err := bitvec.LogicalOr(merged.Bits, fineBins[j].Bits)
			if err != nil {
				return nil, err
			}
			merged.Bits = combined
			merged.Count += fineBins[j].Count
		}
		out = append(out, merged)
	}
	return out, nil
}

func stripBin(b Bin1D) Bin1D {
	return Bin1D{Lo: b.Lo, Hi: b.Hi, Count: b.Count}
}

func stripBitmaps(bins []Bin1D) []Bin1D {
	out := make([]Bin1D, len(bins))
	for i, b := range bins {
		out[i] = stripBin(b)
	}
	return out
}

// Build1D computes a 1-D histogram over values. boundaries, if
// non-nil, must be strictly ascending and fixes bin edges exactly;
// otherwise bins are chosen adaptively around requestedBins.
func Build1D(values []float64, boundaries []float64, requestedBins int, withBitmaps bool) ([]Bin1D, error) {
	bins, err := row1D(values, boundaries, requestedBins)
	if err != nil {
		return nil, err
	}
	if !withBitmaps {
		return stripBitmaps(bins), nil
	}
	return bins, nil
}

// Build2D computes a dense 2-D histogram grid by crossing the 1-D
// binning of a and b and counting (and, if requested, bit-ANDing) the
// rows that fall in each cell. a and b must have the same length —
// they're parallel columns of the same table.
func Build2D(a, b []float64, boundsA, boundsB []float64, binsA, binsB int, withBitmaps bool) ([][]Bin2D, error) {
	if len(a) != len(b) {
		return nil, bitdexerr.New(bitdexerr.SizeMismatch, "histogram.Build2D",
			fmt.Errorf("column lengths differ: %d vs %d", len(a), len(b)))
	}
	rowsA, err := row1D(a, boundsA, binsA)
	if err != nil {
		return nil, err
	}
	rowsB, err := row1D(b, boundsB, binsB)
	if err != nil {
		return nil, err
	}
	grid := make([][]Bin2D, len(rowsA))
	for i, ra := range rowsA {
		row := make([]Bin2D, len(rowsB))
		for j, rb := range rowsB {
			and, err := bitvec.LogicalAnd(ra.Bits, rb.Bits)
			if err != nil {
				return nil, err
			}
			cell := Bin2D{A: stripBin(ra), B: stripBin(rb), Count: and.Count()}
			if withBitmaps {
				cell.Bits = and
			}
			row[j] = cell
		}
		grid[i] = row
	}
	return grid, nil
}

// Build3D computes a dense 3-D histogram grid by crossing the 1-D
// binning of a, b, and c. All three must have the same length.
func Build3D(a, b, c []float64, boundsA, boundsB, boundsC []float64, binsA, binsB, binsC int, withBitmaps bool) ([][][]Bin3D, error) {
	if len(a) != len(b) || len(a) != len(c) {
		return nil, bitdexerr.New(bitdexerr.SizeMismatch, "histogram.Build3D",
			fmt.Errorf("column lengths differ: %d, %d, %d", len(a), len(b), len(c)))
	}
	rowsA, err := row1D(a, boundsA, binsA)
	if err != nil {
		return nil, err
	}
	rowsB, err := row1D(b, boundsB, binsB)
	if err != nil {
		return nil, err
	}
	rowsC, err := row1D(c, boundsC, binsC)
	if err != nil {
		return nil, err
	}
	grid := make([][][]Bin3D, len(rowsA))
	for i, ra := range rowsA {
		plane := make([][]Bin3D, len(rowsB))
		for j, rb := range rowsB {
			ab, err := bitvec.LogicalAnd(ra.Bits, rb.Bits)
			if err != nil {
				return nil, err
			}
			line := make([]Bin3D, len(rowsC))
			for k, rc := range rowsC {
				abc, err := bitvec.LogicalAnd(ab, rc.Bits)
				if err != nil {
					return nil, err
				}
				cell := Bin3D{
					A:     stripBin(ra),
					B:     stripBin(rb),
					C:     stripBin(rc),
					Count: abc.Count(),
				}
				if withBitmaps {
					cell.Bits = abc
				}
				line[k] = cell
			}
			plane[j] = line
		}
		grid[i] = plane
	}
	return grid, nil
}
