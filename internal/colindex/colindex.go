// Package colindex implements the per-column bitmap index of spec §4.3:
// a partition of the column's value domain into bins, one bitmap per
// bin, answering "which rows satisfy col ⊙ constant" by combining a
// small number of pre-computed bitmaps.
//
// Grounded on pkg/sorted's "one interface, several interchangeable
// backends behind a constructor registry" shape (pkg/sorted/kv.go's
// KeyValue + RegisterKeyValue): here an Index interface with a Variant
// registry, rather than one hard-coded bin layout.
package colindex

import (
	"fmt"
	"sort"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
)

// Op is a comparison operator in a range predicate.
type Op int

const (
	LT Op = iota
	LE
	EQ
	GE
	GT
	NE
)

// RangePredicate is "column ⊙ value" evaluated entirely by an Index.
type RangePredicate struct {
	Op    Op
	Value float64
}

// Bracket is the (lower, upper) pair returned by Evaluate: lower
// certainly satisfies the predicate, upper possibly satisfies it, and
// lower is a subset of upper. When the index is exact for a predicate,
// lower == upper in every bit.
type Bracket struct {
	Lower *bitvec.Bitvector
	Upper *bitvec.Bitvector
}

// Exact reports whether this bracket is a single exact answer.
func (b Bracket) Exact() bool {
	return b.Lower.Count() == b.Upper.Count()
}

// Index is the contract every bin layout variant (equality, range,
// interval, binary-encoded fanout) must implement.
type Index interface {
	// Evaluate returns the (lower, upper) bracket for pred.
	Evaluate(pred RangePredicate) (Bracket, error)
	// BinBoundaries exposes the value grid, n+1 entries for n bins.
	BinBoundaries() []float64
	// BinWeights exposes per-bin row counts, feeding adaptive histograms.
	BinWeights() []uint32
	// Size is the row count the index was built over.
	Size() uint32
}

// BinIndex realises the equality, range, and interval variants of
// spec §4.3 with one representation: n bins with monotonically
// increasing boundaries b0 < ... < bn, and per-bin bitmaps of rows
// whose value lies in [b_i, b_{i+1}). A narrow (per-distinct-value) bin
// layout gives an exact equality index; a coarse equal-width layout
// gives an approximate range index. The four named variants in spec
// §4.3 are distinguished only by how their bins are built, not by a
// different runtime representation — a deliberate simplification
// recorded in DESIGN.md.
type BinIndex struct {
	boundaries []float64
	bins       []*bitvec.Bitvector
	size       uint32
}

// NewBinIndex builds an index from n bins whose disjoint bitmaps OR
// together to a bitmap of size `size`. len(boundaries) must be
// len(bins)+1 and strictly increasing.
func NewBinIndex(boundaries []float64, bins []*bitvec.Bitvector, size uint32) (*BinIndex, error) {
	if len(boundaries) != len(bins)+1 {
		return nil, bitdexerr.New(bitdexerr.Decode, "colindex.NewBinIndex",
			fmt.Errorf("%d boundaries for %d bins", len(boundaries), len(bins)))
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return nil, bitdexerr.New(bitdexerr.Decode, "colindex.NewBinIndex",
				fmt.Errorf("boundaries not strictly increasing at %d", i))
		}
	}
	for _, b := range bins {
		if b.Size() != size {
			return nil, bitdexerr.New(bitdexerr.SizeMismatch, "colindex.NewBinIndex",
				fmt.Errorf("bin bitmap size %d != index size %d", b.Size(), size))
		}
	}
	return &BinIndex{boundaries: boundaries, bins: bins, size: size}, nil
}

func (idx *BinIndex) Size() uint32 { return idx.size }

func (idx *BinIndex) BinBoundaries() []float64 {
	out := make([]float64, len(idx.boundaries))
	copy(out, idx.boundaries)
	return out
}

func (idx *BinIndex) BinWeights() []uint32 {
	out := make([]uint32, len(idx.bins))
	for i, b := range idx.bins {
		out[i] = b.Count()
	}
	return out
}

// binContaining returns the index of the bin whose half-open interval
// contains v, or len(bins) if v is above the last boundary, or -1 if v
// is below the first boundary. A v equal to the last boundary maps to
// the last bin.
func (idx *BinIndex) binContaining(v float64) int {
	i := sort.SearchFloat64s(idx.boundaries, v)
	// boundaries[i] is the first boundary >= v.
	if i < len(idx.boundaries) && idx.boundaries[i] == v {
		if i == len(idx.bins) {
			return i - 1 // v equals the top boundary: belongs to last bin, fully below it.
		}
		return i
	}
	return i - 1
}

func (idx *BinIndex) orBins(lo, hi int) (*bitvec.Bitvector, error) {
	result := bitvec.New()
	result.AppendRun(false, idx.size)
	for i := lo; i < hi; i++ {
		if i < 0 || i >= len(idx.bins) {
			continue
		}
		var err error
		result, err = bitvec.LogicalOr(result, idx.bins[i])
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Evaluate implements the Index contract by OR-ing whole bins that are
// wholly inside the predicate's range into `lower`, and additionally
// OR-ing the (at most one, on each end) boundary-straddling bin into
// `upper`.
func (idx *BinIndex) Evaluate(pred RangePredicate) (Bracket, error) {
	switch pred.Op {
	case LT, LE, GE, GT:
		return idx.evaluateOneSided(pred)
	case EQ:
		return idx.evaluateEquality(pred.Value)
	case NE:
		b, err := idx.evaluateEquality(pred.Value)
		if err != nil {
			return Bracket{}, err
		}
		all := bitvec.New()
		all.AppendRun(true, idx.size)
		lower, err := bitvec.LogicalMinus(all, b.Upper)
		if err != nil {
			return Bracket{}, err
		}
		upper, err := bitvec.LogicalMinus(all, b.Lower)
		if err != nil {
			return Bracket{}, err
		}
		return Bracket{Lower: lower, Upper: upper}, nil
	default:
		return Bracket{}, bitdexerr.New(bitdexerr.InvalidState, "colindex.Evaluate",
			fmt.Errorf("unknown op %d", pred.Op))
	}
}

func (idx *BinIndex) evaluateOneSided(pred RangePredicate) (Bracket, error) {
	straddle := idx.binContaining(pred.Value)
	var loExact, hiExact int // [loExact, hiExact) bins wholly satisfying pred
	switch pred.Op {
	case LT, LE:
		loExact = 0
		hiExact = straddle
	case GE, GT:
		loExact = straddle + 1
		hiExact = len(idx.bins)
		if pred.Op == GE && straddle >= 0 && straddle < len(idx.bins) && idx.boundaries[straddle] == pred.Value {
			loExact = straddle
		}
	}
	if loExact < 0 {
		loExact = 0
	}
	if hiExact > len(idx.bins) {
		hiExact = len(idx.bins)
	}
	lower, err := idx.orBins(loExact, hiExact)
	if err != nil {
		return Bracket{}, err
	}
	upper := lower
	if straddle >= 0 && straddle < len(idx.bins) {
		straddleIsExact := loExact <= straddle && straddle < hiExact
		if !straddleIsExact {
			u, err := bitvec.LogicalOr(lower, idx.bins[straddle])
			if err != nil {
				return Bracket{}, err
			}
			upper = u
		}
	}
	return Bracket{Lower: lower, Upper: upper}, nil
}

func (idx *BinIndex) evaluateEquality(value float64) (Bracket, error) {
	straddle := idx.binContaining(value)
	if straddle < 0 || straddle >= len(idx.bins) {
		empty := bitvec.New()
		empty.AppendRun(false, idx.size)
		return Bracket{Lower: empty, Upper: empty}, nil
	}
	// Exact only if the bin is a single-point bin (its boundary span
	// brackets exactly one distinct value) — approximated here by
	// checking boundary width; a caller building a true equality index
	// makes every bin single-valued, so this is always exact for it.
	exact := idx.boundaries[straddle+1]-idx.boundaries[straddle] <= pointEpsilon
	if exact {
		return Bracket{Lower: idx.bins[straddle], Upper: idx.bins[straddle]}, nil
	}
	empty := bitvec.New()
	empty.AppendRun(false, idx.size)
	return Bracket{Lower: empty, Upper: idx.bins[straddle]}, nil
}

// pointEpsilon treats a bin narrower than this as a single-value bin,
// for equality-index construction where boundaries are exact observed
// values rather than equal-width cuts.
const pointEpsilon = 1e-9

// DivideCounts chooses a coarser partition of targetBins groups from
// fine-bin weights, so that group sums are as equal as possible. It
// runs in O(n) after an initial prefix-sum pass, and is used both for
// index rebinning and for adaptive histogram construction (spec §4.3,
// §6). The result holds at most targetBins+1 boundary indices into
// weights (fewer when the weights run out early), the first always 0
// and the last always len(weights).
func DivideCounts(weights []uint32, targetBins int) []int {
	if targetBins <= 0 || len(weights) == 0 {
		return []int{0, len(weights)}
	}
	prefix := make([]uint64, len(weights)+1)
	for i, w := range weights {
		prefix[i+1] = prefix[i] + uint64(w)
	}
	total := prefix[len(weights)]
	if total == 0 {
		return []int{0, len(weights)}
	}
	cuts := make([]int, 0, targetBins+1)
	cuts = append(cuts, 0)
	target := total / uint64(targetBins)
	if target == 0 {
		target = 1
	}
	start := 0
	for g := 1; g < targetBins && start < len(weights); g++ {
		goal := prefix[start] + target
		// Find smallest i > start with prefix[i] >= goal.
		i := sort.Search(len(weights)+1-start, func(k int) bool {
			return prefix[start+k] >= goal
		}) + start
		if i <= start {
			i = start + 1
		}
		if i > len(weights) {
			i = len(weights)
		}
		cuts = append(cuts, i)
		start = i
	}
	if cuts[len(cuts)-1] != len(weights) {
		cuts = append(cuts, len(weights))
	}
	return cuts
}
