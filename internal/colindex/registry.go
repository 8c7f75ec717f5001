package colindex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
	"github.com/bitdex/bitdex/internal/sampling"
)

// sampleThreshold is the column length above which equal-width bin
// boundaries are chosen from a sample instead of a full scan. Below
// it, a full min/max scan is already cheap enough that sampling only
// adds variance for no benefit.
const sampleThreshold = 100_000

// samplingSeed is fixed rather than time-derived so bin placement, and
// therefore which values fall in which histogram bucket, stays stable
// across rebuilds of the same column.
const samplingSeed = 0x62697464 // "bitd"

// BoundsOf returns the min and max of values, scanning only a
// deterministic sample of it when values is large enough that a full
// scan would dominate index build time. Shared by internal/histogram's
// adaptive bin placement.
func BoundsOf(values []float64) (lo, hi float64) { return boundsOf(values) }

func boundsOf(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	src := values
	if len(values) > sampleThreshold {
		t := sampling.New(samplingSeed)
		sampleSize := len(values) / 20
		idx := t.Sample(len(values), sampleSize)
		src = make([]float64, len(idx))
		for i, j := range idx {
			src[i] = values[j]
		}
	}
	lo, hi = src[0], src[0]
	for _, v := range src {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Builder constructs an Index variant from a column's observed values.
// Values holds one float64 per row (a caller-side projection of the
// column, produced by internal/column.Values.AsFloat64).
type Builder func(values []float64) (Index, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Builder{}
)

// RegisterVariant adds a named Index builder, mirroring pkg/sorted's
// RegisterKeyValue constructor registry: new bin layouts plug in here
// without the evaluator needing to know their internals.
func RegisterVariant(name string, b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = b
}

// Build looks up a registered variant by name and invokes it.
func Build(name string, values []float64) (Index, error) {
	registryMu.Lock()
	b, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, bitdexerr.New(bitdexerr.InvalidState, "colindex.Build",
			fmt.Errorf("unknown index variant %q", name))
	}
	return b(values)
}

func init() {
	RegisterVariant("equality", BuildEquality)
	RegisterVariant("range", BuildEqualWidthRange)
	RegisterVariant("interval", BuildInterval)
	RegisterVariant("binary", BuildBitSliced)
}

// BuildEquality builds an exact, per-distinct-value BinIndex: one bin
// per unique observed value. Best for low-cardinality categorical
// columns, where every predicate reduces to a handful of bin lookups.
func BuildEquality(values []float64) (Index, error) {
	distinct := distinctSorted(values)
	n := uint32(len(values))
	bins := make([]*bitvec.Bitvector, len(distinct))
	for i := range bins {
		bins[i] = bitvec.New()
		bins[i].AppendRun(false, n)
	}
	for row, v := range values {
		i := sort.SearchFloat64s(distinct, v)
		if err := bins[i].SetBit(uint32(row), true); err != nil {
			return nil, err
		}
	}
	boundaries := make([]float64, len(distinct)+1)
	copy(boundaries, distinct)
	if len(distinct) > 0 {
		boundaries[len(distinct)] = distinct[len(distinct)-1] + 1
	} else {
		boundaries[0] = 0
	}
	return NewBinIndex(boundaries, bins, n)
}

// BuildEqualWidthRange builds an approximate range-query BinIndex over
// DefaultFanout (8) equal-width bins spanning the observed [min, max].
func BuildEqualWidthRange(values []float64) (Index, error) {
	return buildEqualWidth(values, DefaultFanout)
}

// DefaultFanout is the fixed bin count new range indexes are built
// with absent an explicit target (spec's adaptive-histogram fan-out,
// also reused here as the default column-index granularity).
const DefaultFanout = 8

func buildEqualWidth(values []float64, nBins int) (Index, error) {
	n := uint32(len(values))
	if nBins < 1 {
		nBins = 1
	}
	if len(values) == 0 {
		boundaries := []float64{0, 1}
		bins := []*bitvec.Bitvector{bitvec.New()}
		return NewBinIndex(boundaries, bins, n)
	}
	lo, hi := boundsOf(values)
	if hi == lo {
		hi = lo + 1
	}
	boundaries := make([]float64, nBins+1)
	step := (hi - lo) / float64(nBins)
	for i := 0; i <= nBins; i++ {
		boundaries[i] = lo + step*float64(i)
	}
	boundaries[nBins] = hi + step // keep the top boundary strictly > max observed value
	bins := make([]*bitvec.Bitvector, nBins)
	for i := range bins {
		bins[i] = bitvec.New()
		bins[i].AppendRun(false, n)
	}
	for row, v := range values {
		// First bin whose upper boundary is > v: bins are [b_i, b_{i+1}).
		bi := sort.Search(nBins, func(i int) bool { return boundaries[i+1] > v })
		if bi >= nBins {
			bi = nBins - 1
		}
		if err := bins[bi].SetBit(uint32(row), true); err != nil {
			return nil, err
		}
	}
	return NewBinIndex(boundaries, bins, n)
}

// BuildInterval builds a coarse multi-bin-per-group BinIndex: the same
// representation as range, but grouped via DivideCounts so each group
// holds roughly equal weight rather than equal width. Useful for
// skewed distributions where equal-width bins would be mostly empty.
func BuildInterval(values []float64) (Index, error) {
	fine, err := buildEqualWidth(values, DefaultFanout*DefaultFanout)
	if err != nil {
		return nil, err
	}
	bin := fine.(*BinIndex)
	cuts := DivideCounts(bin.BinWeights(), DefaultFanout)
	n := bin.size
	groupedBoundaries := make([]float64, 0, len(cuts))
	groupedBins := make([]*bitvec.Bitvector, 0, len(cuts)-1)
	for i := 0; i < len(cuts)-1; i++ {
		lo, hi := cuts[i], cuts[i+1]
		groupedBoundaries = append(groupedBoundaries, bin.boundaries[lo])
		merged, err := bin.orBins(lo, hi)
		if err != nil {
			return nil, err
		}
		groupedBins = append(groupedBins, merged)
	}
	groupedBoundaries = append(groupedBoundaries, bin.boundaries[len(bin.boundaries)-1])
	return NewBinIndex(groupedBoundaries, groupedBins, n)
}

func distinctSorted(values []float64) []float64 {
	seen := map[float64]struct{}{}
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
