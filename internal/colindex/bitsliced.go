package colindex

import (
	"fmt"
	"sort"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
)

// BitSlicedIndex is the binary-encoded fanout variant of spec §4.3: each
// row's value is quantized to a k-bit code, and the index stores one
// bitmap per code bit (a "bit-sliced" or "bit-transposed" encoding)
// rather than one bitmap per bin. A range predicate is answered by a
// bit-by-bit prefix-comparison walk over the k planes instead of OR-ing
// a contiguous run of bins, trading a larger per-query op count (O(k)
// bitmap combines) for O(log n) planes instead of O(n) bins.
type BitSlicedIndex struct {
	planes     []*bitvec.Bitvector // planes[i] has bit set for rows whose code has bit i set
	boundaries []float64           // nCodes+1 entries, as in BinIndex
	size       uint32
	nCodes     int
}

// BitSlicedFanout is the number of distinct codes a BitSlicedIndex
// quantizes into; chosen so ceil(log2(fanout)) planes stay small.
const BitSlicedFanout = 256

// BuildBitSliced quantizes values into BitSlicedFanout equal-width
// codes and builds one bitmap per bit of the code.
func BuildBitSliced(values []float64) (Index, error) {
	n := uint32(len(values))
	nCodes := BitSlicedFanout
	boundaries := make([]float64, nCodes+1)
	if len(values) == 0 {
		boundaries[0], boundaries[nCodes] = 0, 1
	} else {
		lo, hi := values[0], values[0]
		for _, v := range values {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi == lo {
			hi = lo + 1
		}
		step := (hi - lo) / float64(nCodes)
		for i := 0; i <= nCodes; i++ {
			boundaries[i] = lo + step*float64(i)
		}
		boundaries[nCodes] = hi + step
	}
	codes := make([]int, len(values))
	for row, v := range values {
		c := sort.SearchFloat64s(boundaries[1:], v)
		if c >= nCodes {
			c = nCodes - 1
		}
		codes[row] = c
	}
	k := bitsFor(nCodes)
	planes := make([]*bitvec.Bitvector, k)
	for i := range planes {
		planes[i] = bitvec.New()
		planes[i].AppendRun(false, n)
	}
	for row, c := range codes {
		for i := 0; i < k; i++ {
			if c&(1<<uint(i)) != 0 {
				if err := planes[i].SetBit(uint32(row), true); err != nil {
					return nil, err
				}
			}
		}
	}
	return &BitSlicedIndex{planes: planes, boundaries: boundaries, size: n, nCodes: nCodes}, nil
}

func bitsFor(n int) int {
	k := 0
	for (1 << uint(k)) < n {
		k++
	}
	if k == 0 {
		k = 1
	}
	return k
}

func (idx *BitSlicedIndex) Size() uint32 { return idx.size }

func (idx *BitSlicedIndex) BinBoundaries() []float64 {
	out := make([]float64, len(idx.boundaries))
	copy(out, idx.boundaries)
	return out
}

// BinWeights reports the population of each code, by ANDing planes; it
// materializes 2^k temporary bitmaps only when explicitly requested, so
// callers driving adaptive histograms should prefer a coarser BinIndex.
func (idx *BitSlicedIndex) BinWeights() []uint32 {
	weights := make([]uint32, idx.nCodes)
	for code := 0; code < idx.nCodes; code++ {
		bm, err := idx.codeBitmap(code)
		if err != nil {
			continue
		}
		weights[code] = bm.Count()
	}
	return weights
}

func (idx *BitSlicedIndex) codeBitmap(code int) (*bitvec.Bitvector, error) {
	result := bitvec.New()
	result.AppendRun(true, idx.size)
	for i, plane := range idx.planes {
		var err error
		if code&(1<<uint(i)) != 0 {
			result, err = bitvec.LogicalAnd(result, plane)
		} else {
			result, err = bitvec.LogicalAnd(result, plane.LogicalNot())
		}
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (idx *BitSlicedIndex) codeOf(value float64) int {
	c := sort.SearchFloat64s(idx.boundaries[1:], value)
	if c >= idx.nCodes {
		c = idx.nCodes - 1
	}
	return c
}

// ltCode returns the exact bitmap of rows whose code is strictly less
// than t, via a most-significant-bit-first prefix walk: at each bit
// where t has a 1, rows that are 0 there (and equal to t on every
// higher bit) are definitely less than t and join the result; the
// "equal so far" mask then narrows to rows matching t on that bit too.
func (idx *BitSlicedIndex) ltCode(t int) (*bitvec.Bitvector, error) {
	k := len(idx.planes)
	eq := bitvec.New()
	eq.AppendRun(true, idx.size)
	result := bitvec.New()
	result.AppendRun(false, idx.size)
	for i := k - 1; i >= 0; i-- {
		plane := idx.planes[i]
		ti := (t >> uint(i)) & 1
		if ti == 1 {
			notPlane := plane.LogicalNot()
			lt, err := bitvec.LogicalAnd(eq, notPlane)
			if err != nil {
				return nil, err
			}
			result, err = bitvec.LogicalOr(result, lt)
			if err != nil {
				return nil, err
			}
			eq, err = bitvec.LogicalAnd(eq, plane)
			if err != nil {
				return nil, err
			}
		} else {
			var err error
			eq, err = bitvec.LogicalAnd(eq, plane.LogicalNot())
			if err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// Evaluate implements the Index contract over the quantized code
// domain. Code c holds values in (b_c, b_{c+1}] (code 0 also holds b_0),
// so for a one-sided predicate the codes below and above pred.Value's
// code are decided outright, while rows in pred.Value's own code go
// into upper only; LT and GE at b_0 are the cases that need no
// straddling code.
func (idx *BitSlicedIndex) Evaluate(pred RangePredicate) (Bracket, error) {
	t := idx.codeOf(pred.Value)
	onBoundary := idx.boundaries[t] == pred.Value

	switch pred.Op {
	case LT, LE:
		lt, err := idx.ltCode(t)
		if err != nil {
			return Bracket{}, err
		}
		if onBoundary && pred.Op == LT {
			return Bracket{Lower: lt, Upper: lt}, nil
		}
		codeBm, err := idx.codeBitmap(t)
		if err != nil {
			return Bracket{}, err
		}
		upper, err := bitvec.LogicalOr(lt, codeBm)
		if err != nil {
			return Bracket{}, err
		}
		return Bracket{Lower: lt, Upper: upper}, nil
	case GE, GT:
		lt, err := idx.ltCode(t)
		if err != nil {
			return Bracket{}, err
		}
		all := bitvec.New()
		all.AppendRun(true, idx.size)
		ge, err := bitvec.LogicalMinus(all, lt)
		if err != nil {
			return Bracket{}, err
		}
		if onBoundary && pred.Op == GE {
			return Bracket{Lower: ge, Upper: ge}, nil
		}
		codeBm, err := idx.codeBitmap(t)
		if err != nil {
			return Bracket{}, err
		}
		lower, err := bitvec.LogicalMinus(ge, codeBm)
		if err != nil {
			return Bracket{}, err
		}
		return Bracket{Lower: lower, Upper: ge}, nil
	case EQ:
		bm, err := idx.codeBitmap(t)
		if err != nil {
			return Bracket{}, err
		}
		if onBoundary && idx.boundaries[t+1]-idx.boundaries[t] <= pointEpsilon {
			return Bracket{Lower: bm, Upper: bm}, nil
		}
		empty := bitvec.New()
		empty.AppendRun(false, idx.size)
		return Bracket{Lower: empty, Upper: bm}, nil
	case NE:
		b, err := idx.Evaluate(RangePredicate{Op: EQ, Value: pred.Value})
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
		return Bracket{}, bitdexerr.New(bitdexerr.InvalidState, "colindex.BitSlicedIndex.Evaluate",
			fmt.Errorf("unknown op %d", pred.Op))
	}
}
