package bitvec

// StepKind distinguishes the two shapes an IndexSet step can take,
// modelling spec §9's "enum step {Range(a,b), Scatter(&[u32])}": a
// compact range produced by a 1-fill, or a batch of scattered indices
// produced by a literal. This avoids both dynamic dispatch and a single
// "just give me indices" API that would silently materialise runs.
type StepKind int

const (
	RangeStep StepKind = iota
	ScatterStep
)

// Step is one unit of output from an IndexSet cursor.
type Step struct {
	Kind StepKind
	// Range holds [a, b) when Kind == RangeStep.
	Range [2]uint32
	// Indices holds up to w scattered one-bit positions when
	// Kind == ScatterStep. The slice is owned by the cursor and is
	// only valid until the next call to Next.
	Indices []uint32
}

// IndexSet is a forward, restartable cursor over the consecutive one-bit
// runs of a Bitvector, bridging the compressed form to mesh-geometry
// code without ever materialising the full hit list.
type IndexSet struct {
	bv      *Bitvector
	wordIdx int
	pos     uint32 // logical bit position at start of current word
	scratch []uint32
}

// FirstIndexSet returns a cursor positioned before the first word.
func (b *Bitvector) FirstIndexSet() *IndexSet {
	return &IndexSet{bv: b}
}

// Next advances the cursor and reports the next step, or false when
// exhausted. Zero-runs (0-fills and all-zero literals) are skipped
// silently; only one-bits are ever surfaced.
func (it *IndexSet) Next() (Step, bool) {
	for it.wordIdx < len(it.bv.words) {
		word := it.bv.words[it.wordIdx]
		last := it.wordIdx == len(it.bv.words)-1
		start := it.pos

		if isFill(word) {
			length := fillLength(word) * w
			it.pos += length
			it.wordIdx++
			if fillValue(word) {
				return Step{Kind: RangeStep, Range: [2]uint32{start, start + length}}, true
			}
			continue
		}

		active := w
		if last {
			active = int(it.bv.tail)
		}
		bits := literalBits(word)
		it.pos += uint32(active)
		it.wordIdx++
		if bits == 0 {
			continue
		}
		it.scratch = it.scratch[:0]
		for i := 0; i < active; i++ {
			if bits&(1<<uint(i)) != 0 {
				it.scratch = append(it.scratch, start+uint32(i))
			}
		}
		if len(it.scratch) == 0 {
			continue
		}
		return Step{Kind: ScatterStep, Indices: it.scratch}, true
	}
	return Step{}, false
}

// Reset rewinds the cursor to the beginning.
func (it *IndexSet) Reset() {
	it.wordIdx = 0
	it.pos = 0
}

// ToSlice materialises every set bit as a []uint32, for tests and small
// bitvectors. Not used on hot paths.
func (b *Bitvector) ToSlice() []uint32 {
	out := make([]uint32, 0, b.count)
	it := b.FirstIndexSet()
	for {
		step, ok := it.Next()
		if !ok {
			break
		}
		switch step.Kind {
		case RangeStep:
			for i := step.Range[0]; i < step.Range[1]; i++ {
				out = append(out, i)
			}
		case ScatterStep:
			out = append(out, step.Indices...)
		}
	}
	return out
}
