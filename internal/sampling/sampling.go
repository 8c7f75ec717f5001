// Package sampling provides a deterministic, seeded pseudo-random
// source for adaptive histogram bin selection (spec §4.3/§6): never
// used to decide exact evaluate() results, only to choose where to
// place histogram bin boundaries when no caller-supplied boundaries
// exist and scanning every distinct value would be wasteful.
//
// Grounded on _examples/original_source/src/twister.h's
// ibis::MersenneTwister: the standard MT19937 generator, reimplemented
// here rather than translated line-by-line (no vector<double>-style
// API, no C++ object layout).
package sampling

const (
	n          = 624
	m          = 397
	matrixA    = 0x9908b0df
	upperMask  = 0x80000000
	lowerMask  = 0x7fffffff
)

// Twister is a Mersenne Twister (MT19937) pseudo-random source, seeded
// deterministically so the same seed always yields the same sample —
// required for reproducible query plans across runs.
type Twister struct {
	state [n]uint32
	index int
}

// New seeds a Twister deterministically. Two Twisters built with the
// same seed produce identical output sequences.
func New(seed uint32) *Twister {
	t := &Twister{}
	t.state[0] = seed
	for i := 1; i < n; i++ {
		t.state[i] = 1812433253*(t.state[i-1]^(t.state[i-1]>>30)) + uint32(i)
	}
	t.index = n
	return t
}

func (t *Twister) generate() {
	for i := 0; i < n; i++ {
		y := (t.state[i] & upperMask) | (t.state[(i+1)%n] & lowerMask)
		next := t.state[(i+m)%n] ^ (y >> 1)
		if y&1 != 0 {
			next ^= matrixA
		}
		t.state[i] = next
	}
	t.index = 0
}

// NextUint32 returns the next raw 32-bit output.
func (t *Twister) NextUint32() uint32 {
	if t.index >= n {
		t.generate()
	}
	y := t.state[t.index]
	t.index++
	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// NextDouble returns a uniform value in [0, 1), matching
// MersenneTwister::nextDouble's scale factor.
func (t *Twister) NextDouble() float64 {
	return float64(t.NextUint32()) * 2.3283064365386962890625e-10
}

// NextIntn returns a uniform integer in [0, r).
func (t *Twister) NextIntn(r uint32) uint32 {
	return uint32(float64(r) * t.NextDouble())
}

// Permutation returns a uniformly random permutation of [0, size) via
// an in-place Fisher-Yates shuffle driven by the twister.
func (t *Twister) Permutation(size int) []int {
	perm := make([]int, size)
	for i := range perm {
		perm[i] = i
	}
	for i := size - 1; i > 0; i-- {
		j := int(t.NextIntn(uint32(i + 1)))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Sample returns k indices drawn without replacement from [0, size),
// via a partial Fisher-Yates shuffle: only the first k positions are
// swapped, though the index slice it shuffles spans all of size.
func (t *Twister) Sample(size, k int) []int {
	if k > size {
		k = size
	}
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + int(t.NextIntn(uint32(size-i)))
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := make([]int, k)
	copy(out, idx[:k])
	return out
}
