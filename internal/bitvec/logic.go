package bitvec

import (
	"fmt"

	"github.com/bitdex/bitdex/internal/bitdexerr"
)

// blockCursor walks a Bitvector one w-bit-aligned block at a time. Since
// every non-tail word spans an integer number of full w-bit blocks
// starting at bit 0, and tailActive is a deterministic function of Size
// (size%w, so 0 whenever size is a multiple of w), two
// bitvectors of equal size always agree on where their final partial
// block begins — co-traversal never needs to split a fill mid-block.
type blockCursor struct {
	bv          *Bitvector
	wordIdx     int
	blocksInCur uint32 // remaining full blocks represented by the current word
	curIsFill   bool
	curValue    bool
	curLiteral  uint32
	curIsTail   bool
}

func newBlockCursor(bv *Bitvector) *blockCursor {
	c := &blockCursor{bv: bv}
	c.loadWord()
	return c
}

func (c *blockCursor) loadWord() {
	if c.wordIdx >= len(c.bv.words) {
		c.blocksInCur = 0
		return
	}
	word := c.bv.words[c.wordIdx]
	c.curIsTail = c.wordIdx == len(c.bv.words)-1
	if isFill(word) {
		c.curIsFill = true
		c.curValue = fillValue(word)
		c.blocksInCur = fillLength(word)
	} else {
		c.curIsFill = false
		c.curLiteral = literalBits(word)
		c.blocksInCur = 1
	}
}

func (c *blockCursor) done() bool {
	return c.wordIdx >= len(c.bv.words)
}

// activeBits returns how many bits of the *current* block are live
// (w, unless this is the tail word).
func (c *blockCursor) activeBits() uint32 {
	if c.curIsTail && !c.curIsFill {
		return c.bv.tail
	}
	return w
}

// advance consumes n full blocks from the current word (n must be <=
// blocksInCur, and if the current word is a literal, n must be 1).
func (c *blockCursor) advance(n uint32) {
	c.blocksInCur -= n
	if c.blocksInCur == 0 {
		c.wordIdx++
		c.loadWord()
	}
}

// combine runs the shared co-traversal for AND/OR/XOR/MINUS, parameterised
// by how to combine two equal-length uniform runs and two literal blocks.
func combine(op string, a, b *Bitvector, fillOp func(va, vb bool) bool, bitOp func(wa, wb uint32) uint32) (*Bitvector, error) {
	if a.Size() != b.Size() {
		return nil, bitdexerr.New(bitdexerr.SizeMismatch, "bitvec."+op,
			fmt.Errorf("sizes %d and %d differ", a.Size(), b.Size()))
	}
	out := New()
	ca, cb := newBlockCursor(a), newBlockCursor(b)
	for !ca.done() && !cb.done() {
		if !ca.curIsFill || !cb.curIsFill {
			// At least one side is a literal block: combine bit by bit
			// over this single w-bit-aligned block.
			litA := blockLiteral(ca)
			litB := blockLiteral(cb)
			active := ca.activeBits()
			if cb.activeBits() < active {
				active = cb.activeBits()
			}
			result := bitOp(litA, litB)
			for i := uint32(0); i < active; i++ {
				out.AppendBit(result&(1<<i) != 0)
			}
			ca.advance(1)
			cb.advance(1)
			continue
		}
		// Both sides are fills: emit a uniform run of min(remaining) blocks.
		n := ca.blocksInCur
		if cb.blocksInCur < n {
			n = cb.blocksInCur
		}
		value := fillOp(ca.curValue, cb.curValue)
		out.AppendRun(value, n*w)
		ca.advance(n)
		cb.advance(n)
	}
	return out, nil
}

// blockLiteral returns the current block's w bits as a literal-style
// payload, whether the underlying word is itself a fill (uniform) or a
// genuine literal.
func blockLiteral(c *blockCursor) uint32 {
	if c.curIsFill {
		return literalFor(c.curValue)
	}
	return c.curLiteral
}

// LogicalAnd returns a new bitvector that is the bitwise AND of a and b.
func LogicalAnd(a, b *Bitvector) (*Bitvector, error) {
	return combine("LogicalAnd", a, b,
		func(va, vb bool) bool { return va && vb },
		func(wa, wb uint32) uint32 { return wa & wb },
	)
}

// LogicalOr returns a new bitvector that is the bitwise OR of a and b.
func LogicalOr(a, b *Bitvector) (*Bitvector, error) {
	return combine("LogicalOr", a, b,
		func(va, vb bool) bool { return va || vb },
		func(wa, wb uint32) uint32 { return wa | wb },
	)
}

// LogicalXor returns a new bitvector that is the bitwise XOR of a and b.
func LogicalXor(a, b *Bitvector) (*Bitvector, error) {
	return combine("LogicalXor", a, b,
		func(va, vb bool) bool { return va != vb },
		func(wa, wb uint32) uint32 { return wa ^ wb },
	)
}

// LogicalMinus returns a new bitvector equal to a AND NOT b ("a minus b").
func LogicalMinus(a, b *Bitvector) (*Bitvector, error) {
	return combine("LogicalMinus", a, b,
		func(va, vb bool) bool { return va && !vb },
		func(wa, wb uint32) uint32 { return wa &^ wb },
	)
}

// LogicalNot returns the complement of a.
func (b *Bitvector) LogicalNot() *Bitvector {
	out := New()
	for idx, word := range b.words {
		last := idx == len(b.words)-1
		if isFill(word) {
			out.AppendRun(!fillValue(word), fillLength(word)*w)
			continue
		}
		active := w
		if last {
			active = int(b.tail)
		}
		bits := ^literalBits(word) & literalMask
		for i := 0; i < active; i++ {
			out.AppendBit(bits&(1<<uint(i)) != 0)
		}
	}
	return out
}
