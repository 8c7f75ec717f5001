// Package query implements the predicate tree and evaluator of spec
// §4.4: leaf range predicates over column indexes, combined by
// AND/OR/XOR/NOT, with both a cheap (estimate) and exact (evaluate)
// evaluation mode and a query object state machine mirroring the
// original engine's UNINITIALIZED → ... → HITS_TRUNCATED lifecycle.
//
// Grounded on pkg/search's Constraint tree (query.go's LogicalConstraint
// and the lazy matcher-function-with-sync.Once caching in
// Constraint.matcher/genMatcher), generalized from a per-blob boolean
// match function to a per-bitmap bracket combination.
package query

import (
	"fmt"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
	"github.com/bitdex/bitdex/internal/colindex"
)

// LogicalOp names a predicate tree combinator.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
	OpXor
	OpNot
)

// ColumnIndex is the surface a predicate leaf needs from a column: an
// Index to estimate against, and the Evaluate entry point an exact scan
// falls back to when the index alone cannot resolve a leaf.
type ColumnIndex struct {
	Name  string
	Index colindex.Index
	// ExactEvaluate resolves rows in a given candidate set exactly,
	// for predicates the index can only bracket. It is optional; a
	// leaf without it can only ever produce a non-exact bracket.
	ExactEvaluate func(pred colindex.RangePredicate, candidates *bitvec.Bitvector) (*bitvec.Bitvector, error)
}

// Predicate is a node in the predicate tree: either a leaf range
// condition over one column, or a Logical combination of children.
type Predicate struct {
	Leaf    *LeafPredicate
	Logical *LogicalPredicate
}

// LeafPredicate is "column ⊙ value".
type LeafPredicate struct {
	Column string
	Op     colindex.Op
	Value  float64
}

// LogicalPredicate combines one (Not) or two (And/Or/Xor) children.
type LogicalPredicate struct {
	Op LogicalOp
	A  *Predicate
	B  *Predicate
}

// CheckValid mirrors pkg/search's Constraint.checkValid: it validates
// structure before any bitmap work is attempted.
func (p *Predicate) CheckValid() error {
	if p == nil {
		return bitdexerr.New(bitdexerr.InvalidState, "query.CheckValid", fmt.Errorf("nil predicate"))
	}
	if p.Leaf != nil && p.Logical != nil {
		return bitdexerr.New(bitdexerr.InvalidState, "query.CheckValid",
			fmt.Errorf("predicate has both Leaf and Logical set"))
	}
	if p.Leaf != nil {
		if p.Leaf.Column == "" {
			return bitdexerr.New(bitdexerr.InvalidState, "query.CheckValid", fmt.Errorf("leaf predicate missing column"))
		}
		return nil
	}
	if p.Logical == nil {
		return bitdexerr.New(bitdexerr.InvalidState, "query.CheckValid", fmt.Errorf("predicate has neither Leaf nor Logical"))
	}
	if p.Logical.A == nil {
		return bitdexerr.New(bitdexerr.InvalidState, "query.CheckValid", fmt.Errorf("logical predicate missing A"))
	}
	if err := p.Logical.A.CheckValid(); err != nil {
		return err
	}
	if p.Logical.Op == OpNot {
		return nil
	}
	if p.Logical.B == nil {
		return bitdexerr.New(bitdexerr.InvalidState, "query.CheckValid", fmt.Errorf("logical predicate missing B"))
	}
	return p.Logical.B.CheckValid()
}

// And, Or, Xor, Not are convenience constructors.
func And(a, b *Predicate) *Predicate { return &Predicate{Logical: &LogicalPredicate{Op: OpAnd, A: a, B: b}} }
func Or(a, b *Predicate) *Predicate  { return &Predicate{Logical: &LogicalPredicate{Op: OpOr, A: a, B: b}} }
func Xor(a, b *Predicate) *Predicate { return &Predicate{Logical: &LogicalPredicate{Op: OpXor, A: a, B: b}} }
func Not(a *Predicate) *Predicate    { return &Predicate{Logical: &LogicalPredicate{Op: OpNot, A: a}} }

// Leaf builds a leaf predicate.
func Leaf(column string, op colindex.Op, value float64) *Predicate {
	return &Predicate{Leaf: &LeafPredicate{Column: column, Op: op, Value: value}}
}

// cost is the estimated number of set bits a predicate's bracket will
// require combining, used to decide which child of an AND/OR to
// evaluate first (spec §4.4's cost-based reordering: AND takes the
// cheaper, more selective side first so an empty result short-circuits
// sooner, and OR takes the other side first so a full result does).
func cost(p *Predicate, cols map[string]*ColumnIndex) uint32 {
	if p.Leaf != nil {
		ci, ok := cols[p.Leaf.Column]
		if !ok || ci.Index == nil {
			return ^uint32(0)
		}
		b, err := ci.Index.Evaluate(colindex.RangePredicate{Op: p.Leaf.Op, Value: p.Leaf.Value})
		if err != nil {
			return ^uint32(0)
		}
		return b.Upper.Count()
	}
	ca := cost(p.Logical.A, cols)
	if p.Logical.Op == OpNot {
		return ca
	}
	cb := cost(p.Logical.B, cols)
	if ca < cb {
		return ca
	}
	return cb
}

// orderChildren returns a predicate's two children with the
// cheaper-to-evaluate one first.
func orderChildren(p *LogicalPredicate, cols map[string]*ColumnIndex) (first, second *Predicate) {
	if cost(p.A, cols) <= cost(p.B, cols) {
		return p.A, p.B
	}
	return p.B, p.A
}
