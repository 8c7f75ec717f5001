package query

import (
	"fmt"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
	"github.com/bitdex/bitdex/internal/colindex"
)

// Bracket is the predicate-tree-level (lower, upper) pair: lower rows
// definitely satisfy the whole predicate, upper rows possibly do.
type Bracket = colindex.Bracket

// Estimate computes a predicate's bracket using only index lookups, no
// scanning — spec §4.4's cheap estimate() mode, mirroring
// ibis::query::estimate. size is the row count of the table the
// predicate runs over.
func Estimate(p *Predicate, cols map[string]*ColumnIndex, size uint32) (Bracket, error) {
	if p.Leaf != nil {
		ci, ok := cols[p.Leaf.Column]
		if !ok {
			return Bracket{}, bitdexerr.New(bitdexerr.UnknownColumn, "query.Estimate", fmt.Errorf("column %q", p.Leaf.Column))
		}
		if ci.Index == nil {
			return Bracket{}, bitdexerr.New(bitdexerr.NoIndex, "query.Estimate", fmt.Errorf("column %q has no index", p.Leaf.Column))
		}
		return ci.Index.Evaluate(colindex.RangePredicate{Op: p.Leaf.Op, Value: p.Leaf.Value})
	}
	lg := p.Logical
	switch lg.Op {
	case OpNot:
		a, err := Estimate(lg.A, cols, size)
		if err != nil {
			return Bracket{}, err
		}
		return Bracket{Lower: a.Upper.LogicalNot(), Upper: a.Lower.LogicalNot()}, nil
	case OpAnd:
		first, second := orderChildren(lg, cols)
		a, err := Estimate(first, cols, size)
		if err != nil {
			return Bracket{}, err
		}
		if a.Upper.Count() == 0 {
			// Short-circuit: nothing in a can be true, so AND is empty
			// regardless of the other side.
			return a, nil
		}
		b, err := Estimate(second, cols, size)
		if err != nil {
			return Bracket{}, err
		}
		lower, err := bitvec.LogicalAnd(a.Lower, b.Lower)
		if err != nil {
			return Bracket{}, err
		}
		upper, err := bitvec.LogicalAnd(a.Upper, b.Upper)
		if err != nil {
			return Bracket{}, err
		}
		return Bracket{Lower: lower, Upper: upper}, nil
	case OpOr:
		// The less selective child goes first: it is the likelier one
		// to cover every row and trigger the short-circuit below.
		second, first := orderChildren(lg, cols)
		a, err := Estimate(first, cols, size)
		if err != nil {
			return Bracket{}, err
		}
		if a.Lower.Count() == size {
			// Short-circuit: a already covers every row.
			return a, nil
		}
		b, err := Estimate(second, cols, size)
		if err != nil {
			return Bracket{}, err
		}
		lower, err := bitvec.LogicalOr(a.Lower, b.Lower)
		if err != nil {
			return Bracket{}, err
		}
		upper, err := bitvec.LogicalOr(a.Upper, b.Upper)
		if err != nil {
			return Bracket{}, err
		}
		return Bracket{Lower: lower, Upper: upper}, nil
	case OpXor:
		a, err := Estimate(lg.A, cols, size)
		if err != nil {
			return Bracket{}, err
		}
		b, err := Estimate(lg.B, cols, size)
		if err != nil {
			return Bracket{}, err
		}
		notUa, notUb := a.Upper.LogicalNot(), b.Upper.LogicalNot()
		t1, err := bitvec.LogicalAnd(a.Lower, notUb)
		if err != nil {
			return Bracket{}, err
		}
		t2, err := bitvec.LogicalAnd(notUa, b.Lower)
		if err != nil {
			return Bracket{}, err
		}
		lower, err := bitvec.LogicalOr(t1, t2)
		if err != nil {
			return Bracket{}, err
		}
		bothTrue, err := bitvec.LogicalAnd(a.Lower, b.Lower)
		if err != nil {
			return Bracket{}, err
		}
		bothFalse, err := bitvec.LogicalAnd(notUa, notUb)
		if err != nil {
			return Bracket{}, err
		}
		definitelySame, err := bitvec.LogicalOr(bothTrue, bothFalse)
		if err != nil {
			return Bracket{}, err
		}
		return Bracket{Lower: lower, Upper: definitelySame.LogicalNot()}, nil
	default:
		return Bracket{}, bitdexerr.New(bitdexerr.InvalidState, "query.Estimate", fmt.Errorf("unknown logical op %d", lg.Op))
	}
}

// Evaluate computes the exact hit set, spec §4.4's evaluate() mode: for
// each leaf it takes the index bracket (as Estimate does), resolves the
// undetermined (upper &^ lower) rows via that column's ExactEvaluate,
// and combines children with exact boolean ops once both sides are exact —
// avoiding a full sequential scan whenever the bracket already
// narrowed most rows.
func Evaluate(p *Predicate, cols map[string]*ColumnIndex, size uint32) (*bitvec.Bitvector, error) {
	if p.Leaf != nil {
		return evaluateLeaf(p.Leaf, cols, size)
	}
	lg := p.Logical
	a, err := Evaluate(lg.A, cols, size)
	if err != nil {
		return nil, err
	}
	if lg.Op == OpNot {
		return a.LogicalNot(), nil
	}
	b, err := Evaluate(lg.B, cols, size)
	if err != nil {
		return nil, err
	}
	switch lg.Op {
	case OpAnd:
		return bitvec.LogicalAnd(a, b)
	case OpOr:
		return bitvec.LogicalOr(a, b)
	case OpXor:
		return bitvec.LogicalXor(a, b)
	default:
		return nil, bitdexerr.New(bitdexerr.InvalidState, "query.Evaluate", fmt.Errorf("unknown logical op %d", lg.Op))
	}
}

func evaluateLeaf(leaf *LeafPredicate, cols map[string]*ColumnIndex, size uint32) (*bitvec.Bitvector, error) {
	ci, ok := cols[leaf.Column]
	if !ok {
		return nil, bitdexerr.New(bitdexerr.UnknownColumn, "query.Evaluate", fmt.Errorf("column %q", leaf.Column))
	}
	if ci.Index == nil {
		return nil, bitdexerr.New(bitdexerr.NoIndex, "query.Evaluate", fmt.Errorf("column %q has no index", leaf.Column))
	}
	pred := colindex.RangePredicate{Op: leaf.Op, Value: leaf.Value}
	bracket, err := ci.Index.Evaluate(pred)
	if err != nil {
		return nil, err
	}
	if bracket.Exact() {
		return bracket.Lower, nil
	}
	if ci.ExactEvaluate == nil {
		return nil, bitdexerr.New(bitdexerr.NoIndex, "query.Evaluate",
			fmt.Errorf("column %q index is approximate and has no scan fallback", leaf.Column))
	}
	straddle, err := bitvec.LogicalMinus(bracket.Upper, bracket.Lower)
	if err != nil {
		return nil, err
	}
	resolved, err := ci.ExactEvaluate(pred, straddle)
	if err != nil {
		return nil, err
	}
	return bitvec.LogicalOr(bracket.Lower, resolved)
}
