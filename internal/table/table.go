// Package table assembles the pieces the rest of the core only defines
// in isolation — columns, their per-column indexes, a metadata store,
// and admission control — into the single object a driver program
// builds one of and runs queries against. Grounded on
// pkg/search.Handler: a handler that bundles an index, an owner, and a
// websocket hub behind one constructor, generalized here to bundle a
// table's columns, its colindex set, a partstore.KeyValue, and a
// querysvc.Hub.
package table

import (
	"fmt"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
	"github.com/bitdex/bitdex/internal/colindex"
	"github.com/bitdex/bitdex/internal/column"
	"github.com/bitdex/bitdex/internal/config"
	"github.com/bitdex/bitdex/internal/logging"
	"github.com/bitdex/bitdex/internal/partstore"
	"github.com/bitdex/bitdex/internal/query"
)

// columnCountKey is the partstore key recording how many columns a
// table was opened with, a minimal existence check that also exercises
// partstore as a metadata store rather than leaving it wired but idle.
const columnCountKey = "bitdex:column_count"

// Table is an opened, queryable set of columns: one colindex.Index per
// numeric column (built eagerly at Open time, of the variant named by
// Open's indexVariant argument, "range" if empty), a partstore
// backing metadata, and admission control shared by every query it
// hands out.
type Table struct {
	columns  map[string]*column.Column
	cols     map[string]*query.ColumnIndex
	size     uint32
	store    partstore.KeyValue
	admitter query.Admitter
	log      *logging.Logger
}

// Open builds a Table over columns, constructing a colindex.Index per
// column (variant chosen by indexVariant, or "range" if empty) and
// recording the table's column count in store.
func Open(cfg config.TableConfig, store partstore.KeyValue, columns []*column.Column, indexVariant string, log *logging.Logger) (*Table, error) {
	if len(columns) == 0 {
		return nil, bitdexerr.New(bitdexerr.InvalidState, "table.Open", fmt.Errorf("no columns"))
	}
	if indexVariant == "" {
		indexVariant = "range"
	}
	size := columns[0].Len()
	byName := make(map[string]*column.Column, len(columns))
	cols := make(map[string]*query.ColumnIndex, len(columns))
	for _, c := range columns {
		if c.Len() != size {
			return nil, bitdexerr.New(bitdexerr.SizeMismatch, "table.Open",
				fmt.Errorf("column %q has %d rows, want %d", c.Name(), c.Len(), size))
		}
		byName[c.Name()] = c
		if !c.Kind().IsNumeric() {
			continue
		}
		raw, err := c.RawValues()
		if err != nil {
			return nil, err
		}
		values, err := raw.AsFloat64()
		if err != nil {
			return nil, err
		}
		idx, err := colindex.Build(indexVariant, values)
		if err != nil {
			return nil, err
		}
		col := c
		cols[c.Name()] = &query.ColumnIndex{
			Name:  c.Name(),
			Index: idx,
			ExactEvaluate: func(pred colindex.RangePredicate, candidates *bitvec.Bitvector) (*bitvec.Bitvector, error) {
				return exactEvaluate(col, pred, candidates)
			},
		}
	}
	if store != nil {
		if err := store.Set(columnCountKey, fmt.Sprintf("%d", len(columns))); err != nil {
			return nil, bitdexerr.New(bitdexerr.IO, "table.Open", err)
		}
	}
	admitter := query.NewLimitedAdmitter(cfg.AdmissionQPS, cfg.AdmissionBurst)
	return &Table{columns: byName, cols: cols, size: size, store: store, admitter: admitter, log: log}, nil
}

// Column returns the named column reader, for callers (e.g. a text or
// non-numeric leaf) that need to bypass the predicate/index path.
func (t *Table) Column(name string) (*column.Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// Size returns the table's row count.
func (t *Table) Size() uint32 { return t.size }

// ColumnFloats projects a numeric column's full value range to
// float64, the shape internal/histogram's builders consume.
func (t *Table) ColumnFloats(name string) ([]float64, error) {
	c, ok := t.columns[name]
	if !ok {
		return nil, bitdexerr.New(bitdexerr.UnknownColumn, "table.ColumnFloats", fmt.Errorf("column %q", name))
	}
	raw, err := c.RawValues()
	if err != nil {
		return nil, err
	}
	return raw.AsFloat64()
}

// NewQuery builds a Query bound to this table's columns and admission
// gate, ready for SetWhereClause.
func (t *Table) NewQuery() *query.Query {
	return query.New(t.cols, t.size, t.admitter, t.log)
}

// exactEvaluate resolves a leaf predicate exactly over candidates by
// scanning the underlying column, for rows an index bracket left
// undetermined.
func exactEvaluate(c *column.Column, pred colindex.RangePredicate, candidates *bitvec.Bitvector) (*bitvec.Bitvector, error) {
	values, err := c.SelectValues(candidates)
	if err != nil {
		return nil, err
	}
	floats, err := values.AsFloat64()
	if err != nil {
		return nil, err
	}
	out := bitvec.New()
	out.AppendRun(false, candidates.Size())
	it := candidates.FirstIndexSet()
	i := 0
	apply := func(pos uint32) error {
		v := floats[i]
		i++
		if matches(pred, v) {
			return out.SetBit(pos, true)
		}
		return nil
	}
	for {
		step, ok := it.Next()
		if !ok {
			break
		}
		if step.Kind == bitvec.RangeStep {
			for pos := step.Range[0]; pos < step.Range[1]; pos++ {
				if err := apply(pos); err != nil {
					return nil, err
				}
			}
		} else {
			for _, pos := range step.Indices {
				if err := apply(pos); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func matches(pred colindex.RangePredicate, v float64) bool {
	switch pred.Op {
	case colindex.LT:
		return v < pred.Value
	case colindex.LE:
		return v <= pred.Value
	case colindex.EQ:
		return v == pred.Value
	case colindex.GE:
		return v >= pred.Value
	case colindex.GT:
		return v > pred.Value
	case colindex.NE:
		return v != pred.Value
	default:
		return false
	}
}
