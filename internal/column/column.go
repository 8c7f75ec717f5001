// Package column implements the typed, positionally-indexed column
// reader of spec §4.2: values gated by a bitvec.Bitvector mask, a null
// mask, cached extrema, and a scan-vs-seek access mode chosen from mask
// density.
//
// Grounded on pkg/index/corpus.go's "build under a read lock, cache
// under sync.Once-like guards" style, and pkg/blobserver's positional
// (io.ReaderAt) read pattern — here applied to fixed-width row ranges
// instead of blob byte ranges.
package column

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
)

// Kind enumerates the primitive column element types of spec §3.
type Kind int

const (
	Int8 Kind = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Category // short fixed-length string
	Text     // variable-length text
)

func (k Kind) IsNumeric() bool {
	return k >= Int8 && k <= Float64
}

func (k Kind) width() int { return k.Width() }

// Width returns the fixed-width record size in bytes for a numeric or
// Category kind; Text has no fixed width and returns 0.
func (k Kind) Width() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// Backend is the positional byte source a Column reads fixed-width
// records from: a raw-values file per spec §6, or an in-memory buffer
// for tests and construction.
type Backend interface {
	io.ReaderAt
}

// MemBackend is a Backend over an in-memory byte slice.
type MemBackend struct{ Data []byte }

func (m MemBackend) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off) > len(m.Data) {
		return 0, io.EOF
	}
	n := copy(p, m.Data[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// Values is the tagged result of a typed read: exactly one of the
// slices below is populated, selected by Kind, matching spec §9's
// "tagged variant plus generic inner routine" note.
type Values struct {
	Kind Kind
	I8   []int8
	I16  []int16
	I32  []int32
	I64  []int64
	U8   []uint8
	U16  []uint16
	U32  []uint32
	U64  []uint64
	F32  []float32
	F64  []float64
	Str  []string
}

// Len returns the number of values held, regardless of Kind.
func (v Values) Len() int {
	switch v.Kind {
	case Int8:
		return len(v.I8)
	case Int16:
		return len(v.I16)
	case Int32:
		return len(v.I32)
	case Int64:
		return len(v.I64)
	case Uint8:
		return len(v.U8)
	case Uint16:
		return len(v.U16)
	case Uint32:
		return len(v.U32)
	case Uint64:
		return len(v.U64)
	case Float32:
		return len(v.F32)
	case Float64:
		return len(v.F64)
	case Category, Text:
		return len(v.Str)
	}
	return 0
}

// AsFloat64 widens numeric values to float64 for arithmetic-leaf
// evaluation and histogram binning. Returns an error for non-numeric
// kinds.
func (v Values) AsFloat64() ([]float64, error) {
	out := make([]float64, v.Len())
	switch v.Kind {
	case Int8:
		for i, x := range v.I8 {
			out[i] = float64(x)
		}
	case Int16:
		for i, x := range v.I16 {
			out[i] = float64(x)
		}
	case Int32:
		for i, x := range v.I32 {
			out[i] = float64(x)
		}
	case Int64:
		for i, x := range v.I64 {
			out[i] = float64(x)
		}
	case Uint8:
		for i, x := range v.U8 {
			out[i] = float64(x)
		}
	case Uint16:
		for i, x := range v.U16 {
			out[i] = float64(x)
		}
	case Uint32:
		for i, x := range v.U32 {
			out[i] = float64(x)
		}
	case Uint64:
		for i, x := range v.U64 {
			out[i] = float64(x)
		}
	case Float32:
		for i, x := range v.F32 {
			out[i] = float64(x)
		}
	case Float64:
		copy(out, v.F64)
	default:
		return nil, bitdexerr.New(bitdexerr.TypeMismatch, "column.AsFloat64",
			fmt.Errorf("kind %d is not numeric", v.Kind))
	}
	return out, nil
}

// Column is a read-only, positionally-indexed view over one partition
// column. The partition owns Columns; a read lock on the partition
// extends the lifetime of any Bitvectors or Values a Column returns.
type Column struct {
	name     string
	kind     Kind
	n        uint32
	backend  Backend // fixed-width records, unused for Text
	nullMask *bitvec.Bitvector

	// Text-only: per-row byte offsets into blob (n+1 entries) and the
	// backing blob reader.
	textOffsets []int64
	textBlob    Backend

	// DensityThreshold selects bulk-read-and-filter over positional
	// seeks; see spec §4.2.
	DensityThreshold float64

	mu        sync.Mutex
	haveMin   bool
	haveMax   bool
	minCached float64
	maxCached float64
	group     singleflight.Group
}

// NewFixedWidth constructs a Column over a fixed-width numeric or
// category backend.
func NewFixedWidth(name string, kind Kind, n uint32, backend Backend, nullMask *bitvec.Bitvector) *Column {
	return &Column{name: name, kind: kind, n: n, backend: backend, nullMask: nullMask, DensityThreshold: 0.3}
}

// NewText constructs a Column over variable-length text storage: n+1
// offsets into a blob, row i spanning [offsets[i], offsets[i+1]).
func NewText(name string, n uint32, offsets []int64, blob Backend, nullMask *bitvec.Bitvector) *Column {
	return &Column{name: name, kind: Text, n: n, textOffsets: offsets, textBlob: blob, nullMask: nullMask, DensityThreshold: 0.3}
}

func (c *Column) Name() string   { return c.name }
func (c *Column) Kind() Kind     { return c.kind }
func (c *Column) Len() uint32    { return c.n }
func (c *Column) NullMask() *bitvec.Bitvector {
	return c.nullMask
}

// accessMode reports whether mask is dense enough to prefer a bulk
// read-and-filter over per-run positional I/O. Affects performance
// only; both modes return identical data (spec §4.2).
func (c *Column) accessMode(mask *bitvec.Bitvector) bool /* bulk */ {
	if mask.Size() == 0 {
		return false
	}
	density := float64(mask.Count()) / float64(mask.Size())
	return density > c.DensityThreshold
}

// SelectValues reads only the positions set in mask, in ascending
// position order. |result| == mask.Count().
func (c *Column) SelectValues(mask *bitvec.Bitvector) (Values, error) {
	if mask.Size() != c.n {
		return Values{}, bitdexerr.New(bitdexerr.SizeMismatch, "column.SelectValues",
			fmt.Errorf("mask size %d != column length %d", mask.Size(), c.n))
	}
	if c.kind == Text {
		return c.selectText(mask)
	}
	width := c.kind.width()
	bulk := c.accessMode(mask)
	switch c.kind {
	case Int8:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeInt8)
		return Values{Kind: c.kind, I8: vals}, err
	case Int16:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeInt16)
		return Values{Kind: c.kind, I16: vals}, err
	case Int32:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeInt32)
		return Values{Kind: c.kind, I32: vals}, err
	case Int64:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeInt64)
		return Values{Kind: c.kind, I64: vals}, err
	case Uint8:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeUint8)
		return Values{Kind: c.kind, U8: vals}, err
	case Uint16:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeUint16)
		return Values{Kind: c.kind, U16: vals}, err
	case Uint32:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeUint32)
		return Values{Kind: c.kind, U32: vals}, err
	case Uint64:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeUint64)
		return Values{Kind: c.kind, U64: vals}, err
	case Float32:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeFloat32)
		return Values{Kind: c.kind, F32: vals}, err
	case Float64:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeFloat64)
		return Values{Kind: c.kind, F64: vals}, err
	case Category:
		vals, err := selectFixed(c.backend, mask, width, bulk, decodeCategory(width))
		return Values{Kind: c.kind, Str: vals}, err
	default:
		return Values{}, bitdexerr.New(bitdexerr.TypeMismatch, "column.SelectValues",
			fmt.Errorf("unknown kind %d", c.kind))
	}
}

// RawValues returns all values of the partition in position order,
// intended for callers (e.g. an adaptive histogram builder) that will
// iterate many masks over the same column.
func (c *Column) RawValues() (Values, error) {
	all := bitvec.New()
	all.AppendRun(true, c.n)
	return c.SelectValues(all)
}

func (c *Column) selectText(mask *bitvec.Bitvector) (Values, error) {
	out := make([]string, 0, mask.Count())
	it := mask.FirstIndexSet()
	for {
		step, ok := it.Next()
		if !ok {
			break
		}
		var idxs []uint32
		switch step.Kind {
		case bitvec.RangeStep:
			for i := step.Range[0]; i < step.Range[1]; i++ {
				idxs = append(idxs, i)
			}
		case bitvec.ScatterStep:
			idxs = step.Indices
		}
		for _, idx := range idxs {
			lo, hi := c.textOffsets[idx], c.textOffsets[idx+1]
			buf := make([]byte, hi-lo)
			if _, err := c.textBlob.ReadAt(buf, lo); err != nil {
				return Values{}, bitdexerr.New(bitdexerr.IO, "column.selectText", err)
			}
			out = append(out, string(buf))
		}
	}
	return Values{Kind: Text, Str: out}, nil
}

// ActualMin returns the cached observed minimum for a numeric column,
// computing it on first call under a lock. Concurrent first-callers
// collapse onto one computation via singleflight.
func (c *Column) ActualMin() (float64, error) { return c.extrema(true) }

// ActualMax returns the cached observed maximum for a numeric column.
func (c *Column) ActualMax() (float64, error) { return c.extrema(false) }

func (c *Column) extrema(wantMin bool) (float64, error) {
	if !c.kind.IsNumeric() {
		return 0, bitdexerr.New(bitdexerr.TypeMismatch, "column.extrema",
			fmt.Errorf("column %q is not numeric", c.name))
	}
	c.mu.Lock()
	if wantMin && c.haveMin {
		v := c.minCached
		c.mu.Unlock()
		return v, nil
	}
	if !wantMin && c.haveMax {
		v := c.maxCached
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	res, err, _ := c.group.Do("extrema", func() (any, error) {
		vals, err := c.RawValues()
		if err != nil {
			return nil, err
		}
		fs, err := vals.AsFloat64()
		if err != nil {
			return nil, err
		}
		mn, mx := math.Inf(1), math.Inf(-1)
		var defined []bool
		if c.nullMask != nil {
			defined = c.nullMask.ToBits()
		}
		for i, f := range fs {
			if defined != nil && i < len(defined) && !defined[i] {
				continue
			}
			if f < mn {
				mn = f
			}
			if f > mx {
				mx = f
			}
		}
		c.mu.Lock()
		c.minCached, c.maxCached = mn, mx
		c.haveMin, c.haveMax = true, true
		c.mu.Unlock()
		return [2]float64{mn, mx}, nil
	})
	if err != nil {
		return 0, err
	}
	pair := res.([2]float64)
	if wantMin {
		return pair[0], nil
	}
	return pair[1], nil
}

// selectFixed is the generic inner routine shared by every primitive
// type arm (spec §9). When bulk is true (mask density above the
// column's threshold) it reads the whole column in one pass and
// filters in memory, trading wasted I/O on the unset positions for a
// single sequential read; otherwise it walks mask's IndexSet, fanning
// positional reads out across runs with errgroup when there is more
// than one run to read, and decodes each record with the
// caller-supplied decode function.
func selectFixed[T any](backend Backend, mask *bitvec.Bitvector, width int, bulk bool, decode func([]byte) T) ([]T, error) {
	if bulk {
		return selectFixedBulk(backend, mask, width, decode)
	}
	type run struct {
		lo, hi  uint32
		indices []uint32
	}
	var runs []run
	it := mask.FirstIndexSet()
	for {
		step, ok := it.Next()
		if !ok {
			break
		}
		switch step.Kind {
		case bitvec.RangeStep:
			runs = append(runs, run{lo: step.Range[0], hi: step.Range[1]})
		case bitvec.ScatterStep:
			runs = append(runs, run{indices: append([]uint32{}, step.Indices...)})
		}
	}
	results := make([][]T, len(runs))
	readRun := func(i int) error {
		r := runs[i]
		if r.indices != nil {
			out := make([]T, len(r.indices))
			buf := make([]byte, width)
			for j, idx := range r.indices {
				if _, err := backend.ReadAt(buf, int64(idx)*int64(width)); err != nil {
					return bitdexerr.New(bitdexerr.IO, "column.selectFixed", err)
				}
				out[j] = decode(buf)
			}
			results[i] = out
			return nil
		}
		n := int(r.hi - r.lo)
		buf := make([]byte, n*width)
		if _, err := backend.ReadAt(buf, int64(r.lo)*int64(width)); err != nil {
			return bitdexerr.New(bitdexerr.IO, "column.selectFixed", err)
		}
		out := make([]T, n)
		for j := 0; j < n; j++ {
			out[j] = decode(buf[j*width : (j+1)*width])
		}
		results[i] = out
		return nil
	}
	if len(runs) <= 1 {
		for i := range runs {
			if err := readRun(i); err != nil {
				return nil, err
			}
		}
	} else {
		g, _ := errgroup.WithContext(context.Background())
		for i := range runs {
			i := i
			g.Go(func() error { return readRun(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]T, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// selectFixedBulk reads every row once, in position order, and keeps
// only the ones mask sets — the dense-mask counterpart to selectFixed's
// per-run positional seeks.
func selectFixedBulk[T any](backend Backend, mask *bitvec.Bitvector, width int, decode func([]byte) T) ([]T, error) {
	n := int(mask.Size())
	buf := make([]byte, n*width)
	if _, err := backend.ReadAt(buf, 0); err != nil {
		return nil, bitdexerr.New(bitdexerr.IO, "column.selectFixedBulk", err)
	}
	out := make([]T, 0, mask.Count())
	it := mask.FirstIndexSet()
	for {
		step, ok := it.Next()
		if !ok {
			break
		}
		switch step.Kind {
		case bitvec.RangeStep:
			for pos := step.Range[0]; pos < step.Range[1]; pos++ {
				out = append(out, decode(buf[int(pos)*width:(int(pos)+1)*width]))
			}
		case bitvec.ScatterStep:
			for _, pos := range step.Indices {
				out = append(out, decode(buf[int(pos)*width:(int(pos)+1)*width]))
			}
		}
	}
	return out, nil
}

func decodeInt8(b []byte) int8      { return int8(b[0]) }
func decodeUint8(b []byte) uint8    { return b[0] }
func decodeInt16(b []byte) int16    { return int16(binary.LittleEndian.Uint16(b)) }
func decodeUint16(b []byte) uint16  { return binary.LittleEndian.Uint16(b) }
func decodeInt32(b []byte) int32    { return int32(binary.LittleEndian.Uint32(b)) }
func decodeUint32(b []byte) uint32  { return binary.LittleEndian.Uint32(b) }
func decodeInt64(b []byte) int64    { return int64(binary.LittleEndian.Uint64(b)) }
func decodeUint64(b []byte) uint64  { return binary.LittleEndian.Uint64(b) }
func decodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
func decodeCategory(width int) func([]byte) string {
	return func(b []byte) string {
		end := len(b)
		for end > 0 && b[end-1] == 0 {
			end--
		}
		return string(b[:end])
	}
}
