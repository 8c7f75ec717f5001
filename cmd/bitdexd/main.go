// The bitdexd binary serves estimate()/evaluate() over HTTP for one
// table, plus a websocket feed of live bracket updates and a
// Prometheus /metrics endpoint. Grounded on
// server/camlistored/camlistored.go's thin flag-parsing main: load a
// config file, wire the storage backend it names, then hand off to an
// HTTP server — scaled down to this engine's single-table, no-UI scope.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bitdex/bitdex/internal/colindex"
	"github.com/bitdex/bitdex/internal/column"
	"github.com/bitdex/bitdex/internal/config"
	"github.com/bitdex/bitdex/internal/histogram"
	"github.com/bitdex/bitdex/internal/logging"
	"github.com/bitdex/bitdex/internal/metrics"
	"github.com/bitdex/bitdex/internal/partstore"
	"github.com/bitdex/bitdex/internal/query"
	"github.com/bitdex/bitdex/internal/querysvc"
	"github.com/bitdex/bitdex/internal/table"
)

var (
	flagConfigFile = flag.String("configfile", "", "path to the table's JSON config file")
	flagListen     = flag.String("listen", ":8081", "host:port to listen on")
)

func main() {
	flag.Parse()
	log := logging.Default()

	if *flagConfigFile == "" {
		fmt.Fprintln(os.Stderr, "bitdexd: -configfile is required")
		os.Exit(2)
	}

	obj, err := config.Load(*flagConfigFile)
	if err != nil {
		log.Error("loading config", "err", err)
		os.Exit(1)
	}
	cfg, err := config.ParseTableConfig(obj)
	if err != nil {
		log.Error("parsing config", "err", err)
		os.Exit(1)
	}

	store, err := partstore.Open(cfg.PartstoreBackend, partstore.Config(cfg.PartstoreConfig))
	if err != nil {
		log.Error("opening partstore backend", "backend", cfg.PartstoreBackend, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	columns, err := loadColumns(cfg.Columns)
	if err != nil {
		log.Error("loading columns", "err", err)
		os.Exit(1)
	}

	tab, err := table.Open(cfg, store, columns, cfg.IndexVariant, log)
	if err != nil {
		log.Error("opening table", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	factory := newNamedQueryFactory(tab)
	hub := querysvc.New(factory, log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/estimate", estimateHandler(tab, factory, log))
	mux.HandleFunc("/evaluate", evaluateHandler(tab, factory, log))
	mux.HandleFunc("/histogram", histogramHandler(tab, log))
	mux.HandleFunc("/watch", hub.ServeHTTP)

	srv := &http.Server{Addr: *flagListen, Handler: mux}
	go func() {
		log.Info("bitdexd listening", "addr", *flagListen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	cancel()
	srv.Shutdown(context.Background())
}

// loadColumns reads each column's raw value file fully into memory and
// wraps it in a column.MemBackend — the simplest possible storage
// layer, adequate until a real mmap-backed file format exists.
func loadColumns(specs []config.ColumnSpec) ([]*column.Column, error) {
	columns := make([]*column.Column, 0, len(specs))
	for _, spec := range specs {
		width := spec.Kind.Width()
		if width == 0 {
			return nil, fmt.Errorf("column %q: kind has no fixed width; text/category columns need a dedicated loader", spec.Name)
		}
		data, err := os.ReadFile(spec.Path)
		if err != nil {
			return nil, fmt.Errorf("reading column %q: %w", spec.Name, err)
		}
		backend := column.MemBackend{Data: data}
		n := uint32(len(data) / width)
		columns = append(columns, column.NewFixedWidth(spec.Name, spec.Kind, n, backend, nil))
	}
	return columns, nil
}

// namedQueryFactory resolves a websocket watch tag to a predicate
// registered via /estimate or /evaluate under the same tag, so a
// dashboard can subscribe to a query it already submitted once. A
// request registers its tag by setting predicateRequest.Tag; later
// /estimate or /evaluate calls with the same tag overwrite it, so a
// dashboard polling a panel also keeps its live watch current.
type namedQueryFactory struct {
	tab *table.Table

	mu   sync.Mutex
	reqs map[string]predicateRequest
}

func newNamedQueryFactory(tab *table.Table) *namedQueryFactory {
	return &namedQueryFactory{tab: tab, reqs: make(map[string]predicateRequest)}
}

func (f *namedQueryFactory) register(pr predicateRequest) {
	if pr.Tag == "" {
		return
	}
	f.mu.Lock()
	f.reqs[pr.Tag] = pr
	f.mu.Unlock()
}

func (f *namedQueryFactory) Lookup(tag string) (*query.Query, []string, error) {
	f.mu.Lock()
	pr, ok := f.reqs[tag]
	f.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("no registered query for tag %q", tag)
	}
	pred, err := pr.toPredicate()
	if err != nil {
		return nil, nil, err
	}
	q := f.tab.NewQuery()
	if err := q.SetWhereClause(pred); err != nil {
		return nil, nil, err
	}
	return q, pr.columns(), nil
}

// predicateRequest is the JSON wire shape for a predicate tree, used by
// /estimate, /evaluate, and registered watch tags. There is no codec
// for this in internal/query itself: a predicate tree only needs one
// when it crosses a process boundary. Tag is optional; when set, the
// request is also remembered so a later /watch subscription can find
// it by name.
type predicateRequest struct {
	Op     string            `json:"op"`
	Tag    string            `json:"tag,omitempty"`
	Column string            `json:"column,omitempty"`
	Cmp    string            `json:"cmp,omitempty"`
	Value  float64           `json:"value,omitempty"`
	A      *predicateRequest `json:"a,omitempty"`
	B      *predicateRequest `json:"b,omitempty"`
}

var cmpOps = map[string]colindex.Op{
	"lt": colindex.LT, "le": colindex.LE, "eq": colindex.EQ,
	"ge": colindex.GE, "gt": colindex.GT, "ne": colindex.NE,
}

func (pr predicateRequest) toPredicate() (*query.Predicate, error) {
	switch pr.Op {
	case "leaf":
		op, ok := cmpOps[pr.Cmp]
		if !ok {
			return nil, fmt.Errorf("unknown comparison %q", pr.Cmp)
		}
		return query.Leaf(pr.Column, op, pr.Value), nil
	case "and", "or", "xor":
		if pr.A == nil || pr.B == nil {
			return nil, fmt.Errorf("%q predicate requires a and b", pr.Op)
		}
		a, err := pr.A.toPredicate()
		if err != nil {
			return nil, err
		}
		b, err := pr.B.toPredicate()
		if err != nil {
			return nil, err
		}
		switch pr.Op {
		case "and":
			return query.And(a, b), nil
		case "or":
			return query.Or(a, b), nil
		default:
			return query.Xor(a, b), nil
		}
	case "not":
		if pr.A == nil {
			return nil, fmt.Errorf("not predicate requires a")
		}
		a, err := pr.A.toPredicate()
		if err != nil {
			return nil, err
		}
		return query.Not(a), nil
	default:
		return nil, fmt.Errorf("unknown predicate op %q", pr.Op)
	}
}

func (pr predicateRequest) columns() []string {
	if pr.Op == "leaf" {
		return []string{pr.Column}
	}
	var out []string
	if pr.A != nil {
		out = append(out, pr.A.columns()...)
	}
	if pr.B != nil {
		out = append(out, pr.B.columns()...)
	}
	return out
}

func estimateHandler(tab *table.Table, factory *namedQueryFactory, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pr predicateRequest
		if err := json.NewDecoder(r.Body).Decode(&pr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pred, err := pr.toPredicate()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		factory.register(pr)
		q := tab.NewQuery()
		if err := q.SetWhereClause(pred); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, err := q.Estimate(r.Context())
		if err != nil {
			log.Warn("estimate failed", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]uint32{
			"lower": b.Lower.Count(),
			"upper": b.Upper.Count(),
		})
	}
}

// histogramRequest names one, two, or three columns to bin; Bins sets
// the requested bin count per dimension (default handled per-column
// below), Boundaries optionally fixes that column's bin edges exactly.
type histogramRequest struct {
	Columns     []string    `json:"columns"`
	Bins        []int       `json:"bins,omitempty"`
	Boundaries  [][]float64 `json:"boundaries,omitempty"`
	WithBitmaps bool        `json:"with_bitmaps,omitempty"`
}

func (hr histogramRequest) binsFor(i int) int {
	if i < len(hr.Bins) && hr.Bins[i] > 0 {
		return hr.Bins[i]
	}
	return colindex.DefaultFanout
}

func (hr histogramRequest) boundariesFor(i int) []float64 {
	if i < len(hr.Boundaries) {
		return hr.Boundaries[i]
	}
	return nil
}

func histogramHandler(tab *table.Table, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var hr histogramRequest
		if err := json.NewDecoder(r.Body).Decode(&hr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		values := make([][]float64, len(hr.Columns))
		for i, name := range hr.Columns {
			vals, err := tab.ColumnFloats(name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			values[i] = vals
		}

		var result any
		var err error
		switch len(hr.Columns) {
		case 1:
			var bins []histogram.Bin1D
			bins, err = histogram.Build1D(values[0], hr.boundariesFor(0), hr.binsFor(0), hr.WithBitmaps)
			result = bin1DResponses(bins)
		case 2:
			var grid [][]histogram.Bin2D
			grid, err = histogram.Build2D(values[0], values[1],
				hr.boundariesFor(0), hr.boundariesFor(1), hr.binsFor(0), hr.binsFor(1), hr.WithBitmaps)
			result = bin2DResponses(grid)
		case 3:
			var grid [][][]histogram.Bin3D
			grid, err = histogram.Build3D(values[0], values[1], values[2],
				hr.boundariesFor(0), hr.boundariesFor(1), hr.boundariesFor(2),
				hr.binsFor(0), hr.binsFor(1), hr.binsFor(2), hr.WithBitmaps)
			result = bin3DResponses(grid)
		default:
			http.Error(w, "histogram requires 1, 2, or 3 columns", http.StatusBadRequest)
			return
		}
		if err != nil {
			log.Warn("histogram failed", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(result)
	}
}

// bin1DResponse is the JSON wire shape for a histogram.Bin1D: Bits, if
// present, is expanded to a plain bool slice since bitvec.Bitvector
// has no JSON encoding of its own.
type bin1DResponse struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count uint32  `json:"count"`
	Bits  []bool  `json:"bits,omitempty"`
}

func toBin1DResponse(b histogram.Bin1D) bin1DResponse {
	resp := bin1DResponse{Lo: b.Lo, Hi: b.Hi, Count: b.Count}
	if b.Bits != nil {
		resp.Bits = b.Bits.ToBits()
	}
	return resp
}

func bin1DResponses(bins []histogram.Bin1D) []bin1DResponse {
	out := make([]bin1DResponse, len(bins))
	for i, b := range bins {
		out[i] = toBin1DResponse(b)
	}
	return out
}

type bin2DResponse struct {
	A     bin1DResponse `json:"a"`
	B     bin1DResponse `json:"b"`
	Count uint32        `json:"count"`
	Bits  []bool        `json:"bits,omitempty"`
}

func bin2DResponses(grid [][]histogram.Bin2D) [][]bin2DResponse {
	out := make([][]bin2DResponse, len(grid))
	for i, row := range grid {
		out[i] = make([]bin2DResponse, len(row))
		for j, cell := range row {
			resp := bin2DResponse{A: toBin1DResponse(cell.A), B: toBin1DResponse(cell.B), Count: cell.Count}
			if cell.Bits != nil {
				resp.Bits = cell.Bits.ToBits()
			}
			out[i][j] = resp
		}
	}
	return out
}

type bin3DResponse struct {
	A     bin1DResponse `json:"a"`
	B     bin1DResponse `json:"b"`
	C     bin1DResponse `json:"c"`
	Count uint32        `json:"count"`
	Bits  []bool        `json:"bits,omitempty"`
}

func bin3DResponses(grid [][][]histogram.Bin3D) [][][]bin3DResponse {
	out := make([][][]bin3DResponse, len(grid))
	for i, plane := range grid {
		out[i] = make([][]bin3DResponse, len(plane))
		for j, row := range plane {
			out[i][j] = make([]bin3DResponse, len(row))
			for k, cell := range row {
				resp := bin3DResponse{A: toBin1DResponse(cell.A), B: toBin1DResponse(cell.B), C: toBin1DResponse(cell.C), Count: cell.Count}
				if cell.Bits != nil {
					resp.Bits = cell.Bits.ToBits()
				}
				out[i][j][k] = resp
			}
		}
	}
	return out
}

func evaluateHandler(tab *table.Table, factory *namedQueryFactory, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pr predicateRequest
		if err := json.NewDecoder(r.Body).Decode(&pr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pred, err := pr.toPredicate()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		factory.register(pr)
		q := tab.NewQuery()
		if err := q.SetWhereClause(pred); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hits, err := q.Evaluate(r.Context())
		if err != nil {
			log.Warn("evaluate failed", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]uint32{"count": hits.Count()})
	}
}
