package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bitdex/bitdex/internal/bitdexerr"
	"github.com/bitdex/bitdex/internal/bitvec"
	"github.com/bitdex/bitdex/internal/logging"
	"github.com/bitdex/bitdex/internal/metrics"
)

// State is a query object's lifecycle stage, mirroring
// ibis::query::QUERY_STATE.
type State int

const (
	Uninitialised State = iota
	ComponentsSet
	RIDsSet
	PredicateSet
	Specified
	QuickEstimated
	FullyEvaluated
	BundlesTruncated
	HitsTruncated
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case ComponentsSet:
		return "components-set"
	case RIDsSet:
		return "rids-set"
	case PredicateSet:
		return "predicate-set"
	case Specified:
		return "specified"
	case QuickEstimated:
		return "quick-estimated"
	case FullyEvaluated:
		return "fully-evaluated"
	case BundlesTruncated:
		return "bundles-truncated"
	case HitsTruncated:
		return "hits-truncated"
	default:
		return "unknown"
	}
}

// Admitter gates concurrent large-buffer evaluate() calls; Limiter
// satisfies it directly.
type Admitter interface {
	Wait(ctx context.Context) error
}

// Query is a single predicate evaluation against a column set,
// carrying the state machine, a stable ID, and admission control —
// ibis::query generalized from a SQL-like select/where object to a
// bracket-or-exact predicate runner.
type Query struct {
	id        string
	state     State
	predicate *Predicate
	columns   map[string]*ColumnIndex
	size      uint32
	admitter  Admitter
	log       *logging.Logger

	lastBracket Bracket
	hits        *bitvec.Bitvector
}

// New creates a query bound to a row count and column set. admitter
// may be nil to skip admission gating (e.g. in tests).
func New(columns map[string]*ColumnIndex, size uint32, admitter Admitter, log *logging.Logger) *Query {
	if log == nil {
		log = logging.Default()
	}
	id := uuid.NewString()
	return &Query{
		id:       id,
		state:    Uninitialised,
		columns:  columns,
		size:     size,
		admitter: admitter,
		log:      log.With("query_id", id),
	}
}

// NewLimitedAdmitter builds an Admitter that admits queriesPerSecond
// queries per second on average, in bursts of up to burst, for callers
// wiring spec §5's admission gate.
func NewLimitedAdmitter(queriesPerSecond float64, burst int) Admitter {
	return rate.NewLimiter(rate.Limit(queriesPerSecond), burst)
}

// ID returns the query's stable identifier.
func (q *Query) ID() string { return q.id }

// State returns the current lifecycle stage.
func (q *Query) State() State { return q.state }

// SetWhereClause installs the predicate tree, transitioning
// Uninitialised/ComponentsSet/RIDsSet → PredicateSet → Specified.
func (q *Query) SetWhereClause(p *Predicate) error {
	if err := p.CheckValid(); err != nil {
		return err
	}
	q.predicate = p
	q.state = Specified
	return nil
}

func (q *Query) requireSpecified(op string) error {
	if q.state < Specified {
		return bitdexerr.New(bitdexerr.InvalidState, op,
			fmt.Errorf("query %s is in state %s, want at least %s", q.id, q.state, Specified))
	}
	return nil
}

// Estimate runs spec §4.4's cheap estimate() mode and advances the
// state machine to QuickEstimated.
func (q *Query) Estimate(ctx context.Context) (Bracket, error) {
	if err := q.requireSpecified("query.Estimate"); err != nil {
		return Bracket{}, err
	}
	if err := ctx.Err(); err != nil {
		return Bracket{}, bitdexerr.New(bitdexerr.Cancelled, "query.Estimate", err)
	}
	b, err := Estimate(q.predicate, q.columns, q.size)
	if err != nil {
		return Bracket{}, err
	}
	q.lastBracket = b
	q.state = QuickEstimated
	metrics.EstimateBracketWidth.Observe(float64(b.Upper.Count() - b.Lower.Count()))
	return b, nil
}

// Evaluate runs the exact evaluate() mode, admission-gating on
// q.admitter first, and advances the state machine to FullyEvaluated.
func (q *Query) Evaluate(ctx context.Context) (*bitvec.Bitvector, error) {
	if err := q.requireSpecified("query.Evaluate"); err != nil {
		return nil, err
	}
	if q.admitter != nil {
		if err := q.admitter.Wait(ctx); err != nil {
			metrics.AdmissionRejected.Inc()
			if ctx.Err() != nil {
				return nil, bitdexerr.New(bitdexerr.Cancelled, "query.Evaluate", err)
			}
			return nil, bitdexerr.New(bitdexerr.TimedOut, "query.Evaluate", err)
		}
	}
	start := time.Now()
	hits, err := Evaluate(q.predicate, q.columns, q.size)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EvaluateDuration.Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	q.hits = hits
	q.state = FullyEvaluated
	q.log.Debug("query evaluated", "hits", hits.Count())
	return hits, nil
}

// Hits returns the exact hit bitmap computed by the last Evaluate
// call. It errors if Evaluate has not run yet.
func (q *Query) Hits() (*bitvec.Bitvector, error) {
	if q.state < FullyEvaluated {
		return nil, bitdexerr.New(bitdexerr.InvalidState, "query.Hits",
			fmt.Errorf("query %s has not been evaluated", q.id))
	}
	return q.hits, nil
}

// TruncateHits keeps only the first k set bits of the hit vector,
// modeling bundle truncation (BUNDLES_TRUNCATED → HITS_TRUNCATED):
// a top-K result limit applied after full evaluation.
func (q *Query) TruncateHits(k uint32) error {
	if q.state < FullyEvaluated {
		return bitdexerr.New(bitdexerr.InvalidState, "query.TruncateHits",
			fmt.Errorf("query %s has not been evaluated", q.id))
	}
	q.state = BundlesTruncated
	kept := bitvec.New()
	kept.AppendRun(false, q.size)
	var n uint32
	it := q.hits.FirstIndexSet()
	for n < k {
		step, ok := it.Next()
		if !ok {
			break
		}
		if step.Kind == bitvec.RangeStep {
			lo, hi := step.Range[0], step.Range[1]
			for pos := lo; pos < hi && n < k; pos, n = pos+1, n+1 {
				if err := kept.SetBit(pos, true); err != nil {
					return err
				}
			}
		} else {
			for _, pos := range step.Indices {
				if n >= k {
					break
				}
				if err := kept.SetBit(pos, true); err != nil {
					return err
				}
				n++
			}
		}
	}
	q.hits = kept
	q.state = HitsTruncated
	return nil
}
