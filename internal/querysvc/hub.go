// Package querysvc streams estimate() bracket updates to subscribed
// websocket clients as the underlying columns change, so a dashboard
// can watch a query's selectivity narrow in real time instead of
// polling. Grounded on _examples/perkeep-perkeep/pkg/search/websocket.go's
// wsHub: one hub goroutine owns all subscription state and serializes
// it through channel operations instead of a mutex, and each
// connection gets its own buffered send channel plus read/write pumps.
package querysvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bitdex/bitdex/internal/logging"
	"github.com/bitdex/bitdex/internal/query"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 10 << 10
	buffered       = 32
)

// Factory resolves a client-supplied subscription tag to the query it
// names plus the columns its predicate reads, so the wire protocol
// never has to carry a serialized predicate tree. Callers register
// their named queries (e.g. dashboard panels, alerting rules) with an
// implementation at startup.
type Factory interface {
	Lookup(tag string) (q *query.Query, columns []string, err error)
}

// Hub owns every live websocket connection and watched query. Callers
// notify it of column changes via NotifyColumnChanged; it re-estimates
// every watcher touching that column and pushes deltas to clients.
type Hub struct {
	log     *logging.Logger
	factory Factory

	register      chan *conn
	unregister    chan *conn
	watchReq      chan watchRequest
	columnChanged chan string
	updated       chan *watchedQuery

	conns map[*conn]bool
}

// New builds a Hub backed by factory. Run must be started in its own
// goroutine before ServeHTTP is wired to an *http.ServeMux.
func New(factory Factory, log *logging.Logger) *Hub {
	if log == nil {
		log = logging.Default()
	}
	return &Hub{
		log:           log,
		factory:       factory,
		register:      make(chan *conn),
		unregister:    make(chan *conn),
		watchReq:      make(chan watchRequest, buffered),
		columnChanged: make(chan string, buffered),
		updated:       make(chan *watchedQuery, buffered),
		conns:         make(map[*conn]bool),
	}
}

// Run is the hub's single serialization point; it must run in its own
// goroutine for the lifetime of the Hub.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.conns[c] = true
		case c := <-h.unregister:
			if h.conns[c] {
				delete(h.conns, c)
				close(c.send)
			}
		case wr := <-h.watchReq:
			if wr.q == nil {
				delete(wr.conn.watches, wr.tag)
				continue
			}
			wq := &watchedQuery{conn: wr.conn, tag: wr.tag, q: wr.q, columns: wr.columns}
			wr.conn.watches[wr.tag] = wq
			go h.reestimate(wq)
		case col := <-h.columnChanged:
			for c := range h.conns {
				for _, wq := range c.watches {
					if wq.touches(col) {
						go h.reestimate(wq)
					}
				}
			}
		case wq := <-h.updated:
			if !h.conns[wq.conn] || wq.conn.watches[wq.tag] != wq {
				continue
			}
			wq.mu.Lock()
			last := wq.lastBracket
			wq.mu.Unlock()
			payload, err := json.Marshal(bracketMessage{
				Tag:   wq.tag,
				Lower: last.Lower.Count(),
				Upper: last.Upper.Count(),
			})
			if err != nil {
				h.log.Error("marshal bracket message", "err", err)
				continue
			}
			wq.conn.send <- payload
		}
	}
}

// NotifyColumnChanged tells the hub that column has new data, kicking
// off re-estimation of every watcher whose predicate mentions it.
func (h *Hub) NotifyColumnChanged(column string) {
	h.columnChanged <- column
}

// reestimate runs in its own goroutine (it may block on Query.Estimate)
// and only posts back to the hub loop if the bracket actually moved.
func (h *Hub) reestimate(wq *watchedQuery) {
	wq.mu.Lock()
	if wq.refreshing {
		wq.dirty = true
		wq.mu.Unlock()
		return
	}
	wq.refreshing = true
	wq.mu.Unlock()

	for {
		b, err := wq.q.Estimate(context.Background())
		if err != nil {
			h.log.Warn("watched query estimate failed", "tag", wq.tag, "err", err)
		} else {
			wq.mu.Lock()
			changed := wq.lastBracket.Lower == nil ||
				b.Lower.Count() != wq.lastBracket.Lower.Count() ||
				b.Upper.Count() != wq.lastBracket.Upper.Count()
			wq.lastBracket = b
			wq.mu.Unlock()
			if changed {
				h.updated <- wq
			}
		}
		wq.mu.Lock()
		if !wq.dirty {
			wq.refreshing = false
			wq.mu.Unlock()
			return
		}
		wq.dirty = false
		wq.mu.Unlock()
	}
}

type watchedQuery struct {
	conn    *conn
	tag     string
	q       *query.Query
	columns []string

	mu          sync.Mutex
	refreshing  bool
	dirty       bool
	lastBracket query.Bracket
}

func (wq *watchedQuery) touches(column string) bool {
	for _, c := range wq.columns {
		if c == column {
			return true
		}
	}
	return false
}

type watchRequest struct {
	conn    *conn
	tag     string
	q       *query.Query // nil means unsubscribe
	columns []string
}

type bracketMessage struct {
	Tag   string `json:"tag"`
	Lower uint32 `json:"lower"`
	Upper uint32 `json:"upper"`
}

// clientMessage is what a subscribing client sends: a tag naming a
// query the Factory already knows about, plus whether this is a
// subscribe or unsubscribe request.
type clientMessage struct {
	Tag         string `json:"tag"`
	Unsubscribe bool   `json:"unsubscribe,omitempty"`
}
