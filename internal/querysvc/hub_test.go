package querysvc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/colindex"
	"github.com/bitdex/bitdex/internal/query"
)

type fakeFactory struct {
	q       *query.Query
	columns []string
}

func (f *fakeFactory) Lookup(tag string) (*query.Query, []string, error) {
	return f.q, f.columns, nil
}

func buildWatchedQuery(t *testing.T) *query.Query {
	t.Helper()
	idx, err := colindex.BuildEquality([]float64{1, 2, 1, 2, 1})
	require.NoError(t, err)
	cols := map[string]*query.ColumnIndex{"a": {Name: "a", Index: idx}}
	q := query.New(cols, 5, nil, nil)
	require.NoError(t, q.SetWhereClause(query.Leaf("a", colindex.EQ, 1)))
	return q
}

func recvBracket(t *testing.T, c *conn) bracketMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		var bm bracketMessage
		require.NoError(t, json.Unmarshal(msg, &bm))
		return bm
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bracket message")
		return bracketMessage{}
	}
}

func TestSubscribeDeliversInitialEstimate(t *testing.T) {
	q := buildWatchedQuery(t)
	h := New(&fakeFactory{q: q, columns: []string{"a"}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &conn{send: make(chan []byte, 4), watches: make(map[string]*watchedQuery)}
	h.register <- c
	h.watchReq <- watchRequest{conn: c, tag: "t1", q: q, columns: []string{"a"}}

	bm := recvBracket(t, c)
	require.Equal(t, "t1", bm.Tag)
	require.Equal(t, uint32(3), bm.Lower)
	require.Equal(t, uint32(3), bm.Upper)
}

func TestColumnChangeWithoutBracketMovementSendsNothing(t *testing.T) {
	q := buildWatchedQuery(t)
	h := New(&fakeFactory{q: q, columns: []string{"a"}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &conn{send: make(chan []byte, 4), watches: make(map[string]*watchedQuery)}
	h.register <- c
	h.watchReq <- watchRequest{conn: c, tag: "t1", q: q, columns: []string{"a"}}
	recvBracket(t, c) // drain the initial estimate

	h.NotifyColumnChanged("a")
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message after unchanged re-estimate: %s", msg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestUnsubscribeStopsFurtherUpdates(t *testing.T) {
	q := buildWatchedQuery(t)
	h := New(&fakeFactory{q: q, columns: []string{"a"}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &conn{send: make(chan []byte, 4), watches: make(map[string]*watchedQuery)}
	h.register <- c
	h.watchReq <- watchRequest{conn: c, tag: "t1", q: q, columns: []string{"a"}}
	recvBracket(t, c)

	h.watchReq <- watchRequest{conn: c, tag: "t1"}
	h.NotifyColumnChanged("b") // not watched anyway, but also exercises the touches() filter
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message after unsubscribe: %s", msg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestColumnChangeIgnoresUnrelatedColumns(t *testing.T) {
	q := buildWatchedQuery(t)
	h := New(&fakeFactory{q: q, columns: []string{"a"}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &conn{send: make(chan []byte, 4), watches: make(map[string]*watchedQuery)}
	h.register <- c
	h.watchReq <- watchRequest{conn: c, tag: "t1", q: q, columns: []string{"a"}}
	recvBracket(t, c)

	h.NotifyColumnChanged("unrelated")
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message for unrelated column: %s", msg)
	case <-time.After(300 * time.Millisecond):
	}
}
