package database

import (
	"context"
	"sync"

	"github.com/fedkv/sqlevel/internal/database/dbconn"
	"github.com/fedkv/sqlevel/pkg/kv"
	"github.com/fedkv/sqlevel/pkg/logger"
)

// pendingBatch is one batch() call waiting for the next coalesced flush:
// its ordered operations plus the completion signal resolved or rejected
// when the enclosing flush finishes.
type pendingBatch struct {
	table dbconn.Table
	ops   []kv.Op
	done  chan error
}

// coalescer merges the write batches submitted against one shared
// connection into single flushes. Opening a transaction per individual
// batch() call would serialize concurrent writers, which is especially
// costly on single-writer engines; instead every batch queued before the
// flusher wakes is drained together as one unit of work.
//
// Flushes for one connection are strictly serialized: a single flusher
// goroutine drains the queue, and the inFlight guard keeps a flush from
// overlapping even if triggered directly.
type coalescer struct {
	conn    dbconn.Conn
	logger  *logger.Logger
	metrics *Metrics

	mu       sync.Mutex
	pending  []pendingBatch
	inFlight bool
	closed   bool

	notify chan struct{}
	quit   chan struct{}
}

func newCoalescer(conn dbconn.Conn, log *logger.Logger, m *Metrics) *coalescer {
	c := &coalescer{
		conn:    conn,
		logger:  log,
		metrics: m,
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	go c.run()
	return c
}

// enqueue appends a batch to the pending queue and triggers a flush if none
// is already scheduled. The returned channel yields exactly one value: nil
// on success, or the flush's BatchError.
func (c *coalescer) enqueue(t dbconn.Table, ops []kv.Op) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done <- kv.ErrStoreClosed
		return done
	}
	c.pending = append(c.pending, pendingBatch{table: t, ops: ops, done: done})
	c.mu.Unlock()

	// Idempotent trigger: one buffered token schedules at most one extra
	// flush pass.
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return done
}

func (c *coalescer) run() {
	for {
		select {
		case <-c.quit:
			c.rejectPending(kv.ErrStoreClosed)
			return
		case <-c.notify:
			c.flush()
		}
	}
}

// flush drains everything queued so far and applies it as one unit of work.
// All completion signals in the flush resolve or reject together; callers
// cannot attribute a failure to an individual operation.
func (c *coalescer) flush() {
	c.mu.Lock()
	if c.inFlight || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = nil
	c.inFlight = true
	c.mu.Unlock()

	writes, opCount := reduceBatches(batch)
	err := c.conn.ApplyBatch(context.Background(), writes)

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()

	if err != nil {
		err = kv.NewBatchError(c.conn.Kind(), len(batch), err)
		c.metrics.IncFlushFailures()
		c.logger.Errorf("coalesced flush failed: %v", err)
	} else {
		c.metrics.RecordFlush(len(batch), opCount)
	}
	for _, pb := range batch {
		pb.done <- err
	}
}

func (c *coalescer) stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.quit)
}

func (c *coalescer) rejectPending(err error) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, pb := range batch {
		pb.done <- err
	}
}

// reduceBatches collapses the queued batches to final per-key state, by
// global enqueue order across all batches rather than
// submission-to-driver order. Operations touching the same key collapse to
// the last one's effect.
func reduceBatches(batch []pendingBatch) ([]dbconn.TableWrite, int) {
	type tableState struct {
		table dbconn.Table
		order [][]byte
		final map[string]kv.Op
	}

	var tableOrder []string
	states := make(map[string]*tableState)
	opCount := 0

	for _, pb := range batch {
		st := states[pb.table.Name]
		if st == nil {
			st = &tableState{table: pb.table, final: make(map[string]kv.Op)}
			states[pb.table.Name] = st
			tableOrder = append(tableOrder, pb.table.Name)
		}
		for _, op := range pb.ops {
			k := string(op.Key)
			if _, seen := st.final[k]; !seen {
				st.order = append(st.order, op.Key)
			}
			st.final[k] = op
			opCount++
		}
	}

	writes := make([]dbconn.TableWrite, 0, len(tableOrder))
	for _, name := range tableOrder {
		st := states[name]
		w := dbconn.TableWrite{Table: st.table}
		for _, key := range st.order {
			w.Touched = append(w.Touched, key)
			if op := st.final[string(key)]; op.Kind == kv.OpPut {
				w.Puts = append(w.Puts, dbconn.KV{Key: key, Value: op.Value})
			}
		}
		writes = append(writes, w)
	}
	return writes, opCount
}
