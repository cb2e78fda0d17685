package database

import (
	"fmt"
	"sync"

	"github.com/fedkv/sqlevel/pkg/logger"
)

// Metrics collects storage-layer counters. All methods are safe for
// concurrent use.
type Metrics struct {
	mu sync.RWMutex

	// Connection metrics
	connectionsOpened int64
	connectionsReused int64
	connectionsClosed int64

	// Coalescer metrics
	flushes          int64
	flushFailures    int64
	batchesCoalesced int64
	opsFlushed       int64

	// Iterator metrics
	iteratorsOpened int64
	streamErrors    int64
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConnectionsOpened() {
	m.mu.Lock()
	m.connectionsOpened++
	m.mu.Unlock()
}

func (m *Metrics) IncConnectionsReused() {
	m.mu.Lock()
	m.connectionsReused++
	m.mu.Unlock()
}

func (m *Metrics) IncConnectionsClosed() {
	m.mu.Lock()
	m.connectionsClosed++
	m.mu.Unlock()
}

// RecordFlush records one successful coalesced flush covering the given
// number of batches and operations.
func (m *Metrics) RecordFlush(batches, ops int) {
	m.mu.Lock()
	m.flushes++
	m.batchesCoalesced += int64(batches)
	m.opsFlushed += int64(ops)
	m.mu.Unlock()
}

func (m *Metrics) IncFlushFailures() {
	m.mu.Lock()
	m.flushFailures++
	m.mu.Unlock()
}

func (m *Metrics) IncIteratorsOpened() {
	m.mu.Lock()
	m.iteratorsOpened++
	m.mu.Unlock()
}

func (m *Metrics) IncStreamErrors() {
	m.mu.Lock()
	m.streamErrors++
	m.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int64{
		"connections_opened": m.connectionsOpened,
		"connections_reused": m.connectionsReused,
		"connections_closed": m.connectionsClosed,
		"flushes":            m.flushes,
		"flush_failures":     m.flushFailures,
		"batches_coalesced":  m.batchesCoalesced,
		"ops_flushed":        m.opsFlushed,
		"iterators_opened":   m.iteratorsOpened,
		"stream_errors":      m.streamErrors,
	}
}

// LogSummary writes the current counters through the logger.
func (m *Metrics) LogSummary(l *logger.Logger) {
	snap := m.Snapshot()
	fields := make(map[string]string, len(snap))
	for k, v := range snap {
		fields[k] = fmt.Sprintf("%d", v)
	}
	l.WithFields(fields).Info("storage metrics")
}
