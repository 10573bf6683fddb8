// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"sync"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/pkg/errors"
)

// DefaultMonitorDepth is how many snapshots a Monitor retains unless told
// otherwise.
const DefaultMonitorDepth = 60

// Monitor retains a bounded history of queue snapshots and derives the
// message rate over the retained window. Record is cheap enough to drive
// from a ticker.
type Monitor struct {
	q     *Queue
	depth int64

	mu      sync.Mutex
	history *queuepkg.Queue
	last    Snapshot
}

// NewMonitor wraps q with a snapshot history of the given depth. A depth
// below one falls back to DefaultMonitorDepth.
func NewMonitor(q *Queue, depth int) *Monitor {
	if depth < 1 {
		depth = DefaultMonitorDepth
	}
	return &Monitor{
		q:       q,
		depth:   int64(depth),
		history: queuepkg.New(int64(depth)),
	}
}

// Record takes a snapshot, appends it to the history and drops the oldest
// samples beyond the retention depth.
func (m *Monitor) Record() (Snapshot, error) {
	snap, err := m.q.Snapshot()
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.history.Put(snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to record snapshot")
	}
	m.last = snap
	for m.history.Len() > m.depth {
		if _, err := m.history.Get(1); err != nil {
			return Snapshot{}, errors.Wrap(err, "failed to trim history")
		}
	}
	return snap, nil
}

// Samples reports how many snapshots the history holds.
func (m *Monitor) Samples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.history.Len())
}

// Rate reports messages moved per second across the retained window,
// pushes and pops combined. Fewer than two samples yield zero.
func (m *Monitor) Rate() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.history.Len() < 2 {
		return 0, nil
	}
	item, err := m.history.Peek()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read history")
	}
	oldest, ok := item.(Snapshot)
	if !ok {
		return 0, errors.Errorf("invalid history element type %T", item)
	}
	return ThroughputBetween(oldest, m.last), nil
}

// Close disposes of the history. The Monitor must not be used afterwards.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Dispose()
}
