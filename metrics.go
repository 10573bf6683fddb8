// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"
)

// Stats is a point-in-time view of queue occupancy. All fields come from
// lock-free atomic loads, so a snapshot taken next to live producers and
// consumers is approximate.
type Stats struct {
	Pending     uint64 `json:"pending"`
	Capacity    uint64 `json:"capacity"`
	SlotSize    uint64 `json:"slot_size"`
	UsedBytes   uint64 `json:"used_bytes"`
	FillPercent int    `json:"fill_pct"`
}

// Stats reports the current occupancy of the queue.
func (q *Queue) Stats() (Stats, error) {
	r := q.ring
	if r == nil {
		return Stats{}, ErrClosed
	}
	pending := r.hdr.loadCount()
	return Stats{
		Pending:     pending,
		Capacity:    uint64(r.capacity),
		SlotSize:    uint64(r.slotSize),
		UsedBytes:   pending * uint64(r.slotSize),
		FillPercent: int(pending * 100 / uint64(r.capacity)),
	}, nil
}

// Metrics extends Stats with ring positions and the monotonic lifetime
// counters.
type Metrics struct {
	Head        uint64 `json:"head"`
	Tail        uint64 `json:"tail"`
	Pending     uint64 `json:"pending"`
	Capacity    uint64 `json:"capacity"`
	SlotSize    uint64 `json:"slot_size"`
	FillPercent int    `json:"fill_pct"`
	UsedBytes   uint64 `json:"used_bytes"`
	TotalPushed uint64 `json:"total_pushed"`
	TotalPopped uint64 `json:"total_popped"`
}

// Metrics reports occupancy, ring positions and lifetime counters.
func (q *Queue) Metrics() (Metrics, error) {
	r := q.ring
	if r == nil {
		return Metrics{}, ErrClosed
	}
	hdr := r.hdr
	pending := hdr.loadCount()
	return Metrics{
		Head:        hdr.loadHead(),
		Tail:        hdr.loadTail(),
		Pending:     pending,
		Capacity:    uint64(r.capacity),
		SlotSize:    uint64(r.slotSize),
		FillPercent: int(pending * 100 / uint64(r.capacity)),
		UsedBytes:   pending * uint64(r.slotSize),
		TotalPushed: hdr.loadPushed(),
		TotalPopped: hdr.loadPopped(),
	}, nil
}

// String renders the metrics as a small human-readable report.
func (m Metrics) String() string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	fmt.Fprintf(buf, "NABD Queue Metrics:\n")
	fmt.Fprintf(buf, "  Head: %d, Tail: %d, Pending: %d\n", m.Head, m.Tail, m.Pending)
	fmt.Fprintf(buf, "  Capacity: %d slots (%d bytes/slot)\n", m.Capacity, m.SlotSize)
	fmt.Fprintf(buf, "  Fill: %d%% (%d bytes used)\n", m.FillPercent, m.UsedBytes)
	fmt.Fprintf(buf, "  Total pushed: %d, popped: %d\n", m.TotalPushed, m.TotalPopped)
	return buf.String()
}

// JSON renders the metrics as indented JSON.
func (m Metrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Snapshot is a timestamped reading of the lifetime counters, cheap
// enough to take on a tight schedule.
type Snapshot struct {
	UnixNano int64  `json:"unix_nano"`
	Pushed   uint64 `json:"pushed"`
	Popped   uint64 `json:"popped"`
	Pending  uint64 `json:"pending"`
}

// Snapshot reads the lifetime counters and stamps them with the wall
// clock.
func (q *Queue) Snapshot() (Snapshot, error) {
	r := q.ring
	if r == nil {
		return Snapshot{}, ErrClosed
	}
	hdr := r.hdr
	return Snapshot{
		UnixNano: time.Now().UnixNano(),
		Pushed:   hdr.loadPushed(),
		Popped:   hdr.loadPopped(),
		Pending:  hdr.loadCount(),
	}, nil
}

// ThroughputBetween reports messages moved per second between two
// snapshots, counting pushes and pops together. Snapshots out of order
// or taken at the same instant yield zero.
func ThroughputBetween(prev, curr Snapshot) uint64 {
	timeDiff := curr.UnixNano - prev.UnixNano
	if timeDiff <= 0 {
		return 0
	}
	msgDiff := (curr.Pushed - prev.Pushed) + (curr.Popped - prev.Popped)
	return msgDiff * uint64(time.Second) / uint64(timeDiff)
}
