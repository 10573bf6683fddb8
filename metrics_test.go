// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// pushes two messages and pops one, leaving head=1, tail=2, pending=1.
func primeMetricsQueue(q *Queue) error {
	if err := q.Push([]byte("a")); err != nil {
		return err
	}
	if err := q.Push([]byte("b")); err != nil {
		return err
	}
	_, err := q.Pop(make([]byte, 64))
	return err
}

func TestStats(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(16, 64)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	stats, err := q.Stats()
	a.NoError(err)
	a.Equal(Stats{Pending: 0, Capacity: 16, SlotSize: 64, UsedBytes: 0, FillPercent: 0}, stats)

	if !a.NoError(primeMetricsQueue(q)) {
		return
	}
	stats, err = q.Stats()
	a.NoError(err)
	a.Equal(Stats{Pending: 1, Capacity: 16, SlotSize: 64, UsedBytes: 64, FillPercent: 6}, stats)
}

func TestMetricsCounters(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(16, 64)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	if !a.NoError(primeMetricsQueue(q)) {
		return
	}
	m, err := q.Metrics()
	a.NoError(err)
	a.EqualValues(1, m.Head)
	a.EqualValues(2, m.Tail)
	a.EqualValues(1, m.Pending)
	a.EqualValues(16, m.Capacity)
	a.EqualValues(64, m.SlotSize)
	a.Equal(6, m.FillPercent)
	a.EqualValues(64, m.UsedBytes)
	a.EqualValues(2, m.TotalPushed)
	a.EqualValues(1, m.TotalPopped)
}

func TestMetricsClosedHandle(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(16, 64)
	if !a.NoError(err) {
		return
	}
	a.NoError(q.Close())
	defer cleanQueue(testQueueName)

	_, err = q.Stats()
	a.Equal(ErrClosed, errors.Cause(err))
	_, err = q.Metrics()
	a.Equal(ErrClosed, errors.Cause(err))
	_, err = q.Snapshot()
	a.Equal(ErrClosed, errors.Cause(err))
}

func TestMetricsString(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(16, 64)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	if !a.NoError(primeMetricsQueue(q)) {
		return
	}
	m, err := q.Metrics()
	a.NoError(err)
	expected := "NABD Queue Metrics:\n" +
		"  Head: 1, Tail: 2, Pending: 1\n" +
		"  Capacity: 16 slots (64 bytes/slot)\n" +
		"  Fill: 6% (64 bytes used)\n" +
		"  Total pushed: 2, popped: 1\n"
	a.Equal(expected, m.String())
}

func TestMetricsJSON(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(16, 64)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	if !a.NoError(primeMetricsQueue(q)) {
		return
	}
	m, err := q.Metrics()
	a.NoError(err)
	data, err := m.JSON()
	if !a.NoError(err) {
		return
	}

	var fields map[string]interface{}
	if !a.NoError(json.Unmarshal(data, &fields)) {
		return
	}
	a.EqualValues(1, fields["head"])
	a.EqualValues(2, fields["tail"])
	a.EqualValues(1, fields["pending"])
	a.EqualValues(16, fields["capacity"])
	a.EqualValues(64, fields["slot_size"])
	a.EqualValues(6, fields["fill_pct"])
	a.EqualValues(64, fields["used_bytes"])
	a.EqualValues(2, fields["total_pushed"])
	a.EqualValues(1, fields["total_popped"])

	var back Metrics
	if a.NoError(json.Unmarshal(data, &back)) {
		a.Equal(m, back)
	}
}

func TestThroughputBetween(t *testing.T) {
	a := assert.New(t)
	tests := []struct {
		name string
		prev Snapshot
		curr Snapshot
		want uint64
	}{
		{
			"one second",
			Snapshot{UnixNano: 0, Pushed: 0, Popped: 0},
			Snapshot{UnixNano: int64(time.Second), Pushed: 500, Popped: 250},
			750,
		},
		{
			"half second",
			Snapshot{UnixNano: 0, Pushed: 0, Popped: 0},
			Snapshot{UnixNano: int64(500 * time.Millisecond), Pushed: 500, Popped: 250},
			1500,
		},
		{
			"no traffic",
			Snapshot{UnixNano: 0, Pushed: 10, Popped: 10},
			Snapshot{UnixNano: int64(time.Second), Pushed: 10, Popped: 10},
			0,
		},
		{
			"same instant",
			Snapshot{UnixNano: 42, Pushed: 0, Popped: 0},
			Snapshot{UnixNano: 42, Pushed: 100, Popped: 100},
			0,
		},
		{
			"out of order",
			Snapshot{UnixNano: int64(time.Second), Pushed: 0, Popped: 0},
			Snapshot{UnixNano: 0, Pushed: 100, Popped: 100},
			0,
		},
	}
	for _, tt := range tests {
		a.Equal(tt.want, ThroughputBetween(tt.prev, tt.curr), tt.name)
	}
}

func TestSnapshotThroughput(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(8, 16)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	prev, err := q.Snapshot()
	a.NoError(err)

	buf := make([]byte, 16)
	for i := 0; i < 100; i++ {
		a.NoError(q.Push([]byte("x")))
		_, err = q.Pop(buf)
		a.NoError(err)
	}
	time.Sleep(10 * time.Millisecond)

	curr, err := q.Snapshot()
	a.NoError(err)
	a.EqualValues(100, curr.Pushed-prev.Pushed)
	a.EqualValues(100, curr.Popped-prev.Popped)
	a.True(ThroughputBetween(prev, curr) > 0)
}

func TestMonitor(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(8, 16)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	m := NewMonitor(q, 2)
	defer m.Close()
	a.Equal(0, m.Samples())
	rate, err := m.Rate()
	a.NoError(err)
	a.Zero(rate)

	_, err = m.Record()
	a.NoError(err)
	a.Equal(1, m.Samples())
	rate, err = m.Rate()
	a.NoError(err)
	a.Zero(rate)

	buf := make([]byte, 16)
	for i := 0; i < 100; i++ {
		a.NoError(q.Push([]byte("x")))
		_, err = q.Pop(buf)
		a.NoError(err)
	}
	time.Sleep(10 * time.Millisecond)

	_, err = m.Record()
	a.NoError(err)
	a.Equal(2, m.Samples())
	rate, err = m.Rate()
	a.NoError(err)
	a.True(rate > 0)

	// retention depth caps the history
	_, err = m.Record()
	a.NoError(err)
	a.Equal(2, m.Samples())
}

func TestMonitorDefaults(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(8, 16)
	if !a.NoError(err) {
		return
	}
	defer func() {
		a.NoError(q.Close())
		a.NoError(Unlink(testQueueName))
	}()

	m := NewMonitor(q, 0)
	for i := 0; i < DefaultMonitorDepth+5; i++ {
		_, err = m.Record()
		a.NoError(err)
	}
	a.Equal(DefaultMonitorDepth, m.Samples())
	m.Close()
	_, err = m.Record()
	a.Error(err)
}

func TestMonitorClosedQueue(t *testing.T) {
	a := assert.New(t)
	q, err := makeQueue(8, 16)
	if !a.NoError(err) {
		return
	}
	m := NewMonitor(q, 4)
	defer m.Close()
	a.NoError(q.Close())
	defer cleanQueue(testQueueName)

	_, err = m.Record()
	a.Equal(ErrClosed, errors.Cause(err))
}
