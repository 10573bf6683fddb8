// Copyright 2025 Mohamed Yasser. All rights reserved.

package nabd

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes queue metrics to Prometheus. The counters live in
// shared memory, so everything is read on scrape as const metrics
// instead of being double-tracked in process-local counters.
type Collector struct {
	q *Queue

	pending   *prometheus.Desc
	fill      *prometheus.Desc
	usedBytes *prometheus.Desc
	pushed    *prometheus.Desc
	popped    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector for q, labeled with the queue name.
// Register it with any prometheus.Registerer.
func NewCollector(q *Queue) *Collector {
	labels := prometheus.Labels{"queue": q.Name()}
	return &Collector{
		q: q,
		pending: prometheus.NewDesc("nabd_queue_pending_messages",
			"Number of messages waiting in the queue.", nil, labels),
		fill: prometheus.NewDesc("nabd_queue_fill_percent",
			"Queue fill level in percent.", nil, labels),
		usedBytes: prometheus.NewDesc("nabd_queue_used_bytes",
			"Bytes held by pending messages.", nil, labels),
		pushed: prometheus.NewDesc("nabd_queue_pushed_total",
			"Messages pushed since the queue was created.", nil, labels),
		popped: prometheus.NewDesc("nabd_queue_popped_total",
			"Messages popped since the queue was created.", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pending
	ch <- c.fill
	ch <- c.usedBytes
	ch <- c.pushed
	ch <- c.popped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m, err := c.q.Metrics()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.pending, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(m.Pending))
	ch <- prometheus.MustNewConstMetric(c.fill, prometheus.GaugeValue, float64(m.FillPercent))
	ch <- prometheus.MustNewConstMetric(c.usedBytes, prometheus.GaugeValue, float64(m.UsedBytes))
	ch <- prometheus.MustNewConstMetric(c.pushed, prometheus.CounterValue, float64(m.TotalPushed))
	ch <- prometheus.MustNewConstMetric(c.popped, prometheus.CounterValue, float64(m.TotalPopped))
}
