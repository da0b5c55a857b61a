// Package metrics holds the Prometheus instruments of the history store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cliphist"

type Metrics struct {
	// Log metrics
	Ops         *prometheus.CounterVec
	Wasted      prometheus.Gauge
	LogBytes    prometheus.Gauge
	Quarantines prometheus.Counter

	// Compaction metrics
	Compactions        *prometheus.CounterVec
	CompactionDuration prometheus.Histogram

	// Queue metrics
	QueueDepth prometheus.Gauge
}

// New registers the instruments with reg. A nil reg creates unregistered
// instruments.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Ops: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_ops_total",
				Help:      "Total number of records appended to the operation log",
			},
			[]string{"op", "status"}, // status: success/error
		),
		Wasted: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "log_wasted_ops",
				Help:      "Records in the operation log that a compaction would drop",
			},
		),
		LogBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "log_size_bytes",
				Help:      "Size of the operation log after the last load or compaction",
			},
		),
		Quarantines: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_quarantines_total",
				Help:      "Corrupt operation logs moved aside",
			},
		),
		Compactions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compactions_total",
				Help:      "Total number of log compactions",
			},
			[]string{"status"},
		),
		CompactionDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compaction_duration_seconds",
				Help:      "Time spent rewriting the operation log",
				Buckets:   prometheus.DefBuckets,
			},
		),
		QueueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "write_queue_depth",
				Help:      "Disk tasks queued or running",
			},
		),
	}
}

// ObserveOp counts one appended record.
func (m *Metrics) ObserveOp(op string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Ops.WithLabelValues(op, status).Inc()
}

// ObserveCompaction counts one compaction.
func (m *Metrics) ObserveCompaction(seconds float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Compactions.WithLabelValues(status).Inc()
	m.CompactionDuration.Observe(seconds)
}
