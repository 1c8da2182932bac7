package metrics

import (
	"errors"
	"six7/internal/storage"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation results used as the "result" label.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// StorageMetrics holds Prometheus collectors for object store operations.
type StorageMetrics struct {
	bytes   *prometheus.CounterVec
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// StorageObserver is a minimal observer interface implemented by StorageMetrics.
type StorageObserver interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

// NewStorageMetrics registers storage metrics on the provided registry.
func NewStorageMetrics(reg prometheus.Registerer) *StorageMetrics {
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "bytes_total",
		Help:      "Total payload bytes read or written by storage operations.",
	}, []string{"op"})
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "ops_total",
		Help:      "Total number of storage operations by result.",
	}, []string{"op", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "op_duration_seconds",
		Help:      "Histogram of storage operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	reg.MustRegister(bytes, ops, latency)

	return &StorageMetrics{
		bytes:   bytes,
		ops:     ops,
		latency: latency,
	}
}

// Observe records a storage operation. A missing object is counted
// separately from failures since it is an expected outcome.
func (m *StorageMetrics) Observe(op string, bytes int64, err error, dur time.Duration) {
	result := ResultOK
	switch {
	case errors.Is(err, storage.ErrNotFound):
		result = ResultNotFound
	case err != nil:
		result = ResultError
	}

	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(dur.Seconds())
}

// Ops returns the operation counter, for tests and custom exporters.
func (m *StorageMetrics) Ops() *prometheus.CounterVec {
	return m.ops
}

// Bytes returns the payload byte counter.
func (m *StorageMetrics) Bytes() *prometheus.CounterVec {
	return m.bytes
}
