package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics holds the service-level collectors scraped from /metrics.
type CoreMetrics struct {
	// RequestsTotal counts reduction requests by operation and HTTP status.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration observes wall-clock response time by operation.
	RequestDuration *prometheus.HistogramVec
	// InflightRequests gauges requests currently being processed.
	InflightRequests prometheus.Gauge

	// CacheHits and CacheMisses count chunk cache lookups.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	// CacheQueueDepth gauges pending asynchronous cache writes.
	CacheQueueDepth prometheus.Gauge
	// CacheDroppedWrites counts cache writes dropped under backpressure.
	CacheDroppedWrites prometheus.Counter
	// CacheSizeBytes gauges the total on-disk cache size.
	CacheSizeBytes prometheus.Gauge
}

func newCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reductionist_requests_total",
			Help: "Total reduction requests by operation and status",
		}, []string{"op", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reductionist_request_duration_seconds",
			Help:    "Response time by operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),
		InflightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reductionist_inflight_requests",
			Help: "Requests currently being processed",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reductionist_cache_hits_total",
			Help: "Chunk cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reductionist_cache_misses_total",
			Help: "Chunk cache misses",
		}),
		CacheQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reductionist_cache_queue_depth",
			Help: "Pending asynchronous cache writes",
		}),
		CacheDroppedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reductionist_cache_dropped_writes_total",
			Help: "Cache writes dropped because the ingestion queue was full",
		}),
		CacheSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reductionist_cache_size_bytes",
			Help: "Total size of cached chunks on disk",
		}),
	}
}

func (m *CoreMetrics) register(prom *prometheus.Registry) {
	prom.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.InflightRequests,
		m.CacheHits,
		m.CacheMisses,
		m.CacheQueueDepth,
		m.CacheDroppedWrites,
		m.CacheSizeBytes,
	)
}
