package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "eduhub"

// MetricsSnapshot is the compact view of process metrics served by /health.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	UploadsTotal             uint64    `json:"uploads_total"`
	DownloadsTotal           uint64    `json:"downloads_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService owns a private Prometheus registry. Every recording method
// is a no-op on a nil receiver, so callers never guard.
type MetricsService struct {
	registry *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	cacheOps     *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec
	uploads      *prometheus.CounterVec
	uploadBytes  prometheus.Histogram
	downloads    *prometheus.CounterVec
	cleanup      *prometheus.CounterVec

	requests      atomic.Uint64
	requestNanos  atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	acceptedFiles atomic.Uint64
	servedFiles   atomic.Uint64
}

// NewMetricsService registers the service collectors plus the Go runtime
// and process collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}
	httpLabels := []string{"method", "route", "status"}

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request latency by route template.", Buckets: prometheus.DefBuckets,
	}, httpLabels)
	m.httpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by route template.",
	}, httpLabels)
	m.cacheOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "operations_total",
		Help: "Cache operations by kind and result.",
	}, []string{"op", "result"})
	m.cacheLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "latency_seconds",
		Help: "Cache backend latency.", Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"op"})
	hitRatio := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "cache", Name: "hit_ratio",
		Help: "Share of cache reads that were hits.",
	}, m.hitRatio)
	m.uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "resource_uploads_total",
		Help: "Resource file uploads by outcome.",
	}, []string{"outcome"})
	m.uploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Name: "resource_upload_bytes",
		Help: "Size of accepted resource files.", Buckets: prometheus.ExponentialBuckets(64<<10, 4, 10),
	})
	m.downloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "resource_downloads_total",
		Help: "Served downloads by channel.",
	}, []string{"channel"})
	m.cleanup = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Name: "storage_cleanup_total",
		Help: "Stored file removals by outcome.",
	}, []string{"outcome"})

	m.registry.MustRegister(
		m.httpDuration, m.httpTotal,
		m.cacheOps, m.cacheLatency, hitRatio,
		m.uploads, m.uploadBytes, m.downloads, m.cleanup,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format, or 503 when
// metrics are disabled.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTPRequest records one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
	m.requests.Add(1)
	m.requestNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache read.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
	m.cacheOps.WithLabelValues("get", result).Inc()
	m.cacheLatency.WithLabelValues("get").Observe(duration.Seconds())
}

// ObserveCacheWrite records a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("set", "done").Inc()
	m.cacheLatency.WithLabelValues("set").Observe(duration.Seconds())
}

// RecordUpload counts an upload attempt. size is only observed for accepted files.
func (m *MetricsService) RecordUpload(outcome string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
	if outcome == "accepted" {
		m.uploadBytes.Observe(float64(size))
		m.acceptedFiles.Add(1)
	}
}

// RecordDownload counts a served download.
func (m *MetricsService) RecordDownload(channel string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(channel).Inc()
	m.servedFiles.Add(1)
}

// RecordCleanup counts a stored file removal attempt.
func (m *MetricsService) RecordCleanup(outcome string) {
	if m == nil {
		return
	}
	m.cleanup.WithLabelValues(outcome).Inc()
}

// Snapshot aggregates the counters kept alongside the registry.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	snap := MetricsSnapshot{
		CacheHitRatio:  m.hitRatio(),
		CacheHits:      m.cacheHits.Load(),
		CacheMisses:    m.cacheMisses.Load(),
		RequestsTotal:  m.requests.Load(),
		UploadsTotal:   m.acceptedFiles.Load(),
		DownloadsTotal: m.servedFiles.Load(),
		Goroutines:     runtime.NumGoroutine(),
		GeneratedAt:    time.Now().UTC(),
	}
	if snap.RequestsTotal > 0 {
		snap.AverageRequestDurationMs = float64(m.requestNanos.Load()) / float64(snap.RequestsTotal) / float64(time.Millisecond)
	}
	return snap
}

func (m *MetricsService) hitRatio() float64 {
	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
