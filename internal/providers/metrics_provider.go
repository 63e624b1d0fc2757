package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pld/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncEventsTotal()
	ObservePersistenceDuration(duration time.Duration)
	IncSyncPasses(result string)
	ObserveSyncDuration(duration time.Duration)
	SetRecordsTotal(count int)
	SetStreakDays(days int)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	eventsTotal         prometheus.Counter
	persistenceDuration prometheus.Histogram
	syncPasses          *prometheus.CounterVec
	syncDuration        prometheus.Histogram
	recordsTotal        prometheus.Gauge
	streakDays          prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncEventsTotal() {
	m.eventsTotal.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncSyncPasses(result string) {
	m.syncPasses.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) ObserveSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) SetRecordsTotal(count int) {
	m.recordsTotal.Set(float64(count))
}

func (m *MetricsProvider) SetStreakDays(days int) {
	m.streakDays.Set(float64(days))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pld_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pld_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pld_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pld_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		eventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pld_events_total",
			Help: "Total number of accepted play events",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pld_persistence_duration_seconds",
			Help:    "Duration of document flushes in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		syncPasses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pld_sync_passes_total",
			Help: "Cloud sync passes by result",
		}, []string{"result"}),

		syncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pld_sync_duration_seconds",
			Help:    "Duration of cloud sync passes in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		recordsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pld_play_records",
			Help: "Number of play records in the document",
		}),

		streakDays: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pld_streak_days",
			Help: "Current listening streak in days",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncEventsTotal()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncSyncPasses(_ string)                           {}
func (n *noopMetrics) ObserveSyncDuration(_ time.Duration)              {}
func (n *noopMetrics) SetRecordsTotal(_ int)                            {}
func (n *noopMetrics) SetStreakDays(_ int)                              {}
