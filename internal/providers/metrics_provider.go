package providers

import (
	"strd/internal/structures"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncUnlocks(outcome string)
	AddPointsConsumed(points int)
	IncBlockCommands(action string)
	ObserveSyncDuration(duration time.Duration)
	IncUsageEvents(stage string)
	AddUsageSeconds(category string, seconds int)
	IncStoreErrors(op string)
}

type MetricsProvider struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	unlocksTotal     *prometheus.CounterVec
	pointsConsumed   prometheus.Counter
	blockCommands    *prometheus.CounterVec
	syncDuration     prometheus.Histogram
	usageEvents      *prometheus.CounterVec
	usageSeconds     *prometheus.CounterVec
	storeErrorsTotal *prometheus.CounterVec
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

func (m *MetricsProvider) IncUnlocks(outcome string) {
	m.unlocksTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsProvider) AddPointsConsumed(points int) {
	if points > 0 {
		m.pointsConsumed.Add(float64(points))
	}
}

func (m *MetricsProvider) IncBlockCommands(action string) {
	m.blockCommands.WithLabelValues(action).Inc()
}

func (m *MetricsProvider) ObserveSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncUsageEvents(stage string) {
	m.usageEvents.WithLabelValues(stage).Inc()
}

func (m *MetricsProvider) AddUsageSeconds(category string, seconds int) {
	if seconds > 0 {
		m.usageSeconds.WithLabelValues(category).Add(float64(seconds))
	}
}

func (m *MetricsProvider) IncStoreErrors(op string) {
	m.storeErrorsTotal.WithLabelValues(op).Inc()
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
			Name: "strd_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strd_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strd_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		unlocksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strd_unlocks_total",
			Help: "Unlock attempts by outcome",
		}, []string{"outcome"}),

		pointsConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "strd_points_consumed_total",
			Help: "Points permanently spent on reward app usage",
		}),

		blockCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strd_block_commands_total",
			Help: "Block and unblock commands issued to the shield",
		}, []string{"action"}),

		syncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "strd_sync_duration_seconds",
			Help:    "Duration of a full blocking sync in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		usageEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strd_usage_events_total",
			Help: "Cross-process usage events by stage",
		}, []string{"stage"}),

		usageSeconds: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strd_usage_seconds_total",
			Help: "Foreground seconds recorded by app category",
		}, []string{"category"}),

		storeErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "strd_store_errors_total",
			Help: "Shared store failures by operation",
		}, []string{"op"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncUnlocks(_ string)                              {}
func (n *noopMetrics) AddPointsConsumed(_ int)                          {}
func (n *noopMetrics) IncBlockCommands(_ string)                        {}
func (n *noopMetrics) ObserveSyncDuration(_ time.Duration)              {}
func (n *noopMetrics) IncUsageEvents(_ string)                          {}
func (n *noopMetrics) AddUsageSeconds(_ string, _ int)                  {}
func (n *noopMetrics) IncStoreErrors(_ string)                          {}
