package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
)

const defaultNamespace = "storefront"

// PrometheusMetrics records client-side counters on a private registry
// so an embedding host can expose them however it likes.
type PrometheusMetrics struct {
	logger   types.Logger
	registry *prometheus.Registry

	requests            *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	coalescedJoins      *prometheus.CounterVec
	retries             *prometheus.CounterVec
	credentialFallbacks prometheus.Counter
	checkouts           *prometheus.CounterVec

	mu     sync.RWMutex
	simple map[string]prometheus.Counter
}

func NewPrometheusMetrics(logger types.Logger, config *types.MetricsConfig) (*PrometheusMetrics, error) {
	namespace := defaultNamespace
	if config != nil && config.Namespace != "" {
		namespace = config.Namespace
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &PrometheusMetrics{
		logger:   logger,
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API requests by method, path and status",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Responses served from the response cache",
		}, []string{"path"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Requests that went to the network",
		}, []string{"path"}),
		coalescedJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_joins_total",
			Help:      "Callers that joined an in-flight request",
		}, []string{"path"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retry attempts by method and path",
		}, []string{"method", "path"}),
		credentialFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_fallbacks_total",
			Help:      "Requests authenticated with the persisted fallback token",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome",
		}, []string{"outcome"}),
		simple: make(map[string]prometheus.Counter),
	}

	registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.cacheHits,
		m.cacheMisses,
		m.coalescedJoins,
		m.retries,
		m.credentialFallbacks,
		m.checkouts,
	)

	logger.Info("Prometheus metrics initialized", zap.String("namespace", namespace))

	return m, nil
}

// Registry exposes the private registry for embedding hosts that want
// to mount a scrape endpoint.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordCacheHit(path string) {
	m.cacheHits.WithLabelValues(path).Inc()
}

func (m *PrometheusMetrics) RecordCacheMiss(path string) {
	m.cacheMisses.WithLabelValues(path).Inc()
}

func (m *PrometheusMetrics) RecordCoalescedJoin(path string) {
	m.coalescedJoins.WithLabelValues(path).Inc()
}

func (m *PrometheusMetrics) RecordRetry(method, path string) {
	m.retries.WithLabelValues(method, path).Inc()
}

func (m *PrometheusMetrics) RecordCredentialFallback() {
	m.credentialFallbacks.Inc()
}

func (m *PrometheusMetrics) RecordCheckout(outcome string) {
	m.checkouts.WithLabelValues(outcome).Inc()
}

// CounterValue reads the current value of an unlabeled counter by
// name, creating it on first use. Labeled counters are read through
// the registry instead.
func (m *PrometheusMetrics) CounterValue(name string) float64 {
	m.mu.RLock()
	counter, ok := m.simple[name]
	m.mu.RUnlock()

	if !ok {
		if name == "credential_fallbacks_total" {
			counter = m.credentialFallbacks
		} else {
			m.mu.Lock()
			counter, ok = m.simple[name]
			if !ok {
				counter = prometheus.NewCounter(prometheus.CounterOpts{Name: name})
				m.simple[name] = counter
			}
			m.mu.Unlock()
		}
	}

	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		m.logger.Error("Failed to read counter", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}
