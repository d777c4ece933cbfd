// Package observability exports model and HTTP activity as Prometheus
// metrics. Model activity arrives as annotation events.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wbrown/dadacore/markov/annotations"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Events          *prometheus.CounterVec
	LearnedTokens   prometheus.Counter
	GenerateLatency *prometheus.HistogramVec
	GeneratedWords  prometheus.Histogram
	CacheRequests   *prometheus.CounterVec
	CacheEvictions  prometheus.Counter
	CacheWriteBacks prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments with a fresh registry
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewMetricsWith(namespace, reg, reg)
}

// NewMetricsWith registers the instruments with reg and serves them from gatherer
func NewMetricsWith(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Model and cache events by name.",
		}, []string{"event"}),
		LearnedTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_tokens_total",
			Help:      "Tokens recorded by successful learn calls.",
		}),
		GenerateLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generate_latency_seconds",
			Help:      "Time to generate one sequence, by mode and outcome.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"mode", "outcome"}),
		GeneratedWords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generated_tokens",
			Help:      "Tokens per generated sequence.",
			Buckets:   []float64{2, 4, 8, 16, 32, 64, 128, 256},
		}),
		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache reads by result.",
		}, []string{"result"}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries dropped from the cache.",
		}),
		CacheWriteBacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writebacks_total",
			Help:      "Dirty entries written to the store.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: gatherer,
	}
}

// Handler returns an annotation handler that feeds the instruments
func (m *Metrics) Handler() annotations.Handler {
	return m.Observe
}

// Observe records one annotation event
func (m *Metrics) Observe(event annotations.Event) {
	m.Events.WithLabelValues(event.Name).Inc()

	switch event.Name {
	case annotations.LearnSequence:
		m.LearnedTokens.Add(float64(intData(event, "tokens.count")))
	case annotations.GenerateCompleted:
		m.GenerateLatency.WithLabelValues(stringData(event, "mode"), "ok").Observe(event.Latency.Seconds())
		m.GeneratedWords.Observe(float64(intData(event, "words.count")))
	case annotations.GenerateFailed:
		m.GenerateLatency.WithLabelValues(stringData(event, "mode"), "error").Observe(event.Latency.Seconds())
	case annotations.CacheHit:
		m.CacheRequests.WithLabelValues("hit").Inc()
	case annotations.CacheMiss:
		m.CacheRequests.WithLabelValues("miss").Inc()
	case annotations.CacheEvicted:
		m.CacheEvictions.Add(float64(intData(event, "evicted.count")))
		m.CacheWriteBacks.Add(float64(intData(event, "written.count")))
	case annotations.CacheFlushed:
		m.CacheWriteBacks.Add(float64(intData(event, "written.count")))
	}
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// HTTPHandler serves the registry in the Prometheus exposition format
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func intData(event annotations.Event, key string) int {
	switch v := event.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func stringData(event annotations.Event, key string) string {
	if s, ok := event.Data[key].(string); ok {
		return s
	}
	return "unknown"
}
