package observability

import (
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on top of a private Prometheus registry.
// Collectors are created lazily on first use; the label set of a metric is
// fixed by the tags of that first call, and later calls with a different
// label set are dropped.
type PrometheusMetrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	mu         sync.Mutex
	counters   map[string]*vecEntry[*prometheus.CounterVec]
	gauges     map[string]*vecEntry[*prometheus.GaugeVec]
	histograms map[string]*vecEntry[*prometheus.HistogramVec]
}

type vecEntry[V any] struct {
	vec    V
	labels []string
}

// NewPrometheusMetrics creates a registry with Go runtime collectors registered.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "synapse_goroutines",
		Help: "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})
	registry.MustRegister(goroutines)

	return &PrometheusMetrics{
		registry:   registry,
		handler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		counters:   make(map[string]*vecEntry[*prometheus.CounterVec]),
		gauges:     make(map[string]*vecEntry[*prometheus.GaugeVec]),
		histograms: make(map[string]*vecEntry[*prometheus.HistogramVec]),
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *PrometheusMetrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	entry, ok := m.counters[name]
	if !ok {
		labels := tagKeys(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name) + "_total",
			Help: name,
		}, labels)
		if err := m.registry.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		entry = &vecEntry[*prometheus.CounterVec]{vec: vec, labels: labels}
		m.counters[name] = entry
	}
	m.mu.Unlock()

	if values, ok := labelValues(entry.labels, tags); ok {
		entry.vec.WithLabelValues(values...).Add(float64(value))
	}
}

func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	entry, ok := m.gauges[name]
	if !ok {
		labels := tagKeys(tags)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: promName(name),
			Help: name,
		}, labels)
		if err := m.registry.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		entry = &vecEntry[*prometheus.GaugeVec]{vec: vec, labels: labels}
		m.gauges[name] = entry
	}
	m.mu.Unlock()

	if values, ok := labelValues(entry.labels, tags); ok {
		entry.vec.WithLabelValues(values...).Set(value)
	}
}

func (m *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.observe(promName(name), name, value, tags)
}

func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.observe(promName(name)+"_seconds", name, duration.Seconds(), tags)
}

func (m *PrometheusMetrics) observe(metricName, help string, value float64, tags []Tag) {
	m.mu.Lock()
	entry, ok := m.histograms[metricName]
	if !ok {
		labels := tagKeys(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricName,
			Help:    help,
			Buckets: prometheus.DefBuckets,
		}, labels)
		if err := m.registry.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		entry = &vecEntry[*prometheus.HistogramVec]{vec: vec, labels: labels}
		m.histograms[metricName] = entry
	}
	m.mu.Unlock()

	if values, ok := labelValues(entry.labels, tags); ok {
		entry.vec.WithLabelValues(values...).Observe(value)
	}
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func tagKeys(tags []Tag) []string {
	keys := make([]string, 0, len(tags))
	for _, t := range tags {
		keys = append(keys, promName(t.Key))
	}
	sort.Strings(keys)
	return keys
}

func labelValues(labels []string, tags []Tag) ([]string, bool) {
	if len(labels) != len(tags) {
		return nil, false
	}
	byKey := make(map[string]string, len(tags))
	for _, t := range tags {
		byKey[promName(t.Key)] = t.Value
	}
	values := make([]string, 0, len(labels))
	for _, l := range labels {
		v, ok := byKey[l]
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}
