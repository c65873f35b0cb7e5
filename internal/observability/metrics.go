package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects orchestrator and content metrics.
type Metrics interface {
	RecordAttempt(labels AttemptLabels, latency time.Duration, inputTokens, outputTokens int, cost float64)
	RecordCompletion(status string)
	RecordContent(contentType, source string)
	SetProviderHealth(provider string, healthy bool)
}

// AttemptLabels contains metric dimensions for one adapter call.
// Status is "success" or the normalised error kind.
type AttemptLabels struct {
	Provider string
	Model    string
	Status   string
}

// PrometheusMetrics implements Metrics on a dedicated registry
type PrometheusMetrics struct {
	registry *prometheus.Registry

	attempts       *prometheus.CounterVec
	attemptLatency *prometheus.HistogramVec
	tokens         *prometheus.CounterVec
	cost           *prometheus.CounterVec
	completions    *prometheus.CounterVec
	content        *prometheus.CounterVec
	providerHealth *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collectors under namespace and registers them
// together with the Go runtime and process collectors.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Adapter calls by provider, model and outcome",
		}, []string{"provider", "model", "status"}),
		attemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_attempt_duration_seconds",
			Help:      "Adapter call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Tokens consumed by provider and direction",
		}, []string{"provider", "direction"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_dollars_total",
			Help:      "Estimated spend in dollars",
		}, []string{"provider", "model"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Orchestrated completions by final status",
		}, []string{"status"}),
		content: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_generated_total",
			Help:      "Generated content by type and source",
		}, []string{"type", "source"}),
		providerHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_healthy",
			Help:      "1 when the provider's last verdict was healthy",
		}, []string{"provider"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.attempts,
		m.attemptLatency,
		m.tokens,
		m.cost,
		m.completions,
		m.content,
		m.providerHealth,
	)

	return m
}

// Registry exposes the underlying registry
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusMetrics) RecordAttempt(labels AttemptLabels, latency time.Duration, inputTokens, outputTokens int, cost float64) {
	m.attempts.WithLabelValues(labels.Provider, labels.Model, labels.Status).Inc()
	m.attemptLatency.WithLabelValues(labels.Provider).Observe(latency.Seconds())
	m.tokens.WithLabelValues(labels.Provider, "input").Add(float64(inputTokens))
	m.tokens.WithLabelValues(labels.Provider, "output").Add(float64(outputTokens))
	if cost > 0 {
		m.cost.WithLabelValues(labels.Provider, labels.Model).Add(cost)
	}
}

func (m *PrometheusMetrics) RecordCompletion(status string) {
	m.completions.WithLabelValues(status).Inc()
}

func (m *PrometheusMetrics) RecordContent(contentType, source string) {
	m.content.WithLabelValues(contentType, source).Inc()
}

func (m *PrometheusMetrics) SetProviderHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	m.providerHealth.WithLabelValues(provider).Set(value)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) RecordAttempt(AttemptLabels, time.Duration, int, int, float64) {}
func (NopMetrics) RecordCompletion(string)                                      {}
func (NopMetrics) RecordContent(string, string)                                 {}
func (NopMetrics) SetProviderHealth(string, bool)                               {}
