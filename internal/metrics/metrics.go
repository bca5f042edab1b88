// Package metrics exposes the service's Prometheus collectors on a private registry.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reliefmap"

type Metrics struct {
	registry *prometheus.Registry

	analysisRequests    *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
	analysisSalvaged    prometheus.Counter
	llmDuration         *prometheus.HistogramVec
	diaryFeedback       *prometheus.CounterVec
	exports             *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Analysis requests by outcome.",
		}, []string{"outcome"}),
		rateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Analysis requests rejected by the rate limiter, by window.",
		}, []string{"window"}),
		analysisSalvaged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_salvaged_total",
			Help:      "Analyses where at least one field was replaced by a default.",
		}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of LLM provider calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}, []string{"provider", "outcome"}),
		diaryFeedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diary_feedback_total",
			Help:      "Diary feedback requests by outcome.",
		}, []string{"outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Assessment exports by format.",
		}, []string{"format"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.analysisRequests,
		m.rateLimitRejections,
		m.analysisSalvaged,
		m.llmDuration,
		m.diaryFeedback,
		m.exports,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) AnalysisOutcome(outcome string) {
	if m == nil {
		return
	}
	m.analysisRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimited(window string) {
	if m == nil {
		return
	}
	m.rateLimitRejections.WithLabelValues(window).Inc()
}

func (m *Metrics) Salvaged() {
	if m == nil {
		return
	}
	m.analysisSalvaged.Inc()
}

func (m *Metrics) ObserveLLM(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmDuration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

func (m *Metrics) DiaryFeedback(outcome string) {
	if m == nil {
		return
	}
	m.diaryFeedback.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Export(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}
