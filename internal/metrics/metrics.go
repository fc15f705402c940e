package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for provider calls, OCR and review runs.
type Metrics struct {
	// Provider attempts by provider and outcome (success, error, timeout, refusal).
	ProviderRequests *prometheus.CounterVec

	// Response cache lookups by result (hit, miss, expired).
	CacheLookups *prometheus.CounterVec

	// Provider call latency by provider
	ProviderLatency *prometheus.HistogramVec

	// OCR pages by outcome
	OCRPages *prometheus.CounterVec

	// Agent runs by agent and outcome
	AgentRuns *prometheus.CounterVec

	// Review runs by terminal status
	ReviewRuns *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg. A nil reg registers
// with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docreview_provider_requests_total",
			Help: "Total LLM provider attempts by provider and outcome",
		}, []string{"provider", "outcome"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docreview_llm_cache_lookups_total",
			Help: "Total response cache lookups by result",
		}, []string{"result"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docreview_provider_request_duration_seconds",
			Help:    "Duration of LLM provider attempts",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),

		OCRPages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docreview_ocr_pages_total",
			Help: "Total OCR page attempts by outcome",
		}, []string{"outcome"}),

		AgentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docreview_agent_runs_total",
			Help: "Total agent runs by agent and outcome",
		}, []string{"agent", "outcome"}),

		ReviewRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docreview_review_runs_total",
			Help: "Total review runs by terminal status",
		}, []string{"status"}),
	}
}

// ObserveProvider records one provider attempt.
func (m *Metrics) ObserveProvider(provider, outcome string, d time.Duration) {
	if m != nil {
		m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncrementCache records a cache lookup result.
func (m *Metrics) IncrementCache(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// IncrementOCRPage records one OCR page outcome.
func (m *Metrics) IncrementOCRPage(outcome string) {
	if m != nil {
		m.OCRPages.WithLabelValues(outcome).Inc()
	}
}

// IncrementAgent records one agent outcome.
func (m *Metrics) IncrementAgent(agent, outcome string) {
	if m != nil {
		m.AgentRuns.WithLabelValues(agent, outcome).Inc()
	}
}

// IncrementReview records a finished review run.
func (m *Metrics) IncrementReview(status string) {
	if m != nil {
		m.ReviewRuns.WithLabelValues(status).Inc()
	}
}
