package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes, shared by logs, metrics and the diagnostics store.
const (
	OutcomeCommitted        = "committed"
	OutcomeTransportFailure = "transport_failure"
	OutcomeMalformedOutput  = "malformed_output"
	OutcomeSchemaRejected   = "schema_rejected"
)

// Metrics holds the Prometheus collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	generations   *prometheus.CounterVec
	llmLatency    prometheus.Histogram
	llmTokens     *prometheus.CounterVec
	components    prometheus.Histogram
	historyOps    *prometheus.CounterVec
	historyLength prometheus.Gauge
	rateLimited   prometheus.Counter
	wsClients     prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg gets a fresh
// registry with the Go runtime and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		generations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uiforge_generations_total",
				Help: "Generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		llmLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uiforge_llm_latency_seconds",
				Help:    "Latency of LLM planner calls",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		llmTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uiforge_llm_tokens_total",
				Help: "Tokens billed by the LLM provider",
			},
			[]string{"model", "direction"},
		),
		components: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uiforge_committed_components",
				Help:    "Components per committed version after sanitizing",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		historyOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uiforge_history_operations_total",
				Help: "History operations by kind and whether the cursor moved",
			},
			[]string{"op", "applied"},
		),
		historyLength: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "uiforge_history_versions",
				Help: "Number of versions in the session history",
			},
		),
		rateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Name: "uiforge_rate_limited_total",
				Help: "Requests refused by the rate limiter",
			},
		),
		wsClients: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "uiforge_websocket_clients",
				Help: "Connected WebSocket clients",
			},
		),
	}
}

// ObserveGeneration counts one attempt. latency is zero when no LLM call was
// made. components is only recorded for committed attempts.
func (m *Metrics) ObserveGeneration(outcome string, latency time.Duration, components int) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	if latency > 0 {
		m.llmLatency.Observe(latency.Seconds())
	}
	if outcome == OutcomeCommitted {
		m.components.Observe(float64(components))
	}
}

// ObserveTokens adds the token usage of one LLM call.
func (m *Metrics) ObserveTokens(model string, input, output int) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues(model, "input").Add(float64(input))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(output))
}

// HistoryOp counts a history operation and records the resulting length.
func (m *Metrics) HistoryOp(op string, applied bool, length int) {
	if m == nil {
		return
	}
	a := "false"
	if applied {
		a = "true"
	}
	m.historyOps.WithLabelValues(op, a).Inc()
	m.historyLength.Set(float64(length))
}

// RateLimited counts a refused request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// SetWSClients records the number of connected WebSocket clients.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
