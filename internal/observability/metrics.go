package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the runtime's Prometheus metrics. Create it once at
// startup; promauto registers with the default registry, so a second call
// in the same process panics.
type Metrics struct {
	// TurnCounter counts completed agent turns.
	// Labels: outcome (reply|echo|confirm_prompt|cancelled|error|loop_cap)
	TurnCounter *prometheus.CounterVec

	// LLMRequestCounter counts chat-completion calls.
	// Labels: provider, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures chat-completion latency in seconds.
	// Labels: provider
	LLMRequestDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts gateway executions.
	// Labels: tool, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures gateway execution time in seconds.
	// Labels: tool
	ToolExecutionDuration *prometheus.HistogramVec

	// SchedulerTicks counts scheduler wakeups.
	SchedulerTicks prometheus.Counter

	// SchedulerFired counts due tasks published.
	SchedulerFired prometheus.Counter

	// BusPublished counts bus publishes by topic.
	BusPublished *prometheus.CounterVec

	// ErrorCounter tracks errors by component and type.
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_turns_total",
				Help: "Total agent turns by outcome",
			},
			[]string{"outcome"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_llm_requests_total",
				Help: "Total LLM requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_llm_request_duration_seconds",
				Help:    "LLM request latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_tool_executions_total",
				Help: "Total tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_tool_execution_duration_seconds",
				Help:    "Tool execution time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		SchedulerTicks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "steward_scheduler_ticks_total",
				Help: "Total scheduler wakeups",
			},
		),
		SchedulerFired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "steward_scheduler_fired_total",
				Help: "Total due tasks published",
			},
		),
		BusPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_bus_published_total",
				Help: "Total bus publishes by topic",
			},
			[]string{"topic"},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_errors_total",
				Help: "Total errors by component and type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordTurn increments the turn counter for an outcome.
func (m *Metrics) RecordTurn(outcome string) {
	if m == nil {
		return
	}
	m.TurnCounter.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest records one chat-completion call.
func (m *Metrics) RecordLLMRequest(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordToolExecution records one gateway execution.
func (m *Metrics) RecordToolExecution(tool, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordSchedulerTick records a wakeup.
func (m *Metrics) RecordSchedulerTick() {
	if m == nil {
		return
	}
	m.SchedulerTicks.Inc()
}

// RecordSchedulerFired records one due task published.
func (m *Metrics) RecordSchedulerFired() {
	if m == nil {
		return
	}
	m.SchedulerFired.Inc()
}

// RecordBusPublish increments the publish counter for a topic.
func (m *Metrics) RecordBusPublish(topic string) {
	if m == nil {
		return
	}
	m.BusPublished.WithLabelValues(topic).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
