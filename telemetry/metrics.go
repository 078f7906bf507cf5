package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects orchestration metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// VendorCalls counts chat-completion calls.
	// Labels: provider, model, status (success|error class)
	VendorCalls *prometheus.CounterVec

	// VendorDuration measures chat-completion latency in seconds.
	// Labels: provider, model
	VendorDuration *prometheus.HistogramVec

	// Tokens tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	Tokens *prometheus.CounterVec

	// ToolCalls counts dispatched capabilities.
	// Labels: kind (builtin|plugin), name, status (success|error code)
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures capability execution time in seconds.
	// Labels: kind
	ToolDuration *prometheus.HistogramVec

	// Outcomes counts finished orchestrations.
	// Labels: status (HTTP status), error_class ("" on success)
	Outcomes *prometheus.CounterVec

	// Dropped counts telemetry discarded by full queues.
	// Labels: queue (sink|usage)
	Dropped *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered, which suits tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VendorCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarter_vendor_calls_total",
				Help: "Total number of chat-completion calls by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		VendorDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smarter_vendor_call_duration_seconds",
				Help:    "Duration of chat-completion calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		Tokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarter_tokens_total",
				Help: "Total number of tokens by provider, model and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarter_tool_calls_total",
				Help: "Total number of tool and plugin dispatches by kind, name and status",
			},
			[]string{"kind", "name", "status"},
		),
		ToolDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smarter_tool_call_duration_seconds",
				Help:    "Duration of tool and plugin dispatches in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"kind"},
		),
		Outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarter_chat_outcomes_total",
				Help: "Total number of finished orchestrations by status and error class",
			},
			[]string{"status", "error_class"},
		),
		Dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smarter_telemetry_dropped_total",
				Help: "Total number of telemetry items dropped by a full queue",
			},
			[]string{"queue"},
		),
	}
}

// VendorCall records one chat-completion call. status is "success" or the
// error class.
func (m *Metrics) VendorCall(provider, model, status string, d time.Duration, promptTokens, completionTokens int64) {
	if m == nil {
		return
	}
	m.VendorCalls.WithLabelValues(provider, model, status).Inc()
	m.VendorDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if promptTokens > 0 {
		m.Tokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.Tokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// ToolCall records one capability dispatch. status is "success" or the
// tool error code.
func (m *Metrics) ToolCall(kind, name, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(kind, name, status).Inc()
	m.ToolDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Outcome records a finished orchestration.
func (m *Metrics) Outcome(status int, errorClass string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(strconv.Itoa(status), errorClass).Inc()
}

// EventDropped counts one dropped telemetry item.
func (m *Metrics) EventDropped(queue string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(queue).Inc()
}
