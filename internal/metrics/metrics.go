package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

// Metrics holds all Prometheus metrics for pmteam. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Conversation metrics
	ChatTurns    *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec
	Mutations    *prometheus.CounterVec

	// Intelligence chain metrics
	TierAttempts    *prometheus.CounterVec
	TierLatency     *prometheus.HistogramVec
	DegradedReplies *prometheus.CounterVec

	// Plan metrics
	DiffRequests    prometheus.Counter
	StoreRecoveries *prometheus.CounterVec

	// Transport metrics
	HTTPRequests *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ChatTurns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmteam_chat_turns_total",
				Help: "Total number of chat turns by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pmteam_chat_turn_duration_seconds",
				Help:    "Duration of chat turns in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmteam_mutations_total",
				Help: "Total number of plan mutations applied by mode",
			},
			[]string{"mode"},
		),
		TierAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmteam_tier_attempts_total",
				Help: "Total number of intelligence tier attempts by tier and status",
			},
			[]string{"tier", "status"},
		),
		TierLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pmteam_tier_latency_seconds",
				Help:    "Latency of intelligence tier attempts in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"tier"},
		),
		DegradedReplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmteam_degraded_replies_total",
				Help: "Replies produced after a higher tier failed, by answering tier",
			},
			[]string{"tier"},
		),
		DiffRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pmteam_diff_requests_total",
				Help: "Total number of plan diffs computed",
			},
		),
		StoreRecoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmteam_store_recoveries_total",
				Help: "Corrupt stored artifacts reset to empty defaults",
			},
			[]string{"artifact"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmteam_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmteam_errors_total",
				Help: "Total number of surfaced errors by error code",
			},
			[]string{"code"},
		),
	}
}

// RecordTurn records a completed chat turn.
func (m *Metrics) RecordTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChatTurns.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordMutation records an applied mutation.
func (m *Metrics) RecordMutation(mode string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(mode).Inc()
}

// RecordTier records one tier attempt.
func (m *Metrics) RecordTier(tier, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.TierAttempts.WithLabelValues(tier, status).Inc()
	m.TierLatency.WithLabelValues(tier).Observe(d.Seconds())
}

// RecordDegraded records a reply produced after a higher tier failed.
func (m *Metrics) RecordDegraded(tier string) {
	if m == nil {
		return
	}
	m.DegradedReplies.WithLabelValues(tier).Inc()
}

// RecordDiff records a computed diff.
func (m *Metrics) RecordDiff() {
	if m == nil {
		return
	}
	m.DiffRequests.Inc()
}

// RecordRecovery records a corrupt artifact being reset.
func (m *Metrics) RecordRecovery(artifact string) {
	if m == nil {
		return
	}
	m.StoreRecoveries.WithLabelValues(artifact).Inc()
}

// RecordHTTP records a served HTTP request.
func (m *Metrics) RecordHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
}

// RecordError records a surfaced error by its code, or "unknown".
func (m *Metrics) RecordError(err error) {
	if m == nil || err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
