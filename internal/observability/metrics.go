// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
)

// sessionRoutes counts route changes of session controllers. It is package
// level so the CLI can record routes without holding the Metrics value.
var sessionRoutes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oryen_session_routes_total",
		Help: "Total number of session controller route changes by destination",
	},
	[]string{"route"},
)

// RecordRoute increments the route change counter.
func RecordRoute(route string) {
	sessionRoutes.WithLabelValues(route).Inc()
}

// Metrics records flow engine activity. It implements flow.Observer.
type Metrics struct {
	Transitions  *prometheus.CounterVec
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	Completions  *prometheus.CounterVec
}

var _ flow.Observer = (*Metrics)(nil)

// NewMetrics creates the flow metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oryen_flow_transitions_total",
				Help: "Total number of flow transitions by mode, actor kind, step and transition",
			},
			[]string{"mode", "kind", "step", "transition"},
		),
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oryen_directory_calls_total",
				Help: "Total number of identity directory calls by operation and result",
			},
			[]string{"op", "result"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oryen_directory_call_duration_seconds",
				Help:    "Identity directory call latency by operation",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"op"},
		),
		Completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oryen_flow_completions_total",
				Help: "Total number of completed flows by mode and actor kind",
			},
			[]string{"mode", "kind"},
		),
	}

	reg.MustRegister(m.Transitions, m.Calls, m.CallDuration, m.Completions, sessionRoutes)
	return m
}

// ObserveTransition implements flow.Observer.
func (m *Metrics) ObserveTransition(mode flow.Mode, kind identity.ActorKind, step flow.StepID, t flow.Transition) {
	m.Transitions.WithLabelValues(mode.String(), kind.String(), string(step), t.String()).Inc()
	if t == flow.Completed {
		m.Completions.WithLabelValues(mode.String(), kind.String()).Inc()
	}
}

// ObserveCall implements flow.Observer.
func (m *Metrics) ObserveCall(op, result string, elapsed time.Duration) {
	m.Calls.WithLabelValues(op, result).Inc()
	m.CallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
