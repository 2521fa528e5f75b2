// Package metrics exposes Prometheus instrumentation for the assistant.
//
// All recording methods are safe on a nil *Metrics, so components can be
// built without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "avotech"

// Metrics groups the collectors recorded by the assistant's components.
type Metrics struct {
	inbound        *prometheus.CounterVec
	replies        prometheus.Counter
	transitions    *prometheus.CounterVec
	searches       *prometheus.CounterVec
	enrichments    *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
	correlated     *prometheus.CounterVec
	transcriptions *prometheus.CounterVec
	externalCalls  *prometheus.HistogramVec
	activeSessions prometheus.Gauge
	expiredOrders  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound channel events by kind (text, voice, media, own, group).",
		}, []string{"kind"}),
		replies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies sent to users.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_transitions_total",
			Help:      "Dialogue phase transitions.",
		}, []string{"from", "to"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pharmacy_searches_total",
			Help:      "Pharmacy searches by outcome.",
		}, []string{"outcome"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Live info lookups by source and outcome.",
		}, []string{"source", "outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_dispatches_total",
			Help:      "Order dispatch attempts by outcome.",
		}, []string{"outcome"}),
		correlated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pharmacy_replies_total",
			Help:      "Pharmacy replies matched to pending orders.",
		}, []string{"answer"}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Voice transcriptions by outcome.",
		}, []string{"outcome"}),
		externalCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to external services.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		expiredOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_pending_orders_total",
			Help:      "Pending orders expired without a pharmacy reply.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.inbound, m.replies, m.transitions, m.searches, m.enrichments,
			m.dispatches, m.correlated, m.transcriptions, m.externalCalls,
			m.activeSessions, m.expiredOrders,
		)
	}
	return m
}

// Inbound counts an inbound event of the given kind.
func (m *Metrics) Inbound(kind string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(kind).Inc()
}

// Reply counts a reply sent to a user.
func (m *Metrics) Reply() {
	if m == nil {
		return
	}
	m.replies.Inc()
}

// Transition counts a dialogue phase change.
func (m *Metrics) Transition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Search counts a pharmacy search ("found", "empty", "address_not_found", "unavailable").
func (m *Metrics) Search(outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
}

// Enrichment counts a live info lookup against a source.
func (m *Metrics) Enrichment(source, outcome string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(source, outcome).Inc()
}

// Dispatch counts an order dispatch attempt.
func (m *Metrics) Dispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome).Inc()
}

// Correlated counts a pharmacy reply matched to a pending order.
func (m *Metrics) Correlated(affirmative bool) {
	if m == nil {
		return
	}
	answer := "other"
	if affirmative {
		answer = "yes"
	}
	m.correlated.WithLabelValues(answer).Inc()
}

// Transcription counts a transcription attempt.
func (m *Metrics) Transcription(outcome string) {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(outcome).Inc()
}

// ObserveCall records the latency of an external call started at start.
func (m *Metrics) ObserveCall(service string, start time.Time) {
	if m == nil {
		return
	}
	m.externalCalls.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// ExpiredOrder counts a pending order dropped by maintenance.
func (m *Metrics) ExpiredOrder() {
	if m == nil {
		return
	}
	m.expiredOrders.Inc()
}
