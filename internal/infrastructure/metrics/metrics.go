package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the editor's collectors
type Metrics struct {
	registry prometheus.Gatherer

	mutations   *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	history     *prometheus.CounterVec
	validations *prometheus.CounterVec
	saves       *prometheus.CounterVec
	sessions    prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg uses
// a fresh registry, which Handler then serves.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleeditor_mutations_total",
				Help: "Applied rule graph changes by kind",
			},
			[]string{"kind"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleeditor_rejections_total",
				Help: "Rejected mutation requests by operation and reason",
			},
			[]string{"operation", "reason"},
		),
		history: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleeditor_history_total",
				Help: "Undo and redo steps performed",
			},
			[]string{"direction"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleeditor_validations_total",
				Help: "Full-graph validations by result",
			},
			[]string{"result"},
		),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ruleeditor_saves_total",
				Help: "Rule saves by result",
			},
			[]string{"result"},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ruleeditor_open_sessions",
				Help: "Editing sessions currently open",
			},
		),
	}
	reg.MustRegister(m.mutations, m.rejections, m.history, m.validations, m.saves, m.sessions)
	return m
}

// Mutation counts an applied change
func (m *Metrics) Mutation(kind string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind).Inc()
}

// Rejection counts a rejected mutation request
func (m *Metrics) Rejection(operation, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(operation, reason).Inc()
}

// Undo counts an undo step
func (m *Metrics) Undo() {
	if m == nil {
		return
	}
	m.history.WithLabelValues("undo").Inc()
}

// Redo counts a redo step
func (m *Metrics) Redo() {
	if m == nil {
		return
	}
	m.history.WithLabelValues("redo").Inc()
}

// Validation counts a full-graph validation
func (m *Metrics) Validation(err error) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result(err)).Inc()
}

// Save counts a save attempt
func (m *Metrics) Save(err error) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result(err)).Inc()
}

// SessionOpened increments the open session gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the open session gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
