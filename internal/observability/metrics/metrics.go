package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for the turn pipeline.
type TurnMetrics struct {
	turnsTotal          *prometheus.CounterVec
	turnLatency         *prometheus.HistogramVec
	decisionLatency     prometheus.Histogram
	persistenceFailures prometheus.Counter
	templateFailures    prometheus.Counter
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "exchange",
			Name:      "turns_total",
			Help:      "Total processed turns",
		}, []string{"source", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "argus",
			Subsystem: "exchange",
			Name:      "turn_latency_seconds",
			Help:      "Latency of full turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		decisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "argus",
			Subsystem: "decide",
			Name:      "predict_latency_seconds",
			Help:      "Latency of decision tree evaluation",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 10, 6),
		}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "exchange",
			Name:      "persistence_failures_total",
			Help:      "Turns whose persistence failed after a response was produced",
		}),
		templateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "respond",
			Name:      "template_failures_total",
			Help:      "Template rendering failures",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.decisionLatency, m.persistenceFailures, m.templateFailures)
	return m
}

func (m *TurnMetrics) ObserveTurn(source, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(source, status).Inc()
	m.turnLatency.WithLabelValues(source).Observe(seconds)
}

func (m *TurnMetrics) ObserveDecision(seconds float64) {
	if m == nil {
		return
	}
	m.decisionLatency.Observe(seconds)
}

func (m *TurnMetrics) ObservePersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

func (m *TurnMetrics) ObserveTemplateFailure() {
	if m == nil {
		return
	}
	m.templateFailures.Inc()
}
