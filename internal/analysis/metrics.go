package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by each run.
type Metrics struct {
	Runs      *prometheus.CounterVec
	Anomalies *prometheus.CounterVec
	Events    *prometheus.CounterVec
	Duration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breachline",
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"outcome"}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breachline",
			Name:      "anomalies_total",
			Help:      "Anomalies detected by kind and severity.",
		}, []string{"kind", "severity"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breachline",
			Name:      "events_analyzed_total",
			Help:      "Input events analysed by stream.",
		}, []string{"stream"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "breachline",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a full analysis run.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	reg.MustRegister(m.Runs, m.Anomalies, m.Events, m.Duration)
	return m
}

func (m *Metrics) observe(r *Report, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Runs.WithLabelValues("error").Inc()
		return
	}
	m.Runs.WithLabelValues("ok").Inc()
	m.Duration.Observe(r.Duration.Seconds())
	m.Events.WithLabelValues("signin").Add(float64(r.Counts.SignIns))
	m.Events.WithLabelValues("legacy").Add(float64(r.Counts.Legacy))
	m.Events.WithLabelValues("audit").Add(float64(r.Counts.Audits))
	m.Events.WithLabelValues("mailbox").Add(float64(r.Counts.Mailbox))
	for _, a := range r.Anomalies {
		m.Anomalies.WithLabelValues(string(a.Kind), a.Severity.String()).Inc()
	}
}
