package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Export outcomes used as the "outcome" label
const (
	OutcomeSuccess = "success"
	OutcomeNoData  = "no_data"
	OutcomeFailed  = "failed"
)

// Metrics groups the service collectors on one registry
type Metrics struct {
	Registry *prometheus.Registry

	exports        *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	sessionsActive prometheus.Gauge
	webhooks       *prometheus.CounterVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walla",
			Name:      "exports_total",
			Help:      "Report exports by report kind and outcome.",
		}, []string{"report", "outcome"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "walla",
			Name:      "export_duration_seconds",
			Help:      "Wall time of a full export including browser launch.",
			Buckets:   []float64{5, 10, 20, 30, 60, 90, 120, 180, 300, 600},
		}, []string{"report"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "walla",
			Name:      "browser_sessions_active",
			Help:      "Browser sessions currently open.",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walla",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.exports,
		m.exportDuration,
		m.sessionsActive,
		m.webhooks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveExport records one finished export
func (m *Metrics) ObserveExport(report, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(report, outcome).Inc()
	m.exportDuration.WithLabelValues(report).Observe(elapsed.Seconds())
}

// SessionOpened and SessionClosed track live browser sessions
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessionsActive.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessionsActive.Dec()
	}
}

// ObserveWebhook records a delivery attempt
func (m *Metrics) ObserveWebhook(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailed
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}
