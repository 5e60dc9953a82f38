package metrics

import (
	"net/http"

	"alertcore/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds self-monitoring collectors of the alerting core.
// Params: collectors registered on one private registry.
// Returns: nil-safe recorder used by retry, notify, app, and ingest layers.
type Metrics struct {
	registry *prometheus.Registry

	NotificationsSent *prometheus.CounterVec
	RetryAttempts     *prometheus.CounterVec
	RetryOutcomes     *prometheus.CounterVec
	AlertEvents       *prometheus.CounterVec
	SamplesIngested   *prometheus.CounterVec
	ActiveAlerts      *prometheus.GaugeVec
	SuppressionsLive  prometheus.Gauge
	ResolutionSeconds prometheus.Gauge
}

// New creates collectors on a fresh registry.
// Params: withRuntime adds Go runtime and process collectors.
// Returns: metrics set; instances are isolated so tests can create many.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		NotificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertcore_notifications_sent_total",
				Help: "Notification delivery attempts by channel, severity and result",
			},
			[]string{"channel", "severity", "result"}, // result: delivered/sent/retry/failed
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertcore_retry_attempts_total",
				Help: "Operation attempts made by the retry executor",
			},
			[]string{"operation"},
		),
		RetryOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertcore_retry_outcomes_total",
				Help: "Final outcomes of retried operations",
			},
			[]string{"operation", "outcome"},
		),
		AlertEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertcore_alert_events_total",
				Help: "Alert lifecycle events recorded in history",
			},
			[]string{"type", "severity"},
		),
		SamplesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertcore_samples_ingested_total",
				Help: "Metric samples received by ingress transport",
			},
			[]string{"transport", "result"},
		),
		ActiveAlerts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alertcore_active_alerts",
				Help: "Active alerts by severity and status at last export",
			},
			[]string{"severity", "status"},
		),
		SuppressionsLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alertcore_suppressions_active",
			Help: "Non-expired suppression patterns at last export",
		}),
		ResolutionSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alertcore_alert_mean_resolution_seconds",
			Help: "Mean time to resolution over retained history",
		}),
	}
}

// Handler exposes registry in Prometheus text format.
// Params: none.
// Returns: HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAttempt counts one retry executor attempt.
// Params: operation name.
// Returns: none.
func (m *Metrics) ObserveAttempt(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

// ObserveOutcome counts final retry outcome.
// Params: operation name and outcome label.
// Returns: none.
func (m *Metrics) ObserveOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.RetryOutcomes.WithLabelValues(operation, outcome).Inc()
}

// NotificationAttempt counts one delivery attempt.
// Params: channel, alert severity, and result label.
// Returns: none.
func (m *Metrics) NotificationAttempt(channel domain.Channel, severity domain.Severity, result string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(string(channel), string(severity), result).Inc()
}

// AlertEvent counts one recorded lifecycle event.
func (m *Metrics) AlertEvent(event domain.AlertEvent) {
	if m == nil {
		return
	}
	m.AlertEvents.WithLabelValues(string(event.Type), string(event.Severity)).Inc()
}

// SampleIngested counts one ingress sample.
// Params: transport name (http/nats) and result (accepted/rejected).
// Returns: none.
func (m *Metrics) SampleIngested(transport, result string) {
	if m == nil {
		return
	}
	m.SamplesIngested.WithLabelValues(transport, result).Inc()
}

// ExportStatistics publishes gauges from a statistics snapshot.
// Params: aggregated statistics and live suppression count.
// Returns: none.
func (m *Metrics) ExportStatistics(stats domain.Statistics, byStatusSeverity map[domain.AlertStatus]map[domain.Severity]int, suppressions int) {
	if m == nil {
		return
	}
	m.ActiveAlerts.Reset()
	for _, status := range domain.Statuses() {
		if status == domain.AlertStatusResolved {
			continue
		}
		for _, severity := range domain.Severities() {
			m.ActiveAlerts.WithLabelValues(string(severity), string(status)).Set(float64(byStatusSeverity[status][severity]))
		}
	}
	m.SuppressionsLive.Set(float64(suppressions))
	m.ResolutionSeconds.Set(stats.AvgResolutionTime.Seconds())
}
