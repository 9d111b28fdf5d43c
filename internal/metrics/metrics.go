// Package metrics счётчики Prometheus сервиса. Все коллекторы живут в
// собственном реестре, методы безопасны для nil-получателя.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medicaidready"

// Metrics набор коллекторов.
type Metrics struct {
	registry       *prometheus.Registry
	gateDecisions  *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	auditDropped   prometheus.Counter
	sweeperRevoked prometheus.Counter
}

// New создаёт реестр и регистрирует коллекторы.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_gate_decisions_total",
			Help:      "Access gate decisions by outcome and reason.",
		}, []string{"allowed", "reason"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Billing webhook events by type and reconciliation outcome.",
		}, []string{"type", "outcome"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_dropped_total",
			Help:      "Audit records dropped because the buffer was full.",
		}),
		sweeperRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_revoked_total",
			Help:      "Submissions revoked by the expiry sweeper.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gateDecisions,
		m.webhookEvents,
		m.auditDropped,
		m.sweeperRevoked,
	)
	return m
}

// Handler отдаёт метрики для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry нужен для тестов и дополнительных коллекторов.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) GateDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

func (m *Metrics) SweeperRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweeperRevoked.Add(float64(n))
}
