package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cfgd"

// Result label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultPruned = "pruned"
)

// Metrics holds the server collectors.
type Metrics struct {
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec

	Notifications *prometheus.CounterVec
	Subscriptions *prometheus.GaugeVec
	Clients       prometheus.Gauge
	Databases     prometheus.Gauge

	JournalAppends *prometheus.CounterVec
	Compactions    *prometheus.CounterVec
	Recovered      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Remote calls served, by object kind, method and status.",
		}, []string{"object", "method", "status"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Time spent serving remote calls.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"object", "method"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "notifications_total",
			Help:      "Change notifications sent to subscribers, by result.",
		}, []string{"result"}),
		Subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "active",
			Help:      "Live subscriptions per database.",
		}, []string{"db"}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "clients",
			Help:      "Registered client endpoints.",
		}),
		Databases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "databases",
			Help:      "Open databases.",
		}),
		JournalAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "appends_total",
			Help:      "Journal lines appended, by operation.",
		}, []string{"op"}),
		Compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "compactions_total",
			Help:      "Journal compactions, by result.",
		}, []string{"result"}),
		Recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "items_total",
			Help:      "Journal items handled at startup, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Calls,
		m.CallDuration,
		m.Notifications,
		m.Subscriptions,
		m.Clients,
		m.Databases,
		m.JournalAppends,
		m.Compactions,
		m.Recovered,
	)
	return m
}

// ObserveCall records one served call.
func (m *Metrics) ObserveCall(object, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(object, method, status).Inc()
	m.CallDuration.WithLabelValues(object, method).Observe(d.Seconds())
}

// ObserveNotify records the outcome of one fan-out.
func (m *Metrics) ObserveNotify(delivered, failed, pruned int) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(ResultOK).Add(float64(delivered))
	m.Notifications.WithLabelValues(ResultFailed).Add(float64(failed))
	m.Notifications.WithLabelValues(ResultPruned).Add(float64(pruned))
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the registry the collectors live in.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// Register adds an extra collector, such as a PebbleCollector.
func (m *Metrics) Register(c prometheus.Collector) error {
	reg, ok := m.gatherer.(prometheus.Registerer)
	if !ok {
		return nil
	}
	return reg.Register(c)
}

// Unregister removes a collector added with Register.
func (m *Metrics) Unregister(c prometheus.Collector) {
	if reg, ok := m.gatherer.(prometheus.Registerer); ok {
		reg.Unregister(c)
	}
}
