package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socialchat"

// Failure reasons for MessagesFailed.
const (
	ReasonValidation  = "validation"
	ReasonPersistence = "persistence"
	ReasonInternal    = "internal"
)

// Metrics holds the realtime collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  *prometheus.CounterVec
	OnlineUsers       prometheus.Gauge
	Broadcasts        prometheus.Counter
	MessagesPersisted prometheus.Counter
	MessagesDelivered prometheus.Counter
	MessagesFailed    *prometheus.CounterVec
	PersistDuration   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open websocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_attempts_total",
			Help:      "Websocket connection attempts by outcome.",
		}, []string{"outcome"}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Identities currently in the presence registry.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_broadcasts_total",
			Help:      "online_users broadcasts sent.",
		}),
		MessagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Private messages stored.",
		}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Private messages pushed to an online recipient.",
		}),
		MessagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_failed_total",
			Help:      "Private messages rejected, by reason.",
		}, []string{"reason"}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_persist_seconds",
			Help:      "Time spent in the message store create call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectionsActive,
		m.ConnectionsTotal,
		m.OnlineUsers,
		m.Broadcasts,
		m.MessagesPersisted,
		m.MessagesDelivered,
		m.MessagesFailed,
		m.PersistDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ConnectionAttempt(outcome string) {
	if m == nil {
		return
	}
	m.ConnectionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) PresenceChanged(online int) {
	if m == nil {
		return
	}
	m.OnlineUsers.Set(float64(online))
	m.Broadcasts.Inc()
}

func (m *Metrics) MessagePersisted(seconds float64) {
	if m == nil {
		return
	}
	m.MessagesPersisted.Inc()
	m.PersistDuration.Observe(seconds)
}

func (m *Metrics) MessageDelivered() {
	if m == nil {
		return
	}
	m.MessagesDelivered.Inc()
}

func (m *Metrics) MessageFailed(reason string) {
	if m == nil {
		return
	}
	m.MessagesFailed.WithLabelValues(reason).Inc()
}
