package realtime

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the realtime collectors. Each instance owns its registry so
// several modules can coexist in one process (tests).
type Metrics struct {
	registry *prometheus.Registry

	Connections    prometheus.Gauge
	ConnectedUsers prometheus.Gauge
	Broadcasts     *prometheus.CounterVec
	DroppedFrames  prometheus.Counter
	InboundEvents  *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
}

// NewMetrics creates the realtime collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Current number of live client connections",
		}),
		ConnectedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connected_users",
			Help: "Current number of users with at least one connection",
		}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_broadcasts_total",
			Help: "Total number of room broadcasts by event name",
		}, []string{"event"}),
		DroppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "realtime_dropped_frames_total",
			Help: "Frames not delivered because the connection was closed or its buffer was full",
		}),
		InboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_inbound_messages_total",
			Help: "Client messages received by event name",
		}, []string{"event"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_store_errors_total",
			Help: "Failed ephemeral store calls by operation",
		}, []string{"op"}),
	}
}

// Handler exposes the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) connectionOpened(newUser bool) {
	if m == nil {
		return
	}
	m.Connections.Inc()
	if newUser {
		m.ConnectedUsers.Inc()
	}
}

func (m *Metrics) connectionClosed(lastForUser bool) {
	if m == nil {
		return
	}
	m.Connections.Dec()
	if lastForUser {
		m.ConnectedUsers.Dec()
	}
}

func (m *Metrics) broadcast(event string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(event).Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.DroppedFrames.Inc()
}

func (m *Metrics) inbound(event string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) storeError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}
