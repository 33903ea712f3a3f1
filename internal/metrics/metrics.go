// Package metrics exposes Prometheus collectors for rooms and connections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rooms       prometheus.Gauge
	Connections prometheus.Gauge
	Intents     *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	Dropped     prometheus.Counter
}

// New registers the collectors on reg. Passing a fresh registry keeps
// tests independent of the global one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "poker",
			Name:      "rooms_active",
			Help:      "Rooms currently in the directory.",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "poker",
			Name:      "connections_active",
			Help:      "Open WebSocket connections.",
		}),
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "intents_total",
			Help:      "Client intents received, by type.",
		}, []string{"type"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "intent_rejections_total",
			Help:      "Intents answered with a private error, by reason.",
		}, []string{"reason"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "broadcast_dropped_total",
			Help:      "Frames not queued because the peer was too slow.",
		}),
	}
}

func (m *Metrics) Intent(typ string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(typ).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(n))
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) DroppedFrames(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Dropped.Add(float64(n))
}
