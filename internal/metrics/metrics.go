package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the game server collectors. A registerer is injected so tests
// can use an isolated registry.
type Metrics struct {
	ConnectedPlayers prometheus.Gauge
	SquaresCaptured  prometheus.Counter
	SquaresFailed    prometheus.Counter
	MessagesReceived prometheus.Counter
}

func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_players",
			Help:      "Number of players currently joined",
		}),
		SquaresCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squares_captured_total",
			Help:      "Total number of captured squares",
		}),
		SquaresFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squares_failed_total",
			Help:      "Total number of failed capture attempts",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of client messages received",
		}),
	}

	reg.MustRegister(
		m.ConnectedPlayers,
		m.SquaresCaptured,
		m.SquaresFailed,
		m.MessagesReceived,
	)

	return m
}

// RegisterQueueDepth - exposes the broadcast queue depth as a gauge backed by
// the given callback.
func RegisterQueueDepth(namespace string, reg prometheus.Registerer, depth func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "broadcast_queue_depth",
		Help:      "Events waiting for broadcast fan-out",
	}, func() float64 {
		return float64(depth())
	}))
}
