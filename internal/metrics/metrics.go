package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "liveboard"

var (
	// Connections counts clients registered with the hub.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Connections currently registered with the hub.",
	})

	// Presenters counts connections holding a privileged session.
	Presenters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "presenters",
		Help:      "Connections that authenticated with the admin secret.",
	})

	// Viewers counts members of the current token's broadcast group.
	Viewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "viewers",
		Help:      "Connections joined to the current room token.",
	})

	// Messages tracks the size of the message log.
	Messages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "messages",
		Help:      "Messages currently in the room log.",
	})

	// Commands counts commands processed by the hub, by kind and outcome.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Commands processed by the hub.",
	}, []string{"command", "outcome"})

	// Events counts events queued to clients, by kind.
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Events queued for delivery to clients.",
	}, []string{"event"})

	// Evictions counts clients dropped for not draining their queue.
	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evictions_total",
		Help:      "Clients evicted because their event queue was full.",
	})

	// Rotations counts token changes, by cause.
	Rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rotations_total",
		Help:      "Room token rotations.",
	}, []string{"cause"})
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
