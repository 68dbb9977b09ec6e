package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide counters for the event log and delivery engine. Registered
// on the default registry and served by promhttp in the app wiring.
var (
	EventsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadcast_events_appended_total",
		Help: "Thread events appended to the log.",
	})
	EventsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadcast_events_removed_total",
		Help: "Thread events removed from the log (follow retractions and sweeps).",
	})
	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadcast_pushes_total",
		Help: "Pushes attempted to live connections, by result.",
	}, []string{"result"})
	CleanupRemovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadcast_cleanup_removals_total",
		Help: "Subscriptions removed because the connection was gone.",
	})
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "threadcast_connections_active",
		Help: "Currently attached WebSocket connections.",
	})
	ExpiredSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadcast_expired_follows_swept_total",
		Help: "Expired follow rows deleted by the retention sweeper.",
	})
)

// Push result label values.
const (
	PushOK        = "ok"
	PushGone      = "gone"
	PushTransient = "transient"
)
