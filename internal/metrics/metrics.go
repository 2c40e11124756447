package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	connections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "connections_total",
			Help:      "Accepted client connections.",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "innkeeper",
			Name:      "sessions_active",
			Help:      "Sessions currently held by workers.",
		},
	)

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "commands_total",
			Help:      "Protocol commands by name.",
		},
		[]string{"command"},
	)

	reservations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "reservations_total",
			Help:      "Successful room reservations.",
		},
	)

	releases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "releases_total",
			Help:      "Successful booking releases.",
		},
	)

	noAvailability = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "no_availability_total",
			Help:      "Reservation attempts refused because the date was full.",
		},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innkeeper",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(connections, activeSessions, commands,
			reservations, releases, noAvailability, logins)
	})
}

func IncConnections()        { connections.Inc() }
func SessionStarted()        { activeSessions.Inc() }
func SessionEnded()          { activeSessions.Dec() }
func IncCommand(name string) { commands.WithLabelValues(name).Inc() }
func IncReservations()       { reservations.Inc() }
func IncReleases()           { releases.Inc() }
func IncNoAvailability()     { noAvailability.Inc() }

// IncLogin records a login attempt; outcome is "ok", "bad_password",
// "unknown_user" or "throttled".
func IncLogin(outcome string) { logins.WithLabelValues(outcome).Inc() }
