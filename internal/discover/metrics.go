package discover

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes discovery counters. A nil-safe zero value is not
// provided; use NewMetrics with a registry (tests pass a fresh one).
type Metrics struct {
	Rounds             prometheus.Counter
	ConnectionAttempts prometheus.Counter
	ConnectionFailures prometheus.Counter
	DevicesDiscovered  prometheus.Counter
	LinksCreated       prometheus.Counter
}

// NewMetrics creates and registers the discovery metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topodisc_rounds_total",
			Help: "Discovery rounds executed.",
		}),
		ConnectionAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topodisc_connection_attempts_total",
			Help: "Device connection attempts.",
		}),
		ConnectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topodisc_connection_failures_total",
			Help: "Failed device connection attempts.",
		}),
		DevicesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topodisc_devices_discovered_total",
			Help: "New devices merged into the graph.",
		}),
		LinksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topodisc_links_created_total",
			Help: "Links created in the graph.",
		}),
	}
	reg.MustRegister(m.Rounds, m.ConnectionAttempts, m.ConnectionFailures,
		m.DevicesDiscovered, m.LinksCreated)
	return m
}
