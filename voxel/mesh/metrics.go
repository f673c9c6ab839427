package mesh

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pool's Prometheus collectors.
type Metrics struct {
	Slots         *prometheus.GaugeVec
	Regenerations prometheus.Counter
	Failures      prometheus.Counter
	Discarded     prometheus.Counter
	Stale         prometheus.Counter
}

// NewMetrics builds the collectors and registers them on reg when it is not
// nil. Collectors already registered under the same name are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Slots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voxstream",
			Subsystem: "mesh_pool",
			Name:      "slots",
			Help:      "Mesh slots by lifecycle state.",
		}, []string{"state"}),
		Regenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Subsystem: "mesh_pool",
			Name:      "regenerations_total",
			Help:      "Mesh regeneration jobs started.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Subsystem: "mesh_pool",
			Name:      "failures_total",
			Help:      "Mesh regenerations that failed and were scheduled for retry.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Subsystem: "mesh_pool",
			Name:      "discarded_total",
			Help:      "Mesh results dropped because the slot moved on.",
		}),
		Stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Subsystem: "mesh_pool",
			Name:      "stale_total",
			Help:      "Mesh results built from an outdated chunk version.",
		}),
	}
	if reg == nil {
		return m
	}

	m.Slots = register(reg, m.Slots)
	m.Regenerations = register(reg, m.Regenerations)
	m.Failures = register(reg, m.Failures)
	m.Discarded = register(reg, m.Discarded)
	m.Stale = register(reg, m.Stale)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observe(slots []*ChunkMesh) {
	var counts [4]int
	for _, s := range slots {
		counts[s.State()]++
	}
	for st, n := range counts {
		m.Slots.WithLabelValues(State(st).String()).Set(float64(n))
	}
}

