// Package metrics holds the Prometheus collectors shared by the
// interpolation and advection packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PointsInterpolated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oceinterp_points_interpolated_total",
			Help: "Query points interpolated, per variable kind",
		},
		[]string{"kind"},
	)

	ParticleSubsteps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oceinterp_particle_substeps_total",
			Help: "Integration sub-steps taken by all particles",
		},
	)

	DomainExits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oceinterp_domain_exits_total",
			Help: "Particles that left the grid domain during advection",
		},
	)

	Snapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oceinterp_snapshots_total",
			Help: "Particle snapshots captured by the trajectory driver",
		},
	)

	CallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oceinterp_call_latency_seconds",
			Help:    "Latency of top-level interpolation calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)
