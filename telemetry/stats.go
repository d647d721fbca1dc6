// Package telemetry summarises runs, times them, and writes their results
// as CSV.
package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/oceinterp/lagrangian"
)

// StopStats holds aggregated particle statistics at one stop.
type StopStats struct {
	RunID string  `csv:"run_id"`
	Stop  int     `csv:"stop"`
	Time  float64 `csv:"time"`

	Particles int `csv:"particles"`
	InDomain  int `csv:"in_domain"`
	Stuck     int `csv:"stuck"`

	// Horizontal speed (m/s) of particles still moving
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Distance from the seed position, metres
	DispMean float64 `csv:"disp_mean"`
	DispP50  float64 `csv:"disp_p50"`
	DispMax  float64 `csv:"disp_max"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summarize calculates mean and percentiles of values.
func Summarize(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}
	mean = floats.Sum(values) / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// ComputeStopStats compares a snapshot with the seed snapshot of the same
// run. Particles outside the domain are counted but not summarised.
func ComputeStopStats(seed, s *lagrangian.Snapshot) StopStats {
	st := StopStats{Time: s.Time, Particles: s.Len()}
	speeds := make([]float64, 0, s.Len())
	disps := make([]float64, 0, s.Len())

	g := s.Grid()
	for i := 0; i < s.Len(); i++ {
		if s.Stuck[i] {
			st.Stuck++
		}
		if !s.In[i] {
			continue
		}
		st.InDomain++
		if !s.Stuck[i] {
			speeds = append(speeds, math.Hypot(s.U[i], s.V[i]))
		}
		mx, my := g.Metric(0.5*(seed.X[i]+s.X[i]), 0.5*(seed.Y[i]+s.Y[i]))
		dx := (s.X[i] - seed.X[i]) * mx
		dy := (s.Y[i] - seed.Y[i]) * my
		dz := s.Z[i] - seed.Z[i]
		disps = append(disps, math.Sqrt(dx*dx+dy*dy+dz*dz))
	}

	st.SpeedMean, st.SpeedP10, st.SpeedP50, st.SpeedP90 = Summarize(speeds)
	st.DispMean, _, st.DispP50, _ = Summarize(disps)
	if len(disps) > 0 {
		st.DispMax = floats.Max(disps)
	}
	return st
}

// LogValue implements slog.LogValuer for structured logging.
func (s StopStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("stop", s.Stop),
		slog.Float64("time", s.Time),
		slog.Int("particles", s.Particles),
		slog.Int("in_domain", s.InDomain),
		slog.Int("stuck", s.Stuck),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("disp_mean", s.DispMean),
		slog.Float64("disp_max", s.DispMax),
	)
}

// LogStats logs the stop stats using logger.
func (s StopStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("stats",
		"stop", s.Stop,
		"time", s.Time,
		"particles", s.Particles,
		"in_domain", s.InDomain,
		"stuck", s.Stuck,
		"speed_mean", s.SpeedMean,
		"speed_p10", s.SpeedP10,
		"speed_p50", s.SpeedP50,
		"speed_p90", s.SpeedP90,
		"disp_mean", s.DispMean,
		"disp_p50", s.DispP50,
		"disp_max", s.DispMax,
	)
}
