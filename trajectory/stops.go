// Package trajectory drives particles through a list of output times and
// decides where the velocity field is refreshed along the way.
package trajectory

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/oceerr"
)

// Mode selects how refresh points are chosen.
type Mode uint8

const (
	// Default derives refresh points from the configured update policy.
	Default Mode = iota
	// Explicit uses the caller's refresh times.
	Explicit
	// None adds no refresh points; legs run between caller times only.
	None
)

func (m Mode) String() string {
	switch m {
	case Default:
		return "default"
	case Explicit:
		return "explicit"
	case None:
		return "none"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// UpdateStops configures the refresh points of a run.
type UpdateStops struct {
	Mode  Mode
	Times []float64 // Explicit only
}

// DefaultStops derives refresh points from the update policy.
func DefaultStops() UpdateStops { return UpdateStops{Mode: Default} }

// ExplicitStops refreshes the velocity field at exactly the given times.
func ExplicitStops(times ...float64) UpdateStops {
	return UpdateStops{Mode: Explicit, Times: times}
}

// NoStops disables extra refresh points.
func NoStops() UpdateStops { return UpdateStops{Mode: None} }

// ParseMode maps "default", "none" or "explicit" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "default", "":
		return Default, nil
	case "explicit":
		return Explicit, nil
	case "none":
		return None, nil
	}
	return 0, fmt.Errorf("%w: update stops %q", oceerr.ErrConfiguration, s)
}

// CheckTimes validates caller output times: at least two, no NaN, strictly
// increasing.
func CheckTimes(times []float64) error {
	if len(times) < 2 {
		return fmt.Errorf("%w: got %d", oceerr.ErrInsufficientTimeRange, len(times))
	}
	if floats.HasNaN(times) {
		return fmt.Errorf("%w: output times contain NaN", oceerr.ErrUsage)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return oceerr.Point(i, fmt.Errorf("%w: output times must be strictly increasing", oceerr.ErrUsage))
		}
	}
	return nil
}

// RefreshPoints returns the refresh times the policy asks for strictly inside
// (t0, t1). levels are the time levels of the velocity field; a steady field
// has none and needs no refresh.
func RefreshPoints(cfg config.LagrangianConfig, levels []float64, t0, t1 float64) ([]float64, error) {
	var out []float64
	keep := func(t float64) {
		if t > t0 && t < t1 {
			out = append(out, t)
		}
	}
	switch cfg.UpdatePolicy {
	case "midpoints":
		for i := 1; i < len(levels); i++ {
			keep(0.5 * (levels[i-1] + levels[i]))
		}
	case "levels":
		for _, t := range levels {
			keep(t)
		}
	case "interval":
		if cfg.UpdateInterval <= 0 {
			return nil, fmt.Errorf("%w: update_interval must be positive", oceerr.ErrConfiguration)
		}
		for k := 1; ; k++ {
			t := t0 + float64(k)*cfg.UpdateInterval
			if t >= t1 {
				break
			}
			out = append(out, t)
		}
	default:
		return nil, fmt.Errorf("%w: update_policy %q", oceerr.ErrConfiguration, cfg.UpdatePolicy)
	}
	return out, nil
}

// Merge combines caller times with refresh points into one sorted list
// without duplicates. Refresh points outside the caller's range are dropped,
// so the result starts and ends with the caller's first and last time.
func Merge(times, refresh []float64) []float64 {
	t0, t1 := times[0], times[len(times)-1]
	out := slices.Clone(times)
	for _, t := range refresh {
		if t > t0 && t < t1 {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Stops computes the stop-time list for a run. times must already pass
// CheckTimes.
func Stops(times []float64, stops UpdateStops, cfg config.LagrangianConfig, levels []float64) ([]float64, error) {
	t0, t1 := times[0], times[len(times)-1]
	switch stops.Mode {
	case None:
		return slices.Clone(times), nil
	case Explicit:
		if floats.HasNaN(stops.Times) {
			return nil, fmt.Errorf("%w: update stops contain NaN", oceerr.ErrUsage)
		}
		return Merge(times, stops.Times), nil
	case Default:
		refresh, err := RefreshPoints(cfg, levels, t0, t1)
		if err != nil {
			return nil, err
		}
		return Merge(times, refresh), nil
	}
	return nil, fmt.Errorf("%w: update stops mode %s", oceerr.ErrConfiguration, stops.Mode)
}
