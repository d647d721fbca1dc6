package main

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/grid"
)

// TracerName is the scalar every analytic grid carries: tracer = x + y.
const TracerName = "tracer"

// GridFlags describe an analytic rectilinear grid and the flow filled on it.
type GridFlags struct {
	NX         int       `help:"Cells along x." default:"50"`
	NY         int       `help:"Cells along y." default:"50"`
	DX         float64   `help:"Cell spacing along x (m, or degrees when geographic)." default:"1000"`
	DY         float64   `help:"Cell spacing along y." default:"1000"`
	Depths     []float64 `help:"Vertical cell centres, negative down (empty = 2D)."`
	Levels     int       `help:"Number of time levels (0 = steady)." default:"0"`
	LevelStep  float64   `help:"Seconds between time levels." default:"3600"`
	Geographic bool      `help:"Treat x/y as longitude/latitude in degrees."`

	Flow      string  `help:"Velocity field." enum:"uniform,gyre,tide" default:"uniform"`
	East      float64 `help:"Uniform eastward velocity (m/s)." default:"0.1"`
	North     float64 `help:"Uniform northward velocity (m/s)." default:"0"`
	Omega     float64 `help:"Gyre angular velocity (rad/s)." default:"1e-5"`
	Amplitude float64 `help:"Tidal velocity amplitude (m/s)." default:"0.5"`
	Period    float64 `help:"Tidal period (s)." default:"44712"`
}

// Build creates the grid and fills the configured velocity components plus
// the tracer.
func (f GridFlags) Build(vel config.VelocityConfig) (*grid.Rectilinear, error) {
	if f.NX < 2 || f.NY < 2 {
		return nil, fmt.Errorf("grid needs at least 2x2 cells, got %dx%d", f.NX, f.NY)
	}
	var times []float64
	if f.Levels > 0 {
		times = grid.Axis(0, f.LevelStep, f.Levels)
	}
	g, err := grid.NewRectilinear(grid.Axis(0, f.DX, f.NX), grid.Axis(0, f.DY, f.NY), f.Depths, times, f.Geographic)
	if err != nil {
		return nil, err
	}

	switch f.Flow {
	case "uniform":
		err = grid.UniformFlow(g, vel.U, vel.V, f.East, f.North)
	case "gyre":
		x0 := f.DX * float64(f.NX-1) / 2
		y0 := f.DY * float64(f.NY-1) / 2
		err = grid.Gyre(g, vel.U, vel.V, x0, y0, f.Omega)
	case "tide":
		err = grid.Tide(g, vel.U, vel.V, f.Amplitude, f.Period)
	default:
		err = fmt.Errorf("unknown flow %q", f.Flow)
	}
	if err != nil {
		return nil, fmt.Errorf("filling %s flow: %w", f.Flow, err)
	}
	if err := grid.Gradient(g, TracerName, 0, 1, 1, 0, 0); err != nil {
		return nil, err
	}
	return g, nil
}

// Seed is one input point.
type Seed struct {
	X float64 `csv:"x"`
	Y float64 `csv:"y"`
	Z float64 `csv:"z"`
	T float64 `csv:"t"`
}

// ReadSeeds loads points from a CSV file with an x,y[,z][,t] header.
func ReadSeeds(path string) (x, y, z, t []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening seeds: %w", err)
	}
	defer f.Close()

	var seeds []Seed
	if err := gocsv.UnmarshalFile(f, &seeds); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("parsing seeds %s: %w", path, err)
	}
	if len(seeds) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("no seeds in %s", path)
	}
	for _, s := range seeds {
		x = append(x, s.X)
		y = append(y, s.Y)
		z = append(z, s.Z)
		t = append(t, s.T)
	}
	return x, y, z, t, nil
}
