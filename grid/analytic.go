package grid

import "math"

// Analytic fields used by the command line tool and tests. Velocities are in
// metres per second and are stored on the staggered faces a C grid uses.

// UniformFlow fills u and v with a constant east/north velocity.
func UniformFlow(g *Rectilinear, u, v string, east, north float64) error {
	if err := g.Fill(u, UFace, func(_, _, _, _ float64) float64 { return east }); err != nil {
		return err
	}
	return g.Fill(v, VFace, func(_, _, _, _ float64) float64 { return north })
}

// Gyre fills u and v with solid-body rotation about (x0, y0). omega is the
// angular velocity in radians per second, positive anticlockwise.
func Gyre(g *Rectilinear, u, v string, x0, y0, omega float64) error {
	err := g.Fill(u, UFace, func(x, y, _, _ float64) float64 {
		_, my := g.Metric(x, y)
		return -omega * (y - y0) * my
	})
	if err != nil {
		return err
	}
	return g.Fill(v, VFace, func(x, y, _, _ float64) float64 {
		mx, _ := g.Metric(x, y)
		return omega * (x - x0) * mx
	})
}

// Gradient fills a cell-centred scalar that varies linearly in every
// coordinate: c0 + ax*x + ay*y + az*z + at*t.
func Gradient(g *Rectilinear, name string, c0, ax, ay, az, at float64) error {
	return g.Fill(name, Center, func(x, y, z, t float64) float64 {
		return c0 + ax*x + ay*y + az*z + at*t
	})
}

// Tide fills u with an oscillating zonal flow of the given amplitude and
// period (seconds), uniform in space. v is zero.
func Tide(g *Rectilinear, u, v string, amplitude, period float64) error {
	err := g.Fill(u, UFace, func(_, _, _, t float64) float64 {
		return amplitude * math.Cos(2*math.Pi*t/period)
	})
	if err != nil {
		return err
	}
	return g.Fill(v, VFace, func(_, _, _, _ float64) float64 { return 0 })
}
