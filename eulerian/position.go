// Package eulerian resolves batches of query points against a grid and
// interpolates grid fields at them.
package eulerian

import (
	"fmt"
	"math"

	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/kernel"
	"github.com/pthm-cable/oceinterp/metrics"
	"github.com/pthm-cable/oceinterp/oceerr"
	"github.com/pthm-cable/oceinterp/parallel"
)

// DefaultPool is used by positions that were not given a pool.
var DefaultPool = parallel.NewPool(0, 0)

// Position is a batch of N query points stored as parallel arrays. The
// resolved indices and fractions always match the coordinates; use Move to
// change a point.
type Position struct {
	X, Y, Z, T []float64

	I, J, K, IT    []int
	RX, RY, RZ, RT []float64

	// In is false for points outside the grid domain. Their indices are -1
	// and they interpolate to NaN.
	In []bool

	grid grid.Grid
	pool *parallel.Pool
}

// FromLatLon resolves x, y (degrees or metres, following the grid), z
// (metres, negative down) and t (seconds). z and t may be nil, meaning the
// surface and time zero.
func FromLatLon(g grid.Grid, x, y, z, t []float64) (*Position, error) {
	n := len(x)
	if len(y) != n || (z != nil && len(z) != n) || (t != nil && len(t) != n) {
		return nil, fmt.Errorf("%w: coordinate arrays differ in length (x=%d y=%d z=%d t=%d)",
			oceerr.ErrConfiguration, len(x), len(y), len(z), len(t))
	}
	p := newPosition(g, n)
	copy(p.X, x)
	copy(p.Y, y)
	copy(p.Z, z)
	copy(p.T, t)
	p.pool.Range(n, func(start, end, _ int) {
		for i := start; i < end; i++ {
			p.resolve(i)
		}
	})
	return p, nil
}

func newPosition(g grid.Grid, n int) *Position {
	return &Position{
		X: make([]float64, n), Y: make([]float64, n),
		Z: make([]float64, n), T: make([]float64, n),
		I: make([]int, n), J: make([]int, n), K: make([]int, n), IT: make([]int, n),
		RX: make([]float64, n), RY: make([]float64, n),
		RZ: make([]float64, n), RT: make([]float64, n),
		In:   make([]bool, n),
		grid: g,
		pool: DefaultPool,
	}
}

func (p *Position) resolve(i int) bool {
	a, ok := p.grid.Locate(p.X[i], p.Y[i], p.Z[i], p.T[i])
	if !ok {
		a = grid.Address{I: -1, J: -1, K: -1, IT: -1}
	}
	p.I[i], p.J[i], p.K[i], p.IT[i] = a.I, a.J, a.K, a.IT
	p.RX[i], p.RY[i], p.RZ[i], p.RT[i] = a.RX, a.RY, a.RZ, a.RT
	p.In[i] = ok
	return ok
}

// WithPool sets the worker pool used by batch operations and returns p.
func (p *Position) WithPool(pool *parallel.Pool) *Position {
	p.pool = pool
	return p
}

// Pool returns the worker pool used by batch operations.
func (p *Position) Pool() *parallel.Pool { return p.pool }

// Len returns the number of points.
func (p *Position) Len() int { return len(p.X) }

// Grid returns the grid the points are resolved against.
func (p *Position) Grid() grid.Grid { return p.grid }

// Address returns the resolved address of point i.
func (p *Position) Address(i int) grid.Address {
	return grid.Address{
		I: p.I[i], J: p.J[i], K: p.K[i], IT: p.IT[i],
		RX: p.RX[i], RY: p.RY[i], RZ: p.RZ[i], RT: p.RT[i],
	}
}

// Move sets the coordinates of point i and re-resolves it. It reports whether
// the new location is inside the domain.
func (p *Position) Move(i int, x, y, z, t float64) bool {
	p.X[i], p.Y[i], p.Z[i], p.T[i] = x, y, z, t
	return p.resolve(i)
}

// Clone returns a deep copy sharing only the grid and pool.
func (p *Position) Clone() *Position {
	c := newPosition(p.grid, p.Len())
	c.pool = p.pool
	copy(c.X, p.X)
	copy(c.Y, p.Y)
	copy(c.Z, p.Z)
	copy(c.T, p.T)
	copy(c.I, p.I)
	copy(c.J, p.J)
	copy(c.K, p.K)
	copy(c.IT, p.IT)
	copy(c.RX, p.RX)
	copy(c.RY, p.RY)
	copy(c.RZ, p.RZ)
	copy(c.RT, p.RT)
	copy(c.In, p.In)
	return c
}

// prepared is a variable whose kernels and locations have been checked.
type prepared struct {
	v         Var
	k, kv     *kernel.Kernel
	loc, locV grid.Location
}

// prepare validates a variable and its kernels against g.
func prepare(g grid.Grid, v Var, ks KernelSpec) (prepared, error) {
	switch v.Kind {
	case ReservedVar:
		return prepared{}, oceerr.Variable(v.String(), oceerr.ErrInvalidScheme)
	case ScalarVar:
		if ks.Scalar == nil {
			return prepared{}, oceerr.Variable(v.String(), fmt.Errorf("%w: scalar variable needs a scalar kernel", oceerr.ErrConfiguration))
		}
		loc, err := checkField(g, v.Name, ks.Scalar)
		if err != nil {
			return prepared{}, oceerr.Variable(v.String(), err)
		}
		return prepared{v: v, k: ks.Scalar, loc: loc}, nil
	case VectorVar:
		if ks.U == nil || ks.V == nil {
			return prepared{}, oceerr.Variable(v.String(), fmt.Errorf("%w: vector variable needs a kernel pair", oceerr.ErrConfiguration))
		}
		locU, err := checkField(g, v.U, ks.U)
		if err != nil {
			return prepared{}, oceerr.Variable(v.U, err)
		}
		locV, err := checkField(g, v.V, ks.V)
		if err != nil {
			return prepared{}, oceerr.Variable(v.V, err)
		}
		return prepared{v: v, k: ks.U, kv: ks.V, loc: locU, locV: locV}, nil
	}
	return prepared{}, oceerr.Variable(v.String(), fmt.Errorf("%w: unrecognized variable kind %d", oceerr.ErrConfiguration, v.Kind))
}

func checkField(g grid.Grid, name string, k *kernel.Kernel) (grid.Location, error) {
	if !g.Has(name) {
		return 0, oceerr.ErrUnsupportedVariable
	}
	if err := k.Check(g); err != nil {
		return 0, err
	}
	return k.Resolve(g.Location(name))
}

// Interpolate evaluates every variable at every point. kernels must have one
// entry per variable. Results are in the order of vars. The call does not
// modify p.
func (p *Position) Interpolate(vars []Var, kernels []KernelSpec) ([]Value, error) {
	if len(kernels) != len(vars) {
		return nil, fmt.Errorf("%w: %d variables but %d kernels", oceerr.ErrConfiguration, len(vars), len(kernels))
	}
	preps := make([]prepared, len(vars))
	for i, v := range vars {
		pr, err := prepare(p.grid, v, kernels[i])
		if err != nil {
			return nil, err
		}
		preps[i] = pr
	}

	n := p.Len()
	out := make([]Value, len(vars))
	for i, pr := range preps {
		if pr.v.Kind == VectorVar {
			out[i] = Value{U: make([]float64, n), V: make([]float64, n)}
		} else {
			out[i] = Value{Scalar: make([]float64, n)}
		}
	}

	s := NewSampler(p.grid)
	p.pool.Range(n, func(start, end, _ int) {
		for pt := start; pt < end; pt++ {
			in := p.In[pt]
			a := p.Address(pt)
			for i, pr := range preps {
				switch {
				case pr.v.Kind == VectorVar && !in:
					out[i].U[pt], out[i].V[pt] = math.NaN(), math.NaN()
				case pr.v.Kind == VectorVar:
					out[i].U[pt], out[i].V[pt] = s.Vector(pr.v.U, pr.v.V, pr.loc, pr.locV, pr.k, pr.kv, a)
				case !in:
					out[i].Scalar[pt] = math.NaN()
				default:
					out[i].Scalar[pt] = s.Scalar(pr.v.Name, pr.loc, pr.k, a)
				}
			}
		}
	})

	for _, pr := range preps {
		kind := "scalar"
		if pr.v.Kind == VectorVar {
			kind = "vector"
		}
		metrics.PointsInterpolated.WithLabelValues(kind).Add(float64(n))
	}
	return out, nil
}

// InterpolateOne is Interpolate for a single variable.
func (p *Position) InterpolateOne(v Var, ks KernelSpec) (Value, error) {
	out, err := p.Interpolate([]Var{v}, []KernelSpec{ks})
	if err != nil {
		return Value{}, err
	}
	return out[0], nil
}
