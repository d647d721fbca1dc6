package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/pthm-cable/oceinterp/oceerr"
)

// FieldFunc evaluates a field at a node position.
type FieldFunc func(x, y, z, t float64) float64

type field struct {
	loc  Location
	data []float64
}

// Rectilinear is a grid whose cell centres lie on the product of 1-D axes.
// Fields are stored flat, index ((it*Nz+k)*Ny+j)*Nx+i.
type Rectilinear struct {
	// Cell-centre axes, strictly increasing.
	X, Y []float64
	// Cell-centre depths, 0 >= Z[0] > Z[1] > ... Empty means a single level.
	Z []float64
	// Time levels in seconds, strictly increasing. Empty means steady fields.
	T []float64

	// Depth of the sea floor in metres (positive). 0 leaves the column
	// unbounded below.
	Depth float64

	// Geographic grids have X/Y in degrees of longitude/latitude; otherwise
	// X/Y are metres.
	Geographic bool

	// Angle holds the rotation of each cell (Ny*Nx, radians). nil means the
	// grid is aligned with east/north.
	Angle []float64

	fields map[string]field
}

// NewRectilinear validates the axes and returns an empty grid.
func NewRectilinear(x, y, z, t []float64, geographic bool) (*Rectilinear, error) {
	if len(x) < 2 || len(y) < 2 {
		return nil, fmt.Errorf("%w: grid needs at least two nodes along x and y", oceerr.ErrConfiguration)
	}
	if !increasing(x) || !increasing(y) {
		return nil, fmt.Errorf("%w: x and y axes must be strictly increasing", oceerr.ErrConfiguration)
	}
	for k := range z {
		if z[k] > 0 || (k > 0 && z[k] >= z[k-1]) {
			return nil, fmt.Errorf("%w: z levels must be non-positive and strictly decreasing", oceerr.ErrConfiguration)
		}
	}
	if len(t) > 0 && !increasing(t) {
		return nil, fmt.Errorf("%w: time levels must be strictly increasing", oceerr.ErrConfiguration)
	}
	return &Rectilinear{
		X: x, Y: y, Z: z, T: t,
		Geographic: geographic,
		fields:     make(map[string]field),
	}, nil
}

// Axis returns n evenly spaced values starting at start.
func Axis(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func increasing(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return false
		}
	}
	return true
}

// Shape implements Grid.
func (g *Rectilinear) Shape() Shape {
	nz, nt := len(g.Z), len(g.T)
	if nz == 0 {
		nz = 1
	}
	if nt == 0 {
		nt = 1
	}
	return Shape{Nx: len(g.X), Ny: len(g.Y), Nz: nz, Nt: nt}
}

// AddField stores data for a variable. data must hold Nt*Nz*Ny*Nx values.
func (g *Rectilinear) AddField(name string, loc Location, data []float64) error {
	s := g.Shape()
	if want := s.Nt * s.Nz * s.Ny * s.Nx; len(data) != want {
		return fmt.Errorf("%w: field %q has %d values, grid needs %d", oceerr.ErrConfiguration, name, len(data), want)
	}
	g.fields[name] = field{loc: loc, data: data}
	return nil
}

// Fill evaluates fn at every node of the given location and stores the
// result as a field.
func (g *Rectilinear) Fill(name string, loc Location, fn FieldFunc) error {
	s := g.Shape()
	data := make([]float64, s.Nt*s.Nz*s.Ny*s.Nx)
	n := 0
	for it := 0; it < s.Nt; it++ {
		t := 0.0
		if len(g.T) > 0 {
			t = g.T[it]
		}
		for k := 0; k < s.Nz; k++ {
			z := g.levelDepth(k, loc)
			for j := 0; j < s.Ny; j++ {
				y := g.Y[j]
				if loc == VFace {
					y -= halfSpacing(g.Y, j)
				}
				for i := 0; i < s.Nx; i++ {
					x := g.X[i]
					if loc == UFace {
						x -= halfSpacing(g.X, i)
					}
					data[n] = fn(x, y, z, t)
					n++
				}
			}
		}
	}
	return g.AddField(name, loc, data)
}

func (g *Rectilinear) levelDepth(k int, loc Location) float64 {
	if len(g.Z) == 0 {
		return 0
	}
	if loc != WFace {
		return g.Z[k]
	}
	if k == 0 {
		return 0
	}
	return 0.5 * (g.Z[k-1] + g.Z[k])
}

// halfSpacing returns half the distance from node i to its lower neighbour,
// mirroring the first spacing at the edge.
func halfSpacing(axis []float64, i int) float64 {
	if i == 0 {
		return 0.5 * (axis[1] - axis[0])
	}
	return 0.5 * (axis[i] - axis[i-1])
}

// Locate implements Grid.
func (g *Rectilinear) Locate(x, y, z, t float64) (Address, bool) {
	var a Address
	var ok bool

	if a.I, a.RX, ok = locateAxis(g.X, x); !ok {
		return Address{I: -1}, false
	}
	if a.J, a.RY, ok = locateAxis(g.Y, y); !ok {
		return Address{I: -1}, false
	}
	if z > 0 || (g.Depth > 0 && z < -g.Depth) || math.IsNaN(z) {
		return Address{I: -1}, false
	}
	a.K, a.RZ = locateDepth(g.Z, z)
	a.IT, a.RT = locateTime(g.T, t)
	return a, true
}

// locateAxis finds the node at or below v on a strictly increasing axis.
func locateAxis(axis []float64, v float64) (int, float64, bool) {
	n := len(axis)
	if math.IsNaN(v) || v < axis[0] || v > axis[n-1] {
		return -1, 0, false
	}
	if v == axis[n-1] {
		return n - 1, 0, true
	}
	// first index with axis[i] > v, minus one
	i := sort.Search(n, func(i int) bool { return axis[i] > v }) - 1
	return i, (v - axis[i]) / (axis[i+1] - axis[i]), true
}

func locateDepth(levels []float64, z float64) (int, float64) {
	n := len(levels)
	if n <= 1 {
		return 0, 0
	}
	// last level at or above z
	k := sort.Search(n, func(k int) bool { return levels[k] < z }) - 1
	if k < 0 {
		return 0, 0
	}
	if k >= n-1 {
		return n - 1, 0
	}
	return k, (levels[k] - z) / (levels[k] - levels[k+1])
}

func locateTime(levels []float64, t float64) (int, float64) {
	n := len(levels)
	if n <= 1 || t <= levels[0] {
		return 0, 0
	}
	if t >= levels[n-1] {
		return n - 1, 0
	}
	i := sort.Search(n, func(i int) bool { return levels[i] > t }) - 1
	return i, (t - levels[i]) / (levels[i+1] - levels[i])
}

// Has implements Grid.
func (g *Rectilinear) Has(name string) bool {
	_, ok := g.fields[name]
	return ok
}

// Location implements Grid.
func (g *Rectilinear) Location(name string) Location {
	return g.fields[name].loc
}

// Value implements Grid. Unknown names read as NaN.
func (g *Rectilinear) Value(name string, it, k, j, i int) float64 {
	f, ok := g.fields[name]
	if !ok {
		return math.NaN()
	}
	s := g.Shape()
	return f.data[((it*s.Nz+k)*s.Ny+j)*s.Nx+i]
}

// Rotation implements Grid.
func (g *Rectilinear) Rotation(j, i int) (float64, float64) {
	if g.Angle == nil {
		return 1, 0
	}
	a := g.Angle[j*len(g.X)+i]
	return math.Cos(a), math.Sin(a)
}

// Metric implements Grid.
func (g *Rectilinear) Metric(x, y float64) (float64, float64) {
	if !g.Geographic {
		return 1, 1
	}
	perDegree := EarthRadius * math.Pi / 180
	return perDegree * math.Cos(y*math.Pi/180), perDegree
}

// CellSize implements Grid.
func (g *Rectilinear) CellSize(j, i int) (float64, float64) {
	dx := 2 * halfSpacing(g.X, Clamp(i+1, len(g.X)))
	dy := 2 * halfSpacing(g.Y, Clamp(j+1, len(g.Y)))
	mx, my := g.Metric(g.X[i], g.Y[j])
	return dx * mx, dy * my
}

// Times implements Grid.
func (g *Rectilinear) Times() []float64 {
	return g.T
}
