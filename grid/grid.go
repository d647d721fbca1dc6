// Package grid defines the read-only grid abstraction consumed by the
// interpolation and advection code, and an in-memory rectilinear
// implementation of it.
//
// Horizontal indices follow cell centres: I runs along x (longitude), J along
// y (latitude), K down the water column and IT along the time levels. Field
// data is addressed as Value(name, it, k, j, i).
package grid

import "math"

// EarthRadius is the sphere radius used for metric terms, metres.
const EarthRadius = 6371000.0

// Location says where on a cell a variable is stored.
type Location uint8

const (
	Center Location = iota
	UFace           // west face, i-1/2
	VFace           // south face, j-1/2
	WFace           // top face, k-1/2
)

func (l Location) String() string {
	switch l {
	case Center:
		return "center"
	case UFace:
		return "u-face"
	case VFace:
		return "v-face"
	case WFace:
		return "w-face"
	}
	return "unknown"
}

// Shape holds the grid dimensions.
type Shape struct {
	Nx, Ny, Nz, Nt int
}

// Support returns how many nodes a horizontal stencil may span.
func (s Shape) Support() int {
	if s.Nx < s.Ny {
		return s.Nx
	}
	return s.Ny
}

// Address is the grid-local resolution of one query point: the cell-centre
// index at or below the point along every axis plus the fractional distance
// to the next node, in [0, 1).
type Address struct {
	I, J, K, IT    int
	RX, RY, RZ, RT float64
}

// Grid is the query interface the interpolation core consumes. Implementations
// must be safe for concurrent readers; the core never writes to a grid.
type Grid interface {
	Shape() Shape

	// Locate resolves a coordinate. ok is false when (x, y, z) lies outside
	// the valid domain. Times outside the time axis are clamped.
	Locate(x, y, z, t float64) (addr Address, ok bool)

	Has(name string) bool
	Location(name string) Location

	// Value returns the stored value of a variable. Indices must be in range.
	Value(name string, it, k, j, i int) float64

	// Rotation returns the cosine and sine of the angle between the grid's
	// i direction and east at cell (j, i).
	Rotation(j, i int) (cos, sin float64)

	// Metric returns metres per coordinate unit along x and y at (x, y).
	Metric(x, y float64) (mx, my float64)

	// CellSize returns the horizontal size of cell (j, i) in metres.
	CellSize(j, i int) (dx, dy float64)

	// Times returns the time levels of the grid; nil for a steady grid.
	Times() []float64
}

// Fractional splits a continuous index coordinate into a base index and a
// fraction, keeping the base inside [0, n-1].
func Fractional(c float64, n int) (int, float64) {
	if n <= 1 {
		return 0, 0
	}
	f := math.Floor(c)
	i := int(f)
	if i < 0 {
		return 0, 0
	}
	if i >= n-1 {
		return n - 1, 0
	}
	return i, c - f
}

// Clamp keeps an index inside [0, n-1].
func Clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
