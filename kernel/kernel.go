// Package kernel describes interpolation stencils and the weights they put on
// neighbouring grid nodes.
//
// A Kernel is a tensor product of 1-D rules: one for the two horizontal axes,
// one for the vertical and one for time. Every rule is a partition of unity,
// so the product is too.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/oceerr"
)

// Scheme identifies a 1-D weight rule.
type Scheme string

const (
	Nearest  Scheme = "nearest"
	Linear   Scheme = "linear"
	Lagrange Scheme = "lagrange"
)

// MaxOrder is the highest horizontal polynomial order supported.
const MaxOrder = 5

// MaxPoints is the widest 1-D stencil.
const MaxPoints = MaxOrder + 1

// Stagger pins a kernel to a variable location. Any follows whatever location
// the grid reports for the variable.
type Stagger uint8

const (
	Any Stagger = iota
	Center
	UFace
	VFace
	WFace
)

func (s Stagger) String() string {
	if s == Any {
		return "any"
	}
	return s.location().String()
}

func (s Stagger) location() grid.Location {
	switch s {
	case UFace:
		return grid.UFace
	case VFace:
		return grid.VFace
	case WFace:
		return grid.WFace
	}
	return grid.Center
}

// Stencil is the 1-D support of a rule at one fractional coordinate.
type Stencil struct {
	N       int
	Offsets [MaxPoints]int
	Weights [MaxPoints]float64
}

// rule is one 1-D weight rule.
type rule struct {
	scheme  Scheme
	order   int
	offsets []int
	// coef is the inverse of the transposed Vandermonde matrix of offsets,
	// row-major. Only set for lagrange rules of order >= 2.
	coef []float64
}

// Kernel is an immutable interpolation descriptor.
type Kernel struct {
	horizontal rule
	vertical   rule
	time       rule
	stagger    Stagger
}

// Fixed velocity kernels. U and V live on the staggered faces of a C grid,
// W on the top faces of the vertical cells.
var (
	U = mustNew(config.KernelConfig{Horizontal: "linear", Vertical: "linear", Time: "nearest"}, UFace)
	V = mustNew(config.KernelConfig{Horizontal: "linear", Vertical: "linear", Time: "nearest"}, VFace)
	W = mustNew(config.KernelConfig{Horizontal: "linear", Vertical: "linear", Time: "nearest"}, WFace)
)

func mustNew(cfg config.KernelConfig, s Stagger) *Kernel {
	k, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return k.WithStagger(s)
}

// New builds a kernel from its configuration. The kernel follows the grid
// location of whichever variable it is applied to.
func New(cfg config.KernelConfig) (*Kernel, error) {
	h, err := newRule(Scheme(cfg.Horizontal), cfg.Order, MaxOrder)
	if err != nil {
		return nil, fmt.Errorf("horizontal: %w", err)
	}
	v, err := newRule(Scheme(cfg.Vertical), 1, 1)
	if err != nil {
		return nil, fmt.Errorf("vertical: %w", err)
	}
	t, err := newRule(Scheme(cfg.Time), 1, 1)
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}
	return &Kernel{horizontal: h, vertical: v, time: t}, nil
}

// NewForGrid builds a kernel and checks it against the grid.
func NewForGrid(cfg config.KernelConfig, g grid.Grid) (*Kernel, error) {
	k, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := k.Check(g); err != nil {
		return nil, err
	}
	return k, nil
}

func newRule(s Scheme, order, maxOrder int) (rule, error) {
	switch s {
	case Nearest:
		return rule{scheme: Nearest, offsets: []int{0, 1}}, nil
	case Linear:
		return rule{scheme: Linear, order: 1, offsets: []int{0, 1}}, nil
	case Lagrange:
		if order < 1 || order > maxOrder {
			return rule{}, fmt.Errorf("%w: lagrange order %d outside [1, %d]", oceerr.ErrInvalidConfiguration, order, maxOrder)
		}
		if order == 1 {
			return rule{scheme: Linear, order: 1, offsets: []int{0, 1}}, nil
		}
		return newLagrange(order)
	}
	return rule{}, fmt.Errorf("%w: unknown scheme %q", oceerr.ErrInvalidConfiguration, s)
}

// newLagrange places order+1 nodes around the base node, biased upward for
// even counts, and solves for the polynomial weights once.
func newLagrange(order int) (rule, error) {
	n := order + 1
	lo := -(order / 2)
	offsets := make([]int, n)
	for i := range offsets {
		offsets[i] = lo + i
	}

	// vt[m][k] = offsets[k]^m, so that vt * w = (r^0, r^1, ...).
	vt := mat.NewDense(n, n, nil)
	for m := 0; m < n; m++ {
		for k, o := range offsets {
			vt.Set(m, k, math.Pow(float64(o), float64(m)))
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(vt); err != nil {
		return rule{}, fmt.Errorf("%w: lagrange order %d: %v", oceerr.ErrInvalidConfiguration, order, err)
	}
	coef := make([]float64, n*n)
	for k := 0; k < n; k++ {
		for m := 0; m < n; m++ {
			coef[k*n+m] = inv.At(k, m)
		}
	}
	return rule{scheme: Lagrange, order: order, offsets: offsets, coef: coef}, nil
}

func (r *rule) stencil(f float64) Stencil {
	var s Stencil
	s.N = len(r.offsets)
	copy(s.Offsets[:], r.offsets)

	switch {
	case r.scheme == Nearest:
		if f < 0.5 {
			s.Weights[0] = 1
		} else {
			s.Weights[1] = 1
		}
	case r.scheme == Linear:
		s.Weights[0] = 1 - f
		s.Weights[1] = f
	case f == 0:
		// exact on the node, independent of round-off in coef
		for k, o := range r.offsets {
			if o == 0 {
				s.Weights[k] = 1
			}
		}
	default:
		n := s.N
		var pow [MaxPoints]float64
		pow[0] = 1
		for m := 1; m < n; m++ {
			pow[m] = pow[m-1] * f
		}
		for k := 0; k < n; k++ {
			var w float64
			for m := 0; m < n; m++ {
				w += r.coef[k*n+m] * pow[m]
			}
			s.Weights[k] = w
		}
	}
	return s
}

// radius returns how far the rule reaches from the base node.
func (r *rule) radius() int {
	lo, hi := r.offsets[0], r.offsets[len(r.offsets)-1]
	if -lo > hi {
		return -lo
	}
	return hi
}

// WithStagger returns a copy of k pinned to the given location.
func (k *Kernel) WithStagger(s Stagger) *Kernel {
	c := *k
	c.stagger = s
	return &c
}

// Stagger returns the location the kernel is pinned to.
func (k *Kernel) Stagger() Stagger { return k.stagger }

// Horizontal returns the 1-D stencil used along x and y.
func (k *Kernel) Horizontal(f float64) Stencil { return k.horizontal.stencil(f) }

// Vertical returns the 1-D stencil used along z.
func (k *Kernel) Vertical(f float64) Stencil { return k.vertical.stencil(f) }

// Time returns the 1-D stencil used across time levels.
func (k *Kernel) Time(f float64) Stencil { return k.time.stencil(f) }

// Points returns the number of nodes the horizontal rule spans per axis.
func (k *Kernel) Points() int { return len(k.horizontal.offsets) }

// Radius returns the largest horizontal offset from the base node.
func (k *Kernel) Radius() int { return k.horizontal.radius() }

// Check reports whether the grid has enough nodes for the stencil.
func (k *Kernel) Check(g grid.Grid) error {
	if support := g.Shape().Support(); k.Points() > support {
		return fmt.Errorf("%w: stencil spans %d nodes, grid supports %d",
			oceerr.ErrInvalidConfiguration, k.Points(), support)
	}
	return nil
}

// Resolve returns the location to interpolate a variable from, given where
// the grid stores it. A pinned kernel must agree with the grid.
func (k *Kernel) Resolve(loc grid.Location) (grid.Location, error) {
	if k.stagger == Any || k.stagger.location() == loc {
		return loc, nil
	}
	return loc, fmt.Errorf("%w: kernel for %s applied to a %s variable",
		oceerr.ErrInvalidConfiguration, k.stagger, loc)
}

func (k *Kernel) String() string {
	h := string(k.horizontal.scheme)
	if k.horizontal.scheme == Lagrange {
		h = fmt.Sprintf("lagrange%d", k.horizontal.order)
	}
	return fmt.Sprintf("%s/%s/%s@%s", h, k.vertical.scheme, k.time.scheme, k.stagger)
}
