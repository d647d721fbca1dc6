package eulerian

import (
	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/kernel"
)

// Sampler interpolates grid fields at resolved addresses. It holds no state
// beyond the grid reference and is safe for concurrent use.
type Sampler struct {
	g     grid.Grid
	shape grid.Shape
}

// NewSampler returns a sampler over g.
func NewSampler(g grid.Grid) *Sampler {
	return &Sampler{g: g, shape: g.Shape()}
}

func unitStencil() kernel.Stencil {
	var s kernel.Stencil
	s.N = 1
	s.Weights[0] = 1
	return s
}

// Scalar interpolates the field name stored at loc.
func (s *Sampler) Scalar(name string, loc grid.Location, k *kernel.Kernel, a grid.Address) float64 {
	sh := s.shape

	cx := float64(a.I) + a.RX
	cy := float64(a.J) + a.RY
	cz := float64(a.K) + a.RZ
	switch loc {
	case grid.UFace:
		cx += 0.5
	case grid.VFace:
		cy += 0.5
	case grid.WFace:
		cz += 0.5
	}

	i0, rx := grid.Fractional(cx, sh.Nx)
	j0, ry := grid.Fractional(cy, sh.Ny)
	sx := k.Horizontal(rx)
	sy := k.Horizontal(ry)

	k0, sz := 0, unitStencil()
	if sh.Nz > 1 {
		var rz float64
		k0, rz = grid.Fractional(cz, sh.Nz)
		sz = k.Vertical(rz)
	}
	t0, st := 0, unitStencil()
	if sh.Nt > 1 {
		t0 = a.IT
		st = k.Time(a.RT)
	}

	var v float64
	for ti := 0; ti < st.N; ti++ {
		wt := st.Weights[ti]
		if wt == 0 {
			continue
		}
		it := grid.Clamp(t0+st.Offsets[ti], sh.Nt)
		for zi := 0; zi < sz.N; zi++ {
			wz := wt * sz.Weights[zi]
			if wz == 0 {
				continue
			}
			kk := grid.Clamp(k0+sz.Offsets[zi], sh.Nz)
			for yi := 0; yi < sy.N; yi++ {
				wy := wz * sy.Weights[yi]
				if wy == 0 {
					continue
				}
				j := grid.Clamp(j0+sy.Offsets[yi], sh.Ny)
				for xi := 0; xi < sx.N; xi++ {
					w := wy * sx.Weights[xi]
					if w == 0 {
						continue
					}
					i := grid.Clamp(i0+sx.Offsets[xi], sh.Nx)
					v += w * s.g.Value(name, it, kk, j, i)
				}
			}
		}
	}
	return v
}

// Vector interpolates a pair of components and rotates them from the grid
// basis to east/north.
func (s *Sampler) Vector(u, v string, locU, locV grid.Location, ku, kv *kernel.Kernel, a grid.Address) (float64, float64) {
	uu := s.Scalar(u, locU, ku, a)
	vv := s.Scalar(v, locV, kv, a)
	return s.rotate(uu, vv, a)
}

func (s *Sampler) rotate(u, v float64, a grid.Address) (float64, float64) {
	cos, sin := s.g.Rotation(grid.Clamp(a.J, s.shape.Ny), grid.Clamp(a.I, s.shape.Nx))
	if cos == 1 && sin == 0 {
		return u, v
	}
	return u*cos - v*sin, u*sin + v*cos
}
