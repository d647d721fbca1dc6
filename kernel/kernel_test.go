package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/oceerr"
)

func allKernels(t *testing.T) map[string]*Kernel {
	t.Helper()
	out := map[string]*Kernel{"U": U, "V": V, "W": W}
	for _, cfg := range []config.KernelConfig{
		{Horizontal: "nearest", Vertical: "nearest", Time: "nearest"},
		{Horizontal: "linear", Vertical: "linear", Time: "linear"},
		{Horizontal: "lagrange", Order: 2, Vertical: "linear", Time: "linear"},
		{Horizontal: "lagrange", Order: 3, Vertical: "linear", Time: "nearest"},
		{Horizontal: "lagrange", Order: 5, Vertical: "nearest", Time: "linear"},
	} {
		k, err := New(cfg)
		require.NoError(t, err)
		out[k.String()] = k
	}
	return out
}

func weights(s Stencil) []float64 { return s.Weights[:s.N] }

func TestPartitionOfUnity(t *testing.T) {
	for name, k := range allKernels(t) {
		for _, f := range []float64{0, 1e-9, 0.1, 0.25, 0.5, 0.7311, 0.999999} {
			assert.InDelta(t, 1, floats.Sum(weights(k.Horizontal(f))), 1e-10, "%s horizontal f=%g", name, f)
			assert.InDelta(t, 1, floats.Sum(weights(k.Vertical(f))), 1e-10, "%s vertical f=%g", name, f)
			assert.InDelta(t, 1, floats.Sum(weights(k.Time(f))), 1e-10, "%s time f=%g", name, f)
		}
	}
}

func TestExactOnNodes(t *testing.T) {
	for name, k := range allKernels(t) {
		s := k.Horizontal(0)
		for i := 0; i < s.N; i++ {
			want := 0.0
			if s.Offsets[i] == 0 {
				want = 1
			}
			assert.Equal(t, want, s.Weights[i], "%s offset %d", name, s.Offsets[i])
		}
	}
}

func TestNearestPicksClosestNode(t *testing.T) {
	k, err := New(config.KernelConfig{Horizontal: "nearest", Vertical: "nearest", Time: "nearest"})
	require.NoError(t, err)

	s := k.Horizontal(0.49)
	assert.Equal(t, []float64{1, 0}, weights(s))
	s = k.Horizontal(0.51)
	assert.Equal(t, []float64{0, 1}, weights(s))
}

func TestLagrangeReproducesPolynomials(t *testing.T) {
	for order := 2; order <= MaxOrder; order++ {
		k, err := New(config.KernelConfig{Horizontal: "lagrange", Order: order, Vertical: "linear", Time: "linear"})
		require.NoError(t, err)

		// p(x) = sum of x^m up to the order is reproduced exactly.
		p := func(x float64) float64 {
			var v float64
			for m := 0; m <= order; m++ {
				v += math.Pow(x, float64(m))
			}
			return v
		}
		for _, f := range []float64{0.2, 0.5, 0.9} {
			s := k.Horizontal(f)
			var got float64
			for i := 0; i < s.N; i++ {
				got += s.Weights[i] * p(float64(s.Offsets[i]))
			}
			assert.InDelta(t, p(f), got, 1e-9, "order %d f=%g", order, f)
		}
	}
}

func TestLagrangeStencilShape(t *testing.T) {
	k, err := New(config.KernelConfig{Horizontal: "lagrange", Order: 3, Vertical: "linear", Time: "linear"})
	require.NoError(t, err)
	s := k.Horizontal(0.5)
	assert.Equal(t, 4, s.N)
	assert.Equal(t, []int{-1, 0, 1, 2}, s.Offsets[:s.N])
	assert.Equal(t, 2, k.Radius())
	assert.Equal(t, 4, k.Points())

	k, err = New(config.KernelConfig{Horizontal: "lagrange", Order: 2, Vertical: "linear", Time: "linear"})
	require.NoError(t, err)
	s = k.Horizontal(0.5)
	assert.Equal(t, []int{-1, 0, 1}, s.Offsets[:s.N])
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	cases := map[string]config.KernelConfig{
		"unknown horizontal": {Horizontal: "spline", Vertical: "linear", Time: "linear"},
		"order too high":     {Horizontal: "lagrange", Order: MaxOrder + 1, Vertical: "linear", Time: "linear"},
		"order zero":         {Horizontal: "lagrange", Order: 0, Vertical: "linear", Time: "linear"},
		"unknown vertical":   {Horizontal: "linear", Vertical: "cubic", Time: "linear"},
		"missing time":       {Horizontal: "linear", Vertical: "linear"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg)
			assert.ErrorIs(t, err, oceerr.ErrInvalidConfiguration)
			assert.ErrorIs(t, err, oceerr.ErrConfiguration)
		})
	}
}

func TestCheckAgainstGridSupport(t *testing.T) {
	g, err := grid.NewRectilinear(grid.Axis(0, 1, 3), grid.Axis(0, 1, 8), nil, nil, false)
	require.NoError(t, err)

	_, err = NewForGrid(config.KernelConfig{Horizontal: "lagrange", Order: 2, Vertical: "linear", Time: "linear"}, g)
	assert.NoError(t, err)

	_, err = NewForGrid(config.KernelConfig{Horizontal: "lagrange", Order: 3, Vertical: "linear", Time: "linear"}, g)
	assert.ErrorIs(t, err, oceerr.ErrInvalidConfiguration)

	assert.NoError(t, U.Check(g))
}

func TestResolveStagger(t *testing.T) {
	loc, err := U.Resolve(grid.UFace)
	require.NoError(t, err)
	assert.Equal(t, grid.UFace, loc)

	_, err = U.Resolve(grid.VFace)
	assert.ErrorIs(t, err, oceerr.ErrInvalidConfiguration)

	free, err := New(config.KernelConfig{Horizontal: "linear", Vertical: "linear", Time: "linear"})
	require.NoError(t, err)
	for _, l := range []grid.Location{grid.Center, grid.UFace, grid.VFace, grid.WFace} {
		got, err := free.Resolve(l)
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	pinned := free.WithStagger(Center)
	_, err = pinned.Resolve(grid.UFace)
	assert.Error(t, err)
	assert.Equal(t, Any, free.Stagger(), "WithStagger must not modify the receiver")
}

func TestString(t *testing.T) {
	assert.Equal(t, "linear/linear/nearest@u-face", U.String())
	k, err := New(config.KernelConfig{Horizontal: "lagrange", Order: 3, Vertical: "nearest", Time: "linear"})
	require.NoError(t, err)
	assert.Equal(t, "lagrange3/nearest/linear@any", k.String())
}
