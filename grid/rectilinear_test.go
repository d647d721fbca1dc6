package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/oceinterp/oceerr"
)

func testGrid(t *testing.T) *Rectilinear {
	t.Helper()
	g, err := NewRectilinear(
		Axis(0, 1, 5),
		Axis(10, 0.5, 4),
		[]float64{-5, -15, -30},
		[]float64{0, 3600},
		true,
	)
	require.NoError(t, err)
	return g
}

func TestNewRectilinearValidatesAxes(t *testing.T) {
	cases := map[string]struct {
		x, y, z, tt []float64
	}{
		"short x":      {x: []float64{0}, y: Axis(0, 1, 3)},
		"decreasing y": {x: Axis(0, 1, 3), y: []float64{2, 1, 0}},
		"positive z":   {x: Axis(0, 1, 3), y: Axis(0, 1, 3), z: []float64{5, -5}},
		"shallowing z": {x: Axis(0, 1, 3), y: Axis(0, 1, 3), z: []float64{-5, -2}},
		"repeated t":   {x: Axis(0, 1, 3), y: Axis(0, 1, 3), tt: []float64{0, 0}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRectilinear(tc.x, tc.y, tc.z, tc.tt, false)
			assert.ErrorIs(t, err, oceerr.ErrConfiguration)
		})
	}
}

func TestShape(t *testing.T) {
	g := testGrid(t)
	assert.Equal(t, Shape{Nx: 5, Ny: 4, Nz: 3, Nt: 2}, g.Shape())
	assert.Equal(t, 4, g.Shape().Support())

	flat, err := NewRectilinear(Axis(0, 1, 3), Axis(0, 1, 3), nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, Shape{Nx: 3, Ny: 3, Nz: 1, Nt: 1}, flat.Shape())
}

func TestLocate(t *testing.T) {
	g := testGrid(t)

	a, ok := g.Locate(1.25, 10.5, -10, 900)
	require.True(t, ok)
	assert.Equal(t, 1, a.I)
	assert.InDelta(t, 0.25, a.RX, 1e-12)
	assert.Equal(t, 1, a.J)
	assert.InDelta(t, 0.0, a.RY, 1e-12)
	assert.Equal(t, 0, a.K)
	assert.InDelta(t, 0.5, a.RZ, 1e-12)
	assert.Equal(t, 0, a.IT)
	assert.InDelta(t, 0.25, a.RT, 1e-12)

	// last node is inside the domain
	a, ok = g.Locate(4, 11.5, -30, 7200)
	require.True(t, ok)
	assert.Equal(t, 4, a.I)
	assert.Equal(t, 3, a.J)
	assert.Equal(t, 2, a.K)
	assert.Equal(t, 1, a.IT)
	assert.Zero(t, a.RX)
	assert.Zero(t, a.RT)

	// between the surface and the first level the top value is held
	a, ok = g.Locate(0, 10, -1, 0)
	require.True(t, ok)
	assert.Equal(t, 0, a.K)
	assert.Zero(t, a.RZ)
}

func TestLocateOutsideDomain(t *testing.T) {
	g := testGrid(t)
	g.Depth = 40

	for _, p := range [][3]float64{
		{-0.1, 10, -10},
		{4.1, 10, -10},
		{1, 9.9, -10},
		{1, 12, -10},
		{1, 10, 1},
		{1, 10, -41},
		{math.NaN(), 10, -10},
	} {
		a, ok := g.Locate(p[0], p[1], p[2], 0)
		assert.False(t, ok, "point %v", p)
		assert.Equal(t, -1, a.I)
	}
}

func TestFillStaggeredLocations(t *testing.T) {
	g := testGrid(t)
	require.NoError(t, g.Fill("x", Center, func(x, y, z, t float64) float64 { return x }))
	require.NoError(t, g.Fill("ux", UFace, func(x, y, z, t float64) float64 { return x }))
	require.NoError(t, g.Fill("vy", VFace, func(x, y, z, t float64) float64 { return y }))
	require.NoError(t, g.Fill("wz", WFace, func(x, y, z, t float64) float64 { return z }))
	require.NoError(t, g.Fill("t", Center, func(x, y, z, t float64) float64 { return t }))

	assert.Equal(t, 2.0, g.Value("x", 0, 0, 0, 2))
	assert.Equal(t, 1.5, g.Value("ux", 0, 0, 0, 2))
	assert.Equal(t, 10.25, g.Value("vy", 0, 0, 1, 0))
	assert.Equal(t, 0.0, g.Value("wz", 0, 0, 0, 0))
	assert.Equal(t, -10.0, g.Value("wz", 0, 1, 0, 0))
	assert.Equal(t, 3600.0, g.Value("t", 1, 2, 3, 4))
	assert.Equal(t, UFace, g.Location("ux"))
	assert.True(t, g.Has("vy"))
	assert.False(t, g.Has("salt"))
	assert.True(t, math.IsNaN(g.Value("salt", 0, 0, 0, 0)))
}

func TestAddFieldRejectsWrongLength(t *testing.T) {
	g := testGrid(t)
	err := g.AddField("temp", Center, make([]float64, 7))
	assert.ErrorIs(t, err, oceerr.ErrConfiguration)
}

func TestMetricAndCellSize(t *testing.T) {
	g := testGrid(t)
	mx, my := g.Metric(0, 0)
	perDegree := EarthRadius * math.Pi / 180
	assert.InDelta(t, perDegree, mx, 1e-6)
	assert.InDelta(t, perDegree, my, 1e-6)

	mx, _ = g.Metric(0, 60)
	assert.InDelta(t, perDegree/2, mx, 1e-6)

	dx, dy := g.CellSize(0, 0)
	assert.InDelta(t, perDegree*math.Cos(10*math.Pi/180), dx, 1e-6)
	assert.InDelta(t, perDegree*0.5, dy, 1e-6)

	cart, err := NewRectilinear(Axis(0, 100, 3), Axis(0, 50, 3), nil, nil, false)
	require.NoError(t, err)
	dx, dy = cart.CellSize(2, 2)
	assert.Equal(t, 100.0, dx)
	assert.Equal(t, 50.0, dy)
}

func TestRotation(t *testing.T) {
	g := testGrid(t)
	c, s := g.Rotation(0, 0)
	assert.Equal(t, 1.0, c)
	assert.Equal(t, 0.0, s)

	g.Angle = make([]float64, 4*5)
	g.Angle[1*5+2] = math.Pi / 2
	c, s = g.Rotation(1, 2)
	assert.InDelta(t, 0, c, 1e-12)
	assert.InDelta(t, 1, s, 1e-12)
}

func TestFractional(t *testing.T) {
	i, r := Fractional(2.25, 5)
	assert.Equal(t, 2, i)
	assert.InDelta(t, 0.25, r, 1e-12)

	i, r = Fractional(-0.5, 5)
	assert.Equal(t, 0, i)
	assert.Zero(t, r)

	i, r = Fractional(4.5, 5)
	assert.Equal(t, 4, i)
	assert.Zero(t, r)

	assert.Equal(t, 0, Clamp(-1, 3))
	assert.Equal(t, 2, Clamp(3, 3))
}
