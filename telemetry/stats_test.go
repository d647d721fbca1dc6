package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/lagrangian"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	mean, p10, p50, p90 := Summarize(values)

	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}
	if math.Abs(p10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", p10)
	}
	if math.Abs(p50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", p50)
	}
	if math.Abs(p90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", p90)
	}
	// input must not be reordered
	if values[0] != 1.0 {
		t.Error("Summarize sorted its input in place")
	}
}

func TestSummarizeEmpty(t *testing.T) {
	mean, p10, p50, p90 := Summarize(nil)
	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func uniformRun(t *testing.T, x []float64, until float64) (seed, end *lagrangian.Snapshot) {
	t.Helper()
	g, err := grid.NewRectilinear(grid.Axis(0, 10, 5), grid.Axis(0, 10, 5), nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := grid.UniformFlow(g, "U", "V", 1, 0); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default().Lagrangian
	cfg.Velocity = config.VelocityConfig{U: "U", V: "V"}
	cfg.Boundary = "freeze"

	y := make([]float64, len(x))
	for i := range y {
		y[i] = 5
	}
	p, err := lagrangian.New(g, x, y, nil, 0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if seed, err = p.Snapshot(); err != nil {
		t.Fatal(err)
	}
	if err := p.Refresh(0, until); err != nil {
		t.Fatal(err)
	}
	if err := p.AdvanceTo(until); err != nil {
		t.Fatal(err)
	}
	if end, err = p.Snapshot(); err != nil {
		t.Fatal(err)
	}
	return seed, end
}

func TestComputeStopStats(t *testing.T) {
	seed, end := uniformRun(t, []float64{5, 15, 38}, 10)

	st := ComputeStopStats(seed, end)
	if st.Time != 10 || st.Particles != 3 || st.InDomain != 3 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.Stuck != 1 {
		t.Errorf("stuck = %d, want 1", st.Stuck)
	}
	if math.Abs(st.SpeedMean-1) > 1e-9 {
		t.Errorf("speed mean = %v, want 1", st.SpeedMean)
	}
	if math.Abs(st.DispMax-10) > 1e-9 {
		t.Errorf("disp max = %v, want 10", st.DispMax)
	}
	if st.DispMean >= 10 {
		t.Errorf("disp mean = %v, stuck particle should pull it below 10", st.DispMean)
	}
}
