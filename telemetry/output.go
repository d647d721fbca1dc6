package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/eulerian"
	"github.com/pthm-cable/oceinterp/lagrangian"
)

// TrajectoryRow is one particle at one snapshot.
type TrajectoryRow struct {
	RunID    string  `csv:"run_id"`
	Stop     int     `csv:"stop"`
	Time     float64 `csv:"time"`
	Particle int     `csv:"particle"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Z        float64 `csv:"z"`
	U        float64 `csv:"u"`
	V        float64 `csv:"v"`
	W        float64 `csv:"w"`
	In       bool    `csv:"in_domain"`
	Stuck    bool    `csv:"stuck"`
}

// FieldRow is one interpolated value at one query point. Component is empty
// for scalars and "u" or "v" for vector pairs. Stop is the snapshot index of
// a Lagrangian run and 0 for Eulerian runs.
type FieldRow struct {
	RunID     string  `csv:"run_id"`
	Stop      int     `csv:"stop"`
	Point     int     `csv:"point"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	Z         float64 `csv:"z"`
	T         float64 `csv:"t"`
	Var       string  `csv:"var"`
	Component string  `csv:"component"`
	Value     float64 `csv:"value"`
}

// csvFile appends records to a CSV file, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir        string
	trajectory *csvFile
	fields     *csvFile
	stats      *csvFile
	perf       *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, out := range []struct {
		name string
		dst  **csvFile
	}{
		{"trajectory.csv", &om.trajectory},
		{"fields.csv", &om.fields},
		{"stats.csv", &om.stats},
		{"perf.csv", &om.perf},
	} {
		f, err := os.Create(filepath.Join(dir, out.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", out.name, err)
		}
		*out.dst = &csvFile{f: f}
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// TrajectoryRows flattens snapshots into one row per particle per snapshot.
// times[k] is the time of snaps[k].
func TrajectoryRows(runID string, times []float64, snaps []*lagrangian.Snapshot) []TrajectoryRow {
	var rows []TrajectoryRow
	for k, s := range snaps {
		for i := 0; i < s.Len(); i++ {
			rows = append(rows, TrajectoryRow{
				RunID: runID, Stop: k, Time: times[k], Particle: i,
				X: s.X[i], Y: s.Y[i], Z: s.Z[i],
				U: s.U[i], V: s.V[i], W: s.W[i],
				In: s.In[i], Stuck: s.Stuck[i],
			})
		}
	}
	return rows
}

// WriteTrajectory writes every particle of every snapshot to trajectory.csv.
func (om *OutputManager) WriteTrajectory(runID string, times []float64, snaps []*lagrangian.Snapshot) error {
	if om == nil {
		return nil
	}
	rows := TrajectoryRows(runID, times, snaps)
	if len(rows) == 0 {
		return nil
	}
	if err := om.trajectory.write(rows); err != nil {
		return fmt.Errorf("writing trajectory: %w", err)
	}
	return nil
}

// FieldRows flattens interpolated values into one row per point and
// variable component.
func FieldRows(runID string, stop int, pos *eulerian.Position, vars []eulerian.Var, values []eulerian.Value) []FieldRow {
	var rows []FieldRow
	row := func(i int, v eulerian.Var, comp string, value float64) FieldRow {
		return FieldRow{
			RunID: runID, Stop: stop, Point: i,
			X: pos.X[i], Y: pos.Y[i], Z: pos.Z[i], T: pos.T[i],
			Var: v.String(), Component: comp, Value: value,
		}
	}
	for k, v := range vars {
		for i := 0; i < pos.Len(); i++ {
			if v.Kind == eulerian.VectorVar {
				rows = append(rows, row(i, v, "u", values[k].U[i]), row(i, v, "v", values[k].V[i]))
			} else {
				rows = append(rows, row(i, v, "", values[k].Scalar[i]))
			}
		}
	}
	return rows
}

// WriteFields writes interpolated values to fields.csv.
func (om *OutputManager) WriteFields(runID string, stop int, pos *eulerian.Position, vars []eulerian.Var, values []eulerian.Value) error {
	if om == nil {
		return nil
	}
	rows := FieldRows(runID, stop, pos, vars, values)
	if len(rows) == 0 {
		return nil
	}
	if err := om.fields.write(rows); err != nil {
		return fmt.Errorf("writing fields: %w", err)
	}
	return nil
}

// WriteStats writes a stop stats record to stats.csv.
func (om *OutputManager) WriteStats(stats StopStats) error {
	if om == nil {
		return nil
	}
	if err := om.stats.write([]StopStats{stats}); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, runID string, steps int) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(runID, steps)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, c := range []*csvFile{om.trajectory, om.fields, om.stats, om.perf} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
