package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pthm-cable/oceinterp/telemetry"
)

// SaveTrajectory inserts trajectory rows for a run in one transaction. The
// RunID of each row is ignored in favour of id.
func (s *Store) SaveTrajectory(ctx context.Context, id uuid.UUID, rows []telemetry.TrajectoryRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trajectories (run_id, stop, time, particle, x, y, z, u, v, w, in_domain, stuck)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, stop, particle) DO UPDATE SET
			time = excluded.time,
			x = excluded.x, y = excluded.y, z = excluded.z,
			u = excluded.u, v = excluded.v, w = excluded.w,
			in_domain = excluded.in_domain,
			stuck = excluded.stuck
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trajectory insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			id.String(), r.Stop, r.Time, r.Particle,
			nullable(r.X), nullable(r.Y), nullable(r.Z),
			nullable(r.U), nullable(r.V), nullable(r.W),
			r.In, r.Stuck,
		); err != nil {
			return fmt.Errorf("failed to insert particle %d at stop %d: %w", r.Particle, r.Stop, err)
		}
	}
	return tx.Commit()
}

// LoadTrajectory returns the rows of a run ordered by stop then particle.
func (s *Store) LoadTrajectory(ctx context.Context, id uuid.UUID) ([]telemetry.TrajectoryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stop, time, particle, x, y, z, u, v, w, in_domain, stuck
		FROM trajectories
		WHERE run_id = ?
		ORDER BY stop, particle
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.TrajectoryRow
	for rows.Next() {
		r := telemetry.TrajectoryRow{RunID: id.String()}
		var x, y, z, u, v, w sql.NullFloat64
		if err := rows.Scan(&r.Stop, &r.Time, &r.Particle, &x, &y, &z, &u, &v, &w, &r.In, &r.Stuck); err != nil {
			return nil, err
		}
		r.X, r.Y, r.Z = value(x), value(y), value(z)
		r.U, r.V, r.W = value(u), value(v), value(w)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveFields inserts interpolated values for a run. Lagrangian runs carry
// one batch per snapshot, told apart by Stop.
func (s *Store) SaveFields(ctx context.Context, id uuid.UUID, rows []telemetry.FieldRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fields (run_id, stop, point, var, component, x, y, z, t, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, stop, var, component, point) DO UPDATE SET
			x = excluded.x, y = excluded.y, z = excluded.z, t = excluded.t,
			value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare field insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			id.String(), r.Stop, r.Point, r.Var, r.Component,
			nullable(r.X), nullable(r.Y), nullable(r.Z), nullable(r.T),
			nullable(r.Value),
		); err != nil {
			return fmt.Errorf("failed to insert %s at point %d: %w", r.Var, r.Point, err)
		}
	}
	return tx.Commit()
}

// LoadFields returns the field rows of a run ordered by stop, variable,
// component and point.
func (s *Store) LoadFields(ctx context.Context, id uuid.UUID) ([]telemetry.FieldRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stop, point, var, component, x, y, z, t, value
		FROM fields
		WHERE run_id = ?
		ORDER BY stop, var, component, point
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.FieldRow
	for rows.Next() {
		r := telemetry.FieldRow{RunID: id.String()}
		var x, y, z, t, v sql.NullFloat64
		if err := rows.Scan(&r.Stop, &r.Point, &r.Var, &r.Component, &x, &y, &z, &t, &v); err != nil {
			return nil, err
		}
		r.X, r.Y, r.Z, r.T, r.Value = value(x), value(y), value(z), value(t), value(v)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveStats records the summary of one stop.
func (s *Store) SaveStats(ctx context.Context, id uuid.UUID, st telemetry.StopStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stop_stats (run_id, stop, time, particles, in_domain, stuck, speed_mean, speed_p50, disp_mean, disp_max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, stop) DO NOTHING
	`, id.String(), st.Stop, st.Time, st.Particles, st.InDomain, st.Stuck,
		nullable(st.SpeedMean), nullable(st.SpeedP50), nullable(st.DispMean), nullable(st.DispMax))
	return err
}

// CountStats returns how many stops have recorded statistics for a run.
func (s *Store) CountStats(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stop_stats WHERE run_id = ?", id.String()).Scan(&n)
	return n, err
}
