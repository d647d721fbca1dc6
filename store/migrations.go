package store

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    particles INTEGER NOT NULL,
    config_yaml TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trajectories (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    stop INTEGER NOT NULL,
    time REAL NOT NULL,
    particle INTEGER NOT NULL,
    x REAL,
    y REAL,
    z REAL,
    u REAL,
    v REAL,
    w REAL,
    in_domain BOOLEAN NOT NULL,
    stuck BOOLEAN NOT NULL,
    PRIMARY KEY (run_id, stop, particle)
);

CREATE TABLE IF NOT EXISTS fields (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    point INTEGER NOT NULL,
    var TEXT NOT NULL,
    component TEXT NOT NULL,
    x REAL,
    y REAL,
    z REAL,
    t REAL,
    value REAL,
    PRIMARY KEY (run_id, var, component, point)
);
`,
	},
	{
		Version:     2,
		Description: "Per-stop particle statistics",
		SQL: `
CREATE TABLE IF NOT EXISTS stop_stats (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    stop INTEGER NOT NULL,
    time REAL NOT NULL,
    particles INTEGER NOT NULL,
    in_domain INTEGER NOT NULL,
    stuck INTEGER NOT NULL,
    speed_mean REAL,
    speed_p50 REAL,
    disp_mean REAL,
    disp_max REAL,
    PRIMARY KEY (run_id, stop)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`,
	},
	{
		Version:     3,
		Description: "Field values per snapshot",
		SQL: `
CREATE TABLE fields_v3 (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    stop INTEGER NOT NULL DEFAULT 0,
    point INTEGER NOT NULL,
    var TEXT NOT NULL,
    component TEXT NOT NULL,
    x REAL,
    y REAL,
    z REAL,
    t REAL,
    value REAL,
    PRIMARY KEY (run_id, stop, var, component, point)
);

INSERT INTO fields_v3 (run_id, stop, point, var, component, x, y, z, t, value)
SELECT run_id, 0, point, var, component, x, y, z, t, value FROM fields;

DROP TABLE fields;
ALTER TABLE fields_v3 RENAME TO fields;
`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		s.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TEXT
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// SchemaVersion returns the highest applied migration, or 0.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}
