// Package store persists runs, particle trajectories and interpolated fields
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/oceinterp/config"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps a SQLite connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Run is one recorded Interp call.
type Run struct {
	ID        uuid.UUID
	Mode      string // "eulerian" or "lagrangian"
	Particles int
	Config    string // YAML
	CreatedAt time.Time
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Open opens (or creates) the database at path and migrates it.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a new run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, mode string, particles int, cfg *config.Config) (uuid.UUID, error) {
	var cfgYAML string
	if cfg != nil {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshaling config: %w", err)
		}
		cfgYAML = string(data)
	}

	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, mode, particles, config_yaml, created_at) VALUES (?, ?, ?, ?, ?)",
		id.String(), mode, particles, cfgYAML, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// GetRun returns the run with the given ID, or nil if there is none.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT run_id, mode, particles, config_yaml, created_at FROM runs WHERE run_id = ?",
		id.String(),
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, mode, particles, config_yaml, created_at FROM runs ORDER BY created_at DESC, rowid DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var id, created string
	var cfg sql.NullString
	if err := sc.Scan(&id, &r.Mode, &r.Particles, &cfg, &created); err != nil {
		return nil, err
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return nil, fmt.Errorf("run %s created_at: %w", id, err)
	}
	r.Config = cfg.String
	return &r, nil
}

// nullable stores NaN as NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// value reads NULL back as NaN.
func value(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
