// Command oceinterp interpolates analytic ocean fields at seed points, in
// place or along particle trajectories.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/parallel"
	"github.com/pthm-cable/oceinterp/store"
	"github.com/pthm-cable/oceinterp/telemetry"
)

// CLI is the top-level command line.
type CLI struct {
	Config      string     `help:"Path to config.yaml (empty = use defaults)." type:"path"`
	OutputDir   string     `help:"Directory for CSV output and config snapshot." type:"path"`
	DB          string     `name:"db" help:"SQLite database for run history." type:"path"`
	LogLevel    slog.Level `help:"Log level (debug, info, warn, error)." default:"info"`
	MetricsAddr string     `help:"Serve Prometheus metrics on this address."`
	PerfWindow  int        `help:"Rolling window for performance stats." default:"120"`

	Eulerian   EulerianCmd   `cmd:"" help:"Interpolate fields at fixed points."`
	Lagrangian LagrangianCmd `cmd:"" help:"Advect particles and sample fields along their paths."`
	Runs       RunsCmd       `cmd:"" help:"List stored runs."`
}

// app is what every command runs against.
type app struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	pool   *parallel.Pool
	perf   *telemetry.PerfCollector
	out    *telemetry.OutputManager
	store  *store.Store
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("oceinterp"),
		kong.Description("Ocean model interpolation and particle tracking."),
		kong.UsageOnError(),
	)

	// Initialize config before anything else
	if err := config.Init(cli.Config); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if cli.OutputDir != "" {
		cfg.Output.Dir = cli.OutputDir
	}
	if cli.DB != "" {
		cfg.Store.Path = cli.DB
	}
	if cli.MetricsAddr != "" {
		cfg.Metrics.Addr = cli.MetricsAddr
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cli.LogLevel}))
	slog.SetDefault(logger)

	if err := run(kctx, cfg, cli.PerfWindow, logger); err != nil {
		logger.Error("run failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context, cfg *config.Config, perfWindow int, logger *slog.Logger) error {
	ctx := context.Background()

	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	out, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return err
	}

	a := &app{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		pool:   parallel.NewPool(cfg.Derived.Workers, cfg.Parallel.Threshold),
		perf:   telemetry.NewPerfCollector(perfWindow),
		out:    out,
	}
	if cfg.Store.Path != "" {
		st, err := store.Open(ctx, cfg.Store.Path, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		a.store = st
	}

	logger.Info("starting",
		"command", kctx.Command(),
		"workers", a.pool.Workers(),
		"output_dir", out.Dir(),
		"db", cfg.Store.Path,
	)
	return kctx.Run(a)
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
