// Package config provides configuration loading and access for interpolation
// and particle tracking runs.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/oceinterp/oceerr"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
type Config struct {
	Kernel     KernelConfig     `yaml:"kernel"`
	Lagrangian LagrangianConfig `yaml:"lagrangian"`
	Output     OutputConfig     `yaml:"output"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Store      StoreConfig      `yaml:"store"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// KernelConfig describes the default kernel used for scalar variables.
type KernelConfig struct {
	Horizontal string `yaml:"horizontal"` // nearest, linear or lagrange
	Order      int    `yaml:"order"`      // polynomial order when horizontal=lagrange
	Vertical   string `yaml:"vertical"`   // nearest or linear
	Time       string `yaml:"time"`       // nearest or linear
}

// LagrangianConfig holds particle advection parameters.
type LagrangianConfig struct {
	Integrator     string         `yaml:"integrator"`      // euler, rk2 or rk4
	MaxStep        float64        `yaml:"max_step"`        // upper bound on a sub-step, seconds
	CFL            float64        `yaml:"cfl"`             // fraction of a cell a sub-step may cross
	Boundary       string         `yaml:"boundary"`        // error or freeze
	UpdatePolicy   string         `yaml:"update_policy"`   // midpoints, levels or interval
	UpdateInterval float64        `yaml:"update_interval"` // seconds, update_policy=interval only
	TimeSampling   string         `yaml:"time_sampling"`   // window or continuous
	Velocity       VelocityConfig `yaml:"velocity"`
}

// VelocityConfig names the velocity components on the grid. An empty W
// disables vertical motion.
type VelocityConfig struct {
	U string `yaml:"u"`
	V string `yaml:"v"`
	W string `yaml:"w"`
}

// OutputConfig holds output toggles.
type OutputConfig struct {
	ReturnInBetween bool   `yaml:"return_in_between"`
	ReturnPtTime    bool   `yaml:"return_pt_time"`
	Dir             string `yaml:"dir"` // CSV output directory (empty = disabled)
}

// ParallelConfig controls the worker pool.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // 0 = GOMAXPROCS
	Threshold int `yaml:"threshold"` // minimum batch size for parallel processing
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // listen address for /metrics (empty = not served)
}

// StoreConfig controls trajectory persistence.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database path (empty = disabled)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers int // effective worker count
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults. It panics if they do not parse,
// which only happens when defaults.yaml is broken at build time.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports malformed values. Kernel schemes are checked by the kernel
// package itself when a kernel is built.
func (c *Config) Validate() error {
	l := c.Lagrangian
	switch l.Integrator {
	case "euler", "rk2", "rk4":
	default:
		return fmt.Errorf("%w: lagrangian.integrator %q", oceerr.ErrConfiguration, l.Integrator)
	}
	switch l.Boundary {
	case "error", "freeze":
	default:
		return fmt.Errorf("%w: lagrangian.boundary %q", oceerr.ErrConfiguration, l.Boundary)
	}
	switch l.UpdatePolicy {
	case "midpoints", "levels":
	case "interval":
		if l.UpdateInterval <= 0 {
			return fmt.Errorf("%w: lagrangian.update_interval must be positive with update_policy=interval", oceerr.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: lagrangian.update_policy %q", oceerr.ErrConfiguration, l.UpdatePolicy)
	}
	switch l.TimeSampling {
	case "window", "continuous":
	default:
		return fmt.Errorf("%w: lagrangian.time_sampling %q", oceerr.ErrConfiguration, l.TimeSampling)
	}
	if l.MaxStep <= 0 {
		return fmt.Errorf("%w: lagrangian.max_step must be positive", oceerr.ErrConfiguration)
	}
	if l.CFL <= 0 || l.CFL > 1 {
		return fmt.Errorf("%w: lagrangian.cfl must be in (0, 1]", oceerr.ErrConfiguration)
	}
	if l.Velocity.U == "" || l.Velocity.V == "" {
		return fmt.Errorf("%w: lagrangian.velocity needs both u and v", oceerr.ErrConfiguration)
	}
	if c.Parallel.Workers < 0 || c.Parallel.Threshold < 0 {
		return fmt.Errorf("%w: parallel settings must not be negative", oceerr.ErrConfiguration)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Workers = c.Parallel.Workers
	if c.Derived.Workers == 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
