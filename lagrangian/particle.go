// Package lagrangian advects batches of particles through a grid's velocity
// field.
//
// A Particle moves through an explicit state machine:
//
//	Seeded -> Advancing -> {Snapshot | Seeded (next leg)} -> Terminal
//
// Refresh opens a velocity window and puts the particle back in Seeded,
// AdvanceTo integrates every particle forward, Snapshot captures an immutable
// copy of the state and Finish ends the particle's life.
package lagrangian

import (
	"fmt"
	"math"

	"github.com/pthm-cable/oceinterp/config"
	"github.com/pthm-cable/oceinterp/eulerian"
	"github.com/pthm-cable/oceinterp/grid"
	"github.com/pthm-cable/oceinterp/kernel"
	"github.com/pthm-cable/oceinterp/metrics"
	"github.com/pthm-cable/oceinterp/oceerr"
	"github.com/pthm-cable/oceinterp/parallel"
)

// State is a particle lifecycle stage.
type State uint8

const (
	Seeded State = iota
	Advancing
	Snapshotted
	Terminal
)

func (s State) String() string {
	switch s {
	case Seeded:
		return "seeded"
	case Advancing:
		return "advancing"
	case Snapshotted:
		return "snapshot"
	case Terminal:
		return "terminal"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	Seeded:      {Seeded, Advancing, Snapshotted, Terminal},
	Advancing:   {Seeded, Advancing, Snapshotted, Terminal},
	Snapshotted: {Seeded, Advancing, Snapshotted, Terminal},
}

// velocityField is a velocity component resolved against the grid.
type velocityField struct {
	name string
	loc  grid.Location
	k    *kernel.Kernel
}

// Particle is a batch of particles that share a clock. It embeds the
// Eulerian position of every particle, so a particle can be interpolated like
// any query batch.
type Particle struct {
	*eulerian.Position

	// U, V, W hold the velocity (m/s, east/north/up) last sampled at each
	// particle's position.
	U, V, W []float64

	// Stuck marks particles halted at the domain edge under the freeze
	// boundary policy.
	Stuck []bool

	cfg     config.LagrangianConfig
	step    integrator
	sampler *eulerian.Sampler
	u, v, w velocityField
	hasW    bool

	time        float64
	windowStart float64
	windowEnd   float64
	hasWindow   bool
	state       State
}

// New seeds particles at (x, y, z) at time t0. z may be nil for surface
// particles. Seeds outside the domain fail with ErrDomainExit unless the
// boundary policy is freeze, which marks them stuck.
func New(g grid.Grid, x, y, z []float64, t0 float64, cfg config.LagrangianConfig) (*Particle, error) {
	step, err := integratorFor(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	if cfg.MaxStep <= 0 || cfg.CFL <= 0 {
		return nil, fmt.Errorf("%w: max_step and cfl must be positive", oceerr.ErrConfiguration)
	}
	if cfg.Boundary != "error" && cfg.Boundary != "freeze" {
		return nil, fmt.Errorf("%w: boundary policy %q", oceerr.ErrConfiguration, cfg.Boundary)
	}

	p := &Particle{
		cfg:     cfg,
		step:    step,
		sampler: eulerian.NewSampler(g),
		time:    t0,
		state:   Seeded,
	}
	if p.u, err = resolveField(g, cfg.Velocity.U, kernel.U); err != nil {
		return nil, err
	}
	if p.v, err = resolveField(g, cfg.Velocity.V, kernel.V); err != nil {
		return nil, err
	}
	if cfg.Velocity.W != "" {
		if p.w, err = resolveField(g, cfg.Velocity.W, kernel.W); err != nil {
			return nil, err
		}
		p.hasW = true
	}

	t := make([]float64, len(x))
	for i := range t {
		t[i] = t0
	}
	pos, err := eulerian.FromLatLon(g, x, y, z, t)
	if err != nil {
		return nil, err
	}
	p.Position = pos
	n := pos.Len()
	p.U, p.V, p.W = make([]float64, n), make([]float64, n), make([]float64, n)
	p.Stuck = make([]bool, n)

	for i, in := range pos.In {
		if in {
			continue
		}
		if cfg.Boundary == "error" {
			return nil, oceerr.Point(i, fmt.Errorf("%w: seed (%g, %g, %g)", oceerr.ErrDomainExit, pos.X[i], pos.Y[i], pos.Z[i]))
		}
		p.Stuck[i] = true
	}
	return p, nil
}

func resolveField(g grid.Grid, name string, k *kernel.Kernel) (velocityField, error) {
	if name == "" {
		return velocityField{}, fmt.Errorf("%w: velocity component name is empty", oceerr.ErrConfiguration)
	}
	if !g.Has(name) {
		return velocityField{}, oceerr.Variable(name, oceerr.ErrUnsupportedVariable)
	}
	if err := k.Check(g); err != nil {
		return velocityField{}, oceerr.Variable(name, err)
	}
	loc, err := k.Resolve(g.Location(name))
	if err != nil {
		return velocityField{}, oceerr.Variable(name, err)
	}
	return velocityField{name: name, loc: loc, k: k}, nil
}

// WithPool sets the worker pool used to advance particles and returns p.
func (p *Particle) WithPool(pool *parallel.Pool) *Particle {
	p.Position.WithPool(pool)
	return p
}

// Time returns the time all particles were last synchronized to.
func (p *Particle) Time() float64 { return p.time }

// State returns the current lifecycle stage.
func (p *Particle) State() State { return p.state }

// Window returns the active velocity window. ok is false before the first
// Refresh.
func (p *Particle) Window() (start, end float64, ok bool) {
	return p.windowStart, p.windowEnd, p.hasWindow
}

func (p *Particle) transition(to State) error {
	for _, s := range transitions[p.state] {
		if s == to {
			p.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: particle cannot move from %s to %s", oceerr.ErrUsage, p.state, to)
}

// Refresh opens the velocity window [start, end] for the next leg. start
// must be the particle time.
func (p *Particle) Refresh(start, end float64) error {
	if start != p.time || end < start {
		return fmt.Errorf("%w: window [%g, %g] does not start at particle time %g", oceerr.ErrUsage, start, end, p.time)
	}
	if err := p.transition(Seeded); err != nil {
		return err
	}
	p.windowStart, p.windowEnd, p.hasWindow = start, end, true
	return nil
}

// fieldTime returns the time at which the velocity field is read for an
// integration stage at time t.
func (p *Particle) fieldTime(t float64) float64 {
	if p.hasWindow && p.cfg.TimeSampling == "window" {
		return 0.5 * (p.windowStart + p.windowEnd)
	}
	return t
}

// sample reads the velocity in m/s at a point. ok is false outside the
// domain.
func (p *Particle) sample(x, y, z, t float64) (vec3, bool) {
	a, ok := p.Grid().Locate(x, y, z, p.fieldTime(t))
	if !ok {
		return vec3{}, false
	}
	var out vec3
	out[0], out[1] = p.sampler.Vector(p.u.name, p.v.name, p.u.loc, p.v.loc, p.u.k, p.v.k, a)
	if p.hasW {
		out[2] = p.sampler.Scalar(p.w.name, p.w.loc, p.w.k, a)
	}
	return out, true
}

// rate converts the velocity at a point into coordinate units per second.
func (p *Particle) rate(x, y, z, t float64) (vec3, bool) {
	vel, ok := p.sample(x, y, z, t)
	if !ok {
		return vec3{}, false
	}
	mx, my := p.Grid().Metric(x, y)
	return vec3{vel[0] / mx, vel[1] / my, vel[2]}, true
}

// AdvanceTo integrates every particle to time t. Particles are independent
// and advance in parallel. A particle leaving the domain fails the call with
// the lowest offending index unless the boundary policy is freeze; the whole
// batch is then left where it was before the call.
func (p *Particle) AdvanceTo(t float64) error {
	if t < p.time {
		return fmt.Errorf("%w: cannot advance backwards from %g to %g", oceerr.ErrUsage, p.time, t)
	}
	if err := p.transition(Advancing); err != nil {
		return err
	}
	var saved *checkpoint
	if p.cfg.Boundary != "freeze" {
		saved = p.checkpoint()
	}

	pool := p.Pool()
	steps := make([]int, pool.Workers())
	var errs parallel.Errors
	pool.Range(p.Len(), func(start, end, worker int) {
		for i := start; i < end; i++ {
			n, err := p.advanceOne(i, t)
			steps[worker] += n
			errs.Set(i, err)
		}
	})

	var total int
	for _, n := range steps {
		total += n
	}
	metrics.ParticleSubsteps.Add(float64(total))

	if err := errs.Err(); err != nil {
		saved.restore(p)
		return err
	}
	p.time = t
	return nil
}

// checkpoint is a copy of the per-particle state taken before a batch moves.
type checkpoint struct {
	pos     *eulerian.Position
	u, v, w []float64
	stuck   []bool
}

func (p *Particle) checkpoint() *checkpoint {
	return &checkpoint{
		pos:   p.Position.Clone(),
		u:     append([]float64(nil), p.U...),
		v:     append([]float64(nil), p.V...),
		w:     append([]float64(nil), p.W...),
		stuck: append([]bool(nil), p.Stuck...),
	}
}

func (c *checkpoint) restore(p *Particle) {
	if c == nil {
		return
	}
	p.Position = c.pos
	p.U, p.V, p.W, p.Stuck = c.u, c.v, c.w, c.stuck
}

// advanceOne moves particle i to time t and returns the number of sub-steps
// taken. Under the freeze policy an exit is not an error but the particle
// stays stuck.
func (p *Particle) advanceOne(i int, t float64) (int, error) {
	steps := 0
	for !p.Stuck[i] && p.T[i] < t {
		x, y, z, now := p.X[i], p.Y[i], p.Z[i], p.T[i]

		vel, ok := p.sample(x, y, z, now)
		if !ok {
			return steps, p.exit(i, t)
		}
		p.U[i], p.V[i], p.W[i] = vel[0], vel[1], vel[2]

		dt := math.Min(p.cfg.MaxStep, t-now)
		if speed := math.Hypot(vel[0], vel[1]); speed > 0 {
			dx, dy := p.Grid().CellSize(p.J[i], p.I[i])
			dt = math.Min(dt, p.cfg.CFL*math.Min(dx, dy)/speed)
		}
		next := now + dt
		if t-next <= 1e-9*math.Max(1, math.Abs(t)) {
			next, dt = t, t-now
		}

		nx, ny, nz, ok := p.step(p, x, y, z, now, dt)
		steps++
		if !ok || !p.Move(i, nx, ny, nz, next) {
			// roll back to the last valid location
			p.Move(i, x, y, z, now)
			return steps, p.exit(i, t)
		}
	}
	if p.Stuck[i] {
		p.Move(i, p.X[i], p.Y[i], p.Z[i], t)
		return steps, nil
	}
	if vel, ok := p.sample(p.X[i], p.Y[i], p.Z[i], p.T[i]); ok {
		p.U[i], p.V[i], p.W[i] = vel[0], vel[1], vel[2]
	}
	return steps, nil
}

func (p *Particle) exit(i int, t float64) error {
	metrics.DomainExits.Inc()
	if p.cfg.Boundary == "freeze" {
		p.Stuck[i] = true
		p.Move(i, p.X[i], p.Y[i], p.Z[i], t)
		p.U[i], p.V[i], p.W[i] = 0, 0, 0
		return nil
	}
	return oceerr.Point(i, fmt.Errorf("%w at (%g, %g, %g), t=%g", oceerr.ErrDomainExit, p.X[i], p.Y[i], p.Z[i], p.T[i]))
}

// Snapshot captures the current state. The snapshot shares nothing mutable
// with the particle.
func (p *Particle) Snapshot() (*Snapshot, error) {
	if err := p.transition(Snapshotted); err != nil {
		return nil, err
	}
	metrics.Snapshots.Inc()
	return &Snapshot{
		Position: p.Position.Clone(),
		Time:     p.time,
		U:        append([]float64(nil), p.U...),
		V:        append([]float64(nil), p.V...),
		W:        append([]float64(nil), p.W...),
		Stuck:    append([]bool(nil), p.Stuck...),
	}, nil
}

// Finish moves the particle to its terminal state. Any later transition
// fails with ErrUsage.
func (p *Particle) Finish() error {
	return p.transition(Terminal)
}

// Config returns the advection settings the particle was built with.
func (p *Particle) Config() config.LagrangianConfig { return p.cfg }
