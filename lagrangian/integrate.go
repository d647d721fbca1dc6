package lagrangian

import (
	"fmt"

	"github.com/pthm-cable/oceinterp/oceerr"
)

type vec3 [3]float64

func (a vec3) add(b vec3, s float64) vec3 {
	return vec3{a[0] + s*b[0], a[1] + s*b[1], a[2] + s*b[2]}
}

// integrator advances one particle from (x, y, z) at time t by dt seconds.
// ok is false when a stage falls outside the domain.
type integrator func(p *Particle, x, y, z, t, dt float64) (nx, ny, nz float64, ok bool)

func integratorFor(name string) (integrator, error) {
	switch name {
	case "euler":
		return euler, nil
	case "rk2":
		return midpoint, nil
	case "rk4":
		return rk4, nil
	}
	return nil, fmt.Errorf("%w: unknown integrator %q", oceerr.ErrConfiguration, name)
}

func euler(p *Particle, x, y, z, t, dt float64) (float64, float64, float64, bool) {
	k1, ok := p.rate(x, y, z, t)
	if !ok {
		return 0, 0, 0, false
	}
	r := vec3{x, y, z}.add(k1, dt)
	return r[0], r[1], r[2], true
}

func midpoint(p *Particle, x, y, z, t, dt float64) (float64, float64, float64, bool) {
	x0 := vec3{x, y, z}
	k1, ok := p.rate(x, y, z, t)
	if !ok {
		return 0, 0, 0, false
	}
	m := x0.add(k1, dt/2)
	k2, ok := p.rate(m[0], m[1], m[2], t+dt/2)
	if !ok {
		return 0, 0, 0, false
	}
	r := x0.add(k2, dt)
	return r[0], r[1], r[2], true
}

func rk4(p *Particle, x, y, z, t, dt float64) (float64, float64, float64, bool) {
	x0 := vec3{x, y, z}
	k1, ok := p.rate(x, y, z, t)
	if !ok {
		return 0, 0, 0, false
	}
	s2 := x0.add(k1, dt/2)
	k2, ok := p.rate(s2[0], s2[1], s2[2], t+dt/2)
	if !ok {
		return 0, 0, 0, false
	}
	s3 := x0.add(k2, dt/2)
	k3, ok := p.rate(s3[0], s3[1], s3[2], t+dt/2)
	if !ok {
		return 0, 0, 0, false
	}
	s4 := x0.add(k3, dt)
	k4, ok := p.rate(s4[0], s4[1], s4[2], t+dt)
	if !ok {
		return 0, 0, 0, false
	}
	r := x0.
		add(k1, dt/6).
		add(k2, dt/3).
		add(k3, dt/3).
		add(k4, dt/6)
	return r[0], r[1], r[2], true
}
