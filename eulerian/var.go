package eulerian

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/oceinterp/kernel"
	"github.com/pthm-cable/oceinterp/oceerr"
)

// ParticleToken prefixes variables that read particle state instead of grid
// fields. They are only meaningful for Lagrangian snapshots.
const ParticleToken = "__particle."

// RawAttr is the reserved attribute that asks for the snapshots themselves.
const RawAttr = "raw"

// VarKind tags the shape of a Var.
type VarKind uint8

const (
	ScalarVar VarKind = iota
	VectorVar
	ReservedVar
)

// Var names what to interpolate: a scalar field, a pair of fields forming a
// vector, or a reserved particle attribute.
type Var struct {
	Kind VarKind
	Name string // scalar field name or reserved attribute
	U, V string // vector components
}

// Scalar returns a scalar field variable.
func Scalar(name string) Var { return Var{Kind: ScalarVar, Name: name} }

// Vector returns a vector variable from its two components.
func Vector(u, v string) Var { return Var{Kind: VectorVar, U: u, V: v} }

// Reserved returns a particle attribute variable.
func Reserved(attr string) Var { return Var{Kind: ReservedVar, Name: attr} }

// Raw is the reserved variable returning raw snapshots.
var Raw = Reserved(RawAttr)

// ParseVar resolves a textual variable spec: "__particle.<attr>" is reserved,
// "U,V" is a vector pair, anything else is a scalar name.
func ParseVar(s string) (Var, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Var{}, fmt.Errorf("%w: empty variable spec", oceerr.ErrConfiguration)
	case strings.HasPrefix(s, ParticleToken):
		attr := strings.TrimPrefix(s, ParticleToken)
		if attr == "" {
			return Var{}, fmt.Errorf("%w: %q names no particle attribute", oceerr.ErrConfiguration, s)
		}
		return Reserved(attr), nil
	case strings.Contains(s, ","):
		parts := strings.Split(s, ",")
		if len(parts) != 2 {
			return Var{}, fmt.Errorf("%w: vector spec %q must name exactly two components", oceerr.ErrConfiguration, s)
		}
		u, v := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if u == "" || v == "" {
			return Var{}, fmt.Errorf("%w: vector spec %q has an empty component", oceerr.ErrConfiguration, s)
		}
		return Vector(u, v), nil
	}
	return Scalar(s), nil
}

// ParseVars parses every spec in order.
func ParseVars(specs []string) ([]Var, error) {
	out := make([]Var, len(specs))
	for i, s := range specs {
		v, err := ParseVar(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (v Var) String() string {
	switch v.Kind {
	case VectorVar:
		return v.U + "," + v.V
	case ReservedVar:
		return ParticleToken + v.Name
	}
	return v.Name
}

// KernelSpec holds the kernel for a scalar variable, or the pair for a
// vector.
type KernelSpec struct {
	Scalar *kernel.Kernel
	U, V   *kernel.Kernel
}

// ScalarKernel returns a spec for a scalar variable.
func ScalarKernel(k *kernel.Kernel) KernelSpec { return KernelSpec{Scalar: k} }

// PairKernels returns a spec for a vector variable.
func PairKernels(u, v *kernel.Kernel) KernelSpec { return KernelSpec{U: u, V: v} }

// Value is the result of interpolating one variable over a batch. Scalar is
// set for scalar variables, U and V for vectors.
type Value struct {
	Scalar []float64
	U, V   []float64
}
