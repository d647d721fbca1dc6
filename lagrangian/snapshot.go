package lagrangian

import (
	"fmt"

	"github.com/pthm-cable/oceinterp/eulerian"
	"github.com/pthm-cable/oceinterp/oceerr"
)

// Snapshot is a particle state captured at one stop time. It is never
// modified after capture and can be interpolated like a Position.
type Snapshot struct {
	*eulerian.Position

	Time    float64
	U, V, W []float64
	Stuck   []bool
}

// Attrs lists the particle attributes Attr understands.
var Attrs = []string{"x", "y", "z", "t", "i", "j", "k", "it", "rx", "ry", "rz", "rt", "u", "v", "w", "stuck"}

// Attr extracts one particle attribute as a float per particle.
func (s *Snapshot) Attr(name string) ([]float64, error) {
	switch name {
	case "x":
		return clone(s.X), nil
	case "y":
		return clone(s.Y), nil
	case "z":
		return clone(s.Z), nil
	case "t":
		return clone(s.T), nil
	case "rx":
		return clone(s.RX), nil
	case "ry":
		return clone(s.RY), nil
	case "rz":
		return clone(s.RZ), nil
	case "rt":
		return clone(s.RT), nil
	case "u":
		return clone(s.U), nil
	case "v":
		return clone(s.V), nil
	case "w":
		return clone(s.W), nil
	case "i":
		return ints(s.I), nil
	case "j":
		return ints(s.J), nil
	case "k":
		return ints(s.K), nil
	case "it":
		return ints(s.IT), nil
	case "stuck":
		out := make([]float64, len(s.Stuck))
		for i, b := range s.Stuck {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	}
	return nil, oceerr.Variable(eulerian.ParticleToken+name,
		fmt.Errorf("%w: unknown particle attribute", oceerr.ErrUnsupportedVariable))
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func ints(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
