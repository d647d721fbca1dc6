// Package oceerr defines the error taxonomy shared by the interpolation and
// advection packages. Callers match categories with errors.Is and recover the
// offending variable or point with errors.As.
package oceerr

import (
	"errors"
	"fmt"
)

// Categories. Every error returned by this module wraps exactly one of these.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrUsage               = errors.New("usage error")
	ErrUnsupportedVariable = errors.New("unsupported variable")
	ErrDomainExit          = errors.New("particle left the grid domain")
)

// Refinements of the categories above.
var (
	ErrInvalidConfiguration  = fmt.Errorf("%w: invalid kernel configuration", ErrConfiguration)
	ErrInvalidScheme         = fmt.Errorf("%w: particle state is only available in lagrangian mode", ErrUsage)
	ErrInsufficientTimeRange = fmt.Errorf("%w: at least two time values are required", ErrUsage)
)

// VariableError attaches the name of the variable being processed.
type VariableError struct {
	Var string
	Err error
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("variable %q: %v", e.Var, e.Err)
}

func (e *VariableError) Unwrap() error { return e.Err }

// PointError attaches the index of the query point or particle in its batch.
type PointError struct {
	Index int
	Err   error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("point %d: %v", e.Index, e.Err)
}

func (e *PointError) Unwrap() error { return e.Err }

// Variable wraps err with the variable name. A nil err stays nil.
func Variable(name string, err error) error {
	if err == nil {
		return nil
	}
	return &VariableError{Var: name, Err: err}
}

// Point wraps err with the point index. A nil err stays nil.
func Point(index int, err error) error {
	if err == nil {
		return nil
	}
	return &PointError{Index: index, Err: err}
}
