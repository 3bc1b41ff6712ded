// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solver minimizes a smooth function of a few variables subject to
// box bounds and nonlinear equality and inequality constraints, using
// sequential quadratic programming.
package solver

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// Func is a scalar function of the optimization variables.
type Func func(x []float64) float64

// GradFunc stores the gradient at x into grad.
type GradFunc func(grad, x []float64)

type ConstraintKind int

const (
	// Inequality constraints require Func(x) >= 0.
	Inequality ConstraintKind = iota
	// Equality constraints require Func(x) == 0.
	Equality
)

func (k ConstraintKind) String() string {
	switch k {
	case Inequality:
		return "inequality"
	case Equality:
		return "equality"
	default:
		return fmt.Sprintf("ConstraintKind(%d)", int(k))
	}
}

type Constraint struct {
	Kind ConstraintKind
	Func Func
	Grad GradFunc // can be nil
}

// Bound limits one variable; use math.Inf for an open side.
type Bound struct {
	Lower float64
	Upper float64
}

type Problem struct {
	Func Func
	Grad GradFunc // can be nil, forward differences are used then

	Bounds      []Bound // empty or one per variable
	Constraints []Constraint
}

type Status int

const (
	NotTerminated Status = iota
	Success
	IterationLimit
	LineSearchFailure
	SubproblemFailure
)

func (s Status) String() string {
	switch s {
	case NotTerminated:
		return "NotTerminated"
	case Success:
		return "Success"
	case IterationLimit:
		return "IterationLimit"
	case LineSearchFailure:
		return "LineSearchFailure"
	case SubproblemFailure:
		return "SubproblemFailure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Err returns nil for Success and the matching sentinel error otherwise.
func (s Status) Err() error {
	switch s {
	case Success:
		return nil
	case IterationLimit:
		return ErrIterationLimit
	case LineSearchFailure:
		return ErrLineSearchFailure
	case SubproblemFailure:
		return ErrSubproblemFailure
	default:
		return fmt.Errorf("solver: terminated with status %v", s)
	}
}

var (
	ErrInvalidProblem     = errors.New("solver: invalid problem")
	ErrNonFinite          = errors.New("solver: non-finite function value")
	ErrTooManyConstraints = errors.New("solver: too many constraints")
	ErrIterationLimit     = errors.New("solver: iteration limit reached")
	ErrLineSearchFailure  = errors.New("solver: line search failed")
	ErrSubproblemFailure  = errors.New("solver: quadratic subproblem has no solution")
)

const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-6
	DefaultStep          = 1.4901161193847656e-08 // sqrt of float64 machine epsilon
)

// Settings tune Minimize. Zero fields take the defaults.
type Settings struct {
	MaxIterations int
	// Tolerance bounds the objective change, the KKT residual and the
	// constraint violation at termination.
	Tolerance float64
	// Step is the forward-difference step used when a gradient is not given.
	Step float64

	Log logr.Logger
}

func DefaultSettings() *Settings {
	return &Settings{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		Step:          DefaultStep,
		Log:           logr.Discard(),
	}
}

type Result struct {
	X []float64
	F float64

	// Multipliers of Problem.Constraints, in order.
	Multipliers []float64
	// Violation is the largest constraint violation at X.
	Violation float64

	Status          Status
	Iterations      int
	FuncEvaluations int
	GradEvaluations int
}
