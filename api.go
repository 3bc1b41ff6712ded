// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xecon provides two-agent, two-good exchange economy models.
//
// The total endowment of each good is normalized to 1, so agent B always
// holds what agent A does not. Good 2 is the numeraire.
package xecon

import (
	"errors"
	"fmt"
)

// Model is the capability set shared by every preference family.
type Model interface {
	Params() Params

	UtilityA(x1, x2 float64) float64
	UtilityB(x1, x2 float64) float64

	// IndifferenceA returns the quantity of good 2 that keeps agent A at
	// utility uA at x1 units of good 1.
	IndifferenceA(uA, x1 float64) float64
	IndifferenceB(uB, x1 float64) float64

	// DemandA returns agent A's optimal bundle at price p1 for good 1.
	// p1 must be positive.
	DemandA(p1 float64) Allocation
	DemandB(p1 float64) Allocation
}

// MarginalUtilities is implemented by models that know the gradients of
// their utility functions. Both built-in models do.
type MarginalUtilities interface {
	MarginalUtilityA(x1, x2 float64) (mu1, mu2 float64)
	MarginalUtilityB(x1, x2 float64) (mu1, mu2 float64)
}

type Kind int

const (
	QuasiLinear Kind = iota
	CobbDouglas
)

func (k Kind) String() string {
	switch k {
	case QuasiLinear:
		return "quasi-linear"
	case CobbDouglas:
		return "cobb-douglas"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the names returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "quasi-linear", "quasilinear":
		return QuasiLinear, nil
	case "cobb-douglas", "cobbdouglas":
		return CobbDouglas, nil
	default:
		return 0, fmt.Errorf("unknown model kind %q", s)
	}
}

// New creates the model of the given kind.
func New(kind Kind, par Params) (Model, error) {
	switch kind {
	case QuasiLinear:
		return NewQuasiLinear(par)
	case CobbDouglas:
		return NewCobbDouglas(par)
	default:
		return nil, fmt.Errorf("unsupported model kind: %v", kind)
	}
}

var ErrInvalidParams = errors.New("invalid params")

// Params holds the preference weights and agent A's endowment.
type Params struct {
	Alpha float64 `json:"alpha" koanf:"alpha"`
	Beta  float64 `json:"beta" koanf:"beta"`
	W1A   float64 `json:"w1A" koanf:"w1a"`
	W2A   float64 `json:"w2A" koanf:"w2a"`
}

// DefaultParams returns the textbook parameterization.
func DefaultParams() Params {
	return Params{
		Alpha: 1.0 / 3.0,
		Beta:  2.0 / 3.0,
		W1A:   0.8,
		W2A:   0.3,
	}
}

// Validate checks the invariants every model relies on.
func (p Params) Validate() error {
	if !(p.Alpha > 0) {
		return fmt.Errorf("%w: alpha must be > 0, got %g", ErrInvalidParams, p.Alpha)
	}
	if !(p.Beta > 0) {
		return fmt.Errorf("%w: beta must be > 0, got %g", ErrInvalidParams, p.Beta)
	}
	if !(p.W1A >= 0 && p.W1A <= 1) {
		return fmt.Errorf("%w: w1A must be between 0 and 1, got %g", ErrInvalidParams, p.W1A)
	}
	if !(p.W2A >= 0 && p.W2A <= 1) {
		return fmt.Errorf("%w: w2A must be between 0 and 1, got %g", ErrInvalidParams, p.W2A)
	}
	return nil
}

func (p Params) EndowmentA() Allocation {
	return Allocation{X1: p.W1A, X2: p.W2A}
}

func (p Params) EndowmentB() Allocation {
	return p.EndowmentA().Complement()
}

// Allocation is the bundle (good 1, good 2) assigned to one agent.
type Allocation struct {
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
}

// Complement returns the bundle left for the other agent.
func (a Allocation) Complement() Allocation {
	return Allocation{X1: 1 - a.X1, X2: 1 - a.X2}
}

func (a Allocation) Slice() []float64 {
	return []float64{a.X1, a.X2}
}

// ParetoImprovement reports whether giving xA to agent A and the rest to
// agent B leaves both at least as well off as consuming their endowments.
func ParetoImprovement(m Model, xA Allocation) bool {
	par := m.Params()
	wA, wB := par.EndowmentA(), par.EndowmentB()
	xB := xA.Complement()

	return m.UtilityA(xA.X1, xA.X2) >= m.UtilityA(wA.X1, wA.X2) &&
		m.UtilityB(xB.X1, xB.X2) >= m.UtilityB(wB.X1, wB.X2)
}
