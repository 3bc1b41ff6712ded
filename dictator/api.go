// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dictator solves the welfare problem of one agent who may pick any
// allocation, as long as the other agent is no worse off than at the
// endowment.
package dictator

import (
	"errors"

	"github.com/go-logr/logr"

	"github.com/someonegg/xecon"
	"github.com/someonegg/xecon/solver"
)

type Agent int

const (
	A Agent = iota
	B
)

func (a Agent) String() string {
	if a == A {
		return "A"
	}
	return "B"
}

func (a Agent) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

var (
	ErrInvalidSettings = errors.New("dictator: invalid settings")
	ErrNotConverged    = errors.New("dictator: optimizer did not converge")
	ErrInfeasible      = errors.New("participation constraint violated")
)

const (
	DefaultMaxIterations = 200
	DefaultTolerance     = 1e-8
)

type Solver struct {
	MaxIterations *int     `json:"max_iterations" koanf:"max_iterations"`
	Tolerance     *float64 `json:"tolerance" koanf:"tolerance"`

	// When set, the optimizer logs every iteration.
	Verbose bool `json:"vv" koanf:"verbose"`

	Log logr.Logger `json:"-" koanf:"-"`

	mi  int
	tol float64
}

// Result is the outcome of one dictator problem. XA and XB always add up
// to the total endowment.
type Result struct {
	Agent Agent `json:"agent"`

	XA xecon.Allocation `json:"xA"`
	XB xecon.Allocation `json:"xB"`
	UA float64          `json:"uA"`
	UB float64          `json:"uB"`

	Status      solver.Status `json:"status"`
	Iterations  int           `json:"iterations"`
	Evaluations int           `json:"evaluations"`
	Violation   float64       `json:"violation"`
}

// Dictator returns the bundle and utility of the agent who solved.
func (r *Result) Dictator() (xecon.Allocation, float64) {
	if r.Agent == A {
		return r.XA, r.UA
	}
	return r.XB, r.UB
}
