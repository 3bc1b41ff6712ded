// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dictator

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/someonegg/xecon"
	"github.com/someonegg/xecon/solver"
)

func (s *Solver) init() error {
	if s.MaxIterations == nil {
		s.mi = DefaultMaxIterations
	} else {
		s.mi = *s.MaxIterations
	}

	if s.Tolerance == nil {
		s.tol = DefaultTolerance
	} else {
		s.tol = *s.Tolerance
	}

	if s.Log.GetSink() == nil {
		s.Log = logr.Discard()
	}

	if s.mi <= 0 {
		return fmt.Errorf("%w: max iterations must be > 0, got %d", ErrInvalidSettings, s.mi)
	}
	if !(s.tol > 0) {
		return fmt.Errorf("%w: tolerance must be > 0, got %g", ErrInvalidSettings, s.tol)
	}
	return nil
}

// SolveA maximizes agent A's utility over A's bundle in the unit box,
// subject to agent B keeping at least the utility of B's endowment.
// The search starts at x0.
func (s *Solver) SolveA(m xecon.Model, x0 xecon.Allocation) (*Result, error) {
	return s.solve(A, m, x0)
}

// SolveB is SolveA with the roles of the agents swapped.
func (s *Solver) SolveB(m xecon.Model, x0 xecon.Allocation) (*Result, error) {
	return s.solve(B, m, x0)
}

// SolveA uses a Solver with default settings.
func SolveA(m xecon.Model, x0 xecon.Allocation) (*Result, error) {
	return new(Solver).SolveA(m, x0)
}

// SolveB uses a Solver with default settings.
func SolveB(m xecon.Model, x0 xecon.Allocation) (*Result, error) {
	return new(Solver).SolveB(m, x0)
}

// utilities holds the dictator's utility, the other agent's utility and
// the other agent's reservation bundle.
type utilities struct {
	own     func(x1, x2 float64) float64
	other   func(x1, x2 float64) float64
	reserve xecon.Allocation

	ownMU   func(x1, x2 float64) (float64, float64)
	otherMU func(x1, x2 float64) (float64, float64)
}

func utilitiesOf(agent Agent, m xecon.Model) utilities {
	par := m.Params()
	mu, hasMU := m.(xecon.MarginalUtilities)

	var u utilities
	if agent == A {
		u.own, u.other, u.reserve = m.UtilityA, m.UtilityB, par.EndowmentB()
		if hasMU {
			u.ownMU, u.otherMU = mu.MarginalUtilityA, mu.MarginalUtilityB
		}
	} else {
		u.own, u.other, u.reserve = m.UtilityB, m.UtilityA, par.EndowmentA()
		if hasMU {
			u.ownMU, u.otherMU = mu.MarginalUtilityB, mu.MarginalUtilityA
		}
	}
	return u
}

// problem is stated in the dictator's own bundle; the other agent gets
// the complement.
func (u utilities) problem() solver.Problem {
	floor := u.other(u.reserve.X1, u.reserve.X2)

	p := solver.Problem{
		Func: func(x []float64) float64 {
			return -u.own(x[0], x[1])
		},
		Bounds: []solver.Bound{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}},
		Constraints: []solver.Constraint{{
			Kind: solver.Inequality,
			Func: func(x []float64) float64 {
				return u.other(1-x[0], 1-x[1]) - floor
			},
		}},
	}

	if u.ownMU != nil {
		p.Grad = func(grad, x []float64) {
			g1, g2 := u.ownMU(x[0], x[1])
			grad[0], grad[1] = -g1, -g2
		}
		p.Constraints[0].Grad = func(grad, x []float64) {
			g1, g2 := u.otherMU(1-x[0], 1-x[1])
			grad[0], grad[1] = -g1, -g2
		}
	}
	return p
}

func (s *Solver) solve(agent Agent, m xecon.Model, x0 xecon.Allocation) (*Result, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	log := s.Log.WithValues("dictator", agent)

	set := &solver.Settings{
		MaxIterations: s.mi,
		Tolerance:     s.tol,
	}
	if s.Verbose {
		set.Log = log
	}

	res, err := solver.Minimize(utilitiesOf(agent, m).problem(), x0.Slice(), set)
	if res == nil {
		log.Error(err, "dictator problem rejected", "x0", x0)
		return nil, fmt.Errorf("dictator %v: %w", agent, err)
	}

	own := xecon.Allocation{X1: res.X[0], X2: res.X[1]}
	r := &Result{
		Agent:       agent,
		Status:      res.Status,
		Iterations:  res.Iterations,
		Evaluations: res.FuncEvaluations,
		Violation:   res.Violation,
	}
	if agent == A {
		r.XA, r.XB = own, own.Complement()
	} else {
		r.XA, r.XB = own.Complement(), own
	}
	r.UA = m.UtilityA(r.XA.X1, r.XA.X2)
	r.UB = m.UtilityB(r.XB.X1, r.XB.X2)

	if err != nil {
		if r.Violation > s.tol {
			err = fmt.Errorf("%w: %w", ErrInfeasible, err)
		}
		log.Error(err, "dictator problem not solved", "status", r.Status, "violation", r.Violation)
		return r, fmt.Errorf("%w: %w", ErrNotConverged, err)
	}

	log.V(1).Info("dictator problem solved",
		"xA", r.XA, "xB", r.XB, "uA", r.UA, "uB", r.UB, "iterations", r.Iterations)
	return r, nil
}
