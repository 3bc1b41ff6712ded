// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dictator

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/someonegg/xecon"
	"github.com/someonegg/xecon/solver"
)

func makeQuasiLinear(t *testing.T) xecon.Model {
	t.Helper()
	m, err := xecon.NewQuasiLinear(xecon.Params{Alpha: 0.5, Beta: 0.5, W1A: 0.8, W2A: 0.3})
	require.NoError(t, err)
	return m
}

func makeCobbDouglas(t *testing.T) xecon.Model {
	t.Helper()
	m, err := xecon.NewCobbDouglas(xecon.DefaultParams())
	require.NoError(t, err)
	return m
}

// opaque hides the marginal utilities, so the solver differentiates
// numerically.
type opaque struct {
	xecon.Model
}

func checkComplement(t *testing.T, r *Result) {
	t.Helper()
	assert.Equal(t, 1.0, r.XA.X1+r.XB.X1)
	assert.Equal(t, 1.0, r.XA.X2+r.XB.X2)
}

func TestSolve_QuasiLinear(t *testing.T) {
	m := makeQuasiLinear(t)
	par := m.Params()

	resA, err := SolveA(m, par.EndowmentA())
	require.NoError(t, err)

	t.Run("DictatorA", func(t *testing.T) {
		assert.Equal(t, A, resA.Agent)
		assert.Equal(t, solver.Success, resA.Status)
		assert.InDelta(t, 0.7161864902813486, resA.XA.X1, 1e-6)
		assert.InDelta(t, 1.0, resA.XA.X2, 1e-8)
		assert.InDelta(t, 0.1661853153511561, resA.UA, 1e-6)

		// B is held at the endowment utility
		wB := par.EndowmentB()
		assert.InDelta(t, m.UtilityB(wB.X1, wB.X2), resA.UB, 1e-6)
		checkComplement(t, resA)
	})

	t.Run("DictatorB", func(t *testing.T) {
		res, err := SolveB(m, resA.XA)
		require.NoError(t, err)

		assert.Equal(t, B, res.Agent)
		assert.InDelta(t, 0.43624952822502927, res.XB.X1, 1e-6)
		assert.InDelta(t, 0.0, res.XB.X2, 1e-8)
		assert.InDelta(t, -0.8295408868986826, res.UB, 1e-6)
		assert.GreaterOrEqual(t, res.XB.X2, 0.0)

		wA := par.EndowmentA()
		assert.GreaterOrEqual(t, res.UA-m.UtilityA(wA.X1, wA.X2), -1e-8)
		assert.True(t, xecon.ParetoImprovement(m, res.XA) ||
			math.Abs(res.UA-m.UtilityA(wA.X1, wA.X2)) < 1e-8)
		checkComplement(t, res)
	})

	t.Run("FiniteDifferences", func(t *testing.T) {
		tol := 1e-7
		s := &Solver{Tolerance: &tol}
		res, err := s.SolveB(opaque{m}, par.EndowmentB())
		require.NoError(t, err)

		assert.InDelta(t, 0.43624952822502927, res.XB.X1, 1e-4)
		assert.InDelta(t, 0.0, res.XB.X2, 1e-4)
		checkComplement(t, res)
	})
}

func TestSolve_FeasibleStart(t *testing.T) {
	// B values good 2 fifty times more than A does; a slack start must not
	// be traded for a corner that leaves A below the endowment utility.
	m, err := xecon.NewQuasiLinear(xecon.Params{Alpha: 0.1, Beta: 5, W1A: 0.2, W2A: 0.9})
	require.NoError(t, err)
	wA := m.Params().EndowmentA()
	floor := m.UtilityA(wA.X1, wA.X2)

	for _, x0 := range []xecon.Allocation{{X1: 0.2, X2: 0.9}, {X1: 0.5, X2: 0.5}} {
		res, err := SolveB(m, x0)
		require.NoError(t, err, "x0 %v", x0)

		assert.Equal(t, solver.Success, res.Status)
		assert.InDelta(t, 1-0.2*math.Exp(0.09), res.XB.X1, 1e-6)
		assert.InDelta(t, 1.0, res.XB.X2, 1e-8)
		assert.GreaterOrEqual(t, res.UA-floor, -DefaultTolerance)
		checkComplement(t, res)
	}
}

func TestSolve_CobbDouglas(t *testing.T) {
	m := makeCobbDouglas(t)
	par := m.Params()
	mu := m.(xecon.MarginalUtilities)

	mrs := func(f func(x1, x2 float64) (float64, float64), x xecon.Allocation) float64 {
		g1, g2 := f(x.X1, x.X2)
		return g1 / g2
	}

	cases := []struct {
		name  string
		solve func(xecon.Model, xecon.Allocation) (*Result, error)
		x0    xecon.Allocation
	}{
		{"DictatorA", SolveA, par.EndowmentA()},
		{"DictatorB", SolveB, par.EndowmentB()},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := c.solve(m, c.x0)
			require.NoError(t, err)
			checkComplement(t, res)

			// interior optimum on the contract curve
			a, b := mrs(mu.MarginalUtilityA, res.XA), mrs(mu.MarginalUtilityB, res.XB)
			assert.InEpsilon(t, a, b, 1e-3)

			// the other agent is held at the endowment utility
			wA, wB := par.EndowmentA(), par.EndowmentB()
			if res.Agent == A {
				assert.InDelta(t, m.UtilityB(wB.X1, wB.X2), res.UB, 1e-6)
				assert.Greater(t, res.UA, m.UtilityA(wA.X1, wA.X2))
			} else {
				assert.InDelta(t, m.UtilityA(wA.X1, wA.X2), res.UA, 1e-6)
				assert.Greater(t, res.UB, m.UtilityB(wB.X1, wB.X2))
			}
		})
	}
}

func TestSolve_Errors(t *testing.T) {
	m := makeQuasiLinear(t)

	t.Run("IterationLimit", func(t *testing.T) {
		one := 1
		s := &Solver{MaxIterations: &one}
		res, err := s.SolveB(m, xecon.Allocation{X1: 0.7161864902813486, X2: 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotConverged), "got %v", err)

		// the best-effort point is still reported
		require.NotNil(t, res)
		assert.NotEqual(t, solver.Success, res.Status)
		assert.Equal(t, 1, res.Iterations)
		checkComplement(t, res)
	})

	t.Run("Infeasible", func(t *testing.T) {
		// A starts with far less than the endowment utility.
		one := 1
		s := &Solver{MaxIterations: &one}
		res, err := s.SolveB(m, xecon.Allocation{X1: 0.7161864902813486, X2: 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInfeasible)
		assert.ErrorIs(t, err, ErrNotConverged)
		assert.Equal(t, 1, strings.Count(err.Error(), "dictator:"), "got %v", err)

		require.NotNil(t, res)
		assert.Greater(t, res.Violation, DefaultTolerance)
		wA := m.Params().EndowmentA()
		assert.Less(t, res.UA, m.UtilityA(wA.X1, wA.X2))
		checkComplement(t, res)
	})

	t.Run("NonFiniteStart", func(t *testing.T) {
		res, err := SolveB(m, xecon.Allocation{X1: math.NaN(), X2: 0.5})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, solver.ErrNonFinite)
	})
}

func TestSolver_Settings(t *testing.T) {
	s := &Solver{}
	require.NoError(t, s.init())
	assert.Equal(t, DefaultMaxIterations, s.mi)
	assert.Equal(t, DefaultTolerance, s.tol)
	assert.NotNil(t, s.Log.GetSink())

	mi, tol := 7, 1e-5
	s = &Solver{MaxIterations: &mi, Tolerance: &tol}
	require.NoError(t, s.init())
	assert.Equal(t, 7, s.mi)
	assert.Equal(t, 1e-5, s.tol)

	t.Run("Invalid", func(t *testing.T) {
		zero, negative, nan := 0, -1e-3, math.NaN()
		cases := []struct {
			name string
			s    *Solver
		}{
			{"ZeroIterations", &Solver{MaxIterations: &zero}},
			{"NegativeTolerance", &Solver{Tolerance: &negative}},
			{"NaNTolerance", &Solver{Tolerance: &nan}},
		}

		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				res, err := c.s.SolveB(makeQuasiLinear(t), xecon.Allocation{X1: 0.2, X2: 0.7})
				assert.Nil(t, res)
				assert.ErrorIs(t, err, ErrInvalidSettings)
			})
		}
	})

	t.Run("Verbose", func(t *testing.T) {
		s := &Solver{Verbose: true, Log: testr.NewWithOptions(t, testr.Options{Verbosity: 1})}
		_, err := s.SolveB(makeQuasiLinear(t), xecon.Allocation{X1: 0.2, X2: 0.7})
		assert.NoError(t, err)
	})
}

func TestResult_JSON(t *testing.T) {
	r := &Result{Agent: B, Status: solver.IterationLimit}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"agent":"B"`)
	assert.Contains(t, string(b), `"status":"IterationLimit"`)
}

func TestResult_Report(t *testing.T) {
	r := &Result{
		Agent: B,
		XB:    xecon.Allocation{X1: 0.43624952822502927, X2: 0},
		UB:    -0.8295408868986826,
	}

	var buf bytes.Buffer
	require.NoError(t, r.Report(&buf))
	assert.Equal(t, "Dictator solution for B:\n"+
		"x1B =   0.43624953\n"+
		"x2B =   0.00000000\n"+
		"Utility =  -0.82954089\n", buf.String())

	r = &Result{Agent: A, XA: xecon.Allocation{X1: 0.5, X2: 1}, UA: 0.25}
	buf.Reset()
	require.NoError(t, r.Report(&buf))
	assert.Equal(t, "Dictator solution for A:\n"+
		"x1A =   0.50000000\n"+
		"x2A =   1.00000000\n"+
		"Utility =   0.25000000\n", buf.String())
}
