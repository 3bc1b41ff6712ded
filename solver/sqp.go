// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	armijo         = 1e-4
	maxBacktracks  = 30
	penaltyScale   = 2.0
	dampingBFGS    = 0.2
	minCurvature   = 1e-16
	stationaryStep = 1e-14
)

// Minimize finds a local minimum of p.Func starting from x0, which is first
// clipped into the bounds. A nil settings uses DefaultSettings.
//
// The returned error is nil only when Result.Status is Success. If the
// iteration ran, the result holds the last accepted iterate even when an
// error is returned.
func Minimize(p Problem, x0 []float64, settings *Settings) (*Result, error) {
	set := DefaultSettings()
	if settings != nil {
		set.Log = settings.Log
		if settings.MaxIterations != 0 {
			set.MaxIterations = settings.MaxIterations
		}
		if settings.Tolerance != 0 {
			set.Tolerance = settings.Tolerance
		}
		if settings.Step != 0 {
			set.Step = settings.Step
		}
	}
	if set.Log.GetSink() == nil {
		set.Log = logr.Discard()
	}

	if err := p.validate(len(x0), set); err != nil {
		return nil, err
	}

	s := &sqp{
		p:   p,
		set: *set,
		n:   len(x0),
		m:   len(p.Constraints),
	}
	return s.run(x0)
}

func (p *Problem) validate(n int, set *Settings) error {
	if p.Func == nil {
		return fmt.Errorf("%w: nil objective", ErrInvalidProblem)
	}
	if n == 0 {
		return fmt.Errorf("%w: empty starting point", ErrInvalidProblem)
	}
	if len(p.Bounds) != 0 && len(p.Bounds) != n {
		return fmt.Errorf("%w: %d bounds for %d variables", ErrInvalidProblem, len(p.Bounds), n)
	}
	for i, b := range p.Bounds {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || b.Lower > b.Upper {
			return fmt.Errorf("%w: bound %d is [%v, %v]", ErrInvalidProblem, i, b.Lower, b.Upper)
		}
	}

	eq, ineq := 0, 0
	for i, c := range p.Constraints {
		if c.Func == nil {
			return fmt.Errorf("%w: constraint %d has nil function", ErrInvalidProblem, i)
		}
		switch c.Kind {
		case Equality:
			eq++
		case Inequality:
			ineq++
		default:
			return fmt.Errorf("%w: constraint %d has kind %v", ErrInvalidProblem, i, c.Kind)
		}
	}
	if eq > n {
		return fmt.Errorf("%w: %d equality constraints for %d variables", ErrInvalidProblem, eq, n)
	}
	for _, b := range p.Bounds {
		if !math.IsInf(b.Lower, -1) {
			ineq++
		}
		if !math.IsInf(b.Upper, 1) {
			ineq++
		}
	}
	if activeSetCount(ineq, n-eq) > maxActiveSets {
		return fmt.Errorf("%w: %d inequality rows for %d variables", ErrTooManyConstraints, ineq, n)
	}

	if set.MaxIterations < 0 {
		return fmt.Errorf("%w: negative iteration limit", ErrInvalidProblem)
	}
	if !(set.Tolerance > 0) || !(set.Step > 0) {
		return fmt.Errorf("%w: tolerance and step must be positive", ErrInvalidProblem)
	}
	return nil
}

type sqp struct {
	p   Problem
	set Settings
	n   int
	m   int

	res Result
}

// iterate is a point with everything the subproblem needs.
type iterate struct {
	x   []float64
	f   float64
	c   []float64
	g   []float64
	jac [][]float64
}

func (s *sqp) newIterate(x []float64) *iterate {
	it := &iterate{
		x:   x,
		c:   make([]float64, s.m),
		g:   make([]float64, s.n),
		jac: make([][]float64, s.m),
	}
	for i := range it.jac {
		it.jac[i] = make([]float64, s.n)
	}
	return it
}

func (s *sqp) run(x0 []float64) (*Result, error) {
	n, m, log := s.n, s.m, s.set.Log
	tol := s.set.Tolerance

	cur := s.newIterate(s.clip(append([]float64(nil), x0...)))
	if !s.evaluate(cur) || !s.differentiate(cur) {
		return nil, fmt.Errorf("%w: at starting point %v", ErrNonFinite, cur.x)
	}

	hess := identity(n)
	lambda := make([]float64, m)
	mu := make([]float64, m)

	status := NotTerminated
	for s.res.Iterations < s.set.MaxIterations {
		s.res.Iterations++

		d, lam, err := s.subproblem(cur, hess)
		if err != nil {
			log.V(1).Info("resetting hessian", "iter", s.res.Iterations)
			hess = identity(n)
			if d, lam, err = s.subproblem(cur, hess); err != nil {
				status = SubproblemFailure
				break
			}
		}
		copy(lambda, lam[:m])

		viol := s.violation(cur.c)
		dnorm := floats.Norm(d, math.Inf(1))
		if viol <= tol && (dnorm <= tol || s.kktResidual(cur, d, lam) <= tol*tol) {
			status = Success
			break
		}
		if dnorm <= stationaryStep {
			// a relaxed subproblem that returns d = 0 cannot reduce the violation
			status = SubproblemFailure
			if viol <= tol {
				status = Success
			}
			break
		}

		for i := range mu {
			mu[i] = math.Max(mu[i], penaltyScale*math.Abs(lambda[i]))
		}

		next, ok := s.lineSearch(cur, d, lam, mu)
		if !ok {
			status = LineSearchFailure
			break
		}

		s.updateHessian(hess, cur, next, lambda)

		df := math.Abs(next.f - cur.f)
		dx := 0.0
		for i := range next.x {
			dx = math.Max(dx, math.Abs(next.x[i]-cur.x[i]))
		}
		cur = next
		viol = s.violation(cur.c)

		log.V(1).Info("sqp iteration", "iter", s.res.Iterations, "f", cur.f,
			"violation", viol, "df", df, "dx", dx)

		if df <= tol && viol <= tol && dx <= math.Sqrt(tol) {
			status = Success
			break
		}
	}
	if status == NotTerminated {
		status = IterationLimit
	}

	s.res.X = cur.x
	s.res.F = cur.f
	s.res.Multipliers = lambda
	s.res.Violation = s.violation(cur.c)
	s.res.Status = status

	log.V(1).Info("sqp finished", "status", status, "iterations", s.res.Iterations,
		"f", s.res.F, "violation", s.res.Violation)

	res := s.res
	return &res, status.Err()
}

// subproblem linearizes the constraints at it and solves the QP. When the
// linearization is inconsistent the violated constraints are relaxed toward
// zero until the QP becomes feasible; at zero d = 0 is always feasible.
func (s *sqp) subproblem(it *iterate, hess *mat.SymDense) ([]float64, []float64, error) {
	var err error
	for _, theta := range []float64{1, 0.5, 0.1, 0} {
		if theta < 1 {
			s.set.Log.V(1).Info("relaxing linearized constraints", "theta", theta)
		}
		q := s.quadProg(it, hess, theta)
		d, lambda, qerr := q.solve()
		if qerr == nil {
			return d, lambda, nil
		}
		err = qerr
	}
	return nil, nil, err
}

// quadProg builds the subproblem rows: the constraints first, then one row
// per finite bound so that x+d stays inside the box.
func (s *sqp) quadProg(it *iterate, hess *mat.SymDense, theta float64) *quadProg {
	q := &quadProg{
		n:    s.n,
		hess: hess,
		grad: it.g,
	}

	for i, c := range s.p.Constraints {
		b := it.c[i]
		if c.Kind == Equality || b < 0 {
			b *= theta
		}
		q.rows = append(q.rows, it.jac[i])
		q.cons = append(q.cons, b)
		q.eq = append(q.eq, c.Kind == Equality)
	}

	for j, bd := range s.p.Bounds {
		if !math.IsInf(bd.Lower, -1) {
			row := make([]float64, s.n)
			row[j] = 1
			q.rows = append(q.rows, row)
			q.cons = append(q.cons, it.x[j]-bd.Lower)
			q.eq = append(q.eq, false)
		}
		if !math.IsInf(bd.Upper, 1) {
			row := make([]float64, s.n)
			row[j] = -1
			q.rows = append(q.rows, row)
			q.cons = append(q.cons, bd.Upper-it.x[j])
			q.eq = append(q.eq, false)
		}
	}

	return q
}

func (s *sqp) kktResidual(it *iterate, d, lambda []float64) float64 {
	r := math.Abs(floats.Dot(it.g, d))
	for i := 0; i < s.m; i++ {
		r += math.Abs(lambda[i] * it.c[i])
	}
	return r
}

// lineSearch backtracks on the l1 merit function f + sum mu_i*viol_i. A
// rejected full step is retried once with a second-order correction.
func (s *sqp) lineSearch(cur *iterate, d, lambda, mu []float64) (*iterate, bool) {
	phi0 := s.merit(cur, mu)
	dphi := floats.Dot(cur.g, d)
	for i := 0; i < s.m; i++ {
		dphi -= mu[i] * s.violated(i, cur.c[i])
	}

	accept := func(next *iterate, alpha float64) bool {
		if !s.evaluate(next) || s.crossed(cur, next, lambda) {
			return false
		}
		phi := s.merit(next, mu)
		if math.IsNaN(phi) || math.IsInf(phi, 0) {
			return false
		}
		if dphi < 0 {
			if phi > phi0+armijo*alpha*dphi {
				return false
			}
		} else if phi >= phi0 {
			return false
		}
		return s.differentiate(next)
	}

	alpha := 1.0
	for k := 0; k <= maxBacktracks; k++ {
		next := s.newIterate(s.step(cur.x, alpha, d))
		if accept(next, alpha) {
			return next, true
		}

		if k == 0 {
			if soc := s.correction(cur, next, d, lambda); soc != nil {
				corrected := s.newIterate(soc)
				if accept(corrected, alpha) {
					s.set.Log.V(1).Info("second-order correction accepted", "iter", s.res.Iterations)
					return corrected, true
				}
			}
		}

		alpha *= 0.5
	}
	return nil, false
}

// crossed reports whether next violates an inequality that held at cur and
// carried no multiplier in the subproblem. Such a constraint adds nothing
// to the merit function, so the step is shortened instead.
func (s *sqp) crossed(cur, next *iterate, lambda []float64) bool {
	for i, c := range s.p.Constraints {
		if c.Kind != Inequality || lambda[i] > qpMultTol || cur.c[i] < 0 {
			continue
		}
		if next.c[i] < -s.set.Tolerance {
			return true
		}
	}
	return false
}

// correction returns x+d+dc where dc is the least-norm step that zeroes the
// linearization of the active constraints evaluated at x+d, or nil.
func (s *sqp) correction(cur, trial *iterate, d, lambda []float64) []float64 {
	var active []int
	for i, c := range s.p.Constraints {
		if c.Kind == Equality || lambda[i] > qpMultTol {
			active = append(active, i)
		}
	}
	if len(active) == 0 || !allFinite(trial.c) {
		return nil
	}

	a := mat.NewDense(len(active), s.n, nil)
	cv := mat.NewVecDense(len(active), nil)
	for r, i := range active {
		a.SetRow(r, cur.jac[i])
		cv.SetVec(r, trial.c[i])
	}

	var aat mat.Dense
	aat.Mul(a, a.T())
	var y mat.VecDense
	if err := y.SolveVec(&aat, cv); err != nil {
		return nil
	}
	var dc mat.VecDense
	dc.MulVec(a.T(), &y)

	x := make([]float64, s.n)
	for j := range x {
		x[j] = cur.x[j] + d[j] - dc.AtVec(j)
	}
	return s.clip(x)
}

// updateHessian applies Powell's damped BFGS update to the Lagrangian
// Hessian approximation.
func (s *sqp) updateHessian(hess *mat.SymDense, cur, next *iterate, lambda []float64) {
	step := make([]float64, s.n)
	floats.SubTo(step, next.x, cur.x)

	dgrad := make([]float64, s.n)
	floats.SubTo(dgrad, next.g, cur.g)
	for i := 0; i < s.m; i++ {
		for j := 0; j < s.n; j++ {
			dgrad[j] -= lambda[i] * (next.jac[i][j] - cur.jac[i][j])
		}
	}

	sv := mat.NewVecDense(s.n, step)
	yv := mat.NewVecDense(s.n, dgrad)

	var bs mat.VecDense
	bs.MulVec(hess, sv)
	sBs := mat.Dot(sv, &bs)
	if sBs <= minCurvature {
		return
	}

	sy := mat.Dot(sv, yv)
	if sy < dampingBFGS*sBs {
		theta := (1 - dampingBFGS) * sBs / (sBs - sy)
		yv.ScaleVec(theta, yv)
		yv.AddScaledVec(yv, 1-theta, &bs)
		sy = mat.Dot(sv, yv)
	}

	hess.SymRankOne(hess, 1/sy, yv)
	hess.SymRankOne(hess, -1/sBs, &bs)
}

func (s *sqp) evaluate(it *iterate) bool {
	s.res.FuncEvaluations++
	it.f = s.p.Func(it.x)
	for i, c := range s.p.Constraints {
		it.c[i] = c.Func(it.x)
	}
	return !math.IsNaN(it.f) && !math.IsInf(it.f, 0) && allFinite(it.c)
}

func (s *sqp) differentiate(it *iterate) bool {
	s.res.GradEvaluations++
	s.gradient(s.p.Func, s.p.Grad, it.g, it.x, it.f)
	if !allFinite(it.g) {
		return false
	}
	for i, c := range s.p.Constraints {
		s.gradient(c.Func, c.Grad, it.jac[i], it.x, it.c[i])
		if !allFinite(it.jac[i]) {
			return false
		}
	}
	return true
}

func (s *sqp) gradient(f Func, grad GradFunc, dst, x []float64, fx float64) {
	if grad != nil {
		grad(dst, x)
		return
	}
	fd.Gradient(dst, f, x, &fd.Settings{
		Formula:     fd.Forward,
		Step:        s.set.Step,
		OriginKnown: true,
		OriginValue: fx,
	})
}

func (s *sqp) merit(it *iterate, mu []float64) float64 {
	phi := it.f
	for i := 0; i < s.m; i++ {
		phi += mu[i] * s.violated(i, it.c[i])
	}
	return phi
}

func (s *sqp) violated(i int, c float64) float64 {
	if s.p.Constraints[i].Kind == Equality {
		return math.Abs(c)
	}
	return math.Max(0, -c)
}

func (s *sqp) violation(c []float64) float64 {
	v := 0.0
	for i := range c {
		v = math.Max(v, s.violated(i, c[i]))
	}
	return v
}

func (s *sqp) step(x []float64, alpha float64, d []float64) []float64 {
	next := make([]float64, s.n)
	floats.AddScaledTo(next, x, alpha, d)
	return s.clip(next)
}

func (s *sqp) clip(x []float64) []float64 {
	for j, b := range s.p.Bounds {
		x[j] = math.Min(math.Max(x[j], b.Lower), b.Upper)
	}
	return x
}

func identity(n int) *mat.SymDense {
	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		h.SetSym(i, i, 1)
	}
	return h
}
