// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	qpFeasTol = 1e-10
	qpMultTol = 1e-10

	// maxActiveSets caps the subproblem enumeration.
	maxActiveSets = 1 << 16
)

var errNoKKTPoint = errors.New("no KKT point")

// quadProg is the strictly convex subproblem
//
//	min 1/2 d'Hd + g'd  s.t.  a_i'd + b_i >= 0 (or == 0 when eq[i]).
type quadProg struct {
	n    int
	hess mat.Symmetric
	grad []float64
	rows [][]float64
	cons []float64
	eq   []bool
}

// solve enumerates active sets by increasing size. H is positive definite,
// so the first set whose KKT point is primal and dual feasible is optimal.
func (q *quadProg) solve() (d, lambda []float64, err error) {
	var eqIdx, ineqIdx []int
	for i := range q.rows {
		if q.eq[i] {
			eqIdx = append(eqIdx, i)
		} else {
			ineqIdx = append(ineqIdx, i)
		}
	}

	kmax := q.n - len(eqIdx)
	if len(ineqIdx) < kmax {
		kmax = len(ineqIdx)
	}

	active := make([]int, 0, q.n)
	for k := 0; k <= kmax; k++ {
		found := false
		combinations(len(ineqIdx), k, func(sel []int) bool {
			active = append(active[:0], eqIdx...)
			for _, s := range sel {
				active = append(active, ineqIdx[s])
			}

			dd, ll, ok := q.kkt(active)
			if !ok || !q.optimal(dd, ll) {
				return true
			}
			d, lambda, found = dd, ll, true
			return false
		})
		if found {
			return d, lambda, nil
		}
	}

	return nil, nil, errNoKKTPoint
}

// kkt solves
//
//	[ H  -A' ] [ d ]   [ -g ]
//	[ A   0  ] [ l ] = [ -b ]
//
// for the rows in active.
func (q *quadProg) kkt(active []int) ([]float64, []float64, bool) {
	n, a := q.n, len(active)

	k := mat.NewDense(n+a, n+a, nil)
	rhs := mat.NewVecDense(n+a, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k.Set(i, j, q.hess.At(i, j))
		}
		rhs.SetVec(i, -q.grad[i])
	}
	for r, row := range active {
		for j, v := range q.rows[row] {
			k.Set(n+r, j, v)
			k.Set(j, n+r, -v)
		}
		rhs.SetVec(n+r, -q.cons[row])
	}

	var sol mat.VecDense
	if err := sol.SolveVec(k, rhs); err != nil {
		return nil, nil, false
	}

	d := make([]float64, n)
	for i := range d {
		d[i] = sol.AtVec(i)
	}
	lambda := make([]float64, len(q.rows))
	for r, row := range active {
		lambda[row] = sol.AtVec(n + r)
	}
	if !allFinite(d) || !allFinite(lambda) {
		return nil, nil, false
	}
	return d, lambda, true
}

func (q *quadProg) optimal(d, lambda []float64) bool {
	for i, row := range q.rows {
		if q.eq[i] {
			continue
		}
		if lambda[i] < -qpMultTol {
			return false
		}
		if floats.Dot(row, d)+q.cons[i] < -qpFeasTol*(1+math.Abs(q.cons[i])) {
			return false
		}
	}
	return true
}

// combinations calls fn with every k-subset of [0, n) in lexicographic
// order until fn returns false.
func combinations(n, k int, fn func(sel []int) bool) {
	sel := make([]int, k)

	var walk func(start, depth int) bool
	walk = func(start, depth int) bool {
		if depth == k {
			return fn(sel)
		}
		for i := start; i <= n-(k-depth); i++ {
			sel[depth] = i
			if !walk(i+1, depth+1) {
				return false
			}
		}
		return true
	}
	walk(0, 0)
}

// activeSetCount returns how many sets solve may enumerate, saturating at
// maxActiveSets+1.
func activeSetCount(ineq, kmax int) int {
	total, c := 0, 1 // c = C(ineq, k)
	for k := 0; k <= kmax && k <= ineq; k++ {
		total += c
		if total > maxActiveSets {
			return maxActiveSets + 1
		}
		c = c * (ineq - k) / (k + 1)
	}
	return total
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
