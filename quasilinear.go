// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xecon

import (
	"math"
)

// quasiLinearModel implements uA = ln(x1) + alpha*x2 and
// uB = ln(x1) + beta*x2.
type quasiLinearModel struct {
	par Params
}

func NewQuasiLinear(par Params) (Model, error) {
	if err := par.Validate(); err != nil {
		return nil, err
	}
	return quasiLinearModel{par}, nil
}

func (m quasiLinearModel) Params() Params {
	return m.par
}

func (m quasiLinearModel) UtilityA(x1, x2 float64) float64 {
	return math.Log(x1) + m.par.Alpha*x2
}

func (m quasiLinearModel) UtilityB(x1, x2 float64) float64 {
	return math.Log(x1) + m.par.Beta*x2
}

func (m quasiLinearModel) IndifferenceA(uA, x1 float64) float64 {
	return (uA - math.Log(x1)) / m.par.Alpha
}

func (m quasiLinearModel) IndifferenceB(uB, x1 float64) float64 {
	return (uB - math.Log(x1)) / m.par.Beta
}

func (m quasiLinearModel) DemandA(p1 float64) Allocation {
	return quasiLinearDemand(m.par.Alpha, p1, m.par.EndowmentA())
}

func (m quasiLinearModel) DemandB(p1 float64) Allocation {
	return quasiLinearDemand(m.par.Beta, p1, m.par.EndowmentB())
}

func (m quasiLinearModel) MarginalUtilityA(x1, x2 float64) (float64, float64) {
	return 1 / x1, m.par.Alpha
}

func (m quasiLinearModel) MarginalUtilityB(x1, x2 float64) (float64, float64) {
	return 1 / x1, m.par.Beta
}

// quasiLinearDemand maximizes ln(x1) + weight*x2 s.t. p1*x1 + x2 = p1*w.X1 + w.X2.
func quasiLinearDemand(weight, p1 float64, w Allocation) Allocation {
	income := p1*w.X1 + w.X2

	// interior solution from the first-order condition
	x1 := 1.0 / (weight * p1)
	if income > p1*x1 {
		return Allocation{X1: x1, X2: income - p1*x1}
	}

	// corner, everything goes to good 1
	return Allocation{X1: income / p1, X2: 0}
}
