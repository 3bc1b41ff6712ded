// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xecon

import (
	"fmt"
	"math"
)

// cobbDouglasModel implements uA = x1^alpha * x2^(1-alpha) and
// uB = x1^beta * x2^(1-beta).
type cobbDouglasModel struct {
	par Params
}

func NewCobbDouglas(par Params) (Model, error) {
	if err := par.Validate(); err != nil {
		return nil, err
	}
	if par.Alpha >= 1 {
		return nil, fmt.Errorf("%w: alpha must be < 1, got %g", ErrInvalidParams, par.Alpha)
	}
	if par.Beta >= 1 {
		return nil, fmt.Errorf("%w: beta must be < 1, got %g", ErrInvalidParams, par.Beta)
	}
	return cobbDouglasModel{par}, nil
}

func (m cobbDouglasModel) Params() Params {
	return m.par
}

func (m cobbDouglasModel) UtilityA(x1, x2 float64) float64 {
	return cobbDouglas(m.par.Alpha, x1, x2)
}

func (m cobbDouglasModel) UtilityB(x1, x2 float64) float64 {
	return cobbDouglas(m.par.Beta, x1, x2)
}

func (m cobbDouglasModel) IndifferenceA(uA, x1 float64) float64 {
	return math.Pow(uA/math.Pow(x1, m.par.Alpha), 1/(1-m.par.Alpha))
}

func (m cobbDouglasModel) IndifferenceB(uB, x1 float64) float64 {
	return math.Pow(uB/math.Pow(x1, m.par.Beta), 1/(1-m.par.Beta))
}

func (m cobbDouglasModel) DemandA(p1 float64) Allocation {
	return cobbDouglasDemand(m.par.Alpha, p1, m.par.EndowmentA())
}

func (m cobbDouglasModel) DemandB(p1 float64) Allocation {
	return cobbDouglasDemand(m.par.Beta, p1, m.par.EndowmentB())
}

func (m cobbDouglasModel) MarginalUtilityA(x1, x2 float64) (float64, float64) {
	return cobbDouglasMarginal(m.par.Alpha, x1, x2)
}

func (m cobbDouglasModel) MarginalUtilityB(x1, x2 float64) (float64, float64) {
	return cobbDouglasMarginal(m.par.Beta, x1, x2)
}

func cobbDouglas(weight, x1, x2 float64) float64 {
	return math.Pow(x1, weight) * math.Pow(x2, 1-weight)
}

func cobbDouglasMarginal(weight, x1, x2 float64) (float64, float64) {
	mu1 := weight * math.Pow(x1, weight-1) * math.Pow(x2, 1-weight)
	mu2 := (1 - weight) * math.Pow(x1, weight) * math.Pow(x2, -weight)
	return mu1, mu2
}

// Expenditure shares are constant: weight on good 1, the rest on good 2.
func cobbDouglasDemand(weight, p1 float64, w Allocation) Allocation {
	income := p1*w.X1 + w.X2
	return Allocation{
		X1: weight * income / p1,
		X2: (1 - weight) * income,
	}
}
