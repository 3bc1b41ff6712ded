// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xecon

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCobbDouglas(t *testing.T, par Params) Model {
	t.Helper()
	m, err := NewCobbDouglas(par)
	require.NoError(t, err)
	return m
}

func TestCobbDouglas_Utility(t *testing.T) {
	m := makeCobbDouglas(t, DefaultParams())

	assert.InDelta(t, math.Cbrt(0.8)*math.Cbrt(0.3*0.3), m.UtilityA(0.8, 0.3), 1e-14)
	assert.InDelta(t, math.Cbrt(0.2*0.2)*math.Cbrt(0.7), m.UtilityB(0.2, 0.7), 1e-14)
	assert.Equal(t, 0.0, m.UtilityA(0, 0.5))
	assert.Equal(t, 1.0, m.UtilityB(1, 1))
}

func TestCobbDouglas_Indifference(t *testing.T) {
	m := makeCobbDouglas(t, DefaultParams())

	for _, u := range []float64{0.1, 0.4, 0.9} {
		for _, x1 := range []float64{0.05, 0.3, 0.8, 1} {
			x2A := m.IndifferenceA(u, x1)
			assert.InDelta(t, u, m.UtilityA(x1, x2A), 1e-12, "uA=%v x1=%v", u, x1)

			x2B := m.IndifferenceB(u, x1)
			assert.InDelta(t, u, m.UtilityB(x1, x2B), 1e-12, "uB=%v x1=%v", u, x1)
		}
	}
}

func TestCobbDouglas_Demand(t *testing.T) {
	m := makeCobbDouglas(t, DefaultParams())

	t.Run("P1", func(t *testing.T) {
		want := Allocation{X1: 1.1 / 3, X2: 2.2 / 3}
		if diff := cmp.Diff(want, m.DemandA(1), approx); diff != "" {
			t.Errorf("DemandA(1) mismatch (-want +got):\n%s", diff)
		}
		want = Allocation{X1: 1.8 / 3, X2: 0.9 / 3}
		if diff := cmp.Diff(want, m.DemandB(1), approx); diff != "" {
			t.Errorf("DemandB(1) mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("BudgetExhaustion", func(t *testing.T) {
		par := m.Params()
		for p1 := 0.05; p1 < 20; p1 *= 1.3 {
			xA, xB := m.DemandA(p1), m.DemandB(p1)
			assert.InDelta(t, p1*par.W1A+par.W2A, p1*xA.X1+xA.X2, 1e-12)
			assert.InDelta(t, p1*(1-par.W1A)+(1-par.W2A), p1*xB.X1+xB.X2, 1e-12)
			// expenditure share on good 1 equals the preference weight
			assert.InDelta(t, par.Alpha, p1*xA.X1/(p1*xA.X1+xA.X2), 1e-12)
			assert.InDelta(t, par.Beta, p1*xB.X1/(p1*xB.X1+xB.X2), 1e-12)
		}
	})
}

func TestCobbDouglas_MarginalUtility(t *testing.T) {
	m := makeCobbDouglas(t, DefaultParams())
	mu := m.(MarginalUtilities)

	const h = 1e-6
	x1, x2 := 0.4, 0.6
	mu1, mu2 := mu.MarginalUtilityA(x1, x2)
	assert.InDelta(t, (m.UtilityA(x1+h, x2)-m.UtilityA(x1-h, x2))/(2*h), mu1, 1e-8)
	assert.InDelta(t, (m.UtilityA(x1, x2+h)-m.UtilityA(x1, x2-h))/(2*h), mu2, 1e-8)

	mu1, mu2 = mu.MarginalUtilityB(x1, x2)
	assert.InDelta(t, (m.UtilityB(x1+h, x2)-m.UtilityB(x1-h, x2))/(2*h), mu1, 1e-8)
	assert.InDelta(t, (m.UtilityB(x1, x2+h)-m.UtilityB(x1, x2-h))/(2*h), mu2, 1e-8)
}
