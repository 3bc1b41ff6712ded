// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dictator

import (
	"fmt"
	"io"
)

// Report writes the dictator's bundle and utility with 8 decimals.
func (r *Result) Report(w io.Writer) error {
	x, u := r.Dictator()
	_, err := fmt.Fprintf(w, "Dictator solution for %v:\nx1%v = %12.8f\nx2%v = %12.8f\nUtility = %12.8f\n",
		r.Agent, r.Agent, x.X1, r.Agent, x.X2, u)
	return err
}
