/*
 * masked.go, part of westore.
 *
 * Copyright 2026 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package nd

import (
	"math"

	"github.com/rmera/westore/internal/werr"
)

//Masked is an array where some frames may be absent. Absent frames hold
//NaN in the underlying array. A nil Present means every frame is present.
type Masked struct {
	*Array
	Present []bool
}

//Dense wraps a in a Masked where every frame is present.
func Dense(a *Array) *Masked {
	return &Masked{Array: a}
}

//NewMasked returns a masked array of n frames with the given feature
//shape where no frame is present yet.
func NewMasked(dtype Dtype, n int, featureShape Shape) *Masked {
	shape := append(Shape{n}, featureShape...)
	a := Full(Float64, math.NaN(), shape...)
	a.Dtype = dtype
	return &Masked{Array: a, Present: make([]bool, n)}
}

//IsDense is true if all the frames are present.
func (M *Masked) IsDense() bool {
	if M.Present == nil {
		return true
	}
	for _, p := range M.Present {
		if !p {
			return false
		}
	}
	return true
}

//IsPresent reports whether frame i holds a value.
func (M *Masked) IsPresent(i int) bool {
	if M.Present == nil {
		return i >= 0 && i < M.Len()
	}
	return M.Present[i]
}

//NPresent is the number of present frames.
func (M *Masked) NPresent() int {
	if M.Present == nil {
		return M.Len()
	}
	n := 0
	for _, p := range M.Present {
		if p {
			n++
		}
	}
	return n
}

//SetRow fills frame i with vals and marks it present.
func (M *Masked) SetRow(i int, vals []float64) error {
	row := M.Row(i)
	if len(vals) != len(row) {
		return werr.New(werr.ShapeMismatch, "", "nd.Masked.SetRow", "%d values for a frame of %d", len(vals), len(row))
	}
	for j, v := range vals {
		row[j] = M.Dtype.Convert(v)
	}
	if M.Present != nil {
		M.Present[i] = true
	}
	return nil
}

//Compressed returns only the present frames, in order.
func (M *Masked) Compressed() *Array {
	if M.Present == nil {
		return M.Array.Clone()
	}
	idxs := make([]int, 0, len(M.Present))
	for i, p := range M.Present {
		if p {
			idxs = append(idxs, i)
		}
	}
	out, _ := M.Take(idxs)
	return out
}

//PresentIdxs returns the indexes of the present frames.
func (M *Masked) PresentIdxs() []int {
	idxs := make([]int, 0, M.Len())
	for i := 0; i < M.Len(); i++ {
		if M.IsPresent(i) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

//Ragged is a list of variable length rows, used for fields declared with
//variable length.
type Ragged struct {
	Dtype Dtype
	Rows  [][]float64
}

//Len is the number of rows.
func (R *Ragged) Len() int { return len(R.Rows) }
