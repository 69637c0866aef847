/*
 * matrix.go, part of westore.
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
	"gonum.org/v1/gonum/mat"

	"github.com/rmera/westore/internal/werr"
)

//FrameMatrix returns frame i of an array with a 2-D feature shape, such
//as (n_atoms, n_dims) positions, as a gonum matrix. The matrix shares its
//storage with the array.
func (A *Array) FrameMatrix(i int) (*mat.Dense, error) {
	fs := A.FeatureShape()
	if len(fs) != 2 {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.FrameMatrix", "need a 2-D feature shape, have %v", fs)
	}
	if i < 0 || i >= A.Len() {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.FrameMatrix", "frame %d out of %d", i, A.Len())
	}
	if fs.Size() == 0 {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.FrameMatrix", "empty frame")
	}
	return mat.NewDense(fs[0], fs[1], A.Row(i)), nil
}
