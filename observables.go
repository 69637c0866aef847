/*
 * observables.go, part of westore.
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

package westore

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

//RadiusOfGyration returns a TrajFunc giving the radius of gyration of the
//(n_atoms, n_dims) coordinates in field at every frame. Frames absent
//from a sparse field give NaN.
func RadiusOfGyration(field string) TrajFunc {
	return func(ctx context.Context, d TrajFieldsData) (*nd.Array, error) {
		const caller = "westore.RadiusOfGyration"
		m, ok := d.Fields[field]
		if !ok {
			return nil, werr.New(werr.FieldNotFound, "", caller, "field %s was not read", field)
		}
		out := nd.Full(nd.Float64, math.NaN(), m.Len())
		for i := 0; i < m.Len(); i++ {
			if !m.IsPresent(i) {
				continue
			}
			x, err := m.FrameMatrix(i)
			if err != nil {
				return nil, werr.Decorate(err, caller)
			}
			out.Data()[i] = gyration(x)
		}
		return out, nil
	}
}

//gyration is the root mean square distance of the rows of x from their
//centroid.
func gyration(x *mat.Dense) float64 {
	n, dims := x.Dims()
	c := make([]float64, dims)
	for j := range c {
		c[j] = floats.Sum(mat.Col(nil, j, x)) / float64(n)
	}
	var centered mat.Dense
	centered.Apply(func(i, j int, v float64) float64 { return v - c[j] }, x)
	return mat.Norm(&centered, 2) / math.Sqrt(float64(n))
}
