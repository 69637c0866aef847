/*
 * spec.go, part of westore.
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

package schema

import (
	"encoding/json"
	"fmt"

	"github.com/rmera/westore/nd"
)

//Undeclared is the stored marker of a deferred shape or dtype.
const Undeclared = "undeclared"

//FieldSpec is the declared feature shape and dtype of a field. A Deferred
//spec gets fixed by the first write of the field, and is immutable
//afterwards, like any other declared spec.
type FieldSpec struct {
	Shape    nd.Shape
	Dtype    nd.Dtype
	Deferred bool
}

//Declared returns a fixed spec.
func Declared(shape nd.Shape, dtype nd.Dtype) FieldSpec {
	if shape == nil {
		shape = nd.Shape{}
	}
	return FieldSpec{Shape: shape.Clone(), Dtype: dtype}
}

//Deferred returns a spec to be fixed on first write.
func Deferred() FieldSpec {
	return FieldSpec{Deferred: true}
}

//Equal is true if both specs are deferred, or both are declared with the
//same shape and dtype.
func (S FieldSpec) Equal(o FieldSpec) bool {
	if S.Deferred || o.Deferred {
		return S.Deferred == o.Deferred
	}
	return S.Dtype == o.Dtype && S.Shape.Equal(o.Shape)
}

func (S FieldSpec) String() string {
	if S.Deferred {
		return Undeclared
	}
	return fmt.Sprintf("%v %s", S.Shape, S.Dtype)
}

func encodeShape(s FieldSpec) any {
	if s.Deferred {
		return Undeclared
	}
	return []int(s.Shape)
}

func encodeDtype(s FieldSpec) any {
	if s.Deferred {
		return Undeclared
	}
	return string(s.Dtype)
}

//decodeSpec reads back the two stored values. A spec is deferred if either
//half is undeclared.
func decodeSpec(shape, dtype json.RawMessage) (FieldSpec, error) {
	var str string
	if json.Unmarshal(shape, &str) == nil {
		return Deferred(), nil
	}
	var sh []int
	if err := json.Unmarshal(shape, &sh); err != nil {
		return FieldSpec{}, fmt.Errorf("bad stored shape %s: %w", shape, err)
	}
	if err := json.Unmarshal(dtype, &str); err != nil {
		return FieldSpec{}, fmt.Errorf("bad stored dtype %s: %w", dtype, err)
	}
	if str == Undeclared {
		return Deferred(), nil
	}
	dt, err := nd.ParseDtype(str)
	if err != nil {
		return FieldSpec{}, err
	}
	return Declared(sh, dt), nil
}
