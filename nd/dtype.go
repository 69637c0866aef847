/*
 * dtype.go, part of westore.
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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rmera/westore/internal/werr"
)

//Dtype is the element type a field is stored with. In memory every element
//is a float64; the dtype decides the on-disk encoding and the rounding
//applied when values are written.
type Dtype string

const (
	Float64 Dtype = "float64"
	Float32 Dtype = "float32"
	Int64   Dtype = "int64"
	Int32   Dtype = "int32"
	Int16   Dtype = "int16"
	Uint8   Dtype = "uint8"
	Bool    Dtype = "bool"
)

//ParseDtype accepts the dtype names above, plus "float" and "int" as
//shorthands for the 64 bit types.
func ParseDtype(s string) (Dtype, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float64", "float", "f8", "<f8":
		return Float64, nil
	case "float32", "f4", "<f4":
		return Float32, nil
	case "int64", "int", "i8", "<i8":
		return Int64, nil
	case "int32", "i4", "<i4":
		return Int32, nil
	case "int16", "i2", "<i2":
		return Int16, nil
	case "uint8", "u1", "|u1":
		return Uint8, nil
	case "bool", "|b1":
		return Bool, nil
	}
	return "", fmt.Errorf("unknown dtype %q", s)
}

//Valid reports whether D is one of the known dtypes.
func (D Dtype) Valid() bool {
	_, err := ParseDtype(string(D))
	return err == nil && D != ""
}

//Size returns the number of bytes one element takes on disk.
func (D Dtype) Size() int {
	switch D {
	case Float64, Int64:
		return 8
	case Float32, Int32:
		return 4
	case Int16:
		return 2
	case Uint8, Bool:
		return 1
	}
	return 0
}

//IsInt is true for the integer and boolean dtypes.
func (D Dtype) IsInt() bool {
	return D != Float64 && D != Float32
}

//Convert returns v as it will read back after being stored with dtype D.
//NaN is kept for the float types and turned into 0 for the others.
func (D Dtype) Convert(v float64) float64 {
	switch D {
	case Float64:
		return v
	case Float32:
		return float64(float32(v))
	case Bool:
		if v != 0 && !math.IsNaN(v) {
			return 1
		}
		return 0
	}
	if math.IsNaN(v) {
		return 0
	}
	return math.Round(v)
}

//Shape is a list of dimension lengths. An empty Shape is a scalar.
type Shape []int

//Size returns the number of elements in an array of shape S.
func (S Shape) Size() int {
	n := 1
	for _, v := range S {
		n *= v
	}
	return n
}

//Equal is true if both shapes have the same rank and dimensions.
func (S Shape) Equal(o Shape) bool {
	if len(S) != len(o) {
		return false
	}
	for i, v := range S {
		if o[i] != v {
			return false
		}
	}
	return true
}

//Clone returns a copy of S that shares no memory with it.
func (S Shape) Clone() Shape {
	if S == nil {
		return nil
	}
	return append(Shape{}, S...)
}

//String formats the shape as a tuple, i.e. (1,) or (10, 3).
func (S Shape) String() string {
	if len(S) == 1 {
		return "(" + strconv.Itoa(S[0]) + ",)"
	}
	parts := make([]string, len(S))
	for i, v := range S {
		parts[i] = strconv.Itoa(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func checkShape(caller string, s Shape) error {
	for _, v := range s {
		if v < 0 {
			return werr.New(werr.ShapeMismatch, "", caller, "negative dimension in %v", s)
		}
	}
	return nil
}
