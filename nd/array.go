/*
 * array.go, part of westore.
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
	"gonum.org/v1/gonum/floats"

	"github.com/rmera/westore/internal/werr"
)

//Array is a n-dimensional, row-major array of values. The leading axis
//is the frame (or row) axis, the remaining axes make up the feature
//shape. Scalars per frame have an empty feature shape.
type Array struct {
	Dtype Dtype
	shape Shape
	data  []float64
}

//New returns a zero-filled array with the given dtype and shape.
func New(dtype Dtype, shape ...int) *Array {
	s := Shape(shape).Clone()
	return &Array{Dtype: dtype, shape: s, data: make([]float64, s.Size())}
}

//FromData wraps data in an array of the given shape. data is not copied,
//but its values are converted in place to what dtype can hold.
func FromData(dtype Dtype, data []float64, shape ...int) (*Array, error) {
	s := Shape(shape).Clone()
	if err := checkShape("nd.FromData", s); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.FromData", "an array needs at least one axis")
	}
	if s.Size() != len(data) {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.FromData", "%d values do not fill shape %v", len(data), s)
	}
	if dtype != Float64 {
		for i, v := range data {
			data[i] = dtype.Convert(v)
		}
	}
	return &Array{Dtype: dtype, shape: s, data: data}, nil
}

//FromRows builds an array with one frame per row. Every row must have
//featureShape.Size() values.
func FromRows(dtype Dtype, featureShape Shape, rows ...[]float64) (*Array, error) {
	fs := featureShape.Size()
	data := make([]float64, 0, fs*len(rows))
	for i, r := range rows {
		if len(r) != fs {
			return nil, werr.New(werr.ShapeMismatch, "", "nd.FromRows", "row %d has %d values, feature shape %v needs %d", i, len(r), featureShape, fs)
		}
		data = append(data, r...)
	}
	shape := append(Shape{len(rows)}, featureShape...)
	return FromData(dtype, data, shape...)
}

//Scalars returns a 1-D array holding vals.
func Scalars(dtype Dtype, vals ...float64) *Array {
	a, _ := FromData(dtype, append([]float64(nil), vals...), len(vals))
	return a
}

//Full returns an array of the given shape where every element is v.
func Full(dtype Dtype, v float64, shape ...int) *Array {
	a := New(dtype, shape...)
	v = dtype.Convert(v)
	for i := range a.data {
		a.data[i] = v
	}
	return a
}

//Shape returns a copy of the shape of the array.
func (A *Array) Shape() Shape { return A.shape.Clone() }

//Rank is the number of axes.
func (A *Array) Rank() int { return len(A.shape) }

//Len is the length of the leading axis.
func (A *Array) Len() int {
	if len(A.shape) == 0 {
		return 0
	}
	return A.shape[0]
}

//FeatureShape is the shape of one frame.
func (A *Array) FeatureShape() Shape {
	if len(A.shape) == 0 {
		return Shape{}
	}
	return A.shape[1:].Clone()
}

//FrameSize is the number of elements in one frame.
func (A *Array) FrameSize() int {
	if len(A.shape) == 0 {
		return 0
	}
	return A.shape[1:].Size()
}

//Data returns the underlying row-major slice.
func (A *Array) Data() []float64 { return A.data }

//Row returns a view of the values in frame i.
func (A *Array) Row(i int) []float64 {
	fs := A.FrameSize()
	return A.data[i*fs : (i+1)*fs]
}

//At returns the element at the given index, one value per axis.
func (A *Array) At(idx ...int) float64 {
	if len(idx) != len(A.shape) {
		panic("nd: wrong number of indexes")
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= A.shape[i] {
			panic("nd: index out of range")
		}
		off = off*A.shape[i] + v
	}
	return A.data[off]
}

//Set sets the element at idx to v, converted to the array dtype.
func (A *Array) Set(v float64, idx ...int) {
	if len(idx) != len(A.shape) {
		panic("nd: wrong number of indexes")
	}
	off := 0
	for i, j := range idx {
		if j < 0 || j >= A.shape[i] {
			panic("nd: index out of range")
		}
		off = off*A.shape[i] + j
	}
	A.data[off] = A.Dtype.Convert(v)
}

//Clone returns a deep copy of A.
func (A *Array) Clone() *Array {
	return &Array{Dtype: A.Dtype, shape: A.shape.Clone(), data: append([]float64(nil), A.data...)}
}

//Slice returns a copy of frames [start, end).
func (A *Array) Slice(start, end int) (*Array, error) {
	if start < 0 || end > A.Len() || start > end {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.Slice", "range [%d, %d) out of %d frames", start, end, A.Len())
	}
	fs := A.FrameSize()
	shape := A.shape.Clone()
	shape[0] = end - start
	return &Array{Dtype: A.Dtype, shape: shape, data: append([]float64(nil), A.data[start*fs:end*fs]...)}, nil
}

//Frame returns frame i as a one-frame array.
func (A *Array) Frame(i int) (*Array, error) {
	return A.Slice(i, i+1)
}

//Take returns the frames listed in idxs, in that order. Repeated indexes
//are allowed.
func (A *Array) Take(idxs []int) (*Array, error) {
	fs := A.FrameSize()
	data := make([]float64, 0, fs*len(idxs))
	for _, i := range idxs {
		if i < 0 || i >= A.Len() {
			return nil, werr.New(werr.ShapeMismatch, "", "nd.Take", "frame %d out of %d frames", i, A.Len())
		}
		data = append(data, A.Row(i)...)
	}
	shape := A.shape.Clone()
	shape[0] = len(idxs)
	return &Array{Dtype: A.Dtype, shape: shape, data: data}, nil
}

//Reshape returns a copy of A with a new shape holding the same number of
//elements.
func (A *Array) Reshape(shape ...int) (*Array, error) {
	s := Shape(shape).Clone()
	if len(s) == 0 || s.Size() != len(A.data) {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.Reshape", "can't reshape %v into %v", A.shape, s)
	}
	return &Array{Dtype: A.Dtype, shape: s, data: append([]float64(nil), A.data...)}, nil
}

//Concat joins arrays along the leading axis. All of them need the same
//feature shape. The dtype of the result is that of the first array.
func Concat(arrs ...*Array) (*Array, error) {
	if len(arrs) == 0 {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.Concat", "nothing to concatenate")
	}
	fshape := arrs[0].FeatureShape()
	n := 0
	for i, a := range arrs {
		if !a.FeatureShape().Equal(fshape) {
			return nil, werr.New(werr.ShapeMismatch, "", "nd.Concat", "array %d has feature shape %v, expected %v", i, a.FeatureShape(), fshape)
		}
		n += a.Len()
	}
	data := make([]float64, 0, n*fshape.Size())
	for _, a := range arrs {
		data = append(data, a.data...)
	}
	shape := append(Shape{n}, fshape...)
	return &Array{Dtype: arrs[0].Dtype, shape: shape, data: data}, nil
}

//Stack stacks arrays of identical shape along a new leading axis.
func Stack(arrs ...*Array) (*Array, error) {
	if len(arrs) == 0 {
		return nil, werr.New(werr.ShapeMismatch, "", "nd.Stack", "nothing to stack")
	}
	s := arrs[0].shape
	data := make([]float64, 0, len(arrs)*s.Size())
	for i, a := range arrs {
		if !a.shape.Equal(s) {
			return nil, werr.New(werr.ShapeMismatch, "", "nd.Stack", "array %d has shape %v, expected %v", i, a.shape, s)
		}
		data = append(data, a.data...)
	}
	shape := append(Shape{len(arrs)}, s...)
	return &Array{Dtype: arrs[0].Dtype, shape: shape, data: data}, nil
}

//SwapLeading swaps the first two axes, so an array of shape
//(n_trajs, n_frames, ...) becomes (n_frames, n_trajs, ...).
func (A *Array) SwapLeading() (*Array, error) {
	if len(A.shape) < 2 {
		return nil, werr.New(werr.TooManyDimensions, "", "nd.SwapLeading", "need at least 2 axes, have %d", len(A.shape))
	}
	n0, n1 := A.shape[0], A.shape[1]
	inner := A.shape[2:].Size()
	out := make([]float64, len(A.data))
	for i := 0; i < n0; i++ {
		for j := 0; j < n1; j++ {
			src := (i*n1 + j) * inner
			dst := (j*n0 + i) * inner
			copy(out[dst:dst+inner], A.data[src:src+inner])
		}
	}
	shape := A.shape.Clone()
	shape[0], shape[1] = n1, n0
	return &Array{Dtype: A.Dtype, shape: shape, data: out}, nil
}

//Equal is true if b has the same shape as A and the same values. NaNs
//compare equal to each other. Dtypes are not compared.
func (A *Array) Equal(b *Array) bool {
	if A == nil || b == nil {
		return A == b
	}
	return A.shape.Equal(b.shape) && floats.Same(A.data, b.data)
}
