package nd

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rmera/westore/internal/werr"
)

func TestDtypeConvert(Te *testing.T) {
	assert.Equal(Te, 3.0, Int64.Convert(2.6))
	assert.Equal(Te, 1.0, Bool.Convert(-4))
	assert.Equal(Te, 0.0, Int32.Convert(math.NaN()))
	assert.True(Te, math.IsNaN(Float32.Convert(math.NaN())))
	assert.Equal(Te, float64(float32(0.1)), Float32.Convert(0.1))
	d, err := ParseDtype("float")
	require.NoError(Te, err)
	assert.Equal(Te, Float64, d)
	_, err = ParseDtype("complex128")
	assert.Error(Te, err)
	assert.Equal(Te, 4, Int32.Size())
}

func TestShapeString(Te *testing.T) {
	assert.Equal(Te, "(1,)", Shape{1}.String())
	assert.Equal(Te, "(10, 3)", Shape{10, 3}.String())
	assert.Equal(Te, "()", Shape{}.String())
	assert.Equal(Te, 1, Shape{}.Size())
}

func TestFromData(Te *testing.T) {
	a, err := FromData(Float64, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(Te, err)
	assert.Equal(Te, 2, a.Len())
	assert.Equal(Te, Shape{3}, a.FeatureShape())
	assert.Equal(Te, []float64{4, 5, 6}, a.Row(1))
	assert.Equal(Te, 6.0, a.At(1, 2))
	_, err = FromData(Float64, []float64{1, 2, 3}, 2, 2)
	assert.True(Te, errors.Is(err, werr.ShapeMismatch))
}

func TestSliceTakeConcat(Te *testing.T) {
	a, err := FromRows(Int64, Shape{2}, []float64{0, 1}, []float64{2, 3}, []float64{4, 5})
	require.NoError(Te, err)
	s, err := a.Slice(1, 3)
	require.NoError(Te, err)
	assert.Equal(Te, []float64{2, 3, 4, 5}, s.Data())
	t, err := a.Take([]int{2, 0, 2})
	require.NoError(Te, err)
	assert.Equal(Te, []float64{4, 5, 0, 1, 4, 5}, t.Data())
	_, err = a.Take([]int{3})
	assert.Error(Te, err)
	c, err := Concat(a, s)
	require.NoError(Te, err)
	assert.Equal(Te, Shape{5, 2}, c.Shape())
	b := New(Int64, 1, 3)
	_, err = Concat(a, b)
	assert.True(Te, errors.Is(err, werr.ShapeMismatch))
}

func TestStackSwap(Te *testing.T) {
	//two trajectories, three frames, scalar feature
	t0 := Scalars(Float64, 0, 1, 2)
	t1 := Scalars(Float64, 10, 11, 12)
	st, err := Stack(t0, t1)
	require.NoError(Te, err)
	assert.Equal(Te, Shape{2, 3}, st.Shape())
	sw, err := st.SwapLeading()
	require.NoError(Te, err)
	assert.Equal(Te, Shape{3, 2}, sw.Shape())
	assert.Equal(Te, []float64{0, 10, 1, 11, 2, 12}, sw.Data())
	_, err = t0.SwapLeading()
	assert.True(Te, errors.Is(err, werr.TooManyDimensions))
}

func TestEqualNaN(Te *testing.T) {
	a := Scalars(Float64, 1, math.NaN())
	b := Scalars(Float64, 1, math.NaN())
	assert.True(Te, a.Equal(b))
	c := Scalars(Float64, 1, 2)
	assert.False(Te, a.Equal(c))
}

func TestMasked(Te *testing.T) {
	m := NewMasked(Float32, 4, Shape{2})
	require.NoError(Te, m.SetRow(1, []float64{1, 2}))
	require.NoError(Te, m.SetRow(3, []float64{3, 4}))
	assert.False(Te, m.IsDense())
	assert.Equal(Te, 2, m.NPresent())
	assert.Equal(Te, []int{1, 3}, m.PresentIdxs())
	assert.True(Te, math.IsNaN(m.At(0, 0)))
	assert.Equal(Te, []float64{1, 2, 3, 4}, m.Compressed().Data())
	assert.Error(Te, m.SetRow(0, []float64{1}))
	d := Dense(Scalars(Int64, 1, 2))
	assert.True(Te, d.IsDense())
	assert.True(Te, d.IsPresent(1))
}

func TestFrameMatrix(Te *testing.T) {
	m2 := mat.NewDense(2, 3, []float64{7, 8, 9, 10, 11, 12})
	a, err := FromData(Float64, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, 2, 2, 3)
	require.NoError(Te, err)
	assert.Equal(Te, Shape{2, 2, 3}, a.Shape())
	f, err := a.FrameMatrix(1)
	require.NoError(Te, err)
	assert.True(Te, mat.Equal(f, m2))
	f.Set(0, 0, -1)
	assert.Equal(Te, -1.0, a.At(1, 0, 0))
	_, err = Scalars(Float64, 1).FrameMatrix(0)
	assert.Error(Te, err)
}
