/*
 * contig_test.go, part of westore.
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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/westore/contig"
	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/panel"
	"github.com/rmera/westore/records"
)

type testResampler struct{}

func (testResampler) Decisions() map[string]int { return panel.CloneMerge() }

func (testResampler) ResamplingFields() []records.FieldDecl {
	return []records.FieldDecl{
		{Name: panel.StepIdx, Shape: nd.Shape{1}, Dtype: nd.Int64},
		{Name: panel.WalkerIdx, Shape: nd.Shape{1}, Dtype: nd.Int64},
		{Name: panel.DecisionID, Shape: nd.Shape{1}, Dtype: nd.Int64},
		{Name: panel.TargetIdxs, Dtype: nd.Int64, VariableLength: true},
	}
}

func (testResampler) ResamplerFields() []records.FieldDecl {
	return []records.FieldDecl{{Name: "n_clones", Shape: nd.Shape{1}, Dtype: nd.Int64}}
}

type testBC struct{}

func (testBC) WarpingFields() []records.FieldDecl {
	return []records.FieldDecl{
		{Name: "walker_idx", Shape: nd.Shape{1}, Dtype: nd.Int64},
		{Name: "weight", Shape: nd.Shape{1}, Dtype: nd.Float64},
	}
}

func (testBC) BCFields() []records.FieldDecl {
	return []records.FieldDecl{{Name: "cutoff", Shape: nd.Shape{1}, Dtype: nd.Float64}}
}

func (testBC) ProgressFields() []records.FieldDecl {
	return []records.FieldDecl{{Name: "min_distances", Shape: nd.Shape{2}, Dtype: nd.Float64}}
}

func decision(step, walker, code float64, targets ...float64) records.Values {
	return records.Values{panel.StepIdx: {step}, panel.WalkerIdx: {walker}, panel.DecisionID: {code}, panel.TargetIdxs: targets}
}

func TestContigValidity(Te *testing.T) {
	a := newArchive(Te, "c.wst")
	r0 := addRun(Te, a, 1, 2, 0)
	r1 := addRun(Te, a, 1, 2, 0, ContinueRun(r0))
	r2 := addRun(Te, a, 1, 2, 0, ContinueRun(r1))

	conts, err := a.Continuations()
	require.NoError(Te, err)
	assert.Equal(Te, [][2]int{{1, 0}, {2, 1}}, conts)
	for _, c := range []struct {
		runs []int
		ok   bool
	}{
		{[]int{0, 1, 2}, true},
		{[]int{0, 2}, false},
		{[]int{2, 1, 0}, false},
		{[]int{1}, true},
	} {
		ok, err := a.IsContig(c.runs)
		require.NoError(Te, err)
		assert.Equal(Te, c.ok, ok, "%v", c.runs)
	}
	_, err = a.NewRun(nil, ContinueRun(9))
	assert.True(Te, errors.Is(err, ErrRunNotFound))
	err = a.AddContinuation(r0, r2)
	assert.True(Te, errors.Is(err, ErrInvalidContig))
	_, err = a.Contig([]int{0, 2})
	assert.True(Te, errors.Is(err, ErrInvalidContig))

	sc, err := a.SpanningContigs()
	require.NoError(Te, err)
	assert.Equal(Te, [][]int{{0, 1, 2}}, sc)
	c, err := a.Contig([]int{0, 1, 2})
	require.NoError(Te, err)
	assert.Equal(Te, 6, c.NumCycles())
}

func TestContigTrace(Te *testing.T) {
	a := newArchive(Te, "t.wst")
	r0 := addRun(Te, a, 4, 5, 0)
	r1 := addRun(Te, a, 4, 3, 1000, ContinueRun(r0))

	got, err := a.ContigFields([]int{r0, r1}, []string{"positions"})
	require.NoError(Te, err)
	pos := got["positions"]
	require.Equal(Te, nd.Shape{8, 4, 4, 3}, pos.Shape())
	for c := 0; c < 8; c++ {
		for t := 0; t < 4; t++ {
			want := 100*float64(t) + 12*float64(c)
			if c >= 5 {
				want = 1000 + 100*float64(t) + 12*float64(c-5)
			}
			assert.Equal(Te, want, pos.At(c, t, 0, 0), "cycle %d traj %d", c, t)
		}
	}

	//a sparse observable in the first run only has values at cycles 1 and 3
	obs := make([]*nd.Array, 4)
	idxs := make([][]int, 4)
	for t := range obs {
		obs[t] = nd.Scalars(nd.Float64, float64(t), float64(10+t))
		idxs[t] = []int{1, 3}
	}
	require.NoError(Te, a.AddRunObservable(r0, "x", obs, idxs))
	dense := make([]*nd.Array, 4)
	for t := range dense {
		dense[t] = nd.Scalars(nd.Float64, 7, 7, 7)
	}
	require.NoError(Te, a.AddRunObservable(r1, "x", dense, nil))
	tr, err := a.ContigTraceFields([][2]int{{r0, 1}, {r0, 2}, {r1, 0}}, []string{"observables/x"})
	require.NoError(Te, err)
	x := tr["observables/x"]
	require.Equal(Te, nd.Shape{3, 4}, x.Shape())
	assert.Equal(Te, 2.0, x.At(0, 2))
	assert.True(Te, math.IsNaN(x.At(1, 2)))
	assert.Equal(Te, 7.0, x.At(2, 3))

	err = a.AddRunObservable(r0, "y", []*nd.Array{nd.Scalars(nd.Float64, 1)}, nil)
	assert.True(Te, errors.Is(err, ErrFrameCountMismatch))

	r2 := addRun(Te, a, 2, 1, 0, ContinueRun(r1))
	_, err = a.ContigFields([]int{r0, r1, r2}, []string{"positions"})
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
	_, err = a.ContigTraceFields([][2]int{{r1, 0}, {r0, 0}}, []string{"positions"})
	assert.True(Te, errors.Is(err, ErrInvalidContig))
}

func TestTraceFields(Te *testing.T) {
	a := newArchive(Te, "tf.wst")
	r0 := addRun(Te, a, 2, 4, 0)
	r1 := addRun(Te, a, 2, 4, 1000)
	tr, err := a.TraceFields([]contig.Frame{{Run: r1, Traj: 1, Cycle: 3}, {Run: r0, Traj: 0, Cycle: 0}}, []string{"positions", "velocities"})
	require.NoError(Te, err)
	pos := tr["positions"]
	require.Equal(Te, 2, pos.Len())
	assert.Equal(Te, 1000+100+36.0, pos.At(0, 0, 0))
	assert.Equal(Te, 0.0, pos.At(1, 0, 0))
	vel := tr["velocities"]
	assert.Equal(Te, 0, vel.NPresent())

	rt, err := a.RunTraceFields(r0, [][2]int{{1, 2}}, []string{"positions"})
	require.NoError(Te, err)
	assert.Equal(Te, 100+24.0, rt["positions"].At(0, 0, 0))
}

func TestResamplingPanel(Te *testing.T) {
	a := newArchive(Te, "p.wst")
	r0 := addRun(Te, a, 2, 2, 0)
	r1 := addRun(Te, a, 2, 1, 0, ContinueRun(r0))
	for _, r := range []int{r0, r1} {
		require.NoError(Te, a.InitRunResampling(r, testResampler{}))
	}
	enum, err := a.DecisionEnum(r0)
	require.NoError(Te, err)
	assert.Equal(Te, panel.CloneMerge(), enum)
	names, err := a.DecisionValueNames(r0)
	require.NoError(Te, err)
	assert.Equal(Te, panel.Clone, names[2])

	clone, squash, nothing := float64(enum[panel.Clone]), float64(enum[panel.Squash]), float64(enum[panel.Nothing])
	require.NoError(Te, a.ExtendCycleRecords(r0, records.Resampling, 0, []records.Values{
		decision(0, 0, clone, 0, 1), decision(0, 1, squash, 0),
	}))
	require.NoError(Te, a.ExtendCycleRecords(r1, records.Resampling, 0, []records.Values{
		decision(0, 0, nothing, 0), decision(0, 1, nothing, 1),
	}))

	recs, err := a.ContigRecords([]int{r0, r1}, records.Resampling)
	require.NoError(Te, err)
	require.Len(Te, recs, 4)
	assert.Equal(Te, 0, recs[0].CycleIdx)
	assert.Equal(Te, 2, recs[3].CycleIdx, "records of the second run are offset by the cycles of the first")

	p, err := a.ResamplingPanel([]int{r0, r1})
	require.NoError(Te, err)
	require.Len(Te, p, 3)
	assert.Equal(Te, []int{2, 0, 2}, p.NumWalkers())
	parents, err := a.ResamplingParents([]int{r0, r1})
	require.NoError(Te, err)
	assert.Equal(Te, [][]int{{0, 0}, {0, 1}, {0, 1}}, parents)
	lin, err := a.WalkerLineage([]int{r0, r1}, 1, 2)
	require.NoError(Te, err)
	assert.Equal(Te, [][2]int{{1, 0}, {1, 1}, {1, 2}}, lin)
	_, err = a.WalkerLineage([]int{r0, r1}, 1, 3)
	assert.True(Te, errors.Is(err, ErrInvalidContig))
	fr, err := a.ContigFramesFields([]int{r0, r1}, lin, []string{"positions"})
	require.NoError(Te, err)
	pos := fr["positions"]
	require.Equal(Te, 3, pos.Len())
	assert.Equal(Te, []float64{100, 112, 100}, []float64{pos.At(0, 0, 0), pos.At(1, 0, 0), pos.At(2, 0, 0)})
	_, err = a.ContigFramesFields([]int{r0, r1}, [][2]int{{0, 3}}, []string{"positions"})
	assert.True(Te, errors.Is(err, ErrInvalidContig))
	runs, err := a.RunLineage(r1)
	require.NoError(Te, err)
	assert.Equal(Te, []int{r0, r1}, runs)

	tab, err := a.ContigRecordsTable([]int{r0, r1}, records.Resampling)
	require.NoError(Te, err)
	assert.Equal(Te, 4, tab.Len())

	_, err = a.ResamplingPanel([]int{r1, r0})
	assert.True(Te, errors.Is(err, ErrInvalidContig))
}

func TestResamplingParentsNoEnum(Te *testing.T) {
	a := newArchive(Te, "noenum.wst")
	r := addRun(Te, a, 2, 2, 0)
	require.NoError(Te, a.InitRecordFieldsFrom(testResampler{}, nil))
	require.NoError(Te, a.InitRunRecordGroup(r, records.Resampling, testResampler{}.ResamplingFields()))
	enum, err := a.DecisionEnum(r)
	require.NoError(Te, err)
	assert.Empty(Te, enum)
	clone, squash := float64(panel.CloneMerge()[panel.Clone]), float64(panel.CloneMerge()[panel.Squash])
	require.NoError(Te, a.ExtendCycleRecords(r, records.Resampling, 0, []records.Values{
		decision(0, 0, clone, 0, 1), decision(0, 1, squash, 0),
	}))
	parents, err := a.ResamplingParents([]int{r})
	require.NoError(Te, err)
	require.Len(Te, parents, 2)
	assert.Equal(Te, []int{0, 0}, parents[0])
}

func TestRecordGroups(Te *testing.T) {
	a := newArchive(Te, "r.wst")
	run := addRun(Te, a, 1, 3, 0)
	require.NoError(Te, a.InitRecordFieldsFrom(testResampler{}, testBC{}))
	require.NoError(Te, a.InitRunProgress(run, testBC{}))
	require.NoError(Te, a.InitRunWarping(run, testBC{}))
	require.NoError(Te, a.InitRunBC(run, testBC{}))
	require.NoError(Te, a.InitRunResampler(run, testResampler{}))

	for c := 0; c < 3; c++ {
		require.NoError(Te, a.ExtendCycleRecords(run, records.Progress, c, []records.Values{{"min_distances": {float64(c), 0.5}}}))
	}
	require.NoError(Te, a.ExtendCycleRecords(run, records.Warping, 2, []records.Values{{"walker_idx": {0}, "weight": {0.25}}}))
	err := a.ExtendCycleRecords(run, records.Progress, 5, []records.Values{{"min_distances": {1, 1}}})
	assert.True(Te, errors.Is(err, ErrFrameCountMismatch))

	prog, err := a.RunRecords(run, records.Progress)
	require.NoError(Te, err)
	require.Len(Te, prog, 3)
	assert.Equal(Te, 2, prog[2].CycleIdx)
	warp, err := a.RunRecordsTable(run, records.Warping)
	require.NoError(Te, err)
	col, ok := warp.Column("weight")
	require.True(Te, ok)
	assert.Equal(Te, []float64{0.25}, col.Scalars)
	assert.Equal(Te, []int{2}, warp.CycleIdxs)
	bc, err := a.RunRecords(run, records.BoundaryConditions)
	require.NoError(Te, err)
	assert.Empty(Te, bc)

	_, err = a.RunRecords(9, records.Progress)
	assert.True(Te, errors.Is(err, ErrRunNotFound))
}
