/*
 * reporter_test.go, part of westore.
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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/records"
)

func walkersAt(cycle, n int) []Walker {
	out := make([]Walker, n)
	for i := range out {
		pos := nd.Full(nd.Float64, float64(10*cycle+i), 4, 3)
		out[i] = &SimpleWalker{W: 1 / float64(n), Fields: map[string]*nd.Array{"positions": pos}}
	}
	return out
}

func TestReporter(Te *testing.T) {
	p := filepath.Join(Te.TempDir(), "rep.wst")
	rep := &Reporter{
		Path:        p,
		Mode:        CreateExclusive,
		Options:     []Option{WithConfig(testConfig())},
		Resampler:   testResampler{},
		BC:          testBC{},
		InitWalkers: walkersAt(0, 2),
	}
	require.NoError(Te, rep.Init())
	for c := 0; c < 3; c++ {
		var res, aux []records.Values
		if c == 1 {
			res = []records.Values{decision(0, 0, 2, 0, 1), decision(0, 1, 3, 0)}
			aux = []records.Values{{"n_clones": {1}}}
		}
		progress := records.Values{"min_distances": {float64(c), 1}}
		require.NoError(Te, rep.Report(c, walkersAt(c, 2), nil, nil, progress, res, aux))
	}
	run := rep.Run()
	require.NoError(Te, rep.Cleanup())

	cont := run
	next := &Reporter{
		Path:        p,
		Mode:        Append,
		Resampler:   testResampler{},
		InitWalkers: walkersAt(3, 2),
		ContinueRun: &cont,
	}
	require.NoError(Te, next.Init())
	require.NoError(Te, next.Report(0, walkersAt(3, 2), nil, nil, nil, nil, nil))
	require.NoError(Te, next.Cleanup())

	a, err := Open(p, ReadOnly)
	require.NoError(Te, err)
	defer a.Close()
	n, err := a.NumRunCycles(run)
	require.NoError(Te, err)
	assert.Equal(Te, 3, n)
	nt, err := a.NumRunTrajs(run)
	require.NoError(Te, err)
	assert.Equal(Te, 2, nt)
	pos, err := a.TrajField(run, 1, "positions", []int{2}, false)
	require.NoError(Te, err)
	assert.Equal(Te, 21.0, pos.At(0, 0, 0))
	w, err := a.TrajField(run, 0, "weights", nil, false)
	require.NoError(Te, err)
	assert.Equal(Te, []float64{0.5, 0.5, 0.5}, w.Data())

	prog, err := a.RunRecords(run, records.Progress)
	require.NoError(Te, err)
	assert.Len(Te, prog, 3)
	res, err := a.RunRecords(run, records.Resampling)
	require.NoError(Te, err)
	require.Len(Te, res, 2)
	assert.Equal(Te, 1, res[1].CycleIdx)
	aux, err := a.RunRecords(run, records.Resampler)
	require.NoError(Te, err)
	require.Len(Te, aux, 1)
	assert.Equal(Te, 1, aux[0].CycleIdx)
	clones, ok := aux[0].Get("n_clones")
	require.True(Te, ok)
	assert.Equal(Te, []float64{1}, clones)
	aux, err = a.RunRecords(run+1, records.Resampler)
	require.NoError(Te, err)
	assert.Empty(Te, aux)

	iw, err := a.InitWalkers(run)
	require.NoError(Te, err)
	require.Len(Te, iw, 2)
	assert.Equal(Te, 0.5, iw[1].Weight())
	assert.Equal(Te, 1.0, iw[1].State()["positions"].At(0, 0))

	ok, err = a.IsContig([]int{run, run + 1})
	require.NoError(Te, err)
	assert.True(Te, ok)
	warp, err := a.RunRecords(run+1, records.Warping)
	require.NoError(Te, err)
	assert.Empty(Te, warp)
	parents, err := a.ResamplingParents([]int{run, run + 1})
	require.NoError(Te, err)
	assert.Equal(Te, [][]int{{0, 1}, {0, 0}, {0, 1}, {0, 1}}, parents)
}
