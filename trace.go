/*
 * trace.go, part of westore.
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
	"math"
	"slices"

	"github.com/rmera/westore/contig"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

//TraceFields reads the given fields at each frame of the trace, which
//need not follow any order. Every field comes back with one row per frame,
//absent where a sparse field has no value.
func (A *Archive) TraceFields(frames []contig.Frame, fields []string) (map[string]*nd.Masked, error) {
	const caller = "westore.TraceFields"
	out := make(map[string]*nd.Masked, len(fields))
	for _, name := range fields {
		rows := make([]*nd.Masked, len(frames))
		for i, fr := range frames {
			m, err := A.TrajField(fr.Run, fr.Traj, name, []int{fr.Cycle}, true)
			if err != nil {
				return nil, werr.Decorate(err, caller)
			}
			rows[i] = m
		}
		m, err := stackFrames(rows, caller)
		if err != nil {
			return nil, err
		}
		out[name] = m
	}
	return out, nil
}

//stackFrames joins one-frame masked arrays.
func stackFrames(rows []*nd.Masked, caller string) (*nd.Masked, error) {
	if len(rows) == 0 {
		return nd.NewMasked(nd.Float64, 0, nil), nil
	}
	fs := rows[0].FeatureShape()
	out := nd.NewMasked(rows[0].Dtype, len(rows), fs)
	for i, r := range rows {
		if !r.FeatureShape().Equal(fs) {
			return nil, werr.New(werr.ShapeMismatch, "", caller, "frame %d has feature shape %v, expected %v", i, r.FeatureShape(), fs)
		}
		if r.IsPresent(0) {
			if err := out.SetRow(i, r.Row(0)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

//RunTraceFields is TraceFields over the (traj, cycle) pairs of one run.
func (A *Archive) RunTraceFields(run int, trace [][2]int, fields []string) (map[string]*nd.Masked, error) {
	frames := make([]contig.Frame, len(trace))
	for i, t := range trace {
		frames[i] = contig.Frame{Run: run, Traj: t[0], Cycle: t[1]}
	}
	return A.TraceFields(frames, fields)
}

//ContigTraceFields reads every trajectory of the runs of a contig at the
//(run, cycle) pairs of trace. Each field comes back with the shape
//(len(trace), n_trajs, feature...), with NaN where a sparse field has no
//value. The runs, taken in the order they first appear in trace, must be
//a contig with the same number of trajectories each.
func (A *Archive) ContigTraceFields(trace [][2]int, fields []string) (map[string]*nd.Array, error) {
	const caller = "westore.ContigTraceFields"
	var runs []int
	byRun := make(map[int][]int)
	for i, t := range trace {
		if !slices.Contains(runs, t[0]) {
			runs = append(runs, t[0])
		}
		byRun[t[0]] = append(byRun[t[0]], i)
	}
	if len(runs) == 0 {
		return nil, werr.New(werr.InvalidContig, A.path, caller, "empty trace")
	}
	g, err := A.Graph()
	if err != nil {
		return nil, err
	}
	if err := g.Validate(runs); err != nil {
		return nil, werr.Decorate(err, caller)
	}
	ntrajs := -1
	for _, r := range runs {
		n, err := A.NumRunTrajs(r)
		if err != nil {
			return nil, err
		}
		if ntrajs >= 0 && n != ntrajs {
			return nil, werr.New(werr.ShapeMismatch, A.path, caller, "run %d has %d trajectories, run %d has %d", r, n, runs[0], ntrajs)
		}
		ntrajs = n
	}
	out := make(map[string]*nd.Array, len(fields))
	for _, name := range fields {
		var res *nd.Array
		for _, r := range runs {
			rows := byRun[r]
			cycles := make([]int, len(rows))
			for j, i := range rows {
				cycles[j] = trace[i][1]
			}
			for t := 0; t < ntrajs; t++ {
				m, err := A.TrajField(r, t, name, cycles, true)
				if err != nil {
					return nil, werr.Decorate(err, caller)
				}
				if res == nil {
					shape := append([]int{len(trace), ntrajs}, m.FeatureShape()...)
					res = nd.Full(nd.Float64, math.NaN(), shape...)
					res.Dtype = m.Dtype
				} else if !m.FeatureShape().Equal(res.Shape()[2:]) {
					return nil, werr.New(werr.ShapeMismatch, A.path, caller, "field %s of run %d has feature shape %v, expected %v", name, r, m.FeatureShape(), res.Shape()[2:])
				}
				fsz := m.FrameSize()
				data := res.Data()
				for j, i := range rows {
					if m.IsPresent(j) {
						copy(data[(i*ntrajs+t)*fsz:], m.Row(j))
					}
				}
			}
		}
		if res == nil {
			res = nd.New(nd.Float64, len(trace), 0)
		}
		out[name] = res
	}
	return out, nil
}

//ContigFields is ContigTraceFields over every cycle of the contig runs.
func (A *Archive) ContigFields(runs []int, fields []string) (map[string]*nd.Array, error) {
	c, err := A.Contig(runs)
	if err != nil {
		return nil, err
	}
	if c.NumCycles() == 0 {
		return nil, werr.New(werr.InvalidContig, A.path, "westore.ContigFields", "the runs %v have no cycles", runs)
	}
	cycles := make([]int, c.NumCycles())
	for i := range cycles {
		cycles[i] = i
	}
	trace, err := c.Trace(cycles)
	if err != nil {
		return nil, werr.Decorate(err, "westore.ContigFields")
	}
	return A.ContigTraceFields(trace, fields)
}

//ContigFramesFields is TraceFields over (traj, contig cycle) pairs of the
//contig runs, such as a walker lineage.
func (A *Archive) ContigFramesFields(runs []int, trace [][2]int, fields []string) (map[string]*nd.Masked, error) {
	const caller = "westore.ContigFramesFields"
	c, err := A.Contig(runs)
	if err != nil {
		return nil, err
	}
	frames, err := c.Frames(trace)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	return A.TraceFields(frames, fields)
}
