/*
 * contig.go, part of westore.
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
	"go.uber.org/zap"

	"github.com/rmera/westore/contig"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/panel"
	"github.com/rmera/westore/records"
)

//Graph returns the continuation graph of the archive.
func (A *Archive) Graph() (*contig.Graph, error) {
	runs, err := A.RunIdxs()
	if err != nil {
		return nil, err
	}
	pairs, err := A.sch.Continuations()
	if err != nil {
		return nil, err
	}
	g, err := contig.FromPairs(runs, pairs)
	return g, werr.Decorate(err, "westore.Graph")
}

//AddContinuation records that the run continuation continues base. Both
//runs must exist, a run continues at most one run, and continuations
//can't form a cycle.
func (A *Archive) AddContinuation(continuation, base int) error {
	const caller = "westore.AddContinuation"
	if err := A.writable(caller); err != nil {
		return err
	}
	g, err := A.Graph()
	if err != nil {
		return err
	}
	if err := g.Add(continuation, base); err != nil {
		return werr.Decorate(err, caller)
	}
	A.log.Debug("added continuation", zap.Int("continuation", continuation), zap.Int("base", base))
	return A.sch.AddContinuation(continuation, base)
}

//IsContig reports whether each run in runs continues the one before it.
func (A *Archive) IsContig(runs []int) (bool, error) {
	g, err := A.Graph()
	if err != nil {
		return false, err
	}
	return g.IsContig(runs), nil
}

//Contig validates runs as a contig and returns it with the cycle count
//of each run.
func (A *Archive) Contig(runs []int) (*contig.Contig, error) {
	const caller = "westore.Contig"
	g, err := A.Graph()
	if err != nil {
		return nil, err
	}
	if err := g.Validate(runs); err != nil {
		return nil, werr.Decorate(err, caller)
	}
	cycles := make([]int, len(runs))
	for i, r := range runs {
		if cycles[i], err = A.runCycles(r); err != nil {
			return nil, werr.Decorate(err, caller)
		}
	}
	return contig.New(runs, cycles)
}

//SpanningContigs returns every contig from a run that continues nothing
//to a run nothing continues.
func (A *Archive) SpanningContigs() ([][]int, error) {
	g, err := A.Graph()
	if err != nil {
		return nil, err
	}
	return g.SpanningContigs(), nil
}

//RunLineage returns the contig from the first run of run's chain of
//continuations down to run.
func (A *Archive) RunLineage(run int) ([]int, error) {
	g, err := A.Graph()
	if err != nil {
		return nil, err
	}
	l, err := g.Lineage(run)
	return l, werr.Decorate(err, "westore.RunLineage")
}

//ResamplingPanel validates runs as a contig and returns its resampling
//records arranged by cycle, step and walker.
func (A *Archive) ResamplingPanel(runs []int) (panel.Panel, error) {
	c, err := A.Contig(runs)
	if err != nil {
		return nil, err
	}
	recs, err := A.ContigRecords(runs, records.Resampling)
	if err != nil {
		return nil, err
	}
	n := c.NumCycles()
	for _, r := range recs {
		n = max(n, r.CycleIdx+1)
	}
	return panel.Build(recs, n)
}

//ResamplingParents returns, for every cycle of the contig runs, the slot
//each walker slot came from, using the decision enumeration of the first
//run. See panel.Parents.
func (A *Archive) ResamplingParents(runs []int) ([][]int, error) {
	p, err := A.ResamplingPanel(runs)
	if err != nil {
		return nil, err
	}
	enum, err := A.DecisionEnum(runs[0])
	if err != nil {
		return nil, err
	}
	if len(enum) == 0 {
		enum = panel.CloneMerge()
	}
	n, err := A.NumRunTrajs(runs[0])
	if err != nil {
		return nil, err
	}
	return panel.Parents(p, enum, n)
}

//WalkerLineage returns the (slot, contig cycle) pairs the walker in slot
//walker at contig cycle of the runs descends from, from the first cycle
//on. The pairs are a trace for ContigFramesFields.
func (A *Archive) WalkerLineage(runs []int, walker, cycle int) ([][2]int, error) {
	parents, err := A.ResamplingParents(runs)
	if err != nil {
		return nil, err
	}
	l, err := panel.Lineage(parents, walker, cycle)
	return l, werr.Decorate(err, "westore.WalkerLineage")
}
