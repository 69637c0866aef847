/*
 * trajs.go, part of westore.
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
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/field"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/schema"
)

//weightsFor returns the weights of n frames as an (n, 1) array, all ones
//if w is nil.
func weightsFor(w *nd.Array, n int, caller string) (*nd.Array, error) {
	if w == nil {
		return nd.Full(nd.Float64, 1, n, 1), nil
	}
	if w.Len() != n {
		return nil, werr.New(werr.FrameCountMismatch, "", caller, "%d weights for %d frames", w.Len(), n)
	}
	if w.Rank() == 1 {
		return w.Reshape(n, 1)
	}
	return w, nil
}

func (A *Archive) checkPositions(data map[string]*nd.Array, caller string) (int, error) {
	pos, ok := data[field.Positions]
	if !ok || pos == nil {
		return 0, werr.New(werr.FieldNotFound, A.path, caller, "positions must be given")
	}
	natoms, err := A.sch.NAtoms()
	if err != nil {
		return 0, werr.Decorate(err, caller)
	}
	ndims, err := A.sch.NDims()
	if err != nil {
		return 0, werr.Decorate(err, caller)
	}
	if !pos.FeatureShape().Equal(nd.Shape{natoms, ndims}) {
		return 0, werr.New(werr.ShapeMismatch, A.path, caller, "positions have frames of shape %v, should be (%d, %d)", pos.FeatureShape(), natoms, ndims)
	}
	return pos.Len(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

//AddTraj adds a trajectory to run and returns its index. data must hold
//positions, of shape (n_frames, n_atoms, n_dims). nil weights are all 1.
//Sparse fields without indices in sparseIdxs are taken as present at
//every frame, and declared sparse fields not in data are created empty.
func (A *Archive) AddTraj(run int, data map[string]*nd.Array, weights *nd.Array, sparseIdxs map[string][]int, metadata map[string]any) (int, error) {
	const caller = "westore.AddTraj"
	if err := A.writable(caller); err != nil {
		return 0, err
	}
	if err := A.checkRun(run, caller); err != nil {
		return 0, err
	}
	n, err := A.checkPositions(data, caller)
	if err != nil {
		return 0, err
	}
	weights, err = weightsFor(weights, n, caller)
	if err != nil {
		return 0, err
	}
	traj, err := A.NextRunTrajIdx(run)
	if err != nil {
		return 0, err
	}
	base := trajPath(run, traj)
	if err := A.f.CreateGroup(base); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	attrs := map[string]any{}
	for k, v := range metadata {
		if k == RunIdxKey || k == TrajIdxKey {
			A.log.Warn("run_idx and traj_idx are set by the archive and can't be given as metadata", zap.String("key", k))
			continue
		}
		attrs[k] = v
	}
	attrs[RunIdxKey] = run
	attrs[TrajIdxKey] = traj
	if err := A.f.SetAttrs(base, attrs); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	if err := A.fld.WriteInitial(base, field.Weights, weights, nil); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	for _, p := range sortedKeys(data) {
		if data[p] == nil || p == field.Weights {
			continue
		}
		if err := A.fld.WriteInitial(base, p, data[p], sparseIdxs[p]); err != nil {
			return 0, werr.Decorate(err, caller)
		}
	}
	sparse, err := A.sch.SparseFields()
	if err != nil {
		return 0, werr.Decorate(err, caller)
	}
	for _, p := range sparse {
		if _, ok := data[p]; ok {
			continue
		}
		if _, ok := sparseIdxs[p]; ok {
			continue
		}
		err := A.fld.Init(base, p)
		if errors.Is(err, werr.FieldNotFound) {
			//flagged sparse but never declared, it gets created on first write
			continue
		}
		if err != nil {
			return 0, werr.Decorate(err, caller)
		}
	}
	return traj, nil
}

func isObservable(path string) bool {
	return strings.HasPrefix(path, field.Observables+"/")
}

//ExtendTraj appends frames to a trajectory. data must hold positions.
//Sparse fields get the new frames as their indices. Fields that were never
//declared fail with ErrFieldNotFound, except observables, which are
//registered as sparse fields.
func (A *Archive) ExtendTraj(run, traj int, data map[string]*nd.Array, weights *nd.Array) error {
	const caller = "westore.ExtendTraj"
	if err := A.writable(caller); err != nil {
		return err
	}
	if err := A.checkTraj(run, traj, caller); err != nil {
		return err
	}
	m, err := A.checkPositions(data, caller)
	if err != nil {
		return err
	}
	for p, v := range data {
		if v != nil && v.Len() != m {
			return werr.New(werr.FrameCountMismatch, A.path, caller, "field %s has %d frames, positions have %d", p, v.Len(), m)
		}
	}
	weights, err = weightsFor(weights, m, caller)
	if err != nil {
		return err
	}
	base := trajPath(run, traj)
	n, err := A.fld.NFrames(base)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	idxs := make([]int, m)
	for i := range idxs {
		idxs[i] = n + i
	}
	if err := A.fld.Extend(base, field.Weights, weights, nil); err != nil {
		return werr.Decorate(err, caller)
	}
	for _, p := range sortedKeys(data) {
		v := data[p]
		if v == nil || p == field.Weights {
			continue
		}
		if err := A.prepareExtend(base, p, v, caller); err != nil {
			return err
		}
		sparse, err := A.sch.IsSparse(p)
		if err != nil {
			return werr.Decorate(err, caller)
		}
		var si []int
		if sparse {
			si = idxs
		}
		if err := A.fld.Extend(base, p, v, si); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	return nil
}

//prepareExtend makes sure a field that is not in the trajectory yet can
//be created.
func (A *Archive) prepareExtend(base, path string, v *nd.Array, caller string) error {
	ok, err := A.fld.Exists(base, path)
	if err != nil || ok {
		return werr.Decorate(err, caller)
	}
	_, declared, err := A.sch.FieldSpec(path)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	sparse, err := A.sch.IsSparse(path)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if declared || sparse {
		return nil
	}
	if !isObservable(path) {
		return werr.New(werr.FieldNotFound, A.path, caller, "field %s was not declared and is not an observable", path)
	}
	A.log.Warn("undeclared observable added as a sparse field", zap.String("field", path))
	if err := A.sch.DeclareSparseField(path); err != nil {
		return werr.Decorate(err, caller)
	}
	return werr.Decorate(A.sch.DeclareField(path, schema.Declared(v.FeatureShape(), v.Dtype)), caller)
}

//TrajField reads a field of a trajectory, at frames or at every frame if
//frames is nil. See field.Store.Read for masked.
func (A *Archive) TrajField(run, traj int, path string, frames []int, masked bool) (*nd.Masked, error) {
	const caller = "westore.TrajField"
	if err := A.checkTraj(run, traj, caller); err != nil {
		return nil, err
	}
	ok, err := A.fld.Exists(trajPath(run, traj), path)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	if !ok {
		return nil, werr.New(werr.FieldNotFound, A.path, caller, "run %d trajectory %d has no field %s", run, traj, path)
	}
	m, err := A.fld.Read(trajPath(run, traj), path, frames, masked)
	return m, werr.Decorate(err, caller)
}

//TrajFieldCycleIdxs returns the cycles a field holds values for.
func (A *Archive) TrajFieldCycleIdxs(run, traj int, path string) ([]int, error) {
	const caller = "westore.TrajFieldCycleIdxs"
	if err := A.checkTraj(run, traj, caller); err != nil {
		return nil, err
	}
	ok, err := A.fld.Exists(trajPath(run, traj), path)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	if !ok {
		return nil, werr.New(werr.FieldNotFound, A.path, caller, "run %d trajectory %d has no field %s", run, traj, path)
	}
	idxs, err := A.fld.SparseIdxs(trajPath(run, traj), path)
	return idxs, werr.Decorate(err, caller)
}

//TrajFields lists the fields stored in a trajectory.
func (A *Archive) TrajFields(run, traj int) ([]string, error) {
	const caller = "westore.TrajFields"
	if err := A.checkTraj(run, traj, caller); err != nil {
		return nil, err
	}
	return A.fld.Fields(trajPath(run, traj))
}

//AddRunObservable stores observables/name in every trajectory of run,
//data[i] going to trajectory i. An observable with fewer frames than the
//run has cycles needs the cycle of each frame in sparseIdxs[i].
func (A *Archive) AddRunObservable(run int, name string, data []*nd.Array, sparseIdxs [][]int) error {
	const caller = "westore.AddRunObservable"
	if err := A.writable(caller); err != nil {
		return err
	}
	ntrajs, err := A.NumRunTrajs(run)
	if err != nil {
		return err
	}
	if len(data) != ntrajs {
		return werr.New(werr.FrameCountMismatch, A.path, caller, "%d arrays for the %d trajectories of run %d", len(data), ntrajs, run)
	}
	if sparseIdxs != nil && len(sparseIdxs) != ntrajs {
		return werr.New(werr.FrameCountMismatch, A.path, caller, "%d sparse index lists for the %d trajectories of run %d", len(sparseIdxs), ntrajs, run)
	}
	ncycles, err := A.NumRunCycles(run)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	for i, d := range data {
		switch {
		case d.Len() > ncycles:
			return werr.New(werr.FrameCountMismatch, A.path, caller, "trajectory %d: %d frames for a run of %d cycles", i, d.Len(), ncycles)
		case sparseIdxs != nil:
			if len(sparseIdxs[i]) != d.Len() {
				return werr.New(werr.FrameCountMismatch, A.path, caller, "trajectory %d: %d frames and %d sparse indices", i, d.Len(), len(sparseIdxs[i]))
			}
		case d.Len() < ncycles:
			return werr.New(werr.FrameCountMismatch, A.path, caller, "trajectory %d: %d frames for a run of %d cycles and no sparse indices", i, d.Len(), ncycles)
		}
	}
	p := container.Join(field.Observables, name)
	for i, d := range data {
		var si []int
		if sparseIdxs != nil {
			si = sparseIdxs[i]
		}
		if err := A.fld.WriteInitial(trajPath(run, i), p, d, si); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	return nil
}

//AddObservable stores observables/name in every trajectory of every run.
//data[i] and sparseIdxs[i] are for the i-th run.
func (A *Archive) AddObservable(name string, data [][]*nd.Array, sparseIdxs [][][]int) error {
	runs, err := A.RunIdxs()
	if err != nil {
		return err
	}
	if len(data) != len(runs) || (sparseIdxs != nil && len(sparseIdxs) != len(runs)) {
		return werr.New(werr.FrameCountMismatch, A.path, "westore.AddObservable", "data for %d runs, the archive has %d", len(data), len(runs))
	}
	for i, r := range runs {
		var si [][]int
		if sparseIdxs != nil {
			si = sparseIdxs[i]
		}
		if err := A.AddRunObservable(r, name, data[i], si); err != nil {
			return err
		}
	}
	return nil
}
