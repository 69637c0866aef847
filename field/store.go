/*
 * store.go, part of westore.
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

//Package field stores the per-frame fields of trajectory slots. A dense
//field is one resizable dataset, a sparse field is a group holding the data
//rows and the cycle index of each row.
package field

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/schema"
)

//Well known field names.
const (
	Positions       = "positions"
	Weights         = "weights"
	BoxVectors      = "box_vectors"
	BoxVolume       = "box_volume"
	Velocities      = "velocities"
	Forces          = "forces"
	Time            = "time"
	KineticEnergy   = "kinetic_energy"
	PotentialEnergy = "potential_energy"
	Observables     = "observables"
	AltReps         = "alt_reps"

	DataKey       = "data"
	SparseIdxsKey = "_sparse_idxs"
)

//WeightSpec is the fixed spec of the weights field.
var WeightSpec = schema.Declared(nd.Shape{1}, nd.Float64)

//Store writes and reads fields under trajectory-like groups. Every method
//takes the base group of the slot, i.e. runs/0/trajectories/3, and the
//field path relative to it.
type Store struct {
	f   *container.File
	sch *schema.Store
	log *zap.Logger
}

//New returns a field store. A nil logger means zap.L().
func New(f *container.File, sch *schema.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.L()
	}
	return &Store{f: f, sch: sch, log: log}
}

func (S *Store) isSparse(path string) (bool, error) {
	if path == Weights || path == Positions {
		return false, nil
	}
	return S.sch.IsSparse(path)
}

//specFor returns the spec a write of a to path has to follow. Undeclared
//fields take the shape and dtype of the data, deferred ones are fixed here.
func (S *Store) specFor(path string, a *nd.Array, caller string) (schema.FieldSpec, error) {
	var spec schema.FieldSpec
	if path == Weights {
		spec = WeightSpec
	} else {
		var ok bool
		var err error
		spec, ok, err = S.sch.FieldSpec(path)
		if err != nil {
			return spec, werr.Decorate(err, caller)
		}
		if !ok {
			return schema.Declared(a.FeatureShape(), a.Dtype), nil
		}
		if spec.Deferred {
			spec = schema.Declared(a.FeatureShape(), a.Dtype)
			if err := S.sch.DeclareField(path, spec); err != nil {
				return spec, werr.Decorate(err, caller)
			}
			S.log.Debug("fixed deferred field", zap.String("field", path), zap.Stringer("shape", spec.Shape), zap.String("dtype", string(spec.Dtype)))
			return spec, nil
		}
	}
	if !a.FeatureShape().Equal(spec.Shape) {
		return spec, werr.New(werr.ShapeMismatch, S.f.Path(), caller, "field %s has feature shape %v, got %v", path, spec.Shape, a.FeatureShape())
	}
	return spec, nil
}

func checkIdxs(caller string, last int, idxs []int, n int) error {
	if len(idxs) != n {
		return werr.New(werr.FrameCountMismatch, "", caller, "%d sparse indices for %d rows", len(idxs), n)
	}
	for _, i := range idxs {
		if i <= last {
			return werr.New(werr.ShapeMismatch, "", caller, "sparse indices must be strictly increasing, %d follows %d", i, last)
		}
		last = i
	}
	return nil
}

func idxArray(idxs []int) *nd.Array {
	vals := make([]float64, len(idxs))
	for i, v := range idxs {
		vals[i] = float64(v)
	}
	return nd.Scalars(nd.Int64, vals...)
}

func (S *Store) create(full string, spec schema.FieldSpec, sparse bool) error {
	if !sparse {
		return S.f.CreateDataset(full, spec.Dtype, spec.Shape, false)
	}
	if err := S.f.CreateDataset(container.Join(full, DataKey), spec.Dtype, spec.Shape, false); err != nil {
		return err
	}
	return S.f.CreateDataset(container.Join(full, SparseIdxsKey), nd.Int64, nd.Shape{}, false)
}

//Init creates the empty field path under base, following its declaration.
//Deferred fields are skipped, they get created on first write.
func (S *Store) Init(base, path string) error {
	spec, ok, err := S.sch.FieldSpec(path)
	if path == Weights {
		spec, ok, err = WeightSpec, true, nil
	}
	if err != nil {
		return werr.Decorate(err, "field.Init")
	}
	if !ok {
		return werr.New(werr.FieldNotFound, S.f.Path(), "field.Init", "field %s is not declared", path)
	}
	if spec.Deferred {
		return nil
	}
	sparse, err := S.isSparse(path)
	if err != nil {
		return werr.Decorate(err, "field.Init")
	}
	return werr.Decorate(S.create(container.Join(base, path), spec, sparse), "field.Init")
}

//Exists reports whether path has been created under base.
func (S *Store) Exists(base, path string) (bool, error) {
	return S.f.Exists(container.Join(base, path))
}

//WriteInitial sets the whole initial content of a field. The field may
//have been initialised empty before, but must not hold data. For sparse
//fields with nil idxs every frame of a is taken as present.
func (S *Store) WriteInitial(base, path string, a *nd.Array, sparseIdxs []int) error {
	const caller = "field.WriteInitial"
	sparse, err := S.isSparse(path)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if sparseIdxs != nil {
		sparse = true
	}
	full := container.Join(base, path)
	exists, err := S.f.Exists(full)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if exists {
		n, err := S.storedRows(full)
		if err != nil {
			return werr.Decorate(err, caller)
		}
		if n > 0 {
			return werr.New(werr.SchemaConflict, S.f.Path(), caller, "field %s already holds %d rows", full, n)
		}
	}
	if sparse && sparseIdxs == nil {
		sparseIdxs = make([]int, a.Len())
		for i := range sparseIdxs {
			sparseIdxs[i] = i
		}
	}
	return S.write(full, path, a, sparse, sparseIdxs, !exists, caller)
}

//Extend appends the frames of a to the field. Sparse fields need the
//absolute cycle index of every new row. A field that does not exist yet
//is created.
func (S *Store) Extend(base, path string, a *nd.Array, sparseIdxs []int) error {
	const caller = "field.Extend"
	full := container.Join(base, path)
	exists, err := S.f.Exists(full)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	var sparse bool
	if exists {
		sparse, err = S.sparseAt(full)
	} else {
		sparse, err = S.isSparse(path)
	}
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if sparse && sparseIdxs == nil {
		return werr.New(werr.FrameCountMismatch, S.f.Path(), caller, "the sparse field %s needs sparse indices", path)
	}
	return S.write(full, path, a, sparse, sparseIdxs, !exists, caller)
}

func (S *Store) write(full, path string, a *nd.Array, sparse bool, idxs []int, create bool, caller string) error {
	spec, err := S.specFor(path, a, caller)
	if err != nil {
		return err
	}
	if create {
		if err := S.create(full, spec, sparse); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	if !sparse {
		return werr.Decorate(S.f.Append(full, a), caller)
	}
	last := -1
	old, err := S.f.Info(container.Join(full, SparseIdxsKey))
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if old.NRows > 0 {
		tail, err := S.f.ReadRows(container.Join(full, SparseIdxsKey), old.NRows-1, old.NRows)
		if err != nil {
			return werr.Decorate(err, caller)
		}
		last = int(tail.Data()[0])
	}
	if err := checkIdxs(caller, last, idxs, a.Len()); err != nil {
		return err
	}
	if err := S.f.Append(container.Join(full, DataKey), a); err != nil {
		return werr.Decorate(err, caller)
	}
	return werr.Decorate(S.f.Append(container.Join(full, SparseIdxsKey), idxArray(idxs)), caller)
}

//sparseAt tells a sparse layout from a dense one by looking at the nodes.
func (S *Store) sparseAt(full string) (bool, error) {
	info, err := S.f.Info(full)
	if err != nil {
		return false, err
	}
	if info.Kind == container.KindDataset {
		return false, nil
	}
	return S.f.Exists(container.Join(full, SparseIdxsKey))
}

func (S *Store) storedRows(full string) (int, error) {
	sparse, err := S.sparseAt(full)
	if err != nil {
		return 0, err
	}
	if sparse {
		full = container.Join(full, DataKey)
	}
	info, err := S.f.Info(full)
	return info.NRows, err
}

//NFrames is the number of frames of the slot, taken from positions, or
//from the weights if there are no positions.
func (S *Store) NFrames(base string) (int, error) {
	for _, p := range []string{Positions, Weights} {
		info, err := S.f.Info(container.Join(base, p))
		if errors.Is(err, werr.FieldNotFound) {
			continue
		}
		if err != nil {
			return 0, werr.Decorate(err, "field.NFrames")
		}
		return info.NRows, nil
	}
	return 0, werr.New(werr.FieldNotFound, S.f.Path(), "field.NFrames", "%s has neither positions nor weights", base)
}

//SparseIdxs returns the cycle index of every stored row of a sparse field,
//or 0..n-1 for a dense field.
func (S *Store) SparseIdxs(base, path string) ([]int, error) {
	full := container.Join(base, path)
	sparse, err := S.sparseAt(full)
	if err != nil {
		return nil, werr.Decorate(err, "field.SparseIdxs")
	}
	if !sparse {
		info, err := S.f.Info(full)
		if err != nil {
			return nil, werr.Decorate(err, "field.SparseIdxs")
		}
		idxs := make([]int, info.NRows)
		for i := range idxs {
			idxs[i] = i
		}
		return idxs, nil
	}
	a, err := S.f.ReadAll(container.Join(full, SparseIdxsKey))
	if err != nil {
		return nil, werr.Decorate(err, "field.SparseIdxs")
	}
	idxs := make([]int, a.Len())
	for i, v := range a.Data() {
		idxs[i] = int(v)
	}
	return idxs, nil
}

//Read returns the field at the given frames, all of them if frames is nil.
//Dense fields come back with every frame present. For sparse fields with
//masked set, the result has one row per requested frame and frames without
//a stored value are absent. Without masked, only the stored rows among
//the requested frames are returned, each once and in storage order.
func (S *Store) Read(base, path string, frames []int, masked bool) (*nd.Masked, error) {
	const caller = "field.Read"
	full := container.Join(base, path)
	sparse, err := S.sparseAt(full)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	if !sparse {
		var a *nd.Array
		if frames == nil {
			a, err = S.f.ReadAll(full)
		} else {
			a, err = S.f.ReadFrames(full, frames)
		}
		if err != nil {
			return nil, werr.Decorate(err, caller)
		}
		return nd.Dense(a), nil
	}
	idxs, err := S.SparseIdxs(base, path)
	if err != nil {
		return nil, err
	}
	data := container.Join(full, DataKey)
	if frames == nil && !masked {
		a, err := S.f.ReadAll(data)
		if err != nil {
			return nil, werr.Decorate(err, caller)
		}
		return nd.Dense(a), nil
	}
	if frames == nil {
		n, err := S.NFrames(base)
		if err != nil {
			return nil, err
		}
		if len(idxs) > 0 {
			n = max(n, idxs[len(idxs)-1]+1)
		}
		frames = make([]int, n)
		for i := range frames {
			frames[i] = i
		}
	}
	//row of the data for each stored cycle index
	rowOf := make(map[int]int, len(idxs))
	for row, c := range idxs {
		rowOf[c] = row
	}
	info, err := S.f.Info(data)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	if !masked {
		var rows []int
		for _, c := range frames {
			if r, ok := rowOf[c]; ok {
				rows = append(rows, r)
			}
		}
		slices.Sort(rows)
		rows = slices.Compact(rows)
		a, err := S.f.ReadFrames(data, rows)
		if err != nil {
			return nil, werr.Decorate(err, caller)
		}
		return nd.Dense(a), nil
	}
	out := nd.NewMasked(info.Dtype, len(frames), info.FeatureShape)
	rows := make([]int, 0, len(frames))
	targets := make([]int, 0, len(frames))
	for i, c := range frames {
		if r, ok := rowOf[c]; ok {
			rows = append(rows, r)
			targets = append(targets, i)
		}
	}
	if len(rows) == 0 {
		return out, nil
	}
	got, err := S.f.ReadFrames(data, rows)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	for j, i := range targets {
		if err := out.SetRow(i, got.Row(j)); err != nil {
			return nil, werr.Decorate(err, caller)
		}
	}
	return out, nil
}

//Fields lists the field paths stored under base. Compound groups such as
//observables are expanded into group/name paths.
func (S *Store) Fields(base string) ([]string, error) {
	return S.fields(base, "")
}

func (S *Store) fields(base, rel string) ([]string, error) {
	names, err := S.f.Children(container.Join(base, rel))
	if err != nil {
		return nil, werr.Decorate(err, "field.Fields")
	}
	var out []string
	for _, n := range names {
		p := container.Join(rel, n)
		full := container.Join(base, p)
		info, err := S.f.Info(full)
		if err != nil {
			return nil, werr.Decorate(err, "field.Fields")
		}
		if info.Kind == container.KindDataset {
			out = append(out, p)
			continue
		}
		sparse, err := S.sparseAt(full)
		if err != nil {
			return nil, werr.Decorate(err, "field.Fields")
		}
		if sparse {
			out = append(out, p)
			continue
		}
		sub, err := S.fields(base, p)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}
