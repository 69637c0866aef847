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

//Package schema keeps the archive-wide settings: atom and dimension counts,
//sparse field flags, field shape and dtype declarations, units, record
//manifests and the run continuation list.
package schema

import (
	"encoding/json"
	"errors"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

//Node names under the settings group.
const (
	SettingsGroup  = "_settings"
	UnitsGroup     = "units"
	TopologyNode   = "topology"
	SparseFields   = "sparse_fields"
	NDimsKey       = "n_dims"
	NAtomsKey      = "n_atoms"
	MainRepIdxsKey = "main_rep_idxs"
	AltRepsIdxs    = "alt_reps_idxs"
	FeatureShapes  = "field_feature_shapes"
	FeatureDtypes  = "field_feature_dtypes"
	RecordFields   = "record_fields"
	Continuations  = "continuations"
)

//Settings is what an archive is created with.
type Settings struct {
	Topology     string
	NAtoms       int
	NDims        int
	MainRepIdxs  []int
	AltReps      map[string][]int
	SparseFields []string
	Specs        map[string]FieldSpec
	Units        map[string]string
}

//Store reads and writes the settings of one container.
type Store struct {
	f   *container.File
	log *zap.Logger
}

//New returns a Store over f. A nil logger means zap.L().
func New(f *container.File, log *zap.Logger) *Store {
	if log == nil {
		log = zap.L()
	}
	return &Store{f: f, log: log}
}

func sp(elem ...string) string {
	return container.Join(append([]string{SettingsGroup}, elem...)...)
}

//Create writes a fresh settings group, the units and the topology.
func (S *Store) Create(set Settings) error {
	f := S.f
	if err := f.CreateGroup(SettingsGroup); err != nil {
		return werr.Decorate(err, "schema.Create")
	}
	if err := f.SetValue(TopologyNode, set.Topology); err != nil {
		return werr.Decorate(err, "schema.Create")
	}
	sparse := set.SparseFields
	if sparse == nil {
		sparse = []string{}
	}
	main := set.MainRepIdxs
	if main == nil {
		main = []int{}
	}
	vals := map[string]any{
		sp(SparseFields):   sparse,
		sp(NDimsKey):       set.NDims,
		sp(NAtomsKey):      set.NAtoms,
		sp(MainRepIdxsKey): main,
	}
	for name, idxs := range set.AltReps {
		vals[sp(AltRepsIdxs, name)] = idxs
	}
	for p, spec := range set.Specs {
		vals[sp(FeatureShapes, p)] = encodeShape(spec)
		vals[sp(FeatureDtypes, p)] = encodeDtype(spec)
	}
	for p, u := range set.Units {
		vals[container.Join(UnitsGroup, p)] = u
	}
	for p, v := range vals {
		if err := f.SetValue(p, v); err != nil {
			return werr.Decorate(err, "schema.Create")
		}
	}
	for _, g := range []string{sp(AltRepsIdxs), sp(FeatureShapes), sp(FeatureDtypes), sp(RecordFields), UnitsGroup} {
		if err := f.CreateGroup(g); err != nil {
			return werr.Decorate(err, "schema.Create")
		}
	}
	if err := f.CreateDataset(sp(Continuations), nd.Int64, nd.Shape{2}, false); err != nil {
		return werr.Decorate(err, "schema.Create")
	}
	return nil
}

//Topology returns the stored topology text.
func (S *Store) Topology() (string, error) {
	var t string
	return t, werr.Decorate(S.f.Value(TopologyNode, &t), "schema.Topology")
}

//SparseFields returns the paths of the fields flagged sparse.
func (S *Store) SparseFields() ([]string, error) {
	var fields []string
	if err := S.f.Value(sp(SparseFields), &fields); err != nil {
		return nil, werr.Decorate(err, "schema.SparseFields")
	}
	return fields, nil
}

//IsSparse reports whether the field path is flagged sparse.
func (S *Store) IsSparse(path string) (bool, error) {
	fields, err := S.SparseFields()
	if err != nil {
		return false, err
	}
	return slices.Contains(fields, path), nil
}

//DeclareSparseField flags path as sparse. Flagging a sparse field again
//only logs a warning.
func (S *Store) DeclareSparseField(path string) error {
	fields, err := S.SparseFields()
	if err != nil {
		return err
	}
	if slices.Contains(fields, path) {
		S.log.Warn("sparse field already declared", zap.String("field", path))
		return nil
	}
	return werr.Decorate(S.f.SetValue(sp(SparseFields), append(fields, path)), "schema.DeclareSparseField")
}

//FieldSpec returns the declaration of path. ok is false if the field was
//never declared, deferred or not.
func (S *Store) FieldSpec(path string) (spec FieldSpec, ok bool, err error) {
	shape, err := S.f.RawValue(sp(FeatureShapes, path))
	if errors.Is(err, werr.FieldNotFound) {
		return FieldSpec{}, false, nil
	}
	if err != nil {
		return FieldSpec{}, false, werr.Decorate(err, "schema.FieldSpec")
	}
	dtype, err := S.f.RawValue(sp(FeatureDtypes, path))
	if errors.Is(err, werr.FieldNotFound) {
		dtype = json.RawMessage(`"` + Undeclared + `"`)
	} else if err != nil {
		return FieldSpec{}, false, werr.Decorate(err, "schema.FieldSpec")
	}
	spec, err = decodeSpec(shape, dtype)
	if err != nil {
		return FieldSpec{}, false, werr.Decorate(err, "schema.FieldSpec")
	}
	return spec, true, nil
}

//DeclareField stores the spec of path. A field that already has a fixed
//declaration can't be declared again, not even with the same values. A
//deferred declaration can be fixed once.
func (S *Store) DeclareField(path string, spec FieldSpec) error {
	old, ok, err := S.FieldSpec(path)
	if err != nil {
		return err
	}
	if ok && !old.Deferred {
		return werr.New(werr.SchemaConflict, S.f.Path(), "schema.DeclareField", "field %s is already declared as %v", path, old)
	}
	if ok && spec.Deferred {
		return nil
	}
	if !spec.Deferred && !spec.Dtype.Valid() {
		return werr.New(werr.SchemaConflict, S.f.Path(), "schema.DeclareField", "invalid dtype %q for field %s", spec.Dtype, path)
	}
	if err := S.f.SetValue(sp(FeatureShapes, path), encodeShape(spec)); err != nil {
		return werr.Decorate(err, "schema.DeclareField")
	}
	return werr.Decorate(S.f.SetValue(sp(FeatureDtypes, path), encodeDtype(spec)), "schema.DeclareField")
}

//leafPaths lists the value nodes under root as paths relative to it.
func (S *Store) leafPaths(root, rel string, out []string) ([]string, error) {
	p := container.Join(root, rel)
	info, err := S.f.Info(p)
	if err != nil {
		return nil, err
	}
	if info.Kind != container.KindGroup {
		return append(out, rel), nil
	}
	names, err := S.f.Children(p)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		out, err = S.leafPaths(root, container.Join(rel, n), out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

//FieldSpecs returns every field declaration, deferred ones included.
func (S *Store) FieldSpecs() (map[string]FieldSpec, error) {
	paths, err := S.leafPaths(sp(FeatureShapes), "", nil)
	if err != nil {
		return nil, werr.Decorate(err, "schema.FieldSpecs")
	}
	specs := make(map[string]FieldSpec, len(paths))
	for _, p := range paths {
		spec, _, err := S.FieldSpec(p)
		if err != nil {
			return nil, err
		}
		specs[p] = spec
	}
	return specs, nil
}

//DeclareRecordManifest stores the ordered field names of a record group.
//Declaring the same manifest again is a no-op, a different one is a
//SchemaConflict.
func (S *Store) DeclareRecordManifest(group string, fields []string) error {
	old, err := S.RecordManifest(group)
	if err != nil {
		return err
	}
	if old != nil {
		if slices.Equal(old, fields) {
			return nil
		}
		return werr.New(werr.SchemaConflict, S.f.Path(), "schema.DeclareRecordManifest", "group %s already has the fields %v", group, old)
	}
	if fields == nil {
		fields = []string{}
	}
	return werr.Decorate(S.f.SetValue(sp(RecordFields, group), fields), "schema.DeclareRecordManifest")
}

//RecordManifest returns the manifest of group, nil if none was declared.
func (S *Store) RecordManifest(group string) ([]string, error) {
	var fields []string
	err := S.f.Value(sp(RecordFields, group), &fields)
	if errors.Is(err, werr.FieldNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, werr.Decorate(err, "schema.RecordManifest")
	}
	if fields == nil {
		fields = []string{}
	}
	return fields, nil
}

//RecordManifests returns every declared manifest by group.
func (S *Store) RecordManifests() (map[string][]string, error) {
	names, err := S.f.Children(sp(RecordFields))
	if err != nil {
		return nil, werr.Decorate(err, "schema.RecordManifests")
	}
	out := make(map[string][]string)
	for _, g := range names {
		m, err := S.RecordManifest(g)
		if err != nil {
			return nil, err
		}
		out[g] = m
	}
	return out, nil
}

func (S *Store) intValue(key string) (int, error) {
	var n int
	return n, werr.Decorate(S.f.Value(sp(key), &n), "schema."+key)
}

//NAtoms is the number of atoms in the main representation.
func (S *Store) NAtoms() (int, error) { return S.intValue(NAtomsKey) }

//NDims is the number of spatial dimensions.
func (S *Store) NDims() (int, error) { return S.intValue(NDimsKey) }

//MainRepIdxs returns the topology atom indices of the main representation.
func (S *Store) MainRepIdxs() ([]int, error) {
	var idxs []int
	return idxs, werr.Decorate(S.f.Value(sp(MainRepIdxsKey), &idxs), "schema.MainRepIdxs")
}

//AltRepsIdxs returns the atom indices of every alternate representation.
func (S *Store) AltRepsIdxs() (map[string][]int, error) {
	names, err := S.f.Children(sp(AltRepsIdxs))
	if err != nil {
		return nil, werr.Decorate(err, "schema.AltRepsIdxs")
	}
	out := make(map[string][]int, len(names))
	for _, n := range names {
		var idxs []int
		if err := S.f.Value(sp(AltRepsIdxs, n), &idxs); err != nil {
			return nil, werr.Decorate(err, "schema.AltRepsIdxs")
		}
		out[n] = idxs
	}
	return out, nil
}

//Units returns the unit of every field that has one.
func (S *Store) Units() (map[string]string, error) {
	paths, err := S.leafPaths(UnitsGroup, "", nil)
	if err != nil {
		return nil, werr.Decorate(err, "schema.Units")
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		var u string
		if err := S.f.Value(container.Join(UnitsGroup, p), &u); err != nil {
			return nil, werr.Decorate(err, "schema.Units")
		}
		out[p] = u
	}
	return out, nil
}

//SetUnit sets the unit of the field path.
func (S *Store) SetUnit(path, unit string) error {
	return werr.Decorate(S.f.SetValue(container.Join(UnitsGroup, path), unit), "schema.SetUnit")
}

//Continuations returns the (continuation, base) run pairs in the order
//they were added.
func (S *Store) Continuations() ([][2]int, error) {
	a, err := S.f.ReadAll(sp(Continuations))
	if err != nil {
		return nil, werr.Decorate(err, "schema.Continuations")
	}
	out := make([][2]int, a.Len())
	for i := range out {
		r := a.Row(i)
		out[i] = [2]int{int(r[0]), int(r[1])}
	}
	return out, nil
}

//AddContinuation appends the pair (continuation, base). Checking that it
//forms a valid graph is up to the caller.
func (S *Store) AddContinuation(continuation, base int) error {
	row := nd.Scalars(nd.Int64, float64(continuation), float64(base))
	row, _ = row.Reshape(1, 2)
	return werr.Decorate(S.f.Append(sp(Continuations), row), "schema.AddContinuation")
}

//CloneInto copies the topology, the units and the settings to dst, leaving
//dst with an empty continuation list.
func (S *Store) CloneInto(dst *container.File) error {
	for _, p := range []string{TopologyNode, UnitsGroup} {
		if err := dst.CopyTree(S.f, p, p); err != nil {
			return werr.Decorate(err, "schema.CloneInto")
		}
	}
	if err := dst.CreateGroup(SettingsGroup); err != nil {
		return werr.Decorate(err, "schema.CloneInto")
	}
	names, err := S.f.Children(SettingsGroup)
	if err != nil {
		return werr.Decorate(err, "schema.CloneInto")
	}
	sort.Strings(names)
	for _, n := range names {
		if n == Continuations {
			continue
		}
		if err := dst.CopyTree(S.f, sp(n), sp(n)); err != nil {
			return werr.Decorate(err, "schema.CloneInto")
		}
	}
	return werr.Decorate(dst.CreateDataset(sp(Continuations), nd.Int64, nd.Shape{2}, false), "schema.CloneInto")
}
