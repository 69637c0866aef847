/*
 * records.go, part of westore.
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

//Package records stores the per-run record groups: columnar event logs
//written once per cycle (continual) or any number of times per cycle
//(sporadic).
package records

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

//The five record groups of a run.
const (
	Resampling         = "resampling"
	Resampler          = "resampler"
	Warping            = "warping"
	BoundaryConditions = "boundary_conditions"
	Progress           = "progress"

	CycleIdxsKey = "_cycle_idxs"
	CycleIdx     = "cycle_idx"
)

//Groups lists the record groups in the order they are initialised.
var Groups = []string{Resampling, Resampler, Warping, BoundaryConditions, Progress}

//IsSporadic is true for every group but progress.
func IsSporadic(group string) bool {
	return group != Progress
}

//IsGroup reports whether name is one of the five record groups.
func IsGroup(name string) bool {
	return slices.Contains(Groups, name)
}

//FieldDecl declares one column of a record group. Variable length columns
//hold a flat list of any length per record and ignore Shape.
type FieldDecl struct {
	Name           string
	Shape          nd.Shape
	Dtype          nd.Dtype
	VariableLength bool
}

func (D FieldDecl) String() string {
	if D.VariableLength {
		return fmt.Sprintf("%s [...] %s", D.Name, D.Dtype)
	}
	return fmt.Sprintf("%s %v %s", D.Name, D.Shape, D.Dtype)
}

//Values is one record to be written: the flat, row-major values of every
//field of the group.
type Values map[string][]float64

//Record is one stored record. Values holds the flat values of each field
//in Fields, in the same order.
type Record struct {
	CycleIdx int
	Fields   []string
	Values   [][]float64
}

//Get returns the values of the field name.
func (R Record) Get(name string) ([]float64, bool) {
	i := slices.Index(R.Fields, name)
	if i < 0 {
		return nil, false
	}
	return R.Values[i], true
}

//Scalar returns the first value of the field name.
func (R Record) Scalar(name string) (float64, bool) {
	v, ok := R.Get(name)
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

func (R Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record(%s=%d", CycleIdx, R.CycleIdx)
	for i, f := range R.Fields {
		fmt.Fprintf(&b, ", %s=%v", f, R.Values[i])
	}
	b.WriteString(")")
	return b.String()
}

//Store reads and writes record groups of one container.
type Store struct {
	f *container.File
}

//New returns a record store over f.
func New(f *container.File) *Store {
	return &Store{f: f}
}

//Init creates the group under the run group runBase with one column per
//declaration, plus the cycle index column for sporadic groups.
func (S *Store) Init(runBase, group string, decls []FieldDecl) error {
	const caller = "records.Init"
	if !IsGroup(group) {
		return werr.New(werr.FieldNotFound, S.f.Path(), caller, "%s is not a record group", group)
	}
	gp := container.Join(runBase, group)
	if ok, err := S.f.Exists(gp); err != nil || ok {
		if err == nil {
			err = werr.New(werr.SchemaConflict, S.f.Path(), caller, "record group %s already exists", gp)
		}
		return werr.Decorate(err, caller)
	}
	if err := S.f.CreateGroup(gp); err != nil {
		return werr.Decorate(err, caller)
	}
	if IsSporadic(group) {
		if err := S.f.CreateDataset(container.Join(gp, CycleIdxsKey), nd.Int64, nd.Shape{}, false); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	for _, d := range decls {
		if d.Name == "" || d.Name == CycleIdxsKey {
			return werr.New(werr.SchemaConflict, S.f.Path(), caller, "invalid record field name %q", d.Name)
		}
		if err := S.f.CreateDataset(container.Join(gp, d.Name), d.Dtype, d.Shape, d.VariableLength); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	return nil
}

//Decls returns the declarations of the columns of an existing group.
func (S *Store) Decls(runBase, group string) ([]FieldDecl, error) {
	gp := container.Join(runBase, group)
	names, err := S.f.Children(gp)
	if err != nil {
		return nil, werr.Decorate(err, "records.Decls")
	}
	var decls []FieldDecl
	for _, n := range names {
		if n == CycleIdxsKey {
			continue
		}
		info, err := S.f.Info(container.Join(gp, n))
		if err != nil {
			return nil, werr.Decorate(err, "records.Decls")
		}
		decls = append(decls, FieldDecl{Name: n, Shape: info.FeatureShape, Dtype: info.Dtype, VariableLength: info.VarLen})
	}
	return decls, nil
}

//NRecords is the number of stored records of the group.
func (S *Store) NRecords(runBase, group string) (int, error) {
	gp := container.Join(runBase, group)
	if IsSporadic(group) {
		info, err := S.f.Info(container.Join(gp, CycleIdxsKey))
		return info.NRows, werr.Decorate(err, "records.NRecords")
	}
	decls, err := S.Decls(runBase, group)
	if err != nil || len(decls) == 0 {
		return 0, err
	}
	info, err := S.f.Info(container.Join(gp, decls[0].Name))
	return info.NRows, werr.Decorate(err, "records.NRecords")
}

//Extend appends the records produced during cycle. Continual groups take
//exactly one record per cycle, in cycle order. Every record has to carry
//every column of the group. The records are checked before anything is
//written.
func (S *Store) Extend(runBase, group string, cycle int, recs []Values) error {
	const caller = "records.Extend"
	decls, err := S.Decls(runBase, group)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	gp := container.Join(runBase, group)
	if !IsSporadic(group) {
		if len(recs) != 1 {
			return werr.New(werr.FrameCountMismatch, S.f.Path(), caller, "continual group %s takes one record per cycle, got %d", group, len(recs))
		}
		n, err := S.NRecords(runBase, group)
		if err != nil {
			return werr.Decorate(err, caller)
		}
		if len(decls) > 0 && cycle != n {
			return werr.New(werr.FrameCountMismatch, S.f.Path(), caller, "continual group %s is at cycle %d, got a record for cycle %d", group, n, cycle)
		}
	}
	if len(recs) == 0 {
		return nil
	}
	for i, r := range recs {
		for name := range r {
			if !slices.ContainsFunc(decls, func(d FieldDecl) bool { return d.Name == name }) {
				return werr.New(werr.FieldNotFound, S.f.Path(), caller, "record %d has the field %s, not in group %s", i, name, gp)
			}
		}
		for _, d := range decls {
			v, ok := r[d.Name]
			if !ok {
				return werr.New(werr.FieldNotFound, S.f.Path(), caller, "record %d lacks the field %s of group %s", i, d.Name, gp)
			}
			if !d.VariableLength && len(v) != d.Shape.Size() {
				return werr.New(werr.ShapeMismatch, S.f.Path(), caller, "field %s of group %s takes %d values, record %d has %d", d.Name, gp, d.Shape.Size(), i, len(v))
			}
		}
	}
	if IsSporadic(group) {
		idxs := make([]float64, len(recs))
		for i := range idxs {
			idxs[i] = float64(cycle)
		}
		if err := S.f.Append(container.Join(gp, CycleIdxsKey), nd.Scalars(nd.Int64, idxs...)); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	for _, d := range decls {
		rows := make([][]float64, len(recs))
		for i, r := range recs {
			rows[i] = r[d.Name]
		}
		p := container.Join(gp, d.Name)
		if d.VariableLength {
			err = S.f.AppendRagged(p, rows)
		} else {
			var a *nd.Array
			a, err = nd.FromRows(d.Dtype, d.Shape, rows...)
			if err == nil {
				err = S.f.Append(p, a)
			}
		}
		if err != nil {
			return werr.Decorate(err, caller)
		}
	}
	return nil
}

//Read returns the records of the group with the fields named in manifest,
//in storage order. An empty manifest reads as no records.
func (S *Store) Read(runBase, group string, manifest []string) ([]Record, error) {
	const caller = "records.Read"
	if len(manifest) == 0 {
		return []Record{}, nil
	}
	gp := container.Join(runBase, group)
	cols := make([][][]float64, len(manifest))
	n := -1
	for i, name := range manifest {
		p := container.Join(gp, name)
		info, err := S.f.Info(p)
		if err != nil {
			return nil, werr.Decorate(err, caller)
		}
		if info.VarLen {
			r, err := S.f.ReadRagged(p, 0, -1)
			if err != nil {
				return nil, werr.Decorate(err, caller)
			}
			cols[i] = r.Rows
		} else {
			a, err := S.f.ReadAll(p)
			if err != nil {
				return nil, werr.Decorate(err, caller)
			}
			col := make([][]float64, a.Len())
			for j := range col {
				col[j] = a.Row(j)
			}
			cols[i] = col
		}
		if n >= 0 && len(cols[i]) != n {
			return nil, werr.New(werr.FrameCountMismatch, S.f.Path(), caller, "group %s column %s has %d rows, expected %d", gp, name, len(cols[i]), n)
		}
		n = len(cols[i])
	}
	cycles := make([]int, n)
	if IsSporadic(group) {
		a, err := S.f.ReadAll(container.Join(gp, CycleIdxsKey))
		if err != nil {
			return nil, werr.Decorate(err, caller)
		}
		if a.Len() != n {
			return nil, werr.New(werr.FrameCountMismatch, S.f.Path(), caller, "group %s has %d cycle indices for %d records", gp, a.Len(), n)
		}
		for i, v := range a.Data() {
			cycles[i] = int(v)
		}
	} else {
		for i := range cycles {
			cycles[i] = i
		}
	}
	out := make([]Record, n)
	fields := slices.Clone(manifest)
	for i := range out {
		vals := make([][]float64, len(manifest))
		for j := range manifest {
			vals[j] = cols[j][i]
		}
		out[i] = Record{CycleIdx: cycles[i], Fields: fields, Values: vals}
	}
	return out, nil
}

//Concat joins the records of consecutive runs into one timeline. The
//cycle indices of each run are shifted by offsets[i], the number of cycles
//of the runs before it.
func Concat(runs [][]Record, offsets []int) ([]Record, error) {
	if len(runs) != len(offsets) {
		return nil, errors.New("records.Concat: one offset per run needed")
	}
	var out []Record
	for i, recs := range runs {
		for _, r := range recs {
			r.CycleIdx += offsets[i]
			out = append(out, r)
		}
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}
