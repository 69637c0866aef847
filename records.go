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

package westore

import (
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/records"
)

func declNames(decls []records.FieldDecl) []string {
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.Name
	}
	return out
}

//InitRecordFields declares the fields the records of group are read
//with. Declaring the same fields again does nothing.
func (A *Archive) InitRecordFields(group string, names []string) error {
	if err := A.writable("westore.InitRecordFields"); err != nil {
		return err
	}
	if !records.IsGroup(group) {
		return werr.New(werr.FieldNotFound, A.path, "westore.InitRecordFields", "%s is not a record group", group)
	}
	return A.sch.DeclareRecordManifest(group, names)
}

//InitRecordFieldsFrom declares the record fields of every group from the
//collaborators. Either may be nil.
func (A *Archive) InitRecordFieldsFrom(r Resampler, bc BoundaryConditions) error {
	for group, decls := range collaboratorDecls(r, bc) {
		if err := A.ensureManifest(group, decls); err != nil {
			return err
		}
	}
	return nil
}

func collaboratorDecls(r Resampler, bc BoundaryConditions) map[string][]records.FieldDecl {
	out := make(map[string][]records.FieldDecl)
	if r != nil {
		out[records.Resampling] = r.ResamplingFields()
		out[records.Resampler] = r.ResamplerFields()
	}
	if bc != nil {
		out[records.Warping] = bc.WarpingFields()
		out[records.BoundaryConditions] = bc.BCFields()
		out[records.Progress] = bc.ProgressFields()
	}
	return out
}

//ensureManifest declares the manifest of group from decls, unless one is
//declared already.
func (A *Archive) ensureManifest(group string, decls []records.FieldDecl) error {
	m, err := A.RecordManifest(group)
	if err != nil || m != nil {
		return err
	}
	return A.InitRecordFields(group, declNames(decls))
}

//InitRunRecordGroup creates the record group of run with one column per
//declaration.
func (A *Archive) InitRunRecordGroup(run int, group string, decls []records.FieldDecl) error {
	const caller = "westore.InitRunRecordGroup"
	if err := A.writable(caller); err != nil {
		return err
	}
	if err := A.checkRun(run, caller); err != nil {
		return err
	}
	return A.rec.Init(runPath(run), group, decls)
}

func (A *Archive) initCollaboratorGroup(run int, group string, decls []records.FieldDecl) error {
	if err := A.ensureManifest(group, decls); err != nil {
		return err
	}
	return A.InitRunRecordGroup(run, group, decls)
}

//InitRunResampling stores the decision enumeration of the resampler in
//run and creates its resampling group.
func (A *Archive) InitRunResampling(run int, r Resampler) error {
	if err := A.InitRunDecision(run, r.Decisions()); err != nil {
		return err
	}
	return A.initCollaboratorGroup(run, records.Resampling, r.ResamplingFields())
}

//InitRunResampler creates the resampler group of run.
func (A *Archive) InitRunResampler(run int, r Resampler) error {
	return A.initCollaboratorGroup(run, records.Resampler, r.ResamplerFields())
}

//InitRunWarping creates the warping group of run.
func (A *Archive) InitRunWarping(run int, bc BoundaryConditions) error {
	return A.initCollaboratorGroup(run, records.Warping, bc.WarpingFields())
}

//InitRunBC creates the boundary conditions group of run.
func (A *Archive) InitRunBC(run int, bc BoundaryConditions) error {
	return A.initCollaboratorGroup(run, records.BoundaryConditions, bc.BCFields())
}

//InitRunProgress creates the progress group of run.
func (A *Archive) InitRunProgress(run int, bc BoundaryConditions) error {
	return A.initCollaboratorGroup(run, records.Progress, bc.ProgressFields())
}

//ExtendCycleRecords appends the records produced in cycle to a group of
//run.
func (A *Archive) ExtendCycleRecords(run int, group string, cycle int, recs []records.Values) error {
	const caller = "westore.ExtendCycleRecords"
	if err := A.writable(caller); err != nil {
		return err
	}
	if err := A.checkRun(run, caller); err != nil {
		return err
	}
	return A.rec.Extend(runPath(run), group, cycle, recs)
}

//RunRecords returns the records of a group of run, with the declared
//record fields the group of run holds.
func (A *Archive) RunRecords(run int, group string) ([]records.Record, error) {
	const caller = "westore.RunRecords"
	if err := A.checkRun(run, caller); err != nil {
		return nil, err
	}
	decls, err := A.groupDecls(run, group)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	return A.rec.Read(runPath(run), group, declNames(decls))
}

//ContigRecords returns the records of a group over the runs, with the
//cycles of each run shifted by the cycles of the runs before it. The runs
//are not checked to be a contig, see Contig.
func (A *Archive) ContigRecords(runs []int, group string) ([]records.Record, error) {
	per := make([][]records.Record, len(runs))
	offsets := make([]int, len(runs))
	total := 0
	for i, r := range runs {
		recs, err := A.RunRecords(r, group)
		if err != nil {
			return nil, err
		}
		per[i] = recs
		offsets[i] = total
		n, err := A.runCycles(r)
		if err != nil {
			return nil, err
		}
		total += n
	}
	return records.Concat(per, offsets)
}

func (A *Archive) groupDecls(run int, group string) ([]records.FieldDecl, error) {
	decls, err := A.rec.Decls(runPath(run), group)
	if err != nil {
		return nil, err
	}
	m, err := A.sch.RecordManifest(group)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]records.FieldDecl, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}
	out := make([]records.FieldDecl, 0, len(m))
	for _, n := range m {
		if d, ok := byName[n]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

//RunRecordsTable returns the records of a group of run as table columns.
func (A *Archive) RunRecordsTable(run int, group string) (*records.Table, error) {
	recs, err := A.RunRecords(run, group)
	if err != nil {
		return nil, err
	}
	decls, err := A.groupDecls(run, group)
	if err != nil {
		return nil, werr.Decorate(err, "westore.RunRecordsTable")
	}
	return records.ToTable(recs, decls)
}

//ContigRecordsTable is ContigRecords as table columns. The column types
//are those of the first run.
func (A *Archive) ContigRecordsTable(runs []int, group string) (*records.Table, error) {
	if len(runs) == 0 {
		return nil, werr.New(werr.InvalidContig, A.path, "westore.ContigRecordsTable", "no runs")
	}
	recs, err := A.ContigRecords(runs, group)
	if err != nil {
		return nil, err
	}
	decls, err := A.groupDecls(runs[0], group)
	if err != nil {
		return nil, werr.Decorate(err, "westore.ContigRecordsTable")
	}
	return records.ToTable(recs, decls)
}
