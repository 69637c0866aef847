/*
 * settings.go, part of westore.
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
	"strings"

	"github.com/rmera/westore/field"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/schema"
	"github.com/rmera/westore/topology"
)

//SparseFields returns the fields flagged sparse.
func (A *Archive) SparseFields() ([]string, error) {
	if err := A.check("westore.SparseFields"); err != nil {
		return nil, err
	}
	return A.sch.SparseFields()
}

//DeclareSparseField flags path as sparse for the trajectories created
//afterwards. Flagging it again only logs a warning.
func (A *Archive) DeclareSparseField(path string) error {
	if err := A.writable("westore.DeclareSparseField"); err != nil {
		return err
	}
	return A.sch.DeclareSparseField(path)
}

//FieldSpec returns the declaration of the field path.
func (A *Archive) FieldSpec(path string) (schema.FieldSpec, bool, error) {
	if err := A.check("westore.FieldSpec"); err != nil {
		return schema.FieldSpec{}, false, err
	}
	return A.sch.FieldSpec(path)
}

//FieldSpecs returns every field declaration.
func (A *Archive) FieldSpecs() (map[string]schema.FieldSpec, error) {
	if err := A.check("westore.FieldSpecs"); err != nil {
		return nil, err
	}
	return A.sch.FieldSpecs()
}

//DeclareField declares the shape and dtype of a field. Only undeclared
//and deferred fields can be declared.
func (A *Archive) DeclareField(path string, spec schema.FieldSpec) error {
	if err := A.writable("westore.DeclareField"); err != nil {
		return err
	}
	return A.sch.DeclareField(path, spec)
}

//RecordManifest returns the fields records of group are read with.
func (A *Archive) RecordManifest(group string) ([]string, error) {
	if err := A.check("westore.RecordManifest"); err != nil {
		return nil, err
	}
	return A.sch.RecordManifest(group)
}

//RecordManifests returns every record manifest.
func (A *Archive) RecordManifests() (map[string][]string, error) {
	if err := A.check("westore.RecordManifests"); err != nil {
		return nil, err
	}
	return A.sch.RecordManifests()
}

//Units returns the unit of every field that has one.
func (A *Archive) Units() (map[string]string, error) {
	if err := A.check("westore.Units"); err != nil {
		return nil, err
	}
	return A.sch.Units()
}

//SetUnit sets the unit of a field.
func (A *Archive) SetUnit(path, unit string) error {
	if err := A.writable("westore.SetUnit"); err != nil {
		return err
	}
	return A.sch.SetUnit(path, unit)
}

//Continuations returns the (continuation, base) run pairs.
func (A *Archive) Continuations() ([][2]int, error) {
	if err := A.check("westore.Continuations"); err != nil {
		return nil, err
	}
	return A.sch.Continuations()
}

//NAtoms is the number of atoms of the positions field.
func (A *Archive) NAtoms() (int, error) {
	if err := A.check("westore.NAtoms"); err != nil {
		return 0, err
	}
	return A.sch.NAtoms()
}

//NDims is the number of spatial dimensions.
func (A *Archive) NDims() (int, error) {
	if err := A.check("westore.NDims"); err != nil {
		return 0, err
	}
	return A.sch.NDims()
}

//MainRepIdxs returns the topology atoms of the positions field.
func (A *Archive) MainRepIdxs() ([]int, error) {
	if err := A.check("westore.MainRepIdxs"); err != nil {
		return nil, err
	}
	return A.sch.MainRepIdxs()
}

//AltRepsIdxs returns the topology atoms of each alternate representation.
func (A *Archive) AltRepsIdxs() (map[string][]int, error) {
	if err := A.check("westore.AltRepsIdxs"); err != nil {
		return nil, err
	}
	return A.sch.AltRepsIdxs()
}

//Topology returns the topology of the whole system.
func (A *Archive) Topology() (string, error) {
	if err := A.check("westore.Topology"); err != nil {
		return "", err
	}
	return A.sch.Topology()
}

//TopologyFor returns the topology of a representation: the subset stored
//in positions for "positions", that of an alternate representation for
//its name (with or without the alt_reps/ prefix), and the whole topology
//for "".
func (A *Archive) TopologyFor(rep string) (string, error) {
	const caller = "westore.TopologyFor"
	top, err := A.Topology()
	if err != nil || rep == "" {
		return top, err
	}
	var idxs []int
	if rep == field.Positions {
		idxs, err = A.sch.MainRepIdxs()
	} else {
		var alt map[string][]int
		alt, err = A.sch.AltRepsIdxs()
		var ok bool
		idxs, ok = alt[strings.TrimPrefix(rep, field.AltReps+"/")]
		if err == nil && !ok {
			return "", werr.New(werr.FieldNotFound, A.path, caller, "no representation %s", rep)
		}
	}
	if err != nil {
		return "", werr.Decorate(err, caller)
	}
	sub, err := topology.Subset(top, idxs)
	return sub, werr.Decorate(err, caller)
}
