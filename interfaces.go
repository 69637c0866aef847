/*
 * interfaces.go, part of westore.
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
	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/records"
)

//Walker is one member of the ensemble: a state and a statistical weight.
type Walker interface {

	//Weight is the statistical weight of the walker.
	Weight() float64

	//State returns the state fields of the walker. Each array holds the
	//features of a single frame, i.e. positions is (n_atoms, n_dims).
	//nil arrays are ignored.
	State() map[string]*nd.Array
}

//SimpleWalker is the plain Walker implementation.
type SimpleWalker struct {
	W      float64
	Fields map[string]*nd.Array
}

func (S *SimpleWalker) Weight() float64 { return S.W }

func (S *SimpleWalker) State() map[string]*nd.Array { return S.Fields }

//Resampler is what an archive needs to know about a resampler to store
//its records.
type Resampler interface {

	//Decisions returns the decision enumeration, by name.
	Decisions() map[string]int

	//ResamplingFields declares the columns of the resampling records.
	ResamplingFields() []records.FieldDecl

	//ResamplerFields declares the columns of the resampler records.
	ResamplerFields() []records.FieldDecl
}

//BoundaryConditions is what an archive needs to know about the boundary
//conditions to store their records.
type BoundaryConditions interface {
	WarpingFields() []records.FieldDecl
	BCFields() []records.FieldDecl
	ProgressFields() []records.FieldDecl
}
