/*
 * table.go, part of westore.
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

package records

import (
	"slices"

	"github.com/rmera/westore/internal/werr"
)

//Column is one column of a record table. Single-valued fields give
//Scalars, wider or variable length fields give Tuples.
type Column struct {
	Name    string
	Tuple   bool
	Scalars []float64
	Tuples  [][]float64
}

//Value returns row i of the column, as a one-element slice for scalar
//columns.
func (C *Column) Value(i int) []float64 {
	if C.Tuple {
		return C.Tuples[i]
	}
	return C.Scalars[i : i+1]
}

//Table is the column-oriented view of a list of records.
type Table struct {
	CycleIdxs []int
	Columns   []Column
}

//Len is the number of rows.
func (T *Table) Len() int { return len(T.CycleIdxs) }

//Column returns the column called name.
func (T *Table) Column(name string) (*Column, bool) {
	i := slices.IndexFunc(T.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return nil, false
	}
	return &T.Columns[i], true
}

//ToTable converts records into a table. decls gives the shape of every
//field in the records. Fields with a 1-element feature collapse to scalars,
//wider rank-1 and variable length fields become tuples, and fields of
//higher rank can't be converted.
func ToTable(recs []Record, decls []FieldDecl) (*Table, error) {
	t := &Table{CycleIdxs: make([]int, len(recs))}
	for i, r := range recs {
		t.CycleIdxs[i] = r.CycleIdx
	}
	if len(recs) == 0 {
		return t, nil
	}
	for j, name := range recs[0].Fields {
		k := slices.IndexFunc(decls, func(d FieldDecl) bool { return d.Name == name })
		if k < 0 {
			return nil, werr.New(werr.FieldNotFound, "", "records.ToTable", "no declaration for field %s", name)
		}
		d := decls[k]
		col := Column{Name: name}
		switch {
		case d.VariableLength:
			col.Tuple = true
		case len(d.Shape) > 1:
			return nil, werr.New(werr.TooManyDimensions, "", "records.ToTable", "field %s has feature shape %v, only rank 1 can go in a table", name, d.Shape)
		case len(d.Shape) == 1 && d.Shape[0] > 1:
			col.Tuple = true
		}
		for _, r := range recs {
			v := r.Values[j]
			if col.Tuple {
				col.Tuples = append(col.Tuples, v)
			} else if len(v) > 0 {
				col.Scalars = append(col.Scalars, v[0])
			} else {
				col.Scalars = append(col.Scalars, 0)
			}
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}
