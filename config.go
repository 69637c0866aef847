/*
 * config.go, part of westore.
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
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/field"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/schema"
	"github.com/rmera/westore/topology"
)

//DefaultNDims is the number of spatial dimensions when the config does not
//give one.
const DefaultNDims = 3

//Config holds what an archive is created with. It is ignored when an
//existing archive is opened.
//
//A field is declared with both a shape in FeatureShapes and a dtype in
//FeatureDtypes. The dtype "undeclared" defers the declaration to the first
//write of the field. Sparse fields with no declaration are deferred.
type Config struct {
	Topology      string            `yaml:"topology,omitempty"`
	TopologyFile  string            `yaml:"topology_file,omitempty"`
	Units         map[string]string `yaml:"units,omitempty"`
	SparseFields  []string          `yaml:"sparse_fields,omitempty"`
	FeatureShapes map[string][]int  `yaml:"feature_shapes,omitempty"`
	FeatureDtypes map[string]string `yaml:"feature_dtypes,omitempty"`
	NDims         int               `yaml:"n_dims,omitempty"`
	MainRepIdxs   []int             `yaml:"main_rep_idxs,omitempty"`
	AltReps       map[string][]int  `yaml:"alt_reps,omitempty"`
	Codec         string            `yaml:"codec,omitempty"`
}

//ParseConfig decodes a YAML config.
func ParseConfig(data []byte) (*Config, error) {
	c := new(Config)
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return c, nil
}

//LoadConfig reads a YAML config file. A relative topology_file is taken
//relative to the directory of the config file, and read in.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.TopologyFile != "" && c.Topology == "" {
		tp := c.TopologyFile
		if !filepath.IsAbs(tp) {
			tp = filepath.Join(filepath.Dir(path), tp)
		}
		b, err := os.ReadFile(tp)
		if err != nil {
			return nil, fmt.Errorf("cannot read topology %s: %w", tp, err)
		}
		c.Topology = string(b)
	}
	return c, nil
}

//Marshal encodes the config as YAML.
func (C *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(C)
}

func defaultSpecs(nAtoms, nDims int) map[string]schema.FieldSpec {
	scalar := nd.Shape{1}
	poslike := nd.Shape{nAtoms, nDims}
	return map[string]schema.FieldSpec{
		field.Positions:       schema.Declared(poslike, nd.Float64),
		field.Velocities:      schema.Declared(poslike, nd.Float64),
		field.Forces:          schema.Declared(poslike, nd.Float64),
		field.Time:            schema.Declared(scalar, nd.Float64),
		field.BoxVectors:      schema.Declared(nd.Shape{nDims, nDims}, nd.Float64),
		field.BoxVolume:       schema.Declared(scalar, nd.Float64),
		field.KineticEnergy:   schema.Declared(scalar, nd.Float64),
		field.PotentialEnergy: schema.Declared(scalar, nd.Float64),
	}
}

//specs returns the declarations given in the config.
func (C *Config) specs() (map[string]schema.FieldSpec, error) {
	const caller = "westore.Config"
	out := make(map[string]schema.FieldSpec)
	for p, sh := range C.FeatureShapes {
		dt, ok := C.FeatureDtypes[p]
		if !ok {
			return nil, werr.New(werr.SchemaConflict, "", caller, "field %s has a shape but no dtype", p)
		}
		if dt == schema.Undeclared {
			out[p] = schema.Deferred()
			continue
		}
		dtype, err := nd.ParseDtype(dt)
		if err != nil {
			return nil, werr.New(werr.SchemaConflict, "", caller, "field %s: %v", p, err)
		}
		if sh == nil {
			return nil, werr.New(werr.SchemaConflict, "", caller, "field %s has a dtype but no shape", p)
		}
		out[p] = schema.Declared(sh, dtype)
	}
	for p, dt := range C.FeatureDtypes {
		if _, ok := C.FeatureShapes[p]; !ok {
			if dt == schema.Undeclared {
				out[p] = schema.Deferred()
				continue
			}
			return nil, werr.New(werr.SchemaConflict, "", caller, "field %s has a dtype but no shape", p)
		}
	}
	return out, nil
}

//settings turns the config into the settings of a new archive.
func (C *Config) settings() (schema.Settings, error) {
	const caller = "westore.Config"
	var set schema.Settings
	if C == nil || C.Topology == "" {
		return set, werr.New(werr.ModeViolation, "", caller, "a topology is needed to create an archive")
	}
	top, err := topology.Parse(C.Topology)
	if err != nil {
		return set, werr.Decorate(err, caller)
	}
	set.Topology = C.Topology
	set.NDims = C.NDims
	if set.NDims <= 0 {
		set.NDims = DefaultNDims
	}
	if C.MainRepIdxs != nil {
		set.MainRepIdxs = slices.Clone(C.MainRepIdxs)
	} else {
		set.MainRepIdxs = make([]int, top.NAtoms())
		for i := range set.MainRepIdxs {
			set.MainRepIdxs[i] = i
		}
	}
	set.NAtoms = len(set.MainRepIdxs)
	for _, i := range set.MainRepIdxs {
		if i < 0 || i >= top.NAtoms() {
			return set, werr.New(werr.ShapeMismatch, "", caller, "main representation atom %d is not in the %d atoms of the topology", i, top.NAtoms())
		}
	}
	set.SparseFields = slices.Clone(C.SparseFields)
	set.AltReps = make(map[string][]int, len(C.AltReps))
	names := make([]string, 0, len(C.AltReps))
	for name := range C.AltReps {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		set.AltReps[name] = slices.Clone(C.AltReps[name])
		p := container.Join(field.AltReps, name)
		if !slices.Contains(set.SparseFields, p) {
			set.SparseFields = append(set.SparseFields, p)
		}
	}
	set.Specs = defaultSpecs(set.NAtoms, set.NDims)
	given, err := C.specs()
	if err != nil {
		return set, err
	}
	for p, s := range given {
		set.Specs[p] = s
	}
	for _, p := range set.SparseFields {
		if _, ok := set.Specs[p]; !ok {
			set.Specs[p] = schema.Deferred()
		}
	}
	set.Units = C.Units
	return set, nil
}
