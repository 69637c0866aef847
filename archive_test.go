/*
 * archive_test.go, part of westore.
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
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/records"
	"github.com/rmera/westore/schema"
)

//a water and a sodium, 4 atoms.
const waterNa = `{"chains":[{"index":0,"residues":[{"index":0,"name":"HOH","resSeq":1,"segmentID":"","atoms":[{"index":0,"name":"O","element":"O"},{"index":1,"name":"H1","element":"H"},{"index":2,"name":"H2","element":"H"}]}]},{"index":1,"residues":[{"index":1,"name":"NA","resSeq":2,"segmentID":"","atoms":[{"index":3,"name":"NA","element":"Na"}]}]}],"bonds":[[0,1],[0,2]]}`

func testConfig() *Config {
	return &Config{
		Topology:     waterNa,
		SparseFields: []string{"velocities"},
		AltReps:      map[string][]int{"ion": {3}},
		Units:        map[string]string{"positions": "nm"},
	}
}

func newArchive(t *testing.T, name string) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), name), CreateExclusive, WithConfig(testConfig()))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

//positions returns n frames of (4, 3) coordinates counting up from start.
func positions(n int, start float64) *nd.Array {
	a := nd.New(nd.Float64, n, 4, 3)
	for i := range a.Data() {
		a.Data()[i] = start + float64(i)
	}
	return a
}

//addRun adds a run of ntrajs trajectories with ncycles frames each. The
//positions of trajectory t start at start+100*t.
func addRun(t *testing.T, a *Archive, ntrajs, ncycles int, start float64, opts ...RunOption) int {
	t.Helper()
	run, err := a.NewRun(nil, opts...)
	require.NoError(t, err)
	for i := 0; i < ntrajs; i++ {
		_, err := a.AddTraj(run, map[string]*nd.Array{"positions": positions(ncycles, start+100*float64(i))}, nil, nil, nil)
		require.NoError(t, err)
	}
	return run
}

func TestModes(Te *testing.T) {
	dir := Te.TempDir()
	p := filepath.Join(dir, "m.wst")
	_, err := Open(p, ReadWrite)
	assert.True(Te, errors.Is(err, ErrModeViolation))
	_, err = Open(filepath.Join(dir, "notop.wst"), CreateExclusive)
	assert.True(Te, errors.Is(err, ErrModeViolation), "creating needs a topology")

	a, err := Open(p, CreateExclusive, WithConfig(testConfig()))
	require.NoError(Te, err)
	id, err := a.ArchiveID()
	require.NoError(Te, err)
	assert.NotEmpty(Te, id)
	addRun(Te, a, 1, 2, 0)
	require.NoError(Te, a.Close())
	require.NoError(Te, a.Close())
	_, err = a.NumRuns()
	assert.True(Te, errors.Is(err, ErrClosed))

	_, err = Open(p, CreateExclusive, WithConfig(testConfig()))
	assert.True(Te, errors.Is(err, ErrModeViolation))

	require.NoError(Te, a.Reopen())
	assert.False(Te, a.Closed())
	n, err := a.NumRuns()
	require.NoError(Te, err)
	assert.Equal(Te, 1, n, "reopening must not truncate")
	require.NoError(Te, a.Close())

	r, err := Open(p, ReadOnly)
	require.NoError(Te, err)
	defer r.Close()
	_, err = r.NewRun(nil)
	assert.True(Te, errors.Is(err, ErrModeViolation))
	rid, err := r.ArchiveID()
	require.NoError(Te, err)
	assert.Equal(Te, id, rid)

	w, err := Open(p, Truncate, WithConfig(testConfig()))
	require.NoError(Te, err)
	defer w.Close()
	n, err = w.NumRuns()
	require.NoError(Te, err)
	assert.Equal(Te, 0, n)

	_, err = ParseMode("rw")
	assert.True(Te, errors.Is(err, ErrModeViolation))
	m, err := ParseMode("w-")
	require.NoError(Te, err)
	assert.Equal(Te, CreateExclusive, m)
}

func TestSettings(Te *testing.T) {
	a := newArchive(Te, "s.wst")
	n, err := a.NAtoms()
	require.NoError(Te, err)
	assert.Equal(Te, 4, n)
	d, err := a.NDims()
	require.NoError(Te, err)
	assert.Equal(Te, 3, d)
	sparse, err := a.SparseFields()
	require.NoError(Te, err)
	assert.Contains(Te, sparse, "velocities")
	assert.Contains(Te, sparse, "alt_reps/ion")
	units, err := a.Units()
	require.NoError(Te, err)
	assert.Equal(Te, "nm", units["positions"])
	box, ok, err := a.FieldSpec("box_vectors")
	require.NoError(Te, err)
	require.True(Te, ok)
	assert.Equal(Te, nd.Shape{3, 3}, box.Shape)
	top, err := a.TopologyFor("ion")
	require.NoError(Te, err)
	assert.Contains(Te, top, `"Na"`)
	_, err = a.TopologyFor("nope")
	assert.True(Te, errors.Is(err, ErrFieldNotFound))
	require.NoError(Te, a.AddMetadata("temperature", 300.0))
	require.NoError(Te, a.AddMetadata(ArchiveIDKey, "forged"))
	md, err := a.Metadata()
	require.NoError(Te, err)
	assert.Equal(Te, 300.0, md["temperature"])
	assert.NotEqual(Te, "forged", md[ArchiveIDKey])
}

func TestDenseRoundTripAndExtend(Te *testing.T) {
	a := newArchive(Te, "d.wst")
	run, err := a.NewRun(nil)
	require.NoError(Te, err)
	pos := positions(5, 0)
	box := nd.Full(nd.Float64, 2.5, 5, 3, 3)
	traj, err := a.AddTraj(run, map[string]*nd.Array{"positions": pos, "box_vectors": box}, nil, nil, map[string]any{"seed": 7})
	require.NoError(Te, err)
	assert.Equal(Te, 0, traj)

	got, err := a.TrajField(run, traj, "positions", nil, false)
	require.NoError(Te, err)
	assert.True(Te, got.Array.Equal(pos))
	w, err := a.TrajField(run, traj, "weights", nil, false)
	require.NoError(Te, err)
	assert.Equal(Te, []float64{1, 1, 1, 1, 1}, w.Data())

	require.NoError(Te, a.ExtendTraj(run, traj, map[string]*nd.Array{"positions": positions(3, 1000), "box_vectors": nd.Full(nd.Float64, 3, 3, 3, 3)}, nil))
	n, err := a.NumTrajFrames(run, traj)
	require.NoError(Te, err)
	assert.Equal(Te, 8, n)
	all, err := a.TrajField(run, traj, "positions", nil, false)
	require.NoError(Te, err)
	head, err := all.Slice(0, 5)
	require.NoError(Te, err)
	assert.True(Te, head.Equal(pos), "extending must not touch the stored rows")
	assert.Equal(Te, 1000.0, all.At(5, 0, 0))

	err = a.ExtendTraj(run, traj, map[string]*nd.Array{"positions": positions(2, 0), "box_vectors": nd.Full(nd.Float64, 3, 1, 3, 3)}, nil)
	assert.True(Te, errors.Is(err, ErrFrameCountMismatch))
	err = a.ExtendTraj(run, traj, map[string]*nd.Array{"positions": positions(1, 0), "charges": nd.New(nd.Float64, 1, 4)}, nil)
	assert.True(Te, errors.Is(err, ErrFieldNotFound))

	_, err = a.AddTraj(run, map[string]*nd.Array{"positions": nd.New(nd.Float64, 2, 3, 3)}, nil, nil, nil)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
	_, err = a.AddTraj(run, map[string]*nd.Array{"box_vectors": box}, nil, nil, nil)
	assert.True(Te, errors.Is(err, ErrFieldNotFound))

	attrs, err := a.f.Attrs(trajPath(run, traj))
	require.NoError(Te, err)
	assert.EqualValues(Te, 7, attrs["seed"])
}

func TestSparseMasked(Te *testing.T) {
	a := newArchive(Te, "sp.wst")
	run, err := a.NewRun(nil)
	require.NoError(Te, err)
	vel := nd.New(nd.Float64, 3, 4, 3)
	for i := range vel.Data() {
		vel.Data()[i] = float64(i)
	}
	traj, err := a.AddTraj(run, map[string]*nd.Array{"positions": positions(10, 0), "velocities": vel}, nil,
		map[string][]int{"velocities": {2, 5, 9}}, nil)
	require.NoError(Te, err)

	m, err := a.TrajField(run, traj, "velocities", nil, true)
	require.NoError(Te, err)
	require.Equal(Te, 10, m.Len())
	assert.Equal(Te, []int{2, 5, 9}, m.PresentIdxs())
	for j, i := range []int{2, 5, 9} {
		assert.Equal(Te, vel.Row(j), m.Row(i))
	}
	assert.True(Te, math.IsNaN(m.At(0, 0, 0)))
	idxs, err := a.TrajFieldCycleIdxs(run, traj, "velocities")
	require.NoError(Te, err)
	assert.Equal(Te, []int{2, 5, 9}, idxs)

	require.NoError(Te, a.ExtendTraj(run, traj, map[string]*nd.Array{"positions": positions(2, 0), "velocities": nd.New(nd.Float64, 2, 4, 3)}, nil))
	idxs, err = a.TrajFieldCycleIdxs(run, traj, "velocities")
	require.NoError(Te, err)
	assert.Equal(Te, []int{2, 5, 9, 10, 11}, idxs)

	//the alt rep was never given, it exists but is empty
	ion, err := a.TrajField(run, traj, "alt_reps/ion", nil, false)
	if err == nil {
		assert.Equal(Te, 0, ion.Len())
	} else {
		assert.True(Te, errors.Is(err, ErrFieldNotFound))
	}

	_, err = a.AddTraj(run, map[string]*nd.Array{"positions": positions(4, 0), "velocities": nd.New(nd.Float64, 2, 4, 3)}, nil,
		map[string][]int{"velocities": {3, 1}}, nil)
	assert.True(Te, errors.Is(err, ErrShapeMismatch))
}

func TestSchemaImmutability(Te *testing.T) {
	cfg := testConfig()
	cfg.FeatureDtypes = map[string]string{"observables/rmsd": schema.Undeclared}
	a, err := Open(filepath.Join(Te.TempDir(), "i.wst"), CreateExclusive, WithConfig(cfg))
	require.NoError(Te, err)
	defer a.Close()

	err = a.DeclareField("box_vectors", schema.Declared(nd.Shape{2, 2}, nd.Float64))
	assert.True(Te, errors.Is(err, ErrSchemaConflict))

	require.NoError(Te, a.DeclareField("observables/rmsd", schema.Declared(nd.Shape{1}, nd.Float64)))
	err = a.DeclareField("observables/rmsd", schema.Declared(nd.Shape{2}, nd.Float64))
	assert.True(Te, errors.Is(err, ErrSchemaConflict))

	err = a.InitRecordFields(records.Resampling, []string{"step_idx"})
	require.NoError(Te, err)
	err = a.InitRecordFields(records.Resampling, []string{"walker_idx"})
	assert.True(Te, errors.Is(err, ErrSchemaConflict))
}

func TestLoadConfig(Te *testing.T) {
	dir := Te.TempDir()
	require.NoError(Te, writeFile(filepath.Join(dir, "top.json"), waterNa))
	cfgText := "topology_file: top.json\nn_dims: 2\nsparse_fields: [velocities]\nfeature_shapes:\n  observables/x: [1]\nfeature_dtypes:\n  observables/x: float32\n"
	require.NoError(Te, writeFile(filepath.Join(dir, "cfg.yaml"), cfgText))
	cfg, err := LoadConfig(filepath.Join(dir, "cfg.yaml"))
	require.NoError(Te, err)
	assert.Equal(Te, waterNa, cfg.Topology)
	a, err := Open(filepath.Join(dir, "c.wst"), CreateExclusive, WithConfig(cfg))
	require.NoError(Te, err)
	defer a.Close()
	spec, ok, err := a.FieldSpec("observables/x")
	require.NoError(Te, err)
	require.True(Te, ok)
	assert.Equal(Te, nd.Float32, spec.Dtype)
	pos, ok, err := a.FieldSpec("positions")
	require.NoError(Te, err)
	require.True(Te, ok)
	assert.Equal(Te, nd.Shape{4, 2}, pos.Shape)

	bad := &Config{Topology: waterNa, FeatureDtypes: map[string]string{"x": "float64"}}
	_, err = Open(filepath.Join(dir, "b.wst"), CreateExclusive, WithConfig(bad))
	assert.True(Te, errors.Is(err, ErrSchemaConflict))

	var e *werr.Error
	assert.True(Te, errors.As(err, &e))
}

func writeFile(p, s string) error {
	return os.WriteFile(p, []byte(s), 0o644)
}
