/*
 * federation_test.go, part of westore.
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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/westore/nd"
)

func TestCloneLinkJoin(Te *testing.T) {
	dir := Te.TempDir()
	src, err := Open(filepath.Join(dir, "src.wst"), CreateExclusive, WithConfig(testConfig()))
	require.NoError(Te, err)
	r0 := addRun(Te, src, 2, 3, 0)
	addRun(Te, src, 2, 2, 1000, ContinueRun(r0))
	srcID, err := src.ArchiveID()
	require.NoError(Te, err)
	require.NoError(Te, src.Close())
	require.NoError(Te, src.Reopen())
	defer src.Close()

	_, err = src.Clone(filepath.Join(dir, "bad.wst"), ReadWrite)
	assert.True(Te, errors.Is(err, ErrModeViolation))
	dst, err := src.Clone(filepath.Join(dir, "dst.wst"), CreateExclusive)
	require.NoError(Te, err)
	defer dst.Close()
	assert.Equal(Te, ReadWrite, dst.Mode())
	n, err := dst.NumRuns()
	require.NoError(Te, err)
	assert.Equal(Te, 0, n)
	conts, err := dst.Continuations()
	require.NoError(Te, err)
	assert.Empty(Te, conts)
	id, err := dst.ArchiveID()
	require.NoError(Te, err)
	assert.NotEqual(Te, srcID, id)
	na, err := dst.NAtoms()
	require.NoError(Te, err)
	assert.Equal(Te, 4, na)
	sparse, err := dst.SparseFields()
	require.NoError(Te, err)
	assert.Contains(Te, sparse, "velocities")

	linked, err := dst.LinkFileRuns(filepath.Join(dir, "src.wst"))
	require.NoError(Te, err)
	assert.Equal(Te, []int{0, 1}, linked)
	ok, err := dst.IsContig([]int{0, 1})
	require.NoError(Te, err)
	assert.True(Te, ok)
	pos, err := dst.TrajField(1, 1, "positions", nil, false)
	require.NoError(Te, err)
	assert.Equal(Te, 1100.0, pos.At(0, 0, 0))
	_, err = dst.AddTraj(0, map[string]*nd.Array{"positions": positions(3, 0)}, nil, nil, nil)
	assert.True(Te, errors.Is(err, ErrModeViolation), "linked runs are read-only")

	local := addRun(Te, dst, 2, 1, 5000)
	r, err := dst.LinkRun(filepath.Join(dir, "src.wst"), 0, ContinueRun(local), RunMetadata(map[string]any{"note": "mounted"}))
	require.NoError(Te, err)
	assert.Equal(Te, 3, r)
	attrs, err := dst.RunAttrs(r)
	require.NoError(Te, err)
	assert.Equal(Te, "mounted", attrs["note"])
	assert.EqualValues(Te, 3, attrs[RunIdxKey])
	_, err = dst.LinkRun(filepath.Join(dir, "src.wst"), 7)
	assert.True(Te, errors.Is(err, ErrRunNotFound))

	//closing and reopening resolves the links again
	require.NoError(Te, dst.Close())
	require.NoError(Te, dst.Reopen())
	cy, err := dst.NumRunCycles(1)
	require.NoError(Te, err)
	assert.Equal(Te, 2, cy)

	joined, err := src.Clone(filepath.Join(dir, "joined.wst"), Truncate)
	require.NoError(Te, err)
	defer joined.Close()
	idxs, err := joined.Join(dst)
	require.NoError(Te, err)
	assert.Equal(Te, []int{0, 1, 2, 3}, idxs)
	conts, err = joined.Continuations()
	require.NoError(Te, err)
	assert.Empty(Te, conts)
	pos, err = joined.TrajField(3, 0, "positions", nil, false)
	require.NoError(Te, err)
	assert.Equal(Te, 0.0, pos.At(0, 0, 0))
	attrs, err = joined.RunAttrs(3)
	require.NoError(Te, err)
	assert.EqualValues(Te, 3, attrs[RunIdxKey])
	assert.Equal(Te, "mounted", attrs["note"])
	_, ok, err = joined.linkRecord(3)
	require.NoError(Te, err)
	assert.False(Te, ok, "joined runs hold their data")
	require.NoError(Te, joined.ExtendTraj(3, 0, map[string]*nd.Array{"positions": positions(1, 0)}, nil))
}
