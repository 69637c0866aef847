/*
 * federation.go, part of westore.
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
	"maps"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/internal/werr"
)

//linkRec is what the archive remembers of a run mounted from another file.
type linkRec struct {
	File      string         `json:"file"`
	Run       int            `json:"run"`
	ArchiveID string         `json:"archive_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func linkRecPath(run int) string {
	return container.Join(LinksGroup, strconv.Itoa(run))
}

//linkRecord returns the link record of run, ok is false for a run stored
//in the archive itself.
func (A *Archive) linkRecord(run int) (linkRec, bool, error) {
	var l linkRec
	p := linkRecPath(run)
	ok, err := A.f.Exists(p)
	if err != nil || !ok {
		return l, false, err
	}
	if err := A.f.Value(p, &l); err != nil {
		return l, false, err
	}
	return l, true, nil
}

//checkLinks warns about linked runs whose archive can't be opened or is
//not the archive that was linked.
func (A *Archive) checkLinks() {
	names, err := A.f.Children(LinksGroup)
	if err != nil {
		return
	}
	for _, n := range names {
		run, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		l, ok, err := A.linkRecord(run)
		if err != nil || !ok {
			continue
		}
		ff, err := A.f.LinkedFile(runPath(run))
		if err != nil {
			A.log.Warn("linked run can't be opened", zap.Int(RunIdxKey, run), zap.String("file", l.File), zap.Error(err))
			continue
		}
		attrs, err := ff.Attrs("")
		if err != nil {
			A.log.Warn("linked run can't be read", zap.Int(RunIdxKey, run), zap.String("file", l.File), zap.Error(err))
			continue
		}
		if id, _ := attrs[ArchiveIDKey].(string); id != l.ArchiveID {
			A.log.Warn("linked archive was replaced", zap.Int(RunIdxKey, run), zap.String("file", l.File),
				zap.String("expected", l.ArchiveID), zap.String("found", id))
		}
	}
}

//Clone creates, at path, an archive with the topology, the units and the
//settings of A, but no runs and no continuations. mode has to be Truncate
//or CreateExclusive. The clone is returned open read-write.
func (A *Archive) Clone(path string, mode Mode) (*Archive, error) {
	const caller = "westore.Clone"
	if err := A.check(caller); err != nil {
		return nil, err
	}
	if !mode.Creates() {
		return nil, werr.New(werr.ModeViolation, path, caller, "a clone needs a creation mode, not %q", mode)
	}
	dst := &Archive{path: path, mode: mode, log: A.log, codec: A.codec}
	err := dst.open(mode, func() error {
		if err := dst.f.CreateGroup(RunsGroup); err != nil {
			return err
		}
		if err := A.sch.CloneInto(dst.f); err != nil {
			return err
		}
		return dst.f.SetAttrs("", map[string]any{ArchiveIDKey: uuid.NewString()})
	})
	if err != nil {
		return nil, err
	}
	dst.mode = ReadWrite
	A.log.Debug("cloned archive", zap.String("from", A.path), zap.String("to", path))
	return dst, nil
}

//foreign opens the archive at path read-only and returns it with the path
//relative to the directory of A.
func (A *Archive) foreign(path, caller string) (*Archive, string, error) {
	o, err := Open(path, ReadOnly, WithLogger(A.log))
	if err != nil {
		return nil, "", werr.Decorate(err, caller)
	}
	rel := path
	if abs, err := filepath.Abs(path); err == nil {
		if here, err := filepath.Abs(filepath.Dir(A.path)); err == nil {
			if r, err := filepath.Rel(here, abs); err == nil {
				rel = r
			}
		}
	}
	return o, rel, nil
}

//LinkRun mounts the run runIdx of the archive at path as a new run of A,
//without copying its data. The run can be read like any other, but not
//written. ContinueRun and RunMetadata are honoured.
func (A *Archive) LinkRun(path string, runIdx int, opts ...RunOption) (int, error) {
	const caller = "westore.LinkRun"
	if err := A.writable(caller); err != nil {
		return 0, err
	}
	o, rel, err := A.foreign(path, caller)
	if err != nil {
		return 0, err
	}
	defer o.Close()
	return A.linkRun(o, rel, runIdx, opts...)
}

func (A *Archive) linkRun(o *Archive, rel string, runIdx int, opts ...RunOption) (int, error) {
	const caller = "westore.LinkRun"
	if err := o.checkRun(runIdx, caller); err != nil {
		return 0, err
	}
	ro := A.runOptions(opts)
	if ro.continues {
		if err := A.checkRun(ro.base, caller); err != nil {
			return 0, err
		}
	}
	id, err := o.ArchiveID()
	if err != nil {
		return 0, err
	}
	run, err := A.NextRunIdx()
	if err != nil {
		return 0, err
	}
	if err := A.f.Link(runPath(run), rel, runPath(runIdx)); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	rec := linkRec{File: rel, Run: runIdx, ArchiveID: id, Metadata: ro.meta}
	if err := A.f.SetValue(linkRecPath(run), rec); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	if ro.continues {
		if err := A.AddContinuation(run, ro.base); err != nil {
			return 0, err
		}
	}
	A.log.Debug("linked run", zap.Int(RunIdxKey, run), zap.String("file", rel), zap.Int("foreign_run", runIdx))
	return run, nil
}

//LinkFileRuns mounts every run of the archive at path, in order, and adds
//its continuations between the new runs. It returns the new run indices.
func (A *Archive) LinkFileRuns(path string) ([]int, error) {
	const caller = "westore.LinkFileRuns"
	if err := A.writable(caller); err != nil {
		return nil, err
	}
	o, rel, err := A.foreign(path, caller)
	if err != nil {
		return nil, err
	}
	defer o.Close()
	runs, err := o.RunIdxs()
	if err != nil {
		return nil, err
	}
	local := make(map[int]int, len(runs))
	out := make([]int, 0, len(runs))
	for _, r := range runs {
		n, err := A.linkRun(o, rel, r)
		if err != nil {
			return nil, err
		}
		local[r] = n
		out = append(out, n)
	}
	conts, err := o.Continuations()
	if err != nil {
		return nil, err
	}
	for _, c := range conts {
		if err := A.AddContinuation(local[c[0]], local[c[1]]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

//Join copies every run of other into A, at the next free run indices.
//Linked runs of other are copied with their data. The continuations of
//other are not carried over. It returns the new run indices.
func (A *Archive) Join(other *Archive) ([]int, error) {
	const caller = "westore.Join"
	if err := A.writable(caller); err != nil {
		return nil, err
	}
	runs, err := other.RunIdxs()
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(runs))
	for _, r := range runs {
		n, err := A.NextRunIdx()
		if err != nil {
			return nil, err
		}
		if err := A.f.CopyTree(other.f, runPath(r), runPath(n)); err != nil {
			return nil, werr.Decorate(err, caller)
		}
		attrs := map[string]any{RunIdxKey: n}
		if l, ok, err := other.linkRecord(r); err != nil {
			return nil, werr.Decorate(err, caller)
		} else if ok {
			maps.Copy(attrs, l.Metadata)
			attrs[RunIdxKey] = n
		}
		if err := A.f.SetAttrs(runPath(n), attrs); err != nil {
			return nil, werr.Decorate(err, caller)
		}
		A.log.Debug("joined run", zap.String("from", other.path), zap.Int("foreign_run", r), zap.Int(RunIdxKey, n))
		out = append(out, n)
	}
	return out, nil
}
