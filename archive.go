/*
 * archive.go, part of westore.
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
	"os"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/field"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/records"
	"github.com/rmera/westore/schema"
)

//Node and attribute names of the archive layout.
const (
	RunsGroup    = "runs"
	InitWalkers  = "init_walkers"
	Trajectories = "trajectories"
	DecisionGrp  = "decision"
	LinksGroup   = "_links"

	ArchiveIDKey = "archive_id"
	RunIdxKey    = "run_idx"
	TrajIdxKey   = "traj_idx"
)

//Archive is a handle to a weighted ensemble archive. It is not safe for
//concurrent writes; concurrent reads are fine.
type Archive struct {
	path   string
	mode   Mode
	cfg    *Config
	log    *zap.Logger
	codec  container.Codec
	closed bool

	f   *container.File
	sch *schema.Store
	fld *field.Store
	rec *records.Store
}

//Option configures an archive on Open.
type Option func(*Archive)

//WithConfig sets the settings a new archive is created with.
func WithConfig(c *Config) Option {
	return func(a *Archive) { a.cfg = c }
}

//WithLogger sets the logger. The default is zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.log = l
		}
	}
}

//Open opens or creates the archive at path. Creation needs a config with
//a topology.
func Open(path string, mode Mode, opts ...Option) (*Archive, error) {
	a := &Archive{path: path, mode: mode, log: zap.L(), codec: container.Zstd}
	for _, o := range opts {
		o(a)
	}
	if !mode.valid() {
		return nil, werr.New(werr.ModeViolation, path, "westore.Open", "unknown mode %q", mode)
	}
	if a.cfg != nil && a.cfg.Codec != "" {
		c, err := container.ParseCodec(a.cfg.Codec)
		if err != nil {
			return nil, werr.New(werr.SchemaConflict, path, "westore.Open", "%v", err)
		}
		a.codec = c
	}
	if err := a.open(mode, a.create); err != nil {
		return nil, err
	}
	return a, nil
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Size() > 0
}

//open opens the container for mode, and calls initialise when the mode
//creates a new archive.
func (A *Archive) open(mode Mode, initialise func() error) error {
	const caller = "westore.Open"
	exists := fileExists(A.path)
	create := false
	switch mode {
	case ReadOnly:
		if A.cfg != nil {
			A.log.Warn("settings given but opening read-only, they are ignored", zap.String("file", A.path))
		}
	case ReadWrite:
		if !exists {
			return werr.New(werr.ModeViolation, A.path, caller, "mode r+ needs an existing archive")
		}
	case CreateExclusive:
		if exists {
			return werr.New(werr.ModeViolation, A.path, caller, "mode x needs a new file, but it exists")
		}
		create = true
	case Truncate:
		create = true
	case Append:
		create = !exists
	}
	f, err := container.Open(A.path, mode == ReadOnly, container.WithCodec(A.codec), container.WithLogger(A.log))
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if mode == Append && !create {
		if ok, err := f.Exists(schema.SettingsGroup); err == nil && !ok {
			create = true
		}
	}
	A.f = f
	A.sch = schema.New(f, A.log)
	A.fld = field.New(f, A.sch, A.log)
	A.rec = records.New(f)
	A.closed = false
	if create {
		if err := f.Clear(); err != nil {
			f.Close()
			return werr.Decorate(err, caller)
		}
		if err := initialise(); err != nil {
			f.Close()
			return werr.Decorate(err, caller)
		}
		return nil
	}
	A.checkLinks()
	return nil
}

//create lays out a new archive from the config.
func (A *Archive) create() error {
	set, err := A.cfg.settings()
	if err != nil {
		return err
	}
	if err := A.f.CreateGroup(RunsGroup); err != nil {
		return err
	}
	if err := A.sch.Create(set); err != nil {
		return err
	}
	id := uuid.NewString()
	A.log.Debug("created archive", zap.String("file", A.f.Path()), zap.String(ArchiveIDKey, id), zap.Int("n_atoms", set.NAtoms))
	return A.f.SetAttrs("", map[string]any{ArchiveIDKey: id})
}

//Close closes the archive. Closing a closed archive does nothing.
func (A *Archive) Close() error {
	if A.closed {
		return nil
	}
	A.closed = true
	return A.f.Close()
}

//Reopen opens a closed archive again. Archives opened in a creation mode
//are reopened read-write, so nothing is overwritten.
func (A *Archive) Reopen() error {
	if !A.closed {
		return nil
	}
	mode := A.mode
	if mode.Creates() || mode == Append {
		mode = ReadWrite
	}
	return A.open(mode, func() error { return nil })
}

//Closed reports whether the archive is closed.
func (A *Archive) Closed() bool { return A.closed }

//Mode is the mode the archive was opened with.
func (A *Archive) Mode() Mode { return A.mode }

//Path is the path of the archive file.
func (A *Archive) Path() string { return A.path }

//File returns the underlying container.
func (A *Archive) File() *container.File { return A.f }

func (A *Archive) check(caller string) error {
	if A.closed {
		return werr.New(werr.Closed, A.path, caller, "archive is closed")
	}
	return nil
}

func (A *Archive) writable(caller string) error {
	if err := A.check(caller); err != nil {
		return err
	}
	if !A.mode.Writable() {
		return werr.New(werr.ModeViolation, A.path, caller, "archive is open read-only")
	}
	return nil
}

//ArchiveID returns the identifier the archive got when created.
func (A *Archive) ArchiveID() (string, error) {
	if err := A.check("westore.ArchiveID"); err != nil {
		return "", err
	}
	attrs, err := A.f.Attrs("")
	if err != nil {
		return "", werr.Decorate(err, "westore.ArchiveID")
	}
	id, _ := attrs[ArchiveIDKey].(string)
	return id, nil
}

//Metadata returns the attributes of the archive.
func (A *Archive) Metadata() (map[string]any, error) {
	if err := A.check("westore.Metadata"); err != nil {
		return nil, err
	}
	m, err := A.f.Attrs("")
	return m, werr.Decorate(err, "westore.Metadata")
}

//AddMetadata sets an archive attribute. The archive id can't be changed.
func (A *Archive) AddMetadata(key string, value any) error {
	if err := A.writable("westore.AddMetadata"); err != nil {
		return err
	}
	if key == ArchiveIDKey {
		A.log.Warn("metadata key is reserved, ignored", zap.String("key", key))
		return nil
	}
	return werr.Decorate(A.f.SetAttrs("", map[string]any{key: value}), "westore.AddMetadata")
}

func runPath(run int) string {
	return container.Join(RunsGroup, strconv.Itoa(run))
}

func trajPath(run, traj int) string {
	return container.Join(runPath(run), Trajectories, strconv.Itoa(traj))
}

func (A *Archive) checkRun(run int, caller string) error {
	if err := A.check(caller); err != nil {
		return err
	}
	ok, err := A.f.Exists(runPath(run))
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if !ok {
		return werr.New(werr.RunNotFound, A.path, caller, "no run %d", run)
	}
	return nil
}

func (A *Archive) checkTraj(run, traj int, caller string) error {
	if err := A.checkRun(run, caller); err != nil {
		return err
	}
	ok, err := A.f.Exists(trajPath(run, traj))
	if err != nil {
		return werr.Decorate(err, caller)
	}
	if !ok {
		return werr.New(werr.FieldNotFound, A.path, caller, "run %d has no trajectory %d", run, traj)
	}
	return nil
}

//NumRuns is the number of runs.
func (A *Archive) NumRuns() (int, error) {
	idxs, err := A.RunIdxs()
	return len(idxs), err
}

//RunIdxs returns the run indices, in order.
func (A *Archive) RunIdxs() ([]int, error) {
	if err := A.check("westore.RunIdxs"); err != nil {
		return nil, err
	}
	names, err := A.f.Children(RunsGroup)
	if err != nil {
		return nil, werr.Decorate(err, "westore.RunIdxs")
	}
	out := make([]int, 0, len(names))
	for _, n := range names {
		i, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

//NextRunIdx is the index the next run will get.
func (A *Archive) NextRunIdx() (int, error) {
	idxs, err := A.RunIdxs()
	if err != nil || len(idxs) == 0 {
		return 0, err
	}
	return idxs[len(idxs)-1] + 1, nil
}

//NumRunTrajs is the number of trajectories of run.
func (A *Archive) NumRunTrajs(run int) (int, error) {
	if err := A.checkRun(run, "westore.NumRunTrajs"); err != nil {
		return 0, err
	}
	names, err := A.f.Children(container.Join(runPath(run), Trajectories))
	return len(names), werr.Decorate(err, "westore.NumRunTrajs")
}

//NextRunTrajIdx is the index the next trajectory of run will get.
func (A *Archive) NextRunTrajIdx(run int) (int, error) {
	return A.NumRunTrajs(run)
}

//NumTrajFrames is the number of frames of a trajectory.
func (A *Archive) NumTrajFrames(run, traj int) (int, error) {
	if err := A.checkTraj(run, traj, "westore.NumTrajFrames"); err != nil {
		return 0, err
	}
	n, err := A.fld.NFrames(trajPath(run, traj))
	return n, werr.Decorate(err, "westore.NumTrajFrames")
}

//NumRunCycles is the number of cycles of run, the frames of its first
//trajectory.
func (A *Archive) NumRunCycles(run int) (int, error) {
	return A.NumTrajFrames(run, 0)
}

//runCycles is NumRunCycles, but 0 for a run without trajectories.
func (A *Archive) runCycles(run int) (int, error) {
	n, err := A.NumRunCycles(run)
	if errors.Is(err, werr.FieldNotFound) {
		return 0, nil
	}
	return n, err
}

//NumTrajs is the number of trajectories of every run together.
func (A *Archive) NumTrajs() (int, error) {
	tups, err := A.RunTrajIdxTuples()
	return len(tups), err
}

//RunTrajIdxTuples returns the (run, traj) pairs of the given runs, or of
//all runs when none is given.
func (A *Archive) RunTrajIdxTuples(runs ...int) ([][2]int, error) {
	if len(runs) == 0 {
		var err error
		runs, err = A.RunIdxs()
		if err != nil {
			return nil, err
		}
	}
	var out [][2]int
	for _, r := range runs {
		n, err := A.NumRunTrajs(r)
		if err != nil {
			return nil, err
		}
		for t := 0; t < n; t++ {
			out = append(out, [2]int{r, t})
		}
	}
	return out, nil
}
