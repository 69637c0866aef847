/*
 * reporter.go, part of westore.
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
	"go.uber.org/zap"

	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
	"github.com/rmera/westore/records"
)

//Reporter writes the output of a weighted ensemble simulation, one cycle
//at a time, into a new run of an archive.
type Reporter struct {
	Path        string
	Mode        Mode
	Options     []Option
	Resampler   Resampler
	BC          BoundaryConditions
	InitWalkers []Walker
	//ContinueRun is the run the new run continues, or nil.
	ContinueRun *int
	RunMetadata map[string]any

	a   *Archive
	run int
}

//Init opens the archive, creates the run and initialises its decision
//enumeration and record groups. Groups of a missing collaborator are
//created without fields.
func (R *Reporter) Init() error {
	const caller = "westore.Reporter.Init"
	mode := R.Mode
	if mode == "" {
		mode = Append
	}
	a, err := Open(R.Path, mode, R.Options...)
	if err != nil {
		return werr.Decorate(err, caller)
	}
	var opts []RunOption
	if R.ContinueRun != nil {
		opts = append(opts, ContinueRun(*R.ContinueRun))
	}
	if R.RunMetadata != nil {
		opts = append(opts, RunMetadata(R.RunMetadata))
	}
	run, err := a.NewRun(R.InitWalkers, opts...)
	if err != nil {
		a.Close()
		return werr.Decorate(err, caller)
	}
	R.a, R.run = a, run
	if err := R.initGroups(); err != nil {
		a.Close()
		return werr.Decorate(err, caller)
	}
	a.log.Info("reporter started", zap.String("file", R.Path), zap.Int(RunIdxKey, run))
	return nil
}

func (R *Reporter) initGroups() error {
	a, run := R.a, R.run
	if err := a.InitRecordFieldsFrom(R.Resampler, R.BC); err != nil {
		return err
	}
	if R.Resampler != nil {
		if err := a.InitRunResampling(run, R.Resampler); err != nil {
			return err
		}
		if err := a.InitRunResampler(run, R.Resampler); err != nil {
			return err
		}
	} else {
		for _, g := range []string{records.Resampling, records.Resampler} {
			if err := a.InitRunRecordGroup(run, g, nil); err != nil {
				return err
			}
		}
	}
	if R.BC != nil {
		if err := a.InitRunWarping(run, R.BC); err != nil {
			return err
		}
		if err := a.InitRunBC(run, R.BC); err != nil {
			return err
		}
		return a.InitRunProgress(run, R.BC)
	}
	for _, g := range []string{records.Warping, records.BoundaryConditions, records.Progress} {
		if err := a.InitRunRecordGroup(run, g, nil); err != nil {
			return err
		}
	}
	return nil
}

//Report writes cycle: a frame for each walker, the trajectories being
//created on cycle 0, then the warping, boundary condition and progress
//records followed by the resampling and resampler records. A nil progress
//writes no progress record.
func (R *Reporter) Report(cycle int, walkers []Walker, warping, bc []records.Values, progress records.Values, resampling, resampler []records.Values) error {
	const caller = "westore.Reporter.Report"
	if R.a == nil {
		return werr.New(werr.Closed, R.Path, caller, "reporter not initialised")
	}
	for i, w := range walkers {
		data := make(map[string]*nd.Array, len(w.State()))
		for k, v := range w.State() {
			if v == nil {
				continue
			}
			f, err := oneFrame(v)
			if err != nil {
				return werr.Decorate(err, caller)
			}
			data[k] = f
		}
		weights := nd.Scalars(nd.Float64, w.Weight())
		if cycle == 0 {
			if _, err := R.a.AddTraj(R.run, data, weights, nil, nil); err != nil {
				return werr.Decorate(err, caller)
			}
			continue
		}
		if err := R.a.ExtendTraj(R.run, i, data, weights); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	if err := R.extend(records.Warping, cycle, warping); err != nil {
		return werr.Decorate(err, caller)
	}
	if err := R.extend(records.BoundaryConditions, cycle, bc); err != nil {
		return werr.Decorate(err, caller)
	}
	if progress != nil {
		if err := R.extend(records.Progress, cycle, []records.Values{progress}); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	if err := R.extend(records.Resampling, cycle, resampling); err != nil {
		return werr.Decorate(err, caller)
	}
	if err := R.extend(records.Resampler, cycle, resampler); err != nil {
		return werr.Decorate(err, caller)
	}
	R.a.log.Debug("reported cycle", zap.Int(RunIdxKey, R.run), zap.Int("cycle", cycle), zap.Int("n_walkers", len(walkers)))
	return nil
}

func (R *Reporter) extend(group string, cycle int, recs []records.Values) error {
	if len(recs) == 0 {
		return nil
	}
	return R.a.ExtendCycleRecords(R.run, group, cycle, recs)
}

//Cleanup closes the archive.
func (R *Reporter) Cleanup() error {
	if R.a == nil {
		return nil
	}
	return R.a.Close()
}

//Archive is the archive being written, nil before Init.
func (R *Reporter) Archive() *Archive { return R.a }

//Run is the index of the run being written.
func (R *Reporter) Run() int { return R.run }
