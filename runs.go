/*
 * runs.go, part of westore.
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
	"maps"
	"strconv"

	"go.uber.org/zap"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/field"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

type runOpts struct {
	base      int
	continues bool
	meta      map[string]any
}

//RunOption configures a new or linked run.
type RunOption func(*runOpts)

//ContinueRun makes the new run a continuation of base.
func ContinueRun(base int) RunOption {
	return func(o *runOpts) {
		o.base = base
		o.continues = true
	}
}

//RunMetadata sets attributes of the new run. run_idx is reserved.
func RunMetadata(m map[string]any) RunOption {
	return func(o *runOpts) {
		if o.meta == nil {
			o.meta = make(map[string]any)
		}
		maps.Copy(o.meta, m)
	}
}

func (A *Archive) runOptions(opts []RunOption) *runOpts {
	o := new(runOpts)
	for _, f := range opts {
		f(o)
	}
	if _, ok := o.meta[RunIdxKey]; ok {
		A.log.Warn("run_idx is set by the archive and can't be given as metadata")
		delete(o.meta, RunIdxKey)
	}
	return o
}

//NewRun creates a run whose initial walkers are initWalkers and returns
//its index.
func (A *Archive) NewRun(initWalkers []Walker, opts ...RunOption) (int, error) {
	const caller = "westore.NewRun"
	if err := A.writable(caller); err != nil {
		return 0, err
	}
	o := A.runOptions(opts)
	if o.continues {
		if err := A.checkRun(o.base, caller); err != nil {
			return 0, err
		}
	}
	run, err := A.NextRunIdx()
	if err != nil {
		return 0, err
	}
	rp := runPath(run)
	if err := A.f.CreateGroup(container.Join(rp, Trajectories)); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	if err := A.f.CreateGroup(container.Join(rp, InitWalkers)); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	for i, w := range initWalkers {
		if err := A.addInitWalker(container.Join(rp, InitWalkers, strconv.Itoa(i)), w); err != nil {
			return 0, werr.Decorate(err, caller)
		}
	}
	attrs := map[string]any{RunIdxKey: run}
	maps.Copy(attrs, o.meta)
	if err := A.f.SetAttrs(rp, attrs); err != nil {
		return 0, werr.Decorate(err, caller)
	}
	if o.continues {
		if err := A.AddContinuation(run, o.base); err != nil {
			return 0, werr.Decorate(err, caller)
		}
	}
	A.log.Debug("new run", zap.Int(RunIdxKey, run), zap.Int("n_walkers", len(initWalkers)))
	return run, nil
}

//addInitWalker stores the walker as one-frame datasets.
func (A *Archive) addInitWalker(base string, w Walker) error {
	if err := A.f.CreateGroup(base); err != nil {
		return err
	}
	wt, _ := nd.FromData(nd.Float64, []float64{w.Weight()}, 1, 1)
	if err := A.f.CreateDataset(container.Join(base, field.Weights), nd.Float64, nd.Shape{1}, false); err != nil {
		return err
	}
	if err := A.f.Append(container.Join(base, field.Weights), wt); err != nil {
		return err
	}
	for name, v := range w.State() {
		if v == nil || name == field.Weights {
			continue
		}
		fr, err := oneFrame(v)
		if err != nil {
			return err
		}
		p := container.Join(base, name)
		if err := A.f.CreateDataset(p, v.Dtype, v.Shape(), false); err != nil {
			return err
		}
		if err := A.f.Append(p, fr); err != nil {
			return err
		}
	}
	return nil
}

//oneFrame adds a leading frame axis to a single frame of features.
func oneFrame(v *nd.Array) (*nd.Array, error) {
	return v.Reshape(append([]int{1}, v.Shape()...)...)
}

//InitWalkers returns the initial walkers of run.
func (A *Archive) InitWalkers(run int) ([]*SimpleWalker, error) {
	const caller = "westore.InitWalkers"
	if err := A.checkRun(run, caller); err != nil {
		return nil, err
	}
	gp := container.Join(runPath(run), InitWalkers)
	names, err := A.f.Children(gp)
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	out := make([]*SimpleWalker, 0, len(names))
	for _, n := range names {
		base := container.Join(gp, n)
		paths, err := A.fld.Fields(base)
		if err != nil {
			return nil, werr.Decorate(err, caller)
		}
		w := &SimpleWalker{Fields: make(map[string]*nd.Array)}
		for _, p := range paths {
			v, err := A.f.ReadAll(container.Join(base, p))
			if err != nil {
				return nil, werr.Decorate(err, caller)
			}
			if p == field.Weights {
				w.W = v.Data()[0]
				continue
			}
			if fs := v.FeatureShape(); len(fs) > 0 {
				v, _ = v.Reshape(fs...)
			}
			w.Fields[p] = v
		}
		out = append(out, w)
	}
	return out, nil
}

//RunAttrs returns the attributes of run. For linked runs, the metadata
//given when linking is included.
func (A *Archive) RunAttrs(run int) (map[string]any, error) {
	const caller = "westore.RunAttrs"
	if err := A.checkRun(run, caller); err != nil {
		return nil, err
	}
	attrs, err := A.f.Attrs(runPath(run))
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	if l, ok, err := A.linkRecord(run); err != nil {
		return nil, werr.Decorate(err, caller)
	} else if ok {
		maps.Copy(attrs, l.Metadata)
		attrs[RunIdxKey] = run
	}
	return attrs, nil
}

//InitRunDecision stores the decision enumeration of run.
func (A *Archive) InitRunDecision(run int, enum map[string]int) error {
	const caller = "westore.InitRunDecision"
	if err := A.writable(caller); err != nil {
		return err
	}
	if err := A.checkRun(run, caller); err != nil {
		return err
	}
	gp := container.Join(runPath(run), DecisionGrp)
	if err := A.f.CreateGroup(gp); err != nil {
		return werr.Decorate(err, caller)
	}
	for name, code := range enum {
		if err := A.f.SetValue(container.Join(gp, name), code); err != nil {
			return werr.Decorate(err, caller)
		}
	}
	return nil
}

//DecisionEnum returns the decision codes of run by name. A run without
//a decision enumeration gives an empty map.
func (A *Archive) DecisionEnum(run int) (map[string]int, error) {
	const caller = "westore.DecisionEnum"
	if err := A.checkRun(run, caller); err != nil {
		return nil, err
	}
	gp := container.Join(runPath(run), DecisionGrp)
	names, err := A.f.Children(gp)
	if errors.Is(err, werr.FieldNotFound) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	out := make(map[string]int, len(names))
	for _, n := range names {
		var code int
		if err := A.f.Value(container.Join(gp, n), &code); err != nil {
			return nil, werr.Decorate(err, caller)
		}
		out[n] = code
	}
	return out, nil
}

//DecisionValueNames returns the decision names of run by code.
func (A *Archive) DecisionValueNames(run int) (map[int]string, error) {
	enum, err := A.DecisionEnum(run)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(enum))
	for n, c := range enum {
		out[c] = n
	}
	return out, nil
}
