/*
 * mapping.go, part of westore.
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
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rmera/westore/container"
	"github.com/rmera/westore/field"
	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/nd"
)

//TrajFieldsData holds fields read from one trajectory.
type TrajFieldsData struct {
	Run, Traj int
	Fields    map[string]*nd.Masked
}

//TrajFunc computes one array, with one row per frame, from the fields of a
//trajectory.
type TrajFunc func(ctx context.Context, d TrajFieldsData) (*nd.Array, error)

//MapTrajFields reads fields from every trajectory of every run and
//applies fn to each, using at most workers goroutines (no limit if
//workers < 1). The results follow RunTrajIdxTuples. fn must not write to the
//archive. The first error cancels the rest.
func (A *Archive) MapTrajFields(ctx context.Context, fields []string, workers int, fn TrajFunc) ([]*nd.Array, error) {
	const caller = "westore.MapTrajFields"
	tups, err := A.RunTrajIdxTuples()
	if err != nil {
		return nil, werr.Decorate(err, caller)
	}
	out := make([]*nd.Array, len(tups))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, t := range tups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d := TrajFieldsData{Run: t[0], Traj: t[1], Fields: make(map[string]*nd.Masked, len(fields))}
			for _, name := range fields {
				m, err := A.TrajField(t[0], t[1], name, nil, true)
				if err != nil {
					return werr.Decorate(err, caller)
				}
				d.Fields[name] = m
			}
			res, err := fn(ctx, d)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

//ComputeObservable is MapTrajFields, and if saveAs is not empty the
//results are also stored as observables/saveAs of each trajectory,
//replacing what was there. The results are written after every
//trajectory is computed, and nothing is written if any run is linked. A
//run whose stored observable equals the results is left alone.
func (A *Archive) ComputeObservable(ctx context.Context, fields []string, workers int, fn TrajFunc, saveAs string) ([]*nd.Array, error) {
	const caller = "westore.ComputeObservable"
	if saveAs != "" {
		if err := A.writable(caller); err != nil {
			return nil, err
		}
	}
	res, err := A.MapTrajFields(ctx, fields, workers, fn)
	if err != nil || saveAs == "" {
		return res, err
	}
	tups, err := A.RunTrajIdxTuples()
	if err != nil {
		return nil, err
	}
	byRun := make(map[int][]*nd.Array)
	var order []int
	for i, t := range tups {
		if _, ok := byRun[t[0]]; !ok {
			order = append(order, t[0])
		}
		byRun[t[0]] = append(byRun[t[0]], res[i])
	}
	for _, run := range order {
		if _, _, ok := A.f.LinkInfo(runPath(run)); ok {
			return nil, werr.New(werr.ModeViolation, A.path, caller, "run %d is linked from another archive", run)
		}
	}
	p := container.Join(field.Observables, saveAs)
	for _, run := range order {
		var stored []int
		same := true
		for traj, d := range byRun[run] {
			ok, err := A.fld.Exists(trajPath(run, traj), p)
			if err != nil {
				return nil, werr.Decorate(err, caller)
			}
			if !ok {
				same = false
				continue
			}
			stored = append(stored, traj)
			if same {
				old, err := A.TrajField(run, traj, p, nil, false)
				if err != nil {
					return nil, werr.Decorate(err, caller)
				}
				same = old.Array.Equal(d)
			}
		}
		if same {
			A.log.Debug("observable unchanged", zap.String("field", p), zap.Int(RunIdxKey, run))
			continue
		}
		for _, traj := range stored {
			A.log.Info("overwriting observable", zap.String("field", p), zap.Int(RunIdxKey, run), zap.Int(TrajIdxKey, traj))
			if err := A.f.Remove(container.Join(trajPath(run, traj), p)); err != nil {
				return nil, werr.Decorate(err, caller)
			}
		}
		if err := A.AddRunObservable(run, saveAs, byRun[run], nil); err != nil {
			return nil, err
		}
	}
	return res, nil
}
