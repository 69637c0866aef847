//Package panel arranges resampling records by cycle, step and walker, and
//derives the parent of every walker slot from clone/merge decisions.
package panel

import (
	"cmp"
	"slices"

	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/records"
)

//Resampling record fields the panel relies on.
const (
	StepIdx    = "step_idx"
	WalkerIdx  = "walker_idx"
	DecisionID = "decision_id"
	TargetIdxs = "target_idxs"
)

//Clone/merge decision names.
const (
	Nothing   = "NOTHING"
	Clone     = "CLONE"
	Squash    = "SQUASH"
	Merge     = "MERGE"
	KeepMerge = "KEEP_MERGE"
)

//CloneMerge is the default clone/merge decision enumeration.
func CloneMerge() map[string]int {
	return map[string]int{Nothing: 1, Clone: 2, Squash: 3, Merge: 4}
}

//Panel is panel[cycle][step][walker]. Slots no record was given for are nil.
type Panel [][][]*records.Record

func intField(r *records.Record, name string) (int, error) {
	v, ok := r.Scalar(name)
	if !ok {
		return 0, werr.New(werr.FieldNotFound, "", "panel", "resampling record lacks %s", name)
	}
	return int(v), nil
}

//Build arranges contig-offset resampling records into a panel of nCycles
//cycles. Two records for the same cycle, step and walker are an error.
func Build(recs []records.Record, nCycles int) (Panel, error) {
	p := make(Panel, nCycles)
	sorted := Sorted(recs)
	type key struct{ cycle, step, walker int }
	seen := make(map[key]bool, len(sorted))
	for i := range sorted {
		r := &sorted[i]
		step, err := intField(r, StepIdx)
		if err != nil {
			return nil, err
		}
		walker, err := intField(r, WalkerIdx)
		if err != nil {
			return nil, err
		}
		if r.CycleIdx < 0 || r.CycleIdx >= nCycles {
			return nil, werr.New(werr.InvalidContig, "", "panel.Build", "record for cycle %d outside %d cycles", r.CycleIdx, nCycles)
		}
		if step < 0 || walker < 0 {
			return nil, werr.New(werr.ShapeMismatch, "", "panel.Build", "negative step or walker index in cycle %d", r.CycleIdx)
		}
		k := key{r.CycleIdx, step, walker}
		if seen[k] {
			return nil, werr.New(werr.SchemaConflict, "", "panel.Build", "two records for cycle %d step %d walker %d", k.cycle, k.step, k.walker)
		}
		seen[k] = true
		cyc := p[k.cycle]
		for len(cyc) <= k.step {
			cyc = append(cyc, nil)
		}
		for len(cyc[k.step]) <= k.walker {
			cyc[k.step] = append(cyc[k.step], nil)
		}
		cyc[k.step][k.walker] = r
		p[k.cycle] = cyc
	}
	return p, nil
}

//NumWalkers returns the number of walker slots of each cycle, taken from
//its first step.
func (P Panel) NumWalkers() []int {
	out := make([]int, len(P))
	for i, steps := range P {
		if len(steps) > 0 {
			out[i] = len(steps[0])
		}
	}
	return out
}

//StepParents returns, for every slot after one resampling step, the slot
//it came from before the step, -1 if none. NOTHING, CLONE and MERGE give
//their walker as parent of every target slot, SQUASH discards the walker.
func StepParents(step []*records.Record, enum map[string]int) ([]int, error) {
	names := make(map[int]string, len(enum))
	for n, c := range enum {
		names[c] = n
	}
	parents := make([]int, len(step))
	for i := range parents {
		parents[i] = -1
	}
	for w, r := range step {
		if r == nil {
			continue
		}
		code, err := intField(r, DecisionID)
		if err != nil {
			return nil, err
		}
		targets, ok := r.Get(TargetIdxs)
		if !ok {
			return nil, werr.New(werr.FieldNotFound, "", "panel.StepParents", "resampling record lacks %s", TargetIdxs)
		}
		switch names[code] {
		case Nothing, Clone, Merge, KeepMerge:
			for _, t := range targets {
				ti := int(t)
				for len(parents) <= ti {
					parents = append(parents, -1)
				}
				parents[ti] = w
			}
		case Squash:
		default:
			return nil, werr.New(werr.FieldNotFound, "", "panel.StepParents", "decision code %d is not a clone/merge decision", code)
		}
	}
	return parents, nil
}

//Parents returns, for every cycle, the slot each walker slot descends from
//at the start of the cycle, with all the steps of the cycle composed. A
//cycle without records keeps every slot as its own parent.
func Parents(p Panel, enum map[string]int, nWalkers int) ([][]int, error) {
	out := make([][]int, len(p))
	for c, steps := range p {
		net := identity(nWalkers)
		for _, step := range steps {
			sp, err := StepParents(step, enum)
			if err != nil {
				return nil, err
			}
			next := make([]int, len(sp))
			for j, par := range sp {
				next[j] = -1
				if par >= 0 && par < len(net) {
					next[j] = net[par]
				}
			}
			net = next
		}
		out[c] = net
	}
	return out, nil
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

//Lineage follows the parent table back from slot walker at cycle and
//returns the (slot, cycle) pairs from cycle 0 up to it. It stops early at
//a slot without parent.
func Lineage(parents [][]int, walker, cycle int) ([][2]int, error) {
	if cycle < 0 || cycle >= len(parents) {
		return nil, werr.New(werr.InvalidContig, "", "panel.Lineage", "cycle %d outside %d cycles", cycle, len(parents))
	}
	if walker < 0 {
		return nil, werr.New(werr.ShapeMismatch, "", "panel.Lineage", "negative walker index %d", walker)
	}
	var out [][2]int
	for c := cycle; c >= 0 && walker >= 0; c-- {
		out = append(out, [2]int{walker, c})
		if walker >= len(parents[c]) {
			break
		}
		walker = parents[c][walker]
	}
	slices.Reverse(out)
	return out, nil
}

//Sorted returns the records ordered by cycle, step and walker.
func Sorted(recs []records.Record) []records.Record {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b records.Record) int {
		if c := cmp.Compare(a.CycleIdx, b.CycleIdx); c != 0 {
			return c
		}
		as, _ := a.Scalar(StepIdx)
		bs, _ := b.Scalar(StepIdx)
		if c := cmp.Compare(as, bs); c != 0 {
			return c
		}
		aw, _ := a.Scalar(WalkerIdx)
		bw, _ := b.Scalar(WalkerIdx)
		return cmp.Compare(aw, bw)
	})
	return out
}
