package contig

import (
	"slices"

	"github.com/rmera/westore/internal/werr"
)

//Frame is a coordinate in the archive: a cycle of a trajectory slot of a
//run.
type Frame struct {
	Run, Traj, Cycle int
}

//Contig is a validated chain of runs with the number of cycles of each.
type Contig struct {
	Runs   []int
	Cycles []int
}

//New returns a contig of runs with the given cycle counts. It does not
//check the continuation graph, see Graph.Validate.
func New(runs, cycles []int) (*Contig, error) {
	if len(runs) == 0 || len(runs) != len(cycles) {
		return nil, werr.New(werr.InvalidContig, "", "contig.New", "%d runs and %d cycle counts", len(runs), len(cycles))
	}
	return &Contig{Runs: slices.Clone(runs), Cycles: slices.Clone(cycles)}, nil
}

//NumCycles is the total number of cycles.
func (C *Contig) NumCycles() int {
	n := 0
	for _, v := range C.Cycles {
		n += v
	}
	return n
}

//Offsets returns the contig cycle each run starts at.
func (C *Contig) Offsets() []int {
	out := make([]int, len(C.Cycles))
	n := 0
	for i, v := range C.Cycles {
		out[i] = n
		n += v
	}
	return out
}

//Locate returns the run and the run-local cycle of a contig cycle.
func (C *Contig) Locate(cycle int) (run, local int, err error) {
	if cycle < 0 {
		return 0, 0, werr.New(werr.InvalidContig, "", "contig.Locate", "negative cycle %d", cycle)
	}
	for i, n := range C.Cycles {
		if cycle < n {
			return C.Runs[i], cycle, nil
		}
		cycle -= n
	}
	return 0, 0, werr.New(werr.InvalidContig, "", "contig.Locate", "cycle out of the %d cycles of the contig", C.NumCycles())
}

//Trace converts contig cycles into (run, local cycle) pairs.
func (C *Contig) Trace(cycles []int) ([][2]int, error) {
	out := make([][2]int, len(cycles))
	for i, cy := range cycles {
		r, l, err := C.Locate(cy)
		if err != nil {
			return nil, err
		}
		out[i] = [2]int{r, l}
	}
	return out, nil
}

//Frames expands a contig trace of (traj, contig cycle) pairs into frames.
func (C *Contig) Frames(trace [][2]int) ([]Frame, error) {
	out := make([]Frame, len(trace))
	for i, t := range trace {
		r, l, err := C.Locate(t[1])
		if err != nil {
			return nil, err
		}
		out[i] = Frame{Run: r, Traj: t[0], Cycle: l}
	}
	return out, nil
}
