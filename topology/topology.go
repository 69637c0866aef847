//Package topology reads and subsets the JSON molecular topologies stored in
//archives. The format is the mdtraj one: a list of chains, each a list of
//residues, each a list of atoms, plus a list of bonds as atom index pairs.
package topology

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rmera/westore/internal/werr"
)

type Atom struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Element string `json:"element"`
}

type Residue struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ResSeq    int    `json:"resSeq"`
	SegmentID string `json:"segmentID"`
	Atoms     []Atom `json:"atoms"`
}

type Chain struct {
	Index    int       `json:"index"`
	ChainID  string    `json:"chain_id,omitempty"`
	Residues []Residue `json:"residues"`
}

//Topology is a decoded topology.
type Topology struct {
	Chains []Chain  `json:"chains"`
	Bonds  [][2]int `json:"bonds"`
}

//Parse decodes a JSON topology.
func Parse(s string) (*Topology, error) {
	t := new(Topology)
	if err := json.Unmarshal([]byte(s), t); err != nil {
		return nil, werr.New(werr.SchemaConflict, "", "topology.Parse", "malformed topology: %v", err)
	}
	return t, nil
}

//JSON encodes the topology.
func (T *Topology) JSON() (string, error) {
	b, err := json.Marshal(T)
	if err != nil {
		return "", fmt.Errorf("topology.JSON: %w", err)
	}
	return string(b), nil
}

//NAtoms returns the number of atoms.
func (T *Topology) NAtoms() int {
	n := 0
	for _, c := range T.Chains {
		for _, r := range c.Residues {
			n += len(r.Atoms)
		}
	}
	return n
}

//Subset returns a new topology with only the atoms whose index is in idxs,
//in their original order and renumbered from 0. Chains and residues left
//without atoms are dropped, and so are bonds to removed atoms.
func (T *Topology) Subset(idxs []int) (*Topology, error) {
	n := T.NAtoms()
	keep := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		if i < 0 || i >= n {
			return nil, werr.New(werr.ShapeMismatch, "", "topology.Subset", "atom index %d out of range for %d atoms", i, n)
		}
		keep[i] = true
	}
	renum := make(map[int]int, len(keep))
	ret := &Topology{Bonds: [][2]int{}}
	var atom, res int
	for _, c := range T.Chains {
		nc := Chain{Index: len(ret.Chains), ChainID: c.ChainID}
		for _, r := range c.Residues {
			nr := Residue{Index: res, Name: r.Name, ResSeq: r.ResSeq, SegmentID: r.SegmentID}
			for _, a := range r.Atoms {
				if !keep[a.Index] {
					continue
				}
				renum[a.Index] = atom
				nr.Atoms = append(nr.Atoms, Atom{Index: atom, Name: a.Name, Element: a.Element})
				atom++
			}
			if len(nr.Atoms) > 0 {
				nc.Residues = append(nc.Residues, nr)
				res++
			}
		}
		if len(nc.Residues) > 0 {
			ret.Chains = append(ret.Chains, nc)
		}
	}
	for _, b := range T.Bonds {
		i, ok1 := renum[b[0]]
		j, ok2 := renum[b[1]]
		if ok1 && ok2 {
			ret.Bonds = append(ret.Bonds, [2]int{i, j})
		}
	}
	return ret, nil
}

//AtomCount returns the number of atoms of a JSON topology.
func AtomCount(s string) (int, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return t.NAtoms(), nil
}

//Subset returns the JSON topology reduced to the atoms idxs.
func Subset(s string, idxs []int) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	sub, err := t.Subset(idxs)
	if err != nil {
		return "", err
	}
	return sub.JSON()
}

//Elements returns the element symbol of every atom, in index order.
func (T *Topology) Elements() []string {
	out := make([]string, 0, T.NAtoms())
	for _, c := range T.Chains {
		for _, r := range c.Residues {
			for _, a := range r.Atoms {
				out = append(out, a.Element)
			}
		}
	}
	return slices.Clip(out)
}
