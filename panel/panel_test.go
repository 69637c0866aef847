package panel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/westore/internal/werr"
	"github.com/rmera/westore/records"
)

var fields = []string{StepIdx, WalkerIdx, DecisionID, TargetIdxs}

func rec(cycle int, step, walker, decision float64, targets ...float64) records.Record {
	return records.Record{
		CycleIdx: cycle,
		Fields:   fields,
		Values:   [][]float64{{step}, {walker}, {decision}, targets},
	}
}

//two walkers: cycle 0 clones walker 0 over squashed walker 1, cycle 1
//does nothing, cycle 2 has no records.
func sample() []records.Record {
	return []records.Record{
		rec(1, 0, 1, 1, 1),
		rec(0, 0, 0, 2, 0, 1),
		rec(0, 0, 1, 3, 0),
		rec(1, 0, 0, 1, 0),
	}
}

func TestBuild(Te *testing.T) {
	p, err := Build(sample(), 3)
	require.NoError(Te, err)
	require.Len(Te, p, 3)
	assert.Len(Te, p[0], 1)
	assert.Len(Te, p[0][0], 2)
	assert.Empty(Te, p[2])
	d, _ := p[0][0][1].Scalar(DecisionID)
	assert.Equal(Te, 3.0, d)
	w, _ := p[1][0][1].Scalar(WalkerIdx)
	assert.Equal(Te, 1.0, w)
	assert.Equal(Te, []int{2, 2, 0}, p.NumWalkers())

	_, err = Build(sample(), 1)
	assert.True(Te, errors.Is(err, werr.InvalidContig))
	_, err = Build([]records.Record{{CycleIdx: 0}}, 1)
	assert.True(Te, errors.Is(err, werr.FieldNotFound))
	_, err = Build(append(sample(), rec(0, 0, 1, 1, 1)), 3)
	assert.True(Te, errors.Is(err, werr.SchemaConflict))
}

func TestParents(Te *testing.T) {
	p, err := Build(sample(), 3)
	require.NoError(Te, err)
	par, err := Parents(p, CloneMerge(), 2)
	require.NoError(Te, err)
	assert.Equal(Te, [][]int{{0, 0}, {0, 1}, {0, 1}}, par)

	l, err := Lineage(par, 1, 2)
	require.NoError(Te, err)
	assert.Equal(Te, [][2]int{{1, 0}, {1, 1}, {1, 2}}, l)
	l, err = Lineage(par, 0, 0)
	require.NoError(Te, err)
	assert.Equal(Te, [][2]int{{0, 0}}, l)
	_, err = Lineage(par, 0, 3)
	assert.True(Te, errors.Is(err, werr.InvalidContig))
	_, err = Lineage(par, 0, -1)
	assert.True(Te, errors.Is(err, werr.InvalidContig))

	sp, err := StepParents(p[0][0], CloneMerge())
	require.NoError(Te, err)
	assert.Equal(Te, []int{0, 0}, sp)

	_, err = StepParents([]*records.Record{{Fields: fields, Values: [][]float64{{0}, {0}, {9}, {0}}}}, CloneMerge())
	assert.Error(Te, err)
}

func TestMultiStepParents(Te *testing.T) {
	//step 0 swaps the walkers, step 1 clones slot 1 over slot 0
	recs := []records.Record{
		rec(0, 0, 0, 1, 1),
		rec(0, 0, 1, 1, 0),
		rec(0, 1, 0, 3, 1),
		rec(0, 1, 1, 2, 0, 1),
	}
	p, err := Build(recs, 1)
	require.NoError(Te, err)
	par, err := Parents(p, CloneMerge(), 2)
	require.NoError(Te, err)
	assert.Equal(Te, [][]int{{0, 0}}, par)
}

func TestSorted(Te *testing.T) {
	s := Sorted(sample())
	assert.Equal(Te, 0, s[0].CycleIdx)
	w, _ := s[0].Scalar(WalkerIdx)
	assert.Equal(Te, 0.0, w)
	w, _ = s[3].Scalar(WalkerIdx)
	assert.Equal(Te, 1.0, w)
	assert.Equal(Te, 1, s[3].CycleIdx)
}
