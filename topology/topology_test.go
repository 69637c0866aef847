package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/westore/internal/werr"
)

//two chains: a water (3 atoms) and a single sodium.
const water = `{"chains":[{"index":0,"residues":[{"index":0,"name":"HOH","resSeq":1,"segmentID":"","atoms":[{"index":0,"name":"O","element":"O"},{"index":1,"name":"H1","element":"H"},{"index":2,"name":"H2","element":"H"}]}]},{"index":1,"residues":[{"index":1,"name":"NA","resSeq":2,"segmentID":"","atoms":[{"index":3,"name":"NA","element":"Na"}]}]}],"bonds":[[0,1],[0,2]]}`

func TestAtomCount(Te *testing.T) {
	n, err := AtomCount(water)
	require.NoError(Te, err)
	assert.Equal(Te, 4, n)
	_, err = AtomCount("{not json")
	assert.True(Te, errors.Is(err, werr.SchemaConflict))
}

func TestSubset(Te *testing.T) {
	s, err := Subset(water, []int{0, 2})
	require.NoError(Te, err)
	t, err := Parse(s)
	require.NoError(Te, err)
	assert.Equal(Te, 2, t.NAtoms())
	assert.Len(Te, t.Chains, 1)
	assert.Equal(Te, [][2]int{{0, 1}}, t.Bonds)
	assert.Equal(Te, []string{"O", "H"}, t.Elements())

	s, err = Subset(water, []int{3})
	require.NoError(Te, err)
	t, err = Parse(s)
	require.NoError(Te, err)
	require.Len(Te, t.Chains, 1)
	assert.Equal(Te, 0, t.Chains[0].Index)
	assert.Equal(Te, "NA", t.Chains[0].Residues[0].Name)
	assert.Empty(Te, t.Bonds)

	_, err = Subset(water, []int{7})
	assert.True(Te, errors.Is(err, werr.ShapeMismatch))
}
