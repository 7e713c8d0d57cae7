package p4forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewForestIsValid(t *testing.T) {
	c := unitSquareConnectivity()
	f := NewForest(c, 8)
	require.NoError(t, f.IsValid())
	assert.Equal(t, 0, f.LocalNumQuadrants())
	assert.Equal(t, int32(0), f.FirstLocalTree)
	assert.Equal(t, int32(0), f.LastLocalTree)
}

func TestForestIsValidRejectsBadConnectivity(t *testing.T) {
	c := unitSquareConnectivity()
	f := NewForest(c, 8)
	f.Connectivity.TreeToVertex = f.Connectivity.TreeToVertex[:2]
	assert.Error(t, f.IsValid())
}

func TestForestIsValidRejectsNonLinearTree(t *testing.T) {
	c := unitSquareConnectivity()
	f := NewForest(c, 8)
	root := Quadrant{Level: 0}
	kids := root.Children()
	f.Trees[0].Quadrants = []Quadrant{root, kids[0]}
	assert.Error(t, f.IsValid())
}

func TestForestLocalNumQuadrantsCountsOnlyLocalTrees(t *testing.T) {
	c := &Connectivity{
		NumVertices:  4,
		NumTrees:     2,
		Vertices:     make([]float64, 12),
		TreeToVertex: []int32{0, 1, 2, 3, 0, 1, 2, 3},
		TreeToTree:   []int32{0, 0, 0, 0, 1, 1, 1, 1},
		TreeToFace:   []int8{0, 1, 2, 3, 0, 1, 2, 3},
		VTTOffset:    []int32{0, 2, 4, 6, 8},
		VertexToTree: []int32{0, 1, 0, 1, 0, 1, 0, 1},
	}
	f := NewForest(c, 0)
	root := Quadrant{Level: 0}
	kids := root.Children()
	f.Trees[0].Quadrants = kids[:]
	f.Trees[0].recomputeLevels()
	f.Trees[1].Quadrants = []Quadrant{root}

	f.FirstLocalTree, f.LastLocalTree = 0, 0
	assert.Equal(t, 4, f.LocalNumQuadrants())

	f.FirstLocalTree, f.LastLocalTree = 0, 1
	assert.Equal(t, 5, f.LocalNumQuadrants())
}

func TestForestQuadrantPoolOutstandingFailsValidation(t *testing.T) {
	c := unitSquareConnectivity()
	f := NewForest(c, 8)
	f.QuadrantPool().Alloc()
	assert.Error(t, f.IsValid())
}
