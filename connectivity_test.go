package p4forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitSquareConnectivity returns the trivial single-tree connectivity
// whose one tree is its own neighbor across every face (the convention
// meshfile.Read and spec Concrete Scenario 1 use for "no neighbor").
func unitSquareConnectivity() *Connectivity {
	return &Connectivity{
		NumVertices:  4,
		NumTrees:     1,
		Vertices:     []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		TreeToVertex: []int32{0, 1, 2, 3},
		TreeToTree:   []int32{0, 0, 0, 0},
		TreeToFace:   []int8{0, 1, 2, 3},
		VTTOffset:    []int32{0, 1, 2, 3, 4},
		VertexToTree: []int32{0, 0, 0, 0},
	}
}

func TestConnectivityIsValid(t *testing.T) {
	c := unitSquareConnectivity()
	assert.True(t, c.IsValid())
}

func TestConnectivityIsValidRejectsBadLengths(t *testing.T) {
	c := unitSquareConnectivity()
	c.TreeToVertex = c.TreeToVertex[:2]
	assert.False(t, c.IsValid())
}

func TestFaceTransformSelfReference(t *testing.T) {
	c := unitSquareConnectivity()
	nt, tcode := c.FaceTransform(0, 2)
	assert.Equal(t, int32(0), nt)
	assert.Equal(t, TransformRotate180, tcode)
}

func TestFindCornerInfoSingleTree(t *testing.T) {
	c := unitSquareConnectivity()
	infos := c.FindCornerInfo(0, 1)
	require.Len(t, infos, 1)
	assert.Equal(t, int32(0), infos[0].NTree)
	assert.Equal(t, 1, infos[0].NCorner)
}
