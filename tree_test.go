package p4forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func treeFromQuadrants(qs ...Quadrant) *Tree {
	t := &Tree{Quadrants: qs}
	t.recomputeLevels()
	return t
}

func TestTreeIsSortedLinearComplete(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()

	tr := treeFromQuadrants(kids[0], kids[1], kids[2], kids[3])
	assert.True(t, tr.IsSorted())
	assert.True(t, tr.IsLinear())
	assert.True(t, tr.IsComplete())

	withAncestor := treeFromQuadrants(root, kids[1])
	assert.True(t, withAncestor.IsSorted())
	assert.False(t, withAncestor.IsLinear())
}

func TestTreeNotSorted(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	tr := treeFromQuadrants(kids[3], kids[0])
	assert.False(t, tr.IsSorted())
}

func TestTreeNotComplete(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	// Skip kids[1]: kids[0] and kids[2] are not Morton successors.
	tr := treeFromQuadrants(kids[0], kids[2])
	assert.True(t, tr.IsSorted())
	assert.False(t, tr.IsComplete())
}

func TestLowerUpperBound(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	qs := []Quadrant{kids[0], kids[1], kids[2], kids[3]}

	idx := lowerBound(qs, kids[2], 0)
	assert.Equal(t, 2, idx)

	idx = upperBound(qs, kids[1], len(qs)-1)
	assert.Equal(t, 1, idx)

	// Searching below everything / above everything.
	below := Quadrant{X: -sideLen(1), Y: -sideLen(1), Level: 1}
	assert.Equal(t, 0, lowerBound(qs, below, 0))
	above := Quadrant{X: RootLen, Y: RootLen, Level: 1}
	assert.Equal(t, -1, lowerBound(qs, above, 0))
	assert.Equal(t, len(qs)-1, upperBound(qs, above, 0))
}
