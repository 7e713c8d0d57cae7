package p4forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteRegionProducesLinearCompleteTree(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	q1 := kids[0].Children()[3] // deepest corner of the first child
	q2 := kids[3]               // last top-level child

	pool := NewQuadrantPool()
	tr := &Tree{}
	CompleteRegion(q1, q2, true, tr, pool)

	require.True(t, tr.IsSorted())
	assert.Equal(t, 0, pool.Outstanding())
	assert.True(t, Equal(tr.Quadrants[0], q1))
	assert.True(t, Equal(tr.Quadrants[len(tr.Quadrants)-1], q2))

	for i := 1; i < len(tr.Quadrants); i++ {
		assert.False(t, tr.Quadrants[i-1].IsAncestor(tr.Quadrants[i]))
	}
}

func TestCompleteRegionRequiresOrder(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	pool := NewQuadrantPool()
	tr := &Tree{}
	assert.Panics(t, func() {
		CompleteRegion(kids[3], kids[0], true, tr, pool)
	})
}
