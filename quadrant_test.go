package p4forest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadrantChildrenAndParent(t *testing.T) {
	q := Quadrant{X: 0, Y: 0, Level: 2}
	kids := q.Children()
	for i, c := range kids {
		assert.Equal(t, q.Level+1, c.Level)
		assert.Equal(t, i, c.ChildID())
		parent := c.Parent()
		assert.True(t, Equal(parent, q), "child %d parent roundtrip", i)
	}
}

func TestIsFamily(t *testing.T) {
	q := Quadrant{X: sideLen(3), Y: sideLen(3), Level: 3}
	kids := q.Children()
	assert.True(t, IsFamily(kids[0], kids[1], kids[2], kids[3]))
	assert.False(t, IsFamily(kids[0], kids[1], kids[2], kids[2]))
}

func TestIsAncestorMatchesOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		q1 := randomQuadrant(rng, 6)
		q2 := randomQuadrant(rng, 6)
		assert.Equal(t, q1.IsAncestorD(q2), q1.IsAncestor(q2))
	}
}

func TestIsNextMatchesOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		q1 := randomQuadrant(rng, 6)
		q2 := randomQuadrant(rng, 6)
		assert.Equal(t, q1.IsNextD(q2), q1.IsNext(q2))
	}
}

func TestFirstLastDescendant(t *testing.T) {
	q := Quadrant{X: sideLen(2), Y: sideLen(2), Level: 2}
	first := q.FirstDescendant(5)
	last := q.LastDescendant(5)
	require.Equal(t, Level(5), first.Level)
	require.Equal(t, Level(5), last.Level)
	assert.True(t, q.IsAncestor(first))
	assert.True(t, q.IsAncestor(last))
	assert.True(t, Compare(first, last) < 0)
}

// randomQuadrant returns a uniformly positioned, valid-aligned quadrant
// at a random level in [0, maxLevel].
func randomQuadrant(rng *rand.Rand, maxLevel Level) Quadrant {
	level := Level(rng.Intn(int(maxLevel) + 1))
	step := sideLen(level)
	n := RootLen / step
	x := QCoord(rng.Intn(int(n))) * step
	y := QCoord(rng.Intn(int(n))) * step
	return Quadrant{X: x, Y: y, Level: level}
}
