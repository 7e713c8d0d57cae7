package p4forest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faceAdjacent reports whether q1 and q2 share a positive-length edge
// segment (as opposed to touching only at a single corner point).
func faceAdjacent(q1, q2 Quadrant) bool {
	s1, s2 := sideLen(q1.Level), sideLen(q2.Level)
	xOverlap := q1.X < q2.X+s2 && q2.X < q1.X+s1
	yOverlap := q1.Y < q2.Y+s2 && q2.Y < q1.Y+s1
	xTouch := q1.X+s1 == q2.X || q2.X+s2 == q1.X
	yTouch := q1.Y+s1 == q2.Y || q2.Y+s2 == q1.Y
	return (xOverlap && yTouch) || (yOverlap && xTouch)
}

// is2to1Balanced brute-forces the adjacency check across every pair of
// leaves in qs: no two adjacent leaves (face-adjacent always, also
// corner-adjacent when corners is true) may differ by more than one
// level.
func is2to1Balanced(qs []Quadrant, corners bool) bool {
	for i := range qs {
		for j := range qs {
			if i == j {
				continue
			}
			adjacent := faceAdjacent(qs[i], qs[j])
			if !adjacent && corners {
				adjacent = quadrantsTouch(qs[i], qs[j])
			}
			if !adjacent {
				continue
			}
			diff := int(qs[i].Level) - int(qs[j].Level)
			if diff > 1 || diff < -1 {
				return false
			}
		}
	}
	return true
}

func TestBalanceEnforces2to1Face(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	// Refine only one corner deeply, leaving a sharp size jump against
	// its siblings.
	deep := kids[0].Children()[3].Children()[3]
	tr := treeFromQuadrants(deep, kids[1], kids[2], kids[3])
	require.True(t, tr.IsSorted())

	pool := NewQuadrantPool()
	Balance(tr, BalanceFace, pool)

	assert.True(t, tr.IsLinear())
	assert.True(t, is2to1Balanced(tr.Quadrants, false))
}

func TestBalanceIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var qs []Quadrant
	for i := 0; i < 40; i++ {
		qs = append(qs, randomQuadrant(rng, 6))
	}
	insertionSort(qs)
	tr := &Tree{Quadrants: qs}
	tr.recomputeLevels()
	Linearize(tr)

	pool := NewQuadrantPool()
	Balance(tr, BalanceFaceCorner, pool)
	once := append([]Quadrant(nil), tr.Quadrants...)

	Balance(tr, BalanceFaceCorner, pool)
	assert.Equal(t, len(once), len(tr.Quadrants))
	for i := range once {
		assert.True(t, Equal(once[i], tr.Quadrants[i]))
	}
}

func TestBalanceNoneIsNoOpOnAlreadyCompleteTree(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	tr := treeFromQuadrants(kids[0], kids[1], kids[2], kids[3])
	before := append([]Quadrant(nil), tr.Quadrants...)
	Balance(tr, BalanceNone, NewQuadrantPool())
	assert.Equal(t, before, tr.Quadrants)
}

func TestBalanceNoneCompletesGaps(t *testing.T) {
	root := Quadrant{Level: 0}
	kids := root.Children()
	// deep is the only descendant of kids[0] present, and it is kids[0]'s
	// last descendant at its level: the rest of kids[0] precedes deep and
	// lies outside the span Balance works in, so nothing is added there.
	// BalanceNone must leave the tree linear and complete from deep
	// through kids[3], even though no 2:1 propagation is requested.
	deep := kids[0].Children()[3].Children()[3]
	tr := treeFromQuadrants(deep, kids[1], kids[2], kids[3])

	pool := NewQuadrantPool()
	Balance(tr, BalanceNone, pool)

	assert.Equal(t, 0, pool.Outstanding())
	assert.True(t, tr.IsLinear())
	assert.True(t, tr.IsComplete())
	assert.True(t, Equal(tr.Quadrants[0], deep))
	assert.True(t, Equal(tr.Quadrants[len(tr.Quadrants)-1], kids[3]))
}
