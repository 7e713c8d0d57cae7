package p4forest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMortonRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		q := randomQuadrant(rng, MaxLevel)
		id := q.LinearID(q.Level)
		back := SetMorton(q.Level, id)
		assert.True(t, Equal(q, back), "roundtrip mismatch for %s", q)
	}
}

func TestMortonIdentityAtRoot(t *testing.T) {
	root := Quadrant{Level: 0}
	assert.Equal(t, uint64(0), root.LinearID(0))
	assert.True(t, Equal(root, SetMorton(0, 0)))
}

func TestMortonOrderMatchesCompare(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	level := Level(8)
	for i := 0; i < 200; i++ {
		a := randomQuadrantAtLevel(rng, level)
		b := randomQuadrantAtLevel(rng, level)
		cmp := Compare(a, b)
		idA, idB := a.LinearID(level), b.LinearID(level)
		switch {
		case idA < idB:
			assert.True(t, cmp < 0)
		case idA > idB:
			assert.True(t, cmp > 0)
		default:
			assert.True(t, cmp == 0)
		}
	}
}

func randomQuadrantAtLevel(rng *rand.Rand, level Level) Quadrant {
	step := sideLen(level)
	n := int(RootLen / step)
	return Quadrant{X: QCoord(rng.Intn(n)) * step, Y: QCoord(rng.Intn(n)) * step, Level: level}
}
