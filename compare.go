package p4forest

// Compare realizes the total order over extended quadrants described in
// spec §4.1: equal coordinates order by level (shallower first);
// otherwise the axis whose xor-difference has the higher set bit decides
// (y over x on ties at the same bit), and the deciding coordinates are
// compared as signed values, so the one-root-length band below zero
// sorts below the in-root range.
func Compare(q1, q2 Quadrant) int {
	exclorx := uint32(q1.X) ^ uint32(q2.X)
	exclory := uint32(q1.Y) ^ uint32(q2.Y)

	if exclorx == 0 && exclory == 0 {
		return int(q1.Level) - int(q2.Level)
	}

	var axis1, axis2 QCoord
	if log2u32(exclory) >= log2u32(exclorx) {
		axis1, axis2 = q1.Y, q2.Y
	} else {
		axis1, axis2 = q1.X, q2.X
	}

	p1 := rebias(axis1)
	p2 := rebias(axis2)
	diff := p1 - p2
	switch {
	case diff < 0:
		return -1
	case diff > 0:
		return 1
	default:
		return 0
	}
}

// rebias maps a signed extended coordinate to a non-negative ordering
// key by adding 1<<(MaxLevel+2) to every value, so the one-root-length
// band below zero keeps its place below the in-root range.
func rebias(x QCoord) int64 {
	return int64(x) + int64(1)<<(MaxLevel+2)
}

// log2u32 returns floor(log2(x)) for x > 0, and -1 for x == 0.
func log2u32(x uint32) int {
	if x == 0 {
		return -1
	}
	n := -1
	for x != 0 {
		n++
		x >>= 1
	}
	return n
}

// Equal reports whether q1 and q2 denote the identical extended quadrant.
func Equal(q1, q2 Quadrant) bool {
	return q1.Level == q2.Level && q1.X == q2.X && q1.Y == q2.Y
}

// hashKey returns a stable key for a quadrant, its linear id at its own
// level; quadrants of different levels can share a key. Used by the level-bucketed
// hash the balance engine maintains (see hash.go).
func hashKey(q Quadrant) uint64 {
	return q.LinearID(q.Level)
}

// NearestCommonAncestor returns the finest quadrant that is an ancestor
// of (or equal to) both q1 and q2, per spec §4.1: let m = floor(log2(excl))+1
// where excl is the bitwise-or of the x and y xor-differences; the result
// anchors at q1's coordinates masked to m bits and its level is the
// shallower of q1.Level, q2.Level, and MaxLevel-m.
func NearestCommonAncestor(q1, q2 Quadrant) Quadrant {
	exclorx := uint32(q1.X) ^ uint32(q2.X)
	exclory := uint32(q1.Y) ^ uint32(q2.Y)
	maxclor := exclorx | exclory
	m := log2u32(maxclor) + 1

	mask := QCoord(1)<<uint(m) - 1
	level := Level(MaxLevel - m)
	if q1.Level < level {
		level = q1.Level
	}
	if q2.Level < level {
		level = q2.Level
	}
	return Quadrant{X: q1.X &^ mask, Y: q1.Y &^ mask, Level: level}
}

// NearestCommonAncestorD is the slow, definitional form of
// NearestCommonAncestor: promote the deeper quadrant up to the shallower
// quadrant's level, then walk both towards the root in lockstep until
// they coincide. Used as a test oracle for NearestCommonAncestor.
func NearestCommonAncestorD(q1, q2 Quadrant) Quadrant {
	s1, s2 := q1, q2
	for s1.Level > s2.Level {
		s1 = s1.Parent()
	}
	for s1.Level < s2.Level {
		s2 = s2.Parent()
	}
	for !Equal(s1, s2) {
		s1 = s1.Parent()
		s2 = s2.Parent()
	}
	return Quadrant{X: s1.X, Y: s1.Y, Level: s1.Level}
}
