package p4forest

// mortonBits returns level + (32 - MaxLevel), the number of bits of each
// coordinate that participate in the linear id at the given level; the
// extra (32 - MaxLevel) bits accommodate the sign-preserving shift used
// by extended (out-of-root) coordinates.
func mortonBits(level Level) int {
	return int(level) + (32 - MaxLevel)
}

// LinearID returns the Morton (Z-order) linear index of q truncated to
// the given level, by taking the top mortonBits(level) bits of each
// coordinate (preserving sign) and bit-interleaving them, x in the even
// positions and y in the odd ones. level must not exceed q.Level.
func (q Quadrant) LinearID(level Level) uint64 {
	if level > q.Level {
		panic("p4forest: LinearID requested below quadrant's own level")
	}
	shift := uint(MaxLevel - level)
	x := uint64(q.X >> shift)
	y := uint64(q.Y >> shift)

	var id uint64
	bits := mortonBits(level)
	for i := 0; i < bits; i++ {
		id |= (x & (uint64(1) << uint(i))) << uint(i)
		id |= (y & (uint64(1) << uint(i))) << uint(i+1)
	}
	return id
}

// SetMorton reconstructs the unique extended quadrant at the given level
// whose LinearID equals id, including the sign bit for out-of-root
// coordinates. It is the exact inverse of LinearID.
func SetMorton(level Level, id uint64) Quadrant {
	var x, y int32
	bits := mortonBits(level)
	for i := 0; i < bits; i++ {
		x |= int32((id & (uint64(1) << uint(2*i))) >> uint(i))
		y |= int32((id & (uint64(1) << uint(2*i+1))) >> uint(i+1))
	}
	shift := uint(MaxLevel - level)
	return Quadrant{X: x << shift, Y: y << shift, Level: level}
}
