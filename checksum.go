package p4forest

import (
	"encoding/binary"
	"hash/crc32"
)

// Checksum returns a CRC-32 digest over every local quadrant's
// (X, Y, Level) triple, tree by tree in order. Two forests with
// identical local quadrant sets produce identical checksums regardless
// of how they arrived there (refine-then-balance versus a direct
// construction, for instance), making it a cheap regression oracle for
// the Concrete Scenarios (spec §8). There is no pack dependency that
// wraps CRC-32/64 in a richer API than the standard library already
// provides, so this is one of the few places p4forest reaches directly
// into hash/crc32 rather than a third-party hashing package.
func (f *Forest) Checksum() uint32 {
	crc := crc32.NewIEEE()
	buf := make([]byte, 9)
	for i := range f.Trees {
		for _, q := range f.Trees[i].Quadrants {
			binary.LittleEndian.PutUint32(buf[0:4], uint32(q.X))
			binary.LittleEndian.PutUint32(buf[4:8], uint32(q.Y))
			buf[8] = byte(q.Level)
			crc.Write(buf)
		}
	}
	return crc.Sum32()
}
