package p4forest

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/rubendibattista/p4forest/comm"
)

// quadrantRecordSize is the fixed header of one quadrant's wire form for
// PartitionGiven: tree id, X, Y, level. A fixed-width byte layout keeps
// the wire format independent of this process's struct padding/
// alignment (spec §4.6 Design Note), unlike sending Quadrant values
// directly. Each record is followed by forest.DataSize bytes of user
// payload, so the full per-record stride is recordSize(forest), not
// this constant alone.
const quadrantRecordSize = 13 // 4 bytes tree id, 4 bytes X, 4 bytes Y, 1 byte level

// recordSize returns the full wire stride of one quadrant record,
// header plus its user payload (spec §4.6's
// "quadrant[...] | byte user_payload[Σ·dataSize]" layout, folded
// per-record here instead of into one trailing block, which is
// equivalent once every record has the same DataSize).
func recordSize(forest *Forest) int {
	return quadrantRecordSize + forest.DataSize
}

// PartitionGiven redistributes forest's local quadrants to match a new
// global partition boundary, newGlobalFirst (length NumRanks+1, same
// units as Forest.GlobalFirstPosition), by exchanging flat quadrant
// records over fabric. Every rank must call PartitionGiven with the
// same newGlobalFirst.
func PartitionGiven(ctx context.Context, forest *Forest, newGlobalFirst []GlobalQuadIndex, fabric comm.Fabric) error {
	rank := fabric.Rank()
	size := fabric.Size()
	if len(newGlobalFirst) != size+1 {
		return errors.New("p4forest: newGlobalFirst must have length Size()+1")
	}

	oldFirst := forest.GlobalFirstPosition
	myOldStart := oldFirst[rank]
	myOldEnd := oldFirst[rank+1]
	myNewStart := newGlobalFirst[rank]
	myNewEnd := newGlobalFirst[rank+1]

	flat := flattenLocalQuadrants(forest)

	sendTo := make(map[int][]taggedQuadrant)
	for r := 0; r < size; r++ {
		winStart := newGlobalFirst[r]
		winEnd := newGlobalFirst[r+1]
		lo := maxIdx(myOldStart, winStart)
		hi := minIdx(myOldEnd, winEnd)
		if lo >= hi {
			continue
		}
		sendTo[r] = flat[lo-myOldStart : hi-myOldStart]
	}

	recvFrom := make(map[int][]byte)
	var reqs []comm.Request
	for r, qs := range sendTo {
		if r == rank {
			continue
		}
		buf := encodeTagged(qs, forest)
		// The payload bytes are copied into buf above; the handles
		// themselves now leave this rank (spec §4.6 step 5), freed back
		// to the local pool so the receiving rank's fresh Alloc is the
		// only owner of the data going forward.
		for _, tq := range qs {
			if tq.Quad.Payload.Kind == PayloadUser {
				forest.userData.Free(tq.Quad.Payload.User)
			}
		}
		reqs = append(reqs, fabric.ISend(r, partitionTag, buf))
	}

	rsize := recordSize(forest)
	for r := 0; r < size; r++ {
		if r == rank {
			continue
		}
		winStart := oldFirst[r]
		winEnd := oldFirst[r+1]
		lo := maxIdx(myNewStart, winStart)
		hi := minIdx(myNewEnd, winEnd)
		if lo >= hi {
			continue
		}
		buf := make([]byte, int(hi-lo)*rsize)
		reqs = append(reqs, fabric.IRecv(r, partitionTag, buf))
		recvFrom[r] = buf
	}

	if err := fabric.WaitAll(ctx, reqs); err != nil {
		return errors.Wrap(err, "p4forest: partition exchange failed")
	}

	merged := make([]taggedQuadrant, 0, myNewEnd-myNewStart)
	if local, ok := sendTo[rank]; ok {
		merged = append(merged, local...)
	}
	for _, buf := range recvFrom {
		// Step 7: every received record gets a freshly allocated local
		// payload slot, so userData.Outstanding() only ever counts
		// quadrants this rank actually owns right now.
		merged = append(merged, decodeTagged(buf, forest)...)
	}

	rebuildTreesFromTagged(forest, merged)
	forest.GlobalFirstPosition = newGlobalFirst

	positions, err := recomputeGlobalFirstPositions(ctx, forest, fabric)
	if err != nil {
		return err
	}
	forest.GlobalPositions = positions

	forest.log.Info().
		Int("rank", rank).
		Int("local_quadrants", len(merged)).
		Msg("partition complete")
	return nil
}

// taggedQuadrant pairs a quadrant with the id of the tree it belongs
// to, the unit PartitionGiven exchanges and sorts by.
type taggedQuadrant struct {
	TreeID int32
	Quad   Quadrant
}

func taggedLess(a, b taggedQuadrant) bool {
	if a.TreeID != b.TreeID {
		return a.TreeID < b.TreeID
	}
	return Compare(a.Quad, b.Quad) < 0
}

const partitionTag = 42

// encodeTagged serializes qs into a flat byte buffer, one
// recordSize(forest)-byte record per quadrant: the fixed tree/x/y/level
// header, followed by forest.DataSize bytes of user payload copied out
// of forest's pool (zero-filled if the quadrant carries none), matching
// spec §4.6's "quadrant plus its user payload byte-for-byte" wire
// contract.
func encodeTagged(qs []taggedQuadrant, forest *Forest) []byte {
	rsize := recordSize(forest)
	buf := make([]byte, len(qs)*rsize)
	for i, tq := range qs {
		off := i * rsize
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(tq.TreeID))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(tq.Quad.X))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(tq.Quad.Y))
		buf[off+12] = byte(tq.Quad.Level)
		if forest.DataSize > 0 && tq.Quad.Payload.Kind == PayloadUser {
			copy(buf[off+quadrantRecordSize:off+rsize], forest.userData.Bytes(tq.Quad.Payload.User))
		}
	}
	return buf
}

// decodeTagged is encodeTagged's inverse: every record's payload bytes
// are copied into a freshly allocated slot of forest's own user-data
// pool (spec §4.6 step 7), so the returned quadrants own their data
// independently of the sender's pool.
func decodeTagged(buf []byte, forest *Forest) []taggedQuadrant {
	rsize := recordSize(forest)
	n := len(buf) / rsize
	out := make([]taggedQuadrant, n)
	for i := 0; i < n; i++ {
		off := i * rsize
		q := Quadrant{
			X:     QCoord(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
			Y:     QCoord(binary.LittleEndian.Uint32(buf[off+8 : off+12])),
			Level: Level(buf[off+12]),
		}
		if forest.DataSize > 0 {
			h := forest.userData.Alloc()
			copy(forest.userData.Bytes(h), buf[off+quadrantRecordSize:off+rsize])
			q.Payload = Payload{Kind: PayloadUser, User: h}
		}
		out[i] = taggedQuadrant{
			TreeID: int32(binary.LittleEndian.Uint32(buf[off : off+4])),
			Quad:   q,
		}
	}
	return out
}

// flattenLocalQuadrants concatenates every local tree's quadrants in
// tree-major Morton order, tagged with their tree id, matching the
// ordering GlobalFirstPosition indexes into.
func flattenLocalQuadrants(forest *Forest) []taggedQuadrant {
	var flat []taggedQuadrant
	for i := forest.FirstLocalTree; i <= forest.LastLocalTree; i++ {
		for _, q := range forest.Trees[i].Quadrants {
			flat = append(flat, taggedQuadrant{TreeID: i, Quad: q})
		}
	}
	return flat
}

// rebuildTreesFromTagged sorts merged by (tree id, Compare) and
// repopulates forest.Trees and the local-tree window from it.
func rebuildTreesFromTagged(forest *Forest, merged []taggedQuadrant) {
	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && taggedLess(merged[j], merged[j-1]); j-- {
			merged[j-1], merged[j] = merged[j], merged[j-1]
		}
	}

	for i := range forest.Trees {
		forest.Trees[i].Quadrants = nil
	}
	if len(merged) == 0 {
		forest.FirstLocalTree = 0
		forest.LastLocalTree = -1
		return
	}

	forest.FirstLocalTree = merged[0].TreeID
	forest.LastLocalTree = merged[len(merged)-1].TreeID
	for _, tq := range merged {
		forest.Trees[tq.TreeID].Quadrants = append(forest.Trees[tq.TreeID].Quadrants, tq.Quad)
	}
	for i := forest.FirstLocalTree; i <= forest.LastLocalTree; i++ {
		forest.Trees[i].recomputeLevels()
	}
}

// recomputeGlobalFirstPositions implements spec §4.6 step 9: every rank
// exchanges the (treeIndex, x, y) position of its own first local
// quadrant via Allgather, so that afterwards every rank holds the full
// GlobalPositions array, not just its own slice of it.
func recomputeGlobalFirstPositions(ctx context.Context, forest *Forest, fabric comm.Fabric) ([]GlobalPosition, error) {
	size := fabric.Size()

	buf := make([]byte, 12)
	hasLocal := forest.FirstLocalTree <= forest.LastLocalTree &&
		len(forest.Trees[forest.FirstLocalTree].Quadrants) > 0
	if hasLocal {
		q := forest.Trees[forest.FirstLocalTree].Quadrants[0]
		binary.LittleEndian.PutUint32(buf[0:4], uint32(forest.FirstLocalTree))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(q.X))
		binary.LittleEndian.PutUint32(buf[8:12], uint32(q.Y))
	} else {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(forest.Connectivity.NumTrees))
	}

	gathered, err := fabric.Allgather(ctx, buf)
	if err != nil {
		return nil, errors.Wrap(err, "p4forest: global-first-position exchange failed")
	}

	out := make([]GlobalPosition, size+1)
	for r, b := range gathered {
		out[r] = GlobalPosition{
			TreeIndex: int32(binary.LittleEndian.Uint32(b[0:4])),
			X:         QCoord(binary.LittleEndian.Uint32(b[4:8])),
			Y:         QCoord(binary.LittleEndian.Uint32(b[8:12])),
		}
	}
	out[size] = GlobalPosition{TreeIndex: forest.Connectivity.NumTrees}
	return out, nil
}

func maxIdx(a, b GlobalQuadIndex) GlobalQuadIndex {
	if a > b {
		return a
	}
	return b
}

func minIdx(a, b GlobalQuadIndex) GlobalQuadIndex {
	if a < b {
		return a
	}
	return b
}
