package p4forest

import (
	"github.com/pkg/errors"

	"github.com/rubendibattista/p4forest/forestlog"
)

// Forest owns one Tree per connectivity tree that is at least partially
// local to this rank, plus the pools every quadrant-mutating operation
// draws from and the partition boundaries that say which quadrants are
// actually local versus held only as off-process context (spec §5/§6).
type Forest struct {
	Connectivity *Connectivity
	Trees        []Tree
	DataSize     int

	FirstLocalTree int32
	LastLocalTree  int32

	// GlobalFirstPosition[r] is the global index of the first quadrant
	// rank r owns, for r in 0..NumRanks; GlobalFirstPosition[NumRanks]
	// is the total quadrant count. This is spec §3's globalLastQuadIndex
	// prefix-sum array, extended by one boundary slot: the scalar form
	// PartitionGiven's own windowing arithmetic needs. Maintained by
	// PartitionGiven.
	GlobalFirstPosition []GlobalQuadIndex

	// GlobalPositions[r] is spec §3's globalFirstPosition proper: rank
	// r's first owned quadrant expressed as (treeIndex, x, y) at the
	// deepest level, not merely its running index. Slot NumRanks always
	// holds the sentinel (NumTrees, 0, 0). Recomputed by PartitionGiven
	// (spec §4.6 step 9) via an Allgather of each rank's own first local
	// quadrant; a rank left with an empty local range after the new
	// partition cannot observe its successor's position locally and
	// reports the same sentinel in that case, a documented gap rather
	// than a collective lookup of the next non-empty rank.
	GlobalPositions []GlobalPosition

	quadrantPool *QuadrantPool
	userData     *UserDataPool
	log          forestlog.Logger
}

// GlobalQuadIndex is a rank-independent running count of quadrants
// across the whole forest in tree-major, Morton order.
type GlobalQuadIndex int64

// GlobalPosition names a quadrant's location in the forest-wide Morton
// sequence as the (treeIndex, x, y) triple spec §3 stores per rank, the
// anchor of the quadrant's first descendant at the deepest level.
type GlobalPosition struct {
	TreeIndex int32
	X, Y      QCoord
}

// NewForest allocates an empty forest over conn with trees sized 1:1
// with conn.NumTrees, all owned by the single rank [0, NumTrees).
// dataSize is the fixed per-quadrant user payload size in bytes.
func NewForest(conn *Connectivity, dataSize int) *Forest {
	f := &Forest{
		Connectivity:   conn,
		Trees:          make([]Tree, conn.NumTrees),
		DataSize:       dataSize,
		FirstLocalTree: 0,
		LastLocalTree:  conn.NumTrees - 1,
		quadrantPool:   NewQuadrantPool(),
		userData:       NewUserDataPool(dataSize),
		log:            forestlog.Nop(),
	}
	f.GlobalFirstPosition = []GlobalQuadIndex{0, 0}
	f.GlobalPositions = []GlobalPosition{{}, {TreeIndex: conn.NumTrees}}
	return f
}

// SetLogger replaces the forest's logger; the zero Forest otherwise
// logs nothing.
func (f *Forest) SetLogger(l forestlog.Logger) { f.log = l }

// QuadrantPool returns the forest's shared scratch-quadrant pool.
func (f *Forest) QuadrantPool() *QuadrantPool { return f.quadrantPool }

// UserData returns the forest's shared user-payload pool.
func (f *Forest) UserData() *UserDataPool { return f.userData }

// allocPayload reserves a fresh user-data slot for a quadrant entering
// a tree, or the empty payload when the forest carries no user data
// (spec §3 Lifecycle).
func (f *Forest) allocPayload() Payload {
	if f.DataSize == 0 {
		return Payload{}
	}
	return Payload{Kind: PayloadUser, User: f.userData.Alloc()}
}

// freePayload releases p's user-data slot, if it owns one, back to the
// forest's pool. Called when a quadrant leaves a tree (spec §3
// Lifecycle) for a reason other than transport, which frees through
// PartitionGiven's own send path instead.
func (f *Forest) freePayload(p Payload) {
	if p.Kind == PayloadUser {
		f.userData.Free(p.User)
	}
}

// LocalNumQuadrants returns the total quadrant count across every tree
// this rank owns.
func (f *Forest) LocalNumQuadrants() int {
	n := 0
	for i := f.FirstLocalTree; i <= f.LastLocalTree; i++ {
		n += len(f.Trees[i].Quadrants)
	}
	return n
}

// IsValid checks the whole-forest consistency invariants of spec §5:
// the connectivity is structurally valid, every local tree is linear,
// the quadrant pool reports zero outstanding allocations (nothing
// leaked across the last operation), the user-data pool's outstanding
// count matches exactly one slot per currently-owned quadrant when
// DataSize > 0 (spec §3 Lifecycle) or zero otherwise, and every
// quadrant's level is within [0, MaxLevel].
func (f *Forest) IsValid() error {
	if f.Connectivity == nil || !f.Connectivity.IsValid() {
		return errors.New("p4forest: forest has no valid connectivity")
	}
	if f.FirstLocalTree > f.LastLocalTree+1 {
		return errors.New("p4forest: FirstLocalTree/LastLocalTree out of order")
	}
	for i := range f.Trees {
		t := &f.Trees[i]
		if !t.IsLinear() {
			return errors.Errorf("p4forest: tree %d is not linear", i)
		}
		for _, q := range t.Quadrants {
			if !q.IsValid() {
				return errors.Errorf("p4forest: tree %d contains an invalid quadrant %s", i, q)
			}
		}
	}
	if f.quadrantPool.Outstanding() != 0 {
		return errors.Errorf("p4forest: quadrant pool has %d outstanding allocations", f.quadrantPool.Outstanding())
	}
	wantOutstanding := 0
	if f.DataSize > 0 {
		wantOutstanding = f.LocalNumQuadrants()
	}
	if f.userData.Outstanding() != wantOutstanding {
		return errors.Errorf("p4forest: user-data pool has %d outstanding allocations, want %d", f.userData.Outstanding(), wantOutstanding)
	}
	return nil
}
