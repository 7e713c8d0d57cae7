// Package p4forest manages a distributed forest of quadtrees that tile a
// coarse two-dimensional macro-mesh (a Connectivity). Each macro-cell (a
// Tree) is independently refined into a linear, Morton-ordered sequence of
// axis-aligned square cells (Quadrants). The forest is partitioned across
// processes talking through an ordered messaging fabric (package comm);
// every process owns a contiguous range of the globally sorted quadrant
// sequence.
//
// The package implements the quadrant algebra and tree-level algorithms:
// Morton encoding, the total order and containment predicates over
// extended quadrants, nearest-common-ancestor, the inter-tree transform
// algebra, region completion, 2:1 balancing, ghost-overlap discovery and
// the partition redistribution protocol. Mesh loading (package meshfile)
// and the messaging fabric (package comm) are supplied by the caller.
package p4forest

import "fmt"

// MaxLevel is the deepest refinement level a Quadrant may reach.
const MaxLevel = 29

// RootLen is the side length of the root square, in the fixed-point units
// that quadrant coordinates are expressed in.
const RootLen = QCoord(1) << MaxLevel

// QCoord is the fixed-width signed coordinate type shared by x and y.
// Extended quadrants (see IsExtended) may carry values one root length
// outside [0, RootLen).
type QCoord = int32

// Level indexes refinement depth, 0 (the tree root) through MaxLevel.
type Level = int8

// sideLen returns h(L), the side length of a quadrant at level L.
func sideLen(level Level) QCoord {
	return QCoord(1) << (MaxLevel - level)
}

// lastOffset returns the anchor coordinate of the last quadrant of level
// `level` along one axis, i.e. R - h(level). Used by the transform table.
func lastOffset(level Level) QCoord {
	return RootLen - sideLen(level)
}

// PayloadKind discriminates the two uses of Quadrant.Payload: a quadrant
// living in a tree owns user data through a pool handle, while a quadrant
// in an inter-tree transport buffer carries a routing tag instead.
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadUser
	PayloadPiggy
)

// UserHandle is an index into a Forest's per-rank user-data pool. The
// zero value does not mean "no data" on its own; check PayloadKind.
type UserHandle int32

// Payload is the tagged payload slot carried by every Quadrant: either
// nothing, a handle to pool-owned user bytes, or (during transport) a
// piggy-backed tree index used to route the quadrant to its owning tree.
type Payload struct {
	Kind   PayloadKind
	User   UserHandle
	Piggy  int32 // which_tree, valid when Kind == PayloadPiggy
}

// quadKey is a quadrant's identity stripped of its payload, used to
// match a quadrant across an operation that may have reordered or
// reallocated its Quadrant value without actually changing the cell it
// denotes (see Forest.BalanceForest's payload bookkeeping).
type quadKey struct {
	X, Y  QCoord
	Level Level
}

func keyOf(q Quadrant) quadKey {
	return quadKey{q.X, q.Y, q.Level}
}

// Quadrant is a fixed-width, axis-aligned square cell addressed by its
// minimum-corner anchor (X, Y) and refinement Level. A quadrant is Valid
// when its anchor lies inside the root square and is aligned to its
// level's side length; it is Extended when the alignment holds but the
// anchor may lie up to one root length outside the root (used to express
// out-of-tree neighbors during balance and ghost discovery).
type Quadrant struct {
	X, Y    QCoord
	Level   Level
	Payload Payload
}

func (q Quadrant) String() string {
	return fmt.Sprintf("(x=0x%x y=0x%x L=%d)", q.X, q.Y, q.Level)
}

// IsInside reports whether q's anchor lies inside the root square.
func (q Quadrant) IsInside() bool {
	return q.X >= 0 && q.X < RootLen && q.Y >= 0 && q.Y < RootLen
}

func (q Quadrant) aligned() bool {
	mask := sideLen(q.Level) - 1
	return q.X&mask == 0 && q.Y&mask == 0
}

// IsValid reports whether q is a well-formed, inside-root quadrant.
func (q Quadrant) IsValid() bool {
	return q.Level >= 0 && q.Level <= MaxLevel && q.IsInside() && q.aligned()
}

// IsExtended reports whether q is well-formed but may lie in the
// one-root-length band around the root square.
func (q Quadrant) IsExtended() bool {
	return q.Level >= 0 && q.Level <= MaxLevel && q.aligned()
}

// ChildID returns which of its parent's four children q is (0..3),
// packing the level's toggle bit of x as the low bit and of y as the
// high bit. The root (level 0) has child id 0.
func (q Quadrant) ChildID() int {
	if q.Level == 0 {
		return 0
	}
	id := 0
	len := sideLen(q.Level)
	if q.X&len != 0 {
		id |= 0x01
	}
	if q.Y&len != 0 {
		id |= 0x02
	}
	return id
}

// Parent returns the level-(q.Level-1) ancestor of q. Panics if q is the
// root; callers are expected to have checked q.Level > 0.
func (q Quadrant) Parent() Quadrant {
	if q.Level <= 0 {
		panic("p4forest: Parent of root quadrant")
	}
	len := sideLen(q.Level)
	return Quadrant{X: q.X &^ len, Y: q.Y &^ len, Level: q.Level - 1}
}

// Sibling returns the sibling of q (same level and parent) identified by
// siblingID (0..3) in the (dx, dy) child-id packing used by ChildID.
func (q Quadrant) Sibling(siblingID int) Quadrant {
	addX := siblingID & 0x01
	addY := (siblingID & 0x02) >> 1
	shift := sideLen(q.Level)
	r := q
	if addX != 0 {
		r.X = q.X | shift
	} else {
		r.X = q.X &^ shift
	}
	if addY != 0 {
		r.Y = q.Y | shift
	} else {
		r.Y = q.Y &^ shift
	}
	return r
}

// Children returns q's four children in Morton (z) order: 00, 10, 01, 11.
func (q Quadrant) Children() [4]Quadrant {
	if q.Level >= MaxLevel {
		panic("p4forest: Children beyond MaxLevel")
	}
	childLevel := q.Level + 1
	len := sideLen(childLevel)
	c0 := Quadrant{X: q.X, Y: q.Y, Level: childLevel}
	c1 := Quadrant{X: c0.X | len, Y: c0.Y, Level: childLevel}
	c2 := Quadrant{X: c0.X, Y: c0.Y | len, Level: childLevel}
	c3 := Quadrant{X: c1.X, Y: c2.Y, Level: childLevel}
	return [4]Quadrant{c0, c1, c2, c3}
}

// FirstDescendant returns q's first (smallest in Morton order)
// descendant at the given deeper level; it shares q's anchor.
func (q Quadrant) FirstDescendant(level Level) Quadrant {
	return Quadrant{X: q.X, Y: q.Y, Level: level}
}

// LastDescendant returns q's last (largest in Morton order) descendant
// at the given deeper level.
func (q Quadrant) LastDescendant(level Level) Quadrant {
	shift := sideLen(q.Level) - sideLen(level)
	return Quadrant{X: q.X + shift, Y: q.Y + shift, Level: level}
}

// IsSibling reports whether q1 and q2 are distinct same-level quadrants
// sharing a parent.
func (q1 Quadrant) IsSibling(q2 Quadrant) bool {
	if q1.Level == 0 {
		return false
	}
	exclorx := q1.X ^ q2.X
	exclory := q1.Y ^ q2.Y
	if exclorx == 0 && exclory == 0 {
		return false
	}
	len := sideLen(q1.Level)
	return q1.Level == q2.Level && exclorx&^len == 0 && exclory&^len == 0
}

// IsParentOf reports whether q is the direct parent of r.
func (q Quadrant) IsParentOf(r Quadrant) bool {
	if r.Level == 0 {
		return false
	}
	len := sideLen(r.Level)
	return q.Level+1 == r.Level && q.X == r.X&^len && q.Y == r.Y&^len
}

// IsFamily reports whether q0..q3 are exactly the four children of a
// common parent, presented in Morton order.
func IsFamily(q0, q1, q2, q3 Quadrant) bool {
	if q0.Level == 0 || q0.Level != q1.Level || q0.Level != q2.Level || q0.Level != q3.Level {
		return false
	}
	inc := sideLen(q0.Level)
	return (q0.X&inc) == 0 && (q0.Y&inc) == 0 &&
		q0.X+inc == q1.X && q0.Y == q1.Y &&
		q0.X == q2.X && q0.Y+inc == q2.Y &&
		q1.X == q3.X && q2.Y == q3.Y
}

// IsAncestor reports whether q is a strict ancestor of r, using the
// shift-and-compare bit test of spec §4.1.
func (q Quadrant) IsAncestor(r Quadrant) bool {
	if q.Level >= r.Level {
		return false
	}
	shift := uint(MaxLevel - q.Level)
	exclorx := (q.X ^ r.X) >> shift
	exclory := (q.Y ^ r.Y) >> shift
	return exclorx == 0 && exclory == 0
}

// IsAncestorD is the slow, definitional form of IsAncestor used as a test
// oracle: q is an ancestor of r iff NCA(q, r) == q and q != r.
func (q Quadrant) IsAncestorD(r Quadrant) bool {
	if q == r {
		return false
	}
	return NearestCommonAncestorD(q, r) == q
}

// IsNext reports whether r is the Morton successor of q at their common
// minimum level, using the fast linear-id test of spec §4.1 (the original
// p4est_quadrant_is_next). It does not independently check q < r.
func (q Quadrant) IsNext(r Quadrant) bool {
	minLevel := q.Level
	if q.Level > r.Level {
		mask := sideLen(r.Level) - sideLen(q.Level)
		if q.X&mask != mask || q.Y&mask != mask {
			return false
		}
		minLevel = r.Level
	}
	i1 := q.LinearID(minLevel)
	i2 := r.LinearID(minLevel)
	return i1+1 == i2
}

// IsNextD is the slow, definitional form of IsNext: repeatedly take
// parents of the deeper quadrant while it is the last (id 3) child, then
// compare linear ids at the common level. Used as a test oracle.
func (q Quadrant) IsNextD(r Quadrant) bool {
	if Compare(q, r) >= 0 {
		return false
	}
	a, b := q, r
	for a.Level > b.Level {
		if a.ChildID() != 3 {
			return false
		}
		a = a.Parent()
	}
	i1 := a.LinearID(a.Level)
	i2 := b.LinearID(a.Level)
	return i1+1 == i2
}
