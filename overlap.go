package p4forest

// ComputeOverlap searches tree for quadrants inside the 3x3 insulation
// layer of ownQ — ownQ grown by one of its own side lengths in every
// direction, including diagonals — and appends to out those that touch
// ownQ (share at least a boundary point with it); quadrants of the layer
// that do not touch ownQ are not returned. This is the per-neighbor-tree query the ghost layer builder
// runs once per boundary quadrant of the local partition against each
// adjacent tree's quadrants (spec §4.5); it narrows the search with
// lowerBound/upperBound binary search before a linear scan of the
// matched window, mirroring p4est_tree_compute_overlap.
func ComputeOverlap(tree *Tree, ownQ Quadrant, out []Quadrant) []Quadrant {
	lo, hi := insulationWindow(ownQ)

	guess := len(tree.Quadrants) / 2
	if guess >= len(tree.Quadrants) {
		guess = len(tree.Quadrants) - 1
	}
	if guess < 0 {
		return out
	}

	start := lowerBound(tree.Quadrants, lo, guess)
	if start < 0 {
		start = len(tree.Quadrants)
	}
	// The quadrant just before the first anchor >= lo may still contain lo.
	if start > 0 && Compare(tree.Quadrants[start-1].LastDescendant(MaxLevelConst), lo) >= 0 {
		start--
	}
	if start >= len(tree.Quadrants) {
		return out
	}
	end := upperBound(tree.Quadrants, hi, guess)
	if end < 0 || end < start {
		return out
	}

	for i := start; i <= end && i < len(tree.Quadrants); i++ {
		cand := tree.Quadrants[i]
		if quadrantsTouch(ownQ, cand) {
			out = append(out, cand)
		}
	}
	return out
}

// insulationWindow returns the smallest-descendant and largest-descendant
// extended quadrants bounding ownQ's 3x3 insulation layer, suitable as
// Compare-order search keys for lowerBound/upperBound.
func insulationWindow(q Quadrant) (lo, hi Quadrant) {
	step := sideLen(q.Level)
	lo = Quadrant{X: q.X - step, Y: q.Y - step, Level: MaxLevelConst}
	hi = Quadrant{X: q.X + 2*step - 1, Y: q.Y + 2*step - 1, Level: MaxLevelConst}
	return lo, hi
}

// MaxLevelConst is MaxLevel typed as Level, used to build maximal-depth
// search keys for overlap windows.
const MaxLevelConst = Level(MaxLevel)

// quadrantsTouch reports whether q1 and q2's closed squares intersect
// (share at least a boundary point), the definition of face, edge, or
// corner adjacency the ghost layer uses.
func quadrantsTouch(q1, q2 Quadrant) bool {
	s1, s2 := sideLen(q1.Level), sideLen(q2.Level)
	if q1.X+s1 < q2.X || q2.X+s2 < q1.X {
		return false
	}
	if q1.Y+s1 < q2.Y || q2.Y+s2 < q1.Y {
		return false
	}
	return true
}

// UniqifyOverlap removes duplicates and any quadrant that is the
// ancestor of another (the same linearity condition Linearize
// enforces) from quadrants, and returns the sorted result. The same
// ghost quadrant is routinely discovered through more than one
// insulation query, so duplicates are filtered through a levelHash
// before the (now duplicate-free) set is sorted and linearized.
// Mirrors p4est_tree_uniqify_overlap's use of sc_hash for exactly this
// deduplication step.
func UniqifyOverlap(quadrants []Quadrant) []Quadrant {
	if len(quadrants) == 0 {
		return quadrants
	}
	seen := newLevelHash()
	unique := make([]Quadrant, 0, len(quadrants))
	for _, q := range quadrants {
		if seen.insert(q) {
			unique = append(unique, q)
		}
	}

	insertionSort(unique)
	t := Tree{Quadrants: unique}
	Linearize(&t)
	return t.Quadrants
}

// GhostLayer holds the off-process (or off-tree) quadrants discovered
// to be within one insulation layer of the local partition, grouped by
// the tree they belong to, plus parallel metadata locating each one's
// owning rank. Built by BuildGhostLayer.
type GhostLayer struct {
	Quadrants []Quadrant
	TreeIDs   []int32
	OwnerRank []int32
}

// faceCorners gives, for each outside-face id (the numbering Translate
// and faceContact use: 0 south, 1 east, 2 north, 3 west), the two
// z-order corner ids of the tree's root square that bound it.
var faceCorners = [4][2]int{
	{0, 1}, // south: SW, SE
	{1, 3}, // east:  SE, NE
	{2, 3}, // north: NW, NE
	{0, 2}, // west:  SW, NW
}

// atOwnCorner reports whether q's footprint touches the given z-order
// corner of its own tree's root square.
func atOwnCorner(q Quadrant, corner int) bool {
	s := sideLen(q.Level)
	left, bottom := q.X == 0, q.Y == 0
	right, top := q.X+s == RootLen, q.Y+s == RootLen
	switch corner {
	case 0:
		return left && bottom
	case 1:
		return right && bottom
	case 2:
		return left && top
	case 3:
		return right && top
	}
	return false
}

// projectAcrossFace maps q, a quadrant of the tree that owns face, into
// the coordinate frame of the neighbor tree FaceTransform(face) names:
// Translate shifts q one root length across the face it crosses, and
// Transform then reinterprets the result in the neighbor's own
// (possibly rotated or reflected) axes, exactly the composition
// FaceTransform's returned code is documented to describe (spec §4.1).
func projectAcrossFace(q Quadrant, face int, code int) Quadrant {
	return Transform(Translate(q, face), code)
}

// minLevelAtCorner returns the coarsest level among tree's quadrants
// touching corner, run through CornerLevel to find the shallowest level
// at which a single across-corner cell still covers the neighborhood,
// and whether any quadrant touches that corner at all.
func minLevelAtCorner(tree *Tree, corner int) (Level, bool) {
	found := false
	var coarsest Quadrant
	for _, q := range tree.Quadrants {
		if !atOwnCorner(q, corner) {
			continue
		}
		if !found || q.Level < coarsest.Level {
			coarsest = q
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return CornerLevel(coarsest, corner, 0), true
}

// BuildGhostLayer scans every local quadrant of forest against the
// full quadrant set of each neighboring tree referenced by the
// connectivity (including trees this rank does not locally own, when
// present in localTrees), collecting every quadrant within one
// insulation layer after projecting into the remote tree's own
// coordinate frame (spec §4.5):
//
//   - Face crossings: for each of a quadrant's four faces, FaceTransform
//     gives the neighbor tree and the transform code that relates the
//     two frames; projectAcrossFace expresses the quadrant the way the
//     neighbor tree sees it before the insulation-layer overlap test
//     runs, so the search is never comparing footprints from two
//     unrelated coordinate systems.
//   - Face-adjacent corners: when the quadrant also touches one of the
//     two tree corners bounding that face, nodeTransform carries the
//     corner identity across the same transform code to place a single
//     diagonal-neighbor candidate directly in the remote tree's corner
//     numbering.
//   - Tree corners proper: once per corner actually touched by some
//     local quadrant, FindCornerInfo enumerates every tree meeting at
//     that vertex; CornerLevel picks the single coarsest representative
//     level, and QuadrantCorner places one extended candidate, anchored
//     one cell outside the receiving tree, at each neighbor's own
//     corner id.
//
// localTrees maps a tree id to the full (possibly off-process) quadrant
// list to search; a nil entry is skipped. rankOf assigns each
// discovered quadrant to an owning rank by its position in globalFirst.
func BuildGhostLayer(forest *Forest, localTrees map[int32]*Tree, globalFirst []GlobalQuadIndex, rankOf func(Quadrant, int32) int32) *GhostLayer {
	g := &GhostLayer{}
	conn := forest.Connectivity

	emit := func(hits []Quadrant, nbTreeID int32) {
		for _, h := range hits {
			g.Quadrants = append(g.Quadrants, h)
			g.TreeIDs = append(g.TreeIDs, nbTreeID)
			g.OwnerRank = append(g.OwnerRank, rankOf(h, nbTreeID))
		}
	}

	for ti := forest.FirstLocalTree; ti <= forest.LastLocalTree; ti++ {
		own := &forest.Trees[ti]

		for _, q := range own.Quadrants {
			for face := 0; face < 4; face++ {
				nbTreeID, code := conn.FaceTransform(ti, face)
				nbTree := localTrees[nbTreeID]
				if nbTree == nil {
					continue
				}

				proj := projectAcrossFace(q, face, code)
				var hits []Quadrant
				hits = ComputeOverlap(nbTree, proj, hits)
				emit(hits, nbTreeID)

				for _, c := range faceCorners[face] {
					if !atOwnCorner(q, c) {
						continue
					}
					remoteCorner := nodeTransform(c, code)
					cand := Quadrant{Level: q.Level}
					QuadrantCorner(&cand, remoteCorner, false)
					var chits []Quadrant
					chits = ComputeOverlap(nbTree, cand, chits)
					emit(chits, nbTreeID)
				}
			}
		}

		for corner := 0; corner < 4; corner++ {
			level, ok := minLevelAtCorner(own, corner)
			if !ok {
				continue
			}
			for _, info := range conn.FindCornerInfo(ti, corner) {
				if info.NTree == ti && info.NCorner == corner {
					continue
				}
				nbTree := localTrees[info.NTree]
				if nbTree == nil {
					continue
				}
				cand := Quadrant{Level: level}
				QuadrantCorner(&cand, info.NCorner, false)
				var hits []Quadrant
				hits = ComputeOverlap(nbTree, cand, hits)
				emit(hits, info.NTree)
			}
		}
	}
	return g
}
