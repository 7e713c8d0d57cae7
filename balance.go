package p4forest

// indirectNeighbors and cornersOmitted ground the coarsening stage of
// Balance: for each child id 0..3 of a parent quadrant, the three
// (dx, dy) offsets (in units of the parent's own side length, z order)
// of that parent's "indirect" neighbors — the ones diagonally across a
// corner or straddling an edge shared with a different grandparent
// cell — and which one of the three is a pure corner neighbor, skipped
// when balancing across faces only. Ported from p4est_algorithms.c's
// indirect_neighbors/corners_omitted tables.
var indirectNeighbors = [4][3][2]QCoord{
	{{-1, -1}, {1, -1}, {-1, 1}},
	{{0, -1}, {2, -1}, {1, 0}},
	{{-1, 0}, {-2, 1}, {0, 1}},
	{{1, -1}, {-1, 1}, {1, 1}},
}

var cornersOmitted = [4]int{0, 1, 1, 2}

// BalanceMode selects which adjacency Balance enforces 2:1 size limits
// across. In two dimensions a quadrant's neighborhood is its four faces
// and four corners; there is no separate edge adjacency (that only
// arises for octants in three dimensions).
type BalanceMode int

const (
	// BalanceNone performs no 2:1 propagation, but still completes the
	// tree: missing siblings and parents are forced into existence just
	// as they are for the balanced modes, matching
	// p4est_complete_subtree (balance == 0, bbound == 5).
	BalanceNone BalanceMode = iota
	// BalanceFace enforces the 2:1 limit across face neighbors only.
	BalanceFace
	// BalanceFaceCorner enforces the 2:1 limit across both face and
	// corner neighbors, the strict "full" balance condition.
	BalanceFaceCorner
)

// balanceBound returns bbound, the number of sibling/parent/indirect-
// neighbor candidate stages considered per worklist quadrant: 5 (its
// three absent siblings plus its parent) for completion alone, 8 when
// the parent's relevant indirect neighbors are forced too.
func balanceBound(mode BalanceMode) int {
	if mode == BalanceNone {
		return 5
	}
	return 8
}

// containsExact reports whether q is present, by exact value, in the
// sorted slice sorted.
func containsExact(sorted []Quadrant, q Quadrant) bool {
	idx := lowerBound(sorted, q, len(sorted)/2)
	return idx >= 0 && Equal(sorted[idx], q)
}

// Balance enforces 2:1 size limits (and, always, plain region
// completion) on tree in place. It is a direct port of
// p4est_complete_or_balance's hashed bottom-up sweep: starting from the
// deepest populated level and working down to 1, every quadrant at the
// current level is checked against its absent siblings, its parent and
// (unless mode == BalanceNone) three of the parent's indirect
// neighbors. Newly-needed quadrants are drawn from pool and recorded in
// a per-level hash, so that when a coarser level's sweep runs it sees
// exactly what the finer levels already forced into existence one
// level up — the incremental worklist that makes the sweep converge
// without missing cross-level consequences.
//
// Once every level has been swept, every accepted candidate is merged
// into tree.Quadrants, the whole set is re-sorted and run back through
// Linearize, which discards any parent placeholder inserted purely to
// derive indirect neighbors whose children are still present. pool's
// Outstanding() count is unchanged when Balance returns.
//
// tree must satisfy IsAlmostSorted(true). Balance operates within a
// single tree's root square: a candidate that would fall outside the
// span of tree.Quadrants' own first and last descendant, or outside the
// root entirely, is left alone. Propagating balance constraints across
// a tree boundary is the ghost layer's job (see BuildGhostLayer), not
// this function's; Balance also does not implement p4est's isfamily
// fast path (skipping siblings already present as a contiguous run) or
// the parent-already-triggered short-circuit, both pure performance
// optimizations that do not change the result.
func Balance(tree *Tree, mode BalanceMode, pool *QuadrantPool) {
	if len(tree.Quadrants) <= 1 {
		return
	}

	original := append([]Quadrant(nil), tree.Quadrants...)
	insertionSort(original)
	{
		scratch := &Tree{Quadrants: original}
		Linearize(scratch)
		original = scratch.Quadrants
	}
	if len(original) <= 1 {
		tree.Quadrants = original
		tree.recomputeLevels()
		return
	}

	inmaxl := original[0].Level
	for _, q := range original {
		if q.Level > inmaxl {
			inmaxl = q.Level
		}
	}

	treeFirst := original[0].FirstDescendant(MaxLevelConst)
	treeLast := original[len(original)-1].LastDescendant(MaxLevelConst)

	byLevel := make([][]Quadrant, inmaxl+1)
	for _, q := range original {
		byLevel[q.Level] = append(byLevel[q.Level], q)
	}

	hashes := make([]*levelHash, inmaxl+1)
	for l := range hashes {
		hashes[l] = newLevelHash()
	}
	pending := make([][]*Quadrant, inmaxl+1)

	corners := mode == BalanceFaceCorner
	bbound := balanceBound(mode)

	qalloc := pool.Alloc()
	for l := inmaxl; l > 0; l-- {
		// outlist[l] entries accumulated while sweeping level l+1, fixed
		// before this level's own insertions begin.
		worklist := append(append([]Quadrant(nil), byLevel[l]...), hashes[l].quadrants()...)

		var parent Quadrant
		var pid int
		var ph QCoord

		for _, q := range worklist {
			qid := q.ChildID()
			for sid := 0; sid < bbound; sid++ {
				var cand Quadrant
				switch {
				case sid < 4:
					if qid == sid {
						continue
					}
					cand = q.Sibling(sid)
				case sid == 4:
					if q.Level == 0 {
						continue
					}
					parent = q.Parent()
					cand = parent
					if bbound > 5 {
						ph = sideLen(parent.Level)
						pid = parent.ChildID()
					}
				default:
					if q.Level == 0 {
						continue
					}
					if !corners && sid-5 == cornersOmitted[pid] {
						continue
					}
					off := indirectNeighbors[pid][sid-5]
					cand = Quadrant{
						X:     parent.X + off[0]*ph,
						Y:     parent.Y + off[1]*ph,
						Level: parent.Level,
					}
				}

				if !cand.IsInside() {
					continue
				}
				last := cand.LastDescendant(MaxLevelConst)
				outsideTree := (Compare(treeFirst, cand) > 0 && (cand.X != treeFirst.X || cand.Y != treeFirst.Y)) ||
					Compare(last, treeLast) > 0
				if outsideTree {
					continue
				}
				if hashes[cand.Level].contains(cand) {
					continue
				}
				if containsExact(original, cand) {
					continue
				}

				*qalloc = cand
				hashes[cand.Level].insert(cand)
				pending[cand.Level] = append(pending[cand.Level], qalloc)
				qalloc = pool.Alloc()
			}
		}
	}
	pool.Free(qalloc)

	merged := append([]Quadrant(nil), original...)
	for l := range pending {
		for _, qp := range pending[l] {
			merged = append(merged, *qp)
			pool.Free(qp)
		}
	}

	insertionSort(merged)
	tree.Quadrants = merged
	Linearize(tree)
}

// BalanceForest runs Balance over every tree the forest owns locally.
// Balance works in terms of plain quadrant algebra and knows nothing of
// user payload, so BalanceForest itself carries the §3 Lifecycle
// bookkeeping: any quadrant that survives the sweep unchanged keeps its
// existing payload, a quadrant newly forced into existence (completion
// or 2:1 propagation) is handed a fresh slot from the forest's
// user-data pool, and a quadrant that Linearize discarded as a
// redundant ancestor has its slot freed.
func (f *Forest) BalanceForest(mode BalanceMode) {
	before := f.LocalNumQuadrants()
	for i := range f.Trees {
		tree := &f.Trees[i]

		prior := make(map[quadKey]Payload, len(tree.Quadrants))
		for _, q := range tree.Quadrants {
			prior[keyOf(q)] = q.Payload
		}

		Balance(tree, mode, f.quadrantPool)

		seen := make(map[quadKey]bool, len(tree.Quadrants))
		for j, q := range tree.Quadrants {
			k := keyOf(q)
			seen[k] = true
			if p, ok := prior[k]; ok {
				tree.Quadrants[j].Payload = p
			} else {
				tree.Quadrants[j].Payload = f.allocPayload()
			}
		}
		for k, p := range prior {
			if !seen[k] {
				f.freePayload(p)
			}
		}
	}
	f.log.Debug().
		Int("before", before).
		Int("after", f.LocalNumQuadrants()).
		Int("mode", int(mode)).
		Msg("balance complete")
}
