package p4forest

// CompleteRegion fills the gap between q1 and q2 (exclusive) with the
// minimal set of quadrants that, together with q1 and q2, linearly and
// completely cover the region between them, appending the result
// (q1, then the fill, then q2 when includeLast) to tree.Quadrants in
// sorted order. It mirrors p4est_complete_region's LIFO work-stack
// construction: each quadrant on the stack is repeatedly split into its
// four children, and children that fall strictly between q1 and q2 are
// either emitted (if they don't overlap a pending ancestor relationship)
// or pushed back for further refinement.
//
// q1 and q2 must satisfy Compare(q1, q2) < 0. pool is used for the
// scratch quadrants pushed on the work stack; CompleteRegion leaves its
// Outstanding() count unchanged.
func CompleteRegion(q1, q2 Quadrant, includeLast bool, tree *Tree, pool *QuadrantPool) {
	if Compare(q1, q2) >= 0 {
		panic("p4forest: CompleteRegion requires q1 < q2")
	}

	tree.Quadrants = append(tree.Quadrants, q1)

	nca := NearestCommonAncestor(q1, q2)

	type stackEntry struct {
		q *Quadrant
	}
	var stack []stackEntry

	// Seed the stack with the children of nca that lie strictly between
	// q1 and q2, in ascending order, each taken from the pool.
	children := nca.Children()
	for i := 0; i < 4; i++ {
		c := children[i]
		if Compare(c, q1) <= 0 || Compare(c, q2) >= 0 {
			continue
		}
		qp := pool.Alloc()
		*qp = c
		stack = append(stack, stackEntry{qp})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		q := *top.q

		touchesBoundary := q.IsAncestor(q1) || q.IsAncestor(q2)
		if !touchesBoundary {
			tree.Quadrants = append(tree.Quadrants, q)
			pool.Free(top.q)
			continue
		}

		// q straddles q1 or q2's lineage: refine into children and push
		// back only those strictly inside (q1, q2).
		kids := q.Children()
		pool.Free(top.q)
		for i := 0; i < 4; i++ {
			c := kids[i]
			if Compare(c, q1) <= 0 || Compare(c, q2) >= 0 {
				continue
			}
			qp := pool.Alloc()
			*qp = c
			stack = append(stack, stackEntry{qp})
		}
	}

	// Sort the newly appended interior quadrants into position (q1 was
	// appended first and is already the minimum).
	interior := tree.Quadrants[len(tree.Quadrants)-countSince(tree, q1):]
	insertionSort(interior)

	if includeLast {
		tree.Quadrants = append(tree.Quadrants, q2)
	}
}

// countSince is a helper that recomputes how many quadrants were pushed
// after q1 was appended; CompleteRegion is the sole caller and always
// invokes it immediately after the stack drains, so it simply measures
// everything after the initial q1.
func countSince(tree *Tree, q1 Quadrant) int {
	n := 0
	for i := len(tree.Quadrants) - 1; i >= 0; i-- {
		if Equal(tree.Quadrants[i], q1) {
			break
		}
		n++
	}
	return n
}

// insertionSort sorts a small slice of quadrants in place using
// Compare. Region-completion fill sets are small enough in practice
// (bounded by 3*(maxlevel) per level of the NCA) that this beats
// pulling in sort.Slice's reflection overhead.
func insertionSort(qs []Quadrant) {
	for i := 1; i < len(qs); i++ {
		for j := i; j > 0 && Compare(qs[j-1], qs[j]) > 0; j-- {
			qs[j-1], qs[j] = qs[j], qs[j-1]
		}
	}
}
