package p4forest

// Linearize removes every quadrant in tree that is the ancestor of
// another quadrant in tree, compacting the rest in place, and returns
// the number of quadrants removed. tree.Quadrants must already be
// sorted; the result is sorted and linear. Mirrors
// p4est_linearize_subtree's two-cursor compaction: a read cursor walks
// forward looking ahead for a descendant of the current candidate, and
// a write cursor only advances over quadrants that survive.
func Linearize(tree *Tree) int {
	n := len(tree.Quadrants)
	if n <= 1 {
		return 0
	}

	write := 0
	read := 0
	for read < n-1 {
		cur := tree.Quadrants[read]
		next := tree.Quadrants[read+1]
		if cur.IsAncestor(next) {
			// cur is dropped; next takes its place as the candidate.
			read++
			continue
		}
		tree.Quadrants[write] = cur
		write++
		read++
	}
	tree.Quadrants[write] = tree.Quadrants[read]
	write++

	removed := n - write
	tree.Quadrants = tree.Quadrants[:write]
	tree.recomputeLevels()
	return removed
}
