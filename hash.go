package p4forest

// levelHash is a simple open-chaining hash set of quadrants, keyed by
// Quadrant's Morton linear id at its own level only; quadrants of
// different levels can share a key and are told apart by Equal within
// the bucket.
// The balance engine keeps one levelHash per tree level so insertions
// and membership tests during the bottom-up sweep stay near O(1)
// regardless of how many quadrants accumulate at other levels. This
// mirrors sc_hash's role in p4est_complete_or_balance.
type levelHash struct {
	buckets map[uint64][]Quadrant
}

func newLevelHash() *levelHash {
	return &levelHash{buckets: make(map[uint64][]Quadrant)}
}

// insert adds q if not already present, returning true if it was newly
// inserted.
func (h *levelHash) insert(q Quadrant) bool {
	key := hashKey(q)
	bucket := h.buckets[key]
	for _, existing := range bucket {
		if Equal(existing, q) {
			return false
		}
	}
	h.buckets[key] = append(bucket, q)
	return true
}

// contains reports whether q is present.
func (h *levelHash) contains(q Quadrant) bool {
	for _, existing := range h.buckets[hashKey(q)] {
		if Equal(existing, q) {
			return true
		}
	}
	return false
}

// quadrants returns every stored quadrant, order unspecified.
func (h *levelHash) quadrants() []Quadrant {
	out := make([]Quadrant, 0, len(h.buckets))
	for _, bucket := range h.buckets {
		out = append(out, bucket...)
	}
	return out
}

// len returns the number of distinct quadrants stored.
func (h *levelHash) len() int {
	n := 0
	for _, bucket := range h.buckets {
		n += len(bucket)
	}
	return n
}
