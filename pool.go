package p4forest

// Design note (see DESIGN.md): the two pools below are not a performance
// micro-optimization. They are where the leak/imbalance assertions from
// spec §4.4/§5 attach — region completion and balance must return every
// quadrant and every user-data slot they borrow, and the pools'
// Outstanding() counts are the checks that catch it when they don't.

// QuadrantPool hands out transient *Quadrant slots for the algorithms
// that build scratch quadrants off the tree proper (region completion's
// work stack, balance's candidate-relative scan). It is a simple
// freelist, mirroring sc_mempool's role in the original library.
type QuadrantPool struct {
	free       []*Quadrant
	outstanding int
}

// NewQuadrantPool returns an empty pool.
func NewQuadrantPool() *QuadrantPool {
	return &QuadrantPool{}
}

// Alloc returns a zeroed *Quadrant, reusing a freed slot when available.
func (p *QuadrantPool) Alloc() *Quadrant {
	p.outstanding++
	n := len(p.free)
	if n == 0 {
		return &Quadrant{}
	}
	q := p.free[n-1]
	p.free = p.free[:n-1]
	*q = Quadrant{}
	return q
}

// Free returns q to the pool for reuse.
func (p *QuadrantPool) Free(q *Quadrant) {
	p.outstanding--
	p.free = append(p.free, q)
}

// Outstanding returns the number of slots currently allocated and not
// yet freed. A correct algorithm leaves this at its pre-call value.
func (p *QuadrantPool) Outstanding() int {
	return p.outstanding
}

// UserDataPool owns the fixed-size opaque user payload attached to every
// quadrant that lives in a tree (Forest.DataSize bytes each). Slots are
// handed out as stable UserHandle indices so that Quadrant.Payload can
// reference them by value.
type UserDataPool struct {
	dataSize    int
	slots       [][]byte
	free        []UserHandle
	outstanding int
}

// NewUserDataPool returns a pool whose slots are dataSize bytes each.
func NewUserDataPool(dataSize int) *UserDataPool {
	return &UserDataPool{dataSize: dataSize}
}

// Alloc reserves a zeroed dataSize-byte slot and returns its handle.
// If dataSize == 0 it still returns a distinct handle (no bytes are
// allocated) so pool-balance bookkeeping stays accurate.
func (p *UserDataPool) Alloc() UserHandle {
	p.outstanding++
	if n := len(p.free); n > 0 {
		h := p.free[n-1]
		p.free = p.free[:n-1]
		clear(p.slots[h])
		return h
	}
	h := UserHandle(len(p.slots))
	p.slots = append(p.slots, make([]byte, p.dataSize))
	return h
}

// Free releases h back to the pool.
func (p *UserDataPool) Free(h UserHandle) {
	p.outstanding--
	p.free = append(p.free, h)
}

// Bytes returns the backing slice for h, valid until the next Free(h).
func (p *UserDataPool) Bytes(h UserHandle) []byte {
	return p.slots[h]
}

// Outstanding returns the number of slots currently allocated and not
// yet freed.
func (p *UserDataPool) Outstanding() int {
	return p.outstanding
}
