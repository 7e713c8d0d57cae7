package p4forest

// Transform codes 0..7: identity, the three non-trivial rotations, and
// the four axis/diagonal reflections that map a face-neighbor tree's
// coordinate frame onto the querying tree's frame (spec §4.1).
const (
	TransformIdentity    = 0
	TransformRotateNeg90 = 1
	TransformRotate180   = 2
	TransformRotate90    = 3
	TransformMirror0     = 4
	TransformMirror45    = 5
	TransformMirror90    = 6
	TransformMirror135   = 7
)

// inverseTransform maps each of the 8 transform codes to its inverse;
// the two non-trivial rotations invert into each other, every other code
// (identity, 180 rotation, and all four mirrors) is its own inverse.
var inverseTransform = [8]int{0, 3, 2, 1, 4, 5, 6, 7}

// InverseTransform returns the transform code t such that applying it
// after transform undoes transform: Transform(Transform(q, c), Inverse(c)) == q.
func InverseTransform(code int) int {
	return inverseTransform[code]
}

// Transform maps q into the coordinate frame reached by crossing a face
// with the given transform code, per the fixed per-code arithmetic on
// th = lastOffset(q.Level) described in spec §4.1. The result has q's
// level; q must already be translated into the neighbor tree's extended
// frame (see Translate) before this is applied.
func Transform(q Quadrant, code int) Quadrant {
	th := lastOffset(q.Level)
	r := Quadrant{Level: q.Level}
	switch code {
	case TransformIdentity:
		r.X, r.Y = q.X, q.Y
	case TransformRotateNeg90:
		r.X, r.Y = th-q.Y, q.X
	case TransformRotate180:
		r.X, r.Y = th-q.X, th-q.Y
	case TransformRotate90:
		r.X, r.Y = q.Y, th-q.X
	case TransformMirror0:
		r.X, r.Y = q.X, th-q.Y
	case TransformMirror45:
		r.X, r.Y = q.Y, q.X
	case TransformMirror90:
		r.X, r.Y = th-q.X, q.Y
	case TransformMirror135:
		r.X, r.Y = th-q.Y, th-q.X
	default:
		panic("p4forest: invalid transform code")
	}
	return r
}

// nodeTransform carries a corner id (0..3, in the same z-order packing as
// ChildID: bit0 = x side, bit1 = y side) across one of the 8 transform
// codes, so that corner identities agree with Transform's coordinate
// mapping. The four rotations/reflections permute the corner bits the
// same way Transform permutes the coordinate axes.
func nodeTransform(node int, code int) int {
	switch code {
	case TransformIdentity:
		return node
	case TransformRotateNeg90:
		return rotateCorner(node, 1)
	case TransformRotate180:
		return 3 - node
	case TransformRotate90:
		return rotateCorner(node, 3)
	case TransformMirror0:
		return [4]int{2, 3, 0, 1}[node]
	case TransformMirror45:
		return [4]int{0, 2, 1, 3}[node]
	case TransformMirror90:
		return [4]int{1, 0, 3, 2}[node]
	case TransformMirror135:
		return [4]int{3, 1, 2, 0}[node]
	default:
		panic("p4forest: invalid transform code")
	}
}

// rotateCorner rotates the z-ordered corner id `steps` quarter turns
// counter-clockwise through the cycle SW(0) -> SE(1) -> NE(3) -> NW(2).
func rotateCorner(node, steps int) int {
	cycle := [4]int{0, 1, 3, 2}
	pos := 0
	for i, c := range cycle {
		if c == node {
			pos = i
			break
		}
	}
	return cycle[(pos+steps)%4]
}

// faceDelta gives, for each of the 4 face ids (0: y<0,
// 1: x>=RootLen, 2: y>=RootLen, 3: x<0), which axis the face crossing
// adds or subtracts RootLen on.
var faceDelta = [4]struct{ dx, dy QCoord }{
	{0, RootLen},  // face 0: y += RootLen
	{-RootLen, 0}, // face 1: x -= RootLen
	{0, -RootLen}, // face 2: y -= RootLen
	{RootLen, 0},  // face 3: x += RootLen
}

// Translate shifts q by one root length along the axis the given face
// crosses, turning a quadrant of the tree that owns the face into the
// extended frame of the tree across that face, before Transform is applied.
func Translate(q Quadrant, face int) Quadrant {
	d := faceDelta[face]
	return Quadrant{X: q.X + d.dx, Y: q.Y + d.dy, Level: q.Level}
}

// zcornerSteps gives, for each z-order corner id, the (dx, dy) unit step
// (in the parent's side length) CornerLevel walks while promoting a
// quadrant towards its ancestor along that corner.
var zcornerSteps = [4]struct{ dx, dy QCoord }{
	{-1, -1}, {1, -1}, {-1, 1}, {1, 1},
}

// CornerLevel walks q up towards level, at each step taking the sibling
// across corner zcorner, and returns the deepest level >= `level` at
// which that sibling still touches the root square along the required
// sides. This is the shallowest level at which a single across-corner
// cell suffices to cover the neighborhood (spec §4.5).
func CornerLevel(q Quadrant, zcorner int, level Level) Level {
	quad := q
	for quad.Level > level {
		th := lastOffset(quad.Level)
		sibling := quad.Sibling(zcorner)
		switch zcorner {
		case 0:
			if sibling.X <= 0 && sibling.Y <= 0 {
				return quad.Level
			}
		case 1:
			if sibling.X >= th && sibling.Y <= 0 {
				return quad.Level
			}
		case 2:
			if sibling.X <= 0 && sibling.Y >= th {
				return quad.Level
			}
		case 3:
			if sibling.X >= th && sibling.Y >= th {
				return quad.Level
			}
		}
		quad = quad.Parent()
		step := zcornerSteps[zcorner]
		quad.X += step.dx * sideLen(quad.Level)
		quad.Y += step.dy * sideLen(quad.Level)
	}
	return level
}

// QuadrantCorner sets q's anchor to sit at the given z-order corner of
// the root square, at q's existing level. If inside is true the anchor
// is placed at the innermost cell touching that corner (a valid
// quadrant); otherwise it is placed one cell outside the root along both
// axes (an extended quadrant used to project into a neighbor tree).
func QuadrantCorner(q *Quadrant, zcorner int, inside bool) {
	lshift := -sideLen(q.Level)
	rshift := lastOffset(q.Level)
	if inside {
		lshift = 0
	} else {
		rshift = RootLen
	}
	switch zcorner {
	case 0:
		q.X, q.Y = lshift, lshift
	case 1:
		q.X, q.Y = rshift, lshift
	case 2:
		q.X, q.Y = lshift, rshift
	case 3:
		q.X, q.Y = rshift, rshift
	default:
		panic("p4forest: invalid zcorner")
	}
}
