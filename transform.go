package grove

import "math"

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// computeLocalTransform computes the local affine matrix from the node's
// transform properties. Returns [a, b, c, d, tx, ty].
//
// Composition order:
//
//	Translate(-Pivot) -> Scale -> Rotate -> Translate(Position)
func computeLocalTransform(n *Node) [6]float64 {
	sx := n.Scale.X
	sy := n.Scale.Y

	sin, cos := math.Sincos(n.Rotation)

	preTx := -n.Pivot.X * sx
	preTy := -n.Pivot.Y * sy

	return [6]float64{
		cos * sx,
		sin * sx,
		-sin * sy,
		cos * sy,
		cos*preTx - sin*preTy + n.Position.X,
		sin*preTx + cos*preTy + n.Position.Y,
	}
}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular.
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// UpdateTransform recomputes world transforms and alpha for n and its
// subtree, treating n's parent (if any) as already current. Data writes go
// straight to fields, so there is no dirty tracking: the whole subtree is
// recomputed every call.
func (n *Node) UpdateTransform() {
	parent := identityTransform
	alpha := 1.0
	if n.Parent != nil {
		parent = n.Parent.worldTransform
		alpha = n.Parent.worldAlpha
	}
	updateWorldTransform(n, parent, alpha)
}

func updateWorldTransform(n *Node, parentTransform [6]float64, parentAlpha float64) {
	n.worldTransform = multiplyAffine(parentTransform, computeLocalTransform(n))
	n.worldAlpha = parentAlpha * n.Alpha
	for _, child := range n.children {
		updateWorldTransform(child, n.worldTransform, n.worldAlpha)
	}
}

// --- Transform property setters ---

// SetPosition sets the node's local position.
func (n *Node) SetPosition(x, y float64) {
	n.Position = Vec2{x, y}
}

// SetScale sets the node's scale factors.
func (n *Node) SetScale(sx, sy float64) {
	n.Scale = Vec2{sx, sy}
}

// SetPivot sets the node's pivot point in local coordinates.
func (n *Node) SetPivot(px, py float64) {
	n.Pivot = Vec2{px, py}
}

// WorldAlpha returns the alpha computed by the last UpdateTransform.
func (n *Node) WorldAlpha() float64 {
	return n.worldAlpha
}

// --- Coordinate conversion ---

// WorldToLocal converts a world-space point to this node's local coordinate space.
func (n *Node) WorldToLocal(wx, wy float64) (lx, ly float64) {
	inv := invertAffine(n.worldTransform)
	return transformPoint(inv, wx, wy)
}

// LocalToWorld converts a local-space point to world-space.
func (n *Node) LocalToWorld(lx, ly float64) (wx, wy float64) {
	return transformPoint(n.worldTransform, lx, ly)
}
