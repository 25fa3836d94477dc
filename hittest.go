package grove

// HitShape is a custom hit region in a node's local coordinates.
type HitShape interface {
	Contains(x, y float64) bool
}

// HitRect is an axis-aligned rectangular hit area in local coordinates.
type HitRect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r HitRect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// HitCircle is a circular hit area in local coordinates.
type HitCircle struct {
	CenterX, CenterY, Radius float64
}

// Contains reports whether (x, y) lies inside or on the circle.
func (c HitCircle) Contains(x, y float64) bool {
	dx := x - c.CenterX
	dy := y - c.CenterY
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// HitPolygon is a convex polygon hit area in local coordinates.
// Points must define a convex polygon in either winding order.
type HitPolygon struct {
	Points []Vec2
}

// Contains reports whether (x, y) lies inside a convex polygon using cross-product sign test.
func (p HitPolygon) Contains(x, y float64) bool {
	n := len(p.Points)
	if n < 3 {
		return false
	}

	var positive, negative bool
	for i := 0; i < n; i++ {
		x1, y1 := p.Points[i].X, p.Points[i].Y
		j := (i + 1) % n
		x2, y2 := p.Points[j].X, p.Points[j].Y

		cross := (x2-x1)*(y-y1) - (y2-y1)*(x-x1)
		if cross > 0 {
			positive = true
		} else if cross < 0 {
			negative = true
		}
		if positive && negative {
			return false
		}
	}
	return true
}

// nodeDimensions returns the local width and height a node occupies on its own,
// not counting children.
func nodeDimensions(n *Node) (w, h float64) {
	switch n.Type {
	case NodeTypeSprite:
		if n.Image != nil {
			b := n.Image.Bounds()
			return float64(b.Dx()), float64(b.Dy())
		}
		return 0, 0
	case NodeTypeText:
		if n.TextBlock != nil {
			n.TextBlock.measure()
			return n.TextBlock.measuredW, n.TextBlock.measuredH
		}
		return 0, 0
	default:
		return n.Width, n.Height
	}
}

// nodeContainsLocal tests whether (lx, ly) falls inside a node's own hit region.
// Uses HitShape if set; otherwise the node's dimensions.
func nodeContainsLocal(n *Node, lx, ly float64) bool {
	if n.HitShape != nil {
		return n.HitShape.Contains(lx, ly)
	}
	w, h := nodeDimensions(n)
	if w == 0 && h == 0 {
		return false
	}
	return lx >= 0 && lx <= w && ly >= 0 && ly <= h
}

// ContainsPoint reports whether the world-space point lies inside the node's
// own hit region. World transforms must be current (see UpdateTransform).
func (n *Node) ContainsPoint(wx, wy float64) bool {
	lx, ly := n.WorldToLocal(wx, wy)
	return nodeContainsLocal(n, lx, ly)
}

// WorldBounds returns the world-space axis-aligned bounds of the node and its
// visible descendants.
func (n *Node) WorldBounds() Rect {
	var r Rect
	if w, h := nodeDimensions(n); w > 0 && h > 0 {
		x0, y0 := n.LocalToWorld(0, 0)
		x1, y1 := n.LocalToWorld(w, 0)
		x2, y2 := n.LocalToWorld(w, h)
		x3, y3 := n.LocalToWorld(0, h)
		minX := min(x0, x1, x2, x3)
		minY := min(y0, y1, y2, y3)
		r = Rect{X: minX, Y: minY, Width: max(x0, x1, x2, x3) - minX, Height: max(y0, y1, y2, y3) - minY}
	}
	for _, c := range n.children {
		if c.Visible {
			r = r.Union(c.WorldBounds())
		}
	}
	return r
}

// HitTest returns the topmost visible node under the world-space point,
// searching children last-to-first before the node itself. Invisible
// subtrees are skipped entirely. Returns nil when nothing is hit.
func HitTest(n *Node, wx, wy float64) *Node {
	if !n.Visible {
		return nil
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		if found := HitTest(n.children[i], wx, wy); found != nil {
			return found
		}
	}
	if n.ContainsPoint(wx, wy) {
		return n
	}
	return nil
}
