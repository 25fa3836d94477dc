package grove

import "testing"

func TestHitShapes(t *testing.T) {
	r := HitRect{X: 0, Y: 0, Width: 10, Height: 10}
	if !r.Contains(10, 10) || r.Contains(11, 5) {
		t.Error("HitRect edges")
	}
	c := HitCircle{CenterX: 5, CenterY: 5, Radius: 5}
	if !c.Contains(5, 0) || c.Contains(0, 0) {
		t.Error("HitCircle")
	}
	p := HitPolygon{Points: []Vec2{{0, 0}, {10, 0}, {0, 10}}}
	if !p.Contains(2, 2) || p.Contains(8, 8) {
		t.Error("HitPolygon")
	}
	if (HitPolygon{Points: []Vec2{{0, 0}, {1, 1}}}).Contains(0, 0) {
		t.Error("degenerate polygon should never contain")
	}
}

func TestContainsPointTransformed(t *testing.T) {
	n := NewGraphics("box", 20, 10, ColorWhite)
	n.SetPosition(100, 100)
	n.SetScale(2, 2)
	n.UpdateTransform()

	if !n.ContainsPoint(139, 119) {
		t.Error("point inside scaled box should hit")
	}
	if n.ContainsPoint(141, 110) {
		t.Error("point past scaled width should miss")
	}
}

func TestHitTestTopmost(t *testing.T) {
	root := NewContainer("root")
	bottom := NewGraphics("bottom", 50, 50, ColorWhite)
	top := NewGraphics("top", 50, 50, ColorWhite)
	top.SetPosition(25, 25)
	root.AddChild(bottom)
	root.AddChild(top)
	root.UpdateTransform()

	if got := HitTest(root, 30, 30); got != top {
		t.Errorf("overlap hit %v, want top", got)
	}
	if got := HitTest(root, 10, 10); got != bottom {
		t.Errorf("hit %v, want bottom", got)
	}
	if got := HitTest(root, 200, 200); got != nil {
		t.Errorf("miss hit %v", got)
	}

	top.Visible = false
	if got := HitTest(root, 30, 30); got != bottom {
		t.Errorf("invisible top should be skipped, got %v", got)
	}
}

func TestHitTestCustomShape(t *testing.T) {
	n := NewContainer("area")
	n.HitShape = HitCircle{CenterX: 0, CenterY: 0, Radius: 10}
	n.SetPosition(50, 50)
	n.UpdateTransform()

	if HitTest(n, 55, 55) != n {
		t.Error("custom shape should hit")
	}
	if HitTest(n, 65, 50) != nil {
		t.Error("outside radius should miss")
	}
}

func TestWorldBoundsUnion(t *testing.T) {
	root := NewContainer("root")
	a := NewGraphics("a", 10, 10, ColorWhite)
	b := NewGraphics("b", 10, 10, ColorWhite)
	b.SetPosition(30, 20)
	hidden := NewGraphics("hidden", 500, 500, ColorWhite)
	hidden.Visible = false
	root.AddChild(a)
	root.AddChild(b)
	root.AddChild(hidden)
	root.SetPosition(5, 5)
	root.UpdateTransform()

	got := root.WorldBounds()
	want := Rect{X: 5, Y: 5, Width: 40, Height: 30}
	if got != want {
		t.Errorf("WorldBounds = %+v, want %+v", got, want)
	}
}

func TestRectUnionIgnoresEmpty(t *testing.T) {
	r := Rect{X: 1, Y: 2, Width: 3, Height: 4}
	if got := r.Union(Rect{}); got != r {
		t.Errorf("Union(empty) = %+v", got)
	}
	if got := (Rect{}).Union(r); got != r {
		t.Errorf("empty.Union = %+v", got)
	}
}
