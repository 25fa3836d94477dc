package grove

import "github.com/tanema/gween/ease"

// BackdropController draws a filled rectangle behind its parent's children,
// padded on every side.
type BackdropController struct {
	Controller
	FillColor Color   `grove:"fillColor"`
	Padding   float64 `grove:"padding"`

	node *Node
}

func newBackdropController(*Context) (any, error) {
	return &BackdropController{FillColor: Color{0, 0, 0, 0.5}}, nil
}

// PostInitialize sizes the backdrop to the parent's content and inserts it
// as the parent's first child.
func (b *BackdropController) PostInitialize() {
	parent := b.ParentNode()
	if parent == nil {
		return
	}
	var r Rect
	for _, c := range parent.children {
		w, h := nodeDimensions(c)
		r = r.Union(Rect{
			X:      c.Position.X - c.Pivot.X*c.Scale.X,
			Y:      c.Position.Y - c.Pivot.Y*c.Scale.Y,
			Width:  w * c.Scale.X,
			Height: h * c.Scale.Y,
		})
	}
	b.node = NewGraphics("backdrop", r.Width+2*b.Padding, r.Height+2*b.Padding, b.FillColor)
	b.node.SetPosition(r.X-b.Padding, r.Y-b.Padding)
	parent.AddChildAt(b.node, 0)
}

// Bounds returns the local rectangle the backdrop covers.
func (b *BackdropController) Bounds() Rect {
	if b.node == nil {
		return Rect{}
	}
	return Rect{X: b.node.Position.X, Y: b.node.Position.Y, Width: b.node.Width, Height: b.node.Height}
}

func (b *BackdropController) Destroy() {
	if b.node != nil {
		b.node.Dispose()
		b.node = nil
	}
	b.Controller.Destroy()
}

// TweenController animates a numeric property of its parent's value. With
// Yoyo set it plays back and forth until destroyed.
type TweenController struct {
	Controller
	Property string  `grove:"property"`
	To       float64 `grove:"to"`
	Duration float64 `grove:"duration"`
	Easing   string  `grove:"easing"`
	Yoyo     bool    `grove:"yoyo"`

	tweener *Tweener
	tween   *Tween
}

func newTweenController(ctx *Context) (any, error) {
	t := &TweenController{Duration: 1, Easing: "linear"}
	t.tweener, _ = ServiceAs[*Tweener](ctx, ServiceTweener)
	return t, nil
}

// PostInitialize starts the tween.
func (t *TweenController) PostInitialize() {
	if t.tweener == nil || t.Parent == nil || t.Property == "" {
		return
	}
	t.start(t.To, Easing(t.Easing))
}

func (t *TweenController) start(to float64, fn ease.TweenFunc) {
	path := ParseDataKey(t.Property)
	from, err := GetValue(t.Parent.Value, path)
	if err != nil {
		Logger().Warn("tween controller", "key", t.Property, "err", err)
		return
	}
	tw, err := t.tweener.To(t.Parent.Value, path, to, t.Duration, fn)
	if err != nil {
		Logger().Warn("tween controller", "key", t.Property, "err", err)
		return
	}
	if t.Yoyo {
		back, _ := toFloat(from)
		tw.OnComplete = func() {
			if t.tween == tw {
				t.start(back, fn)
			}
		}
	}
	t.tween = tw
}

// Running reports whether a tween is in flight.
func (t *TweenController) Running() bool {
	return t.tween != nil && !t.tween.Done
}

func (t *TweenController) Destroy() {
	if t.tween != nil {
		t.tween.Stop()
		t.tween = nil
	}
	t.Controller.Destroy()
}
