package grove

import (
	"fmt"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to 4 float64 fields on a Node simultaneously.
// Create one via the convenience constructors (TweenPosition, TweenScale,
// TweenColor) and either call Update(dt) each frame or hand it to a Tweener.
// If the target node is disposed, the group stops immediately.
type TweenGroup struct {
	tweens [4]*gween.Tween
	count  int
	fields [4]*float64
	target *Node
	Done   bool
}

// Update advances all tweens by dt seconds and writes values to the target
// fields. If the target node has been disposed, Done is set and no writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}
	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		*g.fields[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
}

func (g *TweenGroup) finished() bool { return g.Done }

// TweenPosition animates node.Position to (toX, toY).
func TweenPosition(node *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 2, target: node}
	g.tweens[0] = gween.New(float32(node.Position.X), float32(toX), duration, fn)
	g.tweens[1] = gween.New(float32(node.Position.Y), float32(toY), duration, fn)
	g.fields[0] = &node.Position.X
	g.fields[1] = &node.Position.Y
	return g
}

// TweenScale animates node.Scale to (toSX, toSY).
func TweenScale(node *Node, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 2, target: node}
	g.tweens[0] = gween.New(float32(node.Scale.X), float32(toSX), duration, fn)
	g.tweens[1] = gween.New(float32(node.Scale.Y), float32(toSY), duration, fn)
	g.fields[0] = &node.Scale.X
	g.fields[1] = &node.Scale.Y
	return g
}

// TweenColor animates all four components of node.Tint to the target color.
func TweenColor(node *Node, to Color, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 4, target: node}
	g.tweens[0] = gween.New(float32(node.Tint.R), float32(to.R), duration, fn)
	g.tweens[1] = gween.New(float32(node.Tint.G), float32(to.G), duration, fn)
	g.tweens[2] = gween.New(float32(node.Tint.B), float32(to.B), duration, fn)
	g.tweens[3] = gween.New(float32(node.Tint.A), float32(to.A), duration, fn)
	g.fields[0] = &node.Tint.R
	g.fields[1] = &node.Tint.G
	g.fields[2] = &node.Tint.B
	g.fields[3] = &node.Tint.A
	return g
}

// TweenAlpha animates node.Alpha to the target value.
func TweenAlpha(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, target: node}
	g.tweens[0] = gween.New(float32(node.Alpha), float32(to), duration, fn)
	g.fields[0] = &node.Alpha
	return g
}

// TweenRotation animates node.Rotation to the target value.
func TweenRotation(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, target: node}
	g.tweens[0] = gween.New(float32(node.Rotation), float32(to), duration, fn)
	g.fields[0] = &node.Rotation
	return g
}

// Tween animates one numeric property path of any object through the
// property codec.
type Tween struct {
	tw     *gween.Tween
	target any
	path   DataKey
	Done   bool

	// OnComplete runs once when the tween reaches its end value.
	OnComplete func()
}

// Update advances the tween by dt seconds and writes the value.
func (t *Tween) Update(dt float32) {
	if t.Done {
		return
	}
	val, finished := t.tw.Update(dt)
	if err := UpdateValues(t.target, nestValue(t.path, float64(val))); err != nil {
		Logger().Warn("tween stopped", "key", t.path.String(), "err", err)
		t.Done = true
		return
	}
	if finished {
		t.Done = true
		if t.OnComplete != nil {
			t.OnComplete()
		}
	}
}

// Stop ends the tween where it is.
func (t *Tween) Stop() { t.Done = true }

func (t *Tween) finished() bool { return t.Done }

// nestValue wraps v in maps following path, the shape UpdateValues takes.
func nestValue(path DataKey, v any) map[string]any {
	out := map[string]any{path[len(path)-1]: v}
	for i := len(path) - 2; i >= 0; i-- {
		out = map[string]any{path[i]: out}
	}
	return out
}

type animator interface {
	Update(dt float32)
	finished() bool
}

// Tweener runs tweens from Tick. It is registered as the "tweener" service.
type Tweener struct {
	active []animator
}

// NewTweener creates an empty tweener.
func NewTweener() *Tweener {
	return &Tweener{}
}

// To starts a tween of the numeric value at path on target, from its current
// value to to, over duration seconds.
func (tw *Tweener) To(target any, path DataKey, to, duration float64, fn ease.TweenFunc) (*Tween, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("grove: tween: empty path")
	}
	cur, err := GetValue(target, path)
	if err != nil {
		return nil, fmt.Errorf("grove: tween %s: %w", path, err)
	}
	from, ok := toFloat(cur)
	if !ok {
		return nil, fmt.Errorf("grove: tween %s: %w: %T is not numeric", path, ErrNotAssignable, cur)
	}
	if fn == nil {
		fn = ease.Linear
	}
	t := &Tween{
		tw:     gween.New(float32(from), float32(to), float32(duration), fn),
		target: target,
		path:   path,
	}
	tw.active = append(tw.active, t)
	return t, nil
}

// Add runs g from Tick until it is done.
func (tw *Tweener) Add(g *TweenGroup) {
	tw.active = append(tw.active, g)
}

// Tick advances every running tween and drops finished ones.
// Tweens started during Tick first advance on the next Tick.
func (tw *Tweener) Tick(dt float64) {
	pending := tw.active
	tw.active = nil
	running := pending[:0]
	for _, a := range pending {
		a.Update(float32(dt))
		if !a.finished() {
			running = append(running, a)
		}
	}
	clear(pending[len(running):])
	tw.active = append(running, tw.active...)
}

// Len returns the number of running tweens.
func (tw *Tweener) Len() int {
	return len(tw.active)
}

// Easing returns the easing function registered under name, or ease.Linear.
func Easing(name string) ease.TweenFunc {
	if fn, ok := easings[name]; ok {
		return fn
	}
	return ease.Linear
}

var easings = map[string]ease.TweenFunc{
	"linear":     ease.Linear,
	"inQuad":     ease.InQuad,
	"outQuad":    ease.OutQuad,
	"inOutQuad":  ease.InOutQuad,
	"inCubic":    ease.InCubic,
	"outCubic":   ease.OutCubic,
	"inOutCubic": ease.InOutCubic,
	"inOutSine":  ease.InOutSine,
	"outBounce":  ease.OutBounce,
	"outElastic": ease.OutElastic,
}
