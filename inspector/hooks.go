package inspector

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/grove"
)

// HookKind selects when a render hook runs.
type HookKind uint8

const (
	BeforeRender HookKind = iota
	AfterRender
)

// HookFunc receives the stage being drawn and the target it is drawn to.
// screen is nil when hooks run outside a draw pass.
type HookFunc func(stage *grove.Node, screen *ebiten.Image)

type hook struct {
	fn        HookFunc
	throttle  time.Duration
	skipUntil time.Time
}

// Hooks runs callbacks around a draw pass. A hook with a throttle is skipped
// until the throttle has elapsed since its last run. Run is not re-entrant:
// a call made from inside a hook is ignored.
type Hooks struct {
	before  []*hook
	after   []*hook
	running bool
	now     func() time.Time
}

// NewHooks creates an empty set. A nil now uses time.Now.
func NewHooks(now func() time.Time) *Hooks {
	if now == nil {
		now = time.Now
	}
	return &Hooks{now: now}
}

// Register adds fn and returns a function that removes it.
func (h *Hooks) Register(kind HookKind, fn HookFunc, throttle time.Duration) func() {
	hk := &hook{fn: fn, throttle: throttle}
	list := h.list(kind)
	*list = append(*list, hk)
	return func() {
		list := h.list(kind)
		for i, x := range *list {
			if x == hk {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func (h *Hooks) list(kind HookKind) *[]*hook {
	if kind == AfterRender {
		return &h.after
	}
	return &h.before
}

// Run invokes the hooks of kind with stage and screen.
func (h *Hooks) Run(kind HookKind, stage *grove.Node, screen *ebiten.Image) {
	if h.running {
		return
	}
	h.running = true
	defer func() { h.running = false }()

	now := h.now()
	for _, hk := range *h.list(kind) {
		if now.Before(hk.skipUntil) {
			continue
		}
		hk.fn(stage, screen)
		if hk.throttle > 0 {
			hk.skipUntil = now.Add(hk.throttle)
		}
	}
}

// Len returns the number of registered hooks of kind.
func (h *Hooks) Len(kind HookKind) int {
	return len(*h.list(kind))
}
