package inspector

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/grove"
)

// Config configures an Inspector.
type Config struct {
	// Now supplies the clock used for hook throttling. Defaults to time.Now.
	Now func() time.Time
	// ChangeThrottle limits how often the tree is diffed. Defaults to 250ms.
	ChangeThrottle time.Duration
	// HighlightColor outlines the highlighted node. Defaults to a light blue.
	HighlightColor grove.Color
	// Logger defaults to grove.Logger().
	Logger *slog.Logger
}

// Instance describes the running framework in reply to DETECT.
type Instance struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Inspector observes the trees an App draws and reports them to a devtools
// panel over a Channel. Hooks only run while it is enabled.
type Inspector struct {
	Outliner *Outliner
	Types    *TypeDetection

	ch      Channel
	cfg     Config
	log     *slog.Logger
	hooks   *Hooks
	app     *grove.App
	enabled bool

	enabledSubs []func(bool)
	draw        []grove.CallbackHandle
	unsubs      []func()
}

// New creates a disabled inspector reporting over ch and starts answering
// DETECT, INSPECTOR and PANEL_VISIBLE requests.
func New(ch Channel, cfg Config) *Inspector {
	if cfg.ChangeThrottle <= 0 {
		cfg.ChangeThrottle = 250 * time.Millisecond
	}
	if cfg.HighlightColor == (grove.Color{}) {
		cfg.HighlightColor = grove.Color{R: 0.4, G: 0.7, B: 1, A: 0.9}
	}
	if cfg.Logger == nil {
		cfg.Logger = grove.Logger()
	}
	types := NewTypeDetection()
	i := &Inspector{
		Outliner: NewOutliner(ch, types),
		Types:    types,
		ch:       ch,
		cfg:      cfg,
		log:      cfg.Logger,
		hooks:    NewHooks(cfg.Now),
	}
	i.hooks.Register(BeforeRender, func(stage *grove.Node, _ *ebiten.Image) {
		i.Outliner.DetectScene(stage)
	}, 0)
	i.hooks.Register(BeforeRender, func(stage *grove.Node, _ *ebiten.Image) {
		i.Outliner.DetectChanges(stage)
	}, cfg.ChangeThrottle)
	i.hooks.Register(AfterRender, i.drawHighlight, 0)

	if ch != nil {
		i.unsubs = append(i.unsubs,
			ch.Subscribe(CmdDetect, i.onDetect),
			ch.Subscribe(CmdInspector, i.onInspector),
			ch.Subscribe(CmdPanelVisible, i.onPanelVisible),
		)
	}
	return i
}

// Version reports the module version in INSTANCES replies.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	for _, dep := range info.Deps {
		if dep.Path == "github.com/phanxgames/grove" {
			return dep.Version
		}
	}
	if info.Main.Path == "github.com/phanxgames/grove" && info.Main.Version != "" {
		return info.Main.Version
	}
	return "devel"
}

func (i *Inspector) onDetect(Message) {
	if err := i.ch.Emit(CmdInstances, []Instance{{Status: "INJECTED", Version: Version()}}); err != nil {
		i.log.Warn("inspector emit failed", "command", string(CmdInstances), "err", err)
	}
	if err := i.ch.Emit(CmdDetected, nil); err != nil {
		i.log.Warn("inspector emit failed", "command", string(CmdDetected), "err", err)
	}
}

// onInspector answers a panel connecting to this instance: hooks start and
// the current tree is sent right away.
func (i *Inspector) onInspector(Message) {
	i.Enable()
	if err := i.ch.Emit(CmdTree, i.Outliner.Tree()); err != nil {
		i.log.Warn("inspector emit failed", "command", string(CmdTree), "err", err)
	}
}

func (i *Inspector) onPanelVisible(msg Message) {
	var visible bool
	if err := msg.Decode(&visible); err != nil {
		i.log.Warn("inspector: bad PANEL_VISIBLE payload", "err", err)
		return
	}
	if visible {
		i.Enable()
	} else {
		i.Disable()
	}
}

// Attach targets app's draw pass. Attaching while enabled moves the hooks.
func (i *Inspector) Attach(app *grove.App) {
	wasEnabled := i.enabled
	if wasEnabled {
		i.unhook()
	}
	i.app = app
	if wasEnabled {
		i.hook()
	}
}

// Enable starts running hooks around the attached app's draw pass.
func (i *Inspector) Enable() {
	if i.enabled {
		return
	}
	i.hook()
	i.setEnabled(true)
}

// Disable stops running hooks.
func (i *Inspector) Disable() {
	if !i.enabled {
		return
	}
	i.unhook()
	i.setEnabled(false)
}

// Enabled reports whether hooks are running.
func (i *Inspector) Enabled() bool {
	return i.enabled
}

// OnEnabled calls fn with the current state and on every later change.
func (i *Inspector) OnEnabled(fn func(bool)) {
	i.enabledSubs = append(i.enabledSubs, fn)
	fn(i.enabled)
}

func (i *Inspector) setEnabled(on bool) {
	i.enabled = on
	for _, fn := range i.enabledSubs {
		fn(on)
	}
}

func (i *Inspector) hook() {
	if i.app == nil {
		return
	}
	i.draw = append(i.draw,
		i.app.BeforeDraw.Connect(func(screen *ebiten.Image) {
			if stage := i.stage(); stage != nil {
				i.RunHooks(BeforeRender, stage, screen)
			}
		}),
		i.app.AfterDraw.Connect(func(screen *ebiten.Image) {
			if stage := i.stage(); stage != nil {
				i.RunHooks(AfterRender, stage, screen)
			}
		}),
	)
}

func (i *Inspector) unhook() {
	for _, h := range i.draw {
		h.Remove()
	}
	i.draw = nil
}

func (i *Inspector) stage() *grove.Node {
	root := i.app.Manager.Root()
	if root == nil {
		return nil
	}
	return root.Node
}

// RegisterHook adds fn to run at kind, at most once per throttle. Returns
// a function that removes it.
func (i *Inspector) RegisterHook(kind HookKind, fn HookFunc, throttle time.Duration) func() {
	return i.hooks.Register(kind, fn, throttle)
}

// RunHooks runs the hooks of kind for stage. Calls made while hooks are
// already running are ignored.
func (i *Inspector) RunHooks(kind HookKind, stage *grove.Node, screen *ebiten.Image) {
	i.hooks.Run(kind, stage, screen)
}

// target returns the value the codec reads for node id: the element value
// when the node belongs to one, the node otherwise.
func (i *Inspector) target(id int) (any, []grove.DataKey, error) {
	n := i.Outliner.Node(id)
	if n == nil {
		return nil, nil, fmt.Errorf("inspector: no node %d", id)
	}
	if el := n.Element(); el != nil {
		return el.Value, el.DataKeys, nil
	}
	return n, grove.DefaultDataKeys, nil
}

// Properties returns the data values of node id. Values that cannot be
// read are left out and reported in the error.
func (i *Inspector) Properties(id int) (map[string]any, error) {
	obj, keys, err := i.target(id)
	if err != nil {
		return nil, err
	}
	return grove.GetValues(obj, keys)
}

// SetProperty merges values into node id without invoking methods.
func (i *Inspector) SetProperty(id int, values map[string]any) error {
	obj, _, err := i.target(id)
	if err != nil {
		return err
	}
	return grove.UpdateValues(obj, values)
}

// Close disables the inspector and drops its channel subscriptions.
func (i *Inspector) Close() {
	i.Disable()
	for _, u := range i.unsubs {
		u()
	}
	i.unsubs = nil
	if i.ch != nil {
		if err := i.ch.Emit(CmdDisconnected, nil); err != nil {
			i.log.Warn("inspector emit failed", "command", string(CmdDisconnected), "err", err)
		}
	}
}

const highlightStroke = 2

func (i *Inspector) drawHighlight(_ *grove.Node, screen *ebiten.Image) {
	n := i.Outliner.Highlighted()
	if screen == nil || n == nil || n.IsDisposed() {
		return
	}
	r := n.WorldBounds()
	if r.Empty() {
		return
	}
	s := float64(highlightStroke)
	fillRect(screen, r.X, r.Y, r.Width, s, i.cfg.HighlightColor)
	fillRect(screen, r.X, r.Y+r.Height-s, r.Width, s, i.cfg.HighlightColor)
	fillRect(screen, r.X, r.Y, s, r.Height, i.cfg.HighlightColor)
	fillRect(screen, r.X+r.Width-s, r.Y, s, r.Height, i.cfg.HighlightColor)
}

func fillRect(dst *ebiten.Image, x, y, w, h float64, c grove.Color) {
	var op ebiten.DrawImageOptions
	op.GeoM.Scale(w, h)
	op.GeoM.Translate(x, y)
	op.ColorScale.Scale(float32(c.R*c.A), float32(c.G*c.A), float32(c.B*c.A), float32(c.A))
	dst.DrawImage(grove.WhitePixel, &op)
}
