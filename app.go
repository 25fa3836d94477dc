package grove

import (
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Clicker is implemented by element values that react to a left click.
type Clicker interface {
	Click()
}

// App hosts a Manager in an Ebitengine game loop. It registers the asset
// loader, event bus and tweener services, ticks the manager every update,
// routes left clicks to the nearest Clicker element under the cursor, and
// draws the tree.
type App struct {
	Manager *Manager
	Assets  *AssetLoader
	Events  *EventBus
	Tweener *Tweener

	// ClearColor fills the screen before drawing when its alpha is non-zero.
	ClearColor Color

	// BeforeDraw and AfterDraw fire around the draw pass every frame.
	BeforeDraw Signal[*ebiten.Image]
	AfterDraw  Signal[*ebiten.Image]

	width, height int
	overlay       *Node
	debug         bool
	updateFunc    func() error
}

// NewApp creates an app over rt. A nil rt gets a default runtime.
func NewApp(rt *Runtime) *App {
	if rt == nil {
		rt = NewRuntime(RuntimeConfig{})
	}
	a := &App{
		Manager: NewManager(rt),
		Assets:  NewAssetLoader(AssetLoaderConfig{Logger: rt.Logger}),
		Events:  NewEventBus(nil),
		Tweener: NewTweener(),
	}
	a.Manager.AddService(ServiceAssets, a.Assets)
	a.Manager.AddService(ServiceEvents, a.Events)
	a.Manager.AddService(ServiceTweener, a.Tweener)
	a.Manager.AddService(ServiceApp, a)
	return a
}

// SetUpdateFunc sets a callback run at the end of every Update.
func (a *App) SetUpdateFunc(fn func() error) {
	a.updateFunc = fn
}

// SetDebugMode enables tree checks and per-frame timing logs.
func (a *App) SetDebugMode(enabled bool) {
	a.debug = enabled
	SetDebugMode(enabled)
}

// SetOverlay sets a node drawn above the scene and outside it, such as an
// FPS counter created in code.
func (a *App) SetOverlay(n *Node) {
	a.overlay = n
}

// Update implements ebiten.Game.
func (a *App) Update() error {
	a.Step(1.0 / float64(ebiten.TPS()))
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		a.ClickAt(float64(x), float64(y))
	}
	if a.updateFunc != nil {
		return a.updateFunc()
	}
	return nil
}

// Step ticks the manager by dt seconds and refreshes world transforms.
func (a *App) Step(dt float64) {
	start := time.Now()
	a.Manager.Tick(dt)
	if root := a.Manager.Root(); root != nil {
		root.Node.UpdateTransform()
	}
	if a.overlay != nil {
		a.overlay.UpdateTransform()
	}
	if a.debug {
		a.Manager.log.Debug("tick", "elapsed", time.Since(start), "elements", a.Manager.Len())
	}
}

// ClickAt routes a click at screen position (x, y) to the topmost node's
// nearest Clicker element. Reports whether one was found.
func (a *App) ClickAt(x, y float64) bool {
	root := a.Manager.Root()
	if root == nil {
		return false
	}
	for n := HitTest(root.Node, x, y); n != nil; n = n.Parent {
		if el := n.element; el != nil {
			if c, ok := el.Value.(Clicker); ok {
				c.Click()
				return true
			}
		}
	}
	return false
}

// Draw implements ebiten.Game.
func (a *App) Draw(screen *ebiten.Image) {
	start := time.Now()
	a.BeforeDraw.Emit(screen)
	if a.ClearColor.A > 0 {
		screen.Fill(a.ClearColor.toRGBA())
	}
	if root := a.Manager.Root(); root != nil {
		drawNode(screen, root.Node)
	}
	if a.overlay != nil {
		drawNode(screen, a.overlay)
	}
	a.AfterDraw.Emit(screen)
	if a.debug {
		var nodes int
		if root := a.Manager.Root(); root != nil {
			nodes = countNodes(root.Node)
		}
		a.Manager.log.Debug("draw", "elapsed", time.Since(start), "nodes", nodes)
	}
}

// Layout implements ebiten.Game. A configured size is fixed; otherwise the
// outside size is used.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	if a.width > 0 && a.height > 0 {
		return a.width, a.height
	}
	return outsideWidth, outsideHeight
}

// drawNode draws n and its subtree in tree order. Invisible nodes are
// skipped with their subtree; non-renderable nodes still draw children.
func drawNode(dst *ebiten.Image, n *Node) {
	if !n.Visible || n.worldAlpha <= 0 {
		return
	}
	if n.Renderable {
		switch n.Type {
		case NodeTypeSprite:
			if n.Image != nil {
				op := &ebiten.DrawImageOptions{Blend: n.BlendMode.EbitenBlend()}
				applyWorldGeoM(&op.GeoM, n.worldTransform)
				op.ColorScale.ScaleWithColor(tinted(n))
				dst.DrawImage(n.Image, op)
			}
		case NodeTypeGraphics:
			if n.Width > 0 && n.Height > 0 {
				op := &ebiten.DrawImageOptions{Blend: n.BlendMode.EbitenBlend()}
				op.GeoM.Scale(n.Width, n.Height)
				applyWorldGeoM(&op.GeoM, n.worldTransform)
				op.ColorScale.ScaleWithColor(tinted(n))
				dst.DrawImage(WhitePixel, op)
			}
		case NodeTypeText:
			if n.TextBlock != nil {
				n.TextBlock.draw(dst, n)
			}
		}
	}
	for _, c := range n.children {
		drawNode(dst, c)
	}
}

func tinted(n *Node) color.Color {
	t := n.Tint
	t.A *= n.worldAlpha
	return t.toRGBA()
}

// applyWorldGeoM appends the affine matrix m ([a, b, c, d, tx, ty]) to g.
func applyWorldGeoM(g *ebiten.GeoM, m [6]float64) {
	var w ebiten.GeoM
	w.SetElement(0, 0, m[0])
	w.SetElement(1, 0, m[1])
	w.SetElement(0, 1, m[2])
	w.SetElement(1, 1, m[3])
	w.SetElement(0, 2, m[4])
	w.SetElement(1, 2, m[5])
	g.Concat(w)
}

// RunConfig holds window settings for Run.
type RunConfig struct {
	Title   string
	Width   int
	Height  int
	TPS     int
	ShowFPS bool
}

// Run opens a window and runs app until the window is closed or Update
// returns an error. The scene is torn down when Run returns.
func Run(app *App, cfg RunConfig) error {
	if cfg.Width > 0 && cfg.Height > 0 {
		ebiten.SetWindowSize(cfg.Width, cfg.Height)
		app.width, app.height = cfg.Width, cfg.Height
	}
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	if cfg.TPS > 0 {
		ebiten.SetTPS(cfg.TPS)
	}
	if cfg.ShowFPS {
		v, _ := newFPSElement(nil)
		fps := v.(*FPSElement)
		app.SetOverlay(fps.Node)
		app.Manager.AddService("fps", fps)
	}
	defer app.Manager.Teardown()
	return ebiten.RunGame(app)
}
