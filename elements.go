package grove

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Built-in type names.
const (
	TypeContainer = "container"
	TypeSprite    = "sprite"
	TypeText      = "text"
	TypeGraphics  = "graphics"
	TypeMovie     = "movie"
	TypeButton    = "button"
	TypeMeter     = "meter"
	TypeFPS       = "fps"
	TypeBackdrop  = "backdrop"
	TypeTween     = "tween"
)

// RegisterBuiltins registers the built-in element and controller types.
func RegisterBuiltins(reg *Registry) error {
	var errs []error
	define := func(name string, f Factory, keys []DataKey, injectables ...string) *ElementType {
		t, err := reg.Define(name, f, keys, injectables...)
		errs = append(errs, err)
		return t
	}
	container := define(TypeContainer, newContainerElement, DefaultDataKeys)
	define(TypeSprite, newSpriteElement, WithDataKeys("source", "tint", "blendMode"))
	define(TypeText, newTextElement, WithDataKeys("text", "style.fontFamily", "style.fontSize", "style.fill", "style.align"))
	define(TypeGraphics, newGraphicsElement, WithDataKeys("width", "height", "tint"))
	define(TypeMovie, newMovieElement, WithDataKeys("frames", "fps", "loop"))
	define(TypeFPS, newFPSElement, DefaultDataKeys)
	define(TypeBackdrop, newBackdropController, ParseDataKeys("fillColor", "padding"))
	define(TypeTween, newTweenController, ParseDataKeys("property", "to", "duration", "easing", "yoyo"))
	if container == nil {
		return errors.Join(errs...)
	}
	_, err := reg.Extend(container, TypeButton, newButtonElement, nil, "frames", "enable", "eventName")
	errs = append(errs, err)
	_, err = reg.Extend(container, TypeMeter, newMeterElement, WithDataKeys("value", "currency", "locale"), "text", "background")
	errs = append(errs, err)
	return errors.Join(errs...)
}

func assetsFrom(ctx *Context) *AssetLoader {
	a, _ := ServiceAs[*AssetLoader](ctx, ServiceAssets)
	return a
}

// ContainerElement groups children without drawing anything itself.
type ContainerElement struct {
	*Node
}

func newContainerElement(*Context) (any, error) {
	return &ContainerElement{Node: NewContainer("")}, nil
}

// SpriteElement draws an image looked up by name in the asset loader.
type SpriteElement struct {
	*Node
	assets *AssetLoader
	source string
}

func newSpriteElement(ctx *Context) (any, error) {
	return &SpriteElement{Node: NewSprite("", nil), assets: assetsFrom(ctx)}, nil
}

// Source returns the asset name of the image.
func (s *SpriteElement) Source() string { return s.source }

// SetSource switches the image. An asset that is not loaded yet is retried
// in PostInitialize.
func (s *SpriteElement) SetSource(name string) {
	s.source = name
	s.resolve()
}

func (s *SpriteElement) resolve() {
	if s.assets == nil || s.source == "" {
		return
	}
	if img, ok := s.assets.Image(s.source); ok {
		s.Image = img
	}
}

func (s *SpriteElement) PostInitialize() {
	if s.Image == nil {
		s.resolve()
	}
}

// TextElement draws a string with a data-driven style.
type TextElement struct {
	*Node
}

func newTextElement(ctx *Context) (any, error) {
	n := NewText("", "")
	if a := assetsFrom(ctx); a != nil {
		n.TextBlock.Fonts = a
	}
	return &TextElement{Node: n}, nil
}

func (t *TextElement) Text() string         { return t.TextBlock.Content }
func (t *TextElement) SetText(s string)     { t.TextBlock.SetContent(s) }
func (t *TextElement) Style() TextStyle     { return t.TextBlock.Style }
func (t *TextElement) SetStyle(s TextStyle) { t.TextBlock.SetStyle(s) }

// GraphicsElement draws a filled rectangle of Width x Height in Tint.
type GraphicsElement struct {
	*Node
}

func newGraphicsElement(*Context) (any, error) {
	return &GraphicsElement{Node: NewGraphics("", 0, 0, ColorWhite)}, nil
}

// MovieElement plays a sequence of image assets at FPS frames per second.
type MovieElement struct {
	*Node
	FPS  float64 `grove:"fps"`
	Loop bool    `grove:"loop"`

	assets  *AssetLoader
	frames  []string
	current int
	playing bool
	elapsed float64
}

func newMovieElement(ctx *Context) (any, error) {
	return &MovieElement{Node: NewSprite("", nil), FPS: 24, Loop: true, assets: assetsFrom(ctx)}, nil
}

// Frames returns the asset names of the frames.
func (m *MovieElement) Frames() []string { return m.frames }

// SetFrames replaces the frames and shows the first one.
func (m *MovieElement) SetFrames(frames []string) {
	m.frames = frames
	m.current = 0
	m.show()
}

// CurrentFrame returns the index of the displayed frame.
func (m *MovieElement) CurrentFrame() int { return m.current }

// IsPlaying reports whether the movie advances on Tick.
func (m *MovieElement) IsPlaying() bool { return m.playing }

func (m *MovieElement) Play() { m.playing = true }
func (m *MovieElement) Stop() { m.playing = false }

// GotoAndPlay jumps to frame and plays.
func (m *MovieElement) GotoAndPlay(frame int) {
	m.gotoFrame(frame)
	m.playing = true
}

// GotoAndStop jumps to frame and stops.
func (m *MovieElement) GotoAndStop(frame int) {
	m.gotoFrame(frame)
	m.playing = false
}

func (m *MovieElement) gotoFrame(frame int) {
	if len(m.frames) == 0 {
		return
	}
	m.current = max(0, min(frame, len(m.frames)-1))
	m.elapsed = 0
	m.show()
}

func (m *MovieElement) show() {
	if m.assets == nil || len(m.frames) == 0 {
		return
	}
	if img, ok := m.assets.Image(m.frames[m.current]); ok {
		m.Image = img
	}
}

func (m *MovieElement) PostInitialize() { m.show() }

func (m *MovieElement) Tick(dt float64) {
	if !m.playing || len(m.frames) == 0 || m.FPS <= 0 {
		return
	}
	step := 1 / m.FPS
	m.elapsed += dt
	for m.elapsed >= step {
		m.elapsed -= step
		if m.current+1 < len(m.frames) {
			m.current++
		} else if m.Loop {
			m.current = 0
		} else {
			m.playing = false
			m.elapsed = 0
			break
		}
	}
	m.show()
}

// ButtonElement is a container that shows one of its frames in a sprite
// child and publishes EventName on the event bus when clicked while enabled.
type ButtonElement struct {
	*Node
	Frames    []string `grove:"frames"`
	EventName string   `grove:"eventName"`

	assets  *AssetLoader
	events  *EventBus
	enabled bool
	sprite  *Node
}

func newButtonElement(ctx *Context) (any, error) {
	b := &ButtonElement{Node: NewContainer(""), assets: assetsFrom(ctx), enabled: true}
	b.events, _ = ServiceAs[*EventBus](ctx, ServiceEvents)
	b.Interactive = true
	return b, nil
}

// Enable reports whether clicks are accepted.
func (b *ButtonElement) Enable() bool { return b.enabled }

// SetEnable switches between the first frame and the last (disabled) frame.
func (b *ButtonElement) SetEnable(on bool) {
	b.enabled = on
	b.refresh()
}

// PostInitialize creates the sprite child once frames are injected.
func (b *ButtonElement) PostInitialize() {
	if b.sprite == nil {
		b.sprite = NewSprite("button_sprite", nil)
		b.AddChildAt(b.sprite, 0)
	}
	b.refresh()
}

func (b *ButtonElement) refresh() {
	if b.sprite == nil || b.assets == nil || len(b.Frames) == 0 {
		return
	}
	frame := b.Frames[0]
	if !b.enabled && len(b.Frames) > 1 {
		frame = b.Frames[len(b.Frames)-1]
	}
	if img, ok := b.assets.Image(frame); ok {
		b.sprite.Image = img
	}
}

// Click publishes EventName when enabled.
func (b *ButtonElement) Click() {
	if !b.enabled || b.events == nil || b.EventName == "" {
		return
	}
	b.events.Publish(Event{Name: b.EventName, Source: b.Element()})
}

// MeterElement displays an amount of money in an injected text element,
// formatted for Currency and Locale.
type MeterElement struct {
	*Node
	Text       *TextElement `grove:"text"`
	Background *Element     `grove:"background"`
	Currency   string       `grove:"currency"`
	Locale     string       `grove:"locale"`

	cents int64
}

func newMeterElement(*Context) (any, error) {
	return &MeterElement{Node: NewContainer(""), Currency: "USD", Locale: "en-US"}, nil
}

// Value returns the amount in cents.
func (m *MeterElement) Value() int64 { return m.cents }

// SetValue sets the amount in cents and refreshes the text.
func (m *MeterElement) SetValue(cents int64) {
	m.cents = cents
	m.refresh()
}

// Formatted returns the amount formatted for the meter's currency and locale.
func (m *MeterElement) Formatted() string {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		unit = currency.USD
	}
	tag, err := language.Parse(m.Locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(float64(m.cents) / 100)))
}

func (m *MeterElement) refresh() {
	if m.Text != nil {
		m.Text.SetText(m.Formatted())
	}
}

func (m *MeterElement) PostInitialize() {
	if m.Background != nil && m.Background.Node != nil && m.Background.Node.Parent == m.Node {
		m.SetChildIndex(m.Background.Node, 0)
	}
	m.refresh()
}

// FPSElement is a debug overlay showing the actual FPS and TPS. It is never
// saved with the scene.
type FPSElement struct {
	*Node
	img     *ebiten.Image
	elapsed float64
}

func newFPSElement(*Context) (any, error) {
	img := ebiten.NewImage(100, 32)
	return &FPSElement{Node: NewSprite("fps", img), img: img, elapsed: 0.5}, nil
}

func (f *FPSElement) ElementTraits() Trait { return TraitDontSave }

// Tick redraws the overlay every half second.
func (f *FPSElement) Tick(dt float64) {
	f.elapsed += dt
	if f.elapsed < 0.5 {
		return
	}
	f.elapsed = 0
	f.img.Clear()
	f.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(f.img, fmt.Sprintf("FPS: %.1f\nTPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()))
}
