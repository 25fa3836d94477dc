package grove

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at draw time.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default tint (no color modification).
var ColorWhite = Color{1, 1, 1, 1}

// ColorFromHex converts a 0xRRGGBB value (the form scene files use for tints and
// fills) into an opaque Color.
func ColorFromHex(hex uint32) Color {
	return Color{
		R: float64((hex>>16)&0xFF) / 255,
		G: float64((hex>>8)&0xFF) / 255,
		B: float64(hex&0xFF) / 255,
		A: 1,
	}
}

// DecodeValue accepts a 0xRRGGBB number or a "#rrggbb" / "0xrrggbb" string.
func (c *Color) DecodeValue(v any) error {
	if f, ok := toFloat(v); ok {
		*c = ColorFromHex(uint32(f))
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("color: unsupported value %T", v)
	}
	s = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	hex, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return fmt.Errorf("color: invalid hex %q", v)
	}
	*c = ColorFromHex(uint32(hex))
	return nil
}

// toRGBA converts a Color to a premultiplied color.RGBA.
func (c Color) toRGBA() color.RGBA {
	return color.RGBA{
		R: uint8(clamp01(c.R*c.A) * 255),
		G: uint8(clamp01(c.G*c.A) * 255),
		B: uint8(clamp01(c.B*c.A) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Vec2 is a 2D vector used for positions, scales, pivots and sizes.
// Field tags give it the {x, y} shape scene data uses.
type Vec2 struct {
	X float64 `grove:"x"`
	Y float64 `grove:"y"`
}

// DecodeValue lets a single number stand for {x: n, y: n}.
func (p *Vec2) DecodeValue(v any) error {
	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("vec2: unsupported value %T", v)
	}
	p.X, p.Y = f, f
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}

// WhitePixel is a 1x1 white image used to draw solid color rectangles.
var WhitePixel *ebiten.Image

func init() {
	WhitePixel = ebiten.NewImage(1, 1)
	WhitePixel.Fill(ColorWhite.toRGBA())
}

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rectangle containing both r and other.
// An empty operand is ignored.
func (r Rect) Union(other Rect) Rect {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	x0 := min(r.X, other.X)
	y0 := min(r.Y, other.Y)
	x1 := max(r.X+r.Width, other.X+other.Width)
	y1 := max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// BlendMode selects a compositing operation. Each maps to a specific ebiten.Blend value.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendErase                     // destination-out (punch transparent holes)
	BlendNone                      // opaque copy (skip blending)
)

// EbitenBlend returns the ebiten.Blend value corresponding to this BlendMode.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendErase:
		return ebiten.BlendDestinationOut
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}

// NodeType distinguishes drawing behavior for a Node.
type NodeType uint8

const (
	NodeTypeContainer NodeType = iota // group node with no visual output
	NodeTypeSprite                    // draws Image
	NodeTypeText                      // draws TextBlock through text/v2
	NodeTypeGraphics                  // draws a filled Width x Height rectangle
)

// String returns the display-object class name used by tooling.
func (t NodeType) String() string {
	switch t {
	case NodeTypeContainer:
		return "Container"
	case NodeTypeSprite:
		return "Sprite"
	case NodeTypeText:
		return "Text"
	case NodeTypeGraphics:
		return "Graphics"
	default:
		return "Unknown"
	}
}

// TextAlign controls horizontal text alignment within a TextBlock.
type TextAlign uint8

const (
	TextAlignLeft   TextAlign = iota // align text to the left edge (default)
	TextAlignCenter                  // center text horizontally
	TextAlignRight                   // align text to the right edge
)

// DecodeValue accepts "left", "center", "right" or the numeric constant.
func (a *TextAlign) DecodeValue(v any) error {
	if f, ok := toFloat(v); ok {
		*a = TextAlign(f)
		return nil
	}
	switch v {
	case "left":
		*a = TextAlignLeft
	case "center":
		*a = TextAlignCenter
	case "right":
		*a = TextAlignRight
	default:
		return fmt.Errorf("align: unsupported value %v", v)
	}
	return nil
}
