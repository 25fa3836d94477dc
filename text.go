package grove

import (
	"fmt"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
)

// FontResolver looks up a parsed font by family name. AssetLoader implements it.
type FontResolver interface {
	Font(family string) (*text.GoTextFaceSource, bool)
}

// TextStyle holds the data-driven look of a text node.
type TextStyle struct {
	FontFamily string    `grove:"fontFamily"`
	FontSize   float64   `grove:"fontSize"`
	Fill       Color     `grove:"fill"`
	Align      TextAlign `grove:"align"`
	LineHeight float64   `grove:"lineHeight"`
}

func defaultTextStyle() TextStyle {
	return TextStyle{FontSize: 26, Fill: ColorWhite}
}

// TextBlock is the text payload of a NodeTypeText node.
type TextBlock struct {
	Content string
	Style   TextStyle
	Fonts   FontResolver

	face      *text.GoTextFace
	faceKey   string
	measuredW float64
	measuredH float64
	dirty     bool
}

// SetContent replaces the text and schedules a re-measure.
func (tb *TextBlock) SetContent(s string) {
	if tb.Content == s {
		return
	}
	tb.Content = s
	tb.dirty = true
}

// SetStyle replaces the style and schedules a re-measure.
func (tb *TextBlock) SetStyle(st TextStyle) {
	tb.Style = st
	tb.dirty = true
}

// resolveFace returns the face for the current style, or nil when the font
// family is not loaded (yet).
func (tb *TextBlock) resolveFace() *text.GoTextFace {
	key := fmt.Sprintf("%s@%g", tb.Style.FontFamily, tb.Style.FontSize)
	if tb.face != nil && tb.faceKey == key {
		return tb.face
	}
	if tb.Fonts == nil {
		return nil
	}
	src, ok := tb.Fonts.Font(tb.Style.FontFamily)
	if !ok {
		return nil
	}
	tb.face = &text.GoTextFace{Source: src, Size: tb.Style.FontSize}
	tb.faceKey = key
	tb.dirty = true
	return tb.face
}

func (tb *TextBlock) lineSpacing(face *text.GoTextFace) float64 {
	if tb.Style.LineHeight > 0 {
		return tb.Style.LineHeight
	}
	m := face.Metrics()
	return m.HAscent + m.HDescent + m.HLineGap
}

// measure refreshes measuredW/H. Without a resolvable face the block
// measures as empty.
func (tb *TextBlock) measure() {
	face := tb.resolveFace()
	if face == nil {
		tb.measuredW, tb.measuredH = 0, 0
		return
	}
	if !tb.dirty {
		return
	}
	tb.measuredW, tb.measuredH = text.Measure(tb.Content, face, tb.lineSpacing(face))
	tb.dirty = false
}

// draw renders the block with the node's world transform.
func (tb *TextBlock) draw(dst *ebiten.Image, n *Node) {
	face := tb.resolveFace()
	if face == nil || strings.TrimSpace(tb.Content) == "" {
		return
	}
	tb.measure()
	op := &text.DrawOptions{}
	op.LineSpacing = tb.lineSpacing(face)
	switch tb.Style.Align {
	case TextAlignCenter:
		op.PrimaryAlign = text.AlignCenter
		op.GeoM.Translate(tb.measuredW/2, 0)
	case TextAlignRight:
		op.PrimaryAlign = text.AlignEnd
		op.GeoM.Translate(tb.measuredW, 0)
	}
	applyWorldGeoM(&op.GeoM, n.worldTransform)
	fill := tb.Style.Fill
	op.ColorScale.ScaleWithColor(Color{fill.R, fill.G, fill.B, fill.A * n.worldAlpha}.toRGBA())
	text.Draw(dst, tb.Content, face, op)
}
