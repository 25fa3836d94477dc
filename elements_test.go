package grove

import (
	"math"
	"strings"
	"testing"
)

func TestMeterFormatsCurrency(t *testing.T) {
	text := &TextElement{Node: NewText("", "")}
	m := &MeterElement{Node: NewContainer(""), Text: text, Currency: "EUR", Locale: "de-DE"}

	m.SetValue(123456)
	got := m.Formatted()
	if !strings.Contains(got, "€") {
		t.Errorf("Formatted() = %q, want a euro sign", got)
	}
	if !strings.Contains(got, "234") || !strings.Contains(got, "56") {
		t.Errorf("Formatted() = %q, want the amount 1234.56", got)
	}
	if text.Text() != got {
		t.Errorf("text = %q, want %q", text.Text(), got)
	}
	if m.Value() != 123456 {
		t.Errorf("Value() = %d", m.Value())
	}
}

func TestMeterFallsBackToUSD(t *testing.T) {
	m := &MeterElement{Node: NewContainer(""), Currency: "???", Locale: "not a locale"}
	m.SetValue(500)
	if got := m.Formatted(); !strings.Contains(got, "$") {
		t.Errorf("Formatted() = %q, want a dollar sign", got)
	}
}

func TestMeterMovesBackgroundFirst(t *testing.T) {
	rt := NewRuntime(RuntimeConfig{})
	m := NewManager(rt)
	err := m.LoadScene(Descriptor{
		Type: TypeContainer,
		Children: []Descriptor{{
			Type:       TypeMeter,
			ID:         "1",
			Values:     map[string]any{"value": 250},
			Properties: map[string]PropertyRef{"text": Ref(2), "background": Ref(3)},
			Children: []Descriptor{
				{Type: TypeText, ID: "2"},
				{Type: TypeGraphics, ID: "3", Values: map[string]any{"width": 80, "height": 20}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	meter := m.Element("1").Value.(*MeterElement)
	if meter.Text == nil || meter.Text.Text() != meter.Formatted() {
		t.Fatalf("meter text not injected or not refreshed")
	}
	if first := meter.Node.children[0]; first != m.Element("3").Node {
		t.Errorf("first child = %q, want the background", first.Name)
	}
}

func TestMoviePlaysAndLoops(t *testing.T) {
	mv := &MovieElement{Node: NewSprite("", nil), FPS: 10, Loop: true}
	mv.SetFrames([]string{"a", "b", "c"})

	mv.Tick(0.25)
	if mv.CurrentFrame() != 0 {
		t.Fatalf("stopped movie advanced to %d", mv.CurrentFrame())
	}

	mv.Play()
	mv.Tick(0.25)
	if mv.CurrentFrame() != 2 {
		t.Errorf("CurrentFrame() = %d after 0.25s at 10fps, want 2", mv.CurrentFrame())
	}
	mv.Tick(0.1)
	if mv.CurrentFrame() != 0 {
		t.Errorf("CurrentFrame() = %d, want wrap to 0", mv.CurrentFrame())
	}
}

func TestMovieStopsAtEndWithoutLoop(t *testing.T) {
	mv := &MovieElement{Node: NewSprite("", nil), FPS: 10}
	mv.SetFrames([]string{"a", "b", "c"})

	mv.GotoAndPlay(1)
	mv.Tick(0.5)
	if mv.IsPlaying() {
		t.Error("movie still playing past the last frame")
	}
	if mv.CurrentFrame() != 2 {
		t.Errorf("CurrentFrame() = %d, want 2", mv.CurrentFrame())
	}

	mv.GotoAndStop(99)
	if mv.CurrentFrame() != 2 || mv.IsPlaying() {
		t.Errorf("GotoAndStop(99): frame %d playing %v", mv.CurrentFrame(), mv.IsPlaying())
	}
	mv.GotoAndStop(-5)
	if mv.CurrentFrame() != 0 {
		t.Errorf("GotoAndStop(-5): frame %d, want 0", mv.CurrentFrame())
	}
}

func TestButtonClickRespectsEnable(t *testing.T) {
	bus := NewEventBus(nil)
	b := &ButtonElement{Node: NewContainer(""), EventName: "go", events: bus, enabled: true}
	count := 0
	bus.Subscribe("go", func(Event) { count++ })

	b.Click()
	b.SetEnable(false)
	b.Click()
	bus.Tick(0)

	if count != 1 {
		t.Errorf("got %d events, want 1", count)
	}
	if b.Enable() {
		t.Error("Enable() = true after SetEnable(false)")
	}
}

func TestBackdropCoversChildren(t *testing.T) {
	rt := NewRuntime(RuntimeConfig{})
	m := NewManager(rt)
	err := m.LoadScene(Descriptor{
		Type: TypeContainer,
		Children: []Descriptor{{
			Type:        TypeContainer,
			ID:          "1",
			Controllers: []Descriptor{{Type: TypeBackdrop, ID: "4", Values: map[string]any{"padding": 5}}},
			Children: []Descriptor{
				{Type: TypeGraphics, ID: "2", Values: map[string]any{"width": 10, "height": 10}},
				{Type: TypeGraphics, ID: "3", Values: map[string]any{
					"width": 20, "height": 10, "position": map[string]any{"x": 30, "y": 20},
				}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	backdrop := m.Element("4").Value.(*BackdropController)
	want := Rect{X: -5, Y: -5, Width: 60, Height: 40}
	if got := backdrop.Bounds(); got != want {
		t.Errorf("Bounds() = %+v, want %+v", got, want)
	}
	panel := m.Element("1")
	if panel.Node.children[0].Name != "backdrop" {
		t.Errorf("first child = %q, want backdrop", panel.Node.children[0].Name)
	}
	if n := len(panel.Children()); n != 2 {
		t.Errorf("panel has %d element children, want 2", n)
	}

	m.Teardown()
	if got := backdrop.Bounds(); got != (Rect{}) {
		t.Errorf("Bounds() after teardown = %+v", got)
	}
}

func TestTweenControllerYoyo(t *testing.T) {
	app := NewApp(nil)
	err := app.Manager.LoadScene(Descriptor{
		Type: TypeContainer,
		Children: []Descriptor{{
			Type: TypeSprite,
			ID:   "1",
			Controllers: []Descriptor{{Type: TypeTween, ID: "2", Values: map[string]any{
				"property": "alpha", "to": 0, "duration": 1, "yoyo": true,
			}}},
		}},
	})
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	sprite := app.Manager.Element("1").Node
	ctrl := app.Manager.Element("2").Value.(*TweenController)

	app.Step(1)
	if math.Abs(sprite.Alpha) > 0.01 {
		t.Errorf("alpha = %f after the first leg, want ~0", sprite.Alpha)
	}
	app.Step(0.5)
	if math.Abs(sprite.Alpha-0.5) > 0.01 {
		t.Errorf("alpha = %f halfway back, want ~0.5", sprite.Alpha)
	}
	if !ctrl.Running() {
		t.Error("yoyo tween stopped")
	}

	app.Manager.Teardown()
	if ctrl.Running() {
		t.Error("tween still running after teardown")
	}
}
