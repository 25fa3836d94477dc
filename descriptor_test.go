package grove

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

const sceneJSON = `{
  "type": "container",
  "children": [
    {"type": "sprite", "id": "1", "values": {"alpha": 0.5, "position": {"x": 3}}},
    {
      "type": "meter",
      "id": "2",
      "properties": {"text": 3, "items": [1, 3], "label": {"value": "gold"}, "empty": null},
      "children": [{"type": "text", "id": "3"}],
      "controllers": [{"type": "tween", "values": {"property": "alpha", "to": 0}}]
    }
  ]
}`

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(sceneJSON))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Type != "container" || len(d.Children) != 2 {
		t.Fatalf("root = %+v", d)
	}
	sprite := d.Children[0]
	if sprite.Values["alpha"] != 0.5 {
		t.Errorf("alpha = %v", sprite.Values["alpha"])
	}
	meter := d.Children[1]
	want := map[string]PropertyRef{
		"text":  Ref(3),
		"items": Refs(1, 3),
		"label": Literal("gold"),
		"empty": Literal(nil),
	}
	if !reflect.DeepEqual(meter.Properties, want) {
		t.Errorf("properties = %+v, want %+v", meter.Properties, want)
	}
	if len(meter.Controllers) != 1 || meter.Controllers[0].Type != "tween" {
		t.Errorf("controllers = %+v", meter.Controllers)
	}
}

func TestPropertyRefWireForm(t *testing.T) {
	tests := []struct {
		ref  PropertyRef
		want string
	}{
		{Ref(4), `4`},
		{Refs(1, -1, 2), `[1,-1,2]`},
		{Refs(), `[]`},
		{Literal("x"), `{"value":"x"}`},
		{Literal(nil), `{"value":null}`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.ref)
		if err != nil {
			t.Fatalf("Marshal(%+v): %v", tt.ref, err)
		}
		if string(got) != tt.want {
			t.Errorf("Marshal(%+v) = %s, want %s", tt.ref, got, tt.want)
		}
	}
}

func TestPropertyRefRejectsFractionalIDs(t *testing.T) {
	var p PropertyRef
	if err := json.Unmarshal([]byte(`1.5`), &p); !errors.Is(err, ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
	if err := json.Unmarshal([]byte(`[1, 2.5]`), &p); !errors.Is(err, ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
}

func TestSerializedSceneReloads(t *testing.T) {
	rt := NewRuntime(RuntimeConfig{})
	m := NewManager(rt)
	d, err := ParseDescriptor([]byte(sceneJSON))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.LoadScene(d); err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	meter := m.Element("2").Value.(*MeterElement)
	if meter.Text == nil || meter.Text != m.Element("3").Value {
		t.Fatalf("meter text not injected: %v", meter.Text)
	}

	data, err := json.Marshal(m.Serialize())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := ParseDescriptor(data)
	if err != nil {
		t.Fatalf("ParseDescriptor(serialized): %v", err)
	}

	m2 := NewManager(NewRuntime(RuntimeConfig{}))
	if err := m2.LoadScene(again); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m2.Len() != m.Len() {
		t.Errorf("reloaded Len = %d, want %d", m2.Len(), m.Len())
	}
	if a := m2.Element("1").Node.Alpha; a != 0.5 {
		t.Errorf("reloaded alpha = %v", a)
	}
	if p := m2.Element("1").Node.Position; p != (Vec2{3, 0}) {
		t.Errorf("reloaded position = %v", p)
	}
	if got := m2.Element("2").Value.(*MeterElement).Text; got != m2.Element("3").Value {
		t.Error("reloaded meter text not injected")
	}
}
