package grove

import (
	"slices"
	"testing"

	"github.com/yohamta/donburi"
)

func TestEventBusDeliversOnTick(t *testing.T) {
	bus := NewEventBus(nil)
	var got []string
	bus.Subscribe("click", func(e Event) { got = append(got, "click:"+e.Data.(string)) })
	bus.Subscribe("", func(e Event) { got = append(got, "any:"+e.Name) })

	bus.Publish(Event{Name: "click", Data: "a"})
	bus.Publish(Event{Name: "hover"})
	if len(got) != 0 {
		t.Fatalf("delivered before Tick: %v", got)
	}

	bus.Tick(0)
	want := []string{"click:a", "any:click", "any:hover"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got = nil
	bus.Tick(0)
	if len(got) != 0 {
		t.Errorf("events delivered twice: %v", got)
	}
}

func TestEventBusPublishDuringTick(t *testing.T) {
	bus := NewEventBus(nil)
	var got []string
	bus.Subscribe("", func(e Event) {
		got = append(got, e.Name)
		if e.Name == "first" {
			bus.Publish(Event{Name: "second"})
		}
	})

	bus.Publish(Event{Name: "first"})
	bus.Tick(0)
	if !slices.Equal(got, []string{"first"}) {
		t.Fatalf("after first tick got %v", got)
	}
	bus.Tick(0)
	if !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("after second tick got %v", got)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	calls := 0
	h := bus.Subscribe("x", func(Event) { calls++ })

	bus.Publish(Event{Name: "x"})
	bus.Tick(0)
	h.Remove()
	h.Remove()
	bus.Publish(Event{Name: "x"})
	bus.Tick(0)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEventBusSharedWorld(t *testing.T) {
	world := donburi.NewWorld()
	bus := NewEventBus(world)
	if bus.World() != world {
		t.Fatal("World() is not the world passed in")
	}

	var direct []string
	SceneEventType.Subscribe(world, func(_ donburi.World, e Event) {
		direct = append(direct, e.Name)
	})
	bus.Publish(Event{Name: "spawn"})
	bus.Tick(0)

	if !slices.Equal(direct, []string{"spawn"}) {
		t.Errorf("world subscriber got %v", direct)
	}
}

func TestSignalConnectOrder(t *testing.T) {
	var s Signal[int]
	var got []int
	s.Connect(func(v int) { got = append(got, v) })
	s.Connect(func(v int) { got = append(got, v*10) })

	s.Emit(2)
	if !slices.Equal(got, []int{2, 20}) {
		t.Errorf("got %v, want [2 20]", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestSignalRemoveDuringEmit(t *testing.T) {
	var s Signal[string]
	calls := 0
	var h CallbackHandle
	h = s.Connect(func(string) {
		calls++
		h.Remove()
	})
	later := 0
	s.Connect(func(string) { later++ })

	s.Emit("a")
	s.Emit("b")

	if calls != 1 {
		t.Errorf("self-removing handler ran %d times, want 1", calls)
	}
	if later != 2 {
		t.Errorf("second handler ran %d times, want 2", later)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestCallbackHandleZeroValue(t *testing.T) {
	var h CallbackHandle
	h.Remove()
}
