package grove

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// Event is a named scene event, such as a button's click.
type Event struct {
	Name   string
	Source *Element
	Data   any
}

// SceneEventType is the donburi event type EventBus publishes on. ECS systems
// sharing the bus's world can subscribe to it directly.
var SceneEventType = events.NewEventType[Event]()

type eventHandler struct {
	id   uint32
	name string
	fn   func(Event)
}

// EventBus queues scene events in a donburi world and delivers them on Tick.
// It is registered as the "events" service.
type EventBus struct {
	world       donburi.World
	handlers    []eventHandler
	nextID      uint32
	dispatching bool
	pending     []Event
}

// NewEventBus creates a bus over world. A nil world gets a fresh one.
func NewEventBus(world donburi.World) *EventBus {
	if world == nil {
		world = donburi.NewWorld()
	}
	b := &EventBus{world: world}
	SceneEventType.Subscribe(world, b.dispatch)
	return b
}

// World returns the donburi world events are queued in.
func (b *EventBus) World() donburi.World {
	return b.world
}

// Publish queues e for delivery on the next Tick. Events published by a
// handler during Tick are held for the following Tick.
func (b *EventBus) Publish(e Event) {
	if b.dispatching {
		b.pending = append(b.pending, e)
		return
	}
	SceneEventType.Publish(b.world, e)
}

// Subscribe registers fn for events named name. An empty name receives
// every event.
func (b *EventBus) Subscribe(name string, fn func(Event)) CallbackHandle {
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, eventHandler{id: id, name: name, fn: fn})
	return CallbackHandle{remove: func() { b.unsubscribe(id) }}
}

func (b *EventBus) unsubscribe(id uint32) {
	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Tick delivers every queued event.
func (b *EventBus) Tick(float64) {
	b.dispatching = true
	defer b.flush()
	SceneEventType.ProcessEvents(b.world)
}

func (b *EventBus) flush() {
	b.dispatching = false
	pending := b.pending
	b.pending = nil
	for _, e := range pending {
		SceneEventType.Publish(b.world, e)
	}
}

func (b *EventBus) dispatch(_ donburi.World, e Event) {
	for _, h := range b.handlers {
		if h.name == "" || h.name == e.Name {
			h.fn(e)
		}
	}
}
