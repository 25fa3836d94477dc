package ecs

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"

	"github.com/phanxgames/grove/inspector"
)

// MessageEventType is the donburi event type inspector messages travel on.
// ECS systems sharing the channel's world can subscribe to it directly.
var MessageEventType = events.NewEventType[inspector.Message]()

type handler struct {
	id  int
	cmd inspector.Command
	fn  func(inspector.Message)
}

// DonburiChannel is an inspector.Channel that queues messages in a donburi
// world. Messages are delivered when Process runs, typically once per
// frame from the game's update. Messages emitted by a handler during
// Process are delivered by the following Process.
type DonburiChannel struct {
	world       donburi.World
	handlers    []handler
	nextID      int
	dispatching bool
	pending     []inspector.Message
}

var _ inspector.Channel = (*DonburiChannel)(nil)

// NewDonburiChannel creates a channel over world.
func NewDonburiChannel(world donburi.World) *DonburiChannel {
	c := &DonburiChannel{world: world}
	MessageEventType.Subscribe(world, c.dispatch)
	return c
}

// Emit snapshots payload and queues it for the next Process.
func (c *DonburiChannel) Emit(cmd inspector.Command, payload any) error {
	msg, err := inspector.NewMessage(cmd, payload)
	if err != nil {
		return err
	}
	if c.dispatching {
		c.pending = append(c.pending, msg)
		return nil
	}
	MessageEventType.Publish(c.world, msg)
	return nil
}

// Subscribe registers fn for cmd.
func (c *DonburiChannel) Subscribe(cmd inspector.Command, fn func(inspector.Message)) func() {
	c.nextID++
	id := c.nextID
	c.handlers = append(c.handlers, handler{id: id, cmd: cmd, fn: fn})
	return func() {
		for i, h := range c.handlers {
			if h.id == id {
				c.handlers = append(c.handlers[:i:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

// Process delivers every queued message.
func (c *DonburiChannel) Process() {
	c.dispatching = true
	defer c.flush()
	MessageEventType.ProcessEvents(c.world)
}

func (c *DonburiChannel) flush() {
	c.dispatching = false
	pending := c.pending
	c.pending = nil
	for _, msg := range pending {
		MessageEventType.Publish(c.world, msg)
	}
}

func (c *DonburiChannel) dispatch(_ donburi.World, msg inspector.Message) {
	for _, h := range c.handlers {
		if h.cmd == msg.Command {
			h.fn(msg)
		}
	}
}
