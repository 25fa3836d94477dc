package inspector

import (
	"encoding/json"
	"fmt"
)

// Command names a message kind on the devtools channel.
type Command string

const (
	CmdTree         Command = "TREE"
	CmdSelected     Command = "SELECTED"
	CmdDetect       Command = "DETECT"
	CmdInstances    Command = "INSTANCES"
	CmdPanelVisible Command = "PANEL_VISIBLE"
	CmdInspector    Command = "INSPECTOR"
	CmdDetected     Command = "DETECTED"
	CmdDisconnected Command = "DISCONNECTED"
)

// Message is one delivery on a Channel. Data is the JSON form of the payload.
type Message struct {
	Command Command         `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals Data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("inspector: %s message has no data", m.Command)
	}
	return json.Unmarshal(m.Data, v)
}

// NewMessage snapshots payload as JSON.
func NewMessage(cmd Command, payload any) (Message, error) {
	msg := Message{Command: cmd}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("inspector: encode %s: %w", cmd, err)
	}
	msg.Data = data
	return msg, nil
}

// Channel is the pub/sub transport between the inspector and a devtools
// panel. Delivery is at most once per Emit.
type Channel interface {
	Emit(cmd Command, payload any) error
	Subscribe(cmd Command, fn func(Message)) (unsubscribe func())
}

type busSub struct {
	id int
	fn func(Message)
}

// Bus is an in-memory Channel. Payloads are snapshotted as JSON at Emit, and
// the latest message of each command is replayed to late subscribers.
type Bus struct {
	subs   map[Command][]busSub
	latest map[Command]Message
	nextID int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[Command][]busSub),
		latest: make(map[Command]Message),
	}
}

// Emit delivers payload to every subscriber of cmd.
func (b *Bus) Emit(cmd Command, payload any) error {
	msg, err := NewMessage(cmd, payload)
	if err != nil {
		return err
	}
	b.latest[cmd] = msg
	for _, s := range b.subs[cmd] {
		s.fn(msg)
	}
	return nil
}

// Subscribe registers fn for cmd and replays the latest cmd message, if any.
func (b *Bus) Subscribe(cmd Command, fn func(Message)) func() {
	b.nextID++
	id := b.nextID
	b.subs[cmd] = append(b.subs[cmd], busSub{id: id, fn: fn})
	if msg, ok := b.latest[cmd]; ok {
		fn(msg)
	}
	return func() {
		list := b.subs[cmd]
		for i, s := range list {
			if s.id == id {
				b.subs[cmd] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Latest returns the last message emitted for cmd.
func (b *Bus) Latest(cmd Command) (Message, bool) {
	msg, ok := b.latest[cmd]
	return msg, ok
}
