package grove

// CallbackHandle removes a connected callback.
type CallbackHandle struct {
	remove func()
}

// Remove disconnects the callback. Calling it again is a no-op.
func (h CallbackHandle) Remove() {
	if h.remove != nil {
		h.remove()
	}
}

type signalHandler[T any] struct {
	id uint32
	fn func(T)
}

// Signal is a multi-fire notification. Handlers run synchronously in
// connection order.
type Signal[T any] struct {
	handlers []signalHandler[T]
	nextID   uint32
}

// Connect registers fn and returns a handle that disconnects it.
func (s *Signal[T]) Connect(fn func(T)) CallbackHandle {
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, signalHandler[T]{id: id, fn: fn})
	return CallbackHandle{remove: func() { s.disconnect(id) }}
}

func (s *Signal[T]) disconnect(id uint32) {
	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every connected handler with v. Handlers connected or removed
// during Emit take effect on the next Emit.
func (s *Signal[T]) Emit(v T) {
	for _, h := range s.handlers {
		h.fn(v)
	}
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int {
	return len(s.handlers)
}
