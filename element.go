package grove

import "log/slog"

// Trait is a set of independent flags an element carries.
type Trait uint32

const (
	// TraitDontSave keeps an element and its whole subtree out of serialized
	// output. The element still renders and ticks.
	TraitDontSave Trait = 1 << iota
)

// Has reports whether every bit of f is set.
func (t Trait) Has(f Trait) bool { return t&f == f }

// Traiter is implemented by element values that carry fixed traits.
type Traiter interface {
	ElementTraits() Trait
}

// Ticker is implemented by values that advance once per frame.
type Ticker interface {
	Tick(dt float64)
}

// PostInitializer is implemented by values that need the fully wired tree.
// PostInitialize runs once per load, after every injection is resolved.
type PostInitializer interface {
	PostInitialize()
}

// Destroyer is implemented by values that release resources on teardown.
type Destroyer interface {
	Destroy()
}

// Displayer is implemented by values that own a display node. Values
// without one are controllers.
type Displayer interface {
	DisplayNode() *Node
}

// Capability is the set of lifecycle interfaces an element value satisfies,
// computed once when the element is built.
type Capability uint8

const (
	CapTick Capability = 1 << iota
	CapPostInit
	CapDestroy
	CapDisplay
)

// Has reports whether c includes f.
func (c Capability) Has(f Capability) bool { return c&f == f }

func capabilitiesOf(v any) Capability {
	var c Capability
	if _, ok := v.(Ticker); ok {
		c |= CapTick
	}
	if _, ok := v.(PostInitializer); ok {
		c |= CapPostInit
	}
	if _, ok := v.(Destroyer); ok {
		c |= CapDestroy
	}
	if d, ok := v.(Displayer); ok && d.DisplayNode() != nil {
		c |= CapDisplay
	}
	return c
}

// Element is the metadata record wrapped around every live object built from
// a descriptor.
type Element struct {
	Type     string
	ID       string
	DataKeys []DataKey
	Traits   Trait

	// Value is the object the factory returned. Codec reads and writes go
	// through it.
	Value any

	// Node is the display node of a display element and nil for controllers.
	Node *Node

	// Parent is the element a controller is attached to. It is a lookup
	// relation only; the parent may be destroyed first.
	Parent *Element

	Controllers []*Element

	kind        *ElementType
	caps        Capability
	initialized bool
	destroyed   bool
}

func newElement(kind *ElementType, value any) *Element {
	el := &Element{
		Type:     kind.Name,
		DataKeys: kind.DataKeys,
		Value:    value,
		kind:     kind,
		caps:     capabilitiesOf(value),
	}
	if t, ok := value.(Traiter); ok {
		el.Traits = t.ElementTraits()
	}
	if el.caps.Has(CapDisplay) {
		el.Node = value.(Displayer).DisplayNode()
		el.Node.element = el
	}
	return el
}

// Kind returns the constructor record the element was built from.
func (e *Element) Kind() *ElementType { return e.kind }

// Capabilities returns the lifecycle capabilities of the element's value.
func (e *Element) Capabilities() Capability { return e.caps }

// IsController reports whether the element has no display node.
func (e *Element) IsController() bool { return e.Node == nil }

// Destroyed reports whether the destroy pass has run for e.
func (e *Element) Destroyed() bool { return e.destroyed }

// Children returns the elements directly below e in the display tree. Child
// nodes that are not elements are skipped.
func (e *Element) Children() []*Element {
	if e.Node == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Node.children {
		if c.element != nil {
			out = append(out, c.element)
		}
	}
	return out
}

// Context is handed to a Factory.
type Context struct {
	Type     *ElementType
	Services *Services
	Logger   *slog.Logger
}

// Lookup returns the service registered under name.
func (c *Context) Lookup(name string) (any, bool) {
	if c.Services == nil {
		return nil, false
	}
	return c.Services.Lookup(name)
}

// Controller is embedded by controller values. The manager injects the
// owning element through the parent property.
type Controller struct {
	Parent *Element `grove:"parent"`

	subs []func()
}

// ParentNode returns the display node of the owning element.
func (c *Controller) ParentNode() *Node {
	if c.Parent == nil {
		return nil
	}
	return c.Parent.Node
}

// Subscribe records an unsubscribe function run by Destroy.
func (c *Controller) Subscribe(unsub func()) {
	c.subs = append(c.subs, unsub)
}

// Destroy runs every recorded unsubscribe function.
func (c *Controller) Destroy() {
	for _, u := range c.subs {
		u()
	}
	c.subs = nil
}
