package grove

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
)

var (
	// ErrBusy is returned when a load or spawn is requested while the
	// manager is in the middle of another one.
	ErrBusy = errors.New("grove: manager is busy")
	// ErrNoElement is returned when an id names no live element.
	ErrNoElement = errors.New("grove: no such element")
)

// State is the manager's position in the scene lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateBuilding
	StateInjecting
	StatePostInitializing
	StateRunning
	StateDestroying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateInjecting:
		return "injecting"
	case StatePostInitializing:
		return "post-initializing"
	case StateRunning:
		return "running"
	case StateDestroying:
		return "destroying"
	default:
		return "unknown"
	}
}

type tickEntry struct {
	el   *Element // nil for services
	name string
	t    Ticker
}

// Manager builds live element trees from descriptors, wires references
// between them, drives their lifecycle hooks and serializes them back.
type Manager struct {
	rt    *Runtime
	log   *slog.Logger
	state State
	root  *Element

	table   map[string]*Element
	order   []*Element
	byValue map[any]*Element
	tickers []tickEntry

	// built maps descriptors of the current build pass to their elements.
	built map[*Descriptor]*Element
}

// NewManager creates a manager over rt with an empty root container. A nil
// rt gets a default runtime.
func NewManager(rt *Runtime) *Manager {
	if rt == nil {
		rt = NewRuntime(RuntimeConfig{})
	}
	m := &Manager{
		rt:      rt,
		log:     rt.Logger,
		table:   make(map[string]*Element),
		byValue: make(map[any]*Element),
	}
	rt.Services.Register(ServiceManager, m)
	m.root = m.newRoot()
	return m
}

// newRoot builds the root element from the registered container type, or a
// bare container when none is registered.
func (m *Manager) newRoot() *Element {
	kind, ok := m.rt.Registry.Lookup(TypeContainer)
	var value any
	if ok {
		v, err := kind.New(m.context(kind))
		if d, isDisplay := v.(Displayer); err == nil && isDisplay && d.DisplayNode() != nil {
			value = v
		} else {
			m.log.Warn("container type cannot serve as root", "err", err)
		}
	}
	if value == nil {
		kind = &ElementType{Name: TypeContainer, New: newContainerElement, DataKeys: DefaultDataKeys}
		value, _ = kind.New(m.context(kind))
	}
	el := newElement(kind, value)
	el.ID = RootID
	_ = m.rt.IDs.Reserve(RootID)
	return el
}

func (m *Manager) context(kind *ElementType) *Context {
	return &Context{Type: kind, Services: m.rt.Services, Logger: m.log}
}

// Runtime returns the runtime the manager works against.
func (m *Manager) Runtime() *Runtime { return m.rt }

// State returns the current lifecycle state.
func (m *Manager) State() State { return m.state }

// Root returns the root element. It is nil after Teardown until the next
// LoadScene.
func (m *Manager) Root() *Element { return m.root }

// Element returns the live element with the given id.
func (m *Manager) Element(id string) *Element { return m.table[id] }

// Elements returns the live elements in registration order.
func (m *Manager) Elements() []*Element {
	return append([]*Element(nil), m.order...)
}

// Len returns the number of live elements.
func (m *Manager) Len() int { return len(m.table) }

// ElementOf returns the element whose value, node or record is v.
func (m *Manager) ElementOf(v any) *Element {
	switch x := v.(type) {
	case nil:
		return nil
	case *Element:
		return x
	case *Node:
		if x == nil {
			return nil
		}
		return x.element
	}
	if !reflect.TypeOf(v).Comparable() {
		return nil
	}
	return m.byValue[v]
}

// AddService registers svc under name. Services that implement Ticker are
// ticked before any element registered after them.
func (m *Manager) AddService(name string, svc any) {
	m.rt.Services.Register(name, svc)
	t, ok := svc.(Ticker)
	for i, e := range m.tickers {
		if e.el == nil && e.name == name {
			if ok {
				m.tickers[i].t = t
			} else {
				m.tickers = append(m.tickers[:i], m.tickers[i+1:]...)
			}
			return
		}
	}
	if ok {
		m.tickers = append(m.tickers, tickEntry{name: name, t: t})
	}
}

// LoadScene replaces the live tree with the one described by d. The previous
// tree is destroyed first. d describes the root: its values, children and
// controllers are applied onto the root element, whose id is always "0".
// An unknown type aborts the load and unwinds everything built so far.
func (m *Manager) LoadScene(d Descriptor) error {
	if m.state != StateIdle && m.state != StateRunning {
		return fmt.Errorf("%w: load during %s", ErrBusy, m.state)
	}
	m.unload()
	if m.root == nil {
		m.root = m.newRoot()
	}
	if d.Type != "" && d.Type != m.root.Type {
		m.log.Warn("root descriptor type ignored", "type", d.Type, "root", m.root.Type)
	}
	if d.ID != "" && d.ID != RootID {
		m.log.Warn("root descriptor id ignored", "id", d.ID)
	}

	m.state = StateBuilding
	m.built = make(map[*Descriptor]*Element)
	defer func() { m.built = nil }()

	m.register(m.root)
	m.built[&d] = m.root
	if err := m.build(m.root, &d); err != nil {
		m.rollback(0)
		m.state = StateIdle
		return err
	}

	m.state = StateInjecting
	m.ResolveInjections(&d)

	m.state = StatePostInitializing
	m.RunPostInitialize()

	m.state = StateRunning
	m.log.Info("scene loaded", "elements", len(m.table))
	return nil
}

// Spawn materializes d at runtime under parent: a display element is added
// to parent's node, a controller is attached to parent. Injections and
// post-initialization run for the new subtree only.
func (m *Manager) Spawn(parent *Element, d Descriptor) (*Element, error) {
	if m.state != StateRunning {
		return nil, fmt.Errorf("%w: spawn during %s", ErrBusy, m.state)
	}
	if parent == nil || parent.destroyed {
		return nil, fmt.Errorf("grove: spawn %q: %w", d.Type, ErrNoElement)
	}
	start := len(m.order)
	m.state = StateBuilding
	m.built = make(map[*Descriptor]*Element)
	defer func() { m.built = nil }()

	el, err := m.Materialize(&d)
	if err != nil {
		m.rollback(start)
		m.state = StateRunning
		return nil, err
	}
	m.attach(parent, el)

	m.state = StateInjecting
	m.ResolveInjections(&d)
	m.state = StatePostInitializing
	m.RunPostInitialize()
	m.state = StateRunning
	return el, nil
}

// Materialize constructs the element described by d and its subtree. The
// explicit id wins and is reserved; otherwise one is generated. Values are
// applied through SetValues, children are added to the element's node and
// controllers are attached with a back-reference.
func (m *Manager) Materialize(d *Descriptor) (*Element, error) {
	kind, ok := m.rt.Registry.Lookup(d.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, d.Type)
	}
	id, err := m.assignID(d.ID)
	if err != nil {
		return nil, err
	}
	value, err := kind.New(m.context(kind))
	if err != nil {
		return nil, fmt.Errorf("grove: construct %q: %w", d.Type, err)
	}
	if value == nil {
		return nil, fmt.Errorf("grove: construct %q: factory returned nil", d.Type)
	}

	el := newElement(kind, value)
	el.ID = id
	m.register(el)
	if m.built != nil {
		m.built[d] = el
	}
	if err := m.build(el, d); err != nil {
		return nil, err
	}
	return el, nil
}

func (m *Manager) assignID(id string) (string, error) {
	if id == "" {
		return m.rt.IDs.Next(), nil
	}
	if _, err := ParseID(id); err != nil {
		return "", err
	}
	if _, live := m.table[id]; live {
		return "", fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	return id, m.rt.IDs.Reserve(id)
}

// build applies values, then materializes children and controllers.
func (m *Manager) build(el *Element, d *Descriptor) error {
	if len(d.Values) > 0 {
		m.logFieldErrors(el, "set values", SetValues(el.Value, d.Values))
	}
	for i := range d.Children {
		child, err := m.Materialize(&d.Children[i])
		if err != nil {
			return err
		}
		m.attach(el, child)
	}
	for i := range d.Controllers {
		c, err := m.Materialize(&d.Controllers[i])
		if err != nil {
			return err
		}
		m.attachController(el, c)
	}
	if el.caps.Has(CapTick) {
		m.tickers = append(m.tickers, tickEntry{el: el, t: el.Value.(Ticker)})
	}
	return nil
}

func (m *Manager) attach(parent, child *Element) {
	if child.Node == nil {
		m.attachController(parent, child)
		return
	}
	if parent.Node == nil {
		m.log.Warn("display element under a controller left detached",
			"type", child.Type, "id", child.ID, "parent", parent.ID)
		return
	}
	parent.Node.AddChild(child.Node)
}

func (m *Manager) attachController(owner, c *Element) {
	c.Parent = owner
	owner.Controllers = append(owner.Controllers, c)
	if err := assignRef(c.Value, "parent", owner); err != nil && !errors.Is(err, ErrNoMember) {
		m.log.Warn("controller parent not assigned", "type", c.Type, "id", c.ID, "err", err)
	}
}

func (m *Manager) register(el *Element) {
	m.table[el.ID] = el
	m.order = append(m.order, el)
	if el.Value != nil && reflect.TypeOf(el.Value).Comparable() {
		m.byValue[el.Value] = el
	}
}

func (m *Manager) unregister(el *Element) {
	delete(m.table, el.ID)
	if el.Value != nil && reflect.TypeOf(el.Value).Comparable() {
		delete(m.byValue, el.Value)
	}
}

// ResolveInjections resolves the property references of d's subtree,
// children and controllers before their owner. During a load or spawn each
// descriptor maps to the element built from it. Outside a build pass only
// descriptors with an explicit id are resolved, against the live element
// of that id. References to ids that are not live are skipped.
func (m *Manager) ResolveInjections(d *Descriptor) {
	for i := range d.Children {
		m.ResolveInjections(&d.Children[i])
	}
	for i := range d.Controllers {
		m.ResolveInjections(&d.Controllers[i])
	}
	if len(d.Properties) == 0 {
		return
	}
	el := m.built[d]
	if el == nil && m.built == nil && d.ID != "" {
		el = m.table[d.ID]
	}
	if el == nil || el.destroyed {
		return
	}
	m.inject(el, d.Properties)
}

// RunPostInitialize invokes PostInitialize once on every element that has
// not yet run it, in registration order.
func (m *Manager) RunPostInitialize() {
	for _, el := range m.Elements() {
		if el.initialized || el.destroyed {
			continue
		}
		el.initialized = true
		if el.caps.Has(CapPostInit) {
			m.guard(el, "post-initialize", el.Value.(PostInitializer).PostInitialize)
		}
	}
}

// Tick advances every ticker in registration order. A panic in one ticker is
// logged and does not stop the others.
func (m *Manager) Tick(dt float64) {
	for i := 0; i < len(m.tickers); i++ {
		e := m.tickers[i]
		if e.el != nil && e.el.destroyed {
			continue
		}
		m.tick(e, dt)
	}
}

func (m *Manager) tick(e tickEntry, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			if e.el != nil {
				m.log.Error("tick panicked", "type", e.el.Type, "id", e.el.ID, "panic", r)
			} else {
				m.log.Error("service tick panicked", "service", e.name, "panic", r)
			}
		}
	}()
	e.t.Tick(dt)
}

// Update merges values into the element with the given id without invoking
// methods.
func (m *Manager) Update(id string, values map[string]any) error {
	el := m.table[id]
	if el == nil {
		return fmt.Errorf("grove: update %q: %w", id, ErrNoElement)
	}
	return UpdateValues(el.Value, values)
}

// Teardown destroys every live element bottom-up, then the root.
func (m *Manager) Teardown() {
	if m.state == StateDestroying {
		return
	}
	m.unload()
	if m.root != nil {
		m.state = StateDestroying
		m.destroy(m.root)
		m.root = nil
	}
	m.state = StateIdle
	m.log.Info("scene torn down")
}

// unload destroys everything registered except the root and empties the table.
func (m *Manager) unload() {
	if len(m.order) == 0 {
		return
	}
	m.state = StateDestroying
	m.rollback(0)
	m.state = StateIdle
	m.log.Debug("scene unloaded")
}

// rollback destroys the elements registered at order[start:] in reverse
// registration order, which runs descendants before their ancestors. The
// root is unregistered but kept alive.
func (m *Manager) rollback(start int) {
	for i := len(m.order) - 1; i >= start; i-- {
		el := m.order[i]
		m.unregister(el)
		if el == m.root {
			el.Controllers = nil
			el.initialized = false
			continue
		}
		m.destroy(el)
	}
	clear(m.order[start:])
	m.order = m.order[:start]

	live := m.tickers[:0]
	for _, e := range m.tickers {
		stale := e.el != nil && (e.el.destroyed || (start == 0 && e.el == m.root))
		if !stale {
			live = append(live, e)
		}
	}
	clear(m.tickers[len(live):])
	m.tickers = live
}

func (m *Manager) destroy(el *Element) {
	if el.destroyed {
		return
	}
	el.destroyed = true
	if el.caps.Has(CapDestroy) {
		m.guard(el, "destroy", el.Value.(Destroyer).Destroy)
	}
	if el.Node != nil {
		el.Node.Dispose()
	}
}

func (m *Manager) guard(el *Element, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("hook panicked", "hook", hook, "type", el.Type, "id", el.ID, "panic", r)
		}
	}()
	fn()
}

// logFieldErrors logs each *FieldError in a joined codec error.
func (m *Manager) logFieldErrors(el *Element, op string, err error) {
	if err == nil {
		return
	}
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var fe *FieldError
		if errors.As(e, &fe) {
			m.log.Warn(op+" failed", "type", el.Type, "id", el.ID, "key", fe.Key, "err", fe.Err)
			continue
		}
		m.log.Warn(op+" failed", "type", el.Type, "id", el.ID, "err", e)
	}
}
