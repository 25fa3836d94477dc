package grove

import (
	"fmt"
	"reflect"
	"slices"
)

// inject resolves el's injectable properties from props.
func (m *Manager) inject(el *Element, props map[string]PropertyRef) {
	names, _ := m.rt.Registry.Injectables(el.kind)
	for _, name := range names {
		ref, ok := props[name]
		if !ok {
			continue
		}
		switch ref.Kind {
		case RefLiteral:
			if ref.Value == nil {
				continue
			}
			m.logFieldErrors(el, "inject literal", UpdateValues(el.Value, map[string]any{name: ref.Value}))

		case RefElement:
			target := m.lookupRef(ref.ID)
			if target == nil {
				m.log.Debug("unresolved reference skipped", "type", el.Type, "id", el.ID, "key", name, "ref", ref.ID)
				continue
			}
			if err := assignRef(el.Value, name, target); err != nil {
				m.log.Warn("inject reference failed", "type", el.Type, "id", el.ID, "key", name, "err", err)
			}

		case RefList:
			targets := make([]*Element, len(ref.IDs))
			resolved := 0
			for i, id := range ref.IDs {
				if targets[i] = m.lookupRef(id); targets[i] != nil {
					resolved++
					continue
				}
				m.log.Debug("unresolved list entry", "type", el.Type, "id", el.ID, "key", name, "ref", id)
			}
			if resolved == 0 && len(ref.IDs) > 0 {
				continue
			}
			if err := assignRefs(el.Value, name, targets); err != nil {
				m.log.Warn("inject reference list failed", "type", el.Type, "id", el.ID, "key", name, "err", err)
			}
		}
	}
}

func (m *Manager) lookupRef(id int) *Element {
	if id < 0 {
		return nil
	}
	el := m.table[fmt.Sprint(id)]
	if el == nil || el.destroyed {
		return nil
	}
	return el
}

// assignRef stores a reference to target in the member name of obj. The
// member's type picks the form: the *Element record, the element's value,
// or its display node.
func assignRef(obj any, name string, target *Element) error {
	m, err := resolveMember(reflect.ValueOf(obj), name)
	if err != nil {
		return err
	}
	t, err := m.storeType()
	if err != nil {
		return err
	}
	v, err := refValue(target, t)
	if err != nil {
		return err
	}
	return m.store(v)
}

// assignRefs stores a slice of references in the member name of obj. A nil
// target keeps its slot as the zero value when the element type can hold
// nil; otherwise it is dropped.
func assignRefs(obj any, name string, targets []*Element) error {
	m, err := resolveMember(reflect.ValueOf(obj), name)
	if err != nil {
		return err
	}
	t, err := m.storeType()
	if err != nil {
		return err
	}
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		t = reflect.TypeFor[[]any]()
	}
	if t.Kind() != reflect.Slice {
		return fmt.Errorf("%w: %s cannot hold a reference list", ErrNotAssignable, t)
	}
	if !nillable(t.Elem()) {
		targets = slices.DeleteFunc(slices.Clone(targets), func(e *Element) bool { return e == nil })
	}
	out := reflect.MakeSlice(t, len(targets), len(targets))
	for i, target := range targets {
		if target == nil {
			continue
		}
		v, err := refValue(target, t.Elem())
		if err != nil {
			return err
		}
		out.Index(i).Set(v)
	}
	return m.store(out)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func refValue(el *Element, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 && el.Value != nil {
		return reflect.ValueOf(el.Value), nil
	}
	if ev := reflect.ValueOf(el); ev.Type().AssignableTo(t) {
		return ev, nil
	}
	if el.Value != nil {
		if vv := reflect.ValueOf(el.Value); vv.Type().AssignableTo(t) {
			return vv, nil
		}
	}
	if el.Node != nil {
		if nv := reflect.ValueOf(el.Node); nv.Type().AssignableTo(t) {
			return nv, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: %s element %s cannot be stored as %s", ErrNotAssignable, el.Type, el.ID, t)
}

func (m member) storeType() (reflect.Type, error) {
	switch m.kind {
	case memberField:
		if !m.field.CanSet() {
			return nil, ErrNotAssignable
		}
		return m.field.Type(), nil
	case memberMapEntry:
		if m.container.IsNil() {
			return nil, ErrNotAssignable
		}
		return m.container.Type().Elem(), nil
	case memberProperty:
		if !m.setter.IsValid() {
			return nil, ErrNotAssignable
		}
		return m.setter.Type().In(0), nil
	default:
		if m.method.Type().NumIn() != 1 {
			return nil, ErrNotInvocable
		}
		return m.method.Type().In(0), nil
	}
}

func (m member) store(v reflect.Value) error {
	switch m.kind {
	case memberField:
		m.field.Set(v)
	case memberMapEntry:
		m.container.SetMapIndex(m.mapKey, v)
	case memberProperty:
		m.setter.Call([]reflect.Value{v})
	default:
		m.method.Call([]reflect.Value{v})
	}
	return nil
}
