package grove

import (
	"reflect"
	"strconv"
)

// Serialize returns the descriptor of the whole live tree, rooted at "0".
func (m *Manager) Serialize() Descriptor {
	if m.root == nil {
		return Descriptor{Type: TypeContainer, ID: RootID}
	}
	return m.SerializeElement(m.root)
}

// SerializeElement returns the descriptor of el and its subtree. Child
// elements carrying TraitDontSave are left out together with everything
// below them; child nodes that are not elements are skipped.
func (m *Manager) SerializeElement(el *Element) Descriptor {
	d := Descriptor{Type: el.Type, ID: el.ID}

	if len(el.DataKeys) > 0 {
		values, err := GetValues(el.Value, el.DataKeys)
		m.logFieldErrors(el, "get values", err)
		if len(values) > 0 {
			d.Values = values
		}
	}

	if names, ok := m.rt.Registry.Injectables(el.kind); ok {
		for _, name := range names {
			raw, err := GetValue(el.Value, Key(name))
			if err != nil {
				m.log.Warn("read property failed", "type", el.Type, "id", el.ID, "key", name, "err", err)
				continue
			}
			if d.Properties == nil {
				d.Properties = make(map[string]PropertyRef)
			}
			d.Properties[name] = m.reflectRef(raw)
		}
	}

	for _, c := range el.Controllers {
		if c.Traits.Has(TraitDontSave) {
			continue
		}
		d.Controllers = append(d.Controllers, m.SerializeElement(c))
	}
	for _, child := range el.Children() {
		if child.Traits.Has(TraitDontSave) {
			continue
		}
		d.Children = append(d.Children, m.SerializeElement(child))
	}
	return d
}

// reflectRef encodes a live property value: an element becomes its id, a
// list led by an element becomes a list of ids, anything else a literal.
func (m *Manager) reflectRef(raw any) PropertyRef {
	if isNilValue(raw) {
		return Literal(nil)
	}
	if el := m.ElementOf(raw); el != nil {
		return Ref(numericID(el))
	}
	rv := reflect.ValueOf(raw)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() > 0 {
		if first := rv.Index(0).Interface(); !isNilValue(first) && m.ElementOf(first) != nil {
			ids := make([]int, rv.Len())
			for i := range ids {
				ids[i] = -1
				if el := m.ElementOf(rv.Index(i).Interface()); el != nil {
					ids[i] = numericID(el)
				}
			}
			return Refs(ids...)
		}
	}
	return Literal(raw)
}

func numericID(el *Element) int {
	n, err := strconv.Atoi(el.ID)
	if err != nil {
		return -1
	}
	return n
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
