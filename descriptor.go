package grove

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Descriptor is the serialized form of an element and its subtree.
type Descriptor struct {
	Type        string                 `json:"type"`
	ID          string                 `json:"id,omitempty"`
	Values      map[string]any         `json:"values,omitempty"`
	Properties  map[string]PropertyRef `json:"properties,omitempty"`
	Controllers []Descriptor           `json:"controllers,omitempty"`
	Children    []Descriptor           `json:"children,omitempty"`
}

// ParseDescriptor decodes a JSON scene description.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("grove: parse descriptor: %w", err)
	}
	return d, nil
}

// RefKind distinguishes the three encodings of a property reference.
type RefKind uint8

const (
	RefLiteral RefKind = iota // {"value": x}
	RefElement                // a numeric element id
	RefList                   // an array of numeric element ids
)

// PropertyRef is an injectable property value: a literal, a reference to
// another element by id, or a list of such references.
type PropertyRef struct {
	Kind  RefKind
	Value any
	ID    int
	IDs   []int
}

// Literal returns a literal property reference.
func Literal(v any) PropertyRef { return PropertyRef{Kind: RefLiteral, Value: v} }

// Ref returns a reference to the element with the given id.
func Ref(id int) PropertyRef { return PropertyRef{Kind: RefElement, ID: id} }

// Refs returns a list reference. Unknown entries are encoded as -1.
func Refs(ids ...int) PropertyRef { return PropertyRef{Kind: RefList, IDs: ids} }

// MarshalJSON encodes the reference in its wire form.
func (p PropertyRef) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case RefElement:
		return json.Marshal(p.ID)
	case RefList:
		ids := p.IDs
		if ids == nil {
			ids = []int{}
		}
		return json.Marshal(ids)
	default:
		return json.Marshal(struct {
			Value any `json:"value"`
		}{p.Value})
	}
}

// UnmarshalJSON decodes {"value": x}, a number, or an array of numbers.
func (p *PropertyRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("grove: empty property reference")
	}
	switch data[0] {
	case '{':
		var lit struct {
			Value any `json:"value"`
		}
		if err := json.Unmarshal(data, &lit); err != nil {
			return fmt.Errorf("grove: property literal: %w", err)
		}
		*p = Literal(lit.Value)
	case '[':
		var raw []float64
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("grove: property id list: %w", err)
		}
		ids := make([]int, len(raw))
		for i, f := range raw {
			id, err := integralID(f)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		*p = Refs(ids...)
	case 'n':
		*p = Literal(nil)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("grove: property reference: %w", err)
		}
		id, err := integralID(f)
		if err != nil {
			return err
		}
		*p = Ref(id)
	}
	return nil
}

func integralID(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidID, f)
	}
	return int(f), nil
}
