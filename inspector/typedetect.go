package inspector

import (
	"reflect"

	"github.com/phanxgames/grove"
)

// TypeDetection names nodes for the outliner: the node kind, plus the
// element type when the node belongs to an element ("Container:button").
type TypeDetection struct {
	names map[reflect.Type]string
}

// NewTypeDetection creates a detector with no custom names.
func NewTypeDetection() *TypeDetection {
	return &TypeDetection{names: make(map[reflect.Type]string)}
}

// Register names element values of sample's type, overriding the element
// type name in Detect.
func (td *TypeDetection) Register(sample any, name string) {
	td.names[reflect.TypeOf(sample)] = name
}

// Detect returns the display type of n.
func (td *TypeDetection) Detect(n *grove.Node) string {
	base := n.Type.String()
	el := n.Element()
	if el == nil {
		return base
	}
	if name, ok := td.names[reflect.TypeOf(el.Value)]; ok {
		return base + ":" + name
	}
	return base + ":" + el.Type
}
