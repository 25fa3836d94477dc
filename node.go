package grove

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Node is the display object every renderable element wraps. A single flat
// struct is used for all node types; Type selects how Draw renders it.
//
// Field tags name the members scene data reads and writes through the
// property codec. Members tagged "-" are structural and never touched by data.
type Node struct {
	// Identity
	Name string   `grove:"name"`
	Type NodeType `grove:"-"`

	// Hierarchy
	Parent   *Node `grove:"-"`
	children []*Node

	// Transform (local)
	Position Vec2    `grove:"position"`
	Scale    Vec2    `grove:"scale"`
	Pivot    Vec2    `grove:"pivot"`
	Rotation float64 `grove:"rotation"`

	// Computed during UpdateTransform
	worldTransform [6]float64
	worldAlpha     float64

	// Visibility & interaction
	Alpha       float64 `grove:"alpha"`
	Visible     bool    `grove:"visible"`
	Renderable  bool    `grove:"renderable"`
	Interactive bool    `grove:"interactive"`

	// Size of graphics nodes, and the default hit area for containers that set it.
	Width  float64 `grove:"width"`
	Height float64 `grove:"height"`

	// Sprite fields (NodeTypeSprite)
	Image     *ebiten.Image `grove:"-"`
	Tint      Color         `grove:"tint"`
	BlendMode BlendMode     `grove:"blendMode"`

	// Text fields (NodeTypeText)
	TextBlock *TextBlock `grove:"-"`

	// Hit testing
	HitShape HitShape `grove:"-"`

	element  *Element
	disposed bool
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.Scale = Vec2{1, 1}
	n.Alpha = 1
	n.worldAlpha = 1
	n.worldTransform = identityTransform
	n.Tint = ColorWhite
	n.Visible = true
	n.Renderable = true
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Type: NodeTypeContainer}
	nodeDefaults(n)
	return n
}

// NewSprite creates a sprite node that draws img. img may be nil until an
// asset is assigned.
func NewSprite(name string, img *ebiten.Image) *Node {
	n := &Node{Name: name, Type: NodeTypeSprite, Image: img}
	nodeDefaults(n)
	return n
}

// NewText creates a text node with the given content.
func NewText(name string, content string) *Node {
	n := &Node{
		Name: name,
		Type: NodeTypeText,
		TextBlock: &TextBlock{
			Content: content,
			Style:   defaultTextStyle(),
			dirty:   true,
		},
	}
	nodeDefaults(n)
	return n
}

// NewGraphics creates a node that draws a solid w x h rectangle in fill.
func NewGraphics(name string, w, h float64, fill Color) *Node {
	n := &Node{Name: name, Type: NodeTypeGraphics, Width: w, Height: h}
	nodeDefaults(n)
	n.Tint = fill
	return n
}

// Element returns the live element this node belongs to, or nil for nodes
// created directly by code (decorations, debug overlays).
func (n *Node) Element() *Element {
	return n.element
}

// DisplayNode returns n. Element values that embed *Node satisfy Displayer
// through this method.
func (n *Node) DisplayNode() *Node {
	return n
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("grove: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("grove: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("grove: cannot add nil child")
	}
	if isAncestor(child, n) {
		panic("grove: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	if index < 0 || index > len(n.children) {
		panic("grove: child index out of range")
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("grove: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
}

// RemoveChildAt removes and returns the child at the given index.
func (n *Node) RemoveChildAt(index int) *Node {
	if index < 0 || index >= len(n.children) {
		panic("grove: child index out of range")
	}
	child := n.children[index]
	copy(n.children[index:], n.children[index+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	child.Parent = nil
	return child
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node and returns them.
// Children are NOT disposed.
func (n *Node) RemoveChildren() []*Node {
	removed := make([]*Node, len(n.children))
	copy(removed, n.children)
	for _, child := range n.children {
		child.Parent = nil
	}
	clear(n.children)
	n.children = n.children[:0]
	return removed
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// SetChildIndex moves child to a new index among its siblings.
func (n *Node) SetChildIndex(child *Node, index int) {
	if child.Parent != n {
		panic("grove: child's parent is not this node")
	}
	if index < 0 || index >= len(n.children) {
		panic("grove: child index out of range")
	}
	oldIndex := -1
	for i, c := range n.children {
		if c == child {
			oldIndex = i
			break
		}
	}
	if oldIndex == index {
		return
	}
	if oldIndex < index {
		copy(n.children[oldIndex:], n.children[oldIndex+1:index+1])
	} else {
		copy(n.children[index+1:], n.children[index:oldIndex])
	}
	n.children[index] = child
}

// ChildByName returns the first descendant named name, searching depth-first.
func (n *Node) ChildByName(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
		if found := c.ChildByName(name); found != nil {
			return found
		}
	}
	return nil
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.Parent = nil
	n.HitShape = nil
	n.Image = nil
	n.TextBlock = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}
