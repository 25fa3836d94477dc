package inspector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/phanxgames/grove"
)

// TreeNode is the serialized outliner view of one node.
type TreeNode struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Collapsed bool     `json:"collapsed"`
	Found     bool     `json:"found,omitempty"`
	Parent    *int     `json:"parent"`
	Children  Children `json:"children"`
}

// Children is a TreeNode's child list. It encodes as false for a leaf, true
// for a collapsed node that has children, or the array of expanded children.
type Children struct {
	Collapsed bool
	Nodes     []*TreeNode
}

// Leaf reports whether the node had no children.
func (c Children) Leaf() bool {
	return c.Nodes == nil && !c.Collapsed
}

func (c Children) MarshalJSON() ([]byte, error) {
	if c.Nodes != nil {
		return json.Marshal(c.Nodes)
	}
	return json.Marshal(c.Collapsed)
}

func (c *Children) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*c = Children{Collapsed: true}
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*c = Children{}
	default:
		var nodes []*TreeNode
		if err := json.Unmarshal(data, &nodes); err != nil {
			return fmt.Errorf("inspector: children: %w", err)
		}
		if nodes == nil {
			nodes = []*TreeNode{}
		}
		*c = Children{Nodes: nodes}
	}
	return nil
}

const noParent = -1

// entry is the outliner's side-table record for an observed node.
type entry struct {
	id        int
	node      *grove.Node
	collapsed bool
	found     bool
	parent    int
}

// Outliner assigns stable ids to the nodes of externally owned trees on
// first observation, serializes them with collapse state, and detects
// structural changes between frames. Id 0 is a synthetic root whose
// children are the stages seen so far.
type Outliner struct {
	ch    Channel
	types *TypeDetection

	entries  map[*grove.Node]*entry
	byID     map[int]*entry
	nextID   int
	stages   []*grove.Node
	previous map[int]*TreeNode

	selected    *entry
	highlighted *entry
}

// NewOutliner creates an outliner emitting on ch. A nil types uses a
// default TypeDetection.
func NewOutliner(ch Channel, types *TypeDetection) *Outliner {
	if types == nil {
		types = NewTypeDetection()
	}
	root := &entry{id: 0, parent: noParent}
	return &Outliner{
		ch:       ch,
		types:    types,
		entries:  make(map[*grove.Node]*entry),
		byID:     map[int]*entry{0: root},
		nextID:   1,
		previous: make(map[int]*TreeNode),
	}
}

func (o *Outliner) emit(cmd Command, payload any) {
	if o.ch == nil {
		return
	}
	if err := o.ch.Emit(cmd, payload); err != nil {
		grove.Logger().Warn("inspector emit failed", "command", string(cmd), "err", err)
	}
}

// observe returns n's entry, creating it on first sight. Nodes below the
// stage level start collapsed.
func (o *Outliner) observe(n *grove.Node) *entry {
	if e, ok := o.entries[n]; ok {
		return e
	}
	e := &entry{id: o.nextID, node: n, parent: noParent}
	o.nextID++
	if p := o.entries[n.Parent]; n.Parent != nil && p != nil {
		e.collapsed = p.parent != noParent
	}
	o.entries[n] = e
	o.byID[e.id] = e
	return e
}

// ID returns n's outliner id, assigning one if n is new.
func (o *Outliner) ID(n *grove.Node) int {
	return o.observe(n).id
}

// Node returns the node with the given id.
func (o *Outliner) Node(id int) *grove.Node {
	if id <= 0 {
		return nil
	}
	if e, ok := o.byID[id]; ok {
		return e.node
	}
	return nil
}

// Serialize returns the outliner view of n. Expanded nodes include their
// children recursively; collapsed ones only report whether they have any.
func (o *Outliner) Serialize(n *grove.Node) *TreeNode {
	e := o.observe(n)
	e.parent = noParent
	if n.Parent != nil {
		if p, ok := o.entries[n.Parent]; ok {
			e.parent = p.id
		}
	}
	tn := &TreeNode{
		ID:        e.id,
		Name:      n.Name,
		Type:      o.types.Detect(n),
		Collapsed: e.collapsed,
		Found:     e.found,
	}
	if e.parent != noParent {
		p := e.parent
		tn.Parent = &p
	}
	children := n.Children()
	switch {
	case len(children) == 0:
	case e.collapsed:
		tn.Children.Collapsed = true
	default:
		tn.Children.Nodes = make([]*TreeNode, len(children))
		for i, c := range children {
			tn.Children.Nodes[i] = o.Serialize(c)
		}
	}
	return tn
}

// Tree returns the view of the synthetic root and every stage.
func (o *Outliner) Tree() *TreeNode {
	tn := &TreeNode{ID: 0, Type: "root"}
	if len(o.stages) > 0 {
		tn.Children.Nodes = make([]*TreeNode, len(o.stages))
		for i, s := range o.stages {
			tn.Children.Nodes[i] = o.Serialize(s)
		}
	}
	return tn
}

// DetectScene registers a stage the first time it is drawn: it is added
// under the root, expanded, announced with TREE, and selected if nothing is.
func (o *Outliner) DetectScene(stage *grove.Node) {
	for _, s := range o.stages {
		if s == stage {
			return
		}
	}
	o.stages = append(o.stages, stage)
	o.observe(stage).collapsed = false
	o.emit(CmdTree, o.Tree())
	if o.selected == nil {
		o.selected = o.entries[stage]
		o.emit(CmdSelected, o.Serialize(stage))
	}
}

// DetectChanges forgets disposed nodes, then compares stage with the
// snapshot taken at its last change and emits TREE when it differs: a changed id or order, a changed child
// count, or a change inside an expanded child. Collapsed subtrees only
// compare having children against having none.
func (o *Outliner) DetectChanges(stage *grove.Node) bool {
	o.prune()
	e, ok := o.entries[stage]
	if !ok {
		return false
	}
	if !o.hasChanged(stage, o.previous[e.id]) {
		return false
	}
	o.previous[e.id] = o.Serialize(stage)
	o.emit(CmdTree, o.Tree())
	return true
}

func (o *Outliner) hasChanged(n *grove.Node, snap *TreeNode) bool {
	if snap == nil {
		return true
	}
	e, ok := o.entries[n]
	if !ok || e.id != snap.ID {
		return true
	}
	children := n.Children()
	if snap.Collapsed {
		return (len(children) > 0) != (snap.Children.Collapsed || len(snap.Children.Nodes) > 0)
	}
	if len(children) != len(snap.Children.Nodes) {
		return true
	}
	for i, c := range children {
		if o.hasChanged(c, snap.Children.Nodes[i]) {
			return true
		}
	}
	return false
}

// Expand marks id expanded and returns its children.
func (o *Outliner) Expand(id int) (Children, bool) {
	return o.setCollapsed(id, false)
}

// Collapse marks id collapsed and returns its children.
func (o *Outliner) Collapse(id int) (Children, bool) {
	return o.setCollapsed(id, true)
}

func (o *Outliner) setCollapsed(id int, collapsed bool) (Children, bool) {
	n := o.Node(id)
	if n == nil {
		return Children{}, false
	}
	o.entries[n].collapsed = collapsed
	return o.Serialize(n).Children, true
}

// SearchFilter marks every observed node whose name contains text, compared
// with Unicode case folding, as found and expands all of its ancestors. An
// empty text clears the marks. Returns the root's children.
func (o *Outliner) SearchFilter(text string) Children {
	fold := cases.Fold()
	needle := fold.String(text)
	for _, e := range o.entries {
		e.found = text != "" && e.node.Name != "" && strings.Contains(fold.String(e.node.Name), needle)
		if e.found {
			o.expandAncestors(e.node)
		}
	}
	return o.Tree().Children
}

func (o *Outliner) expandAncestors(n *grove.Node) {
	for p := n.Parent; p != nil; p = p.Parent {
		o.observe(p).collapsed = false
	}
}

// NodeAt returns the topmost node under the world point (x, y) in n's
// subtree. Invisible nodes are skipped with their subtree.
func (o *Outliner) NodeAt(n *grove.Node, x, y float64) *grove.Node {
	return grove.HitTest(n, x, y)
}

// RightClick selects the topmost node under (x, y) across all stages,
// expands its ancestors and emits SELECTED and TREE.
func (o *Outliner) RightClick(x, y float64) *TreeNode {
	for i := len(o.stages) - 1; i >= 0; i-- {
		n := o.NodeAt(o.stages[i], x, y)
		if n == nil {
			continue
		}
		o.expandAncestors(n)
		o.selected = o.observe(n)
		o.highlighted = o.selected
		tn := o.Serialize(n)
		o.emit(CmdSelected, tn)
		o.emit(CmdTree, o.Tree())
		return tn
	}
	return nil
}

// Select makes id the selection and returns its node.
func (o *Outliner) Select(id int) *grove.Node {
	n := o.Node(id)
	if n == nil {
		return nil
	}
	o.selected = o.entries[n]
	o.highlighted = o.selected
	return n
}

// Selected returns the view of the selected node.
func (o *Outliner) Selected() (*TreeNode, bool) {
	if o.selected == nil || o.selected.node == nil {
		return nil, false
	}
	return o.Serialize(o.selected.node), true
}

// Highlight marks id for the highlight overlay. An unknown id clears it.
func (o *Outliner) Highlight(id int) {
	if n := o.Node(id); n != nil {
		o.highlighted = o.entries[n]
		return
	}
	o.highlighted = nil
}

// Highlighted returns the node under the highlight overlay.
func (o *Outliner) Highlighted() *grove.Node {
	if o.highlighted == nil {
		return nil
	}
	return o.highlighted.node
}

// Len returns the number of nodes tracked, the root included.
func (o *Outliner) Len() int {
	return len(o.byID)
}

// prune forgets disposed nodes. Their ids are not reused.
func (o *Outliner) prune() {
	for n, e := range o.entries {
		if !n.IsDisposed() {
			continue
		}
		delete(o.entries, n)
		delete(o.byID, e.id)
		delete(o.previous, e.id)
		if o.selected == e {
			o.selected = nil
		}
		if o.highlighted == e {
			o.highlighted = nil
		}
	}
	o.stages = slices.DeleteFunc(o.stages, (*grove.Node).IsDisposed)
}
