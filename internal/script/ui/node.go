// Package ui provides the restricted declarative tree builder scripts use
// to describe interface nodes, and the compiler for the inline event
// handler snippets attached to them.
package ui

import (
	"reflect"

	"github.com/dop251/goja"
)

// PropKind selects the storage type of a node property.
type PropKind int

const (
	// PropText stores a string property.
	PropText PropKind = iota
	// PropFloat stores a numeric property.
	PropFloat
	// PropBool stores a boolean property.
	PropBool
)

// Property is one typed node property.
type Property struct {
	Kind  PropKind
	Text  string
	Float float64
	Bool  bool
}

// Node is one element of a built tree. Fields are unexported so scripts
// holding a node reference can read it through methods but not rewrite it.
type Node struct {
	name     string
	text     string
	props    map[string]Property
	children []*Node
}

// NewNode creates a named element node.
func NewNode(name string) *Node {
	return &Node{name: name, props: map[string]Property{}}
}

// NewText creates a text node.
func NewText(text string) *Node {
	return &Node{text: text, props: map[string]Property{}}
}

// Name returns the element name; empty for text nodes.
func (n *Node) Name() string { return n.name }

// IsText reports whether this is a text node.
func (n *Node) IsText() bool { return n.name == "" }

// Text returns a text node's content.
func (n *Node) Text() string { return n.text }

// Children returns the node's children in attachment order.
func (n *Node) Children() []*Node { return n.children }

// AddChild appends a child node.
func (n *Node) AddChild(c *Node) { n.children = append(n.children, c) }

// Property resolves a typed property by name.
func (n *Node) Property(name string) (Property, bool) {
	p, ok := n.props[name]
	return p, ok
}

// PropertyNames lists the set properties, for diagnostics.
func (n *Node) PropertyNames() []string {
	names := make([]string, 0, len(n.props))
	for k := range n.props {
		names = append(names, k)
	}
	return names
}

// SetProp stores a property, choosing the storage type from the value's
// runtime type. Values with no mapping are dropped, not an error: scripts
// routinely pass through data the renderer ignores.
func (n *Node) SetProp(name string, v goja.Value) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return
	}
	t := v.ExportType()
	if t == nil {
		return
	}
	switch t.Kind() {
	case reflect.String:
		n.props[name] = Property{Kind: PropText, Text: v.String()}
	case reflect.Bool:
		n.props[name] = Property{Kind: PropBool, Bool: v.ToBoolean()}
	case reflect.Int64, reflect.Float64:
		n.props[name] = Property{Kind: PropFloat, Float: v.ToFloat()}
	}
}
