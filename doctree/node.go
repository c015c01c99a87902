package doctree

import "github.com/gridfmt/bintree"

// Node is one element of a document tree. Attrs are positional and follow
// the attribute order of the node's shape.
type Node struct {
	Tag      string
	Attrs    []Value
	Content  string
	Children []*Node
}

// Document is a decoded header plus the root node.
type Document struct {
	Header bintree.Header
	Root   *Node
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(n *Node, depth int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the subtree.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// Find returns all nodes in the subtree with the given tag, in document order.
func (n *Node) Find(tag string) []*Node {
	var result []*Node
	n.Walk(func(c *Node, _ int) bool {
		if c.Tag == tag {
			result = append(result, c)
		}
		return true
	})
	return result
}

// Map renders the subtree as nested maps for export to YAML, JSON or CBOR.
func (n *Node) Map(s *Schema) map[string]any {
	m := map[string]any{"tag": n.Tag}
	sh := s.Shape(n.Tag)
	if sh != nil && len(sh.Attrs) > 0 {
		attrs := make(map[string]any, len(sh.Attrs))
		for i, spec := range sh.Attrs {
			if i < len(n.Attrs) {
				attrs[spec.Name] = n.Attrs[i].Native(spec)
			}
		}
		m["attrs"] = attrs
	}
	if n.Content != "" || (sh != nil && sh.Content) {
		m["content"] = n.Content
	}
	if len(n.Children) > 0 {
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, c.Map(s))
		}
		m["children"] = children
	}
	return m
}
