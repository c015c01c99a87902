package doctree

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gridfmt/bintree"
)

var (
	ErrUnknownTag   = errors.New("doctree: unknown tag")
	ErrShape        = errors.New("doctree: node does not match its shape")
	ErrInvalidShape = errors.New("doctree: invalid shape")
)

// AttrSpec describes one attribute slot. Values lists enum value names in
// ordinal order.
type AttrSpec struct {
	Name   string   `yaml:"name" toml:"name"`
	Kind   Kind     `yaml:"kind" toml:"kind"`
	Values []string `yaml:"values,omitempty" toml:"values,omitempty"`
}

// Shape is the agreed layout of every node with a given tag: its attributes
// in write order, and either text content or children.
type Shape struct {
	Tag     string     `yaml:"tag" toml:"tag"`
	Attrs   []AttrSpec `yaml:"attrs,omitempty" toml:"attrs,omitempty"`
	Content bool       `yaml:"content,omitempty" toml:"content,omitempty"`
	// Children restricts child tags. Empty means any registered tag.
	Children []string `yaml:"children,omitempty" toml:"children,omitempty"`
}

// AttrIndex returns the position of the named attribute, or -1.
func (sh *Shape) AttrIndex(name string) int {
	return slices.IndexFunc(sh.Attrs, func(a AttrSpec) bool { return a.Name == name })
}

func (sh *Shape) allows(child string) bool {
	return len(sh.Children) == 0 || slices.Contains(sh.Children, child)
}

func (sh *Shape) validate() error {
	if sh.Tag == "" {
		return fmt.Errorf("%w: empty tag", ErrInvalidShape)
	}
	if len(sh.Tag) > bintree.MaxStringLen {
		return fmt.Errorf("%w: %s: tag too long", ErrInvalidShape, sh.Tag)
	}
	if sh.Content && len(sh.Children) > 0 {
		return fmt.Errorf("%w: %s: content nodes cannot have children", ErrInvalidShape, sh.Tag)
	}
	seen := make(map[string]bool, len(sh.Attrs))
	for _, a := range sh.Attrs {
		if a.Name == "" {
			return fmt.Errorf("%w: %s: attribute without a name", ErrInvalidShape, sh.Tag)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: %s: duplicate attribute %s", ErrInvalidShape, sh.Tag, a.Name)
		}
		seen[a.Name] = true
		if a.Kind <= KindUnknown || a.Kind > KindStringArray {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidShape, sh.Tag, a.Name, a.Kind)
		}
		if a.Kind == KindEnum {
			if len(a.Values) == 0 || len(a.Values) > bintree.MaxEnumOrdinal+1 {
				return fmt.Errorf("%w: %s.%s: enum needs 1 to %d values", ErrInvalidShape, sh.Tag, a.Name, bintree.MaxEnumOrdinal+1)
			}
		} else if len(a.Values) > 0 {
			return fmt.Errorf("%w: %s.%s: only enums have values", ErrInvalidShape, sh.Tag, a.Name)
		}
	}
	return nil
}

// Schema is the set of shapes a document may use.
type Schema struct {
	Version string
	Root    string

	shapes map[string]*Shape
	order  []string
}

func NewSchema(version, root string) *Schema {
	return &Schema{Version: version, Root: root, shapes: make(map[string]*Shape)}
}

// Add registers a shape. Tags must be unique.
func (s *Schema) Add(sh Shape) error {
	if err := sh.validate(); err != nil {
		return err
	}
	if s.shapes[sh.Tag] != nil {
		return fmt.Errorf("%w: %s already registered", ErrInvalidShape, sh.Tag)
	}
	s.shapes[sh.Tag] = &sh
	s.order = append(s.order, sh.Tag)
	return nil
}

// MustAdd is Add for schemas built in code.
func (s *Schema) MustAdd(shapes ...Shape) *Schema {
	for _, sh := range shapes {
		if err := s.Add(sh); err != nil {
			panic(err)
		}
	}
	return s
}

// Validate checks references between shapes.
func (s *Schema) Validate() error {
	if s.Root != "" && s.shapes[s.Root] == nil {
		return fmt.Errorf("%w: root %s is not registered", ErrInvalidShape, s.Root)
	}
	for _, tag := range s.order {
		for _, child := range s.shapes[tag].Children {
			if s.shapes[child] == nil {
				return fmt.Errorf("%w: %s: child %s is not registered", ErrInvalidShape, tag, child)
			}
		}
	}
	return nil
}

// Shape returns the shape registered for tag, or nil.
func (s *Schema) Shape(tag string) *Shape {
	return s.shapes[tag]
}

// Shapes returns shapes in registration order.
func (s *Schema) Shapes() []*Shape {
	result := make([]*Shape, 0, len(s.order))
	for _, tag := range s.order {
		result = append(result, s.shapes[tag])
	}
	return result
}

// Attr returns the named attribute of n.
func (s *Schema) Attr(n *Node, name string) (Value, bool) {
	sh := s.shapes[n.Tag]
	if sh == nil {
		return Value{}, false
	}
	i := sh.AttrIndex(name)
	if i < 0 || i >= len(n.Attrs) {
		return Value{}, false
	}
	return n.Attrs[i], true
}

func errUnknownKind(spec AttrSpec) error {
	return fmt.Errorf("%w: attribute %s has kind %v", ErrInvalidShape, spec.Name, spec.Kind)
}
