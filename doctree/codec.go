package doctree

import (
	"fmt"

	"github.com/gridfmt/bintree"
)

// Check reports the first node under root that does not match s.
func (s *Schema) Check(root *Node) error {
	if root == nil {
		return fmt.Errorf("%w: nil root", ErrShape)
	}
	if s.Root != "" && root.Tag != s.Root {
		return fmt.Errorf("%w: root is %s, want %s", ErrShape, root.Tag, s.Root)
	}
	return s.check(root, root.Tag)
}

func (s *Schema) check(n *Node, path string) error {
	sh := s.shapes[n.Tag]
	if sh == nil {
		return fmt.Errorf("%w %s at %s", ErrUnknownTag, n.Tag, path)
	}
	if len(n.Attrs) != len(sh.Attrs) {
		return fmt.Errorf("%w: %s has %d attributes, want %d", ErrShape, path, len(n.Attrs), len(sh.Attrs))
	}
	for i, spec := range sh.Attrs {
		v := n.Attrs[i]
		if v.Kind != spec.Kind {
			return fmt.Errorf("%w: %s.%s is %v, want %v", ErrShape, path, spec.Name, v.Kind, spec.Kind)
		}
		if spec.Kind == KindEnum && !v.Null && (v.Ord < 0 || v.Ord >= len(spec.Values)) {
			return fmt.Errorf("%w: %s.%s ordinal %d outside %d values", ErrShape, path, spec.Name, v.Ord, len(spec.Values))
		}
	}
	if !sh.Content && n.Content != "" {
		return fmt.Errorf("%w: %s cannot have content", ErrShape, path)
	}
	if sh.Content && len(n.Children) > 0 {
		return fmt.Errorf("%w: %s has content and cannot have children", ErrShape, path)
	}
	for i, c := range n.Children {
		if s.shapes[c.Tag] == nil {
			return fmt.Errorf("%w %s under %s", ErrUnknownTag, c.Tag, path)
		}
		if !sh.allows(c.Tag) {
			return fmt.Errorf("%w: %s cannot contain %s", ErrShape, path, c.Tag)
		}
		if err := s.check(c, fmt.Sprintf("%s/%s[%d]", path, c.Tag, i)); err != nil {
			return err
		}
	}
	return nil
}

// Encode checks root against s and writes it depth first. Runs of siblings
// sharing a tag are bracketed with WriteStartNodes and WriteEndNodes. The
// caller sets versions and closes w.
func Encode(w bintree.TreeWriter, s *Schema, root *Node) error {
	if err := s.Check(root); err != nil {
		return err
	}
	s.encode(w, root)
	return nil
}

func (s *Schema) encode(w bintree.TreeWriter, n *Node) {
	sh := s.shapes[n.Tag]
	w.WriteStartNode(n.Tag)
	for i, spec := range sh.Attrs {
		writeValue(w, spec, n.Attrs[i])
	}
	if sh.Content {
		w.WriteNodeContent(n.Content)
	}
	for i, c := range n.Children {
		first := i == 0 || n.Children[i-1].Tag != c.Tag
		last := i == len(n.Children)-1 || n.Children[i+1].Tag != c.Tag
		if first {
			w.WriteStartNodes()
		}
		s.encode(w, c)
		if last {
			w.WriteEndNodes()
		}
	}
	w.WriteEndNode()
}

// Decode reads a whole document shaped by s. If r can report whether the
// document was fully consumed, Decode checks that too.
func Decode(r bintree.TreeReader, s *Schema) (*Document, error) {
	h, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	root, err := DecodeBody(r, s, h)
	if err != nil {
		return nil, err
	}
	if d, ok := r.(interface{ Done() error }); ok {
		if err := d.Done(); err != nil {
			return nil, err
		}
	}
	return &Document{Header: h, Root: root}, nil
}

// DecodeBody reads the root node after the header has been read.
func DecodeBody(r bintree.TreeReader, s *Schema, h bintree.Header) (*Node, error) {
	tag := h.RootName()
	if s.Root != "" && tag != s.Root {
		return nil, fmt.Errorf("%w: root is %s, want %s", ErrShape, tag, s.Root)
	}
	return s.decode(r, tag, nil)
}

func (s *Schema) decode(r bintree.TreeReader, tag string, parent *Shape) (*Node, error) {
	sh := s.shapes[tag]
	if sh == nil {
		return nil, fmt.Errorf("%w %s", ErrUnknownTag, tag)
	}
	if parent != nil && !parent.allows(tag) {
		return nil, fmt.Errorf("%w: %s cannot contain %s", ErrShape, parent.Tag, tag)
	}
	n := &Node{Tag: tag}
	if len(sh.Attrs) > 0 {
		n.Attrs = make([]Value, 0, len(sh.Attrs))
	}
	for _, spec := range sh.Attrs {
		v, err := readValue(r, spec)
		if err != nil {
			return nil, err
		}
		n.Attrs = append(n.Attrs, v)
	}
	if sh.Content {
		content, err := r.ReadContent()
		if err != nil {
			return nil, err
		}
		n.Content = content
		return n, nil
	}
	err := r.ReadChildNodes(func(child string) error {
		c, err := s.decode(r, child, sh)
		if err != nil {
			return err
		}
		n.Children = append(n.Children, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// WriteFile encodes doc to path. The header version defaults to the schema
// version.
func WriteFile(path string, s *Schema, doc *Document, opt bintree.WriterOptions) error {
	if opt.Version == "" {
		opt.Version = doc.Header.Version
	}
	if opt.Version == "" {
		opt.Version = s.Version
	}
	return bintree.WriteFile(path, opt, func(w *bintree.Writer) error {
		if len(doc.Header.Extensions) > 0 {
			w.SetVersions(doc.Header.Extensions)
		}
		return Encode(w, s, doc.Root)
	})
}

// ReadFile decodes the document stored at path.
func ReadFile(path string, s *Schema, opt bintree.ReaderOptions) (*Document, error) {
	var doc *Document
	err := bintree.ReadFile(path, opt, func(r *bintree.Reader, h bintree.Header) error {
		root, err := DecodeBody(r, s, h)
		if err != nil {
			return err
		}
		doc = &Document{Header: h, Root: root}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
