package bintree

// TreeWriter is the write side of a tree data format. Attribute names are
// accepted for symmetry with text formats; a positional format may ignore
// them.
//
// Implementations record the first failure and report it from Close.
type TreeWriter interface {
	SetVersions(extensions map[string]string)

	WriteStartNode(name string)
	WriteEndNode()
	// WriteStartNodes and WriteEndNodes bracket a run of sibling nodes that
	// share a tag, for formats that group them into arrays.
	WriteStartNodes()
	WriteEndNodes()
	WriteNodeContent(value string)

	WriteDoubleAttribute(name string, v float64)
	WriteFloatAttribute(name string, v float32)
	WriteIntAttribute(name string, v int32)
	WriteBooleanAttribute(name string, v bool)
	WriteStringAttribute(name string, v string)
	WriteNullableStringAttribute(name string, v *string)
	// WriteEnumAttribute writes an ordinal; NullEnum means no value.
	WriteEnumAttribute(name string, ordinal int)
	WriteOptionalDoubleAttribute(name string, v Optional[float64])
	WriteOptionalIntAttribute(name string, v Optional[int32])
	WriteOptionalBooleanAttribute(name string, v Optional[bool])
	WriteIntArrayAttribute(name string, v []int32)
	WriteStringArrayAttribute(name string, v []string)

	Close() error
}

// TreeReader is the read side of a tree data format. Calls must mirror the
// sequence that produced the document.
type TreeReader interface {
	ReadHeader() (Header, error)

	ReadDoubleAttribute(name string) (float64, error)
	ReadFloatAttribute(name string) (float32, error)
	ReadIntAttribute(name string) (int32, error)
	ReadBooleanAttribute(name string) (bool, error)
	ReadStringAttribute(name string) (string, error)
	ReadNullableStringAttribute(name string) (*string, error)
	// ReadEnumAttribute returns an ordinal below count, or NullEnum.
	ReadEnumAttribute(name string, count int) (int, error)
	ReadOptionalDoubleAttribute(name string) (Optional[float64], error)
	ReadOptionalIntAttribute(name string) (Optional[int32], error)
	ReadOptionalBooleanAttribute(name string) (Optional[bool], error)
	ReadIntArrayAttribute(name string) ([]int32, error)
	ReadStringArrayAttribute(name string) ([]string, error)

	// ReadChildNodes calls fn for each child tag until the node ends. fn must
	// consume the child completely.
	ReadChildNodes(fn func(name string) error) error
	// ReadContent reads text content and closes the node.
	ReadContent() (string, error)
	// ReadEndNode closes a node that has neither children nor content.
	ReadEndNode() error
	SkipChildNodes() error

	Close() error
}

var (
	_ TreeWriter = (*Writer)(nil)
	_ TreeReader = (*Reader)(nil)
)
