package bintree

import (
	"maps"
	"slices"
)

// Header is the metadata that precedes a document body.
type Header struct {
	// Version is the format version of the root schema, e.g. "1.12".
	Version string
	// Extensions maps extension names to the versions used in this document.
	Extensions map[string]string
	// Dictionary lists tag names in code order; the first is the root tag.
	Dictionary []string
}

// RootName returns the tag of the document root.
func (h Header) RootName() string {
	if len(h.Dictionary) == 0 {
		return ""
	}
	return h.Dictionary[0]
}

// ExtensionVersion returns the version recorded for an extension.
func (h Header) ExtensionVersion(name string) (string, bool) {
	v, ok := h.Extensions[name]
	return v, ok
}

// extensionNames returns extension names in the order they are written.
func extensionNames(ext map[string]string) []string {
	return slices.Sorted(maps.Keys(ext))
}

// appendHeader encodes magic, version, extensions and dictionary.
func appendHeader(bb *bytesBuilder, magic []byte, version string, ext map[string]string, dict *Dictionary) error {
	bb.AppendRaw(magic)
	if !bb.AppendString(version) {
		return dataErrf(0, "write header", "version", ErrTooLarge, "%d bytes", len(version))
	}

	if len(ext) > MaxCount {
		return dataErrf(0, "write header", "extensions", ErrTooLarge, "%d entries", len(ext))
	}
	bb.AppendUint16(uint16(len(ext)))
	for _, name := range extensionNames(ext) {
		if !bb.AppendString(name) || !bb.AppendString(ext[name]) {
			return dataErrf(0, "write header", name, ErrTooLarge, "extension name or version exceeds %d bytes", MaxStringLen)
		}
	}

	bb.AppendUint16(uint16(dict.Len()))
	for _, name := range dict.names {
		if !bb.AppendString(name) {
			return dataErrf(0, "write header", "dictionary", ErrTooLarge, "tag name exceeds %d bytes", MaxStringLen)
		}
	}
	return nil
}
