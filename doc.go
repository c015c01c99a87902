/*
Package bintree implements a compact, positional binary encoding for
hierarchical documents: a tree of named nodes carrying typed attributes,
optional text content and child nodes.

The format is not self-describing. Attribute names are never written, so a
document can only be read back by replaying the exact sequence of calls that
wrote it. Writer and Reader implement the generic TreeWriter and TreeReader
interfaces; package doctree drives them from a declared set of node shapes.

# Technical Details

**Layout.**
All integers are big-endian.

	magic                  DefaultMagic unless configured
	string version
	u16 extension count, then (string name, string version) pairs by name
	u16 dictionary count, then string tag names
	root attributes ... child nodes ... u16 0

**Dictionary.**
Every distinct tag name gets a code, 1-based, in order of first use. The
root tag is always code 1 and its code is not written in the body, since the
body starts inside the root node. Code 0 (EndNode) closes the current node.
Because the dictionary precedes the body, the Writer buffers the body in
memory until Close.

**Attributes.**
Strings are a u16 byte length followed by UTF-8 bytes; length 0xFFFF is a
null string. Enums are a signed 16-bit ordinal, -1 for null. Optional values
are a presence byte (0 or 1) followed by the value when present. Arrays are a
u16 element count followed by the elements. int is 4 bytes, float 4 bytes
(IEEE 754), double 8 bytes, bool 1 byte.

**Errors.**
The Writer remembers its first failure and reports it from Close. The Reader
fails on the first inconsistency and stays failed. Decoding errors are
*DataError values carrying the stream offset; IsDesync tells apart errors that
usually mean the reader's call sequence disagrees with the writer's.
*/
package bintree
