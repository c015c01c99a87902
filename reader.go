package bintree

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

type ReaderOptions struct {
	// Magic identifies the format; DefaultMagic if empty.
	Magic  []byte
	Logger *slog.Logger
}

// Reader decodes a document by replaying the call sequence that wrote it.
//
// ReadHeader must come first. After that, each call decodes exactly one value
// at the cursor; nothing is buffered beyond the dictionary. The first failure
// ends the session: every later call returns the same error.
type Reader struct {
	src     io.Reader
	release func() error
	magic   []byte
	logger  *slog.Logger

	off     int64
	scratch [8]byte

	dict       *Dictionary
	header     Header
	headerRead bool
	depth      int

	closed bool
	err    error
}

func NewReader(r io.Reader, opt ReaderOptions) *Reader {
	if len(opt.Magic) == 0 {
		opt.Magic = DefaultMagic
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	return &Reader{
		src:    r,
		magic:  opt.Magic,
		logger: opt.Logger,
	}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.off
}

// Header returns the header decoded by ReadHeader.
func (r *Reader) Header() Header {
	return r.header
}

// Dictionary returns the dictionary decoded by ReadHeader.
func (r *Reader) Dictionary() *Dictionary {
	return r.dict
}

func (r *Reader) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return err
}

func (r *Reader) usable(op string) error {
	if r.err != nil {
		return r.err
	}
	if r.closed {
		return dataErrf(r.off, op, "", ErrClosed, "")
	}
	return nil
}

// body guards every decode that belongs to the document body.
func (r *Reader) body(op, name string) error {
	if err := r.usable(op); err != nil {
		return err
	}
	if !r.headerRead {
		return r.fail(dataErrf(r.off, op, name, ErrHeaderNotRead, "ReadHeader must be called first"))
	}
	if r.depth == 0 {
		return r.fail(dataErrf(r.off, op, name, ErrNodeMismatch, "document already ended"))
	}
	return nil
}

// read returns the next n bytes. The result may alias a scratch buffer that
// the next read overwrites.
func (r *Reader) read(op, name string, n int) ([]byte, error) {
	var buf []byte
	if n <= len(r.scratch) {
		buf = r.scratch[:n]
	} else {
		buf = make([]byte, n)
	}
	start := r.off
	got, err := io.ReadFull(r.src, buf)
	r.off += int64(got)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, r.fail(dataErrf(start, op, name, ErrTruncated, "need %d bytes, %d available", n, got))
		}
		return nil, r.fail(&DataError{Off: start, Op: op, Name: name, Err: err})
	}
	return buf, nil
}

func (r *Reader) readUint16(op, name string) (uint16, error) {
	b, err := r.read(op, name, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) readUint32(op, name string) (uint32, error) {
	b, err := r.read(op, name, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) readUint64(op, name string) (uint64, error) {
	b, err := r.read(op, name, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) readBool(op, name string) (bool, error) {
	b, err := r.read(op, name, 1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, r.fail(dataErrf(r.off-1, op, name, ErrMalformed, "boolean byte is 0x%02x", b[0]))
	}
}

// readString returns false for a null string.
func (r *Reader) readString(op, name string) (string, bool, error) {
	n, err := r.readUint16(op, name)
	if err != nil {
		return "", false, err
	}
	if n == nullStringLen {
		return "", false, nil
	}
	b, err := r.read(op, name, int(n))
	if err != nil {
		var de *DataError
		if errors.As(err, &de) && de.Err == ErrTruncated {
			de.Off -= 2
			de.Msg = fmt.Sprintf("declared string length %d exceeds the remaining data", n)
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (r *Reader) readNonNullString(op, name string) (string, error) {
	off := r.off
	s, ok, err := r.readString(op, name)
	if err == nil && !ok {
		err = r.fail(dataErrf(off, op, name, ErrMalformed, "unexpected null string"))
	}
	return s, err
}

// ReadHeader validates the magic bytes, then decodes the version, the
// extension versions and the dictionary. It must be the first call.
func (r *Reader) ReadHeader() (Header, error) {
	const op = "read header"
	if err := r.usable(op); err != nil {
		return Header{}, err
	}
	if r.headerRead {
		return Header{}, dataErrf(r.off, op, "", ErrUnsupported, "header already read")
	}

	magic := make([]byte, len(r.magic))
	got, err := io.ReadFull(r.src, magic)
	r.off += int64(got)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Header{}, r.fail(&DataError{Off: 0, Op: op, Name: "magic", Err: err})
	}
	if got < len(magic) || !bytes.Equal(magic, r.magic) {
		return Header{}, r.fail(dataErrf(0, op, "magic", ErrBadMagic, "got %x, wanted %x", magic[:got], r.magic))
	}

	var h Header
	if h.Version, err = r.readNonNullString(op, "version"); err != nil {
		return Header{}, err
	}

	n, err := r.readUint16(op, "extensions")
	if err != nil {
		return Header{}, err
	}
	h.Extensions = make(map[string]string, n)
	for range n {
		name, err := r.readNonNullString(op, "extension name")
		if err != nil {
			return Header{}, err
		}
		version, err := r.readNonNullString(op, name)
		if err != nil {
			return Header{}, err
		}
		h.Extensions[name] = version
	}

	n, err = r.readUint16(op, "dictionary")
	if err != nil {
		return Header{}, err
	}
	if n == 0 {
		return Header{}, r.fail(dataErrf(r.off-2, op, "dictionary", ErrMalformed, "empty dictionary, document has no root"))
	}
	dict := newDictionary()
	for range n {
		off := r.off
		name, err := r.readNonNullString(op, "dictionary")
		if err != nil {
			return Header{}, err
		}
		if _, dup := dict.codes[name]; dup {
			return Header{}, r.fail(dataErrf(off, op, "dictionary", ErrMalformed, "duplicate tag %q", name))
		}
		dict.intern(name)
	}
	h.Dictionary = dict.Names()

	r.dict = dict
	r.header = h
	r.headerRead = true
	r.depth = 1

	r.logger.LogAttrs(context.Background(), slog.LevelDebug, "bintree: header read",
		slog.String("root", h.RootName()),
		slog.String("version", h.Version),
		slog.Int("extensions", len(h.Extensions)),
		slog.Int("tags", dict.Len()),
		slog.Int64("header_bytes", r.off))
	return h, nil
}

func (r *Reader) ReadDoubleAttribute(name string) (float64, error) {
	const op = "read double attribute"
	if err := r.body(op, name); err != nil {
		return 0, err
	}
	v, err := r.readUint64(op, name)
	return math.Float64frombits(v), err
}

func (r *Reader) ReadFloatAttribute(name string) (float32, error) {
	const op = "read float attribute"
	if err := r.body(op, name); err != nil {
		return 0, err
	}
	v, err := r.readUint32(op, name)
	return math.Float32frombits(v), err
}

func (r *Reader) ReadIntAttribute(name string) (int32, error) {
	const op = "read int attribute"
	if err := r.body(op, name); err != nil {
		return 0, err
	}
	v, err := r.readUint32(op, name)
	return int32(v), err
}

func (r *Reader) ReadBooleanAttribute(name string) (bool, error) {
	const op = "read boolean attribute"
	if err := r.body(op, name); err != nil {
		return false, err
	}
	return r.readBool(op, name)
}

// ReadStringAttribute returns "" for a null string.
func (r *Reader) ReadStringAttribute(name string) (string, error) {
	const op = "read string attribute"
	if err := r.body(op, name); err != nil {
		return "", err
	}
	s, _, err := r.readString(op, name)
	return s, err
}

// ReadNullableStringAttribute returns nil for a null string.
func (r *Reader) ReadNullableStringAttribute(name string) (*string, error) {
	const op = "read string attribute"
	if err := r.body(op, name); err != nil {
		return nil, err
	}
	s, ok, err := r.readString(op, name)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// ReadEnumAttribute returns an ordinal in [0, count), or NullEnum for an
// absent value.
func (r *Reader) ReadEnumAttribute(name string, count int) (int, error) {
	const op = "read enum attribute"
	if err := r.body(op, name); err != nil {
		return NullEnum, err
	}
	v, err := r.readUint16(op, name)
	if err != nil {
		return NullEnum, err
	}
	ord := int(int16(v))
	if ord == NullEnum {
		return NullEnum, nil
	}
	if ord < 0 || ord >= count {
		return NullEnum, r.fail(dataErrf(r.off-2, op, name, ErrMalformed, "ordinal %d outside the %d known values", ord, count))
	}
	return ord, nil
}

func (r *Reader) ReadOptionalDoubleAttribute(name string) (Optional[float64], error) {
	const op = "read optional double attribute"
	if err := r.body(op, name); err != nil {
		return None[float64](), err
	}
	present, err := r.readBool(op, name)
	if err != nil || !present {
		return None[float64](), err
	}
	v, err := r.readUint64(op, name)
	if err != nil {
		return None[float64](), err
	}
	return Some(math.Float64frombits(v)), nil
}

func (r *Reader) ReadOptionalIntAttribute(name string) (Optional[int32], error) {
	const op = "read optional int attribute"
	if err := r.body(op, name); err != nil {
		return None[int32](), err
	}
	present, err := r.readBool(op, name)
	if err != nil || !present {
		return None[int32](), err
	}
	v, err := r.readUint32(op, name)
	if err != nil {
		return None[int32](), err
	}
	return Some(int32(v)), nil
}

func (r *Reader) ReadOptionalBooleanAttribute(name string) (Optional[bool], error) {
	const op = "read optional boolean attribute"
	if err := r.body(op, name); err != nil {
		return None[bool](), err
	}
	present, err := r.readBool(op, name)
	if err != nil || !present {
		return None[bool](), err
	}
	v, err := r.readBool(op, name)
	if err != nil {
		return None[bool](), err
	}
	return Some(v), nil
}

func (r *Reader) ReadIntArrayAttribute(name string) ([]int32, error) {
	const op = "read int array attribute"
	if err := r.body(op, name); err != nil {
		return nil, err
	}
	n, err := r.readUint16(op, name)
	if err != nil {
		return nil, err
	}
	b, err := r.read(op, name, 4*int(n))
	if err != nil {
		return nil, err
	}
	v := make([]int32, n)
	for i := range v {
		v[i] = int32(binary.BigEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func (r *Reader) ReadStringArrayAttribute(name string) ([]string, error) {
	const op = "read string array attribute"
	if err := r.body(op, name); err != nil {
		return nil, err
	}
	n, err := r.readUint16(op, name)
	if err != nil {
		return nil, err
	}
	v := make([]string, n)
	for i := range v {
		if v[i], err = r.readNonNullString(op, name); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// ReadChildNodes decodes child codes until EndNode, which it consumes, closing
// the current node. For each child it calls fn with the tag name; fn must
// read the child completely before returning.
func (r *Reader) ReadChildNodes(fn func(name string) error) error {
	const op = "read child nodes"
	if err := r.body(op, ""); err != nil {
		return err
	}
	for {
		code, err := r.readUint16(op, "")
		if err != nil {
			return err
		}
		if code == EndNode {
			r.depth--
			return nil
		}
		name, ok := r.dict.Name(code)
		if !ok {
			return r.fail(dataErrf(r.off-2, op, "", ErrUnknownCode, "code %d, dictionary has %d entries", code, r.dict.Len()))
		}
		parent := r.depth
		r.depth++
		if err := fn(name); err != nil {
			return r.fail(err)
		}
		if r.err != nil {
			return r.err
		}
		if r.depth != parent {
			return r.fail(dataErrf(r.off, op, name, ErrNodeMismatch, "child node was not read to its end"))
		}
	}
}

// ReadContent reads text content followed by the end of the node.
func (r *Reader) ReadContent() (string, error) {
	const op = "read content"
	if err := r.body(op, ""); err != nil {
		return "", err
	}
	s, _, err := r.readString(op, "")
	if err != nil {
		return "", err
	}
	if err := r.expectEnd(op); err != nil {
		return "", err
	}
	return s, nil
}

// ReadEndNode closes a node that has only attributes.
func (r *Reader) ReadEndNode() error {
	const op = "read end node"
	if err := r.body(op, ""); err != nil {
		return err
	}
	return r.expectEnd(op)
}

func (r *Reader) expectEnd(op string) error {
	code, err := r.readUint16(op, "")
	if err != nil {
		return err
	}
	if code != EndNode {
		name, _ := r.dict.Name(code)
		return r.fail(dataErrf(r.off-2, op, "", ErrNodeMismatch, "found code %d (%q) where the node should end", code, name))
	}
	r.depth--
	return nil
}

// SkipChildNodes always fails: attributes are not self-describing, so a
// subtree cannot be skipped without knowing its exact shape.
func (r *Reader) SkipChildNodes() error {
	return r.fail(dataErrf(r.off, "skip child nodes", "", ErrUnsupported, "binary documents cannot skip subtrees"))
}

// Done checks that the root node has been closed and no bytes follow it.
func (r *Reader) Done() error {
	const op = "finish"
	if err := r.usable(op); err != nil {
		return err
	}
	if !r.headerRead {
		return r.fail(dataErrf(r.off, op, "", ErrHeaderNotRead, ""))
	}
	if r.depth > 0 {
		return r.fail(dataErrf(r.off, op, "", ErrNodeMismatch, "%d nodes left open", r.depth))
	}
	var b [1]byte
	n, err := r.src.Read(b[:])
	for n == 0 && err == nil {
		n, err = r.src.Read(b[:])
	}
	if n > 0 {
		return r.fail(dataErrf(r.off, op, "", ErrTrailingData, ""))
	}
	if err != io.EOF {
		return r.fail(&DataError{Off: r.off, Op: op, Err: err})
	}
	return nil
}

// Close releases the underlying source, if the Reader owns it.
func (r *Reader) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	if r.release != nil {
		err := r.release()
		r.release = nil
		return err
	}
	return nil
}
