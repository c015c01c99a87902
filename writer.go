package bintree

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

type WriterOptions struct {
	// Magic identifies the format; DefaultMagic if empty.
	Magic []byte
	// Version is the root format version written to the header.
	Version string
	Logger  *slog.Logger
}

// Writer encodes a document driven by a depth-first walk.
//
// The body is buffered in memory because the dictionary, which precedes it,
// is only complete once the last node has been started. Nothing reaches the
// sink until Close.
//
// Writer methods do not return errors. The first failure is remembered, all
// later calls are ignored, and Close reports it. A Writer is not safe for
// concurrent use and cannot be reused after Close.
type Writer struct {
	sink       io.Writer
	release    func(err error) error
	magic      []byte
	version    string
	extensions map[string]string
	logger     *slog.Logger

	dict  *Dictionary
	body  bytesBuilder
	depth int
	nodes int

	started bool
	closed  bool
	err     error

	headerLen int
	bodyLen   int
}

func NewWriter(w io.Writer, opt WriterOptions) *Writer {
	if len(opt.Magic) == 0 {
		opt.Magic = DefaultMagic
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Writer{
		sink:    w,
		magic:   opt.Magic,
		version: opt.Version,
		logger:  opt.Logger,
		dict:    newDictionary(),
	}
}

// Err returns the first failure recorded so far.
func (w *Writer) Err() error {
	return w.err
}

// Dictionary returns the tags seen so far. It must not be modified.
func (w *Writer) Dictionary() *Dictionary {
	return w.dict
}

// Header returns the header Close writes, as recorded so far.
func (w *Writer) Header() Header {
	h := Header{Version: w.version, Dictionary: w.dict.Names()}
	if len(w.extensions) > 0 {
		h.Extensions = make(map[string]string, len(w.extensions))
		for k, v := range w.extensions {
			h.Extensions[k] = v
		}
	}
	return h
}

// Len returns the number of bytes written to the sink by Close.
func (w *Writer) Len() int {
	return w.headerLen + w.bodyLen
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) usable() bool {
	if w.closed {
		w.fail(ErrClosed)
	}
	return w.err == nil
}

// inNode checks that an attribute or content call happens inside an open node.
func (w *Writer) inNode(op, name string) bool {
	if !w.usable() {
		return false
	}
	if w.depth == 0 {
		w.fail(dataErrf(int64(w.body.Len()), op, name, ErrNodeMismatch, "no open node"))
		return false
	}
	return true
}

// SetVersions records extension versions for the header. It replaces any
// previous call and must happen before Close.
func (w *Writer) SetVersions(extensions map[string]string) {
	if !w.usable() {
		return
	}
	w.extensions = make(map[string]string, len(extensions))
	for k, v := range extensions {
		w.extensions[k] = v
	}
}

// WriteStartNode opens a node. The first node is the document root: it takes
// dictionary code 1 and emits nothing. Every later node emits its code.
func (w *Writer) WriteStartNode(name string) {
	if !w.usable() {
		return
	}
	off := int64(w.body.Len())
	if len(name) > MaxStringLen {
		w.fail(dataErrf(off, "start node", name, ErrTooLarge, "tag name exceeds %d bytes", MaxStringLen))
		return
	}
	if !w.started {
		w.dict.intern(name)
		w.started = true
		w.depth = 1
		w.nodes = 1
		return
	}
	if w.depth == 0 {
		w.fail(dataErrf(off, "start node", name, ErrNodeMismatch, "root node already closed"))
		return
	}
	code, ok := w.dict.intern(name)
	if !ok {
		w.fail(dataErrf(off, "start node", name, ErrTooLarge, "more than %d distinct tags", MaxCount))
		return
	}
	w.body.AppendUint16(code)
	w.depth++
	w.nodes++
}

// WriteEndNode closes the innermost open node.
func (w *Writer) WriteEndNode() {
	if !w.inNode("end node", "") {
		return
	}
	w.body.AppendUint16(EndNode)
	w.depth--
}

// WriteStartNodes emits nothing in this format.
func (w *Writer) WriteStartNodes() {}

// WriteEndNodes emits nothing in this format.
func (w *Writer) WriteEndNodes() {}

// WriteNodeContent writes text content. The node still needs WriteEndNode.
func (w *Writer) WriteNodeContent(value string) {
	if !w.inNode("write content", "") {
		return
	}
	w.appendString("write content", "", value)
}

func (w *Writer) appendString(op, name, v string) {
	if !w.body.AppendString(v) {
		w.fail(dataErrf(int64(w.body.Len()), op, name, ErrTooLarge, "%d bytes, limit is %d", len(v), MaxStringLen))
	}
}

func (w *Writer) WriteDoubleAttribute(name string, v float64) {
	if w.inNode("write double attribute", name) {
		w.body.AppendFloat64(v)
	}
}

func (w *Writer) WriteFloatAttribute(name string, v float32) {
	if w.inNode("write float attribute", name) {
		w.body.AppendFloat32(v)
	}
}

func (w *Writer) WriteIntAttribute(name string, v int32) {
	if w.inNode("write int attribute", name) {
		w.body.AppendInt32(v)
	}
}

func (w *Writer) WriteBooleanAttribute(name string, v bool) {
	if w.inNode("write boolean attribute", name) {
		w.body.AppendBool(v)
	}
}

func (w *Writer) WriteStringAttribute(name string, v string) {
	if w.inNode("write string attribute", name) {
		w.appendString("write string attribute", name, v)
	}
}

// WriteNullableStringAttribute writes v, or a null string when v is nil.
func (w *Writer) WriteNullableStringAttribute(name string, v *string) {
	if !w.inNode("write string attribute", name) {
		return
	}
	if v == nil {
		w.body.AppendNullString()
		return
	}
	w.appendString("write string attribute", name, *v)
}

func (w *Writer) WriteEnumAttribute(name string, ordinal int) {
	if !w.inNode("write enum attribute", name) {
		return
	}
	if ordinal < NullEnum || ordinal > MaxEnumOrdinal {
		w.fail(dataErrf(int64(w.body.Len()), "write enum attribute", name, ErrTooLarge, "ordinal %d outside [%d, %d]", ordinal, NullEnum, MaxEnumOrdinal))
		return
	}
	w.body.AppendInt16(int16(ordinal))
}

func (w *Writer) WriteOptionalDoubleAttribute(name string, v Optional[float64]) {
	if !w.inNode("write optional double attribute", name) {
		return
	}
	w.body.AppendBool(v.Valid)
	if v.Valid {
		w.body.AppendFloat64(v.Value)
	}
}

func (w *Writer) WriteOptionalIntAttribute(name string, v Optional[int32]) {
	if !w.inNode("write optional int attribute", name) {
		return
	}
	w.body.AppendBool(v.Valid)
	if v.Valid {
		w.body.AppendInt32(v.Value)
	}
}

func (w *Writer) WriteOptionalBooleanAttribute(name string, v Optional[bool]) {
	if !w.inNode("write optional boolean attribute", name) {
		return
	}
	w.body.AppendBool(v.Valid)
	if v.Valid {
		w.body.AppendBool(v.Value)
	}
}

func (w *Writer) WriteIntArrayAttribute(name string, v []int32) {
	if !w.inNode("write int array attribute", name) || !w.appendCount("write int array attribute", name, len(v)) {
		return
	}
	for _, x := range v {
		w.body.AppendInt32(x)
	}
}

func (w *Writer) WriteStringArrayAttribute(name string, v []string) {
	if !w.inNode("write string array attribute", name) || !w.appendCount("write string array attribute", name, len(v)) {
		return
	}
	for _, s := range v {
		w.appendString("write string array attribute", name, s)
	}
}

func (w *Writer) appendCount(op, name string, n int) bool {
	if n > MaxCount {
		w.fail(dataErrf(int64(w.body.Len()), op, name, ErrTooLarge, "%d elements, limit is %d", n, MaxCount))
		return false
	}
	w.body.AppendUint16(uint16(n))
	return true
}

// Close writes the header, the dictionary and the buffered body to the sink,
// then releases the buffer. It reports the first failure of the session.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	err := w.err
	if err == nil && !w.started {
		err = dataErrf(0, "close", "", ErrNodeMismatch, "document has no root node")
	}
	if err == nil && w.depth > 0 {
		err = dataErrf(int64(w.body.Len()), "close", "", ErrNodeMismatch, "%d nodes left open", w.depth)
	}
	if err == nil {
		err = w.flush()
	}
	w.body.Reset()

	if w.release != nil {
		err = w.release(err)
		w.release = nil
	}
	if w.err == nil {
		w.err = err
	}
	return err
}

func (w *Writer) flush() error {
	var hdr bytesBuilder
	if err := appendHeader(&hdr, w.magic, w.version, w.extensions, w.dict); err != nil {
		return err
	}
	if _, err := w.sink.Write(hdr.Buf); err != nil {
		return fmt.Errorf("bintree: write header: %w", err)
	}
	if _, err := w.sink.Write(w.body.Buf); err != nil {
		return fmt.Errorf("bintree: write body: %w", err)
	}
	w.headerLen, w.bodyLen = hdr.Len(), w.body.Len()

	w.logger.LogAttrs(context.Background(), slog.LevelDebug, "bintree: document written",
		slog.String("root", w.dict.names[0]),
		slog.String("version", w.version),
		slog.Int("nodes", w.nodes),
		slog.Int("tags", w.dict.Len()),
		slog.Int("header_bytes", w.headerLen),
		slog.Int("body_bytes", w.bodyLen))
	return nil
}
