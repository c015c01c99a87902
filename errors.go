package bintree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBadMagic means the stream is not in this format.
	ErrBadMagic = errors.New("bintree: magic mismatch")

	// ErrTruncated means fewer bytes were available than a value needs.
	ErrTruncated = errors.New("bintree: truncated data")

	// ErrUnknownCode means a child code has no dictionary entry.
	ErrUnknownCode = errors.New("bintree: unknown dictionary code")

	// ErrNodeMismatch means an end-of-node marker was not where the call
	// sequence expected it, or the writer was driven out of node order.
	ErrNodeMismatch = errors.New("bintree: node boundary mismatch")

	// ErrMalformed means a decoded value is outside its legal range.
	ErrMalformed = errors.New("bintree: malformed data")

	// ErrUnsupported is returned by operations this codec refuses to perform.
	ErrUnsupported = errors.New("bintree: unsupported operation")

	ErrHeaderNotRead = errors.New("bintree: header not read")
	ErrClosed        = errors.New("bintree: session closed")
	ErrTooLarge      = errors.New("bintree: value too large for encoding")
	ErrTrailingData  = errors.New("bintree: trailing data after document")
)

const desyncHint = "the writer and reader may disagree on the attribute sequence (e.g. a value read here was never written)"

// DataError describes a failure at a specific stream offset.
type DataError struct {
	Off  int64
	Op   string
	Name string
	Msg  string
	Err  error
}

func dataErrf(off int64, op, name string, err error, format string, args ...any) error {
	return &DataError{Off: off, Op: op, Name: name, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	var buf strings.Builder
	buf.WriteString("bintree: ")
	buf.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&buf, " %q", e.Name)
	}
	fmt.Fprintf(&buf, " at offset %d", e.Off)
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(strings.TrimPrefix(e.Err.Error(), "bintree: "))
	}
	if IsDesync(e.Err) {
		buf.WriteString("; ")
		buf.WriteString(desyncHint)
	}
	return buf.String()
}

// IsDesync reports whether err looks like the writer and reader were driven
// through different call sequences, as opposed to a stream that is not in this
// format or is corrupt.
func IsDesync(err error) bool {
	return errors.Is(err, ErrTruncated) || errors.Is(err, ErrNodeMismatch)
}

// IsMalformed reports whether err indicates a foreign or corrupt stream.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrBadMagic) || errors.Is(err, ErrUnknownCode) || errors.Is(err, ErrMalformed) || errors.Is(err, ErrTrailingData)
}
