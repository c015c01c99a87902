package bintree

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/gridfmt/bintree/bintreetest"
)

func encode(t testing.TB, opt WriterOptions, drive func(w *Writer)) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, opt)
	drive(w)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func newTestReader(t testing.TB, data []byte) *Reader {
	return NewReader(bytes.NewReader(data), ReaderOptions{Logger: bintreetest.Logger(t)})
}

func TestReader_NetworkScenario(t *testing.T) {
	data := encode(t, WriterOptions{Version: "1.0"}, func(w *Writer) { writeNetwork(w) })
	r := newTestReader(t, data)

	h, err := r.ReadHeader()
	if err != nil {
		t.Fatal(err)
	}
	if h.Version != "1.0" {
		t.Fatalf("Version = %q, wanted 1.0", h.Version)
	}
	if !reflect.DeepEqual(h.Extensions, map[string]string{"ext-a": "2.0"}) {
		t.Fatalf("Extensions = %v, wanted map[ext-a:2.0]", h.Extensions)
	}
	if !reflect.DeepEqual(h.Dictionary, []string{"network", "substation"}) {
		t.Fatalf("Dictionary = %v, wanted [network substation]", h.Dictionary)
	}
	if h.RootName() != "network" {
		t.Fatalf("RootName() = %q, wanted network", h.RootName())
	}

	id, err := r.ReadIntAttribute("id")
	if err != nil || id != 42 {
		t.Fatalf("id = (%d, %v), wanted 42", id, err)
	}
	version, err := r.ReadDoubleAttribute("version")
	if err != nil || version != 1.5 {
		t.Fatalf("version = (%v, %v), wanted 1.5", version, err)
	}

	var tags, names []string
	err = r.ReadChildNodes(func(tag string) error {
		tags = append(tags, tag)
		name, err := r.ReadStringAttribute("name")
		if err != nil {
			return err
		}
		names = append(names, name)
		return r.ReadEndNode()
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tags, []string{"substation", "substation"}) {
		t.Fatalf("tags = %v", tags)
	}
	if !reflect.DeepEqual(names, []string{"S1", "S2"}) {
		t.Fatalf("names = %v, wanted [S1 S2]", names)
	}
	if err := r.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if r.Offset() != int64(len(data)) {
		t.Fatalf("Offset() = %d, wanted %d", r.Offset(), len(data))
	}
}

type gridKind int

const (
	busBreaker gridKind = iota
	nodeBreaker
)

var gridKinds = []gridKind{busBreaker, nodeBreaker}

func TestReader_AllTypesRoundTrip(t *testing.T) {
	s := "héllo"
	kind := nodeBreaker
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("root")
		w.WriteDoubleAttribute("d", math.Inf(-1))
		w.WriteFloatAttribute("f", -0.25)
		w.WriteIntAttribute("i", math.MinInt32)
		w.WriteBooleanAttribute("b", true)
		w.WriteStringAttribute("s", s)
		w.WriteNullableStringAttribute("ns", nil)
		w.WriteNullableStringAttribute("ns2", &s)
		WriteEnum(w, "k", gridKinds, kind)
		WriteNullableEnum[gridKind](w, "nk", gridKinds, nil)
		w.WriteOptionalDoubleAttribute("od", Some(2.5))
		w.WriteOptionalDoubleAttribute("od2", None[float64]())
		w.WriteOptionalIntAttribute("oi", None[int32]())
		w.WriteOptionalBooleanAttribute("ob", Some(false))
		w.WriteIntArrayAttribute("ia", []int32{3, 1, 2})
		w.WriteStringArrayAttribute("sa", []string{"", "a", s})

		w.WriteStartNode("leaf")
		w.WriteNodeContent("text content")
		w.WriteEndNode()
		w.WriteStartNode("empty")
		w.WriteStartNode("deep")
		w.WriteEndNode()
		w.WriteEndNode()
		w.WriteStartNode("leaf")
		w.WriteNodeContent("")
		w.WriteEndNode()
		w.WriteEndNode()
	})

	r := newTestReader(t, data)
	must(r.ReadHeader())
	if v := must(r.ReadDoubleAttribute("d")); !math.IsInf(v, -1) {
		t.Fatalf("d = %v", v)
	}
	if v := must(r.ReadFloatAttribute("f")); v != -0.25 {
		t.Fatalf("f = %v", v)
	}
	if v := must(r.ReadIntAttribute("i")); v != math.MinInt32 {
		t.Fatalf("i = %v", v)
	}
	if v := must(r.ReadBooleanAttribute("b")); !v {
		t.Fatalf("b = %v", v)
	}
	if v := must(r.ReadStringAttribute("s")); v != s {
		t.Fatalf("s = %q", v)
	}
	if v := must(r.ReadNullableStringAttribute("ns")); v != nil {
		t.Fatalf("ns = %q, wanted nil", *v)
	}
	if v := must(r.ReadNullableStringAttribute("ns2")); v == nil || *v != s {
		t.Fatalf("ns2 = %v", v)
	}
	if v, ok, err := ReadEnum(r, "k", gridKinds); err != nil || !ok || v != nodeBreaker {
		t.Fatalf("k = (%v, %v, %v), wanted nodeBreaker", v, ok, err)
	}
	if v := must(ReadNullableEnum(r, "nk", gridKinds)); v != nil {
		t.Fatalf("nk = %v, wanted nil", *v)
	}
	if v := must(r.ReadOptionalDoubleAttribute("od")); v != Some(2.5) {
		t.Fatalf("od = %v", v)
	}
	if v := must(r.ReadOptionalDoubleAttribute("od2")); v.Valid {
		t.Fatalf("od2 = %v, wanted none", v)
	}
	if v := must(r.ReadOptionalIntAttribute("oi")); v.Valid {
		t.Fatalf("oi = %v, wanted none", v)
	}
	if v := must(r.ReadOptionalBooleanAttribute("ob")); v != Some(false) {
		t.Fatalf("ob = %v", v)
	}
	if v := must(r.ReadIntArrayAttribute("ia")); !reflect.DeepEqual(v, []int32{3, 1, 2}) {
		t.Fatalf("ia = %v", v)
	}
	if v := must(r.ReadStringArrayAttribute("sa")); !reflect.DeepEqual(v, []string{"", "a", s}) {
		t.Fatalf("sa = %q", v)
	}

	var contents []string
	var order []string
	ensure(r.ReadChildNodes(func(tag string) error {
		order = append(order, tag)
		switch tag {
		case "leaf":
			c, err := r.ReadContent()
			contents = append(contents, c)
			return err
		case "empty":
			return r.ReadChildNodes(func(tag string) error {
				order = append(order, tag)
				return r.ReadChildNodes(func(string) error {
					t.Fatalf("deep has no children")
					return nil
				})
			})
		}
		return errors.New("unexpected " + tag)
	}))
	if !reflect.DeepEqual(order, []string{"leaf", "empty", "deep", "leaf"}) {
		t.Fatalf("order = %v", order)
	}
	if !reflect.DeepEqual(contents, []string{"text content", ""}) {
		t.Fatalf("contents = %q", contents)
	}
	ensure(r.Done())
}

func TestReader_EmptyChildren(t *testing.T) {
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("network")
		w.WriteEndNode()
	})
	r := newTestReader(t, data)
	must(r.ReadHeader())
	calls := 0
	ensure(r.ReadChildNodes(func(string) error { calls++; return nil }))
	if calls != 0 {
		t.Fatalf("callback called %d times, wanted 0", calls)
	}
	ensure(r.Done())
}

func TestReader_BadMagic(t *testing.T) {
	tests := map[string][]byte{
		"different": bintreetest.Expand("'Binary 20 'XIDM $1.0 #0 #1 $r #0"),
		"short":     []byte("Bin"),
		"empty":     nil,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			r := newTestReader(t, data)
			_, err := r.ReadHeader()
			if !errors.Is(err, ErrBadMagic) {
				t.Fatalf("ReadHeader() = %v, wanted ErrBadMagic", err)
			}
			if !IsMalformed(err) || IsDesync(err) {
				t.Fatalf("classification of %v is wrong", err)
			}
			if _, err2 := r.ReadIntAttribute("x"); err2 != err {
				t.Fatalf("read after failure = %v, wanted the original error", err2)
			}
		})
	}
}

func TestReader_BadMagicTouchesNoBody(t *testing.T) {
	data := bintreetest.Expand("'JOURNLAT", "ff*100")
	r := newTestReader(t, data)
	if _, err := r.ReadHeader(); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("ReadHeader() = %v, wanted ErrBadMagic", err)
	}
	if r.Offset() > int64(len(DefaultMagic)) {
		t.Fatalf("Offset() = %d, read past the magic", r.Offset())
	}
}

func TestReader_CustomMagic(t *testing.T) {
	data := encode(t, WriterOptions{Magic: []byte("XIIDM")}, func(w *Writer) {
		w.WriteStartNode("r")
		w.WriteEndNode()
	})
	if _, err := newTestReader(t, data).ReadHeader(); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("default magic accepted a foreign format: %v", err)
	}
	r := NewReader(bytes.NewReader(data), ReaderOptions{Magic: []byte("XIIDM")})
	if _, err := r.ReadHeader(); err != nil {
		t.Fatal(err)
	}
}

func TestReader_TruncatedString(t *testing.T) {
	data := bintreetest.Expand(magicHex, "$1.0 #0 #1 $r", "#300/declared 'only_twelve!")
	r := newTestReader(t, data)
	must(r.ReadHeader())
	start := r.Offset()
	s, err := r.ReadStringAttribute("name")
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("ReadStringAttribute = (%q, %v), wanted ErrTruncated", s, err)
	}
	var de *DataError
	if !errors.As(err, &de) || de.Off != start || de.Name != "name" {
		t.Fatalf("err = %#v, wanted DataError at %d for name", err, start)
	}
	msg := err.Error()
	if !strings.Contains(msg, "300") || !strings.Contains(msg, "may disagree") {
		t.Fatalf("err.Error() = %q, wanted declared length and desync hint", msg)
	}
	if !IsDesync(err) {
		t.Fatalf("IsDesync(%v) = false", err)
	}
}

func TestReader_TruncatedFixedWidth(t *testing.T) {
	data := bintreetest.Expand(magicHex, "$1.0 #0 #1 $r", "3ff8")
	r := newTestReader(t, data)
	must(r.ReadHeader())
	if _, err := r.ReadDoubleAttribute("x"); !errors.Is(err, ErrTruncated) {
		t.Fatalf("ReadDoubleAttribute = %v, wanted ErrTruncated", err)
	}
}

func TestReader_ReadMoreThanWritten(t *testing.T) {
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("r")
		w.WriteStartNode("c")
		w.WriteEndNode()
		w.WriteEndNode()
	})
	r := newTestReader(t, data)
	must(r.ReadHeader())
	err := r.ReadChildNodes(func(string) error {
		_, err := r.ReadStringAttribute("missing")
		return err
	})
	if !IsDesync(err) {
		t.Fatalf("reading an unwritten attribute = %v, wanted a desync error", err)
	}
}

func TestReader_UnknownCode(t *testing.T) {
	data := bintreetest.Expand(magicHex, "$1.0 #0 #2 $r $c", "#7")
	r := newTestReader(t, data)
	must(r.ReadHeader())
	err := r.ReadChildNodes(func(string) error { return nil })
	if !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("ReadChildNodes = %v, wanted ErrUnknownCode", err)
	}
	if !strings.Contains(err.Error(), "code 7") {
		t.Fatalf("err.Error() = %q, wanted the offending code", err)
	}
}

func TestReader_EndNodeMismatch(t *testing.T) {
	data := bintreetest.Expand(magicHex, "$1.0 #0 #2 $r $c", "#2 #0 #0")
	r := newTestReader(t, data)
	must(r.ReadHeader())
	err := r.ReadEndNode()
	if !errors.Is(err, ErrNodeMismatch) {
		t.Fatalf("ReadEndNode = %v, wanted ErrNodeMismatch", err)
	}
	if !strings.Contains(err.Error(), `"c"`) {
		t.Fatalf("err.Error() = %q, wanted the tag found instead", err)
	}
}

func TestReader_ContentWithoutEnd(t *testing.T) {
	data := bintreetest.Expand(magicHex, "$1.0 #0 #1 $r", "$text #1")
	r := newTestReader(t, data)
	must(r.ReadHeader())
	if _, err := r.ReadContent(); !errors.Is(err, ErrNodeMismatch) {
		t.Fatalf("ReadContent = %v, wanted ErrNodeMismatch", err)
	}
}

func TestReader_ChildNotFullyRead(t *testing.T) {
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("r")
		w.WriteStartNode("c")
		w.WriteIntAttribute("x", 0)
		w.WriteEndNode()
		w.WriteEndNode()
	})
	r := newTestReader(t, data)
	must(r.ReadHeader())
	err := r.ReadChildNodes(func(string) error {
		_, err := r.ReadIntAttribute("x")
		return err
	})
	if !errors.Is(err, ErrNodeMismatch) {
		t.Fatalf("ReadChildNodes = %v, wanted ErrNodeMismatch", err)
	}
}

func TestReader_SkipChildNodes(t *testing.T) {
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("r")
		w.WriteEndNode()
	})
	r := newTestReader(t, data)
	must(r.ReadHeader())
	if err := r.SkipChildNodes(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("SkipChildNodes = %v, wanted ErrUnsupported", err)
	}
}

func TestReader_BodyBeforeHeader(t *testing.T) {
	r := newTestReader(t, bintreetest.Expand(magicHex, "$1.0 #0 #1 $r #0"))
	if _, err := r.ReadIntAttribute("x"); !errors.Is(err, ErrHeaderNotRead) {
		t.Fatalf("ReadIntAttribute = %v, wanted ErrHeaderNotRead", err)
	}
	if r.Offset() != 0 {
		t.Fatalf("Offset() = %d, wanted 0", r.Offset())
	}
}

func TestReader_MalformedValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		read func(r *Reader) error
	}{
		{"boolean byte", "02", func(r *Reader) error { _, err := r.ReadBooleanAttribute("b"); return err }},
		{"presence byte", "07", func(r *Reader) error { _, err := r.ReadOptionalIntAttribute("o"); return err }},
		{"enum ordinal", "#5", func(r *Reader) error { _, err := r.ReadEnumAttribute("e", 2); return err }},
		{"negative ordinal", "fffe", func(r *Reader) error { _, err := r.ReadEnumAttribute("e", 2); return err }},
		{"null array element", "#1 ffff", func(r *Reader) error { _, err := r.ReadStringArrayAttribute("a"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(t, bintreetest.Expand(magicHex, "$1.0 #0 #1 $r", tt.body))
			must(r.ReadHeader())
			if err := tt.read(r); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, wanted ErrMalformed", err)
			}
		})
	}
}

func TestReader_MalformedHeader(t *testing.T) {
	tests := map[string]string{
		"empty dictionary": "$1.0 #0 #0",
		"duplicate tag":    "$1.0 #0 #2 $r $r",
		"null version":     "ffff #0 #1 $r",
		"truncated":        "$1.0 #3 $a",
	}
	for name, spec := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := newTestReader(t, bintreetest.Expand(magicHex, spec)).ReadHeader()
			if !errors.Is(err, ErrMalformed) && !errors.Is(err, ErrTruncated) {
				t.Fatalf("ReadHeader = %v, wanted a malformed or truncated header", err)
			}
		})
	}
}

func TestReader_TrailingData(t *testing.T) {
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("r")
		w.WriteEndNode()
	})
	data = append(data, 0x00)
	r := newTestReader(t, data)
	must(r.ReadHeader())
	ensure(r.ReadEndNode())
	if err := r.Done(); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("Done = %v, wanted ErrTrailingData", err)
	}
}

func TestReader_DoneWithOpenNodes(t *testing.T) {
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("r")
		w.WriteEndNode()
	})
	r := newTestReader(t, data)
	must(r.ReadHeader())
	if err := r.Done(); !errors.Is(err, ErrNodeMismatch) {
		t.Fatalf("Done = %v, wanted ErrNodeMismatch", err)
	}
}

func TestReader_ReadPastDocumentEnd(t *testing.T) {
	data := encode(t, WriterOptions{}, func(w *Writer) {
		w.WriteStartNode("r")
		w.WriteEndNode()
	})
	r := newTestReader(t, data)
	must(r.ReadHeader())
	ensure(r.ReadEndNode())
	if err := r.ReadEndNode(); !errors.Is(err, ErrNodeMismatch) {
		t.Fatalf("second ReadEndNode = %v, wanted ErrNodeMismatch", err)
	}
}

func TestReader_CloseReleasesOnce(t *testing.T) {
	releases := 0
	r := newTestReader(t, nil)
	r.release = func() error { releases++; return nil }
	ensure(r.Close())
	if err := r.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second Close = %v, wanted ErrClosed", err)
	}
	if releases != 1 {
		t.Fatalf("released %d times, wanted 1", releases)
	}
	if _, err := r.ReadHeader(); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadHeader after Close = %v, wanted ErrClosed", err)
	}
}

func TestReader_NonByteReaderSource(t *testing.T) {
	data := encode(t, WriterOptions{Version: "1.0"}, func(w *Writer) { writeNetwork(w) })
	r := NewReader(iotest.OneByteReader(bytes.NewReader(data)), ReaderOptions{})
	h := must(r.ReadHeader())
	if h.Version != "1.0" || len(h.Dictionary) != 2 {
		t.Fatalf("header = %+v", h)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
