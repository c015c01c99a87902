package bintreetest

import (
	"bytes"
	"strings"
	"testing"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		spec string
		want []byte
	}{
		{"00 ff", []byte{0x00, 0xff}},
		{"0102_03", []byte{1, 2, 3}},
		{"'ab", []byte("ab")},
		{"$ab", []byte{0, 2, 'a', 'b'}},
		{"$", []byte{0, 0}},
		{"#2", []byte{0, 2}},
		{"#65535", []byte{0xff, 0xff}},
		{"%42", []byte{0, 0, 0, 42}},
		{"%-1", []byte{0xff, 0xff, 0xff, 0xff}},
		{"#0*3", []byte{0, 0, 0, 0, 0, 0}},
		{"01/comment 02", []byte{1, 2}},
	}
	for _, tt := range tests {
		if got := Expand(tt.spec); !bytes.Equal(got, tt.want) {
			t.Errorf("Expand(%q) = %x, wanted %x", tt.spec, got, tt.want)
		}
	}
}

func TestExpand_PanicsOnBadHex(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Expand("zz")
}

func TestHexDump(t *testing.T) {
	s := HexDump([]byte("Binary IIDM"), 1)
	if !strings.Contains(s, ">69") || !strings.Contains(s, "|Binary I|") {
		t.Fatalf("HexDump = %q, wanted highlight and ASCII column", s)
	}
}

func TestBytesEq(t *testing.T) {
	if !BytesEq(t, []byte{1, 2}, []byte{1, 2}) {
		t.Fatalf("BytesEq on equal slices = false")
	}
}
