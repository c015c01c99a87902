package bintree

import "testing"

func TestOptional(t *testing.T) {
	if v := Some(3.5).Or(1); v != 3.5 {
		t.Fatalf("Some(3.5).Or(1) = %v", v)
	}
	if v := None[int32]().Or(7); v != 7 {
		t.Fatalf("None.Or(7) = %v", v)
	}
	if s := Some(true).String(); s != "true" {
		t.Fatalf("String() = %q", s)
	}
	if s := None[bool]().String(); s != "<none>" {
		t.Fatalf("String() = %q", s)
	}
}
