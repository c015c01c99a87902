package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/gridfmt/bintree"
	"github.com/gridfmt/bintree/doctree"
)

const shapesYAML = `
version: "1.0"
root: network
shapes:
  - tag: network
    attrs:
      - {name: id, kind: int}
    children: [substation]
  - tag: substation
    attrs:
      - {name: name, kind: string}
      - {name: kind, kind: enum, values: [primary, secondary]}
`

type fixture struct {
	dir, shapes, doc string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{dir: dir, shapes: filepath.Join(dir, "shapes.yaml"), doc: filepath.Join(dir, "grid.bin")}
	if err := os.WriteFile(f.shapes, []byte(shapesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := doctree.LoadSchema(f.shapes)
	if err != nil {
		t.Fatal(err)
	}
	root := &doctree.Node{Tag: "network", Attrs: []doctree.Value{doctree.Int(42)}}
	root.Add(
		&doctree.Node{Tag: "substation", Attrs: []doctree.Value{doctree.String("S1"), doctree.Enum(0)}},
		&doctree.Node{Tag: "substation", Attrs: []doctree.Value{doctree.String("S2"), doctree.Enum(bintree.NullEnum)}},
	)
	doc := &doctree.Document{Header: bintree.Header{Extensions: map[string]string{"ext-a": "2.0"}}, Root: root}
	if err := doctree.WriteFile(f.doc, s, doc, bintree.WriterOptions{}); err != nil {
		t.Fatal(err)
	}
	return f
}

func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("bintree %s: %v\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String()
}

func TestHeader(t *testing.T) {
	f := newFixture(t)
	out := runOK(t, "header", f.doc)
	for _, want := range []string{`version: "1.0"`, "ext-a: \"2.0\"", "- network", "- substation"} {
		if !strings.Contains(out, want) {
			t.Fatalf("header output lacks %q:\n%s", want, out)
		}
	}
}

func TestDump(t *testing.T) {
	f := newFixture(t)

	var doc struct {
		Header headerView
		Root   struct {
			Tag      string
			Attrs    map[string]any
			Children []struct {
				Attrs map[string]any
			}
		}
	}
	if err := json.Unmarshal([]byte(runOK(t, "dump", "--schema", f.shapes, "--format", "json", f.doc)), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Root.Tag != "network" || doc.Root.Attrs["id"] != 42.0 || len(doc.Root.Children) != 2 {
		t.Fatalf("dump = %+v", doc)
	}
	if doc.Root.Children[0].Attrs["kind"] != "primary" || doc.Root.Children[1].Attrs["kind"] != nil {
		t.Fatalf("children = %+v", doc.Root.Children)
	}

	var generic map[string]any
	if err := cbor.Unmarshal([]byte(runOK(t, "dump", "--schema", f.shapes, "--format", "cbor", f.doc)), &generic); err != nil {
		t.Fatal(err)
	}
	if _, ok := generic["root"]; !ok {
		t.Fatalf("cbor dump = %v", generic)
	}

	if out := runOK(t, "dump", "--schema", f.shapes, f.doc); !strings.Contains(out, "name: S2") {
		t.Fatalf("yaml dump:\n%s", out)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	db := filepath.Join(f.dir, "docs.db")
	out := runOK(t, "store", "import", "--db", db, "--key", "grids/a", "--schema", f.shapes, "--compression", "lz4", f.doc)
	if !strings.HasPrefix(out, "grids/a: ") {
		t.Fatalf("import output = %q", out)
	}
	runOK(t, "store", "import", "--db", db, "--key", "other", "--schema", f.shapes, f.doc)

	out = runOK(t, "store", "ls", "--db", db, "--prefix", "grids/")
	if !strings.Contains(out, "grids/a") || strings.Contains(out, "other") {
		t.Fatalf("ls output:\n%s", out)
	}

	exported := filepath.Join(f.dir, "exported.bin")
	runOK(t, "store", "export", "--db", db, "--key", "grids/a", "--schema", f.shapes, exported)
	want, _ := os.ReadFile(f.doc)
	got, _ := os.ReadFile(exported)
	if !bytes.Equal(got, want) {
		t.Fatalf("exported document differs from the imported one")
	}

	runOK(t, "store", "rm", "--db", db, "--key", "grids/a")
	if out := runOK(t, "store", "ls", "--db", db); strings.Contains(out, "grids/a") {
		t.Fatalf("ls after rm:\n%s", out)
	}
}

func TestCustomMagic(t *testing.T) {
	f := newFixture(t)
	var stdout, stderr bytes.Buffer
	err := run([]string{"header", "--magic", "OTHER", f.doc}, &stdout, &stderr)
	if !errors.Is(err, bintree.ErrBadMagic) {
		t.Fatalf("header with wrong magic = %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		nil,
		{"frobnicate"},
		{"header"},
		{"dump", "x.bin"},
		{"store"},
		{"store", "ls"},
		{"store", "import", "--db", "x.db", "x.bin"},
		{"header", "--format", "xml", "a", "b"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		if err := run(args, &stdout, &stderr); !errors.Is(err, errUsage) {
			t.Errorf("bintree %v = %v, wanted a usage error", args, err)
		}
	}
}
