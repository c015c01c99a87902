// Command bintree inspects binary tree documents and manages a document
// store.
//
//	bintree header FILE
//	bintree dump --schema SHAPES FILE [--format yaml|json|cbor]
//	bintree store ls --db PATH [--prefix P]
//	bintree store import --db PATH --key K --schema SHAPES FILE [--compression zstd]
//	bintree store export --db PATH --key K --schema SHAPES FILE
//	bintree store rm --db PATH --key K
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gridfmt/bintree"
	"github.com/gridfmt/bintree/doctree"
	"github.com/gridfmt/bintree/store"
)

const usage = `usage:
  bintree header FILE
  bintree dump --schema SHAPES FILE [--format yaml|json|cbor]
  bintree store ls --db PATH [--prefix P]
  bintree store import --db PATH --key K --schema SHAPES FILE [--compression none|lz4|zstd]
  bintree store export --db PATH --key K --schema SHAPES FILE
  bintree store rm --db PATH --key K

Common flags:
  --magic STRING   format magic (default "Binary IIDM")
  -v, --verbose    debug logging to stderr
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "bintree: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	stdout, stderr io.Writer

	magic   string
	verbose bool
	format  string
	schema  string
	db      string
	key     string
	prefix  string
	comp    string

	logger *slog.Logger
}

func (e *env) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.StringVar(&e.magic, "magic", "", "format magic bytes")
	fs.BoolVarP(&e.verbose, "verbose", "v", false, "debug logging")
	return fs
}

func (e *env) parse(fs *pflag.FlagSet, args []string, nargs int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	level := slog.LevelWarn
	if e.verbose {
		level = slog.LevelDebug
	}
	e.logger = slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
	if fs.NArg() != nargs {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", errUsage, fs.Name(), nargs, fs.NArg())
	}
	return fs.Args(), nil
}

func (e *env) readerOptions() bintree.ReaderOptions {
	return bintree.ReaderOptions{Magic: []byte(e.magic), Logger: e.logger}
}

func (e *env) writerOptions() bintree.WriterOptions {
	return bintree.WriterOptions{Magic: []byte(e.magic), Logger: e.logger}
}

func (e *env) require(flags ...string) error {
	values := map[string]string{"schema": e.schema, "db": e.db, "key": e.key}
	for _, f := range flags {
		if values[f] == "" {
			return fmt.Errorf("%w: --%s is required", errUsage, f)
		}
	}
	return nil
}

func run(args []string, stdout, stderr io.Writer) error {
	e := &env{stdout: stdout, stderr: stderr}
	if len(args) == 0 {
		return fmt.Errorf("%w: no command", errUsage)
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "header":
		return e.header(rest)
	case "dump":
		return e.dump(rest)
	case "store":
		if len(rest) == 0 {
			return fmt.Errorf("%w: store needs a subcommand", errUsage)
		}
		switch sub := rest[0]; sub {
		case "ls":
			return e.storeList(rest[1:])
		case "import":
			return e.storeImport(rest[1:])
		case "export":
			return e.storeExport(rest[1:])
		case "rm":
			return e.storeRemove(rest[1:])
		default:
			return fmt.Errorf("%w: unknown store command %q", errUsage, sub)
		}
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

type headerView struct {
	Version    string            `yaml:"version" json:"version" cbor:"version"`
	Extensions map[string]string `yaml:"extensions,omitempty" json:"extensions,omitempty" cbor:"extensions,omitempty"`
	Dictionary []string          `yaml:"dictionary" json:"dictionary" cbor:"dictionary"`
}

func viewHeader(h bintree.Header) headerView {
	v := headerView{Version: h.Version, Dictionary: h.Dictionary}
	if len(h.Extensions) > 0 {
		v.Extensions = h.Extensions
	}
	return v
}

func (e *env) header(args []string) error {
	fs := e.flags("header")
	fs.StringVar(&e.format, "format", "yaml", "output format: yaml, json or cbor")
	args, err := e.parse(fs, args, 1)
	if err != nil {
		return err
	}
	r, err := bintree.OpenFile(args[0], e.readerOptions())
	if err != nil {
		return err
	}
	defer r.Close()
	h, err := r.ReadHeader()
	if err != nil {
		return err
	}
	return emit(e.stdout, e.format, viewHeader(h))
}

type documentView struct {
	Header headerView     `yaml:"header" json:"header" cbor:"header"`
	Root   map[string]any `yaml:"root" json:"root" cbor:"root"`
}

func (e *env) dump(args []string) error {
	fs := e.flags("dump")
	fs.StringVar(&e.schema, "schema", "", "shape file (.yaml or .toml)")
	fs.StringVar(&e.format, "format", "yaml", "output format: yaml, json or cbor")
	args, err := e.parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := e.require("schema"); err != nil {
		return err
	}
	s, err := doctree.LoadSchema(e.schema)
	if err != nil {
		return err
	}
	doc, err := doctree.ReadFile(args[0], s, e.readerOptions())
	if err != nil {
		return err
	}
	return emit(e.stdout, e.format, documentView{Header: viewHeader(doc.Header), Root: doc.Root.Map(s)})
}

func (e *env) openStore() (*store.Store, error) {
	c, err := store.ParseCompression(e.comp)
	if err != nil {
		return nil, err
	}
	return store.Open(e.db, store.Options{Logger: e.logger, Compression: c, Timeout: 5 * time.Second})
}

func (e *env) storeFlags(name string) *pflag.FlagSet {
	fs := e.flags(name)
	fs.StringVar(&e.db, "db", "", "store database path")
	return fs
}

func (e *env) storeList(args []string) error {
	fs := e.storeFlags("store ls")
	fs.StringVar(&e.prefix, "prefix", "", "only keys with this prefix")
	if _, err := e.parse(fs, args, 0); err != nil {
		return err
	}
	if err := e.require("db"); err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	entries, err := st.List(e.prefix)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tROOT\tVERSION\tSIZE\tSTORED\tCOMPRESSION\tSAVED")
	for _, en := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%v\t%s\n", en.Key, en.Root, en.Version, en.Size, en.StoredSize, en.Compression, en.SavedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (e *env) storeImport(args []string) error {
	fs := e.storeFlags("store import")
	fs.StringVar(&e.key, "key", "", "document key")
	fs.StringVar(&e.schema, "schema", "", "shape file (.yaml or .toml)")
	fs.StringVar(&e.comp, "compression", "zstd", "none, lz4 or zstd")
	args, err := e.parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := e.require("db", "key", "schema"); err != nil {
		return err
	}
	s, err := doctree.LoadSchema(e.schema)
	if err != nil {
		return err
	}
	doc, err := doctree.ReadFile(args[0], s, e.readerOptions())
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	en, err := st.Save(e.key, store.SaveOptions{
		Magic:      []byte(e.magic),
		Version:    doc.Header.Version,
		Extensions: doc.Header.Extensions,
	}, func(w bintree.TreeWriter) error {
		return doctree.Encode(w, s, doc.Root)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s: %d bytes stored as %d (%v)\n", en.Key, en.Size, en.StoredSize, en.Compression)
	return nil
}

func (e *env) storeExport(args []string) error {
	fs := e.storeFlags("store export")
	fs.StringVar(&e.key, "key", "", "document key")
	fs.StringVar(&e.schema, "schema", "", "shape file (.yaml or .toml)")
	args, err := e.parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := e.require("db", "key", "schema"); err != nil {
		return err
	}
	s, err := doctree.LoadSchema(e.schema)
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	var doc doctree.Document
	err = st.Load(e.key, func(r *bintree.Reader, h bintree.Header) error {
		root, err := doctree.DecodeBody(r, s, h)
		doc = doctree.Document{Header: h, Root: root}
		return err
	})
	if err != nil {
		return err
	}
	return doctree.WriteFile(args[0], s, &doc, e.writerOptions())
}

func (e *env) storeRemove(args []string) error {
	fs := e.storeFlags("store rm")
	fs.StringVar(&e.key, "key", "", "document key")
	if _, err := e.parse(fs, args, 0); err != nil {
		return err
	}
	if err := e.require("db", "key"); err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Delete(e.key)
}

func emit(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "cbor":
		em, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return err
		}
		data, err := em.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, format)
	}
}
