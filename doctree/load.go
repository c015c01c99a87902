package doctree

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk form of a Schema.
type schemaFile struct {
	Version string  `yaml:"version" toml:"version"`
	Root    string  `yaml:"root" toml:"root"`
	Shapes  []Shape `yaml:"shapes" toml:"shapes"`
}

// LoadSchema reads a YAML (.yaml, .yml) or TOML (.toml) schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s *Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err = ParseSchemaYAML(data)
	case ".toml":
		s, err = ParseSchemaTOML(data)
	default:
		return nil, fmt.Errorf("doctree: %s: unknown schema file type", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func ParseSchemaYAML(data []byte) (*Schema, error) {
	var f schemaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("doctree: parse yaml schema: %w", err)
	}
	return f.build()
}

func ParseSchemaTOML(data []byte) (*Schema, error) {
	var f schemaFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("doctree: parse toml schema: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("doctree: parse toml schema: unknown key %s", undecoded[0])
	}
	return f.build()
}

func (f *schemaFile) build() (*Schema, error) {
	s := NewSchema(f.Version, f.Root)
	for _, sh := range f.Shapes {
		if err := s.Add(sh); err != nil {
			return nil, err
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalYAML renders s in the format LoadSchema reads.
func (s *Schema) MarshalYAML() (any, error) {
	f := schemaFile{Version: s.Version, Root: s.Root}
	for _, sh := range s.Shapes() {
		f.Shapes = append(f.Shapes, *sh)
	}
	return f, nil
}
