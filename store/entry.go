package store

import (
	"bytes"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Entry describes a stored document.
type Entry struct {
	Key        string            `msgpack:"key" json:"key" yaml:"key"`
	Magic      []byte            `msgpack:"magic" json:"-" yaml:"-"`
	Version    string            `msgpack:"ver" json:"version" yaml:"version"`
	Extensions map[string]string `msgpack:"ext,omitempty" json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Root       string            `msgpack:"root" json:"root" yaml:"root"`
	DictSize   int               `msgpack:"dict" json:"dict_size" yaml:"dict_size"`
	// Size is the encoded document length; StoredSize is after compression.
	Size        int         `msgpack:"size" json:"size" yaml:"size"`
	StoredSize  int         `msgpack:"stored" json:"stored_size" yaml:"stored_size"`
	Compression Compression `msgpack:"comp" json:"compression" yaml:"compression"`
	// Checksum is the xxhash64 of the stored bytes.
	Checksum uint64    `msgpack:"sum" json:"checksum" yaml:"checksum"`
	SavedAt  time.Time `msgpack:"at" json:"saved_at" yaml:"saved_at"`
}

func encodeEntry(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(e)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("store: encode entry %q: %w", e.Key, err)
	}
	return buf.Bytes(), nil
}

func decodeEntry(key string, data []byte) (*Entry, error) {
	e := new(Entry)
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	err := dec.Decode(e)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("store: decode entry %q: %w", key, err)
	}
	return e, nil
}
