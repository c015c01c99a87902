// Package store keeps encoded tree documents in a bbolt database, with
// optional compression and a checksum over the stored bytes.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.etcd.io/bbolt"

	"github.com/gridfmt/bintree"
)

var (
	ErrNotFound = errors.New("store: document not found")
	ErrChecksum = errors.New("store: checksum mismatch")
)

const (
	entriesBucket = "entries"
	docsBucket    = "docs"
)

type Options struct {
	Logger *slog.Logger
	// Compression applies to Save calls that do not choose one.
	Compression Compression
	// NoSync skips fsync on commit. Only for tests and scratch databases.
	NoSync bool
	// Timeout bounds waiting for the database file lock; 10s if zero.
	Timeout time.Duration
}

type SaveOptions struct {
	// Magic identifies the document format; bintree.DefaultMagic if empty.
	Magic      []byte
	Version    string
	Extensions map[string]string
	// Compression overrides Options.Compression when set.
	Compression bintree.Optional[Compression]
}

// Store is safe for concurrent use; writes are serialized.
type Store struct {
	db          storage
	logger      *slog.Logger
	compression Compression
	now         func() time.Time
}

// Open opens or creates a database file.
func Open(path string, opt Options) (*Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = 10 * time.Second
	}
	if opt.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return newStore(&boltStorage{bdb: bdb}, opt), nil
}

// OpenMemory returns a Store that keeps everything in memory.
func OpenMemory(opt Options) *Store {
	return newStore(newMemStorage(), opt)
}

func newStore(db storage, opt Options) *Store {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Store{db: db, logger: opt.Logger, compression: opt.Compression, now: time.Now}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) update(fn func(tx storageTx) error) error {
	tx, err := s.db.BeginTx(true)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *Store) view(fn func(tx storageTx) error) error {
	tx, err := s.db.BeginTx(false)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer tx.Rollback()
	return fn(tx)
}

// Save encodes a document by handing a Writer to fn, then stores it under
// key, replacing any previous document. Nothing is stored if fn or the
// Writer fails.
func (s *Store) Save(key string, opt SaveOptions, fn func(w bintree.TreeWriter) error) (*Entry, error) {
	if key == "" {
		return nil, errors.New("store: empty key")
	}
	magic := opt.Magic
	if len(magic) == 0 {
		magic = bintree.DefaultMagic
	}
	comp := s.compression
	if opt.Compression.Valid {
		comp = opt.Compression.Value
	}

	var buf bytes.Buffer
	w := bintree.NewWriter(&buf, bintree.WriterOptions{Magic: magic, Version: opt.Version, Logger: s.logger})
	if len(opt.Extensions) > 0 {
		w.SetVersions(opt.Extensions)
	}
	if err := fn(w); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	h := w.Header()

	raw := buf.Bytes()
	payload, used, err := compressPayload(raw, comp)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Key:         key,
		Magic:       magic,
		Version:     h.Version,
		Extensions:  h.Extensions,
		Root:        h.RootName(),
		DictSize:    len(h.Dictionary),
		Size:        len(raw),
		StoredSize:  len(payload),
		Compression: used,
		Checksum:    xxhash.Sum64(payload),
		SavedAt:     s.now().UTC().Truncate(time.Millisecond),
	}
	meta, err := encodeEntry(e)
	if err != nil {
		return nil, err
	}

	var dbSize int64
	err = s.update(func(tx storageTx) error {
		docs, err := tx.CreateBucket(docsBucket)
		if err != nil {
			return err
		}
		entries, err := tx.CreateBucket(entriesBucket)
		if err != nil {
			return err
		}
		if err := docs.Put([]byte(key), payload); err != nil {
			return err
		}
		dbSize = tx.Size()
		return entries.Put([]byte(key), meta)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "store: document saved",
		slog.String("key", key),
		slog.String("root", e.Root),
		slog.Int("size", e.Size),
		slog.Int("stored", e.StoredSize),
		slog.String("compression", used.String()),
		slog.Int64("db_bytes", dbSize))
	return e, nil
}

func getEntry(tx storageTx, key string) (*Entry, error) {
	b := tx.Bucket(entriesBucket)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	data := b.Get([]byte(key))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return decodeEntry(key, data)
}

// Stat returns the metadata of a stored document.
func (s *Store) Stat(key string) (*Entry, error) {
	var e *Entry
	err := s.view(func(tx storageTx) (err error) {
		e, err = getEntry(tx, key)
		return err
	})
	return e, err
}

// Load verifies and decompresses the document stored under key, reads its
// header and hands the Reader to fn. fn must consume the whole document.
func (s *Store) Load(key string, fn func(r *bintree.Reader, h bintree.Header) error) error {
	var e *Entry
	var payload []byte
	err := s.view(func(tx storageTx) (err error) {
		if e, err = getEntry(tx, key); err != nil {
			return err
		}
		if docs := tx.Bucket(docsBucket); docs != nil {
			payload = bytes.Clone(docs.Get([]byte(key)))
		}
		if payload == nil {
			return fmt.Errorf("%w: %s has metadata but no payload", ErrNotFound, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if sum := xxhash.Sum64(payload); sum != e.Checksum {
		return fmt.Errorf("%w: %s: stored %016x, computed %016x", ErrChecksum, key, e.Checksum, sum)
	}
	raw, err := decompressPayload(payload, e.Compression, e.Size)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	r := bintree.NewReader(bytes.NewReader(raw), bintree.ReaderOptions{Magic: e.Magic, Logger: s.logger})
	defer r.Close()
	h, err := r.ReadHeader()
	if err != nil {
		return err
	}
	if err := fn(r, h); err != nil {
		return err
	}
	if err := r.Done(); err != nil {
		return err
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "store: document loaded",
		slog.String("key", key),
		slog.Int("size", e.Size))
	return nil
}

// List returns entries whose key starts with prefix, sorted by key.
func (s *Store) List(prefix string) ([]*Entry, error) {
	var result []*Entry
	err := s.view(func(tx storageTx) error {
		b := tx.Bucket(entriesBucket)
		if b == nil {
			return nil
		}
		p := []byte(prefix)
		c := b.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			e, err := decodeEntry(string(k), v)
			if err != nil {
				return err
			}
			result = append(result, e)
		}
		return nil
	})
	return result, err
}

// Len returns the number of stored documents.
func (s *Store) Len() (int, error) {
	var n int
	err := s.view(func(tx storageTx) error {
		if b := tx.Bucket(entriesBucket); b != nil {
			n = b.KeyCount()
		}
		return nil
	})
	return n, err
}

// Delete removes a stored document.
func (s *Store) Delete(key string) error {
	err := s.update(func(tx storageTx) error {
		if _, err := getEntry(tx, key); err != nil {
			return err
		}
		if err := tx.Bucket(entriesBucket).Delete([]byte(key)); err != nil {
			return err
		}
		if docs := tx.Bucket(docsBucket); docs != nil {
			return docs.Delete([]byte(key))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "store: document deleted", slog.String("key", key))
	return nil
}
