package store

import (
	"bytes"
	"errors"
	"slices"
	"sync"
)

var (
	errStorageClosed = errors.New("storage closed")
	errReadOnlyTx    = errors.New("tx not writable")
)

// memStorage keeps everything in maps. Committed state is never mutated:
// write transactions work on a deep copy and swap it in on commit, so read
// transactions can share the committed maps.
type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[string]*memBucket
	closed  bool
	writer  bool
}

func newMemStorage() *memStorage {
	s := &memStorage{buckets: make(map[string]*memBucket)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !writable {
		if s.closed {
			return nil, errStorageClosed
		}
		return &memTx{base: s, buckets: s.buckets}, nil
	}
	for s.writer && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil, errStorageClosed
	}
	s.writer = true

	snap := make(map[string]*memBucket, len(s.buckets))
	for k, b := range s.buckets {
		snap[k] = b.clone()
	}
	return &memTx{base: s, writable: true, buckets: snap}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	buckets  map[string]*memBucket
	done     bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) Bucket(name string) storageBucket {
	b := tx.buckets[name]
	if b == nil {
		return nil
	}
	return memBucketHandle{tx: tx, b: b}
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if !tx.writable {
		return nil, errReadOnlyTx
	}
	b := tx.buckets[name]
	if b == nil {
		b = &memBucket{}
		tx.buckets[name] = b
	}
	return memBucketHandle{tx: tx, b: b}, nil
}

func (tx *memTx) Commit() error {
	if !tx.writable {
		return errReadOnlyTx
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.done {
		return nil
	}
	if tx.base.closed {
		tx.finishLocked()
		return errStorageClosed
	}
	tx.base.buckets = tx.buckets
	tx.finishLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.finishLocked()
	return nil
}

func (tx *memTx) finishLocked() {
	if tx.done {
		return
	}
	tx.done = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Size() int64 { return 0 }

type memKV struct {
	key   []byte
	value []byte
}

// memBucket items are sorted by key.
type memBucket struct {
	items []memKV
}

func (b *memBucket) clone() *memBucket {
	out := &memBucket{items: make([]memKV, len(b.items))}
	for i, kv := range b.items {
		out.items[i] = memKV{key: slices.Clone(kv.key), value: slices.Clone(kv.value)}
	}
	return out
}

func (b *memBucket) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(b.items, key, func(kv memKV, k []byte) int {
		return bytes.Compare(kv.key, k)
	})
}

type memBucketHandle struct {
	tx *memTx
	b  *memBucket
}

func (h memBucketHandle) Get(key []byte) []byte {
	if i, ok := h.b.search(key); ok {
		return h.b.items[i].value
	}
	return nil
}

func (h memBucketHandle) Put(key, value []byte) error {
	if !h.tx.writable {
		return errReadOnlyTx
	}
	kv := memKV{key: slices.Clone(key), value: slices.Clone(value)}
	i, ok := h.b.search(key)
	if ok {
		h.b.items[i] = kv
	} else {
		h.b.items = slices.Insert(h.b.items, i, kv)
	}
	return nil
}

func (h memBucketHandle) Delete(key []byte) error {
	if !h.tx.writable {
		return errReadOnlyTx
	}
	if i, ok := h.b.search(key); ok {
		h.b.items = slices.Delete(h.b.items, i, i+1)
	}
	return nil
}

func (h memBucketHandle) Cursor() storageCursor {
	return &memCursor{b: h.b, pos: -1}
}

func (h memBucketHandle) KeyCount() int { return len(h.b.items) }

type memCursor struct {
	b   *memBucket
	pos int
}

func (c *memCursor) at(pos int) ([]byte, []byte) {
	c.pos = pos
	if pos < 0 || pos >= len(c.b.items) {
		return nil, nil
	}
	kv := c.b.items[pos]
	return kv.key, kv.value
}

func (c *memCursor) First() ([]byte, []byte) { return c.at(0) }

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	i, _ := c.b.search(seek)
	return c.at(i)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos >= len(c.b.items) {
		return nil, nil
	}
	return c.at(c.pos + 1)
}
