package bintree

import (
	"bytes"
	"fmt"
	"os"

	"github.com/gridfmt/bintree/mmap"
)

// CreateFile returns a Writer whose Close writes the document to path, syncs
// it to disk and closes the file. A failed session removes the file.
func CreateFile(path string, opt WriterOptions) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("bintree: %w", err)
	}
	w := NewWriter(f, opt)
	w.release = func(err error) error {
		if err == nil {
			if serr := mmap.Fdatasync(f); serr != nil {
				err = fmt.Errorf("bintree: sync %s: %w", path, serr)
			}
		}
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("bintree: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
		return err
	}
	return w, nil
}

// WriteFile creates path and lets fn drive the Writer. If fn fails, the file
// is removed and fn's error is returned.
func WriteFile(path string, opt WriterOptions, fn func(w *Writer) error) error {
	w, err := CreateFile(path, opt)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		w.fail(err)
		w.Close()
		return err
	}
	return w.Close()
}

// OpenFile memory-maps path and returns a Reader over it. Close unmaps the
// file.
func OpenFile(path string, opt ReaderOptions) (*Reader, error) {
	m, err := mmap.Open(path, mmap.SequentialAccess)
	if err != nil {
		return nil, fmt.Errorf("bintree: %w", err)
	}
	r := NewReader(bytes.NewReader(m.Bytes()), opt)
	r.release = m.Close
	return r, nil
}

// ReadFile opens path, calls fn after the header has been read, and checks
// that fn consumed the whole document. The file is released on every path.
func ReadFile(path string, opt ReaderOptions, fn func(r *Reader, h Header) error) (err error) {
	r, err := OpenFile(path, opt)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()
	h, err := r.ReadHeader()
	if err != nil {
		return err
	}
	if err := fn(r, h); err != nil {
		return err
	}
	return r.Done()
}
