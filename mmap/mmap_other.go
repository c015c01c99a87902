//go:build !unix

package mmap

import (
	"io"
	"os"
)

// mapFile reads the file into memory on platforms without a Unix mmap.
func mapFile(f *os.File, size int, _ Options) ([]byte, bool, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, false, err
	}
	return b, false, nil
}

func unmap([]byte) error {
	return nil
}
