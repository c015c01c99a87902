//go:build unix

package mmap

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int, opt Options) ([]byte, bool, error) {
	b, err := unix.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}

	var advice int
	switch {
	case opt.Has(SequentialAccess):
		advice = unix.MADV_SEQUENTIAL
	case opt.Has(RandomAccess):
		advice = unix.MADV_RANDOM
	default:
		return b, true, nil
	}
	// ENOSYS means the kernel ignores the hint, which is harmless.
	if err := unix.Madvise(b, advice); err != nil && err != syscall.ENOSYS {
		unix.Munmap(b)
		return nil, false, fmt.Errorf("madvise(%d): %w", advice, err)
	}
	return b, true, nil
}

func unmap(b []byte) error {
	return unix.Munmap(b)
}
