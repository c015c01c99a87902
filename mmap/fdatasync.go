package mmap

import "os"

// Fdatasync flushes the file's data to stable storage, skipping metadata
// such as modification time where the OS allows it.
//
// Errors are not recoverable: after a failed sync the written data must be
// treated as lost.
func Fdatasync(f *os.File) error {
	return fdatasync(f)
}
