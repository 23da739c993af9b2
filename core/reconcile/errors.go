package reconcile

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
)

// Category classifies an entry failure. Categories are string-based so they
// read naturally in JSON logs.
type Category string

const (
	// CategoryIO covers filesystem and device failures: missing entries,
	// locked files, full disks, paths that are too long.
	CategoryIO Category = "IO"

	// CategoryPermission covers access denied by the operating system.
	CategoryPermission Category = "PERMISSION"

	// CategoryUnexpected covers everything else.
	CategoryUnexpected Category = "UNEXPECTED"
)

// Label returns the operator-facing prefix for log records.
func (c Category) Label() string {
	switch c {
	case CategoryIO:
		return "File I/O Error"
	case CategoryPermission:
		return "Permission Error"
	default:
		return "Unexpected Error"
	}
}

// Classify maps an error to its Category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnexpected
	}

	if errors.Is(err, fs.ErrPermission) {
		return CategoryPermission
	}

	var (
		pathErr    *fs.PathError
		linkErr    *os.LinkError
		syscallErr *os.SyscallError
		errno      syscall.Errno
	)
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrExist),
		errors.Is(err, fs.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrShortWrite),
		errors.As(err, &pathErr),
		errors.As(err, &linkErr),
		errors.As(err, &syscallErr),
		errors.As(err, &errno):
		return CategoryIO
	}

	return CategoryUnexpected
}
