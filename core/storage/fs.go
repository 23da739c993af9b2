package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

var (
	// ErrNotDirectory is returned when a path that must be a directory is not.
	ErrNotDirectory = errors.New("not a directory")

	errTooManyLinks = errors.New("too many levels of symbolic links")
)

const maxLinkHops = 40

// NewFs returns the filesystem used for both the source and the replica tree.
func NewFs() afero.Fs {
	return afero.NewOsFs()
}

// EnsureDir creates path and any missing ancestors. It reports whether the
// directory had to be created.
func EnsureDir(fsys afero.Fs, path string) (created bool, err error) {
	info, err := fsys.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return false, &fs.PathError{Op: "mkdir", Path: path, Err: ErrNotDirectory}
		}
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		return false, err
	}

	if err := fsys.MkdirAll(path, 0o755); err != nil {
		return false, err
	}
	return true, nil
}

// RequireDir returns an error unless path exists and is a directory.
func RequireDir(fsys afero.Fs, path string) error {
	info, err := fsys.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	return nil
}

// Resolve follows a symlink and returns the info of its target. Non-link
// entries are returned unchanged.
func Resolve(fsys afero.Fs, path string, info os.FileInfo) (os.FileInfo, error) {
	if info.Mode()&os.ModeSymlink == 0 {
		return info, nil
	}
	return fsys.Stat(path)
}

// Lstat describes path without following a final symlink when the
// filesystem supports it.
func Lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fsys.Stat(path)
}

// FollowRoot follows symbolic links at the end of path until it names
// something that is not a link, so a tree walk rooted there descends into
// the target. A path that does not exist is returned unchanged.
func FollowRoot(fsys afero.Fs, path string) (string, error) {
	reader, ok := fsys.(afero.LinkReader)
	for i := 0; i < maxLinkHops; i++ {
		info, err := Lstat(fsys, path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink == 0 || !ok {
			return path, nil
		}

		target, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = filepath.Clean(target)
	}
	return "", &fs.PathError{Op: "readlink", Path: path, Err: errTooManyLinks}
}
