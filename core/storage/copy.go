package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyFile copies src over dst and stamps the copy with the mode and
// modification time of srcInfo.
//
// The content is written to a temporary file next to dst, flushed, and then
// renamed over dst, so an interrupted copy never leaves a partially written
// dst behind. It returns the number of bytes copied.
func CopyFile(fsys afero.Fs, src, dst string, srcInfo os.FileInfo) (int64, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := afero.TempFile(fsys, filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			fsys.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, in)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", src, err)
	}

	if err := tmp.Sync(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}

	if err := fsys.Chmod(tmpPath, srcInfo.Mode().Perm()); err != nil {
		return n, err
	}
	modTime := srcInfo.ModTime()
	if err := fsys.Chtimes(tmpPath, modTime, modTime); err != nil {
		return n, err
	}

	if err := fsys.Rename(tmpPath, dst); err != nil {
		return n, err
	}

	success = true
	return n, nil
}
