package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var (
	errPathEscape = errors.New("path escapes tree root")

	// ErrOverlappingRoots is returned when one root contains the other.
	ErrOverlappingRoots = errors.New("source and replica must not contain each other")
)

// CheckRoots rejects root pairs where mirroring would feed on its own output.
func CheckRoots(sourceRoot, replicaRoot string) error {
	source := filepath.Clean(sourceRoot)
	replica := filepath.Clean(replicaRoot)
	if _, err := relPath(source, replica); err == nil {
		return fmt.Errorf("%s and %s: %w", source, replica, ErrOverlappingRoots)
	}
	if _, err := relPath(replica, source); err == nil {
		return fmt.Errorf("%s and %s: %w", source, replica, ErrOverlappingRoots)
	}
	return nil
}

// entry is one node below a walked root. info describes the entry itself;
// symlinks are not followed.
type entry struct {
	path string
	rel  string
	info os.FileInfo
}

// relPath returns path relative to root, rejecting anything outside root.
func relPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s: %w", path, errPathEscape)
	}
	return rel, nil
}

// walkTree visits every entry below root in lexical order. A failure on one
// entry is handed to onErr and the walk moves on. visit may return
// filepath.SkipDir to prune a directory.
func walkTree(fsys afero.Fs, root string, visit func(e entry) error, onErr func(path string, err error)) {
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			onErr(path, err)
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := relPath(root, path)
		if err != nil {
			onErr(path, err)
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		return visit(entry{path: path, rel: rel, info: info})
	})
	if err != nil {
		onErr(root, err)
	}
}
