package reconcile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// Verdict is the per-file result of comparing a replica file with its source.
type Verdict int

const (
	// VerdictEqual means the replica file already matches the source.
	VerdictEqual Verdict = iota
	// VerdictDifferent means the replica file exists but does not match.
	VerdictDifferent
	// VerdictMissing means there is no replica file.
	VerdictMissing
)

func (v Verdict) String() string {
	switch v {
	case VerdictEqual:
		return "equal"
	case VerdictDifferent:
		return "different"
	case VerdictMissing:
		return "missing"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Comparison is a Verdict plus the check that decided it.
type Comparison struct {
	Verdict Verdict
	Reason  string
}

// NeedsCopy reports whether the source must be copied over the replica.
func (c Comparison) NeedsCopy() bool {
	return c.Verdict != VerdictEqual
}

const (
	ReasonMissing = "missing in replica"
	ReasonSize    = "size differs"
	ReasonModTime = "modification time differs"
	ReasonContent = "content differs"
	ReasonEqual   = "identical"
)

// errReplicaIsDir is returned when a source file maps onto a replica directory.
var errReplicaIsDir = errors.New("replica path is a directory")

// CompareFiles decides whether dst matches the source file described by
// srcInfo. Checks run cheapest first and stop at the first difference:
// size, then UTC modification time, then a content digest of both files.
func CompareFiles(fsys afero.Fs, src string, srcInfo os.FileInfo, dst string) (Comparison, error) {
	dstInfo, err := fsys.Stat(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Comparison{Verdict: VerdictMissing, Reason: ReasonMissing}, nil
		}
		return Comparison{}, err
	}
	if dstInfo.IsDir() {
		return Comparison{}, &fs.PathError{Op: "compare", Path: dst, Err: errReplicaIsDir}
	}

	if srcInfo.Size() != dstInfo.Size() {
		return Comparison{Verdict: VerdictDifferent, Reason: ReasonSize}, nil
	}

	if !srcInfo.ModTime().UTC().Equal(dstInfo.ModTime().UTC()) {
		return Comparison{Verdict: VerdictDifferent, Reason: ReasonModTime}, nil
	}

	srcSum, err := Digest(fsys, src)
	if err != nil {
		return Comparison{}, err
	}
	dstSum, err := Digest(fsys, dst)
	if err != nil {
		return Comparison{}, err
	}
	if srcSum != dstSum {
		return Comparison{Verdict: VerdictDifferent, Reason: ReasonContent}, nil
	}

	return Comparison{Verdict: VerdictEqual, Reason: ReasonEqual}, nil
}

// Digest returns the xxHash64 of the file's full content.
func Digest(fsys afero.Fs, path string) (uint64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return h.Sum64(), nil
}
