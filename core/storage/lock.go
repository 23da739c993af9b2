package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already mirrors into the replica.
var ErrLocked = errors.New("replica is locked by another instance")

// LockPath returns the lock file path for a replica root. The lock lives
// outside the replica so the deletion stage never sees it.
func LockPath(cfg Config, replicaRoot string) (string, error) {
	abs, err := filepath.Abs(replicaRoot)
	if err != nil {
		return "", err
	}
	dir := cfg.LockDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("folder-sync-%016x.lock", xxhash.Sum64String(abs))), nil
}

// AcquireLock takes the single-instance lock for replicaRoot without
// blocking. The returned unlock func is a no-op when locking is disabled.
func AcquireLock(cfg Config, replicaRoot string) (unlock func() error, err error) {
	if !cfg.Lock {
		return func() error { return nil }, nil
	}

	path, err := LockPath(cfg, replicaRoot)
	if err != nil {
		return nil, err
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", replicaRoot, ErrLocked)
	}

	return fl.Unlock, nil
}
