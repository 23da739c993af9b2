// Package storage provides filesystem access for the source and replica trees.
//
// All tree access goes through an afero.Fs so the reconciler can run against
// the operating system in production and against in-memory or read-only
// filesystems in tests.
//
// # Operations
//
//   - EnsureDir: creates a directory (and ancestors) if missing.
//   - RequireDir: validates that a root exists and is a directory.
//   - CopyFile: atomic copy that carries over mode and modification time.
//   - AcquireLock: flock-based guard against two daemons sharing a replica.
//
// # Usage
//
//	fsys := storage.NewFs()
//	if _, err := storage.EnsureDir(fsys, replica); err != nil {
//	    return err
//	}
package storage
