// Package reconcile implements one-way mirroring of a source directory tree
// onto a replica directory tree.
//
// A pass runs three ordered stages:
//
// 1. Directories: every source directory is created in the replica if missing.
//
// 2. Files: every source file is compared with its replica counterpart and
//    copied when missing or different. The comparison short-circuits from
//    cheap to expensive: size, then UTC modification time, then an xxHash64
//    digest of both contents. Copies are atomic and carry the source mode and
//    modification time, so an unchanged file is settled by metadata alone on
//    the next pass.
//
// 3. Deletions: every replica file without a source file at the same
//    relative path is removed. Directories are never removed.
//
// Failures are handled per entry: the entry is logged with an IO, Permission
// or Unexpected category, recorded in the PassResult, and the pass moves on.
// Nothing under the source root is ever written.
//
// # Usage
//
//	r := reconcile.New(afero.NewOsFs(), log, reconcile.WithExcludes(reconcile.NewExcludes(rules)))
//	res := r.Synchronize(ctx, "/data/work", "/backup/work", reconcile.ReconcileOptions{})
//	if !res.OK() {
//	    // details are in res.Errors and in the log
//	}
package reconcile
