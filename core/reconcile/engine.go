package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"
	"time"

	"folder-sync/core/storage"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Reconciler mirrors a source tree onto a replica tree.
// It should be created by calling reconcile.New.
type Reconciler struct {
	fs       afero.Fs
	log      *zap.Logger
	excludes *Excludes
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithExcludes sets the rules for paths that are never touched.
func WithExcludes(e *Excludes) Option {
	return func(r *Reconciler) {
		r.excludes = e
	}
}

// New returns a Reconciler that reads and writes through fsys and reports
// every action to log.
func New(fsys afero.Fs, log *zap.Logger, opts ...Option) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reconciler{
		fs:  fsys,
		log: log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Synchronize runs one full pass from sourceRoot to replicaRoot: directories
// first, then files, then deletion of orphaned replica files.
//
// A failure on one entry is recorded in the result and logged; the pass
// carries on with the next entry. Cancellation of ctx is honored between
// stages only, so a stage that has started always finishes. Replica
// directories are never removed, even when their source counterpart is gone.
//
// Synchronize never returns a nil result and never panics.
func (r *Reconciler) Synchronize(ctx context.Context, sourceRoot, replicaRoot string, opts ReconcileOptions) (res *PassResult) {
	res = &PassResult{
		ID:      uuid.NewString(),
		Started: time.Now(),
		DryRun:  opts.DryRun,
	}

	p := &pass{
		Reconciler: r,
		source:     filepath.Clean(sourceRoot),
		replica:    filepath.Clean(replicaRoot),
		dryRun:     opts.DryRun,
		log:        r.log.With(zap.String("pass", res.ID)),
		res:        res,
		stage:      StagePrepare,
	}

	defer func() {
		if v := recover(); v != nil {
			p.fail(p.source, fmt.Errorf("panic during %s stage: %v", p.stage, v))
		}
		res.Finished = time.Now()
		p.logCompletion()
	}()

	p.log.Info("Starting synchronization...",
		zap.String("source", p.source),
		zap.String("replica", p.replica),
		zap.Bool("dry_run", p.dryRun),
	)

	if !p.prepare() {
		return res
	}

	stages := []struct {
		stage Stage
		run   func()
	}{
		{StageDirectories, p.syncDirectories},
		{StageFiles, p.syncFiles},
		{StageDeletions, p.deleteOrphans},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			res.Interrupted = true
			p.log.Info(fmt.Sprintf("Synchronization interrupted before %s stage.", st.stage))
			return res
		}
		p.stage = st.stage
		st.run()
	}

	return res
}

// pass holds the state of a single Synchronize call.
type pass struct {
	*Reconciler
	source         string
	replica        string
	dryRun         bool
	replicaMissing bool
	log            *zap.Logger
	res            *PassResult
	stage          Stage
}

// prepare follows symlinked roots, validates the source root and makes sure
// the replica root exists.
// A pass whose source root is unreadable must not reach the deletion stage,
// otherwise every replica file would look orphaned.
func (p *pass) prepare() bool {
	for _, root := range []*string{&p.source, &p.replica} {
		resolved, err := storage.FollowRoot(p.fs, *root)
		if err != nil {
			p.fail(*root, err)
			return false
		}
		*root = resolved
	}

	if err := CheckRoots(p.source, p.replica); err != nil {
		p.fail(p.replica, err)
		return false
	}

	if err := storage.RequireDir(p.fs, p.source); err != nil {
		p.fail(p.source, err)
		return false
	}

	if p.dryRun {
		exists, err := afero.DirExists(p.fs, p.replica)
		if err != nil {
			p.fail(p.replica, err)
			return false
		}
		if !exists {
			p.replicaMissing = true
			p.act(Action{Type: ActionCreateDir, Path: ".", Reason: ReasonMissing},
				"Would create directory: "+p.replica)
		}
		return true
	}

	created, err := storage.EnsureDir(p.fs, p.replica)
	if err != nil {
		p.fail(p.replica, err)
		return false
	}
	if created {
		p.act(Action{Type: ActionCreateDir, Path: ".", Reason: ReasonMissing},
			"Created directory: "+p.replica)
	}
	return true
}

func (p *pass) syncDirectories() {
	walkTree(p.fs, p.source, func(e entry) error {
		if !e.info.IsDir() {
			return nil
		}
		if p.excludes.Match(e.rel, true) {
			p.skip(e.path, "excluded")
			return filepath.SkipDir
		}

		target := filepath.Join(p.replica, e.rel)
		info, err := p.fs.Stat(target)
		switch {
		case err == nil && info.IsDir():
			return nil
		case err == nil:
			p.fail(target, &fs.PathError{Op: "mkdir", Path: target, Err: storage.ErrNotDirectory})
			return nil
		case !errors.Is(err, fs.ErrNotExist):
			p.fail(target, err)
			return nil
		}

		if !p.dryRun {
			if err := p.fs.MkdirAll(target, 0o755); err != nil {
				p.fail(target, err)
				return nil
			}
		}
		p.act(Action{Type: ActionCreateDir, Path: e.rel, Reason: ReasonMissing},
			p.verb("Created directory: ", "Would create directory: ")+target)
		return nil
	}, p.fail)
}

func (p *pass) syncFiles() {
	walkTree(p.fs, p.source, func(e entry) error {
		if e.info.IsDir() {
			if p.excludes.Match(e.rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.excludes.Match(e.rel, false) {
			p.skip(e.path, "excluded")
			return nil
		}

		info, err := storage.Resolve(p.fs, e.path, e.info)
		if err != nil {
			p.fail(e.path, err)
			return nil
		}
		if info.IsDir() {
			// symlinked directories are not descended
			p.skip(e.path, "symbolic link to a directory")
			return nil
		}
		if !info.Mode().IsRegular() {
			p.skip(e.path, "not a regular file")
			return nil
		}

		dest := filepath.Join(p.replica, e.rel)
		if !p.dryRun {
			if _, err := storage.EnsureDir(p.fs, filepath.Dir(dest)); err != nil {
				p.fail(filepath.Dir(dest), err)
				return nil
			}
		}

		cmp, err := CompareFiles(p.fs, e.path, info, dest)
		if err != nil {
			p.fail(dest, err)
			return nil
		}
		if !cmp.NeedsCopy() {
			p.res.Summary.Unchanged++
			p.log.Debug("Unchanged: "+dest, zap.String("path", e.rel))
			return nil
		}

		n := info.Size()
		if !p.dryRun {
			n, err = storage.CopyFile(p.fs, e.path, dest, info)
			if err != nil {
				p.fail(dest, err)
				return nil
			}
		}
		p.act(Action{Type: ActionCopyFile, Path: e.rel, Reason: cmp.Reason, Bytes: n},
			fmt.Sprintf("%s%s to %s", p.verb("Copied: ", "Would copy: "), e.path, dest))
		return nil
	}, p.fail)
}

func (p *pass) deleteOrphans() {
	if p.replicaMissing {
		return
	}

	walkTree(p.fs, p.replica, func(e entry) error {
		if e.info.IsDir() {
			if p.excludes.Match(e.rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.excludes.Match(e.rel, false) {
			return nil
		}

		srcPath := filepath.Join(p.source, e.rel)
		info, err := storage.Lstat(p.fs, srcPath)
		switch {
		case err == nil && !info.IsDir():
			return nil
		case err == nil:
			// the source holds a directory where the replica holds a file
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		default:
			p.fail(srcPath, err)
			return nil
		}

		if !p.dryRun {
			if err := p.fs.Remove(e.path); err != nil {
				p.fail(e.path, err)
				return nil
			}
		}
		p.act(Action{Type: ActionDeleteFile, Path: e.rel, Reason: "missing in source"},
			p.verb("Deleted: ", "Would delete: ")+e.path)
		return nil
	}, p.fail)
}

func (p *pass) verb(done, planned string) string {
	if p.dryRun {
		return planned
	}
	return done
}

func (p *pass) act(a Action, msg string) {
	p.res.addAction(a)
	p.log.Info(msg,
		zap.String("stage", string(p.stage)),
		zap.String("action", string(a.Type)),
		zap.String("path", a.Path),
		zap.String("reason", a.Reason),
	)
}

func (p *pass) skip(path, why string) {
	p.res.Summary.Skipped++
	p.log.Debug("Skipped: "+path, zap.String("reason", why))
}

func (p *pass) fail(path string, err error) {
	e := &EntryError{
		Stage:    p.stage,
		Path:     path,
		Category: Classify(err),
		Err:      err,
	}
	p.res.addError(e)
	p.log.Error(e.Error(),
		zap.String("stage", string(e.Stage)),
		zap.String("path", path),
		zap.String("category", string(e.Category)),
	)
}

func (p *pass) logCompletion() {
	s := p.res.Summary
	status := "completed"
	if p.res.Interrupted {
		status = "interrupted"
	}
	p.log.Info(
		fmt.Sprintf("Synchronization %s. Created %d directories, copied %d files (%s), deleted %d files, %d errors.",
			status, s.DirsCreated, s.FilesCopied, humanize.Bytes(uint64(s.BytesCopied)), s.FilesDeleted, s.Errors),
		zap.Int("unchanged", s.Unchanged),
		zap.Int("skipped", s.Skipped),
		zap.Duration("duration", p.res.Duration()),
	)
}
