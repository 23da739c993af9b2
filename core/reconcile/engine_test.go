package reconcile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestReconciler(t *testing.T, fsys afero.Fs, opts ...Option) (*Reconciler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return New(fsys, zap.New(core), opts...), logs
}

// roots returns fresh source and (existing, empty) replica directories.
func roots(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	replica := filepath.Join(dir, "replica")
	require.NoError(t, os.MkdirAll(source, 0o755))
	require.NoError(t, os.MkdirAll(replica, 0o755))
	return source, replica
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// snapshot maps every relative path under root to its content. Directories
// map to "/".
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		if d.IsDir() {
			out[filepath.ToSlash(rel)] = "/"
			return nil
		}
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func messages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		out = append(out, e.Message)
	}
	return out
}

func indexOfPrefix(msgs []string, prefix string) int {
	for i, m := range msgs {
		if strings.HasPrefix(m, prefix) {
			return i
		}
	}
	return -1
}

func TestSynchronize_MirrorsAndDeletes(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "a.txt"), "x")
	writeFile(t, filepath.Join(source, "sub", "b.txt"), "y")

	r, logs := newTestReconciler(t, afero.NewOsFs())

	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, res.OK(), "errors: %v", res.Errors)

	assert.Equal(t, map[string]string{
		"a.txt":     "x",
		"sub":       "/",
		"sub/b.txt": "y",
	}, snapshot(t, replica))
	assert.Equal(t, 1, res.Summary.DirsCreated)
	assert.Equal(t, 2, res.Summary.FilesCopied)
	assert.Equal(t, int64(2), res.Summary.BytesCopied)
	assert.Equal(t, 3, res.Total())

	msgs := messages(logs)
	created := indexOfPrefix(msgs, "Created directory: ")
	copied := indexOfPrefix(msgs, "Copied: ")
	require.NotEqual(t, -1, created)
	require.NotEqual(t, -1, copied)
	assert.Less(t, created, copied, "directories are reconciled before files")
	assert.True(t, strings.HasPrefix(msgs[0], "Starting synchronization"))
	assert.True(t, strings.HasPrefix(msgs[len(msgs)-1], "Synchronization completed."))

	require.NoError(t, os.Remove(filepath.Join(source, "a.txt")))
	logs.TakeAll()

	res = r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, res.OK(), "errors: %v", res.Errors)

	assert.Equal(t, map[string]string{
		"sub":       "/",
		"sub/b.txt": "y",
	}, snapshot(t, replica))
	require.Len(t, res.Actions, 1)
	assert.Equal(t, Action{Type: ActionDeleteFile, Path: "a.txt", Reason: "missing in source"}, res.Actions[0])
	assert.Equal(t, 1, logs.FilterMessageSnippet("Deleted: ").Len())
	assert.Equal(t, 0, logs.FilterMessageSnippet("Copied: ").Len())
	assert.Equal(t, 1, res.Summary.Unchanged)
}

func TestSynchronize_Idempotent(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "one.txt"), "1")
	writeFile(t, filepath.Join(source, "nested", "deeper", "two.txt"), "22")
	require.NoError(t, os.MkdirAll(filepath.Join(source, "empty"), 0o755))

	r, _ := newTestReconciler(t, afero.NewOsFs())

	first := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, first.OK())
	assert.NotZero(t, first.Total())

	second := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, second.OK())
	assert.Zero(t, second.Total())
	assert.Zero(t, second.Summary.FilesCopied)
	assert.Zero(t, second.Summary.FilesDeleted)
	assert.Equal(t, 2, second.Summary.Unchanged)
}

func TestSynchronize_DoesNotMutateSource(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "a.txt"), "alpha")
	writeFile(t, filepath.Join(source, "d", "b.txt"), "beta")
	writeFile(t, filepath.Join(replica, "orphan.txt"), "gone")
	writeFile(t, filepath.Join(replica, "a.txt"), "stale")

	mtime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(source, "a.txt"), mtime, mtime))

	before := snapshot(t, source)
	infoBefore, err := os.Stat(filepath.Join(source, "a.txt"))
	require.NoError(t, err)

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, res.OK())

	assert.Equal(t, before, snapshot(t, source))
	infoAfter, err := os.Stat(filepath.Join(source, "a.txt"))
	require.NoError(t, err)
	assert.True(t, infoBefore.ModTime().Equal(infoAfter.ModTime()))
}

func TestSynchronize_CopiesChangedFiles(t *testing.T) {
	source, replica := roots(t)
	path := filepath.Join(source, "f.txt")
	writeFile(t, path, "aaaa")

	r, _ := newTestReconciler(t, afero.NewOsFs())
	require.True(t, r.Synchronize(context.Background(), source, replica, ReconcileOptions{}).OK())

	replicaInfo, err := os.Stat(filepath.Join(replica, "f.txt"))
	require.NoError(t, err)
	sourceInfo, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, sourceInfo.ModTime().Equal(replicaInfo.ModTime()), "copy carries the source mtime")

	t.Run("SizeChange", func(t *testing.T) {
		writeFile(t, path, "aaaaaa")

		res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ReasonSize, res.Actions[0].Reason)
		assert.Equal(t, "aaaaaa", snapshot(t, replica)["f.txt"])
	})

	t.Run("SameSizeAndModTime", func(t *testing.T) {
		info, err := os.Stat(path)
		require.NoError(t, err)
		writeFile(t, path, "bbbbbb")
		require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

		res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ReasonContent, res.Actions[0].Reason)
		assert.Equal(t, "bbbbbb", snapshot(t, replica)["f.txt"])
	})

	t.Run("TouchedOnly", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		require.NoError(t, os.Chtimes(path, later, later))

		res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ReasonModTime, res.Actions[0].Reason)
	})
}

func TestSynchronize_CreatesReplicaRoot(t *testing.T) {
	source, _ := roots(t)
	replica := filepath.Join(t.TempDir(), "not", "yet", "there")
	writeFile(t, filepath.Join(source, "a.txt"), "x")

	r, logs := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, res.OK())

	assert.Equal(t, map[string]string{"a.txt": "x"}, snapshot(t, replica))
	assert.Equal(t, 1, logs.FilterMessage("Created directory: "+replica).Len())
}

func TestSynchronize_KeepsEmptyReplicaDirectories(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "keep", "k.txt"), "k")
	writeFile(t, filepath.Join(replica, "old", "deep", "o.txt"), "o")

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, res.OK())

	assert.Equal(t, map[string]string{
		"keep":       "/",
		"keep/k.txt": "k",
		"old":        "/",
		"old/deep":   "/",
	}, snapshot(t, replica))
	assert.Equal(t, 1, res.Summary.FilesDeleted)
}

func TestSynchronize_Excludes(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "a.txt"), "a")
	writeFile(t, filepath.Join(source, "scratch.tmp"), "tmp")
	writeFile(t, filepath.Join(source, "cache", "c.bin"), "c")
	writeFile(t, filepath.Join(replica, "local.tmp"), "keep me")
	writeFile(t, filepath.Join(replica, "cache", "warm.bin"), "keep me too")

	r, _ := newTestReconciler(t, afero.NewOsFs(), WithExcludes(NewExcludes([]string{"*.tmp", "cache/"})))
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, res.OK())

	assert.Equal(t, map[string]string{
		"a.txt":          "a",
		"local.tmp":      "keep me",
		"cache":          "/",
		"cache/warm.bin": "keep me too",
	}, snapshot(t, replica))
	assert.Equal(t, 2, res.Summary.Skipped)
}

func TestSynchronize_DryRun(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "sub", "a.txt"), "a")
	writeFile(t, filepath.Join(replica, "orphan.txt"), "o")
	before := snapshot(t, replica)

	r, logs := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{DryRun: true})
	require.True(t, res.OK())

	assert.True(t, res.DryRun)
	assert.Equal(t, before, snapshot(t, replica))
	assert.Equal(t, 1, res.Summary.DirsCreated)
	assert.Equal(t, 1, res.Summary.FilesCopied)
	assert.Equal(t, 1, res.Summary.FilesDeleted)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Would create directory: ").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Would copy: ").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Would delete: ").Len())
}

func TestSynchronize_DryRunMissingReplica(t *testing.T) {
	source, _ := roots(t)
	replica := filepath.Join(t.TempDir(), "absent")
	writeFile(t, filepath.Join(source, "a.txt"), "a")

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{DryRun: true})
	require.True(t, res.OK(), "errors: %v", res.Errors)

	_, err := os.Stat(replica)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 2, res.Total())
}

func TestSynchronize_MissingSourceKeepsReplica(t *testing.T) {
	_, replica := roots(t)
	writeFile(t, filepath.Join(replica, "precious.txt"), "p")

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), filepath.Join(t.TempDir(), "gone"), replica, ReconcileOptions{})

	assert.False(t, res.OK())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, StagePrepare, res.Errors[0].Stage)
	assert.Equal(t, CategoryIO, res.Errors[0].Category)
	assert.Equal(t, map[string]string{"precious.txt": "p"}, snapshot(t, replica))
}

func TestSynchronize_OverlappingRoots(t *testing.T) {
	source, _ := roots(t)

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, filepath.Join(source, "replica"), ReconcileOptions{})

	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrOverlappingRoots)
	assert.Zero(t, res.Total())
}

func TestSynchronize_PermissionErrorsDoNotStopThePass(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "a.txt"), "a")
	writeFile(t, filepath.Join(source, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(replica, "orphan.txt"), "o")

	r, logs := newTestReconciler(t, afero.NewReadOnlyFs(afero.NewOsFs()))
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})

	assert.False(t, res.OK())
	assert.False(t, res.Interrupted)
	require.Len(t, res.Errors, 4)

	stages := map[Stage]int{}
	for _, e := range res.Errors {
		assert.Equal(t, CategoryPermission, e.Category, e.Error())
		stages[e.Stage]++
	}
	assert.Equal(t, map[Stage]int{StageDirectories: 1, StageFiles: 2, StageDeletions: 1}, stages)

	assert.Equal(t, 4, logs.FilterMessageSnippet("Permission Error: ").Len())
	assert.Equal(t, 4, logs.FilterLevelExact(zap.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Synchronization completed.").Len())
	assert.Equal(t, map[string]string{"orphan.txt": "o"}, snapshot(t, replica))
}

func TestSynchronize_TypeConflictIsReported(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "thing"), "file in source")
	require.NoError(t, os.MkdirAll(filepath.Join(replica, "thing"), 0o755))

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, StageFiles, res.Errors[0].Stage)
	assert.Equal(t, CategoryIO, res.Errors[0].Category)
}

func TestSynchronize_FollowsFileSymlinks(t *testing.T) {
	source, replica := roots(t)
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "target.txt"), "linked")
	require.NoError(t, os.MkdirAll(filepath.Join(outside, "dir"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(source, "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "dir"), filepath.Join(source, "linkdir")))

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	require.True(t, res.OK(), "errors: %v", res.Errors)

	assert.Equal(t, map[string]string{"link.txt": "linked"}, snapshot(t, replica))
	assert.Equal(t, 1, res.Summary.Skipped)

	second := r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	assert.Zero(t, second.Total())
}

func TestSynchronize_FollowsSymlinkedRoots(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "sub", "a.txt"), "a")
	links := t.TempDir()
	sourceLink := filepath.Join(links, "source")
	replicaLink := filepath.Join(links, "replica")
	require.NoError(t, os.Symlink(source, sourceLink))
	require.NoError(t, os.Symlink(replica, replicaLink))

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), sourceLink, replicaLink, ReconcileOptions{})
	require.True(t, res.OK(), "errors: %v", res.Errors)

	assert.Equal(t, 2, res.Total())
	assert.Equal(t, map[string]string{"sub": "/", "sub/a.txt": "a"}, snapshot(t, replica))

	info, err := os.Lstat(replicaLink)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "the replica link itself is kept")
}

func TestSynchronize_SymlinkedRootsStillCannotOverlap(t *testing.T) {
	source, _ := roots(t)
	link := filepath.Join(t.TempDir(), "alias")
	require.NoError(t, os.Symlink(source, link))

	r, _ := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(context.Background(), source, link, ReconcileOptions{})

	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrOverlappingRoots)
}

func TestSynchronize_CancelledBeforeStart(t *testing.T) {
	source, replica := roots(t)
	writeFile(t, filepath.Join(source, "a.txt"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, logs := newTestReconciler(t, afero.NewOsFs())
	res := r.Synchronize(ctx, source, replica, ReconcileOptions{})

	assert.True(t, res.Interrupted)
	assert.False(t, res.OK())
	assert.Zero(t, res.Total())
	assert.Equal(t, 1, logs.FilterMessage("Synchronization interrupted before directories stage.").Len())
	assert.Equal(t, 0, logs.FilterMessageSnippet("Synchronization completed.").Len())
}

// panicFs panics when asked to create directories.
type panicFs struct {
	afero.Fs
}

func (p panicFs) MkdirAll(string, os.FileMode) error {
	panic("disk on fire")
}

func TestSynchronize_RecoversFromPanic(t *testing.T) {
	source, replica := roots(t)
	require.NoError(t, os.MkdirAll(filepath.Join(source, "sub"), 0o755))

	r, logs := newTestReconciler(t, panicFs{afero.NewOsFs()})

	var res *PassResult
	require.NotPanics(t, func() {
		res = r.Synchronize(context.Background(), source, replica, ReconcileOptions{})
	})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, CategoryUnexpected, res.Errors[0].Category)
	assert.Equal(t, StageDirectories, res.Errors[0].Stage)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Unexpected Error: panic during directories stage").Len())
	assert.False(t, res.Finished.IsZero())
}
