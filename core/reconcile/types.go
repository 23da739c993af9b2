package reconcile

import "time"

// Stage identifies the part of a pass an action or error belongs to.
type Stage string

const (
	// StagePrepare validates the roots before any stage runs.
	StagePrepare Stage = "prepare"
	// StageDirectories creates replica directories missing from the source layout.
	StageDirectories Stage = "directories"
	// StageFiles copies new and changed files.
	StageFiles Stage = "files"
	// StageDeletions removes replica files without a source counterpart.
	StageDeletions Stage = "deletions"
)

// ActionType represents the type of mutation action.
type ActionType string

const (
	// ActionCreateDir creates a directory in the replica.
	ActionCreateDir ActionType = "create_dir"
	// ActionCopyFile copies a file from the source over the replica.
	ActionCopyFile ActionType = "copy_file"
	// ActionDeleteFile deletes an orphaned replica file.
	ActionDeleteFile ActionType = "delete_file"
)

// Action represents a mutation performed (or planned, in dry-run) by a pass.
type Action struct {
	// Type specifies the action performed.
	Type ActionType `json:"type"`

	// Path is the relative path the action applies to.
	Path string `json:"path"`

	// Reason explains why this action was needed.
	Reason string `json:"reason"`

	// Bytes is the number of bytes copied. Only set for ActionCopyFile.
	Bytes int64 `json:"bytes,omitempty"`
}

// EntryError records a failure on a single entry. The pass continues past it.
type EntryError struct {
	// Stage is where the failure happened.
	Stage Stage `json:"stage"`

	// Path is the absolute path of the entry that failed.
	Path string `json:"path"`

	// Category classifies the failure for the operator.
	Category Category `json:"category"`

	// Err is the underlying error.
	Err error `json:"-"`
}

func (e *EntryError) Error() string {
	return e.Category.Label() + ": " + e.Err.Error()
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Summary provides aggregate counts for a pass.
type Summary struct {
	// DirsCreated counts directories created in the replica.
	DirsCreated int `json:"dirs_created"`

	// FilesCopied counts files copied into the replica.
	FilesCopied int `json:"files_copied"`

	// FilesDeleted counts orphaned files removed from the replica.
	FilesDeleted int `json:"files_deleted"`

	// BytesCopied is the total size of copied files.
	BytesCopied int64 `json:"bytes_copied"`

	// Unchanged counts source files whose replica copy already matched.
	Unchanged int `json:"unchanged"`

	// Skipped counts entries left alone by exclude rules or because they are
	// neither regular files nor directories.
	Skipped int `json:"skipped"`

	// Errors counts entry errors.
	Errors int `json:"errors"`
}

// PassResult is the outcome of one synchronization pass.
type PassResult struct {
	// ID uniquely identifies the pass in structured logs.
	ID string `json:"id"`

	// Started and Finished bound the pass in wall-clock time.
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// DryRun is true when no mutation was performed.
	DryRun bool `json:"dry_run"`

	// Interrupted is true when cancellation stopped the pass between stages.
	Interrupted bool `json:"interrupted"`

	// Actions lists performed (or planned) mutations in execution order.
	Actions []Action `json:"actions"`

	// Errors lists every entry that failed.
	Errors []*EntryError `json:"errors"`

	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`
}

// Total returns the number of actions taken.
func (r *PassResult) Total() int {
	return len(r.Actions)
}

// OK reports whether the pass ran to completion without entry errors.
func (r *PassResult) OK() bool {
	return len(r.Errors) == 0 && !r.Interrupted
}

// Duration returns how long the pass took.
func (r *PassResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

func (r *PassResult) addAction(a Action) {
	r.Actions = append(r.Actions, a)
	switch a.Type {
	case ActionCreateDir:
		r.Summary.DirsCreated++
	case ActionCopyFile:
		r.Summary.FilesCopied++
		r.Summary.BytesCopied += a.Bytes
	case ActionDeleteFile:
		r.Summary.FilesDeleted++
	}
}

func (r *PassResult) addError(e *EntryError) {
	r.Errors = append(r.Errors, e)
	r.Summary.Errors++
}

// ReconcileOptions controls a single pass.
type ReconcileOptions struct {
	// DryRun prevents execution of any mutations if true.
	DryRun bool
}
