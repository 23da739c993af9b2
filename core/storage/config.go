package storage

// Config holds configuration for replica access.
type Config struct {
	// Lock enables the single-instance lock on the replica root.
	Lock bool `mapstructure:"lock" default:"true"`
	// LockDir is where lock files are created. Defaults to the OS temp dir.
	LockDir string `mapstructure:"lock_dir" default:""`
}
