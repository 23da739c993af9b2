package reconcile

// Config holds the trees to mirror and the rules applied to every pass.
type Config struct {
	// Source is the root of the tree being mirrored from.
	Source string `mapstructure:"source" default:""`
	// Replica is the root of the tree being mirrored to.
	Replica string `mapstructure:"replica" default:""`
	// Exclude holds gitignore-style patterns, relative to both roots, that
	// are never created, copied or deleted.
	Exclude []string `mapstructure:"exclude" default:""`
	// DryRun logs planned actions without touching the replica.
	DryRun bool `mapstructure:"dry_run" default:"false"`
}
