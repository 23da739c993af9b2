package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"folder-sync/core/config"
	"folder-sync/core/reconcile"

	"github.com/spf13/cobra"
)

var dryRunOnce bool

// onceCmd runs a single pass and exits.
var onceCmd = &cobra.Command{
	Use:   "once <sourcePath> <replicaPath> [logFilePath]",
	Short: "Run a single synchronization pass",
	Long: `Runs one synchronization pass and exits.

The exit status is non-zero when any entry failed, which makes the command
usable from cron or scripts.

Examples:
  # Preview what would change
  folder-sync once ./source ./replica --dry-run

  # Mirror and append to a log file
  folder-sync once ./source ./replica sync.log`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runOnce,
}

func init() {
	onceCmd.Flags().BoolVar(&dryRunOnce, "dry-run", false, "Log planned actions without touching the replica")
	RootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	overrides := map[string]any{
		config.KeySource:  args[0],
		config.KeyReplica: args[1],
	}
	if len(args) == 3 {
		overrides[config.KeyLogFile] = args[2]
	}
	if dryRunOnce {
		overrides[config.KeyDryRun] = true
	}

	a, err := setup(overrides, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := a.reconciler.Synchronize(ctx, a.cfg.Sync.Source, a.cfg.Sync.Replica, reconcile.ReconcileOptions{
		DryRun: a.cfg.Sync.DryRun,
	})
	if res.Interrupted {
		return errors.New("synchronization interrupted")
	}
	if !res.OK() {
		return fmt.Errorf("synchronization finished with %d errors", res.Summary.Errors)
	}
	return nil
}
