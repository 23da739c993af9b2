package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"folder-sync/core/config"
	"folder-sync/core/logger"
	"folder-sync/core/reconcile"
	"folder-sync/core/scheduler"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const usageLine = "Usage: folder-sync <sourcePath> <replicaPath> <intervalSeconds> <logFilePath>"

// RootCmd represents the base command when called without any subcommands.
// With four positional arguments it runs the synchronization daemon.
var RootCmd = &cobra.Command{
	Use:   "folder-sync <sourcePath> <replicaPath> <intervalSeconds> <logFilePath>",
	Short: "Periodic one-way folder synchronization",
	Long: `folder-sync keeps a replica folder identical to a source folder.

Every intervalSeconds it creates missing directories, copies new and changed
files and deletes replica files that no longer exist in the source. Every
action is logged to the console and appended to logFilePath.

Stop it with Ctrl+C, or ENTER when running in a terminal.`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runDaemon,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Startup failures are reported through a console logger since the
		// configured sink may be what failed.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if len(args) != 4 {
		fmt.Fprintln(cmd.OutOrStdout(), usageLine)
		return nil
	}

	interval, err := parseInterval(args[2])
	if err != nil {
		return err
	}

	a, err := setup(map[string]any{
		config.KeySource:   args[0],
		config.KeyReplica:  args[1],
		config.KeyInterval: interval,
		config.KeyLogFile:  args[3],
	}, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	printBanner(cmd.OutOrStdout(), interactive)
	if interactive {
		go waitForEnter(ctx, os.Stdin, a.log, stop)
	}

	sched := scheduler.New(a.cfg.Schedule.Interval(), a.log)
	return sched.Run(ctx, func(ctx context.Context) {
		a.reconciler.Synchronize(ctx, a.cfg.Sync.Source, a.cfg.Sync.Replica, reconcile.ReconcileOptions{
			DryRun: a.cfg.Sync.DryRun,
		})
	})
}

// parseInterval reads a whole number of seconds written in decimal.
func parseInterval(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval value %q: %w", s, scheduler.ErrInvalidInterval)
	}
	return n, nil
}

func printBanner(w io.Writer, interactive bool) {
	exit := "Press Ctrl+C to exit."
	if interactive {
		exit = "Press [ENTER] to exit."
	}
	fmt.Fprintln(w, "=======================================")
	fmt.Fprintln(w, " Folder Synchronization Tool")
	fmt.Fprintln(w, "=======================================")
	fmt.Fprintln(w, "Synchronization started. "+exit)
	fmt.Fprintln(w, "=======================================")
}

// waitForEnter calls stop once a line is read from r.
func waitForEnter(ctx context.Context, r io.Reader, log *zap.Logger, stop context.CancelFunc) {
	if _, err := bufio.NewReader(r).ReadString('\n'); err != nil {
		return
	}
	if ctx.Err() == nil {
		log.Info("Exit requested. Stopping synchronization...")
		stop()
	}
}
