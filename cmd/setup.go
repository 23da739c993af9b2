package cmd

import (
	"fmt"

	"folder-sync/core/config"
	"folder-sync/core/logger"
	"folder-sync/core/reconcile"
	"folder-sync/core/storage"

	"go.uber.org/zap"
)

// app bundles what a command needs to run passes against the configured trees.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	reconciler *reconcile.Reconciler
	unlock     func() error
}

// setup loads and validates configuration, takes the replica lock and builds
// the logger and reconciler. With createReplica set a missing replica root is
// created before the first pass.
func setup(overrides map[string]any, createReplica bool) (*app, error) {
	cfg, err := config.LoadConfig(".", overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	fsys := storage.NewFs()
	if createReplica && !cfg.Sync.DryRun {
		if _, err := storage.EnsureDir(fsys, cfg.Sync.Replica); err != nil {
			return nil, fmt.Errorf("failed to create replica: %w", err)
		}
	}

	unlock, err := storage.AcquireLock(cfg.Storage, cfg.Sync.Replica)
	if err != nil {
		return nil, err
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		_ = unlock()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	excludes := reconcile.NewExcludes(cfg.Sync.Exclude)
	if excludes.Len() > 0 {
		logg.Debug("Exclude rules loaded", zap.Int("rules", excludes.Len()))
	}

	return &app{
		cfg:        cfg,
		log:        logg,
		reconciler: reconcile.New(fsys, logg, reconcile.WithExcludes(excludes)),
		unlock:     unlock,
	}, nil
}

func (a *app) close() {
	if err := a.unlock(); err != nil {
		a.log.Warn("Failed to release replica lock", zap.Error(err))
	}
	_ = a.log.Sync()
}
