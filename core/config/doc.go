// Package config provides configuration management for folder-sync.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file. Positional command-line arguments are applied
// on top as overrides.
//
// # Configuration Structure
//
// The Config struct is divided into subsections:
//   - Sync: source and replica roots, exclude patterns, dry run
//   - Schedule: seconds between the starts of two passes
//   - Storage: single-instance lock settings
//   - Log: level, format and log file
//
// Every field is reachable through an environment variable named after its
// key, for example SYNC_EXCLUDE, SCHEDULE_INTERVAL or LOG_FORMAT.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".", map[string]any{config.KeySource: "/data"})
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
