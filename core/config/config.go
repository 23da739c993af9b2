package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"folder-sync/core/logger"
	"folder-sync/core/reconcile"
	"folder-sync/core/scheduler"
	"folder-sync/core/storage"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Sync holds the source and replica roots and the per-pass rules.
	Sync reconcile.Config `mapstructure:"sync"`
	// Schedule holds the interval between passes.
	Schedule scheduler.Config `mapstructure:"schedule"`
	// Storage holds configuration for replica access.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
}

// Keys for values that are usually given on the command line.
const (
	KeySource   = "sync.source"
	KeyReplica  = "sync.replica"
	KeyInterval = "schedule.interval"
	KeyLogFile  = "log.file"
	KeyDryRun   = "sync.dry_run"
)

// LoadConfig loads configuration from environment variables and .env file.
// Overrides take precedence over every other source.
func LoadConfig(path string, overrides map[string]any) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist
	_ = godotenv.Load(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SYNC_DRY_RUN -> sync.dry_run)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range overrides {
		v.Set(key, value)
	}

	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		decimalIntHook,
	)

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return &config, nil
}

// decimalIntHook parses strings bound for int fields as base-10, so "010"
// is ten and "0x10" is rejected.
func decimalIntHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return data, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a decimal integer", s)
	}
	return n, nil
}

// ResolvePaths makes both roots absolute and resolves symbolic links in
// the parts of them that already exist.
func (c *Config) ResolvePaths() error {
	var err error
	if c.Sync.Source, err = resolve(c.Sync.Source); err != nil {
		return fmt.Errorf("source path: %w", err)
	}
	if c.Sync.Replica, err = resolve(c.Sync.Replica); err != nil {
		return fmt.Errorf("replica path: %w", err)
	}
	return nil
}

func resolve(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	// walk up to the deepest existing ancestor, resolve it, re-append the rest
	rest := ""
	dir := abs
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// Validate checks the settings a daemon cannot start without.
func (c *Config) Validate() error {
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if c.Sync.Source == "" {
		return errors.New("source path is required")
	}
	if c.Sync.Replica == "" {
		return errors.New("replica path is required")
	}
	if err := storage.RequireDir(storage.NewFs(), c.Sync.Source); err != nil {
		return fmt.Errorf("source path: %w", err)
	}
	if err := reconcile.CheckRoots(c.Sync.Source, c.Sync.Replica); err != nil {
		return err
	}
	if !c.Log.IsValidFormat() {
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
