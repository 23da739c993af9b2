package logger

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum level to emit (debug, info, warn, error).
	Level string `mapstructure:"level" default:"info"`
	// Format selects the encoding: plain, console or json.
	Format string `mapstructure:"format" default:"plain"`
	// File is the path of the log file records are appended to.
	// Records are always mirrored to standard output.
	File string `mapstructure:"file" default:""`
}

const (
	FormatPlain   = "plain"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// IsValidFormat checks if the configured format is supported.
func (c Config) IsValidFormat() bool {
	switch c.Format {
	case FormatPlain, FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}
