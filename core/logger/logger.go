package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the local timestamp layout used by the plain format.
const TimeLayout = "2006-01-02 15:04:05"

// New creates a new zap logger based on the configuration.
func New(cfg *Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var config zap.Config
	if level.Level() == zap.DebugLevel {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = level
	config.Sampling = nil

	// zap opens files with O_APPEND|O_CREATE and serializes writes across
	// all output paths behind a single lock.
	config.OutputPaths = []string{"stdout"}
	if cfg.File != "" {
		config.OutputPaths = append(config.OutputPaths, cfg.File)
	}
	config.ErrorOutputPaths = []string{"stderr"}

	var opts []zap.Option

	switch cfg.Format {
	case FormatPlain, "":
		config.Encoding = "console"
		config.EncoderConfig = plainEncoderConfig()
		config.DisableCaller = true
		config.DisableStacktrace = true
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return messageOnlyCore{c}
		}))
	case FormatConsole:
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	case FormatJSON:
		config.Encoding = "json"
		config.EncoderConfig.LevelKey = "level"
		config.EncoderConfig.TimeKey = "time"
		config.EncoderConfig.MessageKey = "message"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	return config.Build(opts...)
}

// plainEncoderConfig renders "[<local timestamp>] [<LEVEL>] <message>".
func plainEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:    "time",
		LevelKey:   "level",
		MessageKey: "message",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Local().Format(TimeLayout) + "]")
		},
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + l.CapitalString() + "]")
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// messageOnlyCore drops structured fields so plain records stay one
// timestamp, one level and one message.
type messageOnlyCore struct {
	zapcore.Core
}

func (c messageOnlyCore) With([]zapcore.Field) zapcore.Core {
	return c
}

func (c messageOnlyCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c messageOnlyCore) Write(ent zapcore.Entry, _ []zapcore.Field) error {
	return c.Core.Write(ent, nil)
}
