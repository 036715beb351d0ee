package log

import (
	"sync"
)

// Logger is the human-facing console logger the CLI host uses to print
// its own operational messages (distinct from slog, and distinct from
// the Session's LogMessage/logCallback stream; see PrintLogMessage in
// formatter.go for that one).
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the process-wide console Logger, initializing it
// with defaults on first use if InitConsole was never called.
func GetLogger() Logger {
	once.Do(func() {
		if logger == nil {
			logger = newLogrusLogger(ConsoleConfig{Level: "info"})
		}
	})
	return logger
}

// ConsoleConfig configures the console logger.
type ConsoleConfig struct {
	Level         string `mapstructure:"level"`
	FullTimestamp bool   `mapstructure:"full_timestamp"`
	ForceColors   bool   `mapstructure:"force_colors"`

	// TeeFile, if set, additionally appends unformatted console output
	// to a rotated file alongside stdout.
	TeeFile FileAppenderOpt `mapstructure:"tee_file"`
}

// InitConsole installs the console logger used by GetLogger. Safe to
// call once at process start, before any GetLogger() call.
func InitConsole(cfg ConsoleConfig) {
	logger = newLogrusLogger(cfg)
}
