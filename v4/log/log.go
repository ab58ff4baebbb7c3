// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package log

import (
	"sync/atomic"

	"github.com/pingcap/errors"
	pclog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a simple wrapper around *zap.Logger which provides some extra
// methods to simplify the logging of the dump routine.
type Logger struct {
	*zap.Logger
}

// Config serializes the log related config in toml/json/yaml.
type Config struct {
	// Log level.
	Level string `toml:"level" json:"level" yaml:"level"`
	// Log filename, leave empty to disable file log.
	File string `toml:"file" json:"file" yaml:"file"`
	// Log format. one of json, text, or console.
	Format string `toml:"format" json:"format" yaml:"format"`
}

var appLogger atomic.Pointer[zap.Logger]

func init() {
	appLogger.Store(zap.NewNop())
}

// InitAppLogger inits the wrapped logger from config.
func InitAppLogger(cfg *Config) (Logger, error) {
	logger, _, err := pclog.InitLogger(&pclog.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		File:   pclog.FileLogConfig{Filename: cfg.File},
	}, zap.AddCallerSkip(1))
	if err != nil {
		return Logger{}, errors.Trace(err)
	}
	SetAppLogger(logger)
	return Logger{logger}, nil
}

// SetAppLogger replaces the process wide logger. Safe for concurrent use.
func SetAppLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	appLogger.Store(logger)
}

// Zap returns the global dumpling logger.
func Zap() Logger {
	return Logger{appLogger.Load()}
}

// With creates a child logger from the global logger and adds structured
// context to it.
func With(fields ...zap.Field) Logger {
	return Logger{appLogger.Load().With(fields...)}
}

// With creates a child logger and adds structured context to it.
func (l Logger) With(fields ...zap.Field) Logger {
	return Logger{l.Logger.With(fields...)}
}

// ShortError contructs a field which only records the error message without
// the verbose text (i.e. excludes the stack trace).
func ShortError(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", err.Error())
}

// IsDebugEnabled reports whether debug entries would be written.
func (l Logger) IsDebugEnabled() bool {
	return l.Core().Enabled(zapcore.DebugLevel)
}

// Debug logs a message at DebugLevel on the global logger.
func Debug(msg string, fields ...zap.Field) {
	appLogger.Load().Debug(msg, fields...)
}

// Info logs a message at InfoLevel on the global logger.
func Info(msg string, fields ...zap.Field) {
	appLogger.Load().Info(msg, fields...)
}

// Warn logs a message at WarnLevel on the global logger.
func Warn(msg string, fields ...zap.Field) {
	appLogger.Load().Warn(msg, fields...)
}

// Error logs a message at ErrorLevel on the global logger.
func Error(msg string, fields ...zap.Field) {
	appLogger.Load().Error(msg, fields...)
}
