// Package log provides the process-wide logrus logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"firestige.xyz/ozwpan/internal/config"
)

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

const (
	defaultPattern = "%time [%level] %msg%field%n"
	defaultTime    = "2006-01-02 15:04:05.000"
)

var (
	mu     sync.RWMutex
	logger Logger
	closer io.Closer
)

// GetLogger returns the global logger. Before Init it is an info-level text logger on stderr.
func GetLogger() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newLogrus(logrus.InfoLevel, textFormatter(), os.Stderr)
	}
	return logger
}

// Init replaces the global logger according to cfg. Stderr is always an output;
// the rotating file output is added when enabled.
func Init(cfg config.LogConfig) error {
	l, c, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}

	mu.Lock()
	old := closer
	logger, closer = l, c
	mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// SetLogger swaps the global logger and returns the previous one.
func SetLogger(l Logger) Logger {
	old := GetLogger()
	mu.Lock()
	logger = l
	mu.Unlock()
	return old
}

// Close flushes and closes the file output, if any.
func Close() error {
	mu.Lock()
	c := closer
	closer = nil
	mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

// New builds a logger writing to console plus the configured outputs.
// The returned closer is nil when no file output is configured.
func New(cfg config.LogConfig, console io.Writer) (Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	var f logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		f = &logrus.JSONFormatter{TimestampFormat: defaultTime}
	case "text", "":
		f = textFormatter()
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	out := NewMultiWriter().Add(console)
	var c io.Closer
	if cfg.Outputs.File.Enabled {
		fc := cfg.Outputs.File
		if fc.Path == "" {
			return nil, nil, fmt.Errorf("file output requires 'path' field")
		}
		c = out.AddFileAppender(FileAppenderOpt{
			Filename:   fc.Path,
			MaxSize:    fc.Rotation.MaxSizeMB,
			MaxBackups: fc.Rotation.MaxBackups,
			MaxAge:     fc.Rotation.MaxAgeDays,
			Compress:   fc.Rotation.Compress,
		})
	}

	return newLogrus(level, f, out), c, nil
}

// parseLevel accepts debug, info, warn (or warning) and error, case-insensitively.
func parseLevel(levelStr string) (logrus.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func textFormatter() *formatter {
	return &formatter{pattern: defaultPattern, time: defaultTime}
}
