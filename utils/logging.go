// Package utils holds the cross-cutting pieces the promptdash packages
// share, chiefly a leveled logging facade that keeps log/slog behind a
// small interface so core packages never depend on a handler setup.
package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel orders verbosity from silent to debug.
type LogLevel int

const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var levelNames = map[LogLevel]string{
	LogLevelOff:   "OFF",
	LogLevelError: "ERROR",
	LogLevelWarn:  "WARN",
	LogLevelInfo:  "INFO",
	LogLevelDebug: "DEBUG",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// UnmarshalText parses a level name case-insensitively, so a LogLevel can
// sit directly in an env-tagged config field.
func (l *LogLevel) UnmarshalText(text []byte) error {
	want := strings.ToUpper(strings.TrimSpace(string(text)))
	for level, name := range levelNames {
		if name == want {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %q", string(text))
}

// slogLevel maps onto the slog scale. Off sits above every real level so
// the handler drops all records.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}

// Logger is the logging surface every promptdash package depends on.
// NewLogger builds the production implementation; CaptureLogger satisfies
// it for tests.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	SetLevel(level LogLevel)
}

// serviceLogger writes slog text records. Filtering lives in the handler
// through a LevelVar, so SetLevel takes effect on loggers already handed out.
type serviceLogger struct {
	out   *slog.Logger
	level *slog.LevelVar
}

// NewLogger returns a Logger emitting structured text records to stderr.
func NewLogger(level LogLevel) Logger {
	return newLogger(os.Stderr, level)
}

func newLogger(w io.Writer, level LogLevel) *serviceLogger {
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())
	return &serviceLogger{
		out:   slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})),
		level: lv,
	}
}

func (l *serviceLogger) SetLevel(level LogLevel) {
	l.level.Set(level.slogLevel())
}

func (l *serviceLogger) Debug(msg string, keysAndValues ...any) {
	l.out.Debug(msg, keysAndValues...)
}

func (l *serviceLogger) Info(msg string, keysAndValues ...any) {
	l.out.Info(msg, keysAndValues...)
}

func (l *serviceLogger) Warn(msg string, keysAndValues ...any) {
	l.out.Warn(msg, keysAndValues...)
}

func (l *serviceLogger) Error(msg string, keysAndValues ...any) {
	l.out.Error(msg, keysAndValues...)
}
