package common

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger is the structured logger shared by the runner, the stores and the server
type Logger struct {
	*slog.Logger
	level  LogLevel
	masker *Masker
}

func newLogger(level LogLevel, masker *Masker, handler slog.Handler) *Logger {
	return &Logger{Logger: slog.New(handler), level: level, masker: masker}
}

func handlerOptions(level LogLevel, masker *Masker) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level.ToSlogLevel(), ReplaceAttr: masker.replaceAttr}
}

// NewLogger creates a text logger writing to stdout
func NewLogger(level LogLevel) *Logger {
	return NewTextLoggerTo(os.Stdout, level)
}

// NewTextLoggerTo creates a text logger writing to w
func NewTextLoggerTo(w io.Writer, level LogLevel) *Logger {
	m := NewMasker()
	return newLogger(level, m, slog.NewTextHandler(w, handlerOptions(level, m)))
}

// NewJSONLogger creates a JSON logger writing to stdout
func NewJSONLogger(level LogLevel) *Logger {
	return NewJSONLoggerTo(os.Stdout, level)
}

// NewJSONLoggerTo creates a JSON logger writing to w
func NewJSONLoggerTo(w io.Writer, level LogLevel) *Logger {
	m := NewMasker()
	return newLogger(level, m, slog.NewJSONHandler(w, handlerOptions(level, m)))
}

// NewColorLogger creates a colorized logger writing to stdout
func NewColorLogger(level LogLevel) *Logger {
	m := NewMasker()
	h := NewColorHandler(os.Stdout, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	h.SetMasker(m)
	return newLogger(level, m, h)
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

// EnableMasking turns masking of secrets on or off for this logger
func (l *Logger) EnableMasking(enabled bool) {
	if l.masker != nil {
		l.masker.SetEnabled(enabled)
	}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level, masker: l.masker}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithStore returns a logger with store context
func (l *Logger) WithStore(storeType string) *Logger {
	return l.with("store", storeType)
}

// WithTable returns a logger with table context
func (l *Logger) WithTable(table string) *Logger {
	return l.with("table", table)
}

// WithUpgrade returns a logger with upgrade name context
func (l *Logger) WithUpgrade(name string) *Logger {
	return l.with("upgrade", name)
}

// WithRequest returns a logger with HTTP request context
func (l *Logger) WithRequest(method, path string) *Logger {
	return l.with("method", method, "path", path)
}

var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	defaultLogger = logger
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// NopLogger returns a logger that discards everything
func NopLogger() *Logger {
	return newLogger(LogLevelError, nil, slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
