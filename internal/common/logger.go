package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
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
	case LogLevelInfo:
		return "info"
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
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel maps a textual level to a LogLevel. Unknown values fall back to info
// and report ok=false.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogLevelError, true
	case "warn", "warning":
		return LogLevelWarn, true
	case "info", "":
		return LogLevelInfo, true
	case "debug":
		return LogLevelDebug, true
	default:
		return LogLevelInfo, false
	}
}

// Logger provides a centralized logging interface for sqlrun
type Logger struct {
	*slog.Logger
	level  LogLevel
	masker *Masker
}

// logOutput is where loggers write by default. Stdout is reserved for command
// output such as `current` and `pending`.
var logOutput io.Writer = os.Stderr

// NewLogger creates a new structured logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(logOutput, level)
}

// NewLoggerWithWriter creates a text logger writing to w.
func NewLoggerWithWriter(w io.Writer, level LogLevel) *Logger {
	opts := &slog.HandlerOptions{
		Level:       level.ToSlogLevel(),
		ReplaceAttr: maskReplaceAttr,
	}

	handler := slog.NewTextHandler(w, opts)
	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		masker: globalMasker,
	}
}

// NewJSONLogger creates a structured logger with JSON output
func NewJSONLogger(level LogLevel) *Logger {
	opts := &slog.HandlerOptions{
		Level:       level.ToSlogLevel(),
		ReplaceAttr: maskReplaceAttr,
	}

	handler := slog.NewJSONHandler(logOutput, opts)
	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		masker: globalMasker,
	}
}

// NewColorLogger creates a logger using the colorized handler
func NewColorLogger(level LogLevel) *Logger {
	handler := NewColorHandler(logOutput, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	handler.SetColorEnabled(true)
	handler.SetMasker(globalMasker)
	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		masker: globalMasker,
	}
}

// maskReplaceAttr applies the global masker to string attributes of the
// standard text and JSON handlers.
func maskReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if !globalMasker.IsEnabled() {
		return a
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}
	masked := globalMasker.MaskValue(a.Key, a.Value.String())
	if s, ok := masked.(string); ok {
		return slog.String(a.Key, s)
	}
	return a
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

// EnableMasking toggles masking of sensitive values for this logger.
func (l *Logger) EnableMasking(enabled bool) {
	if l.masker != nil {
		l.masker.SetEnabled(enabled)
	}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
		masker: l.masker,
	}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithKey returns a logger with migration sequence key context
func (l *Logger) WithKey(key string) *Logger {
	return l.with("key", key)
}

// WithDirection returns a logger with plan direction context
func (l *Logger) WithDirection(direction string) *Logger {
	return l.with("direction", direction)
}

// WithStore returns a logger with store context
func (l *Logger) WithStore(storeType string) *Logger {
	return l.with("store", storeType)
}

// WithRun returns a logger tagged with a run identifier
func (l *Logger) WithRun(runID string) *Logger {
	return l.with("run_id", runID)
}

// Global default logger instance
var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	defaultLogger = logger
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// LogError logs an error with context
func LogError(msg string, err error, attrs ...any) {
	args := append([]any{"error", err}, attrs...)
	defaultLogger.Error(msg, args...)
}

// LogInfo logs informational message
func LogInfo(msg string, attrs ...any) {
	defaultLogger.Info(msg, attrs...)
}

// LogDebug logs debug message
func LogDebug(msg string, attrs ...any) {
	defaultLogger.Debug(msg, attrs...)
}

// LogWarn logs warning message
func LogWarn(msg string, attrs ...any) {
	defaultLogger.Warn(msg, attrs...)
}
