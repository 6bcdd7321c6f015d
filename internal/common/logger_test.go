package common

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		expected slog.Level
	}{
		{"error level", LogLevelError, slog.LevelError},
		{"warn level", LogLevelWarn, slog.LevelWarn},
		{"info level", LogLevelInfo, slog.LevelInfo},
		{"debug level", LogLevelDebug, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.level)
			if logger == nil || logger.Logger == nil {
				t.Fatal("expected logger, got nil")
			}
			if logger.Level() != tt.level {
				t.Fatalf("Level() = %v, want %v", logger.Level(), tt.level)
			}
			if tt.level.ToSlogLevel() != tt.expected {
				t.Fatalf("ToSlogLevel() = %v, want %v", tt.level.ToSlogLevel(), tt.expected)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"", LogLevelInfo, true},
		{"DEBUG", LogLevelDebug, true},
		{" warning ", LogLevelWarn, true},
		{"error", LogLevelError, true},
		{"verbose", LogLevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelDebug)

	logger.WithComponent("executor").
		WithKey("20240101_000000_000001").
		WithDirection("forward").
		WithStore("sqlite").
		WithRun("run-1").
		Info("step committed")

	out := buf.String()
	for _, want := range []string{
		"component=executor",
		"key=20240101_000000_000001",
		"direction=forward",
		"store=sqlite",
		"run_id=run-1",
		"step committed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestLoggerMasksDatabaseURL(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelInfo)

	logger.Info("connecting", "url", "postgres://app:hunter2@db:5432/app")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked into log output: %s", out)
	}
	if !strings.Contains(out, "***MASKED***") {
		t.Fatalf("expected masked credentials, got %s", out)
	}
}

func TestGlobalLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("expected default logger, got nil")
	}

	customLogger := NewLogger(LogLevelDebug)
	SetDefaultLogger(customLogger)
	if GetLogger() != customLogger {
		t.Fatal("expected custom logger to be set as default")
	}

	SetDefaultLogger(NewLogger(LogLevelInfo))
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultLogger(NewLoggerWithWriter(&buf, LogLevelDebug))
	defer SetDefaultLogger(NewLogger(LogLevelInfo))

	LogInfo("test info message", "key", "value")
	LogDebug("test debug message", "debug_key", "debug_value")
	LogWarn("test warn message", "warn_key", "warn_value")
	LogError("test error message", nil, "error_key", "error_value")

	output := buf.String()
	for _, msg := range []string{"test info message", "test debug message", "test warn message", "test error message"} {
		if !strings.Contains(output, msg) {
			t.Errorf("expected %q in output", msg)
		}
	}
}
