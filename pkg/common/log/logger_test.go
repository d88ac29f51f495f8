package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelInfo))

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Errorf("Debug message should not be logged at Info level: %q", buf.String())
	}

	logger.Info("info message")
	if !strings.Contains(buf.String(), "[INFO] info message") {
		t.Errorf("Info message not logged correctly: %q", buf.String())
	}

	buf.Reset()
	logger.Warn("warn message %d", 42)
	if !strings.Contains(buf.String(), "[WARN] warn message 42") {
		t.Errorf("Warn message not formatted correctly: %q", buf.String())
	}

	buf.Reset()
	logger.SetLevel(LevelError)
	logger.Warn("suppressed")
	if buf.Len() > 0 {
		t.Errorf("Warn message should be suppressed at Error level: %q", buf.String())
	}
	logger.Error("error message")
	if !strings.Contains(buf.String(), "[ERROR] error message") {
		t.Errorf("Error message not logged correctly: %q", buf.String())
	}
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	fileLogger := logger.WithField("file", "0000000052/125")
	fileLogger.Info("scanning")

	out := buf.String()
	if !strings.Contains(out, "file=0000000052/125") {
		t.Errorf("Field not included in output: %q", out)
	}
	if !strings.Contains(out, "scanning") {
		t.Errorf("Message not included in output: %q", out)
	}

	// The parent logger must not inherit the field.
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "file=") {
		t.Errorf("Parent logger should not carry child fields: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"unknown": LevelInfo,
	}

	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEcho(t *testing.T) {
	var buf bytes.Buffer
	SetEchoOutput(&buf)
	defer SetEchoOutput(os.Stdout)

	Echo("%d files done", 7)
	if buf.String() != "7 files done\n" {
		t.Errorf("Echo output = %q", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "WARN" {
		t.Errorf("Expected WARN, got %s", LevelWarn.String())
	}
	if Level(42).String() != "LEVEL(42)" {
		t.Errorf("Unexpected string for out-of-range level: %s", Level(42).String())
	}
}
