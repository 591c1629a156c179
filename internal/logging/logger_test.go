package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("but this should")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("level filtering failed, got: %q", out)
	}
	if !strings.Contains(out, "but this should") {
		t.Errorf("expected warn line, got: %q", out)
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelDebug, Output: &buf}).With("eventloop")

	l.Info("tick")
	if !strings.Contains(buf.String(), "[eventloop]") {
		t.Errorf("expected component tag in output, got: %q", buf.String())
	}
}

func TestLoggerArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelInfo, Output: &buf})

	l.Info("listening", "addr", "127.0.0.1:6379", "backlog", 16)
	out := buf.String()
	if !strings.Contains(out, "addr=127.0.0.1:6379") || !strings.Contains(out, "backlog=16") {
		t.Errorf("expected formatted key-value args, got: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		"warn":    LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"unknown": LevelInfo,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDefaultLogger(t *testing.T) {
	l1 := Default()
	l2 := Default()
	if l1 != l2 {
		t.Error("Default() should return the same instance across calls")
	}

	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelInfo, Output: &buf}))
	Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected global Info() to use the default logger, got: %q", buf.String())
	}
}
