package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"none":    LevelNone,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelDebug.String() != "DEBUG" || LevelError.String() != "ERROR" {
		t.Error("unexpected level strings")
	}
	if Level(42).String() != "UNKNOWN" {
		t.Error("out-of-range level should stringify as UNKNOWN")
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "server.log")

	l, err := New(LevelInfo, path, "web")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("listening on %s", "127.0.0.1:8000")
	l.Debug("should be filtered")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "[INFO] [web] listening on 127.0.0.1:8000") {
		t.Errorf("log file missing info line: %q", out)
	}
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug line should have been filtered at info level: %q", out)
	}
}

func TestLevelNoneDiscards(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "none.log")

	l, err := New(LevelNone, path, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Error("never written")
	_ = l.Close()

	if _, err := os.Stat(path); err == nil {
		t.Error("LevelNone should not create a log file")
	}
}

func TestWithPrefix(t *testing.T) {
	l, err := New(LevelDebug, "", "a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child := l.WithPrefix("b")
	if child.prefix != "a:b" {
		t.Errorf("prefix = %q, want a:b", child.prefix)
	}
}
