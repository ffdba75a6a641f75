package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogDisabledByDefault(t *testing.T) {
	// Must not panic when Init was never called.
	Log("test", "nothing %d", 1)
	Error("test", "nothing %d", 2)
}

func TestInitWritesComponentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Log("session", "connected to %s", "web1")
	Error("worker", "command failed: %s", "boom")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	for _, want := range []string{"session", "connected to web1", "worker", "command failed: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	// After Close logging is disabled again.
	Log("session", "after close")
	data, _ = os.ReadFile(path)
	if strings.Contains(string(data), "after close") {
		t.Error("Log wrote after Close")
	}
}

func TestInitEmptyPath(t *testing.T) {
	if err := Init(""); err != nil {
		t.Fatalf("Init(\"\") error = %v", err)
	}
}
