package shell

import (
	"io"
	"strings"
	"testing"
	"time"
)

func waitClosed(t *testing.T, pr *PipeReader) {
	t.Helper()
	select {
	case <-pr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not finish")
	}
}

func TestPipeReaderPreservesOrder(t *testing.T) {
	r, w := io.Pipe()
	pr := NewPipeReader(r, 4)

	go func() {
		for _, s := range []string{"alpha ", "beta ", "gamma"} {
			_, _ = io.WriteString(w, s)
		}
		_ = w.Close()
	}()
	waitClosed(t, pr)

	if got := pr.Take(); got != "alpha beta gamma" {
		t.Errorf("Take() = %q", got)
	}
	if got := pr.Take(); got != "" {
		t.Errorf("second Take() = %q, want empty", got)
	}
	if !pr.Closed() {
		t.Error("Closed() = false after EOF")
	}
}

func TestPipeReaderTakeDoesNotBlock(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	pr := NewPipeReader(r, 0)

	done := make(chan string, 1)
	go func() { done <- pr.Take() }()
	select {
	case got := <-done:
		if got != "" {
			t.Errorf("Take() = %q, want empty", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Take blocked with nothing queued")
	}
	if pr.Closed() {
		t.Error("Closed() = true on an open stream")
	}
}

func TestPipeReaderLargeInput(t *testing.T) {
	input := strings.Repeat("0123456789", 2000)
	pr := NewPipeReader(strings.NewReader(input), 512)
	waitClosed(t, pr)
	if got := pr.Take(); got != input {
		t.Errorf("Take() returned %d bytes, want %d", len(got), len(input))
	}
}
