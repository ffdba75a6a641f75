package shell

import (
	"io"
	"strings"
	"sync"
)

// DefaultChunkSize is the read size used by PipeReader when none is given.
const DefaultChunkSize = 4096

// PipeReader drains one stream of a subprocess in the background. Chunks
// are queued in arrival order and handed out by Take without blocking.
type PipeReader struct {
	mu     sync.Mutex
	chunks []string
	done   chan struct{}
}

// NewPipeReader starts draining r. The loop ends when a read returns no
// data together with an error (EOF or a closed pipe).
func NewPipeReader(r io.Reader, chunkSize int) *PipeReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	pr := &PipeReader{done: make(chan struct{})}
	go pr.loop(r, chunkSize)
	return pr
}

func (pr *PipeReader) loop(r io.Reader, chunkSize int) {
	defer close(pr.done)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pr.mu.Lock()
			pr.chunks = append(pr.chunks, string(buf[:n]))
			pr.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Take returns everything queued so far, or "" if nothing is waiting.
func (pr *PipeReader) Take() string {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if len(pr.chunks) == 0 {
		return ""
	}
	out := strings.Join(pr.chunks, "")
	pr.chunks = pr.chunks[:0]
	return out
}

// Done is closed once the stream has been closed by the process.
func (pr *PipeReader) Done() <-chan struct{} {
	return pr.done
}

// Closed reports whether the stream has ended.
func (pr *PipeReader) Closed() bool {
	select {
	case <-pr.done:
		return true
	default:
		return false
	}
}
