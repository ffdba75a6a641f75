// Package shelltest provides scripted stand-ins for ssh and sftp client
// processes, for use in tests of code built on shell.Session.
package shelltest

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"remotefs/internal/shell"
)

// Responder decides what the fake client prints for each line it reads.
// Returning exit=true makes the process die after printing.
type Responder func(line string) (stdout, stderr string, exit bool)

// Process is a fake interactive client. Every complete line written to it is
// passed to the Responder in order, and the replies are streamed back on the
// stdout/stderr pipes.
type Process struct {
	respond Responder

	mu      sync.Mutex
	partial string
	lines   []string
	in      chan string

	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	exited   chan struct{}
	exitOnce sync.Once
}

// NewProcess starts a fake client that prints greeting and then answers
// lines with respond.
func NewProcess(greeting string, respond Responder) *Process {
	p := &Process{
		respond: respond,
		in:      make(chan string, 256),
		exited:  make(chan struct{}),
	}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	go p.serve(greeting)
	return p
}

func (p *Process) serve(greeting string) {
	if greeting != "" {
		if _, err := io.WriteString(p.stdoutW, greeting); err != nil {
			return
		}
	}
	for {
		select {
		case <-p.exited:
			return
		case line := <-p.in:
			out, errOut, exit := p.respond(line)
			if out != "" {
				if _, err := io.WriteString(p.stdoutW, out); err != nil {
					return
				}
			}
			if errOut != "" {
				if _, err := io.WriteString(p.stderrW, errOut); err != nil {
					return
				}
			}
			if exit {
				p.Exit()
				return
			}
		}
	}
}

func (p *Process) Write(b []byte) (int, error) {
	if !p.Alive() {
		return 0, io.ErrClosedPipe
	}
	p.mu.Lock()
	p.partial += string(b)
	var complete []string
	for {
		i := strings.IndexByte(p.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(p.partial[:i], "\r")
		p.partial = p.partial[i+1:]
		p.lines = append(p.lines, line)
		complete = append(complete, line)
	}
	p.mu.Unlock()
	for _, line := range complete {
		p.in <- line
	}
	return len(b), nil
}

func (p *Process) Stdout() io.Reader { return p.stdoutR }
func (p *Process) Stderr() io.Reader { return p.stderrR }

func (p *Process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Exit simulates the client dying: both streams reach EOF.
func (p *Process) Exit() {
	p.exitOnce.Do(func() {
		close(p.exited)
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
	})
}

func (p *Process) Kill() error {
	p.Exit()
	return nil
}

// Lines returns every line the client has received so far.
func (p *Process) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// Spawner hands out fake processes and records the argv of every spawn.
type Spawner struct {
	// New builds the process for the n-th spawn (0-based).
	New func(n int, argv []string) *Process
	// Err, when set, makes every spawn fail.
	Err error

	mu    sync.Mutex
	argvs [][]string
	procs []*Process
}

// Spawn satisfies shell.Spawner.
func (s *Spawner) Spawn(_ context.Context, argv []string, _ bool) (shell.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p := s.New(len(s.procs), argv)
	s.argvs = append(s.argvs, append([]string(nil), argv...))
	s.procs = append(s.procs, p)
	return p, nil
}

// Count is the number of processes spawned so far.
func (s *Spawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// Process returns the n-th spawned process.
func (s *Spawner) Process(n int) *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[n]
}

// Argv returns the command line of the n-th spawn.
func (s *Spawner) Argv(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.argvs[n]
}

var sumEcho = regexp.MustCompile(`;?\s*echo \$\(\((\d+)\+(\d+)\)\)\s*$`)

// Shell answers like a remote POSIX shell behind "ssh -tt": blank lines
// reprint the prompt, "exit" ends the process, and a trailing
// "echo $((A+B))" prints the sum. Known commands print outputs[cmd];
// anything else prints a "not found" error on stderr.
func Shell(prompt string, outputs map[string]string) Responder {
	return func(line string) (string, string, bool) {
		cmd := line
		marker := ""
		if m := sumEcho.FindStringSubmatchIndex(line); m != nil {
			a, _ := strconv.ParseInt(line[m[2]:m[3]], 10, 64)
			b, _ := strconv.ParseInt(line[m[4]:m[5]], 10, 64)
			marker = strconv.FormatInt(a+b, 10) + "\n"
			cmd = strings.TrimSpace(line[:m[0]])
		}
		switch cmd {
		case "":
			return marker + prompt + " ", "", false
		case "exit":
			return "", "", true
		}
		out, ok := outputs[cmd]
		if !ok {
			return marker + prompt + " ", fmt.Sprintf("sh: %s: not found\n", cmd), false
		}
		return out + marker + prompt + " ", "", false
	}
}

// SFTP answers like a non-interactive sftp client, which echoes each line
// behind its prompt before printing the result.
func SFTP(prompt string, outputs map[string]string) Responder {
	return func(line string) (string, string, bool) {
		if line == "bye" || line == "quit" {
			return "", "", true
		}
		return prompt + " " + line + "\n" + outputs[line], "", false
	}
}
