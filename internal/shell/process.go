package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a running interactive client (ssh, sftp, plink or psftp).
type Process interface {
	Write(p []byte) (int, error)
	Stdout() io.Reader
	Stderr() io.Reader
	Alive() bool
	Kill() error
}

// Spawner starts a process from an argv. UseTTY asks for a pseudo-terminal
// on stdin/stdout so the client will print its password and host-key prompts.
type Spawner func(ctx context.Context, argv []string, useTTY bool) (Process, error)

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
	tty    *os.File

	exited   chan struct{}
	killOnce sync.Once
}

// ExecSpawner starts real subprocesses with os/exec.
func ExecSpawner(ctx context.Context, argv []string, useTTY bool) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command line", ErrConnection)
	}
	// The process outlives the submitting request, so it is not bound to ctx.
	_ = ctx
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "TERM=dumb", "LC_ALL=C")

	if useTTY {
		return startWithTTY(cmd)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrConnection, argv[0], err)
	}

	p := &execProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr, exited: make(chan struct{})}
	go p.wait()
	return p, nil
}

func (p *execProcess) wait() {
	_ = p.cmd.Wait()
	close(p.exited)
	if p.tty != nil {
		// Unblocks the stdout reader, which never sees EOF on a pty master.
		_ = p.tty.Close()
	}
}

func (p *execProcess) Write(b []byte) (int, error) { return p.stdin.Write(b) }
func (p *execProcess) Stdout() io.Reader           { return p.stdout }
func (p *execProcess) Stderr() io.Reader           { return p.stderr }

func (p *execProcess) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

func (p *execProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		_ = p.stdin.Close()
		if p.Alive() && p.cmd.Process != nil {
			err = p.cmd.Process.Kill()
		}
	})
	return err
}
