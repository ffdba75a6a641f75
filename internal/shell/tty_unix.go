//go:build !windows

package shell

import (
	"fmt"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// startWithTTY attaches stdin/stdout to a pty and leaves stderr on a pipe so
// the two streams stay distinguishable.
func startWithTTY(cmd *exec.Cmd) (Process, error) {
	ptyFile, ttyFile, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	defer func() { _ = ttyFile.Close() }()
	_ = pty.Setsize(ptyFile, &pty.Winsize{Cols: 250, Rows: 50})

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = ptyFile.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdin = ttyFile
	cmd.Stdout = ttyFile
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true
	cmd.SysProcAttr.Ctty = 0

	if err := cmd.Start(); err != nil {
		_ = ptyFile.Close()
		return nil, fmt.Errorf("%w: start %s: %v", ErrConnection, cmd.Path, err)
	}

	p := &execProcess{cmd: cmd, stdin: ptyFile, stdout: ptyFile, stderr: stderr, tty: ptyFile, exited: make(chan struct{})}
	go p.wait()
	return p, nil
}

// detach starts cmd in a new session without a controlling terminal, so a
// client on plain pipes fails its terminal prompts instead of writing them
// over the user's screen.
func detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
}
