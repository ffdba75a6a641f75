//go:build windows

package shell

import (
	"errors"
	"os/exec"
)

// plink and psftp read their prompts from stdin, so no console is needed.
func startWithTTY(cmd *exec.Cmd) (Process, error) {
	return nil, errors.New("tty mode is not supported on windows")
}

func detach(*exec.Cmd) {}
