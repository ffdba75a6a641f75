package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"remotefs/internal/config"
	"remotefs/internal/shell"
)

// ErrInvalidRequest is returned by Submit for requests that cannot be queued.
var ErrInvalidRequest = errors.New("invalid request")

// Request describes one command for a worker of the given flavor.
type Request struct {
	Flavor  shell.Flavor
	Server  config.ServerConfig
	Command string
	// Marker must appear in the accumulated stdout for the command to count
	// as complete. Empty only for a pure reconnect (empty Command).
	Marker string

	Attempts      int           // listen attempts; 0 uses the dispatcher default
	Timeout       time.Duration // 0 uses the server timeout, then the dispatcher default
	AcceptHostKey bool
	DropResult    bool // fire-and-forget, see Dispatcher.Post
}

// ShellCommand builds an ssh request that appends a numeric echo to cmd and
// waits for its sum. An empty cmd yields a pure reconnect request.
func ShellCommand(srv config.ServerConfig, cmd string) Request {
	req := Request{Flavor: shell.FlavorSSH, Server: srv}
	cmd = strings.TrimRight(strings.TrimSpace(cmd), ";")
	if cmd == "" {
		return req
	}
	suffix, marker := ShellMarker()
	req.Command = cmd + "; " + suffix
	req.Marker = marker
	return req
}

// SFTPCommand builds an sftp request that completes when the client prints
// its prompt again.
func SFTPCommand(srv config.ServerConfig, cmd string) Request {
	return Request{
		Flavor:  shell.FlavorSFTP,
		Server:  srv,
		Command: strings.TrimSpace(cmd),
		Marker:  shell.PromptFor(srv, shell.FlavorSFTP),
	}
}

func (r Request) validate() error {
	if !r.Flavor.Valid() {
		return fmt.Errorf("%w: unknown flavor %q", ErrInvalidRequest, r.Flavor)
	}
	if r.Server.Host == "" {
		return fmt.Errorf("%w: no server", ErrInvalidRequest)
	}
	if r.Command != "" && r.Marker == "" {
		return fmt.Errorf("%w: command %q has no completion marker", ErrInvalidRequest, r.Command)
	}
	if strings.ContainsAny(r.Command, "\r\n") {
		return fmt.Errorf("%w: command spans several lines", ErrInvalidRequest)
	}
	return nil
}

// Result is what a worker reports back for one Command.
type Result struct {
	Key     string
	Flavor  shell.Flavor
	Server  string
	Command string
	Marker  string

	Success        bool
	Out            string
	ErrOut         string
	HostKeyUnknown bool
	LostConnection int
	// Cause is the session error behind a failure. ErrMarkerNotFound and
	// ErrTimeout mean the heuristic gave up; Out still holds what was read.
	Cause    error
	Duration time.Duration
}

// Body returns the command's own output: line endings normalised, the
// echoed command line dropped and everything from the completion marker on
// cut away.
func (r Result) Body() string {
	s := strings.ReplaceAll(r.Out, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	if cmd := strings.TrimSpace(r.Command); cmd != "" {
		tail := cmd
		if len(tail) > 24 {
			tail = tail[len(tail)-24:]
		}
		// A terminal may wrap a long echo over several lines, so look for
		// the end of the command within the echo's reach.
		if i := echoIndex(s, tail, len(tail) == len(cmd)); i >= 0 && i <= len(cmd)+64 {
			s = s[i+len(tail):]
			if nl := strings.IndexByte(s, '\n'); nl >= 0 {
				s = s[nl+1:]
			} else {
				s = ""
			}
		}
	}
	if r.Marker != "" {
		if i := strings.Index(s, r.Marker); i >= 0 {
			s = s[:i]
		}
	}
	return s
}

// echoIndex finds the echoed command end. A whole short command only counts
// when it fills a line on its own or follows the prompt.
func echoIndex(s, tail string, whole bool) int {
	i := strings.Index(s, tail)
	if i < 0 || !whole {
		return i
	}
	if i > 0 && s[i-1] != '\n' && s[i-1] != ' ' {
		return -1
	}
	if end := i + len(tail); end < len(s) && s[end] != '\n' {
		return -1
	}
	return i
}

// Err returns nil for a successful result and a descriptive error otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.Cause != nil {
		return r.Cause
	}
	return errors.New("command failed")
}
