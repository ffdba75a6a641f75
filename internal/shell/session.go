package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remotefs/internal/config"
	"remotefs/internal/logger"
)

// Timing controls how a session decides that the client has gone quiet.
type Timing struct {
	Poll        time.Duration // sleep between reads
	QuietCycles int           // consecutive empty reads that count as settled
	ChunkSize   int           // pipe read size
}

// DefaultTiming suits interactive use over a normal network link.
func DefaultTiming() Timing {
	return Timing{Poll: 50 * time.Millisecond, QuietCycles: 6, ChunkSize: DefaultChunkSize}
}

// Options configure a Session.
type Options struct {
	Timing          Timing
	ReconnectBudget int     // reconnect-and-resend attempts per RunCommand
	Spawn           Spawner // defaults to ExecSpawner
}

// Session owns one long-lived ssh or sftp client bound to one server at a
// time. It is not safe for concurrent use; a single worker goroutine drives it.
type Session struct {
	flavor          Flavor
	spawn           Spawner
	timing          Timing
	reconnectBudget int

	server    config.ServerConfig
	proc      Process
	out       *PipeReader
	errs      *PipeReader
	connected string
	deadline  time.Time

	output         string
	errOutput      string
	lostConnection int
	hostKeyUnknown bool

	// stale is the marker of a command given up on while the client may
	// still be running it. Its output must not be taken for the next one's.
	stale string
}

// NewSession returns a disconnected session for the given flavor.
func NewSession(flavor Flavor, opts Options) *Session {
	t := opts.Timing
	def := DefaultTiming()
	if t.Poll <= 0 {
		t.Poll = def.Poll
	}
	if t.QuietCycles <= 0 {
		t.QuietCycles = def.QuietCycles
	}
	if t.ChunkSize <= 0 {
		t.ChunkSize = def.ChunkSize
	}
	spawn := opts.Spawn
	if spawn == nil {
		spawn = ExecSpawner
	}
	budget := opts.ReconnectBudget
	if budget < 0 {
		budget = 0
	}
	return &Session{
		flavor:          flavor,
		spawn:           spawn,
		timing:          t,
		reconnectBudget: budget,
	}
}

func (s *Session) Flavor() Flavor { return s.flavor }

// Connected returns the identity of the server the live client is attached
// to, or "" when disconnected.
func (s *Session) Connected() string { return s.connected }

// Output is the stdout captured by the most recent operation.
func (s *Session) Output() string { return s.output }

// ErrOutput is the stderr captured by the most recent operation.
func (s *Session) ErrOutput() string { return s.errOutput }

// LostConnection counts reconnects performed during the last RunCommand.
func (s *Session) LostConnection() int { return s.lostConnection }

// HostKeyUnknown reports whether the last connect stopped at an untrusted
// host key.
func (s *Session) HostKeyUnknown() bool { return s.hostKeyUnknown }

// Alive reports whether a client process is running.
func (s *Session) Alive() bool { return s.proc != nil && s.proc.Alive() }

// Bind points the session at srv. A client connected to a different server
// is closed first.
func (s *Session) Bind(srv config.ServerConfig) {
	if s.connected != "" && s.connected != srv.Identity() {
		logger.Log("session", "server changed %s -> %s, closing", s.connected, srv.Identity())
		s.Close()
	}
	s.server = srv
}

// SetDeadline bounds every wait performed by the session. A zero value
// removes the bound.
func (s *Session) SetDeadline(t time.Time) { s.deadline = t }

// Close terminates the client process.
func (s *Session) Close() {
	if s.proc != nil {
		logger.Log("session", "closing %s client for %s", s.flavor, s.connected)
		_ = s.proc.Kill()
	}
	s.proc = nil
	s.out = nil
	s.errs = nil
	s.connected = ""
	s.stale = ""
}

func (s *Session) prompt() string { return PromptFor(s.server, s.flavor) }

func (s *Session) posix() bool { return !s.server.IsWindows() }

// Connect starts the client unless one is already running and waits for its
// prompt, answering password and host-key questions on the way.
func (s *Session) Connect(acceptHostKey bool) error {
	if s.Alive() {
		return nil
	}
	s.Close()
	s.hostKeyUnknown = false

	argv := Argv(s.server, s.flavor)
	if acceptHostKey && s.posix() {
		dest := argv[len(argv)-1]
		argv = append(append([]string{}, argv[:len(argv)-1]...), "-o", "StrictHostKeyChecking=accept-new", dest)
	}
	logger.Log("session", "spawning %s for %s (tty=%v)", argv[0], s.server.Name, s.server.TTY)
	proc, err := s.spawn(context.Background(), argv, s.server.TTY)
	if err != nil {
		if errors.Is(err, ErrConnection) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s.proc = proc
	s.out = NewPipeReader(proc.Stdout(), s.timing.ChunkSize)
	s.errs = NewPipeReader(proc.Stderr(), s.timing.ChunkSize)

	if s.posix() {
		s.write("\n")
	}
	out, errOut := s.awaitResponse(false)
	resp := out + errOut

	if IsHostKeyPrompt(resp) {
		if !acceptHostKey {
			logger.Log("session", "host key for %s is unknown, aborting", s.server.Host)
			s.hostKeyUnknown = true
			s.output, s.errOutput = out, errOut
			if !s.posix() {
				s.write("n\n")
			}
			s.Close()
			return fmt.Errorf("%s: %w", s.server.Host, ErrHostKeyUnknown)
		}
		logger.Log("session", "accepting host key for %s", s.server.Host)
		if s.posix() {
			s.write("yes\n")
		} else {
			s.write("y\n")
		}
		out, errOut = s.awaitResponse(false)
		resp = out + errOut
	}

	if IsPasswordPrompt(resp) && s.server.Auth.Password != "" {
		s.writeSecret(s.server.Auth.Password + "\n")
		out, errOut = s.awaitResponse(false)
		resp = out + errOut
	}

	if !strings.Contains(resp, s.prompt()) {
		if s.posix() {
			s.write("\n")
		}
		out, errOut = s.awaitResponse(false)
		probe := out + errOut
		if !strings.Contains(probe, s.prompt()) {
			s.output, s.errOutput = out, errOut
			alive := s.Alive()
			s.Close()
			switch {
			case IsPasswordPrompt(probe) || IsPasswordPrompt(resp) || IsAccessDenied(probe + resp):
				return fmt.Errorf("%s: %w", s.server.Host, ErrAuth)
			case !alive:
				return fmt.Errorf("%w: %s client for %s exited", ErrConnection, s.flavor, s.server.Host)
			default:
				return fmt.Errorf("%w: prompt %q not seen from %s", ErrConnection, s.prompt(), s.server.Host)
			}
		}
	}

	s.connected = s.server.Identity()
	logger.Log("session", "%s client connected to %s", s.flavor, s.connected)
	return nil
}

// RunCommand writes cmd and reads until marker appears in the accumulated
// stdout, giving up after attempts quiet periods. An empty cmd only makes
// sure the client is connected.
func (s *Session) RunCommand(cmd, marker string, attempts int, acceptHostKey bool) error {
	s.output, s.errOutput = "", ""
	s.lostConnection = 0

	if err := s.Connect(acceptHostKey); err != nil {
		return err
	}
	if cmd == "" {
		return nil
	}
	if attempts <= 0 {
		attempts = 1
	}

	if s.stale != "" {
		if err := s.settle(attempts, acceptHostKey); err != nil {
			return err
		}
	}
	s.awaitResponse(true)
	if !s.write(cmd + "\n") {
		if err := s.recover(cmd, acceptHostKey); err != nil {
			return err
		}
	}

	var out, errOut strings.Builder
	first := true
	for attempt := 0; attempt < attempts; attempt++ {
		if s.expired() {
			break
		}
		o, e := s.awaitResponse(false)
		if !s.Alive() {
			if err := s.recover(cmd, acceptHostKey); err != nil {
				out.WriteString(o)
				errOut.WriteString(e)
				s.output, s.errOutput = out.String(), errOut.String()
				return err
			}
			first = true
			continue
		}
		if first && o != "" {
			o = stripLeadingPrompt(o, s.prompt())
			first = false
		}
		out.WriteString(o)
		errOut.WriteString(e)

		if strings.Contains(out.String(), marker) {
			s.output, s.errOutput = out.String(), errOut.String()
			return nil
		}
		if s.posix() {
			s.write("\n")
		}
	}

	s.output, s.errOutput = out.String(), errOut.String()
	s.stale = marker
	if s.expired() {
		return fmt.Errorf("%q on %s: %w", cmd, s.server.Name, ErrTimeout)
	}
	return fmt.Errorf("%q on %s after %d attempts: %w", cmd, s.server.Name, attempts, ErrMarkerNotFound)
}

// settle reads until the marker of an abandoned command shows up, so its
// late output is not mistaken for the next command's. A client that stays
// busy for attempts quiet periods, or past the deadline, is restarted.
func (s *Session) settle(attempts int, acceptHostKey bool) error {
	var seen strings.Builder
	for i := 0; i < attempts && s.Alive() && !s.expired(); i++ {
		o, _ := s.awaitResponse(false)
		seen.WriteString(o)
		if strings.Contains(seen.String(), s.stale) {
			logger.Log("session", "%s client for %s caught up with an abandoned command", s.flavor, s.server.Name)
			s.stale = ""
			return nil
		}
	}
	logger.Log("session", "%s client for %s still busy with an abandoned command, restarting", s.flavor, s.server.Name)
	s.Close()
	return s.Connect(acceptHostKey)
}

// recover reconnects and resends cmd while the reconnect budget lasts.
func (s *Session) recover(cmd string, acceptHostKey bool) error {
	if s.lostConnection >= s.reconnectBudget {
		s.Close()
		return fmt.Errorf("%s on %s: %w", s.flavor, s.server.Name, ErrLostConnection)
	}
	s.lostConnection++
	logger.Log("session", "lost connection to %s (%d/%d), reconnecting", s.server.Name, s.lostConnection, s.reconnectBudget)
	s.Close()
	if err := s.Connect(acceptHostKey); err != nil {
		return fmt.Errorf("%w: reconnect: %v", ErrLostConnection, err)
	}
	s.awaitResponse(true)
	if !s.write(cmd + "\n") {
		return s.recover(cmd, acceptHostKey)
	}
	return nil
}

// awaitResponse reads both streams until the process dies, the output has
// been quiet for QuietCycles polls, or the deadline passes. In discard mode
// it returns on the first quiet poll and keeps nothing.
func (s *Session) awaitResponse(discard bool) (string, string) {
	if s.proc == nil {
		return "", ""
	}
	var out, errOut strings.Builder
	quiet := 0
	for {
		o, e := s.out.Take(), s.errs.Take()
		if o != "" || e != "" {
			quiet = 0
			if !discard {
				out.WriteString(o)
				errOut.WriteString(e)
			}
		} else {
			quiet++
			if discard || quiet >= s.timing.QuietCycles {
				break
			}
		}
		if !s.proc.Alive() {
			s.drainAfterExit(&out, &errOut, discard)
			break
		}
		if s.expired() {
			break
		}
		time.Sleep(s.timing.Poll)
	}
	return out.String(), errOut.String()
}

// drainAfterExit collects what the readers still hold once the process has
// exited, waiting briefly for them to reach EOF.
func (s *Session) drainAfterExit(out, errOut *strings.Builder, discard bool) {
	timer := time.NewTimer(time.Duration(s.timing.QuietCycles) * s.timing.Poll)
	defer timer.Stop()
wait:
	for _, r := range []*PipeReader{s.out, s.errs} {
		select {
		case <-r.Done():
		case <-timer.C:
			break wait
		}
	}
	if discard {
		s.out.Take()
		s.errs.Take()
		return
	}
	out.WriteString(s.out.Take())
	errOut.WriteString(s.errs.Take())
}

func (s *Session) expired() bool {
	return !s.deadline.IsZero() && time.Now().After(s.deadline)
}

func (s *Session) write(text string) bool {
	logger.Log("session", "write %q", text)
	return s.writeRaw(text)
}

func (s *Session) writeSecret(text string) bool {
	logger.Log("session", "write %q", "********")
	return s.writeRaw(text)
}

func (s *Session) writeRaw(text string) bool {
	if s.proc == nil {
		return false
	}
	if _, err := s.proc.Write([]byte(text)); err != nil {
		logger.Log("session", "write failed: %v", err)
		return false
	}
	return true
}
