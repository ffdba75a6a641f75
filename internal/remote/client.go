// Package remote implements file operations on a server by running shell
// and sftp commands through the dispatcher.
package remote

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/google/uuid"

	"remotefs/internal/config"
	"remotefs/internal/dispatch"
	"remotefs/internal/logger"
	"remotefs/internal/shell"
)

// Submitter is the part of dispatch.Dispatcher the client needs.
type Submitter interface {
	Submit(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
	Post(ctx context.Context, req dispatch.Request) (string, error)
}

// Client runs file operations on remote servers.
type Client struct {
	d Submitter
	// ListTimeout bounds recursive listings, which take far longer than
	// single commands.
	ListTimeout time.Duration
}

func NewClient(d Submitter) *Client {
	return &Client{d: d, ListTimeout: 10 * time.Minute}
}

// CommandError reports a remote operation that did not succeed.
type CommandError struct {
	Op     string
	Server string
	Result dispatch.Result
}

func (e *CommandError) Error() string {
	msg := firstLine(e.Result.ErrOut)
	if msg == "" {
		msg = failureLine(e.Result.Body())
	}
	if msg == "" && e.Result.Cause != nil {
		msg = e.Result.Cause.Error()
	}
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("%s failed on %s: %s", e.Op, e.Server, msg)
}

func (e *CommandError) Unwrap() error { return e.Result.Cause }

// HostKeyUnknown reports whether the failure was an untrusted host key.
func (e *CommandError) HostKeyUnknown() bool { return e.Result.HostKeyUnknown }

// Phrases coreutils and sftp print when an operation fails. Both clients
// give no exit status, so these are the only failure signal.
var failurePhrases = []string{
	"cannot ",
	"no such file",
	"permission denied",
	"operation not permitted",
	"not a directory",
	"is a directory",
	"couldn't ",
	"failure",
	"invalid ",
	"not found",
	"read-only file system",
}

func failureLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		for _, p := range failurePhrases {
			if strings.Contains(lower, p) {
				return strings.TrimSpace(line)
			}
		}
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r", ""))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

// run submits req and turns failures into a *CommandError. When check is
// set, output that mentions a failure also counts as one.
func (c *Client) run(ctx context.Context, op string, req dispatch.Request, check bool) (dispatch.Result, error) {
	res, err := c.d.Submit(ctx, req)
	if err != nil {
		return res, fmt.Errorf("%s on %s: %w", op, req.Server.Name, err)
	}
	if !res.Success {
		logger.Error("remote", "%s on %s: %v", op, req.Server.Name, res.Cause)
		return res, &CommandError{Op: op, Server: req.Server.Name, Result: res}
	}
	if check && (strings.TrimSpace(res.ErrOut) != "" || failureLine(res.Body()) != "") {
		logger.Error("remote", "%s on %s reported: %s", op, req.Server.Name, firstLine(res.ErrOut+res.Body()))
		return res, &CommandError{Op: op, Server: req.Server.Name, Result: res}
	}
	return res, nil
}

func (c *Client) shell(ctx context.Context, srv config.ServerConfig, op, cmd string) (dispatch.Result, error) {
	return c.run(ctx, op, dispatch.ShellCommand(srv, cmd), true)
}

func quoteAll(paths []string) string {
	q := make([]string, len(paths))
	for i, p := range paths {
		q[i] = shellescape.Quote(p)
	}
	return strings.Join(q, " ")
}

const lsFlags = "--time-style=long-iso --quoting-style=literal --color=never"

// longAttempts lets transfers and big listings run until their deadline
// instead of giving up after a fixed number of quiet periods.
const longAttempts = 1 << 20

// Connect makes sure an ssh worker is connected to srv. With acceptHostKey
// an unknown host key is trusted and recorded.
func (c *Client) Connect(ctx context.Context, srv config.ServerConfig, acceptHostKey bool) error {
	req := dispatch.ShellCommand(srv, "")
	req.AcceptHostKey = acceptHostKey
	_, err := c.run(ctx, "connect", req, false)
	return err
}

// List returns the long listing of one folder.
func (c *Client) List(ctx context.Context, srv config.ServerConfig, dir string) (string, error) {
	res, err := c.run(ctx, "ls "+dir, ListRequest(srv, dir), false)
	if err != nil {
		return "", err
	}
	return res.Body(), nil
}

// ListRequest is the request List submits, for callers that hand it to the
// dispatcher themselves and read the outcome with Listing.
func ListRequest(srv config.ServerConfig, dir string) dispatch.Request {
	return dispatch.ShellCommand(srv, fmt.Sprintf("ls -la %s -- %s", lsFlags, shellescape.Quote(dir)))
}

// Listing returns the listing text of a finished ListRequest.
func Listing(srv config.ServerConfig, dir string, res dispatch.Result) (string, error) {
	if !res.Success {
		return "", &CommandError{Op: "ls " + dir, Server: srv.Name, Result: res}
	}
	return res.Body(), nil
}

// ListRecursive returns the recursive long listing of dir. It satisfies
// catalogue.Lister.
func (c *Client) ListRecursive(ctx context.Context, srv config.ServerConfig, dir string) (string, error) {
	cmd := fmt.Sprintf("ls -laR %s -- %s 2>/dev/null", lsFlags, shellescape.Quote(dir))
	req := dispatch.ShellCommand(srv, cmd)
	req.Timeout = c.ListTimeout
	req.Attempts = longAttempts
	res, err := c.run(ctx, "ls -R "+dir, req, false)
	if err != nil {
		return "", err
	}
	return res.Body(), nil
}

// Tail returns the last lines of a remote file.
func (c *Client) Tail(ctx context.Context, srv config.ServerConfig, p string, lines int) (string, error) {
	op := "tail " + p
	cmd := fmt.Sprintf("tail -n %d -- %s", lines, shellescape.Quote(p))
	res, err := c.run(ctx, op, dispatch.ShellCommand(srv, cmd), false)
	if err != nil {
		return "", err
	}
	body := res.Body()
	// File content may contain anything, so only tail's own complaint counts.
	if strings.HasPrefix(body, "tail: ") || strings.HasPrefix(res.ErrOut, "tail: ") {
		return "", &CommandError{Op: op, Server: srv.Name, Result: res}
	}
	return body, nil
}

// Delete removes p. Folders need recursive.
func (c *Client) Delete(ctx context.Context, srv config.ServerConfig, p string, recursive bool) error {
	flags := "-f"
	if recursive {
		flags = "-rf"
	}
	_, err := c.shell(ctx, srv, "rm "+p, fmt.Sprintf("rm %s -- %s", flags, shellescape.Quote(p)))
	return err
}

// Rename moves from to to.
func (c *Client) Rename(ctx context.Context, srv config.ServerConfig, from, to string) error {
	_, err := c.shell(ctx, srv, "mv "+from, "mv -- "+quoteAll([]string{from, to}))
	return err
}

// Chmod sets the permission bits of p.
func (c *Client) Chmod(ctx context.Context, srv config.ServerConfig, p string, mode uint16) error {
	if mode > 0o777 {
		return fmt.Errorf("chmod %s: mode %o out of range", p, mode)
	}
	_, err := c.shell(ctx, srv, "chmod "+p, fmt.Sprintf("chmod %04o -- %s", mode, shellescape.Quote(p)))
	return err
}

// Chown sets owner and group of p. An empty group leaves it unchanged.
func (c *Client) Chown(ctx context.Context, srv config.ServerConfig, p, owner, group string) error {
	spec := owner
	if group != "" {
		spec += ":" + group
	}
	if spec == "" {
		return fmt.Errorf("chown %s: no owner or group", p)
	}
	_, err := c.shell(ctx, srv, "chown "+p, fmt.Sprintf("chown %s -- %s", shellescape.Quote(spec), shellescape.Quote(p)))
	return err
}

// Mkdir creates p and any missing parents.
func (c *Client) Mkdir(ctx context.Context, srv config.ServerConfig, p string) error {
	_, err := c.shell(ctx, srv, "mkdir "+p, "mkdir -p -- "+shellescape.Quote(p))
	return err
}

// Compress packs names from dir into a gzip tarball under the server's
// temp path and returns the archive path.
func (c *Client) Compress(ctx context.Context, srv config.ServerConfig, dir string, names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("compress %s: nothing selected", dir)
	}
	tmp := srv.TempPath
	if tmp == "" {
		tmp = "/tmp"
	}
	archive := path.Join(tmp, "remotefs-"+uuid.NewString()+".tar.gz")
	cmd := fmt.Sprintf("tar -czf %s -C %s -- %s", shellescape.Quote(archive), shellescape.Quote(dir), quoteAll(names))
	req := dispatch.ShellCommand(srv, cmd)
	req.Timeout = c.ListTimeout
	req.Attempts = longAttempts
	if _, err := c.run(ctx, "tar "+dir, req, true); err != nil {
		return "", err
	}
	return archive, nil
}

// RemoveTemp deletes a file under the temp path without waiting for the
// result.
func (c *Client) RemoveTemp(ctx context.Context, srv config.ServerConfig, p string) error {
	tmp := srv.TempPath
	if tmp == "" {
		tmp = "/tmp"
	}
	if !strings.HasPrefix(path.Clean(p), path.Clean(tmp)+"/") {
		return fmt.Errorf("refusing to remove %s outside %s", p, tmp)
	}
	_, err := c.d.Post(ctx, dispatch.ShellCommand(srv, "rm -f -- "+shellescape.Quote(p)))
	return err
}

// sftpQuote quotes a path for the sftp command line.
func sftpQuote(p string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(p) + `"`
}

// Get downloads remotePath to localPath.
func (c *Client) Get(ctx context.Context, srv config.ServerConfig, remotePath, localPath string) error {
	cmd := "get " + sftpQuote(remotePath) + " " + sftpQuote(localPath)
	req := dispatch.SFTPCommand(srv, cmd)
	req.Timeout = c.ListTimeout
	req.Attempts = longAttempts
	_, err := c.run(ctx, "get "+remotePath, req, true)
	return err
}

// Put uploads localPath to remotePath.
func (c *Client) Put(ctx context.Context, srv config.ServerConfig, localPath, remotePath string) error {
	cmd := "put " + sftpQuote(localPath) + " " + sftpQuote(remotePath)
	req := dispatch.SFTPCommand(srv, cmd)
	req.Timeout = c.ListTimeout
	req.Attempts = longAttempts
	_, err := c.run(ctx, "put "+remotePath, req, true)
	return err
}

// Exec runs an arbitrary command of the given flavor and returns its
// output. Failure phrases in the output are not treated as errors.
func (c *Client) Exec(ctx context.Context, srv config.ServerConfig, flavor shell.Flavor, cmd string) (dispatch.Result, error) {
	req := dispatch.ShellCommand(srv, cmd)
	if flavor == shell.FlavorSFTP {
		req = dispatch.SFTPCommand(srv, cmd)
	}
	return c.run(ctx, firstWord(cmd), req, false)
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return "connect"
}
