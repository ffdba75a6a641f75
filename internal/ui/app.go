// Package ui is the interactive remote file browser. It owns the catalogue
// of the selected server and never blocks its event loop on remote work:
// listings go through the dispatcher's callback API and file operations run
// as bubbletea commands.
package ui

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"remotefs/internal/catalogue"
	"remotefs/internal/config"
	"remotefs/internal/dispatch"
	"remotefs/internal/logger"
	"remotefs/internal/remote"
)

// Remote is the set of file operations the browser runs off the event loop.
// *remote.Client satisfies it.
type Remote interface {
	Connect(ctx context.Context, srv config.ServerConfig, acceptHostKey bool) error
	Tail(ctx context.Context, srv config.ServerConfig, p string, lines int) (string, error)
	Delete(ctx context.Context, srv config.ServerConfig, p string, recursive bool) error
	Rename(ctx context.Context, srv config.ServerConfig, from, to string) error
	Chmod(ctx context.Context, srv config.ServerConfig, p string, mode uint16) error
	Mkdir(ctx context.Context, srv config.ServerConfig, p string) error
	Get(ctx context.Context, srv config.ServerConfig, remotePath, localPath string) error
	Put(ctx context.Context, srv config.ServerConfig, localPath, remotePath string) error
}

// Async queues a request and reports the result through fn exactly once.
// *dispatch.Dispatcher satisfies it.
type Async interface {
	SubmitAsync(req dispatch.Request, token any, fn func(dispatch.Result, any)) error
}

type Options struct {
	Servers     []config.ServerConfig
	Remote      Remote
	Async       Async
	// StoreFor returns where the catalogue of a server is kept. When nil or
	// returning nil, catalogues live only in memory.
	StoreFor    func(config.ServerConfig) *catalogue.Store
	TailLines   int
	OpTimeout   time.Duration
	DownloadDir string
}

const (
	paneServers = iota
	paneFiles
	paneViewer
	paneCount
)

const serverPaneWidth = 24

// Tokens travel with asynchronous requests and tell the loop what the
// result belongs to.
type listToken struct {
	server string // identity
	dir    string
}

type runToken struct {
	server string
	cmd    string
}

type asyncMsg struct {
	res   dispatch.Result
	token any
}

type connectedMsg struct {
	server string
	dir    string
	err    error
}

type tailMsg struct {
	server string
	path   string
	text   string
	err    error
}

type opMsg struct {
	server  string
	op      string
	dir     string
	err     error
	apply   func(*catalogue.Catalogue) // catalogue change on success
	refresh bool
}

// Model is the bubbletea model of the browser.
type Model struct {
	opts    Options
	keys    keyMap
	servers serverPane
	files   filePane
	viewer  viewerPane
	status  statusBar
	spinner spinner.Model
	prompt  *prompt

	focus   int
	width   int
	height  int
	pending int

	srv     *config.ServerConfig
	cat     *catalogue.Catalogue
	store   *catalogue.Store
	parser  catalogue.Parser
	viewing string // remote path shown in the viewer

	results chan asyncMsg
	done    chan struct{}
	closed  bool
}

func New(opts Options) *Model {
	if opts.TailLines <= 0 {
		opts.TailLines = 500
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 30 * time.Second
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := &Model{
		opts:    opts,
		keys:    defaultKeyMap(),
		servers: newServerPane(opts.Servers),
		viewer:  newViewerPane(),
		spinner: sp,
		results: make(chan asyncMsg, 64),
		done:    make(chan struct{}),
	}
	m.status.SetShortcuts(ShortcutsServerPane)
	return m
}

// Run starts the browser on the terminal and returns when the user quits.
func Run(opts Options) error {
	m := New(opts)
	defer m.shutdown()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForResult())
}

// waitForResult hands the next dispatcher callback to the loop.
func (m *Model) waitForResult() tea.Cmd {
	results, done := m.results, m.done
	return func() tea.Msg {
		select {
		case r := <-results:
			return r
		case <-done:
			return nil
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case asyncMsg:
		m.finished()
		return m, tea.Batch(m.handleAsync(msg), m.waitForResult())

	case connectedMsg:
		m.finished()
		return m, m.handleConnected(msg)

	case tailMsg:
		m.finished()
		m.handleTail(msg)
		return m, nil

	case opMsg:
		m.finished()
		return m, m.handleOp(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) finished() {
	if m.pending > 0 {
		m.pending--
	}
}

// current reports whether a message for server still concerns the
// selected server.
func (m *Model) current(server string) bool {
	return m.srv != nil && m.srv.Identity() == server
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.shutdown()
		return tea.Quit
	}
	if m.prompt != nil {
		return m.updatePrompt(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		logger.Log("keys", "q, quitting")
		m.shutdown()
		return tea.Quit
	case key.Matches(msg, m.keys.NextPane):
		m.cycleFocus(1)
		return nil
	case key.Matches(msg, m.keys.PrevPane):
		m.cycleFocus(-1)
		return nil
	case key.Matches(msg, m.keys.Escape):
		m.clearFocusedFilter()
		return nil
	}

	switch m.focus {
	case paneServers:
		return m.serverKey(msg)
	case paneFiles:
		return m.fileKey(msg)
	default:
		return m.viewerKey(msg)
	}
}

func (m *Model) serverKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.servers.Move(-1)
	case key.Matches(msg, m.keys.Down):
		m.servers.Move(1)
	case key.Matches(msg, m.keys.Select):
		if idx, srv, ok := m.servers.Current(); ok {
			return m.selectServer(idx, srv)
		}
	case key.Matches(msg, m.keys.Backspace):
		m.servers.Backspace()
	case msg.Type == tea.KeyRunes:
		m.servers.TypeFilter(string(msg.Runes))
	}
	return nil
}

func (m *Model) fileKey(msg tea.KeyMsg) tea.Cmd {
	if m.srv == nil {
		return nil
	}
	page := max(m.topHeight()-3, 1)
	switch {
	case key.Matches(msg, m.keys.Up):
		m.files.Move(-1)
	case key.Matches(msg, m.keys.Down):
		m.files.Move(1)
	case key.Matches(msg, m.keys.PageUp):
		m.files.Move(-page)
	case key.Matches(msg, m.keys.PageDown):
		m.files.Move(page)
	case key.Matches(msg, m.keys.Select):
		return m.openCurrent()
	case key.Matches(msg, m.keys.Back):
		return m.openParent()
	case key.Matches(msg, m.keys.Backspace):
		if m.files.HasActiveFilter() {
			m.files.Backspace()
			return nil
		}
		return m.openParent()
	case key.Matches(msg, m.keys.Refresh):
		return m.requestListing(m.files.Dir())
	case key.Matches(msg, m.keys.Rename):
		if e, ok := m.files.Current(); ok {
			m.ask(promptRename, "Rename to: ", e.Name)
		}
	case key.Matches(msg, m.keys.Chmod):
		if e, ok := m.files.Current(); ok {
			m.ask(promptChmod, "Mode (octal): ", fmt.Sprintf("%o", e.Stat.Mode))
		}
	case key.Matches(msg, m.keys.Download):
		if e, ok := m.files.Current(); ok && !e.IsDir() {
			m.ask(promptDownload, "Save as: ", filepath.Join(m.opts.DownloadDir, e.Name))
		}
	case key.Matches(msg, m.keys.Upload):
		m.ask(promptUpload, "Upload local file: ", "")
	case key.Matches(msg, m.keys.Mkdir):
		m.ask(promptMkdir, "New folder: ", "")
	case key.Matches(msg, m.keys.Run):
		m.ask(promptRun, "Run in "+m.files.Dir()+": ", "")
	case key.Matches(msg, m.keys.Delete):
		if p, ok := m.files.CurrentPath(); ok {
			m.confirm(promptConfirmDelete, fmt.Sprintf("Delete %s? (y/n)", p), p)
		}
	case msg.Type == tea.KeyRunes:
		m.files.TypeFilter(string(msg.Runes))
	}
	return nil
}

func (m *Model) viewerKey(msg tea.KeyMsg) tea.Cmd {
	h := m.viewerHeight()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.viewer.Scroll(-1, h)
	case key.Matches(msg, m.keys.Down):
		m.viewer.Scroll(1, h)
	case key.Matches(msg, m.keys.PageUp):
		m.viewer.Scroll(-h, h)
	case key.Matches(msg, m.keys.PageDown):
		m.viewer.Scroll(h, h)
	case key.Matches(msg, m.keys.Top):
		m.viewer.Top()
	case key.Matches(msg, m.keys.Bottom):
		m.viewer.Bottom()
	case key.Matches(msg, m.keys.Filter):
		m.ask(promptFilter, "Filter: ", m.viewer.filter)
	case key.Matches(msg, m.keys.Refresh):
		if m.viewing != "" && m.srv != nil {
			return m.tail(m.viewing)
		}
	}
	return nil
}

func (m *Model) cycleFocus(delta int) {
	m.focus = (m.focus + delta + paneCount) % paneCount
	m.updateShortcuts()
}

func (m *Model) setFocus(pane int) {
	m.focus = pane
	m.updateShortcuts()
}

func (m *Model) updateShortcuts() {
	switch m.focus {
	case paneServers:
		m.status.SetShortcuts(ShortcutsServerPane)
	case paneFiles:
		m.status.SetShortcuts(ShortcutsFilePane)
	default:
		m.status.SetShortcuts(ShortcutsViewerPane)
	}
}

func (m *Model) clearFocusedFilter() {
	switch m.focus {
	case paneServers:
		m.servers.ClearFilter()
	case paneFiles:
		m.files.ClearFilter()
	default:
		m.viewer.SetFilter("")
	}
}

// selectServer switches the browser to srv, starting from its saved
// catalogue when one is usable.
func (m *Model) selectServer(idx int, srv config.ServerConfig) tea.Cmd {
	logger.Log("ui", "selectServer: %s (idx=%d)", srv.Name, idx)
	m.saveCatalogue()

	m.store = nil
	if m.opts.StoreFor != nil {
		m.store = m.opts.StoreFor(srv)
	}
	cat, loaded := catalogue.Open(m.store, srv)
	m.srv = &srv
	m.cat = cat
	m.parser = catalogue.Parser{Exclude: srv.CatExcludeFolders}
	m.viewing = ""
	m.servers.MarkSelected(idx)
	m.files.Clear()
	m.viewer.Clear()
	m.setFocus(paneFiles)
	if loaded {
		logger.Log("ui", "using saved catalogue for %s (%d entries)", srv.Name, cat.Count())
	}
	return m.openDir(cat.Root)
}

// openDir shows what the catalogue knows about dir right away and asks the
// server for a fresh listing.
func (m *Model) openDir(dir string) tea.Cmd {
	if e, ok := m.cat.Lookup(dir); ok && e.IsDir() && e.Indexed {
		m.files.SetFolder(m.cat, dir, e)
	} else {
		m.files.Pending(dir)
	}
	return m.requestListing(dir)
}

func (m *Model) openParent() tea.Cmd {
	dir := m.files.Dir()
	if dir == "" || dir == "/" {
		return nil
	}
	return m.openDir(path.Dir(dir))
}

func (m *Model) openCurrent() tea.Cmd {
	if m.files.OnParent() {
		return m.openParent()
	}
	e, ok := m.files.Current()
	if !ok {
		return nil
	}
	p := path.Join(m.files.Dir(), e.Name)
	switch {
	case e.IsDir():
		return m.openDir(p)
	case e.Stat.Kind == catalogue.KindSymlink:
		if t, ok := m.cat.Lookup(e.Stat.Target); ok && t.IsDir() {
			return m.openDir(e.Stat.Target)
		}
	}
	return m.tail(p)
}

// requestListing hands "ls" of dir to the dispatcher. The result comes back
// through the callback as an asyncMsg.
func (m *Model) requestListing(dir string) tea.Cmd {
	if m.srv == nil || dir == "" {
		return nil
	}
	srv := *m.srv
	tok := listToken{server: srv.Identity(), dir: dir}
	if err := m.opts.Async.SubmitAsync(remote.ListRequest(srv, dir), tok, m.deliver); err != nil {
		m.status.SetError(fmt.Sprintf("list %s: %v", dir, err))
		return nil
	}
	m.pending++
	m.status.SetContext(fmt.Sprintf("Listing %s on %s", dir, srv.Name))
	return nil
}

// deliver runs on a dispatcher goroutine and must not touch the model.
func (m *Model) deliver(res dispatch.Result, token any) {
	select {
	case m.results <- asyncMsg{res: res, token: token}:
	case <-m.done:
	}
}

func (m *Model) handleAsync(msg asyncMsg) tea.Cmd {
	switch tok := msg.token.(type) {
	case listToken:
		if !m.current(tok.server) {
			logger.Log("ui", "dropping listing of %s for %s", tok.dir, tok.server)
			return nil
		}
		return m.applyListing(tok.dir, msg.res)
	case runToken:
		if !m.current(tok.server) {
			return nil
		}
		if msg.res.HostKeyUnknown {
			m.askHostKey(m.files.Dir())
			return nil
		}
		text := msg.res.Body()
		if msg.res.ErrOut != "" {
			text += msg.res.ErrOut
		}
		m.viewer.SetText("$ "+tok.cmd, text)
		m.viewing = ""
		m.setFocus(paneViewer)
		if err := msg.res.Err(); err != nil {
			m.status.SetError(fmt.Sprintf("%s: %v", tok.cmd, err))
		} else {
			m.status.SetContext(okStyle.Render("Ran ") + tok.cmd)
		}
	}
	return nil
}

// applyListing parses a folder listing into the catalogue. This is the only
// place the catalogue is fed from the server.
func (m *Model) applyListing(dir string, res dispatch.Result) tea.Cmd {
	if res.HostKeyUnknown {
		m.askHostKey(dir)
		return nil
	}
	text, err := remote.Listing(*m.srv, dir, res)
	if err != nil {
		m.listingFailed(dir, err.Error())
		return nil
	}
	rep := m.parser.ParseDirectory(m.cat, dir, text)
	if rep.Sections == 0 {
		reason := "no listing"
		if len(rep.Skipped) > 0 {
			reason = rep.Skipped[0].Line
		}
		m.listingFailed(dir, reason)
		return nil
	}
	if dir == m.files.Dir() {
		if e, ok := m.cat.Lookup(dir); ok {
			m.files.SetFolder(m.cat, dir, e)
		}
	}
	m.status.SetContext(fmt.Sprintf("%s %s (%d entries)", okStyle.Render(m.srv.Name), dir, rep.Entries))
	return nil
}

func (m *Model) listingFailed(dir, reason string) {
	logger.Error("ui", "listing %s on %s: %s", dir, m.srv.Name, reason)
	m.status.SetError(fmt.Sprintf("list %s: %s", dir, reason))
	if dir == m.files.Dir() && m.files.Empty() {
		m.files.SetMessage(errorStyle.Render("Unable to list folder"))
	}
}

func (m *Model) askHostKey(dir string) {
	m.confirm(promptHostKey, fmt.Sprintf("Unknown host key for %s. Trust it? (y/n)", m.srv.Host), dir)
}

func (m *Model) connect(dir string) tea.Cmd {
	srv := *m.srv
	r := m.opts.Remote
	timeout := m.opts.OpTimeout
	m.pending++
	m.status.SetContext("Connecting to " + srv.Name)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := r.Connect(ctx, srv, true)
		return connectedMsg{server: srv.Identity(), dir: dir, err: err}
	}
}

func (m *Model) handleConnected(msg connectedMsg) tea.Cmd {
	if !m.current(msg.server) {
		return nil
	}
	if msg.err != nil {
		m.status.SetError(msg.err.Error())
		return nil
	}
	return m.requestListing(msg.dir)
}

func (m *Model) tail(p string) tea.Cmd {
	srv := *m.srv
	r := m.opts.Remote
	lines, timeout := m.opts.TailLines, m.opts.OpTimeout
	m.pending++
	m.status.SetContext(fmt.Sprintf("Reading %s:%s", srv.Name, p))
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		text, err := r.Tail(ctx, srv, p, lines)
		return tailMsg{server: srv.Identity(), path: p, text: text, err: err}
	}
}

func (m *Model) handleTail(msg tailMsg) {
	if !m.current(msg.server) {
		return
	}
	if msg.err != nil {
		if hostKeyUnknown(msg.err) {
			m.askHostKey(m.files.Dir())
			return
		}
		m.status.SetError(msg.err.Error())
		return
	}
	m.viewing = msg.path
	m.viewer.SetText(msg.path, msg.text)
	m.setFocus(paneViewer)
	m.status.SetContext(fmt.Sprintf("%s %s", okStyle.Render(m.srv.Name), msg.path))
}

// operation runs fn off the loop and reports back with an opMsg.
func (m *Model) operation(op string, refresh bool, apply func(*catalogue.Catalogue),
	fn func(ctx context.Context, r Remote, srv config.ServerConfig) error) tea.Cmd {
	srv := *m.srv
	r := m.opts.Remote
	dir := m.files.Dir()
	timeout := m.opts.OpTimeout
	m.pending++
	m.status.SetContext(op + "...")
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := fn(ctx, r, srv)
		return opMsg{server: srv.Identity(), op: op, dir: dir, err: err, apply: apply, refresh: refresh}
	}
}

func (m *Model) handleOp(msg opMsg) tea.Cmd {
	if !m.current(msg.server) {
		return nil
	}
	if msg.err != nil {
		if hostKeyUnknown(msg.err) {
			m.askHostKey(msg.dir)
			return nil
		}
		logger.Error("ui", "%s: %v", msg.op, msg.err)
		m.status.SetError(msg.err.Error())
		return nil
	}
	if msg.apply != nil {
		msg.apply(m.cat)
		if msg.dir == m.files.Dir() {
			if e, ok := m.cat.Lookup(msg.dir); ok {
				m.files.SetFolder(m.cat, msg.dir, e)
			}
		}
	}
	m.status.SetContext(okStyle.Render("Done: ") + msg.op)
	if msg.refresh {
		return m.requestListing(msg.dir)
	}
	return nil
}

func hostKeyUnknown(err error) bool {
	var ce *remote.CommandError
	return errors.As(err, &ce) && ce.HostKeyUnknown()
}

// submitPrompt acts on an answered text prompt.
func (m *Model) submitPrompt(pr *prompt, value string) tea.Cmd {
	value = strings.TrimSpace(value)
	if pr.kind == promptFilter {
		m.viewer.SetFilter(value)
		return nil
	}
	if value == "" || m.srv == nil {
		return nil
	}
	dir := m.files.Dir()
	target := func(name string) string {
		if path.IsAbs(name) {
			return path.Clean(name)
		}
		return path.Join(dir, name)
	}

	switch pr.kind {
	case promptRename:
		from, ok := m.files.CurrentPath()
		if !ok {
			return nil
		}
		to := target(value)
		return m.operation("rename "+from, true,
			func(c *catalogue.Catalogue) { c.Rename(from, to) },
			func(ctx context.Context, r Remote, srv config.ServerConfig) error {
				return r.Rename(ctx, srv, from, to)
			})

	case promptMkdir:
		p := target(value)
		return m.operation("mkdir "+p, true, nil,
			func(ctx context.Context, r Remote, srv config.ServerConfig) error { return r.Mkdir(ctx, srv, p) })

	case promptChmod:
		p, ok := m.files.CurrentPath()
		if !ok {
			return nil
		}
		mode, err := strconv.ParseUint(value, 8, 16)
		if err != nil || mode > 0o777 {
			m.status.SetError(fmt.Sprintf("invalid mode %q", value))
			return nil
		}
		return m.operation(fmt.Sprintf("chmod %o %s", mode, p), true, nil,
			func(ctx context.Context, r Remote, srv config.ServerConfig) error {
				return r.Chmod(ctx, srv, p, uint16(mode))
			})

	case promptDownload:
		p, ok := m.files.CurrentPath()
		if !ok {
			return nil
		}
		return m.operation("download "+p, false, nil,
			func(ctx context.Context, r Remote, srv config.ServerConfig) error { return r.Get(ctx, srv, p, value) })

	case promptUpload:
		dst := path.Join(dir, filepath.Base(value))
		return m.operation("upload "+dst, true, nil,
			func(ctx context.Context, r Remote, srv config.ServerConfig) error { return r.Put(ctx, srv, value, dst) })

	case promptRun:
		return m.run(dir, value)
	}
	return nil
}

// run hands an arbitrary shell command to the dispatcher; the output lands
// in the viewer.
func (m *Model) run(dir, cmd string) tea.Cmd {
	srv := *m.srv
	line := "cd " + shellescape.Quote(dir) + " && " + cmd
	tok := runToken{server: srv.Identity(), cmd: cmd}
	if err := m.opts.Async.SubmitAsync(dispatch.ShellCommand(srv, line), tok, m.deliver); err != nil {
		m.status.SetError(fmt.Sprintf("%s: %v", cmd, err))
		return nil
	}
	m.pending++
	m.status.SetContext("Running " + cmd)
	return nil
}

// answer acts on a confirmed yes/no prompt.
func (m *Model) answer(pr *prompt) tea.Cmd {
	if m.srv == nil {
		return nil
	}
	switch pr.kind {
	case promptHostKey:
		return m.connect(pr.target)
	case promptConfirmDelete:
		target := pr.target
		recursive := false
		if e, ok := m.cat.Lookup(target); ok && e.IsDir() {
			recursive = true
		}
		return m.operation("delete "+target, true,
			func(c *catalogue.Catalogue) { c.Remove(target) },
			func(ctx context.Context, r Remote, srv config.ServerConfig) error {
				return r.Delete(ctx, srv, target, recursive)
			})
	}
	return nil
}

// saveCatalogue persists the catalogue of the selected server.
func (m *Model) saveCatalogue() {
	if m.store == nil || m.cat == nil || m.cat.Count() == 0 {
		return
	}
	if err := m.store.Save(m.cat); err != nil {
		logger.Error("ui", "saving catalogue of %s: %v", m.cat.Server, err)
		m.status.SetError("save catalogue: " + err.Error())
	}
}

// shutdown saves state and releases pending callbacks. Safe to call twice.
func (m *Model) shutdown() {
	if m.closed {
		return
	}
	m.closed = true
	logger.Log("ui", "shutdown")
	m.saveCatalogue()
	close(m.done)
}

func (m *Model) topHeight() int {
	return max((m.height-1)/2, 3)
}

func (m *Model) viewerHeight() int {
	h := m.height - 1 - m.topHeight() - 2 - 1 // status, top panes, borders, title
	if m.prompt != nil {
		h--
	}
	return max(h, 1)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Starting..."
	}
	border := func(pane int) lipgloss.Style {
		if pane == m.focus {
			return focusedBorder
		}
		return blurredBorder
	}
	topH := m.topHeight()
	serverW := min(serverPaneWidth, m.width/3)
	filesW := m.width - serverW

	servers := border(paneServers).Width(serverW - 2).Height(topH - 2).
		Render(m.servers.View(serverW-2, topH-2))
	files := border(paneFiles).Width(filesW - 2).Height(topH - 2).
		Render(m.files.View(filesW-2, topH-2))

	vh := m.viewerHeight()
	body := titleStyle.Render(truncate(m.viewer.Title(), m.width-2)) + "\n" + m.viewer.View(m.width-2, vh)
	viewer := border(paneViewer).Width(m.width - 2).Height(vh + 1).Render(body)

	parts := []string{lipgloss.JoinHorizontal(lipgloss.Top, servers, files), viewer}
	if m.prompt != nil {
		parts = append(parts, m.prompt.View())
	}
	busy := ""
	if m.pending > 0 {
		busy = m.spinner.View()
	}
	parts = append(parts, m.status.View(m.width, busy))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
