package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	focusedBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("14"))
	blurredBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	titleStyle     = lipgloss.NewStyle().Bold(true)
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cursorStyle    = lipgloss.NewStyle().Background(lipgloss.Color("6")).Foreground(lipgloss.Color("15"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	folderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	linkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	keyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	highlightStyle = lipgloss.NewStyle().Background(lipgloss.Color("11")).Foreground(lipgloss.Color("0"))
)

// Pane-specific shortcut hints.
const (
	ShortcutsServerPane = "Type: Filter | Enter: Connect | Tab: Switch pane | Esc: Clear filter | q: Exit"
	ShortcutsFilePane   = "Enter: Open | F2: Rename | F5: Download | F6: Upload | F7: Mkdir | F8: Delete | F9: Chmod | ^R: Refresh | ^X: Run"
	ShortcutsViewerPane = "/: Filter | g/G: Top/Bottom | PgUp/PgDn: Scroll | Esc: Clear | q: Exit"
)

// statusBar is a single row with a context message on the left and
// keybinding hints on the right.
type statusBar struct {
	context   string
	isError   bool
	shortcuts string
}

// SetContext displays a context message (server/file info).
func (sb *statusBar) SetContext(msg string) {
	sb.context = msg
	sb.isError = false
}

// SetError displays an error message until the next context change.
func (sb *statusBar) SetError(msg string) {
	sb.context = "Error: " + msg
	sb.isError = true
}

// Reset clears the context message.
func (sb *statusBar) Reset() {
	sb.context = ""
	sb.isError = false
}

func (sb *statusBar) SetShortcuts(text string) {
	sb.shortcuts = text
}

// View renders the bar at the given width. busy is drawn in front of the
// context message while remote work is outstanding.
func (sb *statusBar) View(width int, busy string) string {
	left := sb.context
	if sb.isError {
		left = errorStyle.Render(left)
	}
	if busy != "" {
		left = busy + " " + left
	}
	right := keyStyle.Render(sb.shortcuts)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return " " + left
	}
	return " " + left + lipgloss.NewStyle().Width(gap).Render("") + right + " "
}
