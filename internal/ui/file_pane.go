package ui

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"remotefs/internal/catalogue"
)

// filePane shows the entries of one remote folder as known to the
// catalogue.
type filePane struct {
	dir     string
	entries []*catalogue.Entry
	names   []string
	cat     *catalogue.Catalogue
	cursor  int // row under the cursor; row 0 is ".." when dir has a parent
	message string

	// Fuzzy filter state
	filter  string
	visible []int // maps displayed entry row -> index into entries
}

// SetFolder shows the children of dir. The cursor stays on the entry of
// the same name when the folder is only being refreshed.
func (fp *filePane) SetFolder(cat *catalogue.Catalogue, dir string, e *catalogue.Entry) {
	keep := ""
	if dir == fp.dir {
		if cur, ok := fp.Current(); ok {
			keep = cur.Name
		}
	} else {
		fp.filter = ""
	}
	fp.cat = cat
	fp.dir = dir
	fp.message = ""
	fp.entries = e.Sorted()
	fp.names = fp.names[:0]
	for _, c := range fp.entries {
		fp.names = append(fp.names, c.Name)
	}
	fp.rebuild()
	if keep != "" {
		for i, idx := range fp.visible {
			if fp.entries[idx].Name == keep {
				fp.cursor = i + fp.offset()
			}
		}
	}
}

// SetMessage replaces the listing with a single message line.
func (fp *filePane) SetMessage(msg string) {
	fp.entries = nil
	fp.names = nil
	fp.visible = nil
	fp.cursor = 0
	fp.message = msg
}

// Pending shows dir while its first listing is on the way.
func (fp *filePane) Pending(dir string) {
	fp.Clear()
	fp.dir = dir
	fp.message = dimStyle.Render("Listing...")
}

// Empty reports whether no entries are shown.
func (fp *filePane) Empty() bool { return len(fp.entries) == 0 }

func (fp *filePane) Clear() {
	*fp = filePane{}
}

func (fp *filePane) Dir() string { return fp.dir }

func (fp *filePane) rebuild() {
	fp.visible = filterIndices(fp.names, fp.filter)
	fp.cursor = 0
	if len(fp.visible) > 0 {
		fp.cursor = fp.offset()
	}
}

// offset is 1 when the parent row is shown.
func (fp *filePane) offset() int {
	if fp.dir == "" || fp.cat == nil || fp.dir == "/" || fp.filter != "" {
		return 0
	}
	return 1
}

func (fp *filePane) rows() int { return len(fp.visible) + fp.offset() }

func (fp *filePane) Move(delta int) {
	fp.cursor = clamp(fp.cursor+delta, 0, fp.rows()-1)
}

// OnParent reports whether the cursor is on the ".." row.
func (fp *filePane) OnParent() bool {
	return fp.offset() == 1 && fp.cursor == 0
}

// Current returns the entry under the cursor.
func (fp *filePane) Current() (*catalogue.Entry, bool) {
	i := fp.cursor - fp.offset()
	if i < 0 || i >= len(fp.visible) {
		return nil, false
	}
	return fp.entries[fp.visible[i]], true
}

// CurrentPath is the remote path of the entry under the cursor.
func (fp *filePane) CurrentPath() (string, bool) {
	e, ok := fp.Current()
	if !ok {
		return "", false
	}
	return path.Join(fp.dir, e.Name), true
}

func (fp *filePane) TypeFilter(s string) {
	fp.filter += s
	fp.rebuild()
}

func (fp *filePane) Backspace() {
	fp.filter = trimLastRune(fp.filter)
	fp.rebuild()
}

func (fp *filePane) HasActiveFilter() bool { return fp.filter != "" }

func (fp *filePane) ClearFilter() {
	fp.filter = ""
	fp.rebuild()
}

func (fp *filePane) View(width, height int) string {
	var b strings.Builder
	switch {
	case fp.filter != "":
		b.WriteString(headerStyle.Render("Filter: " + fp.filter))
	case fp.dir != "":
		b.WriteString(headerStyle.Render(truncate(fp.dir, width)))
	default:
		b.WriteString(headerStyle.Render("Please select a server"))
	}
	if fp.message != "" {
		b.WriteString("\n" + fp.message)
		return b.String()
	}
	if fp.dir != "" && fp.rows() == 0 {
		if len(fp.entries) > 0 {
			b.WriteString("\n" + dimStyle.Render("(no matches)"))
		} else {
			b.WriteString("\n" + dimStyle.Render("(empty)"))
		}
		return b.String()
	}

	rows := height - 1
	first := scrollStart(fp.cursor, fp.rows(), rows)
	for r := first; r < fp.rows() && r < first+rows; r++ {
		b.WriteByte('\n')
		if fp.offset() == 1 && r == 0 {
			b.WriteString(fp.styleRow(r, "..", folderStyle, width))
			continue
		}
		e := fp.entries[fp.visible[r-fp.offset()]]
		style := lipgloss.NewStyle()
		switch e.Stat.Kind {
		case catalogue.KindFolder:
			style = folderStyle
		case catalogue.KindSymlink:
			style = linkStyle
		}
		b.WriteString(fp.styleRow(r, truncate(fp.plainEntry(e), width), style, width))
	}
	return b.String()
}

func (fp *filePane) styleRow(r int, text string, style lipgloss.Style, width int) string {
	if r == fp.cursor {
		return cursorStyle.Width(width).Render(text)
	}
	return style.Render(text)
}

func (fp *filePane) plainEntry(e *catalogue.Entry) string {
	name, kind := e.Name, "-"
	switch e.Stat.Kind {
	case catalogue.KindFolder:
		name, kind = name+"/", "d"
	case catalogue.KindSymlink:
		name, kind = name+" -> "+e.Stat.Target, "l"
	}
	return fmt.Sprintf("%s%s %-8s %-8s %9s %s %s",
		kind,
		catalogue.ModeString(e.Stat.Mode),
		truncate(fp.cat.UserName(e.Stat), 8),
		truncate(fp.cat.GroupName(e.Stat), 8),
		catalogue.FormatSize(e.Stat.Size),
		time.Unix(e.Stat.ModTime, 0).UTC().Format("2006-01-02 15:04"),
		name)
}
