package ui

import (
	"strings"

	"remotefs/internal/config"
)

// serverPane lists the configured servers.
type serverPane struct {
	servers  []config.ServerConfig
	names    []string
	selected int // index into servers, -1 means none
	cursor   int // index into visible

	// Fuzzy filter state
	filter  string
	visible []int // maps displayed row -> index into servers
}

func newServerPane(servers []config.ServerConfig) serverPane {
	sp := serverPane{servers: servers, selected: -1}
	for _, s := range servers {
		sp.names = append(sp.names, s.Name)
	}
	sp.rebuild()
	return sp
}

// rebuild recomputes visible rows and keeps the cursor on the selected
// server when it is still shown.
func (sp *serverPane) rebuild() {
	sp.visible = filterIndices(sp.names, sp.filter)
	sp.cursor = 0
	for i, idx := range sp.visible {
		if idx == sp.selected {
			sp.cursor = i
		}
	}
}

func (sp *serverPane) Move(delta int) {
	sp.cursor = clamp(sp.cursor+delta, 0, len(sp.visible)-1)
}

// Current returns the server under the cursor.
func (sp *serverPane) Current() (int, config.ServerConfig, bool) {
	if sp.cursor < 0 || sp.cursor >= len(sp.visible) {
		return -1, config.ServerConfig{}, false
	}
	idx := sp.visible[sp.cursor]
	return idx, sp.servers[idx], true
}

func (sp *serverPane) MarkSelected(idx int) {
	sp.selected = idx
	sp.rebuild()
}

func (sp *serverPane) TypeFilter(s string) {
	sp.filter += s
	sp.rebuild()
}

func (sp *serverPane) Backspace() {
	sp.filter = trimLastRune(sp.filter)
	sp.rebuild()
}

func (sp *serverPane) HasActiveFilter() bool { return sp.filter != "" }

func (sp *serverPane) ClearFilter() {
	sp.filter = ""
	sp.rebuild()
}

func (sp *serverPane) View(width, height int) string {
	var b strings.Builder
	if sp.filter != "" {
		b.WriteString(headerStyle.Render("Filter: " + sp.filter))
	} else {
		b.WriteString(headerStyle.Render("Servers"))
	}
	rows := height - 1
	first := scrollStart(sp.cursor, len(sp.visible), rows)
	for i := first; i < len(sp.visible) && i < first+rows; i++ {
		idx := sp.visible[i]
		name := sp.servers[idx].Name
		if idx == sp.selected {
			name = "* " + name
		} else {
			name = "  " + name
		}
		name = truncate(name, width)
		b.WriteByte('\n')
		if i == sp.cursor {
			b.WriteString(cursorStyle.Width(width).Render(name))
		} else {
			b.WriteString(name)
		}
	}
	if len(sp.visible) == 0 {
		b.WriteString("\n" + dimStyle.Render("(no matches)"))
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// scrollStart returns the first row to draw so that cursor stays visible.
func scrollStart(cursor, total, rows int) int {
	if rows <= 0 || total <= rows || cursor < rows {
		return 0
	}
	return clamp(cursor-rows+1, 0, total-rows)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
