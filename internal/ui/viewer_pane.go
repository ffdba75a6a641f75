package ui

import (
	"fmt"
	"strings"
)

const defaultViewerTitle = "Viewer"
const maxLines = 10000

// viewerPane shows file content or command output. Lines past maxLines are
// dropped from the top.
type viewerPane struct {
	title  string
	lines  []string
	filter string
	offset int  // first displayed line of the filtered view
	follow bool // keep the view pinned to the bottom
}

func newViewerPane() viewerPane {
	return viewerPane{title: defaultViewerTitle, follow: true}
}

// SetText replaces the content.
func (vp *viewerPane) SetText(title, text string) {
	vp.title = title
	text = strings.TrimRight(strings.ReplaceAll(text, "\r", ""), "\n")
	vp.lines = nil
	if text != "" {
		vp.lines = strings.Split(text, "\n")
	}
	if len(vp.lines) > maxLines {
		vp.lines = vp.lines[len(vp.lines)-maxLines:]
	}
	vp.offset = 0
	vp.follow = true
}

// SetMessage shows a single message with no content behind it.
func (vp *viewerPane) SetMessage(msg string) {
	vp.title = defaultViewerTitle
	vp.lines = []string{msg}
	vp.offset = 0
}

func (vp *viewerPane) Clear() {
	*vp = newViewerPane()
}

func (vp *viewerPane) SetFilter(query string) {
	vp.filter = query
	vp.offset = 0
	vp.follow = true
}

func (vp *viewerPane) HasActiveFilter() bool { return vp.filter != "" }

// shown returns the lines that pass the filter.
func (vp *viewerPane) shown() []string {
	if vp.filter == "" {
		return vp.lines
	}
	return filterLines(vp.lines, vp.filter)
}

// Scroll moves the view by delta lines for a pane of the given height.
func (vp *viewerPane) Scroll(delta, height int) {
	n := len(vp.shown())
	last := max(n-height, 0)
	if vp.follow {
		vp.offset = last
	}
	vp.offset = clamp(vp.offset+delta, 0, last)
	vp.follow = vp.offset == last
}

func (vp *viewerPane) Top() {
	vp.offset = 0
	vp.follow = false
}

func (vp *viewerPane) Bottom() {
	vp.follow = true
}

// Title is the pane title including the line count.
func (vp *viewerPane) Title() string {
	if len(vp.lines) == 0 {
		return vp.title
	}
	if vp.filter != "" {
		return fmt.Sprintf("%s (%s of %s lines, filter %q)", vp.title,
			formatLineCount(len(vp.shown())), formatLineCount(len(vp.lines)), vp.filter)
	}
	return fmt.Sprintf("%s (%s lines)", vp.title, formatLineCount(len(vp.lines)))
}

func (vp *viewerPane) View(width, height int) string {
	lines := vp.shown()
	if height <= 0 {
		return ""
	}
	start := vp.offset
	if vp.follow {
		start = max(len(lines)-height, 0)
	}
	end := min(start+height, len(lines))
	out := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		l = truncate(strings.ReplaceAll(l, "\t", "    "), width)
		if vp.filter != "" {
			out = append(out, highlightFilter(l, vp.filter))
		} else {
			out = append(out, ColorizeLine(l))
		}
	}
	return strings.Join(out, "\n")
}

// filterLines keeps the lines that contain query, case-insensitively.
func filterLines(lines []string, query string) []string {
	lowerQuery := strings.ToLower(query)
	var kept []string
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), lowerQuery) {
			kept = append(kept, line)
		}
	}
	return kept
}

// formatLineCount returns the line count formatted with commas.
func formatLineCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
