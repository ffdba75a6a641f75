package ui

import (
	"regexp"
	"strings"
	"testing"
)

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(s string) string { return ansiSeq.ReplaceAllString(s, "") }

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		text, pattern string
		want          bool
	}{
		{"production-web", "", true},
		{"production-web", "pweb", true},
		{"production-web", "PWEB", true},
		{"production-web", "bew", false},
		{"db1", "db12", false},
		{"café-backup", "éb", true},
	}
	for _, tt := range tests {
		if got := FuzzyMatch(tt.text, tt.pattern); got != tt.want {
			t.Errorf("FuzzyMatch(%q, %q) = %v, want %v", tt.text, tt.pattern, got, tt.want)
		}
	}
}

func TestTrimLastRune(t *testing.T) {
	if got := trimLastRune("abé"); got != "ab" {
		t.Errorf("trimLastRune = %q", got)
	}
	if got := trimLastRune(""); got != "" {
		t.Errorf("trimLastRune(\"\") = %q", got)
	}
}

func TestColorizeLineKeepsText(t *testing.T) {
	lines := []string{
		`2024-03-01 10:00:00 ERROR request "GET /x" from 10.0.0.1 returned 503`,
		"plain text without tokens",
		"",
	}
	for _, l := range lines {
		if got := plain(ColorizeLine(l)); got != l {
			t.Errorf("ColorizeLine changed text:\n got %q\nwant %q", got, l)
		}
	}
}

func TestHighlightFilterKeepsCase(t *testing.T) {
	if got := plain(highlightFilter("Error and error", "ERROR")); got != "Error and error" {
		t.Errorf("highlightFilter = %q", got)
	}
}

func TestFormatLineCount(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567"}
	for n, want := range tests {
		if got := formatLineCount(n); got != want {
			t.Errorf("formatLineCount(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestViewerFilterAndScroll(t *testing.T) {
	vp := newViewerPane()
	var b strings.Builder
	for i := 0; i < 30; i++ {
		if i%10 == 0 {
			b.WriteString("WARN tick\n")
		} else {
			b.WriteString("ok\n")
		}
	}
	vp.SetText("app.log", b.String())
	if len(vp.lines) != 30 {
		t.Fatalf("lines = %d", len(vp.lines))
	}
	if !strings.Contains(vp.Title(), "30 lines") {
		t.Errorf("title = %q", vp.Title())
	}

	// Following: the last lines are shown.
	if got := strings.Count(vp.View(80, 5), "\n"); got != 4 {
		t.Errorf("view has %d line breaks", got)
	}
	vp.Top()
	if first := strings.SplitN(plain(vp.View(80, 5)), "\n", 2)[0]; first != "WARN tick" {
		t.Errorf("top line = %q", first)
	}
	vp.Scroll(100, 5)
	if !vp.follow || vp.offset != 25 {
		t.Errorf("offset %d follow %v after scrolling past the end", vp.offset, vp.follow)
	}
	vp.Scroll(-3, 5)
	if vp.follow || vp.offset != 22 {
		t.Errorf("offset %d follow %v", vp.offset, vp.follow)
	}

	vp.SetFilter("warn")
	if got := len(vp.shown()); got != 3 {
		t.Errorf("filtered lines = %d", got)
	}
	if !strings.Contains(vp.Title(), "3 of 30") {
		t.Errorf("title = %q", vp.Title())
	}
}

func TestViewerKeepsLastLines(t *testing.T) {
	vp := newViewerPane()
	vp.SetText("big", strings.Repeat("x\n", maxLines+5))
	if len(vp.lines) != maxLines {
		t.Errorf("lines = %d, want %d", len(vp.lines), maxLines)
	}
}

func TestServerPaneKeepsSelection(t *testing.T) {
	sp := newServerPane(testServers)
	sp.MarkSelected(1)
	if idx, _, _ := sp.Current(); idx != 1 {
		t.Errorf("cursor on %d after MarkSelected", idx)
	}
	sp.TypeFilter("zzz")
	if _, _, ok := sp.Current(); ok {
		t.Error("current server with no matches")
	}
	sp.Move(1)
	sp.Backspace()
	sp.ClearFilter()
	if idx, _, _ := sp.Current(); idx != 1 {
		t.Errorf("cursor on %d after clearing filter", idx)
	}
	if !strings.Contains(plain(sp.View(20, 10)), "* db1") {
		t.Error("selected server not marked")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"toolong", 4, "too…"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}
