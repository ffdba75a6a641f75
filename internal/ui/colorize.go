package ui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// colorRule pairs a compiled regex with the style its matches are drawn in.
type colorRule struct {
	pattern *regexp.Regexp
	style   lipgloss.Style
}

// rules are tried left to right on each line; at any position the first
// rule that matches wins and the text it covers is not looked at again.
var rules = []colorRule{
	// Log levels
	{regexp.MustCompile(`(?i)\b(?:ERROR|FATAL|PANIC)\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)},
	{regexp.MustCompile(`(?i)\b(?:WARN|WARNING)\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("11"))},
	{regexp.MustCompile(`(?i)\bINFO\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("10"))},
	{regexp.MustCompile(`(?i)\b(?:DEBUG|TRACE)\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("8"))},
	// ISO 8601 timestamps, dates and times
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?`), lipgloss.NewStyle().Foreground(lipgloss.Color("12"))},
	{regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}(?:\.\d+)?\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("12"))},
	// IPv4 addresses
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("6"))},
	// HTTP methods and error statuses
	{regexp.MustCompile(`\b(?:GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("5"))},
	{regexp.MustCompile(`\b5\d{2}\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("9"))},
	{regexp.MustCompile(`\b4\d{2}\b`), lipgloss.NewStyle().Foreground(lipgloss.Color("11"))},
	// Quoted strings
	{regexp.MustCompile(`"[^"]*"`), lipgloss.NewStyle().Foreground(lipgloss.Color("14"))},
}

// ColorizeLine styles the interesting tokens of one line of file content.
func ColorizeLine(line string) string {
	var b strings.Builder
	rest := line
	for rest != "" {
		start, end, style := -1, -1, lipgloss.Style{}
		for _, r := range rules {
			loc := r.pattern.FindStringIndex(rest)
			if loc == nil || loc[1] == loc[0] {
				continue
			}
			if start < 0 || loc[0] < start {
				start, end, style = loc[0], loc[1], r.style
			}
		}
		if start < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(style.Render(rest[start:end]))
		rest = rest[end:]
	}
	return b.String()
}

// highlightFilter marks every case-insensitive occurrence of query in line.
func highlightFilter(line, query string) string {
	if query == "" {
		return line
	}
	lower := strings.ToLower(query)
	var b strings.Builder
	rest := line
	for {
		idx := strings.Index(strings.ToLower(rest), lower)
		if idx == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		b.WriteString(highlightStyle.Render(rest[idx : idx+len(query)]))
		rest = rest[idx+len(query):]
	}
	return b.String()
}
