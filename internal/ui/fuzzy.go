package ui

import (
	"strings"
	"unicode/utf8"
)

// FuzzyMatch returns true if every character of pattern appears in text in
// order (but not necessarily adjacent). The comparison is case-insensitive.
func FuzzyMatch(text, pattern string) bool {
	if pattern == "" {
		return true
	}
	want := []rune(strings.ToLower(pattern))
	pi := 0
	for _, r := range strings.ToLower(text) {
		if want[pi] == r {
			pi++
			if pi == len(want) {
				return true
			}
		}
	}
	return false
}

// filterIndices returns the indices of names that match query, or all of
// them when query is empty.
func filterIndices(names []string, query string) []int {
	idx := make([]int, 0, len(names))
	for i, n := range names {
		if FuzzyMatch(n, query) {
			idx = append(idx, i)
		}
	}
	return idx
}

// trimLastRune drops the final rune of s, for backspace handling.
func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}
