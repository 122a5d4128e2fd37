package util

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// JoinURL concatenates base and path with exactly one slash between them.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// ExpandID replaces every {id} in path with the escaped id.
func ExpandID(path, id string) string {
	return strings.ReplaceAll(path, "{id}", url.PathEscape(id))
}

// Truncate shortens s to at most n bytes, marking the cut. It never splits a rune.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
