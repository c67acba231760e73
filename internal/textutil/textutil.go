// Package textutil provides small helpers for bounding user-visible text.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// CollapseWhitespace folds all runs of whitespace, newlines included, into
// single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate limits s to maxBytes, cutting on a rune boundary and appending
// the ellipsis when truncation occurs. The result may exceed maxBytes by
// the ellipsis length.
func Truncate(s string, maxBytes int, ellipsis string) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	return safeUTF8Prefix(s, maxBytes) + ellipsis
}

// safeUTF8Prefix returns the longest prefix of s within maxBytes that does
// not split a rune.
func safeUTF8Prefix(s string, maxBytes int) string {
	if maxBytes >= len(s) {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
