package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"  leading and   inner  ", "leading and inner"},
		{"line\none\n\nline two", "line one line two"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CollapseWhitespace(tt.in); got != tt.want {
			t.Errorf("CollapseWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 10, "…"); got != "short" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := Truncate("exactly10!", 10, "…"); got != "exactly10!" {
		t.Fatalf("input at the limit changed: %q", got)
	}

	got := Truncate(strings.Repeat("a", 20), 10, "…")
	if got != strings.Repeat("a", 10)+"…" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	t.Parallel()

	// "é" is two bytes; an odd byte limit lands mid-rune.
	in := strings.Repeat("é", 10)
	got := Truncate(in, 7, "…")
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if want := strings.Repeat("é", 3) + "…"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
