package telegram

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestIsBotMentioned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      *tgbotapi.Message
		username string
		want     bool
	}{
		{"nil message", nil, "parleybot", false},
		{"mention in text", &tgbotapi.Message{Text: "hey @parleybot hi"}, "parleybot", true},
		{"mention case insensitive", &tgbotapi.Message{Text: "@ParleyBot hello"}, "parleybot", true},
		{"mention in caption", &tgbotapi.Message{Caption: "@parleybot look"}, "parleybot", true},
		{"other user mentioned", &tgbotapi.Message{Text: "@someone hello"}, "parleybot", false},
		{"empty username", &tgbotapi.Message{Text: "@parleybot"}, "", false},
		{"username with at prefix", &tgbotapi.Message{Text: "@parleybot hi"}, "@parleybot", true},
	}
	for _, tt := range tests {
		if got := isBotMentioned(tt.msg, tt.username); got != tt.want {
			t.Errorf("%s: isBotMentioned = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStripMention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"@parleybot hello", "hello"},
		{"hello @parleybot", "hello"},
		{"no mention here", "no mention here"},
	}
	for _, tt := range tests {
		if got := stripMention(tt.in, "parleybot"); got != tt.want {
			t.Errorf("stripMention(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from *tgbotapi.User
		want string
	}{
		{"full name", &tgbotapi.User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first name only", &tgbotapi.User{FirstName: "Ada"}, "Ada"},
		{"username fallback", &tgbotapi.User{UserName: "ada"}, "ada"},
	}
	for _, tt := range tests {
		if got := displayName(tt.from); got != tt.want {
			t.Errorf("%s: displayName = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPickLargestPhoto(t *testing.T) {
	t.Parallel()

	photos := []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "large", Width: 800, Height: 600},
		{FileID: "medium", Width: 320, Height: 240},
	}
	if got := pickLargestPhoto(photos); got.FileID != "large" {
		t.Fatalf("picked %q, want large", got.FileID)
	}
}

func TestTruncateTextRuneBoundary(t *testing.T) {
	t.Parallel()

	short := "hello"
	if got := truncateText(short); got != short {
		t.Fatalf("short text changed: %q", got)
	}

	// Multi-byte runes across the limit must not be split.
	long := strings.Repeat("é", 3000)
	got := truncateText(long)
	if len(got) > maxMessageLength {
		t.Fatalf("truncated to %d bytes, over the limit", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("truncated text missing ellipsis")
	}
	trimmed := strings.TrimSuffix(got, "...")
	for _, r := range trimmed {
		if r != 'é' {
			t.Fatalf("rune corrupted to %q", r)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	if got := sanitizeText("clean"); got != "clean" {
		t.Fatalf("valid text changed: %q", got)
	}
	invalid := string([]byte{0xff, 'h', 'i'})
	if got := sanitizeText(invalid); got != "hi" {
		t.Fatalf("sanitized to %q, want hi", got)
	}
}
