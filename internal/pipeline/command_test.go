package pipeline

import (
	"context"
	"testing"

	"github.com/parleybot/parley/internal/message"
)

type fakeWiper struct {
	cleared    []string
	clearedAll bool
	hasHistory bool
}

func (w *fakeWiper) Clear(channelID string) bool {
	w.cleared = append(w.cleared, channelID)
	return w.hasHistory
}

func (w *fakeWiper) ClearAll() {
	w.clearedAll = true
}

func commandMsg(content string) message.Message {
	return message.Message{ID: "m1", ChannelID: "ch", Role: message.RoleUser, Content: content}
}

func TestCommandMatches(t *testing.T) {
	t.Parallel()

	p := NewCommandProcessor(nil, &fakeWiper{})
	tests := []struct {
		content string
		want    bool
	}{
		{"/ping", true},
		{"  /ping  ", true},
		{"/lobotomy --all", true},
		{"/unknown", true},
		{"ping", false},
		{"hello /ping", false},
		{"/", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := p.Matches(commandMsg(tt.content)); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestCommandPing(t *testing.T) {
	t.Parallel()

	p := NewCommandProcessor(nil, &fakeWiper{})
	decision, err := p.Handle(context.Background(), commandMsg("/ping"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Verdict != VerdictStop {
		t.Fatal("ping did not terminate the pipeline")
	}
	if decision.Result.Kind != KindReply || decision.Result.Content != "pong" {
		t.Fatalf("unexpected result: %+v", decision.Result)
	}
}

func TestCommandLobotomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		hasHistory bool
		wantKind   ResultKind
		wantText   string
		wantAll    bool
	}{
		{"clears channel", "/lobotomy", true, KindReply, "All gone.", false},
		{"nothing to clear", "/lobotomy", false, KindSuppressed, "Nothing to forget here.", false},
		{"clears everywhere", "/lobotomy --all", false, KindReply, "All gone. Everywhere.", true},
		{"case insensitive", "/LOBOTOMY", true, KindReply, "All gone.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wiper := &fakeWiper{hasHistory: tt.hasHistory}
			p := NewCommandProcessor(nil, wiper)
			decision, err := p.Handle(context.Background(), commandMsg(tt.content), nil)
			if err != nil {
				t.Fatal(err)
			}
			result := decision.Result
			if result.Kind != tt.wantKind {
				t.Fatalf("kind = %v, want %v", result.Kind, tt.wantKind)
			}
			text := result.Content
			if tt.wantKind == KindSuppressed {
				text = result.Notice
			}
			if text != tt.wantText {
				t.Fatalf("text = %q, want %q", text, tt.wantText)
			}
			if wiper.clearedAll != tt.wantAll {
				t.Fatalf("clearedAll = %v, want %v", wiper.clearedAll, tt.wantAll)
			}
			if !tt.wantAll && tt.wantKind == KindReply && len(wiper.cleared) != 1 {
				t.Fatalf("cleared %v, want the one channel", wiper.cleared)
			}
		})
	}
}

func TestCommandUnknown(t *testing.T) {
	t.Parallel()

	p := NewCommandProcessor(nil, &fakeWiper{})
	decision, err := p.Handle(context.Background(), commandMsg("/selfdestruct"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Result.Kind != KindSuppressed {
		t.Fatalf("kind = %v, want suppressed", decision.Result.Kind)
	}
	if decision.Result.Notice != "I don't recognize /selfdestruct." {
		t.Fatalf("notice = %q", decision.Result.Notice)
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		content  string
		wantName string
		wantArgs []string
	}{
		{"/ping", "ping", nil},
		{"/lobotomy --all", "lobotomy", []string{"--all"}},
		{"/Ping extra words", "ping", []string{"extra", "words"}},
		{"not a command", "", nil},
		{"/   ", "", nil},
	}
	for _, tt := range tests {
		name, args := parseCommand(tt.content)
		if name != tt.wantName {
			t.Errorf("parseCommand(%q) name = %q, want %q", tt.content, name, tt.wantName)
		}
		if len(args) != len(tt.wantArgs) {
			t.Errorf("parseCommand(%q) args = %v, want %v", tt.content, args, tt.wantArgs)
			continue
		}
		for i := range args {
			if args[i] != tt.wantArgs[i] {
				t.Errorf("parseCommand(%q) args = %v, want %v", tt.content, args, tt.wantArgs)
			}
		}
	}
}
