package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/parleybot/parley/internal/history"
	"github.com/parleybot/parley/internal/llm"
	"github.com/parleybot/parley/internal/message"
)

type fixedCompleter struct {
	reply   string
	err     error
	prompts [][]llm.Prompt
}

func (c *fixedCompleter) Complete(_ context.Context, prompts []llm.Prompt) (string, error) {
	c.prompts = append(c.prompts, prompts)
	return c.reply, c.err
}

func cotGateway(c llm.Completer) *llm.Gateway {
	return llm.NewGateway(nil, c, 1, time.Second)
}

func historyMsg(role message.Role, name, content string, at time.Time) message.Message {
	return message.Message{
		ID:          content,
		ChannelID:   "ch",
		Role:        role,
		DisplayName: name,
		Content:     content,
		Timestamp:   at,
	}
}

func TestChainOfThoughtMatchesEverything(t *testing.T) {
	t.Parallel()

	p := NewChainOfThoughtProcessor(nil, cotGateway(&fixedCompleter{}), 20, "")
	if !p.Matches(message.Message{Content: "anything"}) || !p.Matches(message.Message{}) {
		t.Fatal("fallback processor must match every message")
	}
}

func TestChainOfThoughtBuildsPromptWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := history.NewCache(50)
	cache.Append("ch", historyMsg(message.RoleUser, "Ada", "first question", base))
	cache.Append("ch", historyMsg(message.RoleAssistant, "parley", "first answer", base.Add(time.Second)))
	cache.Append("ch", historyMsg(message.RoleUser, "Grace", "second question", base.Add(2*time.Second)))

	completer := &fixedCompleter{reply: "an answer"}
	p := NewChainOfThoughtProcessor(nil, cotGateway(completer), 2, "be brief")

	msg := historyMsg(message.RoleUser, "Ada", "new question", base.Add(3*time.Second))
	decision, err := p.Handle(context.Background(), msg, cache)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Result.Kind != KindReply || decision.Result.Content != "an answer" {
		t.Fatalf("unexpected result: %+v", decision.Result)
	}

	if len(completer.prompts) != 1 {
		t.Fatalf("completer called %d times, want 1", len(completer.prompts))
	}
	prompts := completer.prompts[0]
	// System prompt, the two most recent cached turns, then the new message.
	want := []llm.Prompt{
		{Role: "system", Content: "be brief"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "Grace: second question"},
		{Role: "user", Content: "Ada: new question"},
	}
	if len(prompts) != len(want) {
		t.Fatalf("built %d prompts, want %d: %+v", len(prompts), len(want), prompts)
	}
	for i := range want {
		if prompts[i].Role != want[i].Role || prompts[i].Content != want[i].Content {
			t.Fatalf("prompt %d = %+v, want %+v", i, prompts[i], want[i])
		}
	}
}

func TestChainOfThoughtEmptyHistory(t *testing.T) {
	t.Parallel()

	completer := &fixedCompleter{reply: "hi"}
	p := NewChainOfThoughtProcessor(nil, cotGateway(completer), 20, "")

	msg := historyMsg(message.RoleUser, "Ada", "hello", time.Now().UTC())
	if _, err := p.Handle(context.Background(), msg, history.NewCache(10)); err != nil {
		t.Fatal(err)
	}
	prompts := completer.prompts[0]
	if len(prompts) != 2 {
		t.Fatalf("built %d prompts, want system + user", len(prompts))
	}
	if prompts[0].Role != "system" || prompts[0].Content == "" {
		t.Fatal("default system prompt missing")
	}
}

func TestChainOfThoughtFailureCarriesReason(t *testing.T) {
	t.Parallel()

	completer := &fixedCompleter{err: &llm.Error{Reason: llm.ReasonTimeout}}
	p := NewChainOfThoughtProcessor(nil, cotGateway(completer), 20, "")

	msg := historyMsg(message.RoleUser, "Ada", "hello", time.Now().UTC())
	decision, err := p.Handle(context.Background(), msg, history.NewCache(10))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Verdict != VerdictStop {
		t.Fatal("failure must terminate the pipeline")
	}
	if decision.Result.Kind != KindFailed {
		t.Fatalf("kind = %v, want failed", decision.Result.Kind)
	}
	if decision.Result.Reason != string(llm.ReasonTimeout) {
		t.Fatalf("reason = %q, want %q", decision.Result.Reason, llm.ReasonTimeout)
	}
}

func TestChainOfThoughtStripsEchoedNamePrefix(t *testing.T) {
	t.Parallel()

	completer := &fixedCompleter{reply: "Ada: you asked about Go"}
	p := NewChainOfThoughtProcessor(nil, cotGateway(completer), 20, "")

	msg := historyMsg(message.RoleUser, "Ada", "what did I ask", time.Now().UTC())
	decision, err := p.Handle(context.Background(), msg, history.NewCache(10))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Result.Content != "you asked about Go" {
		t.Fatalf("got %q, echoed prefix not stripped", decision.Result.Content)
	}
}
