package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type scriptedCompleter struct {
	calls   int
	results []error
	text    string
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompts []Prompt) (string, error) {
	idx := c.calls
	c.calls++
	if idx >= len(c.results) {
		idx = len(c.results) - 1
	}
	if err := c.results[idx]; err != nil {
		return "", err
	}
	return c.text, nil
}

func newTestGateway(client Completer, maxAttempts int) *Gateway {
	g := NewGateway(slog.Default(), client, maxAttempts, time.Second)
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return g
}

func TestCompleteSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{results: []error{nil}, text: "hello"}
	g := newTestGateway(client, 3)

	text, err := g.Complete(context.Background(), []Prompt{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello" || client.calls != 1 {
		t.Fatalf("text=%q calls=%d", text, client.calls)
	}
}

func TestCompleteRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{
		results: []error{
			&Error{Reason: ReasonRateLimited},
			&Error{Reason: ReasonUpstream},
			nil,
		},
		text: "eventually",
	}
	g := newTestGateway(client, 3)

	text, err := g.Complete(context.Background(), []Prompt{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "eventually" || client.calls != 3 {
		t.Fatalf("text=%q calls=%d", text, client.calls)
	}
}

func TestCompleteExhaustsRetryCeiling(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{results: []error{&Error{Reason: ReasonTimeout}}}
	g := newTestGateway(client, 3)

	_, err := g.Complete(context.Background(), []Prompt{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.calls)
	}
	if ReasonOf(err) != ReasonTimeout {
		t.Fatalf("expected timeout reason, got %s", ReasonOf(err))
	}
}

func TestCompleteFailsFastOnNonRetryable(t *testing.T) {
	t.Parallel()

	for _, reason := range []Reason{ReasonBadRequest, ReasonUnauthorized} {
		client := &scriptedCompleter{results: []error{&Error{Reason: reason}}}
		g := newTestGateway(client, 3)

		_, err := g.Complete(context.Background(), []Prompt{{Role: "user", Content: "hi"}})
		if err == nil {
			t.Fatalf("%s: expected error", reason)
		}
		if client.calls != 1 {
			t.Fatalf("%s: expected 1 attempt, got %d", reason, client.calls)
		}
	}
}

func TestCompleteStopsWhenParentContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	client := &scriptedCompleter{results: []error{&Error{Reason: ReasonUpstream}}}
	g := newTestGateway(client, 5)
	g.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return nil
	}

	_, err := g.Complete(ctx, []Prompt{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if client.calls > 2 {
		t.Fatalf("expected retries to stop after cancellation, got %d calls", client.calls)
	}
}

type scriptedVisionCompleter struct {
	scriptedCompleter
	caption string
}

func (c *scriptedVisionCompleter) Describe(ctx context.Context, url string) (string, error) {
	idx := c.calls
	c.calls++
	if idx >= len(c.results) {
		idx = len(c.results) - 1
	}
	if err := c.results[idx]; err != nil {
		return "", err
	}
	return c.caption, nil
}

func TestDescribeRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	client := &scriptedVisionCompleter{
		scriptedCompleter: scriptedCompleter{results: []error{&Error{Reason: ReasonUpstream}, nil}},
		caption:           "a red bicycle",
	}
	g := newTestGateway(client, 3)

	caption, err := g.Describe(context.Background(), "https://cdn/bike.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caption != "a red bicycle" || client.calls != 2 {
		t.Fatalf("caption=%q calls=%d", caption, client.calls)
	}
}

func TestDescribeRejectsNonVisionClient(t *testing.T) {
	t.Parallel()

	g := newTestGateway(&scriptedCompleter{results: []error{nil}}, 3)
	_, err := g.Describe(context.Background(), "https://cdn/pic.png")
	if err == nil {
		t.Fatal("expected error")
	}
	if ReasonOf(err) != ReasonBadRequest {
		t.Fatalf("expected bad_request reason, got %s", ReasonOf(err))
	}
}

func TestReasonOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want Reason
	}{
		{err: &Error{Reason: ReasonRateLimited}, want: ReasonRateLimited},
		{err: context.DeadlineExceeded, want: ReasonTimeout},
		{err: context.Canceled, want: ReasonCanceled},
		{err: errors.New("boom"), want: ReasonUpstream},
	}
	for _, tc := range cases {
		if got := ReasonOf(tc.err); got != tc.want {
			t.Fatalf("ReasonOf(%v)=%s want %s", tc.err, got, tc.want)
		}
	}
}
