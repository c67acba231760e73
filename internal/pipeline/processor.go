// Package pipeline routes inbound messages through an ordered set of
// processors and resolves exactly one outcome per message.
package pipeline

import (
	"context"

	"github.com/parleybot/parley/internal/message"
)

// ResultKind is the terminal outcome of processing one message.
type ResultKind int

const (
	// KindSuppressed means the message produced no conversational reply.
	KindSuppressed ResultKind = iota
	// KindReply means an assistant reply was generated.
	KindReply
	// KindFailed means processing was attempted and failed.
	KindFailed
)

func (k ResultKind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindFailed:
		return "failed"
	default:
		return "suppressed"
	}
}

// Result is the single outcome the router produces per message. Content is
// the assistant reply and becomes part of the conversation history; Notice
// is a short out-of-band line delivered but never cached.
type Result struct {
	Kind    ResultKind
	Content string
	Notice  string
	Reason  string
}

// Verdict tells the router whether a processor terminated the pipeline.
type Verdict int

const (
	// VerdictStop ends the pipeline with the processor's Result.
	VerdictStop Verdict = iota
	// VerdictContinue passes control to the next matching processor,
	// optionally with a rewritten message.
	VerdictContinue
)

// Decision is a processor's response to one message.
type Decision struct {
	Verdict Verdict
	Message message.Message
	Result  Result
}

// Stop builds a terminating decision.
func Stop(result Result) Decision {
	return Decision{Verdict: VerdictStop, Result: result}
}

// Continue passes the (possibly rewritten) message onward.
func Continue(msg message.Message) Decision {
	return Decision{Verdict: VerdictContinue, Message: msg}
}

// History is the read-only cache view handed to processors.
type History interface {
	Recent(channelID string, k int) []message.Message
	Snapshot(channelID string) []message.Message
}

// Processor is one unit of pipeline logic.
type Processor interface {
	// Matches reports whether this processor wants the message.
	Matches(msg message.Message) bool
	// Handle processes the message. A returned error is equivalent to a
	// failed result; the router never partially applies it.
	Handle(ctx context.Context, msg message.Message, hist History) (Decision, error)
}

// Descriptor registers a processor under a stable name and priority. Lower
// priority values run first; registration order breaks ties.
type Descriptor struct {
	Name      string
	Priority  int
	Processor Processor
}
