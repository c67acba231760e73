package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parleybot/parley/internal/llm"
	"github.com/parleybot/parley/internal/message"
)

const defaultSystemPrompt = "You are a helpful assistant in a group chat. " +
	"Reply conversationally and concisely. User messages are prefixed with " +
	"the sender's name; never prefix your own replies with a name."

// ChainOfThoughtProcessor is the default handler: it grounds the model in
// the channel's recent history and asks the gateway for a reply.
type ChainOfThoughtProcessor struct {
	gateway      *llm.Gateway
	window       int
	systemPrompt string
	logger       *slog.Logger
}

func NewChainOfThoughtProcessor(log *slog.Logger, gateway *llm.Gateway, window int, systemPrompt string) *ChainOfThoughtProcessor {
	if log == nil {
		log = slog.Default()
	}
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if window <= 0 {
		window = 20
	}
	return &ChainOfThoughtProcessor{
		gateway:      gateway,
		window:       window,
		systemPrompt: systemPrompt,
		logger:       log.With(slog.String("component", "cot_processor")),
	}
}

// Matches always; this processor is the pipeline fallback.
func (p *ChainOfThoughtProcessor) Matches(message.Message) bool {
	return true
}

func (p *ChainOfThoughtProcessor) Handle(ctx context.Context, msg message.Message, hist History) (Decision, error) {
	prompts := p.buildPrompts(msg, hist.Recent(msg.ChannelID, p.window))

	text, err := p.gateway.Complete(ctx, prompts)
	if err != nil {
		reason := string(llm.ReasonOf(err))
		p.logger.Error("completion failed",
			slog.String("channel_id", msg.ChannelID),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		return Stop(Result{Kind: KindFailed, Reason: reason}), nil
	}

	p.logger.Info("reply generated",
		slog.String("channel_id", msg.ChannelID),
		slog.Int("context_messages", len(prompts)-2),
	)
	return Stop(Result{Kind: KindReply, Content: stripSelfPrefix(text, msg.DisplayName)}), nil
}

// buildPrompts assembles the completion request: system instruction, the
// history window, then the new user message. The triggering message is not
// yet in the cache, so it is appended explicitly.
func (p *ChainOfThoughtProcessor) buildPrompts(msg message.Message, recent []message.Message) []llm.Prompt {
	prompts := make([]llm.Prompt, 0, len(recent)+2)
	prompts = append(prompts, llm.Prompt{Role: "system", Content: p.systemPrompt})
	for _, m := range recent {
		prompts = append(prompts, toPrompt(m))
	}
	prompts = append(prompts, toPrompt(msg))
	return prompts
}

// toPrompt renders a cached message for the model. User turns carry the
// sender's display name inline so the model can track who said what in a
// multi-party channel.
func toPrompt(m message.Message) llm.Prompt {
	if m.Role == message.RoleAssistant {
		return llm.Prompt{Role: "assistant", Content: m.Content}
	}
	content := m.Content
	if m.DisplayName != "" {
		content = fmt.Sprintf("%s: %s", m.DisplayName, m.Content)
	}
	return llm.Prompt{Role: "user", Content: content}
}

// stripSelfPrefix removes an echoed "Name: " prefix the model sometimes
// copies from the user-turn format.
func stripSelfPrefix(text, displayName string) string {
	if displayName == "" {
		return text
	}
	return strings.TrimPrefix(text, displayName+": ")
}
