// Package channel provides the abstraction over real-time messaging
// platforms: inbound event types, adapter interfaces, and a registry used
// for outbound delivery.
package channel

import (
	"context"
	"time"

	"github.com/parleybot/parley/internal/message"
)

// Type identifies a messaging platform (e.g. "discord", "telegram").
type Type string

func (t Type) String() string {
	return string(t)
}

// Inbound is a message-arrival notification pushed by a platform adapter.
type Inbound struct {
	Platform Type
	Message  message.Message

	// ReplyTarget is the platform-native destination a reply must go to.
	ReplyTarget string
	// ReplyToID references the triggering platform message, when replies
	// can be threaded.
	ReplyToID string

	// Addressed reports whether the message was directed at the bot: a
	// direct chat, an explicit mention, or a reply to a bot message.
	Addressed bool

	BotID      string
	BotName    string
	ReceivedAt time.Time
}

// Outbound pairs a delivery target with reply text.
type Outbound struct {
	Target    string
	Text      string
	ReplyToID string
}

// InboundHandler is invoked for every message an adapter receives.
type InboundHandler func(ctx context.Context, in Inbound) error

// Adapter is the base interface every platform adapter implements.
type Adapter interface {
	Type() Type
}

// Receiver establishes a long-lived platform connection and pushes inbound
// messages to the handler.
type Receiver interface {
	Connect(ctx context.Context, handler InboundHandler) (Connection, error)
}

// Sender delivers an outbound message to the platform.
type Sender interface {
	Send(ctx context.Context, out Outbound) error
}

// Connection is an active link to a platform.
type Connection interface {
	Type() Type
	Stop(ctx context.Context) error
	Running() bool
}
