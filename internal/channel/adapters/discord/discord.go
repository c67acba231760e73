// Package discord connects the bot to Discord over the gateway websocket.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/parleybot/parley/internal/channel"
	"github.com/parleybot/parley/internal/message"
	"github.com/parleybot/parley/internal/textutil"
)

// Type identifies this adapter in the registry.
const Type = channel.Type("discord")

const inboundDedupTTL = time.Minute

// Adapter is the Discord platform adapter. One adapter owns one bot token
// and one gateway session.
type Adapter struct {
	token  string
	logger *slog.Logger

	mu           sync.Mutex
	session      *discordgo.Session
	seenMessages map[string]time.Time // keyed by message ID
}

func NewAdapter(log *slog.Logger, token string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		token:        token,
		logger:       log.With(slog.String("adapter", "discord")),
		seenMessages: make(map[string]time.Time),
	}
}

func (a *Adapter) Type() channel.Type {
	return Type
}

func (a *Adapter) getOrCreateSession() (*discordgo.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return a.session, nil
	}

	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return nil, fmt.Errorf("discord create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	a.session = session
	return session, nil
}

// Connect opens the gateway session and registers the message handler.
func (a *Adapter) Connect(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	session, err := a.getOrCreateSession()
	if err != nil {
		return nil, err
	}

	remove := session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if a.isDuplicateInbound(m.ID) {
			return
		}

		botID := s.State.User.ID
		text := strings.TrimSpace(m.Content)
		if text == "" && len(m.Attachments) == 0 {
			return
		}

		in := a.buildInbound(s, m, botID, text)
		a.logger.Info("inbound received",
			slog.String("channel_id", m.ChannelID),
			slog.String("user_id", m.Author.ID),
			slog.Bool("addressed", in.Addressed),
		)

		// Synchronous publish keeps same-channel arrival order intact; a
		// full queue back-pressures the session instead of spawning
		// unordered goroutines.
		if err := handler(ctx, in); err != nil {
			a.logger.Error("handle inbound failed",
				slog.String("message_id", m.ID),
				slog.Any("error", err),
			)
		}
	})

	if err := session.Open(); err != nil {
		remove()
		return nil, fmt.Errorf("discord open connection: %w", err)
	}

	stop := func(context.Context) error {
		a.logger.Info("stop")
		remove()
		a.mu.Lock()
		a.session = nil
		a.mu.Unlock()
		return session.Close()
	}
	return channel.NewConnection(Type, stop), nil
}

func (a *Adapter) buildInbound(s *discordgo.Session, m *discordgo.MessageCreate, botID, text string) channel.Inbound {
	isDirect := m.GuildID == ""
	isMentioned := isBotMentioned(m.Message, botID)
	isReplyToBot := m.ReferencedMessage != nil &&
		m.ReferencedMessage.Author != nil &&
		m.ReferencedMessage.Author.ID == botID

	displayName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		displayName = m.Member.Nick
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return channel.Inbound{
		Platform: Type,
		Message: message.Message{
			ID:          m.ID,
			ChannelID:   m.ChannelID,
			AuthorID:    m.Author.ID,
			DisplayName: displayName,
			Role:        message.RoleUser,
			Content:     stripMention(text, botID),
			Attachments: collectAttachments(m.Message),
			Timestamp:   ts.UTC(),
		},
		ReplyTarget: m.ChannelID,
		ReplyToID:   m.ID,
		Addressed:   isDirect || isMentioned || isReplyToBot,
		BotID:       botID,
		BotName:     s.State.User.Username,
		ReceivedAt:  time.Now().UTC(),
	}
}

// Send delivers one outbound message, threading it as a reply when a source
// message ID is present.
func (a *Adapter) Send(ctx context.Context, out channel.Outbound) error {
	session, err := a.getOrCreateSession()
	if err != nil {
		return err
	}

	channelID := strings.TrimSpace(out.Target)
	if channelID == "" {
		return fmt.Errorf("discord target is required")
	}

	text := truncateText(out.Text)
	if out.ReplyToID != "" {
		_, err = session.ChannelMessageSendReply(channelID, text, &discordgo.MessageReference{
			ChannelID: channelID,
			MessageID: out.ReplyToID,
		}, discordgo.WithContext(ctx))
		return err
	}
	_, err = session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

// truncateText keeps outbound text under Discord's message size limit on a
// rune boundary.
func truncateText(text string) string {
	const discordMaxLength = 2000
	if len(text) <= discordMaxLength {
		return text
	}
	const suffix = "..."
	return textutil.Truncate(text, discordMaxLength-len(suffix), suffix)
}

// stripMention removes the bot's mention tokens so the pipeline sees clean
// text.
func stripMention(text, botID string) string {
	text = strings.ReplaceAll(text, "<@"+botID+">", "")
	text = strings.ReplaceAll(text, "<@!"+botID+">", "")
	return strings.TrimSpace(text)
}

func isBotMentioned(msg *discordgo.Message, botID string) bool {
	if msg == nil {
		return false
	}
	for _, mention := range msg.Mentions {
		if mention != nil && mention.ID == botID {
			return true
		}
	}
	return strings.Contains(msg.Content, "<@"+botID+">") ||
		strings.Contains(msg.Content, "<@!"+botID+">")
}

func collectAttachments(msg *discordgo.Message) []message.Attachment {
	if msg == nil || len(msg.Attachments) == 0 {
		return nil
	}
	attachments := make([]message.Attachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, message.Attachment{
			Type: classifyContentType(att.ContentType, att.Filename),
			URL:  att.URL,
			Name: att.Filename,
			Mime: att.ContentType,
		})
	}
	return attachments
}

func classifyContentType(contentType, filename string) message.AttachmentType {
	if strings.HasSuffix(strings.ToLower(filename), ".gif") {
		return message.AttachmentGIF
	}
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return message.AttachmentImage
	case strings.HasPrefix(contentType, "video/"):
		return message.AttachmentVideo
	case strings.HasPrefix(contentType, "audio/"):
		return message.AttachmentAudio
	default:
		return message.AttachmentFile
	}
}

// isDuplicateInbound remembers recently seen message IDs; gateway reconnects
// can replay events.
func (a *Adapter) isDuplicateInbound(messageID string) bool {
	if messageID == "" {
		return false
	}
	now := time.Now().UTC()
	expireBefore := now.Add(-inboundDedupTTL)

	a.mu.Lock()
	defer a.mu.Unlock()
	for id, seenAt := range a.seenMessages {
		if seenAt.Before(expireBefore) {
			delete(a.seenMessages, id)
		}
	}
	if _, ok := a.seenMessages[messageID]; ok {
		return true
	}
	a.seenMessages[messageID] = now
	return false
}
