// Package telegram connects the bot to Telegram via long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/parleybot/parley/internal/channel"
	"github.com/parleybot/parley/internal/message"
	"github.com/parleybot/parley/internal/textutil"
)

// Type identifies this adapter in the registry.
const Type = channel.Type("telegram")

const maxMessageLength = 4096

// Adapter is the Telegram platform adapter. One adapter owns one bot token
// and one long-poll loop.
type Adapter struct {
	token  string
	logger *slog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewAdapter(log *slog.Logger, token string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		token:  token,
		logger: log.With(slog.String("adapter", "telegram")),
	}
}

func (a *Adapter) Type() channel.Type {
	return Type
}

func (a *Adapter) getOrCreateBot() (*tgbotapi.BotAPI, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bot != nil {
		return a.bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(a.token)
	if err != nil {
		return nil, fmt.Errorf("telegram create bot: %w", err)
	}
	a.bot = bot
	return bot, nil
}

// Connect starts the long-poll loop and forwards updates to the handler.
func (a *Adapter) Connect(ctx context.Context, handler channel.InboundHandler) (channel.Connection, error) {
	bot, err := a.getOrCreateBot()
	if err != nil {
		return nil, err
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				in, ok := a.buildInbound(bot, update)
				if !ok {
					continue
				}
				a.logger.Info("inbound received",
					slog.String("chat_id", in.Message.ChannelID),
					slog.String("user_id", in.Message.AuthorID),
					slog.Bool("addressed", in.Addressed),
				)
				// Synchronous publish keeps same-chat arrival order intact;
				// a full queue back-pressures the poll loop.
				if err := handler(connCtx, in); err != nil {
					a.logger.Error("handle inbound failed",
						slog.String("message_id", in.Message.ID),
						slog.Any("error", err),
					)
				}
			}
		}
	}()

	stop := func(context.Context) error {
		a.logger.Info("stop")
		bot.StopReceivingUpdates()
		cancel()
		// Drain so the library's polling goroutine can finish; a live
		// long-poll request would otherwise conflict with the next
		// getUpdates session on the same token.
		for range updates {
		}
		return nil
	}
	return channel.NewConnection(Type, stop), nil
}

// buildInbound converts one update into an inbound message. The second
// return value is false when the update carries nothing processable.
func (a *Adapter) buildInbound(bot *tgbotapi.BotAPI, update tgbotapi.Update) (channel.Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return channel.Inbound{}, false
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	attachments := collectAttachments(bot, msg)
	if text == "" && len(attachments) == 0 {
		return channel.Inbound{}, false
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	isDirect := msg.Chat.IsPrivate()
	isMentioned := isBotMentioned(msg, bot.Self.UserName)
	isReplyToBot := msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.ID == bot.Self.ID

	return channel.Inbound{
		Platform: Type,
		Message: message.Message{
			ID:          strconv.Itoa(msg.MessageID),
			ChannelID:   chatID,
			AuthorID:    strconv.FormatInt(msg.From.ID, 10),
			DisplayName: displayName(msg.From),
			Role:        message.RoleUser,
			Content:     stripMention(text, bot.Self.UserName),
			Attachments: attachments,
			Timestamp:   time.Unix(int64(msg.Date), 0).UTC(),
		},
		ReplyTarget: chatID,
		ReplyToID:   strconv.Itoa(msg.MessageID),
		Addressed:   isDirect || isMentioned || isReplyToBot,
		BotID:       strconv.FormatInt(bot.Self.ID, 10),
		BotName:     bot.Self.UserName,
		ReceivedAt:  time.Now().UTC(),
	}, true
}

// Send delivers one outbound message, threading it as a reply when the
// source message ID parses.
func (a *Adapter) Send(_ context.Context, out channel.Outbound) error {
	bot, err := a.getOrCreateBot()
	if err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(strings.TrimSpace(out.Target), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram target must be a chat id: %w", err)
	}

	send := tgbotapi.NewMessage(chatID, truncateText(sanitizeText(out.Text)))
	if replyTo, err := strconv.Atoi(out.ReplyToID); err == nil && replyTo > 0 {
		send.ReplyToMessageID = replyTo
	}
	_, err = bot.Send(send)
	return err
}

func displayName(from *tgbotapi.User) string {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = strings.TrimSpace(from.UserName)
	}
	return name
}

func isBotMentioned(msg *tgbotapi.Message, botUsername string) bool {
	if msg == nil {
		return false
	}
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(botUsername), "@"))
	if normalized == "" {
		return false
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	return strings.Contains(strings.ToLower(text), "@"+normalized)
}

func stripMention(text, botUsername string) string {
	botUsername = strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	if botUsername == "" {
		return text
	}
	cleaned := strings.ReplaceAll(text, "@"+botUsername, "")
	return strings.TrimSpace(cleaned)
}

func collectAttachments(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) []message.Attachment {
	if msg == nil {
		return nil
	}
	var attachments []message.Attachment
	add := func(t message.AttachmentType, fileID, name, mime string) {
		att := message.Attachment{Type: t, Name: name, Mime: mime}
		if url, err := bot.GetFileDirectURL(fileID); err == nil {
			att.URL = url
		}
		attachments = append(attachments, att)
	}

	if len(msg.Photo) > 0 {
		photo := pickLargestPhoto(msg.Photo)
		add(message.AttachmentImage, photo.FileID, "", "image/jpeg")
	}
	if msg.Animation != nil {
		add(message.AttachmentGIF, msg.Animation.FileID, msg.Animation.FileName, msg.Animation.MimeType)
	}
	if msg.Video != nil {
		add(message.AttachmentVideo, msg.Video.FileID, msg.Video.FileName, msg.Video.MimeType)
	}
	if msg.Voice != nil {
		add(message.AttachmentAudio, msg.Voice.FileID, "", msg.Voice.MimeType)
	}
	if msg.Audio != nil {
		add(message.AttachmentAudio, msg.Audio.FileID, msg.Audio.FileName, msg.Audio.MimeType)
	}
	if msg.Document != nil {
		add(message.AttachmentFile, msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType)
	}
	if msg.Sticker != nil {
		add(message.AttachmentImage, msg.Sticker.FileID, msg.Sticker.Emoji, "")
	}
	return attachments
}

func pickLargestPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}

func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateText truncates to Telegram's message size limit on a valid UTF-8
// rune boundary, appending "..." when truncation occurs.
func truncateText(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	return textutil.Truncate(text, maxMessageLength-len(suffix), suffix)
}
