package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parleybot/parley/internal/message"
)

// Wiper is the history-clearing surface the lobotomy command needs.
type Wiper interface {
	Clear(channelID string) bool
	ClearAll()
}

// commandFunc handles one named command. args excludes the command word.
type commandFunc func(ctx context.Context, channelID string, args []string) Result

// CommandProcessor handles slash commands. The command set is fixed at
// construction.
type CommandProcessor struct {
	commands map[string]commandFunc
	logger   *slog.Logger
}

func NewCommandProcessor(log *slog.Logger, wiper Wiper) *CommandProcessor {
	if log == nil {
		log = slog.Default()
	}
	p := &CommandProcessor{
		commands: make(map[string]commandFunc),
		logger:   log.With(slog.String("component", "command_processor")),
	}
	p.commands["ping"] = p.handlePing
	p.commands["lobotomy"] = func(ctx context.Context, channelID string, args []string) Result {
		return p.handleLobotomy(wiper, channelID, args)
	}
	return p
}

func (p *CommandProcessor) Matches(msg message.Message) bool {
	name, _ := parseCommand(msg.Content)
	return name != ""
}

func (p *CommandProcessor) Handle(ctx context.Context, msg message.Message, hist History) (Decision, error) {
	name, args := parseCommand(msg.Content)
	handler, ok := p.commands[name]
	if !ok {
		p.logger.Warn("unknown command", slog.String("command", name))
		return Stop(Result{
			Kind:   KindSuppressed,
			Notice: fmt.Sprintf("I don't recognize /%s.", name),
		}), nil
	}

	p.logger.Info("command received",
		slog.String("command", name),
		slog.String("channel_id", msg.ChannelID),
	)
	return Stop(handler(ctx, msg.ChannelID, args)), nil
}

func (p *CommandProcessor) handlePing(_ context.Context, _ string, _ []string) Result {
	return Result{Kind: KindReply, Content: "pong"}
}

// handleLobotomy wipes the channel's cached history; --all wipes every
// channel.
func (p *CommandProcessor) handleLobotomy(wiper Wiper, channelID string, args []string) Result {
	if len(args) > 0 && args[0] == "--all" {
		wiper.ClearAll()
		p.logger.Info("cleared all history")
		return Result{Kind: KindReply, Content: "All gone. Everywhere."}
	}
	if !wiper.Clear(channelID) {
		return Result{Kind: KindSuppressed, Notice: "Nothing to forget here."}
	}
	p.logger.Info("cleared history", slog.String("channel_id", channelID))
	return Result{Kind: KindReply, Content: "All gone."}
}

// parseCommand extracts a leading slash command and its arguments. Returns
// an empty name when the content is not a command.
func parseCommand(content string) (string, []string) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return "", nil
	}
	parts := strings.Fields(content[1:])
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(parts[0]), parts[1:]
}
