package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parleybot/parley/internal/history"
	"github.com/parleybot/parley/internal/message"
)

type HistoryHandler struct {
	cache  *history.Cache
	logger *slog.Logger
}

func NewHistoryHandler(log *slog.Logger, cache *history.Cache) *HistoryHandler {
	return &HistoryHandler{
		cache:  cache,
		logger: log.With(slog.String("handler", "history")),
	}
}

func (h *HistoryHandler) Register(e *echo.Echo) {
	e.GET("/api/history", h.ListAll)
	e.GET("/api/history/:channelID", h.ListChannel)
	e.DELETE("/api/history/:channelID", h.Clear)
}

type historyEntry struct {
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name,omitempty"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

type channelHistoryResponse struct {
	ChannelID string         `json:"channel_id"`
	Messages  []historyEntry `json:"messages"`
}

// ListAll returns a point-in-time view of every channel's cached history.
func (h *HistoryHandler) ListAll(c echo.Context) error {
	all := h.cache.SnapshotAll()
	resp := make([]channelHistoryResponse, 0, len(all))
	for channelID, msgs := range all {
		resp = append(resp, channelHistoryResponse{
			ChannelID: channelID,
			Messages:  toEntries(msgs),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *HistoryHandler) ListChannel(c echo.Context) error {
	channelID := c.Param("channelID")
	return c.JSON(http.StatusOK, channelHistoryResponse{
		ChannelID: channelID,
		Messages:  toEntries(h.cache.Snapshot(channelID)),
	})
}

func (h *HistoryHandler) Clear(c echo.Context) error {
	channelID := c.Param("channelID")
	cleared := h.cache.Clear(channelID)
	h.logger.Info("history cleared via api",
		slog.String("channel_id", channelID),
		slog.Bool("had_history", cleared),
	)
	return c.JSON(http.StatusOK, map[string]bool{"cleared": cleared})
}

func toEntries(msgs []message.Message) []historyEntry {
	entries := make([]historyEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, historyEntry{
			Role:        string(m.Role),
			DisplayName: m.DisplayName,
			Content:     m.Content,
			Timestamp:   m.Timestamp,
		})
	}
	return entries
}
