package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Manager owns the live platform connections: it connects every receiving
// adapter at startup, forwards their inbound messages to one handler, and
// stops them on shutdown.
type Manager struct {
	registry *Registry
	handler  InboundHandler
	logger   *slog.Logger

	mu    sync.Mutex
	conns []Connection
}

func NewManager(log *slog.Logger, registry *Registry, handler InboundHandler) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		registry: registry,
		handler:  handler,
		logger:   log.With(slog.String("component", "channel_manager")),
	}
}

// Start connects every adapter that can receive. Any adapter failing to
// connect fails startup.
func (m *Manager) Start(ctx context.Context) error {
	if m.handler == nil {
		return errors.New("inbound handler not configured")
	}
	for _, adapter := range m.registry.All() {
		receiver, ok := adapter.(Receiver)
		if !ok {
			continue
		}
		conn, err := receiver.Connect(ctx, m.handler)
		if err != nil {
			return err
		}
		m.logger.Info("channel connected", slog.String("channel", adapter.Type().String()))
		m.mu.Lock()
		m.conns = append(m.conns, conn)
		m.mu.Unlock()
	}
	return nil
}

// Shutdown stops all live connections, returning the first error seen.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) {
			m.logger.Error("stop connection failed",
				slog.String("channel", conn.Type().String()),
				slog.Any("error", err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
