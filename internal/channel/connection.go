package channel

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrStopNotSupported is returned when a connection has no stop function.
var ErrStopNotSupported = errors.New("channel connection stop not supported")

// BaseConnection is a default Connection implementation backed by a stop
// function.
type BaseConnection struct {
	channelType Type
	stop        func(ctx context.Context) error
	running     atomic.Bool
}

// NewConnection creates a BaseConnection for the given platform and stop
// function.
func NewConnection(t Type, stop func(ctx context.Context) error) *BaseConnection {
	conn := &BaseConnection{channelType: t, stop: stop}
	conn.running.Store(true)
	return conn
}

func (c *BaseConnection) Type() Type {
	return c.channelType
}

// Stop gracefully shuts down the connection.
func (c *BaseConnection) Stop(ctx context.Context) error {
	if c.stop == nil {
		return ErrStopNotSupported
	}
	c.running.Store(false)
	return c.stop(ctx)
}

// Running reports whether the connection is still active.
func (c *BaseConnection) Running() bool {
	return c.running.Load()
}
