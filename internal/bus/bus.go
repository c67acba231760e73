// Package bus decouples message arrival from processing: platform adapters
// publish inbound messages into bounded queues, and a fixed pool of workers
// dispatches them to the pipeline.
package bus

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/parleybot/parley/internal/channel"
)

var (
	// ErrStopped is returned by Publish once the bus is shutting down.
	ErrStopped = errors.New("bus: stopped")
	// ErrAlreadySubscribed is returned on a second Subscribe call.
	ErrAlreadySubscribed = errors.New("bus: handler already subscribed")
)

// Handler consumes one dispatched inbound message.
type Handler func(ctx context.Context, in channel.Inbound)

// Bus is a bounded in-process event queue. Events are sharded across worker
// queues by channel ID, so messages from one channel are always dispatched
// in publish order while distinct channels proceed independently. A slow
// LLM call on one channel never delays another.
type Bus struct {
	queues  []chan channel.Inbound
	logger  *slog.Logger
	handler Handler
	quit    chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	pubWG   sync.WaitGroup
	wg      sync.WaitGroup
}

// NewBus creates a bus with the given worker count and per-worker queue
// capacity.
func NewBus(log *slog.Logger, workers, queueSize int) *Bus {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	queues := make([]chan channel.Inbound, workers)
	for i := range queues {
		queues[i] = make(chan channel.Inbound, queueSize)
	}
	return &Bus{
		queues: queues,
		logger: log.With(slog.String("component", "bus")),
		quit:   make(chan struct{}),
	}
}

// Subscribe registers the single dispatch handler. Exactly one subscriber
// drives processing; a second registration is an error.
func (b *Bus) Subscribe(handler Handler) error {
	if handler == nil {
		return errors.New("bus: handler is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handler != nil {
		return ErrAlreadySubscribed
	}
	b.handler = handler
	return nil
}

// Publish enqueues one inbound message. When the target queue is full the
// call blocks until space frees up or the context ends, applying
// back-pressure to the platform connection. Events are never dropped
// silently.
func (b *Bus) Publish(ctx context.Context, in channel.Inbound) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	b.pubWG.Add(1)
	b.mu.Unlock()
	defer b.pubWG.Done()

	queue := b.queues[shard(in.Message.ChannelID, len(b.queues))]
	select {
	case queue <- in:
		return nil
	case <-b.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the worker pool. Each worker owns one queue and runs the
// handler to completion for one message at a time.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.New("bus: already started")
	}
	if b.handler == nil {
		return errors.New("bus: no subscriber")
	}
	b.started = true

	for _, queue := range b.queues {
		b.wg.Add(1)
		go b.work(ctx, queue)
	}
	b.logger.Info("bus started", slog.Int("workers", len(b.queues)))
	return nil
}

func (b *Bus) work(ctx context.Context, queue <-chan channel.Inbound) {
	defer b.wg.Done()
	for in := range queue {
		b.handler(ctx, in)
	}
}

// Shutdown stops accepting publishes, drains the queues, and waits for
// in-flight work up to the context deadline. Publishers still blocked on a
// full queue are released with ErrStopped before the queues close, so a late
// Publish can never hit a closed channel.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	close(b.quit)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.pubWG.Wait()
		for _, queue := range b.queues {
			close(queue)
		}
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("bus drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shard(channelID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(channelID))
	return int(h.Sum32() % uint32(n))
}
