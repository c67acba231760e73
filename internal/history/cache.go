// Package history holds the in-memory conversation cache: a bounded,
// per-channel record of recent dialogue shared by every pipeline worker.
package history

import (
	"sync"
	"time"

	"github.com/parleybot/parley/internal/message"
)

// Cache maps channel identifiers to bounded message histories. All methods
// are safe for concurrent use; mutations on one channel never block readers
// or writers of another.
type Cache struct {
	capacity int

	mu       sync.RWMutex
	channels map[string]*channelHistory
}

type channelHistory struct {
	mu   sync.Mutex
	msgs []message.Message
}

// NewCache creates a cache retaining at most capacity messages per channel.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		channels: make(map[string]*channelHistory),
	}
}

// Capacity returns the per-channel retention bound.
func (c *Cache) Capacity() int {
	return c.capacity
}

func (c *Cache) channelFor(channelID string) *channelHistory {
	c.mu.RLock()
	ch, ok := c.channels[channelID]
	c.mu.RUnlock()
	if ok {
		return ch
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.channels[channelID]; ok {
		return ch
	}
	ch = &channelHistory{}
	c.channels[channelID] = ch
	return ch
}

// Append adds a message to the channel's history, evicting the oldest entry
// once the capacity is reached. The write is visible to subsequent reads
// before Append returns.
func (c *Cache) Append(channelID string, msg message.Message) {
	ch := c.channelFor(channelID)
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.append(msg, c.capacity)
}

// AppendExchange appends a user message and the assistant reply it triggered
// as one atomic unit: no snapshot can observe the reply without its trigger.
func (c *Cache) AppendExchange(channelID string, user, assistant message.Message) {
	ch := c.channelFor(channelID)
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.append(user, c.capacity)
	ch.append(assistant, c.capacity)
}

// append assumes the channel lock is held. Timestamps are clamped so the
// stored sequence stays monotonically non-decreasing.
func (h *channelHistory) append(msg message.Message, capacity int) {
	if n := len(h.msgs); n > 0 && msg.Timestamp.Before(h.msgs[n-1].Timestamp) {
		msg.Timestamp = h.msgs[n-1].Timestamp
	}
	h.msgs = append(h.msgs, msg)
	if len(h.msgs) > capacity {
		overflow := len(h.msgs) - capacity
		h.msgs = append(h.msgs[:0], h.msgs[overflow:]...)
	}
}

// Snapshot returns a copy of the channel's history, oldest first. An unknown
// channel yields an empty slice, never an error.
func (c *Cache) Snapshot(channelID string) []message.Message {
	c.mu.RLock()
	ch, ok := c.channels[channelID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]message.Message, len(ch.msgs))
	copy(out, ch.msgs)
	return out
}

// Recent returns at most k of the channel's newest messages, oldest first.
func (c *Cache) Recent(channelID string, k int) []message.Message {
	if k <= 0 {
		return nil
	}
	msgs := c.Snapshot(channelID)
	if len(msgs) > k {
		msgs = msgs[len(msgs)-k:]
	}
	return msgs
}

// SnapshotAll returns a point-in-time copy of every channel's history. Each
// channel is copied under its own lock, so no single channel is ever torn;
// channels are not frozen relative to each other.
func (c *Cache) SnapshotAll() map[string][]message.Message {
	c.mu.RLock()
	refs := make(map[string]*channelHistory, len(c.channels))
	for id, ch := range c.channels {
		refs[id] = ch
	}
	c.mu.RUnlock()

	out := make(map[string][]message.Message, len(refs))
	for id, ch := range refs {
		ch.mu.Lock()
		msgs := make([]message.Message, len(ch.msgs))
		copy(msgs, ch.msgs)
		ch.mu.Unlock()
		out[id] = msgs
	}
	return out
}

// Clear wipes one channel's history and reports whether it held any entries.
func (c *Cache) Clear(channelID string) bool {
	c.mu.RLock()
	ch, ok := c.channels[channelID]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	had := len(ch.msgs) > 0
	ch.msgs = nil
	return had
}

// ClearAll wipes every channel's history.
func (c *Cache) ClearAll() {
	c.mu.RLock()
	refs := make([]*channelHistory, 0, len(c.channels))
	for _, ch := range c.channels {
		refs = append(refs, ch)
	}
	c.mu.RUnlock()

	for _, ch := range refs {
		ch.mu.Lock()
		ch.msgs = nil
		ch.mu.Unlock()
	}
}

// PruneBefore drops messages observed before the cutoff and returns the
// number removed. Stored order is monotonic, so the prefix check suffices.
func (c *Cache) PruneBefore(cutoff time.Time) int {
	c.mu.RLock()
	refs := make([]*channelHistory, 0, len(c.channels))
	for _, ch := range c.channels {
		refs = append(refs, ch)
	}
	c.mu.RUnlock()

	removed := 0
	for _, ch := range refs {
		ch.mu.Lock()
		keep := 0
		for keep < len(ch.msgs) && ch.msgs[keep].Timestamp.Before(cutoff) {
			keep++
		}
		if keep > 0 {
			removed += keep
			ch.msgs = append(ch.msgs[:0], ch.msgs[keep:]...)
		}
		ch.mu.Unlock()
	}
	return removed
}
