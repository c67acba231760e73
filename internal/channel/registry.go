package channel

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds all registered platform adapters. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Type]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[Type]Adapter{}}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is nil")
	}
	t := adapter.Type()
	if t == "" {
		return fmt.Errorf("channel type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[t]; exists {
		return fmt.Errorf("channel type already registered: %s", t)
	}
	r.adapters[t] = adapter
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get returns the adapter for a channel type.
func (r *Registry) Get(t Type) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[t]
	return adapter, ok
}

// All returns every registered adapter.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		out = append(out, adapter)
	}
	return out
}

// Deliver sends an outbound message through the platform's adapter.
func (r *Registry) Deliver(ctx context.Context, t Type, out Outbound) error {
	adapter, ok := r.Get(t)
	if !ok {
		return fmt.Errorf("channel type not registered: %s", t)
	}
	sender, ok := adapter.(Sender)
	if !ok {
		return fmt.Errorf("channel %s cannot send", t)
	}
	return sender.Send(ctx, out)
}
