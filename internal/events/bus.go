// Package events implements the invalidation-event cascade source. Events
// may be emitted from any goroutine at any time, but are delivered only at a
// defined safe point between frames, never during Execute. A node receiving
// an event it cares about typically calls MarkDirty on itself.
package events

import (
	"sync"

	"github.com/voxgraph/voxgraph/internal/node"
)

// Kind names an event category.
type Kind string

// Event is one invalidation notice.
type Event struct {
	Kind Kind
	// Payload carries event-specific data, e.g. the changed file path.
	Payload any
}

// Handler is invoked at the safe point for each delivered event.
type Handler func(Event)

// subscription pairs a node with its handler; delivery order within a kind is
// subscription order, keeping cascades deterministic.
type subscription struct {
	owner   node.Handle
	handler Handler
}

// Bus queues emitted events and delivers them on demand. Emit is safe to call
// concurrently (file watchers run on their own goroutines); Subscribe,
// Unsubscribe and Dispatch belong to the frame-synchronous host thread.
type Bus struct {
	mu      sync.Mutex
	subs    map[Kind][]subscription
	pending []Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers a handler owned by the given node for one event kind.
// A node may subscribe to several kinds; re-subscribing the same node to the
// same kind replaces the previous handler.
func (b *Bus) Subscribe(kind Kind, owner node.Handle, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs[kind] {
		if s.owner == owner {
			b.subs[kind][i].handler = handler
			return
		}
	}
	b.subs[kind] = append(b.subs[kind], subscription{owner: owner, handler: handler})
}

// Unsubscribe removes every subscription owned by the node, across all kinds.
// Called during Cleanup; Setup re-subscribes on the next cycle.
func (b *Bus) Unsubscribe(owner node.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.owner != owner {
				kept = append(kept, s)
			}
		}
		b.subs[kind] = kept
	}
}

// Emit queues an event for delivery at the next safe point.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, ev)
}

// HasPending reports whether undelivered events are queued.
func (b *Bus) HasPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) > 0
}

// Dispatch delivers the events queued at the moment of the call, in emit
// order, each to its kind's subscribers in subscription order. Events emitted
// by handlers during Dispatch are queued for the next Dispatch, which is what
// lets the recompilation loop process cascades iteration by iteration until a
// fixed point. Returns the number of events delivered.
func (b *Bus) Dispatch() int {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, ev := range batch {
		b.mu.Lock()
		subs := make([]subscription, len(b.subs[ev.Kind]))
		copy(subs, b.subs[ev.Kind])
		b.mu.Unlock()
		for _, s := range subs {
			s.handler(ev)
		}
	}
	return len(batch)
}
