// Package notification provides a broadcaster that fans events out to
// independent per-subscriber queues.
package notification

import (
	"sync"
	"weak"

	"github.com/google/uuid"
)

// Broadcaster delivers every posted event to all live receivers.
// Receivers are held weakly: one that nobody references any more is pruned
// on the next Post.
type Broadcaster[E any] struct {
	mu        sync.Mutex
	receivers map[string]weak.Pointer[Receiver[E]]
	closed    bool
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster[E any]() *Broadcaster[E] {
	return &Broadcaster[E]{
		receivers: make(map[string]weak.Pointer[Receiver[E]]),
	}
}

// Subscribe creates a receiver for all events posted from now on.
// A closed broadcaster returns an already closed receiver.
func (b *Broadcaster[E]) Subscribe() *Receiver[E] {
	r := newReceiver(uuid.New().String(), b)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		r.close()
		return r
	}
	b.receivers[r.id] = weak.Make(r)
	return r
}

// Post enqueues e on every live receiver. It never blocks on a receiver.
// Concurrent posts are serialized so every receiver sees the same order.
func (b *Broadcaster[E]) Post(e E) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for id, wp := range b.receivers {
		r := wp.Value()
		if r == nil {
			delete(b.receivers, id)
			continue
		}
		r.push(e)
	}
}

// SubscriberCount returns the number of receivers not yet pruned.
func (b *Broadcaster[E]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.receivers)
}

// Close closes every receiver and rejects further posts.
func (b *Broadcaster[E]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, wp := range b.receivers {
		if r := wp.Value(); r != nil {
			r.close()
		}
	}
	b.receivers = make(map[string]weak.Pointer[Receiver[E]])
}

func (b *Broadcaster[E]) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.receivers, id)
}
