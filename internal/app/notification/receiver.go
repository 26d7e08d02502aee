package notification

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrReceiverClosed is returned by Receive once a closed receiver is drained.
var ErrReceiverClosed = errors.New("receiver closed")

// Receiver is one subscriber's unbounded event queue.
type Receiver[E any] struct {
	id     string
	owner  *Broadcaster[E]
	mu     sync.Mutex
	queue  []E
	closed bool
	signal chan struct{} // Capacity 1; wakes a blocked Receive
}

func newReceiver[E any](id string, owner *Broadcaster[E]) *Receiver[E] {
	return &Receiver[E]{
		id:     id,
		owner:  owner,
		signal: make(chan struct{}, 1),
	}
}

// ID returns the subscription id.
func (r *Receiver[E]) ID() string {
	return r.id
}

// TryReceive pops the oldest pending event without blocking.
func (r *Receiver[E]) TryReceive() (E, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.popLocked()
}

// Receive blocks until an event is available, the receiver is closed and
// drained, or ctx is done.
func (r *Receiver[E]) Receive(ctx context.Context) (E, error) {
	for {
		r.mu.Lock()
		e, ok := r.popLocked()
		closed := r.closed
		r.mu.Unlock()

		if ok {
			return e, nil
		}
		if closed {
			var zero E
			return zero, ErrReceiverClosed
		}

		select {
		case <-r.signal:
		case <-ctx.Done():
			var zero E
			return zero, ctx.Err()
		}
	}
}

// Drain pops every pending event.
func (r *Receiver[E]) Drain() []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.queue
	r.queue = nil
	return events
}

// Pending returns the number of queued events.
func (r *Receiver[E]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Close unsubscribes the receiver. Events already queued stay readable.
func (r *Receiver[E]) Close() {
	r.owner.unsubscribe(r.id)
	r.close()
}

func (r *Receiver[E]) push(e E) {
	r.mu.Lock()
	if !r.closed {
		r.queue = append(r.queue, e)
	}
	r.mu.Unlock()
	r.wake()
}

func (r *Receiver[E]) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wake()
}

func (r *Receiver[E]) wake() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *Receiver[E]) popLocked() (E, bool) {
	if len(r.queue) == 0 {
		var zero E
		return zero, false
	}
	e := r.queue[0]
	var zero E
	r.queue[0] = zero
	r.queue = r.queue[1:]
	return e, true
}
