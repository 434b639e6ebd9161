package events

import "sync"

// Dispatcher fans events out to any number of subscribers. Delivery is
// non-blocking: a subscriber whose buffer is full misses events rather than
// stalling the emitter.
type Dispatcher struct {
	buffer int

	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

// NewDispatcher creates a dispatcher whose subscriber channels buffer up to
// buffer events each.
func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{buffer: buffer}
}

// Subscribe registers a new listener. The returned channel is closed when
// the dispatcher is closed.
func (d *Dispatcher) Subscribe() <-chan Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan Event, d.buffer)
	if d.closed {
		close(ch)
		return ch
	}
	d.subs = append(d.subs, ch)
	return ch
}

// Emit delivers the event to every subscriber that has buffer space left.
func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	for _, ch := range d.subs {
		select {
		case ch <- e:
		default:
			// Skip slow consumers.
		}
	}
}

// Close shuts the dispatcher down and closes all subscriber channels.
// Emitting after Close is a no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.subs {
		close(ch)
	}
	d.subs = nil
}
