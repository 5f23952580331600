package session

import (
	"errors"
	"sync"
)

// ErrOutboxClosed is returned by Push after Close.
var ErrOutboxClosed = errors.New("outbox closed")

// ErrOutboxFull is returned by Push when the buffer has no free slot.
var ErrOutboxFull = errors.New("outbox buffer full")

// Outbox is a bounded, non-blocking queue of serialized outbound messages
// for one connection. A single writer goroutine drains Events.
type Outbox struct {
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox holding up to bufferSize messages.
//
// Postcondition: Returns an Outbox with an open events channel.
func NewOutbox(bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{events: make(chan []byte, bufferSize)}
}

// Push enqueues data without blocking.
//
// Postcondition: Data is enqueued, or ErrOutboxClosed / ErrOutboxFull is returned.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.events <- data:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Events returns the read-only events channel. It is closed by Close.
func (o *Outbox) Events() <-chan []byte {
	return o.events
}

// Close marks the outbox closed and closes the events channel. Idempotent.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
