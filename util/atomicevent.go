package util

import (
	"sync"
)

// AtomicEvent is a single-slot cell holding the latest event. Writers
// never wait for readers: a new event overwrites the previous one and
// at most one notification is kept pending. Intermediate values that
// nobody read are dropped on purpose.
type AtomicEvent[T any] struct {
	mu     sync.Mutex    // held only for the assignment or the copy
	value  T             // the latest event
	sent   bool          // true once Send has been called
	notify chan struct{} // capacity 1
}

// NewAtomicEvent creates a new AtomicEvent instance.
func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send stores event as the latest value. It never blocks.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	ae.value = event
	ae.sent = true
	ae.mu.Unlock()

	select {
	case ae.notify <- struct{}{}:
	default:
		// a notification is already pending
	}
}

// Channel returns the notification channel for use in select statements.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

// Value returns the latest event, or the zero value of T if nothing
// has been sent yet.
func (ae *AtomicEvent[T]) Value() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value
}

// Load returns the latest event and whether any event has been sent.
func (ae *AtomicEvent[T]) Load() (T, bool) {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value, ae.sent
}

// HasPending checks if a notification is waiting to be consumed.
// This is a non-destructive check.
func (ae *AtomicEvent[T]) HasPending() bool {
	return len(ae.notify) > 0
}
