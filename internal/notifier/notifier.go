// Package notifier provides a simple broadcast mechanism for record changes.
package notifier

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Notifier broadcasts values to all subscribed listeners.
// Listeners are called synchronously in subscription order.
type Notifier[T any] struct {
	mu        sync.RWMutex
	listeners map[string]listener[T]
	seq       uint64
}

type listener[T any] struct {
	seq uint64
	fn  func(T)
}

// New creates a new Notifier instance.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{
		listeners: make(map[string]listener[T]),
	}
}

// Subscribe registers fn and returns its subscription ID.
// The caller must call Unsubscribe when done.
func (n *Notifier[T]) Subscribe(fn func(T)) string {
	id := uuid.NewString()
	n.mu.Lock()
	n.seq++
	n.listeners[id] = listener[T]{seq: n.seq, fn: fn}
	n.mu.Unlock()
	return id
}

// Unsubscribe removes a listener. Unknown IDs are ignored.
func (n *Notifier[T]) Unsubscribe(id string) {
	n.mu.Lock()
	delete(n.listeners, id)
	n.mu.Unlock()
}

// Len returns the number of listeners.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast sends v to all listeners. The listener set is snapshotted so
// listeners may unsubscribe from inside their callback.
func (n *Notifier[T]) Broadcast(v T) {
	n.mu.RLock()
	ls := make([]listener[T], 0, len(n.listeners))
	for _, l := range n.listeners {
		ls = append(ls, l)
	}
	n.mu.RUnlock()

	sort.Slice(ls, func(i, j int) bool { return ls[i].seq < ls[j].seq })
	for _, l := range ls {
		l.fn(v)
	}
}
