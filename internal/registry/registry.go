// Package registry tracks the set of live client connections.
//
// The registry owns connection membership: connections are added on a
// completed handshake and removed on teardown, and no other component
// mutates the set directly. All operations are safe for concurrent use.
package registry

import "sync"

// Conn is one live duplex channel to a client. Send must not block: it
// either queues the payload for delivery or fails immediately.
type Conn interface {
	Send(payload []byte) error
	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Registry is a synchronized set of live connections.
type Registry struct {
	mu    sync.RWMutex
	conns map[Conn]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[Conn]struct{})}
}

// Add inserts a connection. Adding a member twice is a no-op.
func (r *Registry) Add(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

// Remove deletes a connection. Removing an absent member is a no-op, so
// the read-loop and fan-out teardown paths may race without double effect.
func (r *Registry) Remove(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

// Snapshot returns a copy of the current members, safe to iterate while
// connections are concurrently added or removed. Order is unspecified.
func (r *Registry) Snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len reports the current member count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
