// Package limiter defines interfaces and implementations for inbound message rate limiting.
package limiter

// Limiter throttles the message stream of a single connection.
type Limiter interface {
	// Allow reports whether one more message may be processed now.
	Allow() bool
}
