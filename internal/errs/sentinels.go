// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/transport layers.
var (
	// ErrInvalidMessage indicates a decoded frame is missing username or body.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrStoreUnavailable indicates the primary store could not be reached
	// or the write timed out.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConnClosed indicates a send to a connection that is already torn down.
	ErrConnClosed = errors.New("connection closed")

	// ErrSendBufferFull indicates a slow consumer whose outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)
