package repository

import "github.com/and161185/chat-relay/internal/model"

// MirrorRepository is the secondary file-backed history store. It holds
// wire-shaped messages only and is rewritten whole on every append.
type MirrorRepository interface {
	// Append adds one message to the end of the history.
	Append(msg model.Message) error

	// Load returns the full history, oldest first. A missing or unreadable
	// artifact yields an empty history, never an error the caller must
	// distinguish from corruption.
	Load() ([]model.Message, error)
}
