// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/chat-relay/internal/model"
)

// MessageRepository is the primary, authoritative store for chat messages.
type MessageRepository interface {
	// Insert persists the message and returns it with StorageID assigned.
	Insert(ctx context.Context, msg model.Message) (model.Message, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
