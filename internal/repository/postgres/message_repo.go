package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/chat-relay/internal/errs"
	"github.com/and161185/chat-relay/internal/model"
	"github.com/gofrs/uuid/v5"
)

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

// Insert persists a message row and returns the message with its StorageID set.
// The id is generated here rather than by the database so that a message can
// be referenced in logs even when the insert itself fails.
func (r *MessageRepo) Insert(ctx context.Context, msg model.Message) (model.Message, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.Message{}, fmt.Errorf("generate message id: %w", err)
	}

	const q = `
INSERT INTO messages (id, date, username, message)
VALUES ($1, $2, $3, $4)`
	if _, err := r.db.Pool.Exec(ctx, q, id, msg.Date, msg.Username, msg.Body); err != nil {
		return model.Message{}, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}

	msg.StorageID = id
	return msg, nil
}

// Ping reports whether the database answers.
func (r *MessageRepo) Ping(ctx context.Context) error {
	if err := r.db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}
