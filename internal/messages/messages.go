package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guildchat-backend/internal/database"
	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/validator"

	"go.uber.org/zap"
)

// Registry stores messages by id. Ordering and paging are up to the caller.
type Registry struct {
	db    database.Querier
	sugar *zap.SugaredLogger
	now   func() time.Time
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(db database.Querier, sugar *zap.SugaredLogger, opts ...Option) *Registry {
	r := &Registry{
		db:    db,
		sugar: sugar,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a message under a caller chosen id, stamped with the
// registry's clock at millisecond precision.
func (r *Registry) Create(ctx context.Context, id int64, authorID int64, serverID int64, contents string) (*models.Message, error) {
	if err := validator.MessageContents(contents); err != nil {
		return nil, fmt.Errorf("%w: %v", globals.ErrValidation, err)
	}

	message := models.Message{
		ID:        id,
		AuthorID:  authorID,
		ServerID:  serverID,
		Contents:  contents,
		CreatedAt: time.UnixMilli(r.now().UnixMilli()).UTC(),
	}

	_, err := r.db.ExecContext(ctx, "INSERT INTO messages (id, author_id, server_id, contents, created_at) VALUES (?, ?, ?, ?, ?)",
		message.ID, message.AuthorID, message.ServerID, message.Contents, message.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	r.sugar.Debugf("User ID [%d] sent message ID [%d] to server ID [%d]", authorID, id, serverID)
	return &message, nil
}

func (r *Registry) Update(ctx context.Context, id int64, contents string) error {
	if err := validator.MessageContents(contents); err != nil {
		return fmt.Errorf("%w: %v", globals.ErrValidation, err)
	}

	existing, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: message ID [%d]", globals.ErrNotFound, id)
	}

	_, err = r.db.ExecContext(ctx, "UPDATE messages SET contents = ? WHERE id = ?", contents, id)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

func (r *Registry) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: message ID [%d]", globals.ErrNotFound, id)
	}

	r.sugar.Debugf("Deleted message ID [%d]", id)
	return nil
}

// Get returns nil if the message doesn't exist.
func (r *Registry) Get(ctx context.Context, id int64) (*models.Message, error) {
	var message models.Message
	var createdAt int64

	err := r.db.QueryRowContext(ctx, "SELECT id, author_id, server_id, contents, created_at FROM messages WHERE id = ?", id).
		Scan(&message.ID, &message.AuthorID, &message.ServerID, &message.Contents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	message.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &message, nil
}
