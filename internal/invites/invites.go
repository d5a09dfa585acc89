package invites

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"guildchat-backend/internal/database"
	"guildchat-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CodeLength      = 8
	maxCodeAttempts = 3
)

// Invites are reusable; resolving one never consumes it.
type Registry struct {
	db      database.Querier
	sugar   *zap.SugaredLogger
	newCode func() string
}

type Option func(*Registry)

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(newCode func() string) Option {
	return func(r *Registry) { r.newCode = newCode }
}

func New(db database.Querier, sugar *zap.SugaredLogger, opts ...Option) *Registry {
	r := &Registry{
		db:      db,
		sugar:   sugar,
		newCode: NewCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewCode returns a short URL safe code taken from the bytes of a random UUID.
func NewCode() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])[:CodeLength]
}

func (r *Registry) Create(ctx context.Context, serverID int64, inviterID int64) (string, error) {
	for attempt := 1; ; attempt++ {
		code := r.newCode()

		_, err := r.db.ExecContext(ctx, "INSERT INTO invites (code, server_id, inviter_id) VALUES (?, ?, ?)", code, serverID, inviterID)
		if err == nil {
			r.sugar.Debugf("User ID [%d] created invite [%s] for server ID [%d]", inviterID, code, serverID)
			return code, nil
		}

		if !database.IsUniqueViolation(err) || attempt == maxCodeAttempts {
			return "", fmt.Errorf("failed to insert invite: %w", err)
		}
		r.sugar.Debugf("Invite code [%s] already exists, generating another", code)
	}
}

// Resolve returns nil for unknown codes.
func (r *Registry) Resolve(ctx context.Context, code string) (*models.Invite, error) {
	invite := models.Invite{Code: code}

	err := r.db.QueryRowContext(ctx, "SELECT server_id, inviter_id FROM invites WHERE code = ?", code).
		Scan(&invite.ServerID, &invite.InviterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to resolve invite: %w", err)
	}

	return &invite, nil
}

func (r *Registry) ListForServer(ctx context.Context, serverID int64) ([]models.Invite, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT code, server_id, inviter_id FROM invites WHERE server_id = ? ORDER BY code", serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := []models.Invite{}
	for rows.Next() {
		var invite models.Invite
		if err := rows.Scan(&invite.Code, &invite.ServerID, &invite.InviterID); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invites: %w", err)
	}
	return invites, nil
}
