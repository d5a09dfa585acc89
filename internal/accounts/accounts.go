// Package accounts is the account registry. It assigns ids and
// discriminators, hashes passwords and owns the membership rows in
// server_members; the server registry goes through it to join or leave.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"guildchat-backend/internal/credentials"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/discriminator"
	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/snowflake"
	"guildchat-backend/internal/validator"

	"go.uber.org/zap"
)

// PresencePolicy decides what SetPresence does when the write fails.
type PresencePolicy int

const (
	// SuppressPresenceErrors logs the failure and reports success.
	SuppressPresenceErrors PresencePolicy = iota
	PropagatePresenceErrors
)

// a tag collision on insert means another registration won the race for the
// same discriminator
const maxTagAttempts = 3

const accountColumns = "id, username, discriminator, password_hash, avatar_url, online, admin"

type Registry struct {
	db     database.Querier
	ids    *snowflake.Generator
	hasher *credentials.Hasher
	sugar  *zap.SugaredLogger

	resolver        *discriminator.Resolver
	resolverOptions []discriminator.Option
	presencePolicy  PresencePolicy
}

type Option func(*Registry)

func WithPresencePolicy(policy PresencePolicy) Option {
	return func(r *Registry) { r.presencePolicy = policy }
}

func WithResolverOptions(opts ...discriminator.Option) Option {
	return func(r *Registry) { r.resolverOptions = append(r.resolverOptions, opts...) }
}

func New(db database.Querier, ids *snowflake.Generator, hasher *credentials.Hasher, sugar *zap.SugaredLogger, opts ...Option) *Registry {
	r := &Registry{
		db:     db,
		ids:    ids,
		hasher: hasher,
		sugar:  sugar,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resolver = discriminator.NewResolver(r, r.resolverOptions...)
	return r
}

// WithQuerier returns a copy of the registry that runs its queries on q,
// typically a transaction.
func (r *Registry) WithQuerier(q database.Querier) *Registry {
	clone := *r
	clone.db = q
	clone.resolver = discriminator.NewResolver(&clone, clone.resolverOptions...)
	return &clone
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", globals.ErrValidation, err)
}

// Register creates an offline account with no memberships and returns its tag.
func (r *Registry) Register(ctx context.Context, username string, password string) (string, error) {
	if err := validator.Username(username); err != nil {
		return "", validationError(err)
	}
	if err := validator.Password(password); err != nil {
		return "", validationError(err)
	}

	id := r.ids.Generate()

	hash, err := r.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	for attempt := 1; ; attempt++ {
		discrim, err := r.resolver.Resolve(ctx, username)
		if err != nil {
			return "", err
		}

		_, err = r.db.ExecContext(ctx,
			"INSERT INTO users (id, username, discriminator, password_hash, online) VALUES (?, ?, ?, ?, ?)",
			id, username, discrim, hash, false)
		if err == nil {
			r.sugar.Debugf("Registered user ID [%d] as %s#%s", id, username, discrim)
			return models.FormatTag(username, discrim), nil
		}

		if !database.IsUniqueViolation(err) || attempt == maxTagAttempts {
			return "", fmt.Errorf("failed to insert account: %w", err)
		}
		r.sugar.Debugf("Discriminator %s of %s was taken concurrently, resolving again", discrim, username)
	}
}

// Update applies a partial update and returns the new tag. A discriminator is
// re-resolved on every call, even if the username did not change.
func (r *Registry) Update(ctx context.Context, id int64, update models.AccountUpdate) (string, error) {
	if err := validator.Username(update.Username); err != nil {
		return "", validationError(err)
	}
	if update.Password.IsUnset() {
		return "", validationError(errors.New("empty_password"))
	}

	var sets []string
	var args []any

	if password, ok := update.Password.Get(); ok {
		if err := validator.Password(password); err != nil {
			return "", validationError(err)
		}
		hash, err := r.hasher.Hash(password)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hash)
	}
	if !update.AvatarURL.IsAbsent() {
		sets = append(sets, "avatar_url = ?")
		args = append(args, database.NullString(update.AvatarURL.Pointer()))
	}
	if !update.Admin.IsAbsent() {
		sets = append(sets, "admin = ?")
		args = append(args, database.NullBool(update.Admin.Pointer()))
	}

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: user ID [%d]", globals.ErrNotFound, id)
	}

	for attempt := 1; ; attempt++ {
		discrim, err := r.resolver.Resolve(ctx, update.Username)
		if err != nil {
			return "", err
		}

		query := "UPDATE users SET " + strings.Join(append([]string{"username = ?", "discriminator = ?"}, sets...), ", ") + " WHERE id = ?"
		queryArgs := append([]any{update.Username, discrim}, args...)
		queryArgs = append(queryArgs, id)

		_, err = r.db.ExecContext(ctx, query, queryArgs...)
		if err == nil {
			r.sugar.Debugf("Updated user ID [%d], now %s#%s", id, update.Username, discrim)
			return models.FormatTag(update.Username, discrim), nil
		}

		if !database.IsUniqueViolation(err) || attempt == maxTagAttempts {
			return "", fmt.Errorf("failed to update account: %w", err)
		}
	}
}

// SetPresence is best effort: under SuppressPresenceErrors a failed write is
// logged and nil is returned.
func (r *Registry) SetPresence(ctx context.Context, id int64, online bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET online = ? WHERE id = ?", online, id)
	if err == nil {
		return nil
	}

	if r.presencePolicy == SuppressPresenceErrors {
		r.sugar.Warnf("Couldn't set presence of user ID [%d] to %t: %v", id, online, err)
		return nil
	}
	return fmt.Errorf("failed to set presence: %w", err)
}

// ResetAllPresence marks every account offline, used on shutdown.
func (r *Registry) ResetAllPresence(ctx context.Context) error {
	result, err := r.db.ExecContext(ctx, "UPDATE users SET online = ? WHERE online = ?", false, true)
	if err != nil {
		return fmt.Errorf("failed to reset presence: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil {
		r.sugar.Infof("Marked %d users offline", affected)
	}
	return nil
}

// Delete removes the account. Its server_members rows go with it through the
// foreign key; servers it owns are left alone.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user ID [%d]", globals.ErrNotFound, id)
	}

	r.sugar.Debugf("Deleted user ID [%d]", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	var account models.Account
	var avatarURL sql.NullString
	var admin sql.NullBool

	err := row.Scan(&account.ID, &account.Username, &account.Discriminator, &account.PasswordHash, &avatarURL, &account.Online, &admin)
	if err != nil {
		return nil, err
	}

	account.AvatarURL = database.StringPointer(avatarURL)
	account.Admin = database.BoolPointer(admin)
	return &account, nil
}

func (r *Registry) getWhere(ctx context.Context, where string, args ...any) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM users WHERE "+where, args...)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Servers, err = r.ServerIDs(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Get returns the full account including password hash and membership set,
// or nil if it doesn't exist.
func (r *Registry) Get(ctx context.Context, id int64) (*models.Account, error) {
	return r.getWhere(ctx, "id = ?", id)
}

// GetPublic is Get with the private fields stripped.
func (r *Registry) GetPublic(ctx context.Context, id int64) (*models.Account, error) {
	account, err := r.Get(ctx, id)
	if err != nil || account == nil {
		return nil, err
	}
	public := account.Public()
	return &public, nil
}

func (r *Registry) GetByTag(ctx context.Context, username string, discriminator string) (*models.Account, error) {
	return r.getWhere(ctx, "username = ? AND discriminator = ?", username, discriminator)
}

func (r *Registry) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

// MembersOf returns the public view of every member of a server.
func (r *Registry) MembersOf(ctx context.Context, serverID int64) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			users.id, users.username, users.discriminator, users.password_hash,
			users.avatar_url, users.online, users.admin
		FROM
			server_members
		JOIN
			users ON server_members.user_id = users.id
		WHERE
			server_members.server_id = ?
		ORDER BY
			users.id
		`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, account.Public())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// ServerIDs is the membership set of a user, empty for unknown users.
func (r *Registry) ServerIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT server_id FROM server_members WHERE user_id = ? ORDER BY server_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	serverIDs := []int64{}
	for rows.Next() {
		var serverID int64
		if err := rows.Scan(&serverID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		serverIDs = append(serverIDs, serverID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return serverIDs, nil
}

func (r *Registry) CountOwnedServers(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM servers WHERE owner_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owned servers: %w", err)
	}
	return count, nil
}

func (r *Registry) IsMember(ctx context.Context, userID int64, serverID int64) (bool, error) {
	var isMember bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?)", serverID, userID).Scan(&isMember)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return isMember, nil
}

func (r *Registry) OwnsServer(ctx context.Context, userID int64, serverID int64) (bool, error) {
	var ownsServer bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM servers WHERE id = ? AND owner_id = ?)", serverID, userID).Scan(&ownsServer)
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return ownsServer, nil
}

// AddServer puts serverID into the user's membership set. Adding an existing
// membership is a no-op.
func (r *Registry) AddServer(ctx context.Context, userID int64, serverID int64) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO server_members (server_id, user_id) VALUES (?, ?)", serverID, userID)
	if database.IsUniqueViolation(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

func (r *Registry) RemoveServer(ctx context.Context, userID int64, serverID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM server_members WHERE server_id = ? AND user_id = ?", serverID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}

// RemoveServerFromAll strips serverID from every membership set and returns
// how many were changed.
func (r *Registry) RemoveServerFromAll(ctx context.Context, serverID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM server_members WHERE server_id = ?", serverID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove memberships: %w", err)
	}
	return result.RowsAffected()
}

func (r *Registry) Discriminators(ctx context.Context, username string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT discriminator FROM users WHERE username = ?", username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discriminators []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		discriminators = append(discriminators, d)
	}
	return discriminators, rows.Err()
}

func (r *Registry) DiscriminatorTaken(ctx context.Context, username string, discriminator string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = ? AND discriminator = ?)", username, discriminator).Scan(&taken)
	return taken, err
}
