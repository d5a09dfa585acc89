// Package servers is the server registry. Membership itself lives in the
// account registry's server_members table; this package decides when it
// changes.
package servers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"guildchat-backend/internal/accounts"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/validator"

	"go.uber.org/zap"
)

type Registry struct {
	db       *sql.DB
	accounts *accounts.Registry
	sugar    *zap.SugaredLogger
}

func New(db *sql.DB, accounts *accounts.Registry, sugar *zap.SugaredLogger) *Registry {
	return &Registry{
		db:       db,
		accounts: accounts,
		sugar:    sugar,
	}
}

// Create inserts a server owned by ownerID, joins the owner to it and returns
// it with its members. Ids are the current maximum plus one, so two creates
// racing on a networked store can pick the same id; the loser fails on the
// primary key.
func (r *Registry) Create(ctx context.Context, name string, iconURL *string, ownerID int64) (*models.Server, error) {
	if err := validator.ServerName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", globals.ErrValidation, err)
	}

	var server *models.Server
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		members := r.accounts.WithQuerier(tx)

		ownerExists, err := members.Exists(ctx, ownerID)
		if err != nil {
			return err
		}
		if !ownerExists {
			return fmt.Errorf("%w: user ID [%d]", globals.ErrNotFound, ownerID)
		}

		var serverID int64
		err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM servers").Scan(&serverID)
		if err != nil {
			return fmt.Errorf("failed to allocate server ID: %w", err)
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO servers (id, name, icon_url, owner_id) VALUES (?, ?, ?, ?)",
			serverID, name, database.NullString(iconURL), ownerID)
		if err != nil {
			return fmt.Errorf("failed to insert server: %w", err)
		}

		if err := members.AddServer(ctx, ownerID, serverID); err != nil {
			return err
		}

		server, err = get(ctx, tx, members, serverID)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.sugar.Debugf("User ID [%d] created server ID [%d] named [%s]", ownerID, server.ID, server.Name)
	return server, nil
}

// Update applies the fields present in update. The name can be replaced but
// not cleared.
func (r *Registry) Update(ctx context.Context, id int64, update models.ServerUpdate) error {
	var sets []string
	var args []any

	if update.Name.IsUnset() {
		return fmt.Errorf("%w: empty_server_name", globals.ErrValidation)
	}
	if name, ok := update.Name.Get(); ok {
		if err := validator.ServerName(name); err != nil {
			return fmt.Errorf("%w: %v", globals.ErrValidation, err)
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if !update.IconURL.IsAbsent() {
		sets = append(sets, "icon_url = ?")
		args = append(args, database.NullString(update.IconURL.Pointer()))
	}

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: server ID [%d]", globals.ErrNotFound, id)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	_, err = r.db.ExecContext(ctx, "UPDATE servers SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}

	r.sugar.Debugf("Updated server ID [%d]", id)
	return nil
}

// JoinMember does nothing if the user or the server doesn't exist, or the
// user is already a member.
func (r *Registry) JoinMember(ctx context.Context, userID int64, serverID int64) error {
	serverExists, err := r.Exists(ctx, serverID)
	if err != nil || !serverExists {
		return err
	}

	userExists, err := r.accounts.Exists(ctx, userID)
	if err != nil || !userExists {
		return err
	}

	if err := r.accounts.AddServer(ctx, userID, serverID); err != nil {
		return err
	}

	r.sugar.Debugf("User ID [%d] joined server ID [%d]", userID, serverID)
	return nil
}

func (r *Registry) LeaveMember(ctx context.Context, userID int64, serverID int64) error {
	return r.accounts.RemoveServer(ctx, userID, serverID)
}

// Delete removes the server with its invites, messages and memberships in
// one transaction.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.deleteServer(ctx, tx, id)
	})
}

// DeleteOwnedBy deletes every server ownerID owns and returns how many there
// were. An owner has to be gone from all of them before the account itself
// can be deleted.
func (r *Registry) DeleteOwnedBy(ctx context.Context, ownerID int64) (int, error) {
	var deleted int
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		serverIDs, err := ownedServerIDs(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		for _, id := range serverIDs {
			if err := r.deleteServer(ctx, tx, id); err != nil {
				return err
			}
		}

		deleted = len(serverIDs)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		r.sugar.Debugf("Deleted %d servers owned by user ID [%d]", deleted, ownerID)
	}
	return deleted, nil
}

func ownedServerIDs(ctx context.Context, tx *sql.Tx, ownerID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM servers WHERE owner_id = ? ORDER BY id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned servers: %w", err)
	}
	defer rows.Close()

	var serverIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan server ID: %w", err)
		}
		serverIDs = append(serverIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate owned servers: %w", err)
	}
	return serverIDs, nil
}

func (r *Registry) deleteServer(ctx context.Context, tx *sql.Tx, id int64) error {
	deletedInvites, err := deleteRows(ctx, tx, "DELETE FROM invites WHERE server_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete invites: %w", err)
	}

	deletedMessages, err := deleteRows(ctx, tx, "DELETE FROM messages WHERE server_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	memberships, err := r.accounts.WithQuerier(tx).RemoveServerFromAll(ctx, id)
	if err != nil {
		return err
	}

	affected, err := deleteRows(ctx, tx, "DELETE FROM servers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: server ID [%d]", globals.ErrNotFound, id)
	}

	r.sugar.Debugf("Deleted server ID [%d] with %d invites, %d messages and %d memberships", id, deletedInvites, deletedMessages, memberships)
	return nil
}

func deleteRows(ctx context.Context, tx *sql.Tx, query string, id int64) (int64, error) {
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Get returns the server with the public view of its members, or nil if it
// doesn't exist.
func (r *Registry) Get(ctx context.Context, id int64) (*models.Server, error) {
	return get(ctx, r.db, r.accounts, id)
}

func get(ctx context.Context, q database.Querier, members *accounts.Registry, id int64) (*models.Server, error) {
	var server models.Server
	var iconURL sql.NullString

	err := q.QueryRowContext(ctx, "SELECT id, name, icon_url, owner_id FROM servers WHERE id = ?", id).
		Scan(&server.ID, &server.Name, &iconURL, &server.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	server.IconURL = database.StringPointer(iconURL)

	server.Members, err = members.MembersOf(ctx, id)
	if err != nil {
		return nil, err
	}

	return &server, nil
}

func (r *Registry) OwnsServer(ctx context.Context, userID int64, id int64) (bool, error) {
	return r.accounts.OwnsServer(ctx, userID, id)
}

// Exists is false for the zero id.
func (r *Registry) Exists(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM servers WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check server: %w", err)
	}
	return exists, nil
}

// ListForUser returns the servers userID belongs to, without members.
func (r *Registry) ListForUser(ctx context.Context, userID int64) ([]models.Server, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			servers.id, servers.name, servers.icon_url, servers.owner_id
		FROM
			servers
		JOIN
			server_members ON servers.id = server_members.server_id
		WHERE
			server_members.user_id = ?
		ORDER BY
			servers.id
		`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		var server models.Server
		var iconURL sql.NullString
		if err := rows.Scan(&server.ID, &server.Name, &iconURL, &server.OwnerID); err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		server.IconURL = database.StringPointer(iconURL)
		servers = append(servers, server)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate servers: %w", err)
	}
	return servers, nil
}
