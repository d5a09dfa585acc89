package servers_test

import (
	"context"
	"database/sql"
	"errors"
	"guildchat-backend/internal/accounts"
	"guildchat-backend/internal/credentials"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/servers"
	"guildchat-backend/internal/snowflake"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fixture struct {
	db       *sql.DB
	accounts *accounts.Registry
	servers  *servers.Registry
}

func setup(t *testing.T) fixture {
	t.Helper()

	db, err := database.OpenSqlite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ids, err := snowflake.New(0)
	if err != nil {
		t.Fatal(err)
	}

	sugar := zap.NewNop().Sugar()
	accountRegistry := accounts.New(db, ids, credentials.NewHasher(), sugar)
	return fixture{
		db:       db,
		accounts: accountRegistry,
		servers:  servers.New(db, accountRegistry, sugar),
	}
}

func (f fixture) register(t *testing.T, username string) *models.Account {
	t.Helper()
	ctx := context.Background()

	tag, err := f.accounts.Register(ctx, username, "password")
	if err != nil {
		t.Fatal(err)
	}
	name, discrim, _ := strings.Cut(tag, "#")
	account, err := f.accounts.GetByTag(ctx, name, discrim)
	if err != nil || account == nil {
		t.Fatalf("GetByTag(%q) = %v, %v", tag, account, err)
	}
	return account
}

func TestCreate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")

	server, err := f.servers.Create(ctx, "Guild", nil, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	if server.ID != 1 {
		t.Errorf("first server should get ID 1, got %d", server.ID)
	}
	if server.OwnerID != owner.ID || server.IconURL != nil {
		t.Errorf("unexpected server %+v", server)
	}
	if len(server.Members) != 1 || server.Members[0].ID != owner.ID {
		t.Fatalf("members should be [owner], got %+v", server.Members)
	}
	if server.Members[0].PasswordHash != "" {
		t.Error("members leak password hashes")
	}

	account, _ := f.accounts.Get(ctx, owner.ID)
	if !slices.Contains(account.Servers, server.ID) {
		t.Errorf("owner membership set %v lacks server %d", account.Servers, server.ID)
	}

	second, err := f.servers.Create(ctx, "Second", nil, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != server.ID+1 {
		t.Errorf("expected ID %d, got %d", server.ID+1, second.ID)
	}
}

func TestCreateFailures(t *testing.T) {
	f := setup(t)
	owner := f.register(t, "owner")

	tests := []struct {
		name     string
		server   string
		ownerID  int64
		expected error
	}{
		{"empty name", "", owner.ID, globals.ErrValidation},
		{"long name", strings.Repeat("x", 65), owner.ID, globals.ErrValidation},
		{"unknown owner", "Guild", 424242, globals.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.servers.Create(context.Background(), tt.server, nil, tt.ownerID)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}

	exists, _ := f.servers.Exists(context.Background(), 1)
	if exists {
		t.Error("failed creates should not leave a server behind")
	}
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")

	server, err := f.servers.Create(ctx, "Guild", nil, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	err = f.servers.Update(ctx, server.ID, models.ServerUpdate{IconURL: models.Set("https://example.com/icon.png")})
	if err != nil {
		t.Fatal(err)
	}
	updated, _ := f.servers.Get(ctx, server.ID)
	if updated.Name != "Guild" {
		t.Errorf("absent name should be untouched, got %q", updated.Name)
	}
	if updated.IconURL == nil || *updated.IconURL != "https://example.com/icon.png" {
		t.Errorf("icon not set: %v", updated.IconURL)
	}

	err = f.servers.Update(ctx, server.ID, models.ServerUpdate{Name: models.Set("Renamed"), IconURL: models.Unset[string]()})
	if err != nil {
		t.Fatal(err)
	}
	updated, _ = f.servers.Get(ctx, server.ID)
	if updated.Name != "Renamed" || updated.IconURL != nil {
		t.Errorf("unexpected server after update %+v", updated)
	}

	err = f.servers.Update(ctx, server.ID, models.ServerUpdate{Name: models.Unset[string]()})
	if !errors.Is(err, globals.ErrValidation) {
		t.Errorf("clearing the name should fail validation, got %v", err)
	}

	err = f.servers.Update(ctx, 99, models.ServerUpdate{Name: models.Set("Ghost")})
	if !errors.Is(err, globals.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinMemberIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")
	member := f.register(t, "member")

	server, err := f.servers.Create(ctx, "Guild", nil, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if err := f.servers.JoinMember(ctx, member.ID, server.ID); err != nil {
			t.Fatal(err)
		}
	}

	account, _ := f.accounts.Get(ctx, member.ID)
	if !slices.Equal(account.Servers, []int64{server.ID}) {
		t.Errorf("expected membership [%d], got %v", server.ID, account.Servers)
	}

	joined, _ := f.servers.Get(ctx, server.ID)
	if len(joined.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(joined.Members))
	}

	if err := f.servers.JoinMember(ctx, member.ID, 99); err != nil {
		t.Errorf("joining a missing server should be a no-op, got %v", err)
	}
	if err := f.servers.JoinMember(ctx, 424242, server.ID); err != nil {
		t.Errorf("joining a missing user should be a no-op, got %v", err)
	}

	joined, _ = f.servers.Get(ctx, server.ID)
	if len(joined.Members) != 2 {
		t.Errorf("no-op joins changed members to %d", len(joined.Members))
	}
}

func TestLeaveMember(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")
	member := f.register(t, "member")

	server, _ := f.servers.Create(ctx, "Guild", nil, owner.ID)
	if err := f.servers.JoinMember(ctx, member.ID, server.ID); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if err := f.servers.LeaveMember(ctx, member.ID, server.ID); err != nil {
			t.Fatal(err)
		}
	}

	account, _ := f.accounts.Get(ctx, member.ID)
	if len(account.Servers) != 0 {
		t.Errorf("expected no memberships, got %v", account.Servers)
	}
}

func TestDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")
	member := f.register(t, "member")

	server, _ := f.servers.Create(ctx, "Guild", nil, owner.ID)
	other, _ := f.servers.Create(ctx, "Other", nil, owner.ID)
	if err := f.servers.JoinMember(ctx, member.ID, server.ID); err != nil {
		t.Fatal(err)
	}

	for _, invite := range []struct {
		code     string
		serverID int64
	}{{"aaaaaaaa", server.ID}, {"bbbbbbbb", server.ID}, {"cccccccc", other.ID}} {
		_, err := f.db.Exec("INSERT INTO invites (code, server_id, inviter_id) VALUES (?, ?, ?)", invite.code, invite.serverID, owner.ID)
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := f.servers.Delete(ctx, server.ID); err != nil {
		t.Fatal(err)
	}

	deleted, err := f.servers.Get(ctx, server.ID)
	if err != nil || deleted != nil {
		t.Errorf("Get after delete = %v, %v", deleted, err)
	}

	var invites int
	if err := f.db.QueryRow("SELECT COUNT(*) FROM invites WHERE server_id = ?", server.ID).Scan(&invites); err != nil {
		t.Fatal(err)
	}
	if invites != 0 {
		t.Errorf("%d invites survived deletion", invites)
	}
	if err := f.db.QueryRow("SELECT COUNT(*) FROM invites").Scan(&invites); err != nil {
		t.Fatal(err)
	}
	if invites != 1 {
		t.Errorf("invites of other servers should survive, got %d", invites)
	}

	for _, id := range []int64{owner.ID, member.ID} {
		account, _ := f.accounts.Get(ctx, id)
		if slices.Contains(account.Servers, server.ID) {
			t.Errorf("user ID [%d] still lists deleted server", id)
		}
	}

	ownerAccount, _ := f.accounts.Get(ctx, owner.ID)
	if !slices.Equal(ownerAccount.Servers, []int64{other.ID}) {
		t.Errorf("owner should keep other server, got %v", ownerAccount.Servers)
	}

	if err := f.servers.Delete(ctx, server.ID); !errors.Is(err, globals.ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestOwnershipAndExistence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")
	member := f.register(t, "member")

	server, _ := f.servers.Create(ctx, "Guild", nil, owner.ID)

	tests := []struct {
		name     string
		got      func() (bool, error)
		expected bool
	}{
		{"owner owns", func() (bool, error) { return f.servers.OwnsServer(ctx, owner.ID, server.ID) }, true},
		{"member doesn't own", func() (bool, error) { return f.servers.OwnsServer(ctx, member.ID, server.ID) }, false},
		{"absent server not owned", func() (bool, error) { return f.servers.OwnsServer(ctx, owner.ID, 99) }, false},
		{"server exists", func() (bool, error) { return f.servers.Exists(ctx, server.ID) }, true},
		{"absent server", func() (bool, error) { return f.servers.Exists(ctx, 99) }, false},
		{"zero ID", func() (bool, error) { return f.servers.Exists(ctx, 0) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.expected {
				t.Errorf("expected %t, got %t", tt.expected, got)
			}
		})
	}
}

func TestListForUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")
	member := f.register(t, "member")

	first, _ := f.servers.Create(ctx, "First", nil, owner.ID)
	second, _ := f.servers.Create(ctx, "Second", nil, owner.ID)
	if err := f.servers.JoinMember(ctx, member.ID, second.ID); err != nil {
		t.Fatal(err)
	}

	owned, err := f.servers.ListForUser(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 || owned[0].ID != first.ID || owned[1].ID != second.ID {
		t.Errorf("unexpected servers for owner %+v", owned)
	}

	joined, _ := f.servers.ListForUser(ctx, member.ID)
	if len(joined) != 1 || joined[0].Name != "Second" {
		t.Errorf("unexpected servers for member %+v", joined)
	}

	none, _ := f.servers.ListForUser(ctx, 424242)
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty list, got %v", none)
	}
}

func TestDeleteOwnedBy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner")
	member := f.register(t, "member")

	first, _ := f.servers.Create(ctx, "First", nil, owner.ID)
	second, _ := f.servers.Create(ctx, "Second", nil, owner.ID)
	kept, _ := f.servers.Create(ctx, "Kept", nil, member.ID)
	for _, serverID := range []int64{first.ID, second.ID} {
		if err := f.servers.JoinMember(ctx, member.ID, serverID); err != nil {
			t.Fatal(err)
		}
	}

	_, err := f.db.Exec("INSERT INTO messages (id, author_id, server_id, contents, created_at) VALUES (1, ?, ?, 'hello', 0)", member.ID, first.ID)
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := f.servers.DeleteOwnedBy(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 servers deleted, got %d", deleted)
	}

	for _, serverID := range []int64{first.ID, second.ID} {
		exists, _ := f.servers.Exists(ctx, serverID)
		if exists {
			t.Errorf("server ID [%d] survived", serverID)
		}
	}

	var messages int
	if err := f.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&messages); err != nil {
		t.Fatal(err)
	}
	if messages != 0 {
		t.Errorf("%d messages survived deletion", messages)
	}

	account, _ := f.accounts.Get(ctx, member.ID)
	if !slices.Equal(account.Servers, []int64{kept.ID}) {
		t.Errorf("member should keep only its own server, got %v", account.Servers)
	}

	none, err := f.servers.DeleteOwnedBy(ctx, owner.ID)
	if err != nil || none != 0 {
		t.Errorf("second DeleteOwnedBy = %d, %v", none, err)
	}
}
