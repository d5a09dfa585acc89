package messages_test

import (
	"context"
	"errors"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/messages"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newRegistry(t *testing.T, now time.Time) *messages.Registry {
	t.Helper()

	db, err := database.OpenSqlite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	// messages reference their server
	if _, err := db.Exec("INSERT INTO servers (id, name, owner_id) VALUES (1, 'Guild', 5)"); err != nil {
		t.Fatal(err)
	}

	return messages.New(db, zap.NewNop().Sugar(), messages.WithClock(func() time.Time { return now }))
}

func TestCreateAndGet(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC)
	registry := newRegistry(t, now)
	ctx := context.Background()

	created, err := registry.Create(ctx, 77, 5, 1, "hello")
	if err != nil {
		t.Fatal(err)
	}

	expectedTime := now.Truncate(time.Millisecond)
	if !created.CreatedAt.Equal(expectedTime) {
		t.Errorf("expected createdAt %v, got %v", expectedTime, created.CreatedAt)
	}

	message, err := registry.Get(ctx, 77)
	if err != nil {
		t.Fatal(err)
	}
	if message == nil {
		t.Fatal("message not found")
	}
	if message.ID != created.ID || message.AuthorID != 5 || message.ServerID != 1 || message.Contents != "hello" || !message.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("stored %+v, read back %+v", created, message)
	}

	missing, err := registry.Get(ctx, 78)
	if err != nil || missing != nil {
		t.Errorf("Get of unknown ID = %v, %v", missing, err)
	}
}

func TestCreateValidation(t *testing.T) {
	registry := newRegistry(t, time.Now())

	tests := []struct {
		name     string
		contents string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("a", 2001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Create(context.Background(), 1, 1, 1, tt.contents)
			if !errors.Is(err, globals.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	registry := newRegistry(t, time.Now())
	ctx := context.Background()

	if _, err := registry.Create(ctx, 1, 5, 1, "first"); err != nil {
		t.Fatal(err)
	}

	if err := registry.Update(ctx, 1, "edited"); err != nil {
		t.Fatal(err)
	}
	message, _ := registry.Get(ctx, 1)
	if message.Contents != "edited" {
		t.Errorf("expected edited contents, got %q", message.Contents)
	}

	if err := registry.Update(ctx, 2, "ghost"); !errors.Is(err, globals.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := registry.Update(ctx, 1, ""); !errors.Is(err, globals.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	if err := registry.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := registry.Delete(ctx, 1); !errors.Is(err, globals.ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
}
