package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lumio-labs/lumiod/internal/database"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

func testServer(id, wallet string) *database.Server {
	return &database.Server{
		ServerID:          id,
		WalletID:          wallet,
		Name:              "Test Community",
		Description:       "a test community",
		OnboardingMessage: "Welcome {user}!",
		PersonaPrompt:     "friendly",
		DocsPrompt:        "docs",
		Strictness:        3,
		BannedWords:       "foo,bar",
	}
}

func TestCreateAndGetServer(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateServer(ctx, testServer("srv-1", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}

	got, err := store.GetServer(ctx, "srv-1")
	if err != nil {
		t.Fatalf("GetServer returned unexpected error: %v", err)
	}
	if got.Name != "Test Community" || got.Strictness != 3 || got.BannedWords != "foo,bar" {
		t.Errorf("GetServer returned %+v", got)
	}

	if _, err := store.GetServer(ctx, "missing"); !errors.Is(err, database.ErrServerNotFound) {
		t.Errorf("GetServer(missing) error = %v, want ErrServerNotFound", err)
	}
}

func TestGetServersByWallet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"srv-1", "srv-2"} {
		if err := store.CreateServer(ctx, testServer(id, "wallet-1")); err != nil {
			t.Fatalf("CreateServer(%q) returned unexpected error: %v", id, err)
		}
	}
	if err := store.CreateServer(ctx, testServer("srv-3", "wallet-2")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}

	servers, err := store.GetServersByWallet(ctx, "wallet-1")
	if err != nil {
		t.Fatalf("GetServersByWallet returned unexpected error: %v", err)
	}
	if len(servers) != 2 {
		t.Errorf("GetServersByWallet returned %d servers, want 2", len(servers))
	}
}

func TestUpdateModerationConfig(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateServer(ctx, testServer("srv-1", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}

	if err := store.UpdateModerationConfig(ctx, "srv-1", 8, "baz"); err != nil {
		t.Fatalf("UpdateModerationConfig returned unexpected error: %v", err)
	}

	got, err := store.GetServer(ctx, "srv-1")
	if err != nil {
		t.Fatalf("GetServer returned unexpected error: %v", err)
	}
	if got.Strictness != 8 || got.BannedWords != "baz" {
		t.Errorf("moderation config not updated, got %+v", got)
	}

	err = store.UpdateModerationConfig(ctx, "missing", 5, "")
	if !errors.Is(err, database.ErrServerNotFound) {
		t.Errorf("UpdateModerationConfig(missing) error = %v, want ErrServerNotFound", err)
	}
}

func TestUpdateOnboardingMessage(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateServer(ctx, testServer("srv-1", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}

	if err := store.UpdateOnboardingMessage(ctx, "srv-1", "Hi {user}"); err != nil {
		t.Fatalf("UpdateOnboardingMessage returned unexpected error: %v", err)
	}

	got, err := store.GetServer(ctx, "srv-1")
	if err != nil {
		t.Fatalf("GetServer returned unexpected error: %v", err)
	}
	if got.OnboardingMessage != "Hi {user}" {
		t.Errorf("OnboardingMessage = %q, want %q", got.OnboardingMessage, "Hi {user}")
	}
}

func TestTelegramLinking(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateServer(ctx, testServer("srv-1", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}
	if err := store.CreateServer(ctx, testServer("srv-2", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}

	// Linking to an unknown server must fail.
	if err := store.LinkTelegramChat(ctx, "1001", "missing"); !errors.Is(err, database.ErrServerNotFound) {
		t.Errorf("LinkTelegramChat to missing server error = %v, want ErrServerNotFound", err)
	}

	if err := store.LinkTelegramChat(ctx, "1001", "srv-1"); err != nil {
		t.Fatalf("LinkTelegramChat returned unexpected error: %v", err)
	}

	server, err := store.GetServerByTelegramChat(ctx, "1001")
	if err != nil {
		t.Fatalf("GetServerByTelegramChat returned unexpected error: %v", err)
	}
	if server == nil || server.ServerID != "srv-1" {
		t.Fatalf("GetServerByTelegramChat returned %+v, want srv-1", server)
	}

	// Unlinked chats resolve to nil without error.
	server, err = store.GetServerByTelegramChat(ctx, "9999")
	if err != nil {
		t.Fatalf("GetServerByTelegramChat returned unexpected error: %v", err)
	}
	if server != nil {
		t.Errorf("unlinked chat resolved to %+v, want nil", server)
	}

	// Relinking the same chat moves it to the new server.
	if err := store.LinkTelegramChat(ctx, "1001", "srv-2"); err != nil {
		t.Fatalf("relink returned unexpected error: %v", err)
	}
	server, err = store.GetServerByTelegramChat(ctx, "1001")
	if err != nil {
		t.Fatalf("GetServerByTelegramChat returned unexpected error: %v", err)
	}
	if server == nil || server.ServerID != "srv-2" {
		t.Errorf("relinked chat resolved to %+v, want srv-2", server)
	}
}

func TestDiscordLinking(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateServer(ctx, testServer("srv-1", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}

	if err := store.LinkDiscordGuild(ctx, "guild-1", "srv-1"); err != nil {
		t.Fatalf("LinkDiscordGuild returned unexpected error: %v", err)
	}

	server, err := store.GetServerByDiscordGuild(ctx, "guild-1")
	if err != nil {
		t.Fatalf("GetServerByDiscordGuild returned unexpected error: %v", err)
	}
	if server == nil || server.ServerID != "srv-1" {
		t.Errorf("GetServerByDiscordGuild returned %+v, want srv-1", server)
	}

	server, err = store.GetServerByDiscordGuild(ctx, "guild-unknown")
	if err != nil {
		t.Fatalf("GetServerByDiscordGuild returned unexpected error: %v", err)
	}
	if server != nil {
		t.Errorf("unlinked guild resolved to %+v, want nil", server)
	}
}

func TestMessageCounters(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateServer(ctx, testServer("srv-1", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}
	if err := store.LinkTelegramChat(ctx, "1001", "srv-1"); err != nil {
		t.Fatalf("LinkTelegramChat returned unexpected error: %v", err)
	}
	if err := store.LinkDiscordGuild(ctx, "guild-1", "srv-1"); err != nil {
		t.Fatalf("LinkDiscordGuild returned unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.IncrementTelegramMessageCount(ctx, "1001"); err != nil {
			t.Fatalf("IncrementTelegramMessageCount returned unexpected error: %v", err)
		}
	}
	if err := store.IncrementDiscordMessageCount(ctx, "guild-1"); err != nil {
		t.Fatalf("IncrementDiscordMessageCount returned unexpected error: %v", err)
	}

	tgLink, err := store.GetTelegramLink(ctx, "srv-1")
	if err != nil {
		t.Fatalf("GetTelegramLink returned unexpected error: %v", err)
	}
	if tgLink == nil || tgLink.MessageCount != 3 {
		t.Errorf("telegram link = %+v, want message_count 3", tgLink)
	}

	dcLink, err := store.GetDiscordLink(ctx, "srv-1")
	if err != nil {
		t.Fatalf("GetDiscordLink returned unexpected error: %v", err)
	}
	if dcLink == nil || dcLink.MessageCount != 1 {
		t.Errorf("discord link = %+v, want message_count 1", dcLink)
	}

	// Links for a server with no bindings are nil, nil.
	if err := store.CreateServer(ctx, testServer("srv-2", "wallet-1")); err != nil {
		t.Fatalf("CreateServer returned unexpected error: %v", err)
	}
	link, err := store.GetTelegramLink(ctx, "srv-2")
	if err != nil || link != nil {
		t.Errorf("GetTelegramLink(srv-2) = %+v, %v, want nil, nil", link, err)
	}
}
