package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrServerNotFound is returned when a server record does not exist.
var ErrServerNotFound = errors.New("server not found")

// Store defines the interface for community record operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateServer inserts a new community record.
	CreateServer(ctx context.Context, server *Server) error

	// GetServer retrieves a community record by its id.
	// Returns ErrServerNotFound if no record exists.
	GetServer(ctx context.Context, serverID string) (*Server, error)

	// GetServersByWallet retrieves all community records owned by a wallet.
	GetServersByWallet(ctx context.Context, walletID string) ([]*Server, error)

	// UpdateModerationConfig persists strictness and banned words.
	UpdateModerationConfig(ctx context.Context, serverID string, strictness int, bannedWords string) error

	// UpdateOnboardingMessage persists the onboarding/welcome text.
	UpdateOnboardingMessage(ctx context.Context, serverID, message string) error

	// LinkTelegramChat binds a Telegram chat to a server, replacing any
	// existing binding for that chat.
	LinkTelegramChat(ctx context.Context, chatID, serverID string) error

	// LinkDiscordGuild binds a Discord guild to a server, replacing any
	// existing binding for that guild.
	LinkDiscordGuild(ctx context.Context, guildID, serverID string) error

	// GetServerByTelegramChat resolves the community record linked to a
	// Telegram chat. Returns nil, nil when the chat is unlinked.
	GetServerByTelegramChat(ctx context.Context, chatID string) (*Server, error)

	// GetServerByDiscordGuild resolves the community record linked to a
	// Discord guild. Returns nil, nil when the guild is unlinked.
	GetServerByDiscordGuild(ctx context.Context, guildID string) (*Server, error)

	// IncrementTelegramMessageCount bumps the per-chat message counter.
	// A no-op for unlinked chats.
	IncrementTelegramMessageCount(ctx context.Context, chatID string) error

	// IncrementDiscordMessageCount bumps the per-guild message counter.
	// A no-op for unlinked guilds.
	IncrementDiscordMessageCount(ctx context.Context, guildID string) error

	// GetTelegramLink retrieves the Telegram binding for a server.
	// Returns nil, nil when no chat is linked.
	GetTelegramLink(ctx context.Context, serverID string) (*TelegramLink, error)

	// GetDiscordLink retrieves the Discord binding for a server.
	// Returns nil, nil when no guild is linked.
	GetDiscordLink(ctx context.Context, serverID string) (*DiscordLink, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateServer inserts a new community record.
func (s *sqlxStore) CreateServer(ctx context.Context, server *Server) error {
	if server == nil {
		return fmt.Errorf("cannot save nil server")
	}
	if server.ServerID == "" {
		return fmt.Errorf("server must have a non-empty server_id")
	}
	if server.WalletID == "" {
		return fmt.Errorf("server must have a non-empty wallet_id")
	}

	now := time.Now().UTC()
	server.CreatedAt = now
	server.UpdatedAt = now
	if server.Strictness == 0 {
		server.Strictness = 1
	}

	query := `
        INSERT INTO servers (server_id, wallet_id, name, description, onboarding_message,
                             persona_prompt, docs_prompt, strictness, banned_words,
                             created_at, updated_at)
        VALUES (:server_id, :wallet_id, :name, :description, :onboarding_message,
                :persona_prompt, :docs_prompt, :strictness, :banned_words,
                :created_at, :updated_at);
    `

	if _, err := s.db.NamedExecContext(ctx, query, server); err != nil {
		s.logger.ErrorContext(ctx, "Error creating server", "server_id", server.ServerID, "error", err)
		return fmt.Errorf("failed to create server %s: %w", server.ServerID, err)
	}

	s.logger.DebugContext(ctx, "Server created successfully", "server_id", server.ServerID)
	return nil
}

const serverColumns = `server_id, wallet_id, name, description, onboarding_message,
       persona_prompt, docs_prompt, strictness, banned_words, created_at, updated_at`

// GetServer retrieves a community record by its id.
func (s *sqlxStore) GetServer(ctx context.Context, serverID string) (*Server, error) {
	if serverID == "" {
		return nil, fmt.Errorf("server_id cannot be empty")
	}

	var server Server
	query := `SELECT ` + serverColumns + ` FROM servers WHERE server_id = ?`

	err := s.db.GetContext(ctx, &server, query, serverID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrServerNotFound

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting server", "server_id", serverID, "error", err)
		return nil, fmt.Errorf("failed to get server %s: %w", serverID, err)
	}

	return &server, nil
}

// GetServersByWallet retrieves all community records owned by a wallet.
func (s *sqlxStore) GetServersByWallet(ctx context.Context, walletID string) ([]*Server, error) {
	if walletID == "" {
		return nil, fmt.Errorf("wallet_id cannot be empty")
	}

	var servers []*Server
	query := `SELECT ` + serverColumns + ` FROM servers WHERE wallet_id = ? ORDER BY created_at DESC`

	if err := s.db.SelectContext(ctx, &servers, query, walletID); err != nil {
		s.logger.ErrorContext(ctx, "Error getting servers by wallet", "wallet_id", walletID, "error", err)
		return nil, fmt.Errorf("failed to get servers for wallet %s: %w", walletID, err)
	}

	return servers, nil
}

// UpdateModerationConfig persists strictness and banned words.
func (s *sqlxStore) UpdateModerationConfig(ctx context.Context, serverID string, strictness int, bannedWords string) error {
	query := `UPDATE servers SET strictness = ?, banned_words = ?, updated_at = ? WHERE server_id = ?`

	result, err := s.db.ExecContext(ctx, query, strictness, bannedWords, time.Now().UTC(), serverID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating moderation config", "server_id", serverID, "error", err)
		return fmt.Errorf("failed to update moderation config for %s: %w", serverID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrServerNotFound
	}

	s.logger.DebugContext(ctx, "Moderation config updated", "server_id", serverID, "strictness", strictness)
	return nil
}

// UpdateOnboardingMessage persists the onboarding/welcome text.
func (s *sqlxStore) UpdateOnboardingMessage(ctx context.Context, serverID, message string) error {
	query := `UPDATE servers SET onboarding_message = ?, updated_at = ? WHERE server_id = ?`

	result, err := s.db.ExecContext(ctx, query, message, time.Now().UTC(), serverID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating onboarding message", "server_id", serverID, "error", err)
		return fmt.Errorf("failed to update onboarding message for %s: %w", serverID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrServerNotFound
	}

	return nil
}

// LinkTelegramChat binds a Telegram chat to a server.
func (s *sqlxStore) LinkTelegramChat(ctx context.Context, chatID, serverID string) error {
	if chatID == "" || serverID == "" {
		return fmt.Errorf("chat_id and server_id cannot be empty")
	}

	// The server record must exist before linking.
	if _, err := s.GetServer(ctx, serverID); err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
        INSERT INTO telegram_servers (chat_id, server_id, message_count, created_at, updated_at)
        VALUES (?, ?, 0, ?, ?)
        ON CONFLICT (chat_id) DO UPDATE SET server_id = excluded.server_id, updated_at = excluded.updated_at;
    `

	if _, err := s.db.ExecContext(ctx, query, chatID, serverID, now, now); err != nil {
		s.logger.ErrorContext(ctx, "Error linking telegram chat", "chat_id", chatID, "server_id", serverID, "error", err)
		return fmt.Errorf("failed to link telegram chat %s: %w", chatID, err)
	}

	s.logger.InfoContext(ctx, "Telegram chat linked", "chat_id", chatID, "server_id", serverID)
	return nil
}

// LinkDiscordGuild binds a Discord guild to a server.
func (s *sqlxStore) LinkDiscordGuild(ctx context.Context, guildID, serverID string) error {
	if guildID == "" || serverID == "" {
		return fmt.Errorf("guild_id and server_id cannot be empty")
	}

	if _, err := s.GetServer(ctx, serverID); err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
        INSERT INTO discord_servers (guild_id, server_id, message_count, created_at, updated_at)
        VALUES (?, ?, 0, ?, ?)
        ON CONFLICT (guild_id) DO UPDATE SET server_id = excluded.server_id, updated_at = excluded.updated_at;
    `

	if _, err := s.db.ExecContext(ctx, query, guildID, serverID, now, now); err != nil {
		s.logger.ErrorContext(ctx, "Error linking discord guild", "guild_id", guildID, "server_id", serverID, "error", err)
		return fmt.Errorf("failed to link discord guild %s: %w", guildID, err)
	}

	s.logger.InfoContext(ctx, "Discord guild linked", "guild_id", guildID, "server_id", serverID)
	return nil
}

// GetServerByTelegramChat resolves the community record linked to a chat.
func (s *sqlxStore) GetServerByTelegramChat(ctx context.Context, chatID string) (*Server, error) {
	var server Server
	query := `
        SELECT s.server_id, s.wallet_id, s.name, s.description, s.onboarding_message,
               s.persona_prompt, s.docs_prompt, s.strictness, s.banned_words,
               s.created_at, s.updated_at
        FROM servers s
        JOIN telegram_servers t ON t.server_id = s.server_id
        WHERE t.chat_id = ?;
    `

	err := s.db.GetContext(ctx, &server, query, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Unlinked chat, not an error.
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error resolving server by telegram chat", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to resolve server for telegram chat %s: %w", chatID, err)
	}

	return &server, nil
}

// GetServerByDiscordGuild resolves the community record linked to a guild.
func (s *sqlxStore) GetServerByDiscordGuild(ctx context.Context, guildID string) (*Server, error) {
	var server Server
	query := `
        SELECT s.server_id, s.wallet_id, s.name, s.description, s.onboarding_message,
               s.persona_prompt, s.docs_prompt, s.strictness, s.banned_words,
               s.created_at, s.updated_at
        FROM servers s
        JOIN discord_servers d ON d.server_id = s.server_id
        WHERE d.guild_id = ?;
    `

	err := s.db.GetContext(ctx, &server, query, guildID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error resolving server by discord guild", "guild_id", guildID, "error", err)
		return nil, fmt.Errorf("failed to resolve server for discord guild %s: %w", guildID, err)
	}

	return &server, nil
}

// IncrementTelegramMessageCount bumps the per-chat message counter.
func (s *sqlxStore) IncrementTelegramMessageCount(ctx context.Context, chatID string) error {
	query := `UPDATE telegram_servers SET message_count = message_count + 1, updated_at = ? WHERE chat_id = ?`

	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), chatID); err != nil {
		s.logger.WarnContext(ctx, "Error incrementing telegram message count", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to increment message count for chat %s: %w", chatID, err)
	}
	return nil
}

// IncrementDiscordMessageCount bumps the per-guild message counter.
func (s *sqlxStore) IncrementDiscordMessageCount(ctx context.Context, guildID string) error {
	query := `UPDATE discord_servers SET message_count = message_count + 1, updated_at = ? WHERE guild_id = ?`

	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), guildID); err != nil {
		s.logger.WarnContext(ctx, "Error incrementing discord message count", "guild_id", guildID, "error", err)
		return fmt.Errorf("failed to increment message count for guild %s: %w", guildID, err)
	}
	return nil
}

// GetTelegramLink retrieves the Telegram binding for a server.
func (s *sqlxStore) GetTelegramLink(ctx context.Context, serverID string) (*TelegramLink, error) {
	var link TelegramLink
	query := `SELECT chat_id, server_id, message_count, created_at, updated_at
	          FROM telegram_servers WHERE server_id = ?`

	err := s.db.GetContext(ctx, &link, query, serverID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting telegram link", "server_id", serverID, "error", err)
		return nil, fmt.Errorf("failed to get telegram link for %s: %w", serverID, err)
	}

	return &link, nil
}

// GetDiscordLink retrieves the Discord binding for a server.
func (s *sqlxStore) GetDiscordLink(ctx context.Context, serverID string) (*DiscordLink, error) {
	var link DiscordLink
	query := `SELECT guild_id, server_id, message_count, created_at, updated_at
	          FROM discord_servers WHERE server_id = ?`

	err := s.db.GetContext(ctx, &link, query, serverID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting discord link", "server_id", serverID, "error", err)
		return nil, fmt.Errorf("failed to get discord link for %s: %w", serverID, err)
	}

	return &link, nil
}
