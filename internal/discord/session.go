// Package discord bridges Discord guilds into the moderation pipeline.
// It mirrors the Telegram adapter: slash commands for linking and Q&A,
// a message tap feeding the oracle, onboarding for new members, and
// the enforcement actions executed against the Discord API.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/lumio-labs/lumiod/internal/assistant"
	"github.com/lumio-labs/lumiod/internal/database"
	"github.com/lumio-labs/lumiod/internal/moderation"
)

// Submitter sends a message to the moderation oracle and returns its
// correlation id.
type Submitter interface {
	SubmitModeration(ctx context.Context, serverID, messageText string, platform moderation.Platform) (string, error)
}

// Deps provides dependencies for the Discord event handlers.
type Deps struct {
	Logger    *slog.Logger
	Store     database.Store
	Assistant assistant.Client
	Oracle    Submitter
	Ledger    *moderation.Ledger
}

// Bridge owns the Discord gateway session and its event handlers.
type Bridge struct {
	session *discordgo.Session
	deps    Deps
	logger  *slog.Logger
}

// NewBridge creates the Discord session and wires up all event
// handlers. The session is not opened until Run is called.
func NewBridge(token string, deps Deps) (*Bridge, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token cannot be empty")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildMembers

	b := &Bridge{
		session: session,
		deps:    deps,
		logger:  deps.Logger.With("component", "discord_bridge"),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteractionCreate)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberAdd)

	return b, nil
}

// Session exposes the underlying gateway session for the enforcement
// and platform adapters.
func (b *Bridge) Session() *discordgo.Session {
	return b.session
}

// Run opens the gateway connection and blocks until the context is
// cancelled, then closes the session.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	b.logger.Info("Discord gateway connection opened")

	<-ctx.Done()

	b.logger.Info("Shutdown signal received, closing Discord session...")
	if err := b.session.Close(); err != nil {
		b.logger.Error("Error closing Discord session", "error", err)
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (b *Bridge) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Discord session ready", "username", r.User.Username, "guild_count", len(r.Guilds))

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "link",
			Description: "Link this guild to a community",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "server-id",
					Description: "The community id to link",
					Required:    true,
				},
			},
		},
		{
			Name:        "ask",
			Description: "Ask the community assistant a question",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "Your question",
					Required:    true,
				},
			},
		},
	}

	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", commands); err != nil {
		b.logger.Error("Failed to register slash commands", "error", err)
		return
	}
	b.logger.Info("Slash commands registered", "count", len(commands))
}
