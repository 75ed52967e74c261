package discord

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lumio-labs/lumiod/internal/moderation"
)

func (b *Bridge) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	ctx := context.Background()
	log := b.logger.With("handler", "message_tap")

	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}

	// Activity counting is best effort and never blocks moderation.
	if err := b.deps.Store.IncrementDiscordMessageCount(ctx, m.GuildID); err != nil {
		log.WarnContext(ctx, "Failed to increment message count", "error", err, "guild_id", m.GuildID)
	}

	server, err := b.deps.Store.GetServerByDiscordGuild(ctx, m.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve community for guild", "error", err, "guild_id", m.GuildID)
		return
	}
	if server == nil {
		return
	}

	requestID, err := b.deps.Oracle.SubmitModeration(ctx, server.ServerID, text, moderation.PlatformDiscord)
	if err != nil {
		log.ErrorContext(ctx, "Moderation submission failed, message will not be moderated",
			"error", err, "guild_id", m.GuildID, "server_id", server.ServerID)
		return
	}

	req := moderation.PendingRequest{
		RequestID:   requestID,
		ServerID:    server.ServerID,
		ChatID:      m.ChannelID,
		UserID:      m.Author.ID,
		MessageID:   m.ID,
		MessageText: text,
		Platform:    moderation.PlatformDiscord,
	}
	if err := b.deps.Ledger.Insert(req); err != nil && errors.Is(err, moderation.ErrDuplicateRequest) {
		log.ErrorContext(ctx, "Duplicate oracle request id, previous entry overwritten",
			"request_id", requestID, "guild_id", m.GuildID)
	}

	log.DebugContext(ctx, "Message submitted for moderation",
		"request_id", requestID, "guild_id", m.GuildID, "server_id", server.ServerID)
}
