package discord

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lumio-labs/lumiod/internal/database"
)

func (b *Bridge) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "link":
		b.handleLink(s, i)
	case "ask":
		b.handleAsk(s, i)
	}
}

func (b *Bridge) handleLink(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	log := b.logger.With("handler", "link", "guild_id", i.GuildID)

	if i.GuildID == "" {
		b.respond(s, i, "This command can only be used in a server.", log)
		return
	}
	if i.Member == nil || i.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		log.WarnContext(ctx, "Unauthorized link attempt")
		b.respond(s, i, "Only server administrators can use this command.", log)
		return
	}

	serverID := strings.TrimSpace(i.ApplicationCommandData().Options[0].StringValue())
	if serverID == "" {
		b.respond(s, i, "Usage: /link server-id:<id>", log)
		return
	}

	log.InfoContext(ctx, "Handling /link command", "server_id", serverID)

	if _, err := b.deps.Store.GetServer(ctx, serverID); err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			b.respond(s, i, "No community found with that id.", log)
			return
		}
		log.ErrorContext(ctx, "Failed to look up community", "error", err, "server_id", serverID)
		b.respond(s, i, "Something went wrong. Please try again.", log)
		return
	}

	if err := b.deps.Store.LinkDiscordGuild(ctx, i.GuildID, serverID); err != nil {
		log.ErrorContext(ctx, "Failed to link guild", "error", err, "server_id", serverID)
		b.respond(s, i, "Failed to link this server. Please try again.", log)
		return
	}

	b.respond(s, i, "This server is now linked. Messages here are subject to community moderation.", log)
}

func (b *Bridge) handleAsk(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	log := b.logger.With("handler", "ask", "guild_id", i.GuildID)

	question := strings.TrimSpace(i.ApplicationCommandData().Options[0].StringValue())
	if question == "" {
		b.respond(s, i, "Usage: /ask question:<text>", log)
		return
	}
	if b.deps.Assistant == nil {
		b.respond(s, i, "The assistant is not available right now.", log)
		return
	}

	server, err := b.deps.Store.GetServerByDiscordGuild(ctx, i.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve community for guild", "error", err)
		b.respond(s, i, "Something went wrong. Please try again.", log)
		return
	}
	if server == nil {
		b.respond(s, i, "This server is not linked to a community. An admin can link it with /link.", log)
		return
	}

	// Answering can exceed Discord's three second interaction window,
	// so defer first and edit the response when ready.
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to defer interaction response", "error", err)
		return
	}

	log.InfoContext(ctx, "Handling /ask command", "server_id", server.ServerID)

	answer, err := b.deps.Assistant.Answer(ctx, question, server.PersonaPrompt, server.DocsPrompt)
	if err != nil {
		log.ErrorContext(ctx, "Assistant failed to answer", "error", err)
		answer = "I could not come up with an answer. Please try again later."
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &answer}); err != nil {
		log.ErrorContext(ctx, "Failed to edit interaction response", "error", err)
	}
}

func (b *Bridge) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, log *slog.Logger) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		log.Error("Failed to respond to interaction", "error", err)
	}
}
