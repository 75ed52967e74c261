package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// markdownEscaper neutralizes Discord formatting characters in user
// supplied names before substitution into the onboarding template.
var markdownEscaper = strings.NewReplacer(
	"*", "\\*",
	"_", "\\_",
	"~", "\\~",
	"`", "\\`",
	"|", "\\|",
	">", "\\>",
)

func (b *Bridge) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	ctx := context.Background()
	log := b.logger.With("handler", "onboarding", "guild_id", m.GuildID)

	if m.User == nil || m.User.Bot {
		return
	}

	server, err := b.deps.Store.GetServerByDiscordGuild(ctx, m.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve community for guild", "error", err)
		return
	}
	if server == nil || server.OnboardingMessage == "" {
		return
	}

	name := m.User.GlobalName
	if name == "" {
		name = m.User.Username
	}
	message := strings.ReplaceAll(server.OnboardingMessage, "{user}", markdownEscaper.Replace(name))

	channel, err := s.UserChannelCreate(m.User.ID)
	if err != nil {
		log.WarnContext(ctx, "Failed to open DM channel for new member", "error", err, "user_id", m.User.ID)
		return
	}

	if _, err := s.ChannelMessageSend(channel.ID, message); err != nil {
		log.WarnContext(ctx, "Failed to send onboarding message", "error", err, "user_id", m.User.ID)
		return
	}

	log.InfoContext(ctx, "Onboarding message sent", "user_id", m.User.ID, "server_id", server.ServerID)
}
