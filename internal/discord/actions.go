package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lumio-labs/lumiod/internal/moderation"
)

// Actions executes enforcement operations against the Discord API. The
// ledger's chat id is the Discord channel id; guild scoped operations
// resolve the owning guild through the channel.
type Actions struct {
	session *discordgo.Session
	logger  *slog.Logger
}

var _ moderation.PlatformActions = (*Actions)(nil)

// NewActions creates the Discord enforcement adapter.
func NewActions(session *discordgo.Session, logger *slog.Logger) *Actions {
	return &Actions{
		session: session,
		logger:  logger.With("component", "discord_actions"),
	}
}

func (a *Actions) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	if err := a.session.ChannelMessageDelete(chatID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete message %s in channel %s: %w", messageID, chatID, err)
	}
	return nil
}

// BanUser suspends the member until the given time. Discord has no
// expiring ban, so the bounded suspension is a member timeout.
func (a *Actions) BanUser(ctx context.Context, chatID, userID string, until time.Time) error {
	guildID, err := a.guildForChannel(ctx, chatID)
	if err != nil {
		return err
	}

	if err := a.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to time out user %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

func (a *Actions) UserDisplayName(ctx context.Context, chatID, userID string) (string, error) {
	guildID, err := a.guildForChannel(ctx, chatID)
	if err != nil {
		return "", err
	}

	member, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild member %s: %w", userID, err)
	}

	switch {
	case member.Nick != "":
		return member.Nick, nil
	case member.User != nil && member.User.GlobalName != "":
		return member.User.GlobalName, nil
	case member.User != nil:
		return member.User.Username, nil
	}
	return userID, nil
}

func (a *Actions) SendNotice(ctx context.Context, chatID, text string) error {
	if _, err := a.session.ChannelMessageSend(chatID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send notice to channel %s: %w", chatID, err)
	}
	return nil
}

func (a *Actions) guildForChannel(ctx context.Context, channelID string) (string, error) {
	if ch, err := a.session.State.Channel(channelID); err == nil && ch.GuildID != "" {
		return ch.GuildID, nil
	}

	ch, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to resolve channel %s: %w", channelID, err)
	}
	if ch.GuildID == "" {
		return "", fmt.Errorf("channel %s does not belong to a guild", channelID)
	}
	return ch.GuildID, nil
}
