package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var pollEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "\U0001f51f"}

// Platform exposes community-facing operations on a linked Discord
// guild: announcements, polls, and membership stats. Identifiers here
// are guild ids, unlike the enforcement adapter which works on
// channels.
type Platform struct {
	session *discordgo.Session
}

// NewPlatform wraps the Discord session for use by the management API.
func NewPlatform(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// Announce posts an announcement to the guild's first text channel.
func (p *Platform) Announce(ctx context.Context, guildID, text string) error {
	channelID, err := p.firstTextChannel(ctx, guildID)
	if err != nil {
		return err
	}

	if _, err := p.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send announcement to guild %s: %w", guildID, err)
	}
	return nil
}

// LaunchPoll posts a reaction poll: a message listing the options under
// numbered emoji, with one reaction per option for members to vote
// with. Discord caps this style of poll at ten options.
func (p *Platform) LaunchPoll(ctx context.Context, guildID, question string, options []string) error {
	if len(options) < 2 {
		return fmt.Errorf("poll needs at least two options, got %d", len(options))
	}
	if len(options) > len(pollEmojis) {
		return fmt.Errorf("poll supports at most %d options, got %d", len(pollEmojis), len(options))
	}

	channelID, err := p.firstTextChannel(ctx, guildID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("\U0001f4ca **%s**\n", question)
	for i, opt := range options {
		body += fmt.Sprintf("\n%s %s", pollEmojis[i], opt)
	}

	msg, err := p.session.ChannelMessageSend(channelID, body, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send poll to guild %s: %w", guildID, err)
	}

	for i := range options {
		if err := p.session.MessageReactionAdd(channelID, msg.ID, pollEmojis[i], discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to add poll reaction %d: %w", i, err)
		}
	}
	return nil
}

// MemberCount reports the guild's approximate member count.
func (p *Platform) MemberCount(ctx context.Context, guildID string) (int, error) {
	guild, err := p.session.GuildWithCounts(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch guild %s: %w", guildID, err)
	}
	return guild.ApproximateMemberCount, nil
}

func (p *Platform) firstTextChannel(ctx context.Context, guildID string) (string, error) {
	channels, err := p.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to list channels for guild %s: %w", guildID, err)
	}

	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("guild %s has no text channel", guildID)
}
