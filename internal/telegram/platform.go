package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Platform exposes community-facing operations on a linked Telegram
// chat: announcements, polls, and membership stats.
type Platform struct {
	actions *Actions
}

// NewPlatform wraps the Telegram adapter for use by the management API.
func NewPlatform(actions *Actions) *Platform {
	return &Platform{actions: actions}
}

// Announce posts an announcement to the linked chat.
func (p *Platform) Announce(ctx context.Context, chatID, text string) error {
	return p.actions.SendNotice(ctx, chatID, text)
}

// LaunchPoll starts a native Telegram poll in the linked chat.
func (p *Platform) LaunchPoll(ctx context.Context, chatID, question string, options []string) error {
	cid, err := parseID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	if len(options) < 2 {
		return fmt.Errorf("poll needs at least two options, got %d", len(options))
	}

	pollOptions := make([]models.InputPollOption, 0, len(options))
	for _, opt := range options {
		pollOptions = append(pollOptions, models.InputPollOption{Text: opt})
	}

	_, err = p.actions.bot.SendPoll(ctx, &bot.SendPollParams{
		ChatID:   cid,
		Question: question,
		Options:  pollOptions,
	})
	if err != nil {
		return fmt.Errorf("failed to send poll to chat %d: %w", cid, err)
	}
	return nil
}

// MemberCount reports the number of members in the linked chat.
func (p *Platform) MemberCount(ctx context.Context, chatID string) (int, error) {
	cid, err := parseID(chatID)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	count, err := p.actions.bot.GetChatMemberCount(ctx, &bot.GetChatMemberCountParams{ChatID: cid})
	if err != nil {
		return 0, fmt.Errorf("failed to get member count for chat %d: %w", cid, err)
	}
	return count, nil
}
