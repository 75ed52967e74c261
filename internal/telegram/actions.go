package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lumio-labs/lumiod/internal/moderation"
)

// Actions executes enforcement operations against the Telegram API.
// Chat, user, and message ids arrive as opaque strings from the ledger
// and are parsed back into Telegram's numeric form here.
type Actions struct {
	bot    *bot.Bot
	logger *slog.Logger
}

var _ moderation.PlatformActions = (*Actions)(nil)

// NewActions creates the Telegram enforcement adapter.
func NewActions(b *bot.Bot, logger *slog.Logger) *Actions {
	return &Actions{
		bot:    b,
		logger: logger.With("component", "telegram_actions"),
	}
}

func (a *Actions) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	cid, err := parseID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	mid, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}

	ok, err := a.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: cid, MessageID: mid})
	if err != nil {
		return fmt.Errorf("failed to delete message %d in chat %d: %w", mid, cid, err)
	}
	if !ok {
		return fmt.Errorf("telegram refused to delete message %d in chat %d", mid, cid)
	}
	return nil
}

func (a *Actions) BanUser(ctx context.Context, chatID, userID string, until time.Time) error {
	cid, err := parseID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	uid, err := parseID(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	ok, err := a.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID:    cid,
		UserID:    uid,
		UntilDate: int(until.Unix()),
	})
	if err != nil {
		return fmt.Errorf("failed to ban user %d in chat %d: %w", uid, cid, err)
	}
	if !ok {
		return fmt.Errorf("telegram refused to ban user %d in chat %d", uid, cid)
	}
	return nil
}

func (a *Actions) UserDisplayName(ctx context.Context, chatID, userID string) (string, error) {
	cid, err := parseID(chatID)
	if err != nil {
		return "", fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	uid, err := parseID(userID)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	member, err := a.bot.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: cid, UserID: uid})
	if err != nil {
		return "", fmt.Errorf("failed to fetch chat member %d: %w", uid, err)
	}

	if user := memberUser(member); user != nil {
		name := user.FirstName
		if user.LastName != "" {
			name += " " + user.LastName
		}
		return name, nil
	}
	return userID, nil
}

func (a *Actions) SendNotice(ctx context.Context, chatID, text string) error {
	cid, err := parseID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	_, err = a.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: cid, Text: text})
	if err != nil {
		return fmt.Errorf("failed to send notice to chat %d: %w", cid, err)
	}
	return nil
}

func memberUser(member *models.ChatMember) *models.User {
	switch {
	case member.Owner != nil:
		return member.Owner.User
	case member.Administrator != nil:
		return &member.Administrator.User
	case member.Member != nil:
		return member.Member.User
	case member.Restricted != nil:
		return member.Restricted.User
	case member.Left != nil:
		return member.Left.User
	case member.Banned != nil:
		return member.Banned.User
	}
	return nil
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
