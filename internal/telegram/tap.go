package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lumio-labs/lumiod/internal/moderation"
)

// NewMessageTap returns the default handler that feeds ordinary group
// messages into the moderation pipeline. Commands and bot messages are
// ignored; messages from unlinked chats pass through untouched.
func NewMessageTap(deps HandlerDeps) bot.HandlerFunc {
	return messageTap{deps}.Handle
}

type messageTap struct {
	deps HandlerDeps
}

func (h messageTap) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message_tap")

	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	// Activity counting is best effort and never blocks moderation.
	if err := h.deps.Store.IncrementTelegramMessageCount(ctx, chatID); err != nil {
		log.WarnContext(ctx, "Failed to increment message count", "error", err, "chat_id", chatID)
	}

	server, err := h.deps.Store.GetServerByTelegramChat(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve community for chat", "error", err, "chat_id", chatID)
		return
	}
	if server == nil {
		return
	}

	requestID, err := h.deps.Oracle.SubmitModeration(ctx, server.ServerID, text, moderation.PlatformTelegram)
	if err != nil {
		log.ErrorContext(ctx, "Moderation submission failed, message will not be moderated",
			"error", err, "chat_id", chatID, "server_id", server.ServerID)
		return
	}

	req := moderation.PendingRequest{
		RequestID:   requestID,
		ServerID:    server.ServerID,
		ChatID:      chatID,
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		MessageID:   strconv.Itoa(msg.ID),
		MessageText: text,
		Platform:    moderation.PlatformTelegram,
	}
	if err := h.deps.Ledger.Insert(req); err != nil && errors.Is(err, moderation.ErrDuplicateRequest) {
		log.ErrorContext(ctx, "Duplicate oracle request id, previous entry overwritten",
			"request_id", requestID, "chat_id", chatID)
	}

	log.DebugContext(ctx, "Message submitted for moderation",
		"request_id", requestID, "chat_id", chatID, "server_id", server.ServerID)
}
