package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lumio-labs/lumiod/internal/database"
)

// NewLinkHandler returns a handler for the /link command. It binds the
// current group chat to a registered community so its messages flow
// through moderation.
func NewLinkHandler(deps HandlerDeps) bot.HandlerFunc {
	return linkHandler{deps}.Handle
}

type linkHandler struct {
	deps HandlerDeps
}

func (h linkHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "link")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Link handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	serverID := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/link"))
	if serverID == "" {
		sendReply(ctx, b, chatID, "Usage: /link <server-id>", log)
		return
	}

	log.InfoContext(ctx, "Handling /link command", "chat_id", chatID, "server_id", serverID)

	if _, err := h.deps.Store.GetServer(ctx, serverID); err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			sendReply(ctx, b, chatID, "No community found with that id.", log)
			return
		}
		log.ErrorContext(ctx, "Failed to look up community", "error", err, "server_id", serverID)
		sendReply(ctx, b, chatID, "Something went wrong. Please try again.", log)
		return
	}

	if err := h.deps.Store.LinkTelegramChat(ctx, strconv.FormatInt(chatID, 10), serverID); err != nil {
		log.ErrorContext(ctx, "Failed to link chat", "error", err, "chat_id", chatID, "server_id", serverID)
		sendReply(ctx, b, chatID, "Failed to link this chat. Please try again.", log)
		return
	}

	sendReply(ctx, b, chatID, "This chat is now linked. Messages here are subject to community moderation.", log)
}

// NewAskHandler returns a handler for the /ask command. Answers come
// from the assistant, grounded in the community's persona and docs.
func NewAskHandler(deps HandlerDeps) bot.HandlerFunc {
	return askHandler{deps}.Handle
}

type askHandler struct {
	deps HandlerDeps
}

func (h askHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "ask")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Ask handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	question := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/ask"))
	if question == "" {
		sendReply(ctx, b, chatID, "Usage: /ask <question>", log)
		return
	}

	if h.deps.Assistant == nil {
		sendReply(ctx, b, chatID, "The assistant is not available right now.", log)
		return
	}

	server, err := h.deps.Store.GetServerByTelegramChat(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve community for chat", "error", err, "chat_id", chatID)
		sendReply(ctx, b, chatID, "Something went wrong. Please try again.", log)
		return
	}
	if server == nil {
		sendReply(ctx, b, chatID, "This chat is not linked to a community. An admin can link it with /link.", log)
		return
	}

	log.InfoContext(ctx, "Handling /ask command", "chat_id", chatID, "server_id", server.ServerID)

	answer, err := h.deps.Assistant.Answer(ctx, question, server.PersonaPrompt, server.DocsPrompt)
	if err != nil {
		log.ErrorContext(ctx, "Assistant failed to answer", "error", err, "chat_id", chatID)
		sendReply(ctx, b, chatID, "I could not come up with an answer. Please try again later.", log)
		return
	}

	sendReply(ctx, b, chatID, answer, log)
}

func sendReply(ctx context.Context, b *bot.Bot, chatID int64, text string, log *slog.Logger) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
