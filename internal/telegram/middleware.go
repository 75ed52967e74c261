package telegram

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// GroupAdminOnly creates a middleware that restricts a command to group
// chats and to senders who are the group's owner or an administrator.
func GroupAdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			log := deps.Logger.With("middleware", "GroupAdminOnly")
			chat := update.Message.Chat
			userID := update.Message.From.ID

			if chat.Type != "group" && chat.Type != "supergroup" {
				log.WarnContext(ctx, "Command used outside a group chat", "chat_id", chat.ID, "chat_type", chat.Type)
				sendReply(ctx, b, chat.ID, "This command can only be used in a group chat.", log)
				return
			}

			member, err := b.GetChatMember(ctx, &tgbot.GetChatMemberParams{
				ChatID: chat.ID,
				UserID: userID,
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to check chat membership", "error", err, "chat_id", chat.ID, "user_id", userID)
				sendReply(ctx, b, chat.ID, "Could not verify your permissions. Please try again.", log)
				return
			}

			if member.Type != models.ChatMemberTypeOwner && member.Type != models.ChatMemberTypeAdministrator {
				log.WarnContext(ctx, "Unauthorized command attempt", "chat_id", chat.ID, "user_id", userID)
				sendReply(ctx, b, chat.ID, "Only group administrators can use this command.", log)
				return
			}

			next(ctx, b, update)
		}
	}
}
