package telegram

import (
	"context"
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/lumio-labs/lumiod/internal/assistant"
	"github.com/lumio-labs/lumiod/internal/database"
	"github.com/lumio-labs/lumiod/internal/moderation"
)

// Submitter sends a message to the moderation oracle and returns its
// correlation id.
type Submitter interface {
	SubmitModeration(ctx context.Context, serverID, messageText string, platform moderation.Platform) (string, error)
}

// HandlerDeps provides dependencies for Telegram command and message handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Store     database.Store
	Assistant assistant.Client
	Oracle    Submitter
	Ledger    *moderation.Ledger
}

// RegisteredHandler represents a command handler with its registration metadata.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/link"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "link",
		Handler:     NewLinkHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  []tgbot.Middleware{GroupAdminOnly(deps)},
	}
	handlers["/ask"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "ask",
		Handler:     NewAskHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	return handlers
}
