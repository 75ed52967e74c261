package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumio-labs/lumiod/internal/metrics"
)

// PlatformActions abstracts the native calls an enforcer needs. Each
// platform adapter (Telegram, Discord) supplies its own implementation;
// identifiers are the opaque strings carried in PendingRequest.
type PlatformActions interface {
	// DeleteMessage removes a message from a chat.
	DeleteMessage(ctx context.Context, chatID, messageID string) error

	// BanUser suspends a user from a chat until the given time.
	BanUser(ctx context.Context, chatID, userID string, until time.Time) error

	// UserDisplayName resolves a human-readable name for notices.
	UserDisplayName(ctx context.Context, chatID, userID string) (string, error)

	// SendNotice posts a text notice to a chat.
	SendNotice(ctx context.Context, chatID, text string) error
}

// AuditLogger records enforced rejections to the audit trail.
// Implemented by the oracle client; failures are best-effort.
type AuditLogger interface {
	AppendLog(ctx context.Context, serverID, kind, data string) (string, error)
}

// Enforcer carries out verdicts on one platform: delete the offending
// message, apply a temporary ban, and post a notice. All three sub-steps
// are independent and best-effort; a failure in one never prevents the
// next from being attempted.
type Enforcer struct {
	actions     PlatformActions
	audit       AuditLogger
	logger      *slog.Logger
	banDuration time.Duration
}

// NewEnforcer creates an enforcer over the given platform actions.
// banDuration bounds the suspension applied on reject verdicts.
func NewEnforcer(actions PlatformActions, audit AuditLogger, banDuration time.Duration, logger *slog.Logger, platform Platform) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		actions:     actions,
		audit:       audit,
		logger:      logger.With("component", "enforcer", "platform", string(platform)),
		banDuration: banDuration,
	}
}

// Enforce applies a verdict to the request's message and author. Allow
// verdicts are a no-op. Enforcement failures are logged, never returned:
// once a verdict is dispatched the ledger entry is resolved regardless
// of enforcement outcome.
func (e *Enforcer) Enforce(ctx context.Context, verdict Verdict, req PendingRequest) {
	if verdict.Decision == DecisionAllow {
		e.logger.DebugContext(ctx, "Verdict allows message, nothing to enforce",
			"request_id", req.RequestID, "chat_id", req.ChatID)
		return
	}

	log := e.logger.With(
		"request_id", req.RequestID,
		"chat_id", req.ChatID,
		"user_id", req.UserID,
		"message_id", req.MessageID,
	)
	reason := verdict.ReasonOrDefault()

	// Delete first so the offending content disappears even if the ban
	// fails. The message may already be gone; that failure is ignored.
	if err := e.actions.DeleteMessage(ctx, req.ChatID, req.MessageID); err != nil {
		metrics.EnforcementsTotal.WithLabelValues("delete", "error").Inc()
		log.WarnContext(ctx, "Failed to delete message", "error", err)
	} else {
		metrics.EnforcementsTotal.WithLabelValues("delete", "ok").Inc()
	}

	until := time.Now().Add(e.banDuration)
	if err := e.actions.BanUser(ctx, req.ChatID, req.UserID, until); err != nil {
		metrics.EnforcementsTotal.WithLabelValues("ban", "error").Inc()
		// Most commonly the target is an administrator the platform
		// refuses to ban.
		log.WarnContext(ctx, "Failed to ban user", "error", err)
		e.sendNotice(ctx, req.ChatID, "Cannot ban Admin!")
	} else {
		metrics.EnforcementsTotal.WithLabelValues("ban", "ok").Inc()
		log.InfoContext(ctx, "User banned", "reason", reason, "until", until)
		e.sendNotice(ctx, req.ChatID, e.banNotice(ctx, req, reason))
	}

	e.appendAuditLog(ctx, req, reason)
}

func (e *Enforcer) banNotice(ctx context.Context, req PendingRequest, reason string) string {
	name, err := e.actions.UserDisplayName(ctx, req.ChatID, req.UserID)
	if err != nil || name == "" {
		e.logger.DebugContext(ctx, "Could not resolve banned user's name", "user_id", req.UserID, "error", err)
		name = req.UserID
	}
	return "Banned: " + name + "\nReason: " + reason
}

func (e *Enforcer) sendNotice(ctx context.Context, chatID, text string) {
	if err := e.actions.SendNotice(ctx, chatID, text); err != nil {
		metrics.EnforcementsTotal.WithLabelValues("notice", "error").Inc()
		e.logger.WarnContext(ctx, "Failed to send notice", "chat_id", chatID, "error", err)
		return
	}
	metrics.EnforcementsTotal.WithLabelValues("notice", "ok").Inc()
}

func (e *Enforcer) appendAuditLog(ctx context.Context, req PendingRequest, reason string) {
	if e.audit == nil {
		return
	}
	data := "user " + req.UserID + " in chat " + req.ChatID + ": " + reason + " (message: " + req.MessageText + ")"
	if _, err := e.audit.AppendLog(ctx, req.ServerID, "moderation", data); err != nil {
		e.logger.WarnContext(ctx, "Failed to append audit log", "server_id", req.ServerID, "error", err)
	}
}
