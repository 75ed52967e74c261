// Package moderation implements the moderation relay pipeline: the
// pending-request ledger, verdict parsing, the recurring verdict poller,
// and the platform-neutral enforcement flow.
package moderation

// Platform identifies which chat platform a moderated message came from
// and therefore which enforcer handles its verdict.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
)

// PendingRequest holds the context needed to act on an eventual verdict
// for one submitted message. All platform-native identifiers are carried
// as opaque strings; only the platform adapters interpret them.
type PendingRequest struct {
	// RequestID is the correlation token returned by the oracle at
	// submission time. Primary key of the ledger.
	RequestID string

	// ServerID is the platform-agnostic community identifier.
	ServerID string

	// ChatID is the platform-native chat/channel identifier.
	ChatID string

	// UserID is the platform-native author identifier.
	UserID string

	// MessageID is the platform-native message identifier, needed to
	// delete the exact message.
	MessageID string

	// MessageText is the original content, retained for audit logging
	// after enforcement.
	MessageText string

	// Platform selects the enforcer for this request's verdict.
	Platform Platform
}
