package database

import "time"

// Server represents a community record: the platform-agnostic unit that
// Telegram chats and Discord guilds link to. It owns the authoritative
// copy of the moderation configuration; the oracle's copy is a mirrored
// cache that may lag.
type Server struct {
	ServerID    string    `db:"server_id"    json:"server_id"`
	WalletID    string    `db:"wallet_id"    json:"wallet_id"`
	Name        string    `db:"name"         json:"name"`
	Description string    `db:"description"  json:"description"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`

	OnboardingMessage string `db:"onboarding_message" json:"onboarding_message"`
	PersonaPrompt     string `db:"persona_prompt"     json:"persona_prompt"`
	DocsPrompt        string `db:"docs_prompt"        json:"docs_prompt"`

	// Strictness is the moderation strictness level (1-10).
	Strictness int `db:"strictness" json:"strictness"`
	// BannedWords is a comma-delimited word list mirrored to the oracle.
	BannedWords string `db:"banned_words" json:"banned_words"`
}

// TelegramLink binds a Telegram chat to a community record and tracks its
// message counter.
type TelegramLink struct {
	ChatID       string    `db:"chat_id"       json:"chat_id"`
	ServerID     string    `db:"server_id"     json:"server_id"`
	MessageCount int64     `db:"message_count" json:"message_count"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}

// DiscordLink binds a Discord guild to a community record and tracks its
// message counter.
type DiscordLink struct {
	GuildID      string    `db:"guild_id"      json:"guild_id"`
	ServerID     string    `db:"server_id"     json:"server_id"`
	MessageCount int64     `db:"message_count" json:"message_count"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
