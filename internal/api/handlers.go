package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumio-labs/lumiod/internal/database"
	"github.com/lumio-labs/lumiod/internal/moderation"
	"github.com/lumio-labs/lumiod/internal/oracle"
)

// OracleGateway is the subset of the oracle client the API needs.
type OracleGateway interface {
	PushConfig(ctx context.Context, serverID string, strictness int, bannedWords string) error
	QueryLogs(ctx context.Context, serverID string, limit, offset int) ([]oracle.LogEntry, error)
}

// Platform is a chat platform a community can be linked to. The id is
// the platform's own binding identifier, a Telegram chat id or a
// Discord guild id.
type Platform interface {
	Announce(ctx context.Context, id, text string) error
	LaunchPoll(ctx context.Context, id, question string, options []string) error
	MemberCount(ctx context.Context, id string) (int, error)
}

// Handler holds the dependencies for all management API endpoints.
type Handler struct {
	store     database.Store
	oracle    OracleGateway
	platforms map[moderation.Platform]Platform
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates the management API handler set. Platforms may be
// nil when the corresponding bot is not configured.
func NewHandler(store database.Store, gateway OracleGateway, platforms map[moderation.Platform]Platform, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		oracle:    gateway,
		platforms: platforms,
		validate:  validator.New(),
		logger:    logger.With("component", "api_handlers"),
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to write JSON response", "error", err)
		}
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

type createServerRequest struct {
	WalletID          string `json:"wallet_id" validate:"required"`
	Name              string `json:"name" validate:"required,max=200"`
	Description       string `json:"description"`
	OnboardingMessage string `json:"onboarding_message"`
	PersonaPrompt     string `json:"persona_prompt"`
	DocsPrompt        string `json:"docs_prompt"`
	Strictness        *int   `json:"strictness" validate:"omitempty,min=1,max=10"`
	BannedWords       string `json:"banned_words"`
}

// CreateServer registers a new community and assigns it a server id.
func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	server := &database.Server{
		ServerID:          uuid.NewString(),
		WalletID:          req.WalletID,
		Name:              req.Name,
		Description:       req.Description,
		OnboardingMessage: req.OnboardingMessage,
		PersonaPrompt:     req.PersonaPrompt,
		DocsPrompt:        req.DocsPrompt,
		Strictness:        1,
		BannedWords:       req.BannedWords,
	}
	if req.Strictness != nil {
		server.Strictness = *req.Strictness
	}

	if err := h.store.CreateServer(ctx, server); err != nil {
		h.logger.ErrorContext(ctx, "Failed to create community", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to create community")
		return
	}

	h.pushModerationConfig(ctx, server.ServerID, server.Strictness, server.BannedWords)

	respondWithJSON(w, http.StatusCreated, server)
}

// ListServers lists communities owned by a wallet.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	walletID := r.URL.Query().Get("wallet_id")
	if walletID == "" {
		respondWithError(w, http.StatusBadRequest, "wallet_id query parameter is required")
		return
	}

	servers, err := h.store.GetServersByWallet(ctx, walletID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list communities", "error", err, "wallet_id", walletID)
		respondWithError(w, http.StatusInternalServerError, "failed to list communities")
		return
	}
	if servers == nil {
		servers = []*database.Server{}
	}

	respondWithJSON(w, http.StatusOK, servers)
}

// GetServer returns one community record.
func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serverID := chi.URLParam(r, "serverID")

	server, err := h.store.GetServer(ctx, serverID)
	if err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			respondWithError(w, http.StatusNotFound, "community not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to get community", "error", err, "server_id", serverID)
		respondWithError(w, http.StatusInternalServerError, "failed to get community")
		return
	}

	respondWithJSON(w, http.StatusOK, server)
}

type updateModerationRequest struct {
	Strictness  int    `json:"strictness" validate:"required,min=1,max=10"`
	BannedWords string `json:"banned_words"`
}

// UpdateModeration stores new moderation settings and mirrors them to
// the oracle.
func (h *Handler) UpdateModeration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serverID := chi.URLParam(r, "serverID")

	var req updateModerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	if err := h.store.UpdateModerationConfig(ctx, serverID, req.Strictness, req.BannedWords); err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			respondWithError(w, http.StatusNotFound, "community not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to update moderation config", "error", err, "server_id", serverID)
		respondWithError(w, http.StatusInternalServerError, "failed to update moderation config")
		return
	}

	h.pushModerationConfig(ctx, serverID, req.Strictness, req.BannedWords)

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type updateOnboardingRequest struct {
	OnboardingMessage string `json:"onboarding_message" validate:"required,max=2000"`
}

// UpdateOnboarding stores the onboarding message for new members.
func (h *Handler) UpdateOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serverID := chi.URLParam(r, "serverID")

	var req updateOnboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	if err := h.store.UpdateOnboardingMessage(ctx, serverID, req.OnboardingMessage); err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			respondWithError(w, http.StatusNotFound, "community not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to update onboarding message", "error", err, "server_id", serverID)
		respondWithError(w, http.StatusInternalServerError, "failed to update onboarding message")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type announceRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// Announce broadcasts an announcement to every linked platform.
// Failures are reported per platform rather than hidden.
func (h *Handler) Announce(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")

	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	h.broadcast(w, r, serverID, func(ctx context.Context, p Platform, id string) error {
		return p.Announce(ctx, id, req.Text)
	})
}

type launchPollRequest struct {
	Question string   `json:"question" validate:"required,max=300"`
	Options  []string `json:"options" validate:"required,min=2,max=10,dive,required,max=100"`
}

// LaunchPoll starts a poll on every linked platform.
func (h *Handler) LaunchPoll(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")

	var req launchPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	h.broadcast(w, r, serverID, func(ctx context.Context, p Platform, id string) error {
		return p.LaunchPoll(ctx, id, req.Question, req.Options)
	})
}

// GetLogs returns the community's moderation audit trail from the
// oracle. A slow oracle yields an empty list, never a hung request.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serverID := chi.URLParam(r, "serverID")

	if _, err := h.store.GetServer(ctx, serverID); err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			respondWithError(w, http.StatusNotFound, "community not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get community")
		return
	}

	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	entries, err := h.oracle.QueryLogs(ctx, serverID, limit, offset)
	if err != nil {
		h.logger.WarnContext(ctx, "Log query failed, returning empty list", "error", err, "server_id", serverID)
		entries = []oracle.LogEntry{}
	}
	if entries == nil {
		entries = []oracle.LogEntry{}
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

type platformStats struct {
	Linked       bool   `json:"linked"`
	BindingID    string `json:"binding_id,omitempty"`
	MessageCount int64  `json:"message_count"`
	MemberCount  int    `json:"member_count"`
}

// GetStats reports per-platform activity and membership numbers.
// Member counts are fetched live and degrade to zero on failure.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serverID := chi.URLParam(r, "serverID")

	if _, err := h.store.GetServer(ctx, serverID); err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			respondWithError(w, http.StatusNotFound, "community not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get community")
		return
	}

	stats := map[string]platformStats{}

	tgLink, err := h.store.GetTelegramLink(ctx, serverID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to get telegram link", "error", err, "server_id", serverID)
	}
	tg := platformStats{}
	if tgLink != nil {
		tg = platformStats{Linked: true, BindingID: tgLink.ChatID, MessageCount: tgLink.MessageCount}
		tg.MemberCount = h.memberCount(ctx, moderation.PlatformTelegram, tgLink.ChatID)
	}
	stats[string(moderation.PlatformTelegram)] = tg

	dcLink, err := h.store.GetDiscordLink(ctx, serverID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to get discord link", "error", err, "server_id", serverID)
	}
	dc := platformStats{}
	if dcLink != nil {
		dc = platformStats{Linked: true, BindingID: dcLink.GuildID, MessageCount: dcLink.MessageCount}
		dc.MemberCount = h.memberCount(ctx, moderation.PlatformDiscord, dcLink.GuildID)
	}
	stats[string(moderation.PlatformDiscord)] = dc

	respondWithJSON(w, http.StatusOK, map[string]any{"server_id": serverID, "platforms": stats})
}

// Healthz reports liveness, including database reachability.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// broadcast runs one platform operation against every linked platform
// and reports per-platform outcomes. 404 when the community does not
// exist, 502 when every linked platform fails.
func (h *Handler) broadcast(w http.ResponseWriter, r *http.Request, serverID string, op func(ctx context.Context, p Platform, id string) error) {
	ctx := r.Context()

	if _, err := h.store.GetServer(ctx, serverID); err != nil {
		if errors.Is(err, database.ErrServerNotFound) {
			respondWithError(w, http.StatusNotFound, "community not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get community")
		return
	}

	targets := map[moderation.Platform]string{}
	if link, err := h.store.GetTelegramLink(ctx, serverID); err == nil && link != nil {
		targets[moderation.PlatformTelegram] = link.ChatID
	}
	if link, err := h.store.GetDiscordLink(ctx, serverID); err == nil && link != nil {
		targets[moderation.PlatformDiscord] = link.GuildID
	}
	if len(targets) == 0 {
		respondWithError(w, http.StatusConflict, "community has no linked platforms")
		return
	}

	results := map[string]string{}
	failures := 0
	for platform, id := range targets {
		p, ok := h.platforms[platform]
		if !ok || p == nil {
			results[string(platform)] = "error: platform not available"
			failures++
			continue
		}
		if err := op(ctx, p, id); err != nil {
			h.logger.ErrorContext(ctx, "Platform operation failed", "error", err, "platform", string(platform), "server_id", serverID)
			results[string(platform)] = "error: " + err.Error()
			failures++
			continue
		}
		results[string(platform)] = "ok"
	}

	code := http.StatusOK
	if failures == len(targets) {
		code = http.StatusBadGateway
	}
	respondWithJSON(w, code, map[string]any{"results": results})
}

// pushModerationConfig mirrors settings to the oracle. The community
// record is authoritative, so oracle failures are logged and swallowed.
func (h *Handler) pushModerationConfig(ctx context.Context, serverID string, strictness int, bannedWords string) {
	if h.oracle == nil {
		return
	}
	if err := h.oracle.PushConfig(ctx, serverID, strictness, bannedWords); err != nil {
		h.logger.WarnContext(ctx, "Failed to push moderation config to oracle", "error", err, "server_id", serverID)
	}
}

func (h *Handler) memberCount(ctx context.Context, platform moderation.Platform, id string) int {
	p, ok := h.platforms[platform]
	if !ok || p == nil {
		return 0
	}
	count, err := p.MemberCount(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to fetch member count", "error", err, "platform", string(platform))
		return 0
	}
	return count
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
