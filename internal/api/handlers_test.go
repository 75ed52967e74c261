package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lumio-labs/lumiod/internal/api"
	"github.com/lumio-labs/lumiod/internal/database"
	"github.com/lumio-labs/lumiod/internal/moderation"
	"github.com/lumio-labs/lumiod/internal/oracle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	servers   map[string]*database.Server
	tgLinks   map[string]string
	dcLinks   map[string]string
	pingErr   error
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		servers: make(map[string]*database.Server),
		tgLinks: make(map[string]string),
		dcLinks: make(map[string]string),
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) CreateServer(_ context.Context, s *database.Server) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.servers[s.ServerID] = s
	return nil
}

func (f *fakeStore) GetServer(_ context.Context, id string) (*database.Server, error) {
	s, ok := f.servers[id]
	if !ok {
		return nil, database.ErrServerNotFound
	}
	return s, nil
}

func (f *fakeStore) GetServersByWallet(_ context.Context, walletID string) ([]*database.Server, error) {
	var out []*database.Server
	for _, s := range f.servers {
		if s.WalletID == walletID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateModerationConfig(_ context.Context, id string, strictness int, bannedWords string) error {
	s, ok := f.servers[id]
	if !ok {
		return database.ErrServerNotFound
	}
	s.Strictness = strictness
	s.BannedWords = bannedWords
	return nil
}

func (f *fakeStore) UpdateOnboardingMessage(_ context.Context, id, message string) error {
	s, ok := f.servers[id]
	if !ok {
		return database.ErrServerNotFound
	}
	s.OnboardingMessage = message
	return nil
}

func (f *fakeStore) LinkTelegramChat(_ context.Context, chatID, serverID string) error {
	f.tgLinks[serverID] = chatID
	return nil
}

func (f *fakeStore) LinkDiscordGuild(_ context.Context, guildID, serverID string) error {
	f.dcLinks[serverID] = guildID
	return nil
}

func (f *fakeStore) GetServerByTelegramChat(_ context.Context, chatID string) (*database.Server, error) {
	for serverID, linked := range f.tgLinks {
		if linked == chatID {
			return f.servers[serverID], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetServerByDiscordGuild(_ context.Context, guildID string) (*database.Server, error) {
	for serverID, linked := range f.dcLinks {
		if linked == guildID {
			return f.servers[serverID], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) IncrementTelegramMessageCount(context.Context, string) error { return nil }
func (f *fakeStore) IncrementDiscordMessageCount(context.Context, string) error  { return nil }

func (f *fakeStore) GetTelegramLink(_ context.Context, serverID string) (*database.TelegramLink, error) {
	chatID, ok := f.tgLinks[serverID]
	if !ok {
		return nil, nil
	}
	return &database.TelegramLink{ChatID: chatID, ServerID: serverID, MessageCount: 5}, nil
}

func (f *fakeStore) GetDiscordLink(_ context.Context, serverID string) (*database.DiscordLink, error) {
	guildID, ok := f.dcLinks[serverID]
	if !ok {
		return nil, nil
	}
	return &database.DiscordLink{GuildID: guildID, ServerID: serverID, MessageCount: 2}, nil
}

type fakeGateway struct {
	pushed    []string
	pushErr   error
	logs      []oracle.LogEntry
	logsErr   error
	lastQuery string
}

func (f *fakeGateway) PushConfig(_ context.Context, serverID string, strictness int, bannedWords string) error {
	f.pushed = append(f.pushed, serverID)
	return f.pushErr
}

func (f *fakeGateway) QueryLogs(_ context.Context, serverID string, limit, offset int) ([]oracle.LogEntry, error) {
	f.lastQuery = serverID
	return f.logs, f.logsErr
}

type fakePlatform struct {
	announced []string
	polls     []string
	members   int
	err       error
}

func (f *fakePlatform) Announce(_ context.Context, id, text string) error {
	f.announced = append(f.announced, id+":"+text)
	return f.err
}

func (f *fakePlatform) LaunchPoll(_ context.Context, id, question string, options []string) error {
	f.polls = append(f.polls, id+":"+question)
	return f.err
}

func (f *fakePlatform) MemberCount(context.Context, string) (int, error) {
	return f.members, f.err
}

func newTestRouter(h *api.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/servers", h.CreateServer)
		r.Get("/servers", h.ListServers)
		r.Get("/servers/{serverID}", h.GetServer)
		r.Put("/servers/{serverID}/moderation", h.UpdateModeration)
		r.Put("/servers/{serverID}/onboarding", h.UpdateOnboarding)
		r.Post("/servers/{serverID}/announcements", h.Announce)
		r.Post("/servers/{serverID}/polls", h.LaunchPoll)
		r.Get("/servers/{serverID}/logs", h.GetLogs)
		r.Get("/servers/{serverID}/stats", h.GetStats)
	})
	r.Get("/healthz", h.Healthz)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateServer(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gateway := &fakeGateway{}
	h := api.NewHandler(store, gateway, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPost, "/api/servers",
		`{"wallet_id":"wallet-1","name":"My Community","strictness":5}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var created database.Server
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ServerID == "" {
		t.Error("response carries no server_id")
	}
	if created.Strictness != 5 {
		t.Errorf("strictness = %d, want 5", created.Strictness)
	}
	if _, ok := store.servers[created.ServerID]; !ok {
		t.Error("community was not stored")
	}
	if len(gateway.pushed) != 1 {
		t.Errorf("config push count = %d, want 1", len(gateway.pushed))
	}
}

func TestCreateServerValidation(t *testing.T) {
	t.Parallel()

	h := api.NewHandler(newFakeStore(), &fakeGateway{}, nil, testLogger())
	router := newTestRouter(h)

	testCases := []struct {
		name string
		body string
	}{
		{name: "missing wallet", body: `{"name":"x"}`},
		{name: "missing name", body: `{"wallet_id":"w"}`},
		{name: "strictness out of range", body: `{"wallet_id":"w","name":"x","strictness":11}`},
		{name: "malformed json", body: `{`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := doRequest(t, router, http.MethodPost, "/api/servers", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetServer(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	h := api.NewHandler(store, &fakeGateway{}, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/api/servers/srv-1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/servers/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListServersRequiresWallet(t *testing.T) {
	t.Parallel()

	h := api.NewHandler(newFakeStore(), &fakeGateway{}, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/api/servers", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without wallet_id", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/servers?wallet_id=w", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "[") {
		t.Errorf("empty list did not encode as JSON array: %s", rec.Body.String())
	}
}

func TestUpdateModerationPushesToOracle(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C", Strictness: 1}
	gateway := &fakeGateway{}
	h := api.NewHandler(store, gateway, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPut, "/api/servers/srv-1/moderation",
		`{"strictness":7,"banned_words":"foo"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if store.servers["srv-1"].Strictness != 7 {
		t.Errorf("strictness = %d, want 7", store.servers["srv-1"].Strictness)
	}
	if len(gateway.pushed) != 1 || gateway.pushed[0] != "srv-1" {
		t.Errorf("pushed = %v, want [srv-1]", gateway.pushed)
	}
}

func TestUpdateModerationOracleFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	gateway := &fakeGateway{pushErr: errors.New("oracle down")}
	h := api.NewHandler(store, gateway, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPut, "/api/servers/srv-1/moderation",
		`{"strictness":7}`)

	// The community record is authoritative; a failed oracle mirror
	// must not fail the request.
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite oracle failure", rec.Code)
	}
}

func TestAnnounceBroadcasts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	store.tgLinks["srv-1"] = "1001"
	store.dcLinks["srv-1"] = "guild-1"

	tg := &fakePlatform{}
	dc := &fakePlatform{}
	h := api.NewHandler(store, &fakeGateway{}, map[moderation.Platform]api.Platform{
		moderation.PlatformTelegram: tg,
		moderation.PlatformDiscord:  dc,
	}, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPost, "/api/servers/srv-1/announcements",
		`{"text":"big news"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if len(tg.announced) != 1 || tg.announced[0] != "1001:big news" {
		t.Errorf("telegram announcements = %v", tg.announced)
	}
	if len(dc.announced) != 1 || dc.announced[0] != "guild-1:big news" {
		t.Errorf("discord announcements = %v", dc.announced)
	}
}

func TestAnnouncePartialFailureReported(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	store.tgLinks["srv-1"] = "1001"
	store.dcLinks["srv-1"] = "guild-1"

	tg := &fakePlatform{}
	dc := &fakePlatform{err: errors.New("gateway closed")}
	h := api.NewHandler(store, &fakeGateway{}, map[moderation.Platform]api.Platform{
		moderation.PlatformTelegram: tg,
		moderation.PlatformDiscord:  dc,
	}, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPost, "/api/servers/srv-1/announcements",
		`{"text":"big news"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for partial failure", rec.Code)
	}

	var resp struct {
		Results map[string]string `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Results["telegram"] != "ok" {
		t.Errorf("telegram result = %q, want ok", resp.Results["telegram"])
	}
	if !strings.HasPrefix(resp.Results["discord"], "error:") {
		t.Errorf("discord result = %q, want error", resp.Results["discord"])
	}
}

func TestAnnounceAllFailuresIsBadGateway(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	store.tgLinks["srv-1"] = "1001"

	tg := &fakePlatform{err: errors.New("down")}
	h := api.NewHandler(store, &fakeGateway{}, map[moderation.Platform]api.Platform{
		moderation.PlatformTelegram: tg,
	}, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPost, "/api/servers/srv-1/announcements",
		`{"text":"big news"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 when every platform fails", rec.Code)
	}
}

func TestAnnounceWithoutLinksConflicts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	h := api.NewHandler(store, &fakeGateway{}, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPost, "/api/servers/srv-1/announcements",
		`{"text":"big news"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 with no linked platforms", rec.Code)
	}
}

func TestLaunchPollValidation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	store.tgLinks["srv-1"] = "1001"
	tg := &fakePlatform{}
	h := api.NewHandler(store, &fakeGateway{}, map[moderation.Platform]api.Platform{
		moderation.PlatformTelegram: tg,
	}, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodPost, "/api/servers/srv-1/polls",
		`{"question":"best color?","options":["red"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for single option poll", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/servers/srv-1/polls",
		`{"question":"best color?","options":["red","blue"]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if len(tg.polls) != 1 {
		t.Errorf("polls = %v, want exactly one", tg.polls)
	}
}

func TestGetLogs(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	gateway := &fakeGateway{logs: []oracle.LogEntry{{ID: "l1", Kind: "moderation", Data: "banned"}}}
	h := api.NewHandler(store, gateway, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/api/servers/srv-1/logs?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gateway.lastQuery != "srv-1" {
		t.Errorf("queried server = %q, want srv-1", gateway.lastQuery)
	}
	if !strings.Contains(rec.Body.String(), `"l1"`) {
		t.Errorf("body missing log entry: %s", rec.Body.String())
	}
}

func TestGetLogsOracleFailureReturnsEmptyList(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	gateway := &fakeGateway{logsErr: errors.New("oracle down")}
	h := api.NewHandler(store, gateway, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/api/servers/srv-1/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"logs":[]`) {
		t.Errorf("body = %s, want empty logs list", rec.Body.String())
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.servers["srv-1"] = &database.Server{ServerID: "srv-1", WalletID: "w", Name: "C"}
	store.tgLinks["srv-1"] = "1001"
	tg := &fakePlatform{members: 250}
	h := api.NewHandler(store, &fakeGateway{}, map[moderation.Platform]api.Platform{
		moderation.PlatformTelegram: tg,
	}, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/api/servers/srv-1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Platforms map[string]struct {
			Linked       bool  `json:"linked"`
			MessageCount int64 `json:"message_count"`
			MemberCount  int   `json:"member_count"`
		} `json:"platforms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	tgStats := resp.Platforms["telegram"]
	if !tgStats.Linked || tgStats.MessageCount != 5 || tgStats.MemberCount != 250 {
		t.Errorf("telegram stats = %+v", tgStats)
	}
	if resp.Platforms["discord"].Linked {
		t.Error("discord reported as linked")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	h := api.NewHandler(store, &fakeGateway{}, nil, testLogger())
	router := newTestRouter(h)

	rec := doRequest(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	store.pingErr = errors.New("database locked")
	rec = doRequest(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when ping fails", rec.Code)
	}
}
