package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/auth"
	"github.com/prompt-clan/prompt-arena/internal/config"
	"github.com/prompt-clan/prompt-arena/internal/curriculum"
	"github.com/prompt-clan/prompt-arena/internal/game"
	"github.com/prompt-clan/prompt-arena/internal/llm"
	"github.com/prompt-clan/prompt-arena/internal/models"
	"github.com/prompt-clan/prompt-arena/internal/storage"
)

type fixedEngine struct {
	verdict models.Verdict
}

func (e *fixedEngine) Generate(_ context.Context, prompt, _ string, provider llm.Provider) llm.Completion {
	return llm.Completion{Text: "echo: " + prompt, Provider: provider}
}

func (e *fixedEngine) Judge(_ context.Context, _ models.Level, _, output string, _ models.Language, _ llm.Provider) models.Verdict {
	v := e.verdict
	v.Output = output
	return v
}

type testEnv struct {
	server *Server
	repo   storage.Repository
	tokens *auth.TokenManager
}

func newTestEnv(t *testing.T, verdict models.Verdict) *testEnv {
	t.Helper()

	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		os.MkdirAll(filepath.Dir(path), 0o755)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("en/ch1/chapter.yaml", "title: Foundations\n")
	write("en/ch1/L1-1.yaml", "title: Audience Persona\ndifficulty: 1\nwin_criteria: Medieval tone, under 50 words.\n")
	write("en/ch1/L1-2.yaml", "title: Explicit Constraints\ndifficulty: 2\nwin_criteria: Raw JSON only.\n")

	catalog := curriculum.NewCatalog()
	if err := catalog.LoadFromDir(dir); err != nil {
		t.Fatal(err)
	}

	repo, err := storage.NewLocalRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	overrides := config.NewMemoryOverrides()
	resolver := config.NewResolverWithEnv(overrides, func(key string) (string, bool) {
		if key == "API_KEY" {
			return "sk-officialkey-123456", true
		}
		return "", false
	})

	srv := NewServer(config.ServerConfig{PublicURL: "http://localhost:8080"}, Deps{
		Catalog:   catalog,
		Runner:    game.NewRunner(&fixedEngine{verdict: verdict}, repo),
		Resolver:  resolver,
		Overrides: overrides,
		Repo:      repo,
		Tokens:    tokens,
		Magic:     auth.NewMagicLinkService(time.Minute, repo, tokens),
	})

	return &testEnv{server: srv, repo: repo, tokens: tokens}
}

func (e *testEnv) sessionFor(t *testing.T, id, name string) string {
	t.Helper()
	u := &models.User{ID: id, Name: name, Provider: "linuxdo"}
	if err := e.repo.UpsertUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	token, err := e.tokens.Mint(u)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid response body: %v: %s", err, rec.Body.String())
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil || envelope.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	return envelope.Error.Code
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListLevelsPublic(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})

	rec := env.do(t, http.MethodGet, "/api/v1/levels", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var levels []models.Level
	decodeData(t, rec, &levels)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].ID != "L1-1" {
		t.Errorf("unexpected first level: %s", levels[0].ID)
	}
}

func TestGetLevelNotFound(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})

	rec := env.do(t, http.MethodGet, "/api/v1/levels/L9-9", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if errorCode(t, rec) != "level_not_found" {
		t.Errorf("unexpected error code")
	}
}

func TestRunRequiresAuth(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})

	rec := env.do(t, http.MethodPost, "/api/v1/runs", "", models.RunRequest{LevelID: "L1-1", Prompt: "p"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateRun(t *testing.T) {
	env := newTestEnv(t, models.Verdict{Success: true, Feedback: "nice", Flag: "CTF{L1-1_CLEARED_7}"})
	token := env.sessionFor(t, "u1", "Alice")

	rec := env.do(t, http.MethodPost, "/api/v1/runs", token, models.RunRequest{
		LevelID: "L1-1",
		Prompt:  "be a wizard",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var sub models.Submission
	decodeData(t, rec, &sub)
	if !sub.Success || sub.Flag != "CTF{L1-1_CLEARED_7}" {
		t.Errorf("verdict not carried: %+v", sub)
	}
	if sub.UserID != "u1" || sub.LevelID != "L1-1" {
		t.Errorf("wrong attribution: %+v", sub)
	}
	if sub.Output != "echo: be a wizard" {
		t.Errorf("unexpected output: %q", sub.Output)
	}

	// The run must be visible in history
	hist := env.do(t, http.MethodGet, "/api/v1/history", token, nil)
	var subs []models.Submission
	decodeData(t, hist, &subs)
	if len(subs) != 1 || subs[0].ID != sub.ID {
		t.Errorf("run not in history: %+v", subs)
	}
}

func TestCreateRunEmptyPrompt(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})
	token := env.sessionFor(t, "u1", "Alice")

	rec := env.do(t, http.MethodPost, "/api/v1/runs", token, models.RunRequest{LevelID: "L1-1", Prompt: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if errorCode(t, rec) != "empty_prompt" {
		t.Error("unexpected error code")
	}
}

func TestCreateRunUnknownLevel(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})
	token := env.sessionFor(t, "u1", "Alice")

	rec := env.do(t, http.MethodPost, "/api/v1/runs", token, models.RunRequest{LevelID: "L9-9", Prompt: "p"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHistoryLevelFilter(t *testing.T) {
	env := newTestEnv(t, models.Verdict{Feedback: "no"})
	token := env.sessionFor(t, "u1", "Alice")

	env.do(t, http.MethodPost, "/api/v1/runs", token, models.RunRequest{LevelID: "L1-2", Prompt: "a"})
	env.do(t, http.MethodPost, "/api/v1/runs", token, models.RunRequest{LevelID: "L1-1", Prompt: "b"})

	rec := env.do(t, http.MethodGet, "/api/v1/history?level_id=L1-2", token, nil)
	var subs []models.Submission
	decodeData(t, rec, &subs)
	if len(subs) != 1 || subs[0].LevelID != "L1-2" {
		t.Errorf("filter not applied: %+v", subs)
	}

	// The limit counts level-scoped rows: the only L1-2 run is older than
	// the newest run overall and must still come back at limit=1
	rec = env.do(t, http.MethodGet, "/api/v1/history?level_id=L1-2&limit=1", token, nil)
	subs = nil
	decodeData(t, rec, &subs)
	if len(subs) != 1 || subs[0].LevelID != "L1-2" {
		t.Errorf("limit applied before level scope: %+v", subs)
	}
}

func TestLeaderboardAfterRun(t *testing.T) {
	env := newTestEnv(t, models.Verdict{Success: true, Feedback: "ok", Flag: "CTF{L1-1_CLEARED_1}"})
	token := env.sessionFor(t, "u1", "Alice")

	env.do(t, http.MethodPost, "/api/v1/runs", token, models.RunRequest{LevelID: "L1-1", Prompt: "p"})

	rec := env.do(t, http.MethodGet, "/api/v1/leaderboard", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entries []models.LeaderboardEntry
	decodeData(t, rec, &entries)
	if len(entries) != 1 || entries[0].UserID != "u1" || entries[0].FlagCount != 1 {
		t.Errorf("unexpected leaderboard: %+v", entries)
	}
}

func TestSettingsMasksKeys(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})
	token := env.sessionFor(t, "u1", "Alice")

	rec := env.do(t, http.MethodGet, "/api/v1/settings", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "sk-officialkey-123456") {
		t.Error("raw key leaked into settings response")
	}

	var settings map[string]providerSettings
	decodeData(t, rec, &settings)
	if !settings["official"].Configured {
		t.Error("official provider should report configured")
	}
	if settings["official"].KeyMasked == "" {
		t.Error("expected masked key")
	}
}

func TestPutSettingsOverride(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})
	token := env.sessionFor(t, "u1", "Alice")

	rec := env.do(t, http.MethodPut, "/api/v1/settings", token, map[string]string{
		"custom_url": "https://proxy.example.com/v1beta",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var settings map[string]providerSettings
	decodeData(t, rec, &settings)
	if !settings["custom"].Configured {
		t.Error("custom provider should be configured after override")
	}
	if settings["custom"].Endpoint != "https://proxy.example.com" {
		t.Errorf("endpoint not normalized: %q", settings["custom"].Endpoint)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/settings", token, map[string]string{"bogus": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown slot, got %d", rec.Code)
	}
}

func TestMagicLinkFlow(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})

	rec := env.do(t, http.MethodPost, "/auth/magiclink", "", map[string]string{"name": "Bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var issued map[string]string
	decodeData(t, rec, &issued)

	rec = env.do(t, http.MethodPost, "/auth/magiclink/redeem", "", map[string]string{"token": issued["link_token"]})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var redeemed map[string]string
	decodeData(t, rec, &redeemed)

	// The minted session works on protected routes
	hist := env.do(t, http.MethodGet, "/api/v1/history", redeemed["token"], nil)
	if hist.Code != http.StatusOK {
		t.Fatalf("session from magic link rejected: %d", hist.Code)
	}
}

func TestMagicLinkCallbackRedirect(t *testing.T) {
	env := newTestEnv(t, models.Verdict{})

	rec := env.do(t, http.MethodPost, "/auth/magiclink", "", map[string]string{"name": "Bob"})
	var issued map[string]string
	decodeData(t, rec, &issued)

	rec = env.do(t, http.MethodGet, "/auth/magiclink/callback?token="+issued["link_token"], "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "http://localhost:8080?token=") {
		t.Errorf("unexpected redirect target: %s", loc)
	}

	// A used link redirects with an error instead of a session
	rec = env.do(t, http.MethodGet, "/auth/magiclink/callback?token="+issued["link_token"], "", nil)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "error=") {
		t.Errorf("reused link should surface an error redirect: %s", loc)
	}
}

func maskKeyTestCases() map[string]string {
	return map[string]string{
		"":                      "",
		"short":                 "****",
		"sk-officialkey-123456": "sk-o...56",
	}
}

func TestMaskKey(t *testing.T) {
	for in, want := range maskKeyTestCases() {
		if got := maskKey(in); got != want {
			t.Errorf("maskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
