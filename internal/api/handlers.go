package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prompt-clan/prompt-arena/internal/config"
	"github.com/prompt-clan/prompt-arena/internal/game"
	"github.com/prompt-clan/prompt-arena/internal/llm"
	"github.com/prompt-clan/prompt-arena/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func langFromRequest(r *http.Request) models.Language {
	return models.Language(r.URL.Query().Get("lang")).Normalize()
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "storage not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Curriculum handlers

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Chapters(langFromRequest(r)))
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	lang := langFromRequest(r)

	levels := s.catalog.Levels(lang)
	if chapterID := r.URL.Query().Get("chapter"); chapterID != "" {
		filtered := levels[:0]
		for _, lvl := range levels {
			if lvl.ChapterID == chapterID {
				filtered = append(filtered, lvl)
			}
		}
		levels = filtered
	}

	respondJSON(w, http.StatusOK, levels)
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lvl, ok := s.catalog.Level(langFromRequest(r), id)
	if !ok {
		respondError(w, http.StatusNotFound, "level_not_found", "no such level: "+id)
		return
	}
	respondJSON(w, http.StatusOK, lvl)
}

// Run handlers

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	lang := req.Language.Normalize()
	level, ok := s.catalog.Level(lang, req.LevelID)
	if !ok {
		respondError(w, http.StatusNotFound, "level_not_found", "no such level: "+req.LevelID)
		return
	}

	sub, err := s.runner.Run(r.Context(), level, req.Prompt, session.Subject, lang, game.Options{
		Model:    req.Model,
		Provider: llm.ParseProvider(req.Provider),
	})
	if err != nil {
		if errors.Is(err, game.ErrEmptyPrompt) {
			respondError(w, http.StatusBadRequest, "empty_prompt", "prompt must not be empty")
			return
		}
		slog.Error("run failed", "user_id", session.Subject, "level_id", req.LevelID, "error", err)
		respondError(w, http.StatusInternalServerError, "run_failed", "internal error")
		return
	}

	if sub.Success {
		s.cache.InvalidateLeaderboard(r.Context())
	}

	respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	subs, err := s.repo.ListSubmissions(r.Context(), session.Subject, r.URL.Query().Get("level_id"), limit)
	if err != nil {
		slog.Error("failed to list submissions", "user_id", session.Subject, "error", err)
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to load history")
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	respondJSON(w, http.StatusOK, subs)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if entries, ok := s.cache.GetLeaderboard(r.Context()); ok {
		respondJSON(w, http.StatusOK, entries)
		return
	}

	entries, err := s.repo.Leaderboard(r.Context(), 0)
	if err != nil {
		slog.Error("failed to query leaderboard", "error", err)
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to load leaderboard")
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	s.cache.SetLeaderboard(r.Context(), entries)
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	u, err := s.repo.GetUser(r.Context(), session.Subject)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to load user")
		return
	}
	if u == nil {
		// Token holder without a row; answer from the claims
		u = &models.User{ID: session.Subject, Name: session.Name, Avatar: session.Avatar, Provider: session.Provider}
	}
	respondJSON(w, http.StatusOK, u)
}

// Settings handlers

type providerSettings struct {
	Configured bool   `json:"configured"`
	Endpoint   string `json:"endpoint,omitempty"`
	Model      string `json:"model,omitempty"`
	KeyMasked  string `json:"key_masked,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg := s.resolver.Resolve()

	respondJSON(w, http.StatusOK, map[string]providerSettings{
		"official": {
			Configured: cfg.HasOfficial,
			Endpoint:   cfg.Official.BaseURL,
			KeyMasked:  maskKey(cfg.Official.APIKey),
		},
		"custom": {
			Configured: cfg.HasCustom,
			Endpoint:   cfg.Custom.BaseURL,
			Model:      cfg.Custom.Model,
			KeyMasked:  maskKey(cfg.Custom.APIKey),
		},
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.overrides == nil {
		respondError(w, http.StatusServiceUnavailable, "overrides_unavailable", "runtime overrides are not enabled")
		return
	}

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	valid := make(map[config.Slot]bool, len(config.Slots))
	for _, slot := range config.Slots {
		valid[slot] = true
	}

	for key, value := range body {
		slot := config.Slot(key)
		if !valid[slot] {
			respondError(w, http.StatusBadRequest, "unknown_slot", "unknown settings slot: "+key)
			return
		}
		if err := s.overrides.Set(slot, value); err != nil {
			slog.Error("failed to persist override", "slot", key, "error", err)
			respondError(w, http.StatusInternalServerError, "override_error", "failed to persist setting")
			return
		}
	}

	s.handleGetSettings(w, r)
}

// maskKey hides all but a short prefix of a credential
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-2:]
}

// Auth handlers

func (s *Server) handleLinuxDoLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oauth.Configured() {
		s.redirectWithError(w, r, "Linux.do login is not configured")
		return
	}
	http.Redirect(w, r, s.oauth.LoginURL(), http.StatusFound)
}

func (s *Server) handleLinuxDoCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	token, err := s.oauth.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", "error", err)
		s.redirectWithError(w, r, err.Error())
		return
	}

	http.Redirect(w, r, s.config.PublicURL+"?token="+url.QueryEscape(token), http.StatusFound)
}

func (s *Server) redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, s.config.PublicURL+"?error="+url.QueryEscape(msg), http.StatusFound)
}

func (s *Server) handleMagicLinkIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	link, err := s.magic.Issue(req.Name, req.Email)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"link_token": link})
}

// handleMagicLinkCallback serves the clicked link itself: it redeems the
// token and hands the session back the same way the OAuth callback does
func (s *Server) handleMagicLinkCallback(w http.ResponseWriter, r *http.Request) {
	session, err := s.magic.Redeem(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		s.redirectWithError(w, r, err.Error())
		return
	}
	http.Redirect(w, r, s.config.PublicURL+"?token="+url.QueryEscape(session), http.StatusFound)
}

func (s *Server) handleMagicLinkRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := s.magic.Redeem(r.Context(), req.Token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_link", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": session})
}
