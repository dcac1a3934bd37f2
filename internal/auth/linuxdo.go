package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/config"
	"github.com/prompt-clan/prompt-arena/internal/models"
	"github.com/prompt-clan/prompt-arena/internal/storage"
)

// LinuxDoService drives the Linux.do OAuth2 code flow: redirect out,
// exchange the code, fetch the profile, sync the user, mint a session.
type LinuxDoService struct {
	cfg        config.AuthConfig
	publicURL  string
	repo       storage.Repository
	tokens     *TokenManager
	httpClient *http.Client
}

// NewLinuxDoService creates the OAuth service
func NewLinuxDoService(cfg config.AuthConfig, publicURL string, repo storage.Repository, tokens *TokenManager) *LinuxDoService {
	return &LinuxDoService{
		cfg:        cfg,
		publicURL:  strings.TrimRight(publicURL, "/"),
		repo:       repo,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether OAuth credentials are present
func (s *LinuxDoService) Configured() bool {
	return s.cfg.LinuxDoClientID != "" && s.cfg.LinuxDoSecret != ""
}

func (s *LinuxDoService) redirectURI() string {
	return s.publicURL + "/auth/linuxdo/callback"
}

// LoginURL builds the authorize redirect target
func (s *LinuxDoService) LoginURL() string {
	q := url.Values{}
	q.Set("client_id", s.cfg.LinuxDoClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", s.redirectURI())
	q.Set("scope", "read")
	return s.cfg.LinuxDoAuthorize + "?" + q.Encode()
}

// linuxDoUser is the profile shape returned by the userinfo endpoint
type linuxDoUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// HandleCallback completes the code flow and returns the session token.
// The caller turns the error into a user-visible redirect.
func (s *LinuxDoService) HandleCallback(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("no authorization code provided")
	}

	accessToken, err := s.exchangeCode(ctx, code)
	if err != nil {
		return "", err
	}

	profile, err := s.fetchUser(ctx, accessToken)
	if err != nil {
		return "", err
	}

	name := profile.Name
	if name == "" {
		name = profile.Username
	}
	if name == "" {
		name = "Linux.do User"
	}

	user := &models.User{
		ID:       fmt.Sprintf("linuxdo_%d", profile.ID),
		Name:     name,
		Email:    profile.Email,
		Avatar:   profile.AvatarURL,
		Provider: "linuxdo",
	}

	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return "", fmt.Errorf("failed to sync user: %w", err)
	}

	return s.tokens.Mint(user)
}

func (s *LinuxDoService) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", s.cfg.LinuxDoClientID)
	form.Set("client_secret", s.cfg.LinuxDoSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.redirectURI())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.LinuxDoTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, oauthErrorMessage(body))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("no access token received")
	}
	return parsed.AccessToken, nil
}

func (s *LinuxDoService) fetchUser(ctx context.Context, accessToken string) (*linuxDoUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.LinuxDoUserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var profile linuxDoUser
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("userinfo response missing user id")
	}
	return &profile, nil
}

func oauthErrorMessage(body []byte) string {
	var parsed struct {
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.ErrorDescription != "" {
			return parsed.ErrorDescription
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(body)
}
