package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

// Client is a Go SDK for the prompt-arena API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new prompt-arena client. The token is a session
// token minted by one of the auth flows; public endpoints work without it.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			// Runs block on upstream model calls; keep headroom
			Timeout: 3 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ProviderSettings describes one provider lane as reported by the server.
// Keys are always masked; the raw credential never leaves the backend.
type ProviderSettings struct {
	Configured bool   `json:"configured"`
	Endpoint   string `json:"endpoint,omitempty"`
	Model      string `json:"model,omitempty"`
	KeyMasked  string `json:"key_masked,omitempty"`
}

// Chapters retrieves the chapter list for a language
func (c *Client) Chapters(ctx context.Context, lang string) ([]models.Chapter, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/chapters?lang="+url.QueryEscape(lang), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool             `json:"success"`
		Data    []models.Chapter `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Levels retrieves the levels for a language, optionally filtered by chapter
func (c *Client) Levels(ctx context.Context, lang, chapterID string) ([]models.Level, error) {
	path := "/api/v1/levels?lang=" + url.QueryEscape(lang)
	if chapterID != "" {
		path += "&chapter=" + url.QueryEscape(chapterID)
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool           `json:"success"`
		Data    []models.Level `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Level retrieves a single level by ID
func (c *Client) Level(ctx context.Context, lang, id string) (*models.Level, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/levels/%s?lang=%s", id, url.QueryEscape(lang)), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool          `json:"success"`
		Data    *models.Level `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// CreateRun submits a prompt against a level and blocks until the verdict
func (c *Client) CreateRun(ctx context.Context, req models.RunRequest) (*models.Submission, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/runs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool               `json:"success"`
		Data    *models.Submission `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// History retrieves the caller's past submissions, newest first. A
// non-empty levelID scopes the history to one level.
func (c *Client) History(ctx context.Context, levelID string, limit int) ([]*models.Submission, error) {
	q := url.Values{}
	if levelID != "" {
		q.Set("level_id", levelID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/api/v1/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                 `json:"success"`
		Data    []*models.Submission `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Leaderboard retrieves the ranked player list
func (c *Client) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/leaderboard", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                      `json:"success"`
		Data    []models.LeaderboardEntry `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Me retrieves the authenticated user's profile
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool         `json:"success"`
		Data    *models.User `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Settings retrieves the masked provider configuration
func (c *Client) Settings(ctx context.Context) (map[string]ProviderSettings, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/settings", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                        `json:"success"`
		Data    map[string]ProviderSettings `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// UpdateSettings writes provider override slots and returns the refreshed
// masked view. Passing an empty string for a slot clears it.
func (c *Client) UpdateSettings(ctx context.Context, slots map[string]string) (map[string]ProviderSettings, error) {
	body, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "PUT", "/api/v1/settings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                        `json:"success"`
		Data    map[string]ProviderSettings `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
