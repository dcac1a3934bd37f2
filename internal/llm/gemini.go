package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/prompt-clan/prompt-arena/internal/config"
)

// callSpec describes one single-turn model call. Structured calls require
// the upstream to constrain its response to the verdict schema.
type callSpec struct {
	prompt     string
	structured bool
}

// verdictSchema is the judge response schema sent to the proxy path.
// The official SDK path uses verdictGenaiSchema, the same shape.
var verdictSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"success":  map[string]interface{}{"type": "boolean"},
		"feedback": map[string]interface{}{"type": "string"},
		"flag":     map[string]interface{}{"type": "string"},
	},
	"required": []string{"success", "feedback"},
}

var verdictGenaiSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"success":  {Type: genai.TypeBoolean},
		"feedback": {Type: genai.TypeString},
		"flag":     {Type: genai.TypeString},
	},
	Required: []string{"success", "feedback"},
}

// --- Official path (vendor SDK) ---

// genaiCall dispatches through the official SDK. A configured official
// base URL is honored so the SDK itself can be proxied.
func (e *Engine) genaiCall(ctx context.Context, pc config.ProviderConfig, model string, call callSpec) (string, error) {
	cc := &genai.ClientConfig{
		APIKey:  pc.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if pc.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: pc.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", fmt.Errorf("failed to create client: %w", err)
	}

	var genCfg *genai.GenerateContentConfig
	if call.structured {
		genCfg = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   verdictGenaiSchema,
		}
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(call.prompt), genCfg)
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

// --- Custom path (raw REST, independent from the SDK) ---

// Request/response shapes for the standard Gemini REST signature:
// POST /v1beta/models/{model}:generateContent

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// proxyCall dispatches to a custom proxy endpoint. Auth is sent under both
// the bearer and the vendor-native header at once: proxy implementations
// vary in which one they check.
func (e *Engine) proxyCall(ctx context.Context, pc config.ProviderConfig, model string, call callSpec) (string, error) {
	if pc.BaseURL == "" || pc.APIKey == "" {
		return "", fmt.Errorf("custom URL or API key missing")
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: call.prompt}}},
		},
	}
	if call.structured {
		reqBody.GenerationConfig = &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   verdictSchema,
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	base := strings.TrimRight(pc.BaseURL, "/")
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", base, model, pc.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+pc.APIKey)
	req.Header.Set("x-goog-api-key", pc.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("proxy error (%d): %s", resp.StatusCode, extractErrorMessage(body))
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if gr.Error != nil {
		return "", fmt.Errorf("upstream error: %s", gr.Error.Message)
	}

	if len(gr.Candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// extractErrorMessage digs the message out of the common upstream error
// formats, falling back to the raw body
func extractErrorMessage(body []byte) string {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
			Details []struct {
				Message string `json:"message"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if len(parsed.Error.Details) > 0 && parsed.Error.Details[0].Message != "" {
			return parsed.Error.Details[0].Message
		}
	}

	return string(body)
}
