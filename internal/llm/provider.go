package llm

import (
	"fmt"
	"strings"

	"github.com/prompt-clan/prompt-arena/internal/config"
)

// Provider selects the upstream for model calls
type Provider string

const (
	// ProviderOfficial is the model vendor's own endpoint
	ProviderOfficial Provider = "official"
	// ProviderCustom is a self-hosted or third-party compatible proxy
	ProviderCustom Provider = "custom"
)

// ParseProvider maps a request string to a Provider, defaulting to official
func ParseProvider(s string) Provider {
	if strings.EqualFold(strings.TrimSpace(s), string(ProviderCustom)) {
		return ProviderCustom
	}
	return ProviderOfficial
}

// effectiveProvider downgrades custom to official when no custom endpoint
// is configured. A user selecting an unconfigured provider must not
// hard-fail the run.
func effectiveProvider(requested Provider, cfg config.AppConfig) Provider {
	if requested == ProviderCustom && !cfg.HasCustom {
		return ProviderOfficial
	}
	return requested
}

// Completion is the value a generation call always resolves to. Err is
// carried as data, never returned: callers render Display() and move on.
type Completion struct {
	Text     string
	Provider Provider
	Err      error
}

// Failed reports whether the completion carries a transport-level error
func (c Completion) Failed() bool {
	return c.Err != nil
}

// Display returns the completion text, or on failure a readable error
// line naming the provider, optionally followed by a targeted hint when
// the failure signature matches a known misconfiguration.
func (c Completion) Display() string {
	if c.Err == nil {
		return c.Text
	}

	msg := fmt.Sprintf("System Error (%s): %s", strings.ToUpper(string(c.Provider)), c.Err.Error())
	if hint := hintFor(c.Err.Error()); hint != "" {
		msg += "\nHint: " + hint
	}
	return msg
}

// hintFor matches transport failures against known misconfigurations
func hintFor(errText string) string {
	lower := strings.ToLower(errText)

	switch {
	case strings.Contains(lower, "/v1beta/v1beta"):
		return "the custom endpoint still contains a version path; configure the proxy root without /v1beta"
	case strings.Contains(lower, "api_key_invalid"), strings.Contains(lower, "api key not valid"):
		return "the upstream rejected the key format; check which key the proxy expects"
	case strings.Contains(errText, "404") && strings.Contains(lower, "models/"):
		return "the model path was not found; verify the endpoint root and model id"
	}
	return ""
}
