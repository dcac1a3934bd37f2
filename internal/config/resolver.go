package config

import (
	"os"
	"strings"
)

// ProviderConfig is the resolved credential/endpoint set for one provider
// slot. BaseURL, when present, is a normalized root URL: no trailing slash
// and no API-version path segment (callers append the versioned path).
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AppConfig aggregates the two provider slots. It is recomputed on every
// Resolve call, so runtime changes to overrides or environment take effect
// on the next provider-touching operation.
type AppConfig struct {
	Official    ProviderConfig
	Custom      ProviderConfig
	HasOfficial bool
	HasCustom   bool
}

// Slot identifies one of the five persisted override slots
type Slot string

const (
	SlotOfficialKey     Slot = "official_key"
	SlotOfficialBaseURL Slot = "official_base_url"
	SlotCustomURL       Slot = "custom_url"
	SlotCustomKey       Slot = "custom_key"
	SlotCustomModel     Slot = "custom_model"
)

// Slots lists all override slots in a stable order
var Slots = []Slot{
	SlotOfficialKey,
	SlotOfficialBaseURL,
	SlotCustomURL,
	SlotCustomKey,
	SlotCustomModel,
}

// envAliases maps each slot to its environment variable names in
// precedence order, first defined wins. The framework-prefixed variants
// exist because deployments historically injected these through frontend
// env tooling; the list must stay ordered and complete.
var envAliases = map[Slot][]string{
	SlotOfficialKey: {
		"API_KEY",
		"NEXT_PUBLIC_API_KEY",
		"VITE_API_KEY",
		"REACT_APP_API_KEY",
	},
	SlotOfficialBaseURL: {
		"OFFICIAL_BASE_URL",
	},
	SlotCustomURL: {
		"X_BASE_URL",
		"NEXT_PUBLIC_X_BASE_URL",
		"VITE_X_BASE_URL",
		"REACT_APP_X_BASE_URL",
		"X_API_URL",
		"NEXT_PUBLIC_X_API_URL",
	},
	SlotCustomKey: {
		"X_API_KEY",
		"NEXT_PUBLIC_X_API_KEY",
		"VITE_X_API_KEY",
		"REACT_APP_X_API_KEY",
	},
	SlotCustomModel: {
		"X_API_MODEL",
		"NEXT_PUBLIC_X_API_MODEL",
		"VITE_X_API_MODEL",
		"REACT_APP_X_API_MODEL",
	},
}

// Resolver computes AppConfig from an override store layered over the
// process environment. The zero-value store (nil) skips the override
// layer entirely.
type Resolver struct {
	overrides OverrideStore
	lookupEnv func(string) (string, bool)
}

// NewResolver creates a resolver backed by the given override store.
// A nil store resolves from environment variables only.
func NewResolver(overrides OverrideStore) *Resolver {
	return &Resolver{
		overrides: overrides,
		lookupEnv: os.LookupEnv,
	}
}

// NewResolverWithEnv creates a resolver with a custom environment lookup,
// for tests.
func NewResolverWithEnv(overrides OverrideStore, lookupEnv func(string) (string, bool)) *Resolver {
	return &Resolver{
		overrides: overrides,
		lookupEnv: lookupEnv,
	}
}

// Resolve computes a fresh AppConfig. Per field the first non-empty value
// wins: persisted override, then each environment alias in table order.
func (r *Resolver) Resolve() AppConfig {
	officialKey := r.value(SlotOfficialKey)
	officialBase := r.value(SlotOfficialBaseURL)

	customURL := NormalizeEndpoint(r.value(SlotCustomURL))
	customKey := r.value(SlotCustomKey)
	if customKey == "" {
		// A custom endpoint usually fronts the same upstream, so the
		// official key is a reasonable default.
		customKey = officialKey
	}
	customModel := r.value(SlotCustomModel)

	return AppConfig{
		Official: ProviderConfig{
			APIKey:  officialKey,
			BaseURL: officialBase,
		},
		Custom: ProviderConfig{
			APIKey:  customKey,
			BaseURL: customURL,
			Model:   customModel,
		},
		HasOfficial: officialKey != "",
		// Endpoint presence alone decides HasCustom: the key fallback
		// above always supplies a key once an endpoint exists.
		HasCustom: customURL != "",
	}
}

func (r *Resolver) value(slot Slot) string {
	if r.overrides != nil {
		if v := strings.TrimSpace(r.overrides.Get(slot)); v != "" {
			return v
		}
	}
	for _, name := range envAliases[slot] {
		if v, ok := r.lookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// NormalizeEndpoint reduces a pasted custom-provider URL to its proxy
// root. Users frequently paste a full request URL; the versioned
// model-listing path, a bare version segment, and the known proxy suffix
// are all stripped so callers can append the standard path themselves.
// Normalizing an already-normalized URL is a no-op.
func NormalizeEndpoint(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}

	u = strings.TrimSuffix(u, "/")

	if i := strings.Index(u, "/v1beta/models"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimSuffix(u, "/v1beta")
	u = strings.TrimSuffix(u, "/goog")

	return u
}
