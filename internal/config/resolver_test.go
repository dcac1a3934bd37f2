package config

import "testing"

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestResolveOfficialOnly(t *testing.T) {
	r := NewResolverWithEnv(nil, envFrom(map[string]string{
		"API_KEY": "xyz",
	}))

	cfg := r.Resolve()

	if !cfg.HasOfficial {
		t.Error("expected HasOfficial=true")
	}
	if cfg.HasCustom {
		t.Error("expected HasCustom=false with no custom endpoint")
	}
	if cfg.Official.APIKey != "xyz" {
		t.Errorf("expected official key 'xyz', got '%s'", cfg.Official.APIKey)
	}
	// Custom key falls back to the official key even without an endpoint
	if cfg.Custom.APIKey != "xyz" {
		t.Errorf("expected custom key fallback 'xyz', got '%s'", cfg.Custom.APIKey)
	}
}

func TestResolveAliasPrecedence(t *testing.T) {
	// Earlier alias wins regardless of how many later ones are set
	r := NewResolverWithEnv(nil, envFrom(map[string]string{
		"NEXT_PUBLIC_API_KEY": "next",
		"VITE_API_KEY":        "vite",
		"REACT_APP_API_KEY":   "react",
	}))

	if got := r.Resolve().Official.APIKey; got != "next" {
		t.Errorf("expected 'next', got '%s'", got)
	}

	r = NewResolverWithEnv(nil, envFrom(map[string]string{
		"API_KEY":             "bare",
		"NEXT_PUBLIC_API_KEY": "next",
	}))

	if got := r.Resolve().Official.APIKey; got != "bare" {
		t.Errorf("expected 'bare', got '%s'", got)
	}
}

func TestResolveCustomURLAlternateName(t *testing.T) {
	r := NewResolverWithEnv(nil, envFrom(map[string]string{
		"API_KEY":   "xyz",
		"X_API_URL": "https://proxy.example",
	}))

	cfg := r.Resolve()
	if !cfg.HasCustom {
		t.Error("expected HasCustom=true via alternate name X_API_URL")
	}
	if cfg.Custom.BaseURL != "https://proxy.example" {
		t.Errorf("unexpected custom base: %s", cfg.Custom.BaseURL)
	}
}

func TestResolveOverridesWinOverEnv(t *testing.T) {
	overrides := NewMemoryOverrides()
	overrides.Set(SlotOfficialKey, "local-key")
	overrides.Set(SlotCustomURL, "https://override.example/v1beta/")

	r := NewResolverWithEnv(overrides, envFrom(map[string]string{
		"API_KEY":    "env-key",
		"X_BASE_URL": "https://env.example",
	}))

	cfg := r.Resolve()
	if cfg.Official.APIKey != "local-key" {
		t.Errorf("expected override to win, got '%s'", cfg.Official.APIKey)
	}
	if cfg.Custom.BaseURL != "https://override.example" {
		t.Errorf("expected normalized override endpoint, got '%s'", cfg.Custom.BaseURL)
	}
}

func TestResolveDedicatedCustomKey(t *testing.T) {
	r := NewResolverWithEnv(nil, envFrom(map[string]string{
		"API_KEY":    "official",
		"X_API_KEY":  "dedicated",
		"X_BASE_URL": "https://proxy.example",
	}))

	cfg := r.Resolve()
	if cfg.Custom.APIKey != "dedicated" {
		t.Errorf("dedicated custom key must override fallback, got '%s'", cfg.Custom.APIKey)
	}
}

func TestResolveCustomModelOverride(t *testing.T) {
	r := NewResolverWithEnv(nil, envFrom(map[string]string{
		"X_BASE_URL":  "https://proxy.example",
		"X_API_MODEL": "gemini-2.5-pro",
	}))

	cfg := r.Resolve()
	if cfg.Custom.Model != "gemini-2.5-pro" {
		t.Errorf("expected model override, got '%s'", cfg.Custom.Model)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"https://proxy.example", "https://proxy.example"},
		{"https://proxy.example/", "https://proxy.example"},
		{"https://proxy.example/v1beta", "https://proxy.example"},
		{"https://proxy.example/v1beta/", "https://proxy.example"},
		{"https://proxy.example/v1beta/models/foo:generateContent", "https://proxy.example"},
		{"https://proxy.example/goog", "https://proxy.example"},
		// Both suffixes strip in sequence
		{"https://proxy.example/goog/v1beta", "https://proxy.example"},
		{"https://proxy.example/gateway", "https://proxy.example/gateway"},
	}

	for _, tc := range cases {
		if got := NormalizeEndpoint(tc.in); got != tc.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEndpointIdempotent(t *testing.T) {
	inputs := []string{
		"https://proxy.example/v1beta/models/foo:generateContent",
		"https://proxy.example/v1beta",
		"https://proxy.example/goog",
		"https://proxy.example/",
		"https://proxy.example",
	}

	for _, in := range inputs {
		once := NormalizeEndpoint(in)
		twice := NormalizeEndpoint(once)
		if once != twice {
			t.Errorf("normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestFileOverridesRoundTrip(t *testing.T) {
	path := t.TempDir() + "/overrides.yaml"

	store, err := NewFileOverrides(path)
	if err != nil {
		t.Fatalf("NewFileOverrides failed: %v", err)
	}

	if err := store.Set(SlotCustomURL, "https://proxy.example"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(SlotCustomKey, "sk-test"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reloaded, err := NewFileOverrides(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if got := reloaded.Get(SlotCustomURL); got != "https://proxy.example" {
		t.Errorf("unexpected custom url after reload: %s", got)
	}
	if got := reloaded.Get(SlotCustomKey); got != "sk-test" {
		t.Errorf("unexpected custom key after reload: %s", got)
	}

	// Clearing a slot removes it
	if err := reloaded.Set(SlotCustomKey, ""); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got := reloaded.Get(SlotCustomKey); got != "" {
		t.Errorf("expected cleared slot, got %s", got)
	}
}
