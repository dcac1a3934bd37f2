package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/config"
)

const (
	// Placeholder text for well-formed responses carrying no text payload.
	// Callers must never receive "" ambiguously meaning "not yet run".
	noContentCustom   = "No text content in response."
	noContentOfficial = "No response generated."

	defaultJudgeModel = "gemini-2.5-flash"
	defaultTimeout    = 60 * time.Second
)

// transportFunc dispatches one single-turn call to a resolved provider
type transportFunc func(ctx context.Context, pc config.ProviderConfig, model string, call callSpec) (string, error)

// Engine runs generation and judge calls against the resolved provider.
// Configuration is resolved fresh on every call and nothing here ever
// returns an error to its caller: all failure modes collapse into
// Completion / Verdict values.
type Engine struct {
	resolver   *config.Resolver
	timeout    time.Duration
	judgeModel string
	httpClient *http.Client

	official transportFunc
	custom   transportFunc
}

// Options tunes an Engine
type Options struct {
	// Timeout bounds each upstream call; past it the call is treated as
	// a transport failure. Zero means the 60s default.
	Timeout time.Duration
	// JudgeModel overrides the default judge model name
	JudgeModel string
}

// NewEngine creates an engine over the given config resolver
func NewEngine(resolver *config.Resolver, opts Options) *Engine {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	judgeModel := opts.JudgeModel
	if judgeModel == "" {
		judgeModel = defaultJudgeModel
	}

	e := &Engine{
		resolver:   resolver,
		timeout:    timeout,
		judgeModel: judgeModel,
		httpClient: &http.Client{Timeout: timeout},
	}
	e.official = e.genaiCall
	e.custom = e.proxyCall
	return e
}

// Generate sends a single free-text prompt to the selected provider and
// always resolves to a Completion: on any failure the error is embedded,
// never raised.
func (e *Engine) Generate(ctx context.Context, prompt, modelID string, provider Provider) Completion {
	cfg := e.resolver.Resolve()
	p := effectiveProvider(provider, cfg)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		text string
		err  error
	)

	if p == ProviderCustom {
		pc := cfg.Custom
		model := pc.Model
		if model == "" {
			model = modelID
		}
		text, err = e.custom(ctx, pc, model, callSpec{prompt: prompt})
	} else {
		pc := cfg.Official
		if pc.APIKey == "" {
			slog.Warn("official api key missing; call will fail at transport")
		}
		text, err = e.official(ctx, pc, modelID, callSpec{prompt: prompt})
	}

	if err != nil {
		slog.Error("generation failed", "provider", p, "model", modelID, "error", err)
		return Completion{Provider: p, Err: err}
	}

	if strings.TrimSpace(text) == "" {
		if p == ProviderCustom {
			text = noContentCustom
		} else {
			text = noContentOfficial
		}
	}

	return Completion{Provider: p, Text: text}
}
