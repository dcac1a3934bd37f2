package llm

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

// judgeResult is the schema the judge model must return. Pointer fields
// distinguish "absent" from zero values so required-field violations fall
// into the error path instead of silently reading as a loss.
type judgeResult struct {
	Success  *bool   `json:"success"`
	Feedback *string `json:"feedback"`
	Flag     string  `json:"flag,omitempty"`
}

// Judge evaluates a submission against a level's win criteria with a
// second, schema-constrained model call. It always resolves to a Verdict:
// transport, parse, and schema failures become success:false verdicts
// whose feedback names the judge subsystem.
func (e *Engine) Judge(ctx context.Context, level models.Level, userPrompt, modelOutput string, lang models.Language, provider Provider) models.Verdict {
	cfg := e.resolver.Resolve()
	p := effectiveProvider(provider, cfg)
	model := e.judgeModel

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildJudgePrompt(level, userPrompt, modelOutput, lang)
	call := callSpec{prompt: prompt, structured: true}

	var (
		text string
		err  error
	)

	if p == ProviderCustom {
		pc := cfg.Custom
		if pc.Model != "" {
			model = pc.Model
		}
		text, err = e.custom(ctx, pc, model, call)
	} else {
		text, err = e.official(ctx, cfg.Official, model, call)
	}

	if err != nil {
		return e.systemErrorVerdict(p, err, modelOutput)
	}

	if strings.TrimSpace(text) == "" {
		return e.systemErrorVerdict(p, fmt.Errorf("empty response from judge model"), modelOutput)
	}

	var result judgeResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return e.systemErrorVerdict(p, fmt.Errorf("malformed judge response: %w", err), modelOutput)
	}

	// A malformed judge response is a system error, not a player loss
	if result.Success == nil {
		return e.systemErrorVerdict(p, fmt.Errorf("judge response missing required field 'success'"), modelOutput)
	}
	if result.Feedback == nil {
		return e.systemErrorVerdict(p, fmt.Errorf("judge response missing required field 'feedback'"), modelOutput)
	}

	feedback := *result.Feedback
	if feedback == "" {
		feedback = "Analysis complete."
	}

	verdict := models.Verdict{
		Success:  *result.Success,
		Feedback: feedback,
		Output:   modelOutput,
	}

	// The model decides pass/fail and phrases feedback; the flag is
	// always minted locally so a player's prompt cannot forge or leak it.
	if verdict.Success {
		verdict.Flag = MintFlag(level.ID)
	}

	return verdict
}

// systemErrorVerdict collapses a judge-side failure into a value that is
// structurally identical to a gameplay loss but recognizable by its
// feedback prefix.
func (e *Engine) systemErrorVerdict(p Provider, err error, modelOutput string) models.Verdict {
	slog.Error("judge failed", "provider", p, "error", err)
	return models.Verdict{
		Success:  false,
		Feedback: fmt.Sprintf("Judge System Error (%s): %s", p, err.Error()),
		Output:   modelOutput,
	}
}

// buildJudgePrompt embeds the level, the player's prompt, and the model
// output verbatim into a single evaluation request
func buildJudgePrompt(level models.Level, userPrompt, modelOutput string, lang models.Language) string {
	language := "English"
	if lang.Normalize() == models.LangChinese {
		language = "Chinese"
	}

	return fmt.Sprintf(`You are an impartial CTF judge. Be strict but fair: decide ambiguous or partially met criteria, never leave them unresolved.
Write the feedback in %s.

LEVEL: %s
CRITERIA: %s

PROMPT:
"""
%s
"""

OUTPUT:
"""
%s
"""

Return JSON:
{
    "success": boolean,
    "feedback": "string",
    "flag": "string (optional)"
}`, language, level.Description, level.WinCriteria, userPrompt, modelOutput)
}

// MintFlag synthesizes the capture flag for a cleared level. The random
// numeric suffix keeps flags unpredictable to the player; the judge model
// never supplies the flag value itself.
func MintFlag(levelID string) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure is effectively unreachable; fall back to
		// a fixed suffix rather than panicking mid-run
		return fmt.Sprintf("CTF{%s_CLEARED_0}", levelID)
	}
	n := binary.BigEndian.Uint32(b[:]) % 10000
	return fmt.Sprintf("CTF{%s_CLEARED_%d}", levelID, n)
}
