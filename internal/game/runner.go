package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prompt-clan/prompt-arena/internal/llm"
	"github.com/prompt-clan/prompt-arena/internal/models"
)

// ErrEmptyPrompt rejects a run before any model call is made. It is the
// only error a run can surface to the caller; everything past validation
// resolves to a Submission.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

const defaultModel = "gemini-2.5-flash"

// State is a coarse phase marker for streaming run progress to clients
type State string

const (
	StateGenerating State = "generating"
	StateJudging    State = "judging"
	StateCompleted  State = "completed"
)

// Engine is the model-call surface the runner needs. Both calls resolve
// to values, never errors.
type Engine interface {
	Generate(ctx context.Context, prompt, modelID string, provider llm.Provider) llm.Completion
	Judge(ctx context.Context, level models.Level, userPrompt, modelOutput string, lang models.Language, provider llm.Provider) models.Verdict
}

// Recorder persists finished submissions
type Recorder interface {
	SaveSubmission(ctx context.Context, sub *models.Submission) error
}

// Options tunes a single run
type Options struct {
	// Model names the generation model; empty selects the default.
	// A pinned custom model still wins inside the engine.
	Model string
	// Provider selects the upstream; unconfigured custom downgrades
	Provider llm.Provider
	// OnState, when set, is called at each phase transition
	OnState func(State)
}

// Runner drives one submission through generation, judging, and
// persistence. Runs are independent; a Runner is safe for concurrent use.
type Runner struct {
	engine Engine
	store  Recorder
}

// NewRunner creates a runner. store may be nil, in which case finished
// submissions are not persisted.
func NewRunner(engine Engine, store Recorder) *Runner {
	return &Runner{engine: engine, store: store}
}

// Run executes the full pipeline for one prompt against one level.
//
// The generation output, successful or not, is always judged: an error
// rendering from a failed generation is real player-visible output and
// the judge decides what it means for the level. The returned Submission
// is complete even when persistence fails.
func (r *Runner) Run(ctx context.Context, level models.Level, prompt, userID string, lang models.Language, opts Options) (*models.Submission, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}

	notify := opts.OnState
	if notify == nil {
		notify = func(State) {}
	}

	started := time.Now()

	notify(StateGenerating)
	completion := r.engine.Generate(ctx, prompt, model, opts.Provider)
	output := completion.Display()

	notify(StateJudging)
	verdict := r.engine.Judge(ctx, level, prompt, output, lang, opts.Provider)

	sub := &models.Submission{
		ID:          uuid.New().String(),
		UserID:      userID,
		LevelID:     level.ID,
		Prompt:      prompt,
		Output:      verdict.Output,
		Success:     verdict.Success,
		Feedback:    verdict.Feedback,
		Flag:        verdict.Flag,
		TimestampMs: started.UnixMilli(),
		DurationMs:  time.Since(started).Milliseconds(),
	}

	if r.store != nil {
		if err := r.store.SaveSubmission(ctx, sub); err != nil {
			// The player already has their verdict; losing the history
			// row must not turn a finished run into a failure.
			slog.Error("failed to persist submission",
				"submission_id", sub.ID,
				"user_id", userID,
				"level_id", level.ID,
				"error", err)
		}
	}

	notify(StateCompleted)
	return sub, nil
}
