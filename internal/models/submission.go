package models

// Verdict is the judge's structured decision for one submission.
// Flag is non-empty if and only if Success is true. Output always carries
// the generation engine's raw text, regardless of outcome.
type Verdict struct {
	Success  bool   `json:"success"`
	Feedback string `json:"feedback"`
	Flag     string `json:"flag,omitempty"`
	Output   string `json:"output"`
}

// Submission is the persisted record of one prompt/output/verdict cycle.
// Created once per orchestrated run and immutable thereafter.
type Submission struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	LevelID     string `json:"level_id"`
	Prompt      string `json:"prompt"`
	Output      string `json:"output"`
	Success     bool   `json:"success"`
	Feedback    string `json:"feedback"`
	Flag        string `json:"flag,omitempty"`
	TimestampMs int64  `json:"timestamp"`
	DurationMs  int64  `json:"duration_ms"`
}

// RunRequest is the body of a run/verify call
type RunRequest struct {
	LevelID  string   `json:"level_id"`
	Prompt   string   `json:"prompt"`
	Model    string   `json:"model,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Language Language `json:"language,omitempty"`
}

// LeaderboardEntry is one ranked row of the cross-user leaderboard
type LeaderboardEntry struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
	FlagCount  int    `json:"flag_count"`
	LastActive int64  `json:"last_active"`
	Rank       int    `json:"rank"`
}
