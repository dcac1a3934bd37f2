package models

// Language selects the interaction language for judge feedback
type Language string

const (
	LangEnglish Language = "en"
	LangChinese Language = "zh"
)

// Normalize maps unknown language codes to English
func (l Language) Normalize() Language {
	if l == LangChinese {
		return LangChinese
	}
	return LangEnglish
}

// Chapter groups levels into a curriculum section
type Chapter struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	LevelsCount int    `json:"levels_count" yaml:"-"`
}

// BadExample shows a failing prompt/output pair for a level
type BadExample struct {
	Prompt string `json:"prompt" yaml:"prompt"`
	Output string `json:"output" yaml:"output"`
}

// Level is one challenge in the curriculum.
// WinCriteria is natural-language text interpreted by the judge model,
// never parsed structurally.
type Level struct {
	ID             string     `json:"id" yaml:"id"`
	ChapterID      string     `json:"chapter_id" yaml:"chapter_id"`
	Title          string     `json:"title" yaml:"title"`
	Category       string     `json:"category" yaml:"category"`
	Difficulty     int        `json:"difficulty" yaml:"difficulty"`
	Description    string     `json:"description" yaml:"description"`
	MissionBrief   string     `json:"mission_brief" yaml:"mission_brief"`
	BadExample     BadExample `json:"bad_example" yaml:"bad_example"`
	StartingPrompt string     `json:"starting_prompt" yaml:"starting_prompt"`
	WinCriteria    string     `json:"win_criteria" yaml:"win_criteria"`
}
