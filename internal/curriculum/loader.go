package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

// Catalog holds the loaded chapter/level hierarchy per language.
// Directory layout:
//
//	<dir>/<lang>/<chapterID>/chapter.yaml
//	<dir>/<lang>/<chapterID>/<levelID>.yaml
//
// A malformed file is skipped with a warning; it never fails the load.
type Catalog struct {
	mu    sync.RWMutex
	langs map[models.Language]*languageSet
}

type languageSet struct {
	chapters []models.Chapter
	levels   []models.Level
	byID     map[string]models.Level
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{langs: make(map[models.Language]*languageSet)}
}

// LoadFromDir loads every language tree under dir
func (c *Catalog) LoadFromDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read curriculum dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		lang := models.Language(entry.Name()).Normalize()
		set, err := loadLanguage(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("failed to load curriculum language", "lang", entry.Name(), "error", err)
			continue
		}

		c.mu.Lock()
		c.langs[lang] = set
		c.mu.Unlock()

		slog.Info("curriculum loaded", "lang", lang,
			"chapters", len(set.chapters), "levels", len(set.levels))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.langs) == 0 {
		return fmt.Errorf("no curriculum languages found in %s", dir)
	}
	return nil
}

// Chapters returns the ordered chapter list for a language, falling back
// to English when the language has no catalog
func (c *Catalog) Chapters(lang models.Language) []models.Chapter {
	set := c.setFor(lang)
	if set == nil {
		return nil
	}
	out := make([]models.Chapter, len(set.chapters))
	copy(out, set.chapters)
	return out
}

// Levels returns the ordered level list for a language
func (c *Catalog) Levels(lang models.Language) []models.Level {
	set := c.setFor(lang)
	if set == nil {
		return nil
	}
	out := make([]models.Level, len(set.levels))
	copy(out, set.levels)
	return out
}

// Level looks up a single level by ID
func (c *Catalog) Level(lang models.Language, id string) (models.Level, bool) {
	set := c.setFor(lang)
	if set == nil {
		return models.Level{}, false
	}
	lvl, ok := set.byID[id]
	return lvl, ok
}

func (c *Catalog) setFor(lang models.Language) *languageSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if set, ok := c.langs[lang.Normalize()]; ok {
		return set
	}
	return c.langs[models.LangEnglish]
}

// --- loading ---

func loadLanguage(dir string) (*languageSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read language dir: %w", err)
	}

	set := &languageSet{byID: make(map[string]models.Level)}

	var chapterDirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			chapterDirs = append(chapterDirs, entry.Name())
		}
	}
	sort.Strings(chapterDirs)

	for _, name := range chapterDirs {
		chapterDir := filepath.Join(dir, name)
		chapter, err := loadChapter(name, chapterDir)
		if err != nil {
			slog.Warn("failed to load chapter", "dir", name, "error", err)
			continue
		}
		levels, err := loadLevels(name, chapterDir)
		if err != nil {
			slog.Warn("failed to load chapter levels", "chapter", name, "error", err)
		}
		for _, lvl := range levels {
			if _, dup := set.byID[lvl.ID]; dup {
				slog.Warn("duplicate level id, keeping first", "id", lvl.ID)
				continue
			}
			set.levels = append(set.levels, lvl)
			set.byID[lvl.ID] = lvl
			chapter.LevelsCount++
		}
		set.chapters = append(set.chapters, chapter)
	}

	if len(set.levels) == 0 {
		return nil, fmt.Errorf("no levels found")
	}
	return set, nil
}

func loadChapter(id, dir string) (models.Chapter, error) {
	data, err := os.ReadFile(filepath.Join(dir, "chapter.yaml"))
	if err != nil {
		return models.Chapter{}, fmt.Errorf("failed to read chapter.yaml: %w", err)
	}

	var cf struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	}
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return models.Chapter{}, fmt.Errorf("failed to parse chapter.yaml: %w", err)
	}
	if cf.Title == "" {
		return models.Chapter{}, fmt.Errorf("chapter title is required")
	}

	return models.Chapter{ID: id, Title: cf.Title, Description: cf.Description}, nil
}

func loadLevels(chapterID, dir string) ([]models.Level, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if (ext != ".yaml" && ext != ".yml") || name == "chapter.yaml" || name == "chapter.yml" {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	var levels []models.Level
	for _, name := range files {
		lvl, err := loadLevel(chapterID, filepath.Join(dir, name))
		if err != nil {
			slog.Warn("failed to load level", "file", name, "error", err)
			continue
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

func loadLevel(chapterID, path string) (models.Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Level{}, fmt.Errorf("failed to read level file: %w", err)
	}

	var lvl models.Level
	if err := yaml.Unmarshal(data, &lvl); err != nil {
		return models.Level{}, fmt.Errorf("failed to parse level YAML: %w", err)
	}

	// The file name is the canonical id; YAML may omit it
	if lvl.ID == "" {
		base := filepath.Base(path)
		lvl.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	lvl.ChapterID = chapterID

	if lvl.Title == "" {
		return models.Level{}, fmt.Errorf("level title is required")
	}
	if lvl.WinCriteria == "" {
		return models.Level{}, fmt.Errorf("level win_criteria is required")
	}

	return lvl, nil
}
