package curriculum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func buildFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "en", "ch1", "chapter.yaml"),
		"title: Foundations\ndescription: Basics of Persona, Constraints, and Clarity.\n")
	writeFile(t, filepath.Join(dir, "en", "ch1", "L1-1.yaml"), `
title: Audience Persona
category: Basic
difficulty: 1
description: Tailor output for a specific audience.
mission_brief: Explain quantum computing as a grumpy wizard.
starting_prompt: Explain Quantum Computing as a Grumpy Medieval Wizard.
win_criteria: Output must use medieval tone and be under 50 words.
bad_example:
  prompt: Explain quantum computing clearly.
  output: Quantum computing uses qubits...
`)
	writeFile(t, filepath.Join(dir, "en", "ch1", "L1-2.yaml"), `
title: Explicit Constraints
category: Basic
difficulty: 2
win_criteria: Output must be raw JSON.
`)
	writeFile(t, filepath.Join(dir, "en", "ch2", "chapter.yaml"),
		"title: Core Skills\n")
	writeFile(t, filepath.Join(dir, "en", "ch2", "L2-1.yaml"), `
title: Chain of Thought
difficulty: 2
win_criteria: Output must show reasoning steps before the answer.
`)
	writeFile(t, filepath.Join(dir, "zh", "ch1", "chapter.yaml"),
		"title: 基础篇\n")
	writeFile(t, filepath.Join(dir, "zh", "ch1", "L1-1.yaml"), `
title: 受众画像
difficulty: 1
win_criteria: 输出必须使用巫师语气。
`)

	return dir
}

func TestLoadFromDir(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadFromDir(buildFixture(t)); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	chapters := c.Chapters(models.LangEnglish)
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].ID != "ch1" || chapters[0].Title != "Foundations" {
		t.Errorf("unexpected first chapter: %+v", chapters[0])
	}
	if chapters[0].LevelsCount != 2 {
		t.Errorf("expected 2 levels in ch1, got %d", chapters[0].LevelsCount)
	}

	levels := c.Levels(models.LangEnglish)
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if levels[0].ID != "L1-1" || levels[1].ID != "L1-2" || levels[2].ID != "L2-1" {
		t.Errorf("unexpected level order: %s %s %s", levels[0].ID, levels[1].ID, levels[2].ID)
	}

	lvl, ok := c.Level(models.LangEnglish, "L1-1")
	if !ok {
		t.Fatal("L1-1 not found")
	}
	if lvl.ChapterID != "ch1" {
		t.Errorf("chapter id not derived from directory: %q", lvl.ChapterID)
	}
	if lvl.BadExample.Prompt == "" {
		t.Error("bad example not parsed")
	}
	if lvl.WinCriteria == "" {
		t.Error("win criteria missing")
	}
}

func TestLoadSecondLanguage(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadFromDir(buildFixture(t)); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	lvl, ok := c.Level(models.LangChinese, "L1-1")
	if !ok {
		t.Fatal("zh L1-1 not found")
	}
	if lvl.Title != "受众画像" {
		t.Errorf("unexpected zh title: %q", lvl.Title)
	}
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadFromDir(buildFixture(t)); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	levels := c.Levels(models.Language("fr"))
	if len(levels) == 0 {
		t.Fatal("expected English fallback for unknown language")
	}
	if levels[0].Title != "Audience Persona" {
		t.Errorf("fallback did not serve English content: %q", levels[0].Title)
	}
}

func TestMalformedLevelSkipped(t *testing.T) {
	dir := buildFixture(t)
	writeFile(t, filepath.Join(dir, "en", "ch1", "L1-3.yaml"), "title: [unclosed\n")
	writeFile(t, filepath.Join(dir, "en", "ch1", "L1-4.yaml"), "title: No Criteria\n")

	c := NewCatalog()
	if err := c.LoadFromDir(dir); err != nil {
		t.Fatalf("a broken level file must not fail the load: %v", err)
	}

	if _, ok := c.Level(models.LangEnglish, "L1-3"); ok {
		t.Error("malformed level should be skipped")
	}
	if _, ok := c.Level(models.LangEnglish, "L1-4"); ok {
		t.Error("level without win criteria should be skipped")
	}
	if _, ok := c.Level(models.LangEnglish, "L1-1"); !ok {
		t.Error("valid sibling levels must survive")
	}
}

func TestLoadFromDirActualCurriculum(t *testing.T) {
	curriculumDir := filepath.Join("..", "..", "curriculum")
	if _, err := os.Stat(curriculumDir); os.IsNotExist(err) {
		t.Skip("curriculum directory not found, skipping")
	}

	c := NewCatalog()
	if err := c.LoadFromDir(curriculumDir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	for _, lang := range []models.Language{models.LangEnglish, models.LangChinese} {
		levels := c.Levels(lang)
		if len(levels) < 20 {
			t.Errorf("%s: expected at least 20 levels, got %d", lang, len(levels))
		}
		for _, lvl := range levels {
			if lvl.WinCriteria == "" {
				t.Errorf("%s/%s: empty win criteria", lang, lvl.ID)
			}
		}
	}

	if len(c.Chapters(models.LangEnglish)) != 6 {
		t.Errorf("expected 6 chapters, got %d", len(c.Chapters(models.LangEnglish)))
	}
}
