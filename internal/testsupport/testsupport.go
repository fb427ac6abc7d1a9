// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"sherpa/internal/config"
	"sherpa/internal/lessons"
)

// NewConfig returns a validated config rooted in a temp directory. The API
// bind uses port 0 so tests never collide.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Judge.APIKey = "sk-test"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a lesson store under the config's data directory and
// closes it when the test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *lessons.Store {
	t.Helper()
	store, err := lessons.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open lesson store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// SeedLesson imports a two-step fixture lesson and returns it.
func SeedLesson(t *testing.T, store *lessons.Store) *lessons.Lesson {
	t.Helper()
	lesson, err := store.ImportLesson(context.Background(), lessons.LessonImport{
		LessonOrder: 1,
		Title:       "Terminal Basics",
		Steps: []lessons.StepImport{
			{Name: "Open a terminal", Description: "Launch the terminal app.", FinishCriteria: "A terminal window is visible"},
			{Name: "List files", Description: "Run ls.", FinishCriteria: "Directory contents are printed"},
		},
	})
	if err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	return lesson
}
