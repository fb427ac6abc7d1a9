package lessons

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"sherpa/internal/services"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// Store provides durable lesson and step persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the lesson database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Mark(services.ErrConfiguration, "lesson database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrStore, err, "create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, err, "open database")
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			db.Close()
			return nil, services.Wrap(services.ErrStore, execErr, "apply pragma %q", pragma)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return services.Wrap(services.ErrStore, err, "apply schema")
	}
	var current sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&current)
	if err != nil {
		return services.Wrap(services.ErrStore, err, "read schema version")
	}
	if current.Valid && current.Int64 > schemaVersion {
		return services.Mark(services.ErrStore, "database schema version %d is newer than supported %d", current.Int64, schemaVersion)
	}
	if !current.Valid || current.Int64 < schemaVersion {
		if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return services.Wrap(services.ErrStore, err, "record schema version")
		}
	}
	return nil
}

// ImportLesson inserts or replaces a lesson and its steps in one transaction.
// The lesson title is trimmed and title-cased. Steps without an explicit order
// are numbered in declaration order starting at 1.
func (s *Store) ImportLesson(ctx context.Context, imp LessonImport) (*Lesson, error) {
	if imp.LessonOrder <= 0 {
		return nil, services.Mark(services.ErrValidation, "lesson_order must be positive")
	}
	title := strings.TrimSpace(imp.Title)
	if title == "" {
		return nil, services.Mark(services.ErrValidation, "lesson title is required")
	}
	title = cases.Title(language.English, cases.NoLower).String(title)
	for i, step := range imp.Steps {
		if strings.TrimSpace(step.Name) == "" {
			return nil, services.Mark(services.ErrValidation, "step %d name is required", i+1)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, err, "begin import")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	var lessonID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO lesson (lesson_order, title, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (lesson_order) DO UPDATE SET title = excluded.title
		RETURNING id, created_at`,
		imp.LessonOrder, title, now,
	).Scan(&lessonID, &now)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, err, "upsert lesson %d", imp.LessonOrder)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM step WHERE lesson_id = ?", lessonID); err != nil {
		return nil, services.Wrap(services.ErrStore, err, "clear steps for lesson %d", lessonID)
	}
	for i, step := range imp.Steps {
		order := step.StepOrder
		if order <= 0 {
			order = i + 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO step (lesson_id, step_order, name, description, finish_criteria)
			VALUES (?, ?, ?, ?, ?)`,
			lessonID, order, strings.TrimSpace(step.Name), step.Description, step.FinishCriteria,
		)
		if err != nil {
			return nil, services.Wrap(services.ErrStore, err, "insert step %d of lesson %d", order, lessonID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, services.Wrap(services.ErrStore, err, "commit import")
	}

	created, err := time.Parse(time.RFC3339, now)
	if err != nil {
		created = time.Now().UTC()
	}
	return &Lesson{ID: lessonID, LessonOrder: imp.LessonOrder, Title: title, CreatedAt: created}, nil
}

// Lesson returns the lesson with the given id.
func (s *Store) Lesson(ctx context.Context, id int64) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, lesson_order, title, created_at FROM lesson WHERE id = ?", id)
	return scanLesson(row)
}

// LessonByOrder returns the lesson at the given curriculum position.
func (s *Store) LessonByOrder(ctx context.Context, order int) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, lesson_order, title, created_at FROM lesson WHERE lesson_order = ?", order)
	return scanLesson(row)
}

// ListLessons returns all lessons in curriculum order.
func (s *Store) ListLessons(ctx context.Context) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, lesson_order, title, created_at FROM lesson ORDER BY lesson_order")
	if err != nil {
		return nil, services.Wrap(services.ErrStore, err, "list lessons")
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		var lesson Lesson
		var created string
		if err := rows.Scan(&lesson.ID, &lesson.LessonOrder, &lesson.Title, &created); err != nil {
			return nil, services.Wrap(services.ErrStore, err, "scan lesson")
		}
		lesson.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStore, err, "iterate lessons")
	}
	return out, nil
}

// FetchSteps returns every step of the lesson ordered by step_order. A lesson
// with no steps yields an empty slice; an unknown lesson id yields ErrNotFound.
func (s *Store) FetchSteps(ctx context.Context, lessonID int64) ([]Step, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM lesson WHERE id = ?", lessonID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Mark(services.ErrNotFound, "lesson %d", lessonID)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStore, err, "check lesson %d", lessonID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id, step_order, name, description, finish_criteria
		FROM step WHERE lesson_id = ? ORDER BY step_order`, lessonID)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, err, "fetch steps for lesson %d", lessonID)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var step Step
		if err := rows.Scan(&step.LessonID, &step.StepOrder, &step.Name, &step.Description, &step.FinishCriteria); err != nil {
			return nil, services.Wrap(services.ErrStore, err, "scan step")
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStore, err, "iterate steps")
	}
	return steps, nil
}

// DeleteLesson removes a lesson and, through the foreign key cascade, its steps.
func (s *Store) DeleteLesson(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM lesson WHERE id = ?", id)
	if err != nil {
		return services.Wrap(services.ErrStore, err, "delete lesson %d", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrStore, err, "delete lesson %d", id)
	}
	if affected == 0 {
		return services.Mark(services.ErrNotFound, "lesson %d", id)
	}
	return nil
}

func scanLesson(row *sql.Row) (*Lesson, error) {
	var lesson Lesson
	var created string
	err := row.Scan(&lesson.ID, &lesson.LessonOrder, &lesson.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Mark(services.ErrNotFound, "lesson")
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStore, err, "scan lesson")
	}
	lesson.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &lesson, nil
}
