package lessons

import "time"

// Lesson is one tutorial a learner can walk through. LessonOrder is the
// position of the lesson within the curriculum and is unique.
type Lesson struct {
	ID          int64     `json:"id"`
	LessonOrder int       `json:"lesson_order"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

// Step is one ordered instruction within a lesson. FinishCriteria describes,
// in prose, what the learner's screen must show for the step to count as done.
type Step struct {
	LessonID       int64  `json:"lesson_id"`
	StepOrder      int    `json:"step_order"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	FinishCriteria string `json:"finish_criteria"`
}

// LessonImport is the payload accepted when loading a lesson into the store.
type LessonImport struct {
	LessonOrder int          `json:"lesson_order"`
	Title       string       `json:"title"`
	Steps       []StepImport `json:"steps"`
}

// StepImport is one step of a LessonImport. StepOrder is optional; when zero
// the step takes the next position in declaration order.
type StepImport struct {
	StepOrder      int    `json:"step_order"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	FinishCriteria string `json:"finish_criteria"`
}
