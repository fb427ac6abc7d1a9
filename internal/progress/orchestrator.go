package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sherpa/internal/judge"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
	"sherpa/internal/services"
)

// Result is the normalized outcome of a screenshot evaluation. Error carries
// the user-facing resolution message when the lesson or step could not be
// found; transport failures surface as Go errors instead.
type Result struct {
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

// Identity names the step a screenshot should be judged against. Pointers
// distinguish absent fields from zero values.
type Identity struct {
	UserID    *string
	LessonID  *int64
	StepOrder *int
}

// Complete reports whether all three identity fields are present.
func (id Identity) Complete() bool {
	return id.UserID != nil && id.LessonID != nil && id.StepOrder != nil
}

// StepResolver resolves a step by lesson id and order. *lessons.Cache
// satisfies it.
type StepResolver interface {
	StepByOrder(ctx context.Context, lessonID int64, stepOrder int) (lessons.Step, bool, error)
}

// Orchestrator routes screenshots through step resolution and the judge.
// It holds no mutable state and is safe for concurrent use.
type Orchestrator struct {
	resolver StepResolver
	judge    judge.Judge
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(resolver StepResolver, j judge.Judge, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		judge:    j,
		logger:   logging.NewComponentLogger(logger, "progress"),
	}
}

// EvaluateWithIdentity resolves the step for (lessonID, stepOrder) and judges
// the screenshot against its finish criteria. When the lesson or step cannot
// be resolved the judge is never invoked and the result carries the
// resolution message.
func (o *Orchestrator) EvaluateWithIdentity(ctx context.Context, shot judge.Screenshot, userID string, lessonID int64, stepOrder int) (Result, error) {
	step, ok, err := o.resolver.StepByOrder(ctx, lessonID, stepOrder)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			o.logger.Warn("lesson not found",
				logging.String(logging.FieldUserID, userID),
				logging.Int64(logging.FieldLessonID, lessonID))
			return Result{Completed: false, Error: "Lesson not found"}, nil
		}
		return Result{}, err
	}
	if !ok {
		o.logger.Warn("step not found",
			logging.String(logging.FieldUserID, userID),
			logging.Int64(logging.FieldLessonID, lessonID),
			logging.Int(logging.FieldStepOrder, stepOrder))
		return Result{Completed: false, Error: "Step not found"}, nil
	}

	started := time.Now()
	completed, err := o.judge.Evaluate(ctx, shot, step.FinishCriteria)
	if err != nil {
		return Result{}, err
	}
	o.logger.Info("screenshot judged",
		logging.String(logging.FieldUserID, userID),
		logging.Int64(logging.FieldLessonID, lessonID),
		logging.Int(logging.FieldStepOrder, stepOrder),
		logging.Bool("completed", completed),
		logging.Duration("elapsed", time.Since(started)))
	return Result{Completed: completed}, nil
}

// EvaluateWithoutIdentity judges the screenshot against empty criteria,
// bypassing step resolution entirely.
func (o *Orchestrator) EvaluateWithoutIdentity(ctx context.Context, shot judge.Screenshot) (Result, error) {
	completed, err := o.judge.Evaluate(ctx, shot, "")
	if err != nil {
		return Result{}, err
	}
	o.logger.Info("screenshot judged without context",
		logging.Bool("completed", completed))
	return Result{Completed: completed}, nil
}

// Evaluate picks the identity path when all three fields are present and the
// no-context path otherwise. A partial identity never fails; it simply falls
// back.
func (o *Orchestrator) Evaluate(ctx context.Context, shot judge.Screenshot, id Identity) (Result, error) {
	if id.Complete() {
		return o.EvaluateWithIdentity(ctx, shot, *id.UserID, *id.LessonID, *id.StepOrder)
	}
	return o.EvaluateWithoutIdentity(ctx, shot)
}
