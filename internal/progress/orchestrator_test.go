package progress

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"sherpa/internal/judge"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
	"sherpa/internal/services"
)

type fakeResolver struct {
	steps map[int64]map[int]lessons.Step
	err   error
}

func (r *fakeResolver) StepByOrder(_ context.Context, lessonID int64, stepOrder int) (lessons.Step, bool, error) {
	if r.err != nil {
		return lessons.Step{}, false, r.err
	}
	byOrder, ok := r.steps[lessonID]
	if !ok {
		return lessons.Step{}, false, services.Mark(services.ErrNotFound, "lesson %d", lessonID)
	}
	step, ok := byOrder[stepOrder]
	return step, ok, nil
}

type fakeJudge struct {
	calls    atomic.Int64
	criteria string
	verdict  bool
	err      error
}

func (j *fakeJudge) Evaluate(_ context.Context, _ judge.Screenshot, criteria string) (bool, error) {
	j.calls.Add(1)
	j.criteria = criteria
	if j.err != nil {
		return false, j.err
	}
	return j.verdict, nil
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }
func intPtr(v int) *int       { return &v }

func shot() judge.Screenshot { return judge.Screenshot{Data: []byte{1}} }

func TestEvaluateWithIdentityJudgesStepCriteria(t *testing.T) {
	resolver := &fakeResolver{steps: map[int64]map[int]lessons.Step{
		1: {2: {LessonID: 1, StepOrder: 2, Name: "List files", FinishCriteria: "Directory contents are printed"}},
	}}
	j := &fakeJudge{verdict: true}
	orch := New(resolver, j, logging.NewNop())

	result, err := orch.EvaluateWithIdentity(context.Background(), shot(), "alice", 1, 2)
	if err != nil {
		t.Fatalf("EvaluateWithIdentity: %v", err)
	}
	if !result.Completed || result.Error != "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := j.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one judge call, got %d", got)
	}
	if j.criteria != "Directory contents are printed" {
		t.Fatalf("judge saw wrong criteria %q", j.criteria)
	}
}

func TestEvaluateWithIdentityLessonNotFound(t *testing.T) {
	resolver := &fakeResolver{steps: map[int64]map[int]lessons.Step{}}
	j := &fakeJudge{verdict: true}
	orch := New(resolver, j, logging.NewNop())

	result, err := orch.EvaluateWithIdentity(context.Background(), shot(), "alice", 99, 1)
	if err != nil {
		t.Fatalf("EvaluateWithIdentity: %v", err)
	}
	if result.Completed || result.Error != "Lesson not found" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := j.calls.Load(); got != 0 {
		t.Fatalf("judge must not run for unknown lesson, got %d calls", got)
	}
}

func TestEvaluateWithIdentityStepNotFound(t *testing.T) {
	resolver := &fakeResolver{steps: map[int64]map[int]lessons.Step{1: {}}}
	j := &fakeJudge{}
	orch := New(resolver, j, logging.NewNop())

	result, err := orch.EvaluateWithIdentity(context.Background(), shot(), "alice", 1, 5)
	if err != nil {
		t.Fatalf("EvaluateWithIdentity: %v", err)
	}
	if result.Completed || result.Error != "Step not found" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := j.calls.Load(); got != 0 {
		t.Fatalf("judge must not run for unknown step, got %d calls", got)
	}
}

func TestEvaluateWithIdentityStoreErrorPropagates(t *testing.T) {
	resolver := &fakeResolver{err: services.Mark(services.ErrStore, "db locked")}
	j := &fakeJudge{}
	orch := New(resolver, j, logging.NewNop())

	_, err := orch.EvaluateWithIdentity(context.Background(), shot(), "alice", 1, 1)
	if !errors.Is(err, services.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if got := j.calls.Load(); got != 0 {
		t.Fatalf("judge must not run on store failure, got %d calls", got)
	}
}

func TestEvaluateWithoutIdentityUsesEmptyCriteria(t *testing.T) {
	j := &fakeJudge{verdict: false}
	orch := New(&fakeResolver{}, j, logging.NewNop())

	result, err := orch.EvaluateWithoutIdentity(context.Background(), shot())
	if err != nil {
		t.Fatalf("EvaluateWithoutIdentity: %v", err)
	}
	if result.Completed {
		t.Fatalf("unexpected result %+v", result)
	}
	if j.criteria != "" {
		t.Fatalf("expected empty criteria, got %q", j.criteria)
	}
}

func TestEvaluateFallsBackOnPartialIdentity(t *testing.T) {
	resolver := &fakeResolver{steps: map[int64]map[int]lessons.Step{
		1: {1: {LessonID: 1, StepOrder: 1, FinishCriteria: "present"}},
	}}

	cases := []struct {
		name string
		id   Identity
	}{
		{"all missing", Identity{}},
		{"only user", Identity{UserID: strPtr("alice")}},
		{"missing step order", Identity{UserID: strPtr("alice"), LessonID: i64Ptr(1)}},
		{"missing user", Identity{LessonID: i64Ptr(1), StepOrder: intPtr(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := &fakeJudge{verdict: true}
			orch := New(resolver, j, logging.NewNop())
			result, err := orch.Evaluate(context.Background(), shot(), tc.id)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if !result.Completed {
				t.Fatalf("unexpected result %+v", result)
			}
			if j.criteria != "" {
				t.Fatalf("partial identity must judge empty criteria, got %q", j.criteria)
			}
		})
	}
}

func TestEvaluateUsesIdentityPathWhenComplete(t *testing.T) {
	resolver := &fakeResolver{steps: map[int64]map[int]lessons.Step{
		1: {1: {LessonID: 1, StepOrder: 1, FinishCriteria: "terminal open"}},
	}}
	j := &fakeJudge{verdict: true}
	orch := New(resolver, j, logging.NewNop())

	result, err := orch.Evaluate(context.Background(), shot(), Identity{
		UserID: strPtr("alice"), LessonID: i64Ptr(1), StepOrder: intPtr(1),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.Completed {
		t.Fatalf("unexpected result %+v", result)
	}
	if j.criteria != "terminal open" {
		t.Fatalf("expected step criteria, got %q", j.criteria)
	}
}

func TestJudgeErrorPropagates(t *testing.T) {
	j := &fakeJudge{err: services.Mark(services.ErrJudgment, "no verdict")}
	orch := New(&fakeResolver{steps: map[int64]map[int]lessons.Step{1: {1: {}}}}, j, logging.NewNop())

	_, err := orch.EvaluateWithIdentity(context.Background(), shot(), "alice", 1, 1)
	if !errors.Is(err, services.ErrJudgment) {
		t.Fatalf("expected ErrJudgment, got %v", err)
	}
}
