package lessons

import (
	"context"
	"log/slog"
	"sync"

	"sherpa/internal/logging"
)

// StepSource loads the ordered steps of a lesson. *Store satisfies it.
type StepSource interface {
	FetchSteps(ctx context.Context, lessonID int64) ([]Step, error)
}

// Cache memoizes lesson steps in memory for the lifetime of the process.
// Entries never expire on their own; Invalidate and InvalidateAll are the
// only ways to drop them. A lesson that loaded with zero steps is cached as
// an empty entry, distinct from a lesson that was never loaded.
type Cache struct {
	source StepSource
	logger *slog.Logger

	mu      sync.Mutex
	entries map[int64][]Step
	fills   map[int64]*fillState

	hits   uint64
	misses uint64
}

type fillState struct {
	wg    sync.WaitGroup
	steps []Step
	err   error
}

// NewCache creates an empty cache backed by source.
func NewCache(source StepSource, logger *slog.Logger) *Cache {
	return &Cache{
		source:  source,
		logger:  logging.NewComponentLogger(logger, "lesson-cache"),
		entries: make(map[int64][]Step),
		fills:   make(map[int64]*fillState),
	}
}

// Steps returns the ordered steps of lessonID, loading from the source on the
// first request. Concurrent requests for the same lesson share a single load;
// requests for different lessons load independently. Load failures are not
// cached, so a later call retries.
func (c *Cache) Steps(ctx context.Context, lessonID int64) ([]Step, error) {
	c.mu.Lock()
	if steps, ok := c.entries[lessonID]; ok {
		c.hits++
		c.mu.Unlock()
		return cloneSteps(steps), nil
	}
	if fill, ok := c.fills[lessonID]; ok {
		c.mu.Unlock()
		fill.wg.Wait()
		if fill.err != nil {
			return nil, fill.err
		}
		return cloneSteps(fill.steps), nil
	}

	fill := &fillState{}
	fill.wg.Add(1)
	c.fills[lessonID] = fill
	c.misses++
	c.mu.Unlock()

	steps, err := c.source.FetchSteps(ctx, lessonID)
	fill.steps = steps
	fill.err = err

	c.mu.Lock()
	delete(c.fills, lessonID)
	if err == nil {
		c.entries[lessonID] = steps
	}
	c.mu.Unlock()
	fill.wg.Done()

	if err != nil {
		c.logger.Warn("lesson load failed",
			logging.Int64(logging.FieldLessonID, lessonID),
			logging.Error(err))
		return nil, err
	}
	c.logger.Debug("lesson loaded",
		logging.Int64(logging.FieldLessonID, lessonID),
		logging.Int("steps", len(steps)))
	return cloneSteps(steps), nil
}

// StepByOrder returns the step of lessonID at stepOrder, or ok=false when the
// lesson has no such step.
func (c *Cache) StepByOrder(ctx context.Context, lessonID int64, stepOrder int) (Step, bool, error) {
	steps, err := c.Steps(ctx, lessonID)
	if err != nil {
		return Step{}, false, err
	}
	for _, step := range steps {
		if step.StepOrder == stepOrder {
			return step, true, nil
		}
	}
	return Step{}, false, nil
}

// Invalidate drops the cached entry for lessonID if present and reports
// whether an entry was removed.
func (c *Cache) Invalidate(lessonID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[lessonID]; !ok {
		return false
	}
	delete(c.entries, lessonID)
	return true
}

// InvalidateAll drops every cached entry and returns how many were removed.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[int64][]Step)
	return n
}

// CacheStats is a point-in-time snapshot of cache activity.
type CacheStats struct {
	Lessons int    `json:"lessons"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Stats reports current cache occupancy and hit counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Lessons: len(c.entries), Hits: c.hits, Misses: c.misses}
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}
