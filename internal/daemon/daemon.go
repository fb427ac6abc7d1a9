package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sherpa/internal/announce"
	"sherpa/internal/bus"
	"sherpa/internal/config"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
	"sherpa/internal/progress"
)

// Daemon coordinates the engine's services and enforces single-instance
// execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *lessons.Store
	cache        *lessons.Cache
	registry     *bus.Registry
	orchestrator *progress.Orchestrator
	announcer    *announce.Announcer

	api *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	APIBind         string             `json:"api_bind"`
	DatabasePath    string             `json:"database_path"`
	LockFilePath    string             `json:"lock_file_path"`
	JudgeConfigured bool               `json:"judge_configured"`
	Rooms           []bus.RoomInfo     `json:"rooms"`
	Cache           lessons.CacheStats `json:"cache"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *lessons.Store, cache *lessons.Cache, registry *bus.Registry, orchestrator *progress.Orchestrator, announcer *announce.Announcer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || cache == nil || registry == nil || orchestrator == nil || announcer == nil {
		return nil, errors.New("daemon requires config, store, cache, registry, orchestrator, and announcer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		cache:        cache,
		registry:     registry,
		orchestrator: orchestrator,
		announcer:    announcer,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sherpa daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("sherpa daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind))
	return nil
}

// Stop shuts down the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("sherpa daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		APIBind:         d.cfg.Paths.APIBind,
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
		JudgeConfigured: d.cfg.Judge.APIKey != "",
		Rooms:           d.registry.Rooms(),
		Cache:           d.cache.Stats(),
	}
}

// Rooms reports the active notification rooms.
func (d *Daemon) Rooms() []bus.RoomInfo {
	return d.registry.Rooms()
}

// ListLessons returns all stored lessons.
func (d *Daemon) ListLessons(ctx context.Context) ([]lessons.Lesson, error) {
	return d.store.ListLessons(ctx)
}

// DescribeLesson returns one lesson with its steps.
func (d *Daemon) DescribeLesson(ctx context.Context, id int64) (*lessons.Lesson, []lessons.Step, error) {
	lesson, err := d.store.Lesson(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	steps, err := d.store.FetchSteps(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return lesson, steps, nil
}

// ImportLesson stores a lesson and drops any stale cache entry for it.
func (d *Daemon) ImportLesson(ctx context.Context, imp lessons.LessonImport) (*lessons.Lesson, error) {
	lesson, err := d.store.ImportLesson(ctx, imp)
	if err != nil {
		return nil, err
	}
	d.cache.Invalidate(lesson.ID)
	return lesson, nil
}

// InvalidateCache drops one lesson from the cache, or every lesson when
// lessonID is zero. It returns the number of entries removed.
func (d *Daemon) InvalidateCache(lessonID int64) int {
	if lessonID == 0 {
		return d.cache.InvalidateAll()
	}
	if d.cache.Invalidate(lessonID) {
		return 1
	}
	return 0
}

// Announce publishes a step-start popup and returns the payload sent.
func (d *Daemon) Announce(req announce.Request) bus.Notification {
	return d.announcer.Announce(req)
}

// Popup sends an ad-hoc popup, targeted when userID is set and broadcast
// otherwise. It returns the number of connections reached.
func (d *Daemon) Popup(header, message, notificationType, userID string) int {
	n := bus.Notification{Header: header, Body: message, Type: notificationType, UserID: userID}
	if userID != "" {
		return d.registry.EmitTo(userID, n)
	}
	return d.registry.EmitAll(n)
}

// TestNotification emits a test popup. With a user id it targets that room;
// without one it broadcasts to every room. It returns how many connections
// received the popup.
func (d *Daemon) TestNotification(userID string) int {
	n := bus.Notification{Header: "Sherpa", Body: "Test notification from the sherpa daemon."}
	if userID != "" {
		return d.registry.EmitTo(userID, n)
	}
	return d.registry.EmitAll(n)
}

// APIAddr returns the bound API address, empty until Start succeeds.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}
