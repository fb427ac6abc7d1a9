package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"sherpa/internal/announce"
	"sherpa/internal/daemon"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Sherpa", svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.APIBind = status.APIBind
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.JudgeConfigured = status.JudgeConfigured
	resp.CacheLessons = status.Cache.Lessons
	resp.CacheHits = status.Cache.Hits
	resp.CacheMisses = status.Cache.Misses
	resp.Rooms = make([]RoomInfo, 0, len(status.Rooms))
	for _, room := range status.Rooms {
		resp.Rooms = append(resp.Rooms, RoomInfo{Name: room.Name, Members: room.Members})
	}
	return nil
}

func (s *service) Rooms(_ RoomsRequest, resp *RoomsResponse) error {
	for _, room := range s.daemon.Rooms() {
		resp.Rooms = append(resp.Rooms, RoomInfo{Name: room.Name, Members: room.Members})
	}
	return nil
}

func (s *service) LessonList(_ LessonListRequest, resp *LessonListResponse) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	list, err := s.daemon.ListLessons(ctx)
	if err != nil {
		return err
	}
	resp.Lessons = make([]LessonSummary, 0, len(list))
	for _, lesson := range list {
		resp.Lessons = append(resp.Lessons, LessonSummary{
			ID:          lesson.ID,
			LessonOrder: lesson.LessonOrder,
			Title:       lesson.Title,
			CreatedAt:   lesson.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil
}

func (s *service) LessonShow(req LessonShowRequest, resp *LessonShowResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid lesson id %d", req.ID)
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	lesson, steps, err := s.daemon.DescribeLesson(ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Lesson = LessonSummary{
		ID:          lesson.ID,
		LessonOrder: lesson.LessonOrder,
		Title:       lesson.Title,
		CreatedAt:   lesson.CreatedAt.Format(time.RFC3339),
	}
	resp.Steps = make([]StepSummary, 0, len(steps))
	for _, step := range steps {
		resp.Steps = append(resp.Steps, StepSummary{
			StepOrder:      step.StepOrder,
			Name:           step.Name,
			Description:    step.Description,
			FinishCriteria: step.FinishCriteria,
		})
	}
	return nil
}

func (s *service) CacheInvalidate(req CacheInvalidateRequest, resp *CacheInvalidateResponse) error {
	if req.All {
		resp.Removed = s.daemon.InvalidateCache(0)
	} else {
		if req.LessonID <= 0 {
			return fmt.Errorf("invalid lesson id %d", req.LessonID)
		}
		resp.Removed = s.daemon.InvalidateCache(req.LessonID)
	}
	s.logger.Info("cache invalidated via IPC",
		logging.String(logging.FieldEventType, "cache_invalidate"),
		logging.Int("removed", resp.Removed))
	return nil
}

func (s *service) TestNotification(req TestNotificationRequest, resp *TestNotificationResponse) error {
	resp.Delivered = s.daemon.TestNotification(req.UserID)
	return nil
}

func (s *service) LessonImport(req LessonImportRequest, resp *LessonImportResponse) error {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	steps := make([]lessons.StepImport, len(req.Steps))
	for i, step := range req.Steps {
		steps[i] = lessons.StepImport(step)
	}
	lesson, err := s.daemon.ImportLesson(ctx, lessons.LessonImport{
		LessonOrder: req.LessonOrder,
		Title:       req.Title,
		Steps:       steps,
	})
	if err != nil {
		return err
	}
	resp.Lesson = LessonSummary{
		ID:          lesson.ID,
		LessonOrder: lesson.LessonOrder,
		Title:       lesson.Title,
		CreatedAt:   lesson.CreatedAt.Format(time.RFC3339),
	}
	s.logger.Info("lesson imported via IPC",
		logging.String(logging.FieldEventType, "lesson_import"),
		logging.Int64(logging.FieldLessonID, lesson.ID))
	return nil
}

func (s *service) Announce(req AnnounceRequest, resp *AnnounceResponse) error {
	if req.UserID == "" {
		return errors.New("user_id is required")
	}
	n := s.daemon.Announce(announce.Request{
		UserID:    req.UserID,
		LessonID:  req.LessonID,
		StepOrder: req.StepOrder,
		Header:    req.Header,
		Body:      req.Body,
	})
	resp.Header = n.Header
	resp.Body = n.Body
	resp.Type = n.Type
	resp.Timestamp = n.Timestamp
	return nil
}

func (s *service) Popup(req PopupRequest, resp *PopupResponse) error {
	if req.Message == "" {
		return errors.New("message is required")
	}
	resp.Delivered = s.daemon.Popup(req.Header, req.Message, req.Type, req.UserID)
	return nil
}
