package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sherpa/internal/announce"
	"sherpa/internal/bus"
	"sherpa/internal/config"
	"sherpa/internal/judge"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
	"sherpa/internal/progress"
	"sherpa/internal/services"
)

const maxScreenshotBytes = 10 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/start-step", srv.handleStartStep)
	mux.HandleFunc("/api/screenshot", srv.handleScreenshot)
	mux.HandleFunc("/api/send-popup", srv.handleSendPopup)
	mux.HandleFunc("/api/lessons", srv.handleLessons)
	mux.HandleFunc("/api/lessons/", srv.handleLessonSteps)
	mux.HandleFunc("/api/rooms", srv.handleRooms)
	mux.HandleFunc("/api/data", srv.handleData)
	mux.HandleFunc("/api/files", srv.handleFiles)
	mux.HandleFunc("/ws", srv.handleWebsocket)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": s.daemon.running.Load()})
}

type startStepRequest struct {
	UserID    string `json:"user_id"`
	LessonID  int64  `json:"lesson_id"`
	StepOrder int    `json:"step_order"`
	Header    string `json:"header"`
	Body      string `json:"body"`
}

func (s *apiServer) handleStartStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req startStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	notification := s.daemon.announcer.Announce(announce.Request{
		UserID:    req.UserID,
		LessonID:  req.LessonID,
		StepOrder: req.StepOrder,
		Header:    req.Header,
		Body:      req.Body,
	})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"notification": notification,
	})
}

func (s *apiServer) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxScreenshotBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form with a screenshot file")
		return
	}
	file, header, err := r.FormFile("screenshot")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "screenshot file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxScreenshotBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read screenshot")
		return
	}

	identity, err := parseIdentity(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requestID := uuid.NewString()
	shot := judge.Screenshot{Data: data, MIME: header.Header.Get("Content-Type")}
	result, err := s.daemon.orchestrator.Evaluate(r.Context(), shot, identity)
	if err != nil {
		s.logger.Warn("screenshot evaluation failed",
			logging.String(logging.FieldRequestID, requestID),
			logging.Error(err))
		s.writeJSON(w, services.HTTPStatus(err), map[string]any{
			"status":    "error",
			"completed": false,
			"error":     err.Error(),
		})
		return
	}
	s.logger.Info("screenshot evaluated",
		logging.String(logging.FieldRequestID, requestID),
		logging.Bool("completed", result.Completed))

	payload := map[string]any{"status": "ok", "completed": result.Completed}
	if result.Error != "" {
		payload["error"] = result.Error
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// parseIdentity reads optional identity fields from the multipart form.
// Absent fields stay nil; present but malformed numbers are a request error.
func parseIdentity(r *http.Request) (progress.Identity, error) {
	var identity progress.Identity
	if value := strings.TrimSpace(r.FormValue("user_id")); value != "" {
		identity.UserID = &value
	}
	if value := strings.TrimSpace(r.FormValue("lesson_id")); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return progress.Identity{}, fmt.Errorf("lesson_id must be an integer")
		}
		identity.LessonID = &parsed
	}
	if value := strings.TrimSpace(r.FormValue("step_order")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return progress.Identity{}, fmt.Errorf("step_order must be an integer")
		}
		identity.StepOrder = &parsed
	}
	return identity, nil
}

type sendPopupRequest struct {
	Message   string `json:"message"`
	Header    string `json:"header"`
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

func (s *apiServer) handleSendPopup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req sendPopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	notification := bus.Notification{
		Header:    req.Header,
		Body:      req.Message,
		Type:      req.Type,
		Timestamp: req.Timestamp,
		UserID:    req.UserID,
	}
	var delivered int
	if req.UserID != "" {
		delivered = s.daemon.registry.EmitTo(req.UserID, notification)
	} else {
		delivered = s.daemon.registry.EmitAll(notification)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "delivered": delivered})
}

func (s *apiServer) handleLessons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.daemon.ListLessons(r.Context())
		if err != nil {
			s.writeError(w, services.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "lessons": list})
	case http.MethodPost:
		s.handleLessonImport(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleLessonImport(w http.ResponseWriter, r *http.Request) {
	var imp lessons.LessonImport
	if err := json.NewDecoder(r.Body).Decode(&imp); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	lesson, err := s.daemon.ImportLesson(r.Context(), imp)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "lesson": lesson})
}

func (s *apiServer) handleLessonSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/lessons/")
	idStr, tail, found := strings.Cut(rest, "/")
	if !found || tail != "steps" || idStr == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	lesson, steps, err := s.daemon.DescribeLesson(r.Context(), id)
	if err != nil {
		s.writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "lesson": lesson, "steps": steps})
}

func (s *apiServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": s.daemon.Rooms()})
}

// handleData serves a static sample payload for overlay smoke tests.
func (s *apiServer) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"data": []map[string]any{
			{"id": 1, "name": "Sample Lesson", "description": "Example payload for overlay development"},
		},
	})
}

// handleFiles lists files in the configured data directory.
func (s *apiServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := os.ReadDir(s.daemon.cfg.Paths.DataDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read data directory")
		return
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Base(entry.Name()))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "files": files})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
