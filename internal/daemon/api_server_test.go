package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sherpa/internal/announce"
	"sherpa/internal/bus"
	"sherpa/internal/judge"
	"sherpa/internal/lessons"
	"sherpa/internal/logging"
	"sherpa/internal/progress"
	"sherpa/internal/testsupport"
)

type stubJudge struct {
	verdict  bool
	err      error
	calls    int
	criteria string
}

func (j *stubJudge) Evaluate(_ context.Context, _ judge.Screenshot, criteria string) (bool, error) {
	j.calls++
	j.criteria = criteria
	if j.err != nil {
		return false, j.err
	}
	return j.verdict, nil
}

type testHarness struct {
	daemon  *Daemon
	lesson  *lessons.Lesson
	judge   *stubJudge
	baseURL string
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lesson := testsupport.SeedLesson(t, store)

	logger := logging.NewNop()
	cache := lessons.NewCache(store, logger)
	registry := bus.NewRegistry(logger)
	j := &stubJudge{verdict: true}
	orchestrator := progress.New(cache, j, logger)
	announcer := announce.New(registry, logger)

	d, err := New(cfg, store, cache, registry, orchestrator, announcer, logger)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Close()
	})

	return &testHarness{
		daemon:  d,
		lesson:  lesson,
		judge:   j,
		baseURL: "http://" + d.APIAddr(),
	}
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func postScreenshot(t *testing.T, baseURL string, fields map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("screenshot", "shot.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte{0x89, 0x50, 0x4e, 0x47}); err != nil {
		t.Fatalf("write screenshot: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	writer.Close()

	resp, err := http.Post(baseURL+"/api/screenshot", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post screenshot: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHarness(t)
	resp, err := http.Get(h.baseURL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestStartStepRequiresUserID(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postJSON(t, h.baseURL+"/api/start-step", map[string]any{"lesson_id": 1, "step_order": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", body)
	}
}

func TestStartStepDefaultNotification(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postJSON(t, h.baseURL+"/api/start-step", map[string]any{
		"user_id": "alice", "lesson_id": h.lesson.ID, "step_order": 3,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	notification, ok := body["notification"].(map[string]any)
	if !ok {
		t.Fatalf("missing notification in %v", body)
	}
	if notification["header"] != "Step 3" {
		t.Fatalf("unexpected header %v", notification["header"])
	}
	if notification["body"] != announce.DefaultBody {
		t.Fatalf("unexpected body %v", notification["body"])
	}
}

func TestScreenshotWithIdentity(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postScreenshot(t, h.baseURL, map[string]string{
		"user_id":    "alice",
		"lesson_id":  fmt.Sprint(h.lesson.ID),
		"step_order": "1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	if body["completed"] != true {
		t.Fatalf("expected completed=true, got %v", body)
	}
	if h.judge.criteria != "A terminal window is visible" {
		t.Fatalf("judge saw wrong criteria %q", h.judge.criteria)
	}
}

func TestScreenshotUnknownLesson(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postScreenshot(t, h.baseURL, map[string]string{
		"user_id":    "alice",
		"lesson_id":  "9999",
		"step_order": "1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	if body["completed"] != false || body["error"] != "Lesson not found" {
		t.Fatalf("unexpected body %v", body)
	}
	if h.judge.calls != 0 {
		t.Fatalf("judge must not run for unknown lesson, got %d calls", h.judge.calls)
	}
}

func TestScreenshotMalformedStepOrder(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postScreenshot(t, h.baseURL, map[string]string{
		"user_id":    "alice",
		"lesson_id":  "1",
		"step_order": "three",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed step_order, got %d: %v", resp.StatusCode, body)
	}
	if h.judge.calls != 0 {
		t.Fatalf("judge must not run on validation failure, got %d calls", h.judge.calls)
	}
}

func TestScreenshotWithoutIdentityFallsBack(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postScreenshot(t, h.baseURL, map[string]string{"user_id": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	if h.judge.calls != 1 || h.judge.criteria != "" {
		t.Fatalf("expected one no-context judge call, got %d calls criteria %q", h.judge.calls, h.judge.criteria)
	}
}

func TestSendPopupRequiresMessage(t *testing.T) {
	h := newTestHarness(t)
	resp, _ := postJSON(t, h.baseURL+"/api/send-popup", map[string]any{"user_id": "alice"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestLessonEndpoints(t *testing.T) {
	h := newTestHarness(t)

	resp, err := http.Get(h.baseURL + "/api/lessons")
	if err != nil {
		t.Fatalf("get lessons: %v", err)
	}
	defer resp.Body.Close()
	var listBody struct {
		Lessons []lessons.Lesson `json:"lessons"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode lessons: %v", err)
	}
	if len(listBody.Lessons) != 1 || listBody.Lessons[0].Title != "Terminal Basics" {
		t.Fatalf("unexpected lessons %+v", listBody.Lessons)
	}

	stepsResp, err := http.Get(fmt.Sprintf("%s/api/lessons/%d/steps", h.baseURL, h.lesson.ID))
	if err != nil {
		t.Fatalf("get steps: %v", err)
	}
	defer stepsResp.Body.Close()
	var stepsBody struct {
		Steps []lessons.Step `json:"steps"`
	}
	if err := json.NewDecoder(stepsResp.Body).Decode(&stepsBody); err != nil {
		t.Fatalf("decode steps: %v", err)
	}
	if len(stepsBody.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(stepsBody.Steps))
	}

	missing, err := http.Get(h.baseURL + "/api/lessons/9999/steps")
	if err != nil {
		t.Fatalf("get missing lesson: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing lesson, got %d", missing.StatusCode)
	}
}

func TestLessonImportEndpoint(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postJSON(t, h.baseURL+"/api/lessons", map[string]any{
		"lesson_order": 2,
		"title":        "shell pipes",
		"steps": []map[string]any{
			{"name": "Pipe output", "finish_criteria": "Two commands joined by a pipe"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	lesson, ok := body["lesson"].(map[string]any)
	if !ok || lesson["title"] != "Shell Pipes" {
		t.Fatalf("unexpected lesson %v", body)
	}
}

func TestWebsocketJoinReceiveAndLeave(t *testing.T) {
	h := newTestHarness(t)

	wsURL := "ws://" + h.daemon.APIAddr() + "/ws?user_id=alice"
	socket, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer socket.Close()

	waitForRoom(t, h.daemon, "alice", 1)

	resp, body := postJSON(t, h.baseURL+"/api/send-popup", map[string]any{
		"message": "Nice work!",
		"user_id": "alice",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	if body["delivered"] != float64(1) {
		t.Fatalf("expected 1 delivery, got %v", body["delivered"])
	}

	socket.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got bus.Notification
	if err := socket.ReadJSON(&got); err != nil {
		t.Fatalf("read notification: %v", err)
	}
	if got.Body != "Nice work!" || got.Type != bus.DefaultType || got.UserID != "alice" {
		t.Fatalf("unexpected notification %+v", got)
	}

	socket.Close()
	waitForRoom(t, h.daemon, "alice", 0)
}

func waitForRoom(t *testing.T, d *Daemon, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.registry.RoomSize(room) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %q never reached size %d", room, want)
}

func TestSendPopupBroadcastWithNoRooms(t *testing.T) {
	h := newTestHarness(t)
	resp, body := postJSON(t, h.baseURL+"/api/send-popup", map[string]any{"message": "hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, body)
	}
	if body["delivered"] != float64(0) {
		t.Fatalf("expected 0 deliveries, got %v", body["delivered"])
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	h := newTestHarness(t)

	cfg := h.daemon.cfg
	logger := logging.NewNop()
	store := h.daemon.store
	cache := h.daemon.cache
	registry := bus.NewRegistry(logger)
	orchestrator := progress.New(cache, &stubJudge{}, logger)
	announcer := announce.New(registry, logger)

	second, err := New(cfg, store, cache, registry, orchestrator, announcer, logger)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	err = second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestDataAndFilesEndpoints(t *testing.T) {
	h := newTestHarness(t)

	resp, err := http.Get(h.baseURL + "/api/data")
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected data status %d", resp.StatusCode)
	}

	filesResp, err := http.Get(h.baseURL + "/api/files")
	if err != nil {
		t.Fatalf("get files: %v", err)
	}
	defer filesResp.Body.Close()
	if filesResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected files status %d", filesResp.StatusCode)
	}
}
