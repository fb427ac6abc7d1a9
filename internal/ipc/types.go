package ipc

// Request/response DTOs for the JSON-RPC control surface. Kept flat so the
// CLI can render them without importing daemon internals.

type StopRequest struct{}

type StopResponse struct {
	Stopped bool `json:"stopped"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Running         bool       `json:"running"`
	PID             int        `json:"pid"`
	APIBind         string     `json:"api_bind"`
	DatabasePath    string     `json:"database_path"`
	LockPath        string     `json:"lock_path"`
	JudgeConfigured bool       `json:"judge_configured"`
	Rooms           []RoomInfo `json:"rooms"`
	CacheLessons    int        `json:"cache_lessons"`
	CacheHits       uint64     `json:"cache_hits"`
	CacheMisses     uint64     `json:"cache_misses"`
}

type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

type RoomsRequest struct{}

type RoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

type LessonListRequest struct{}

type LessonSummary struct {
	ID          int64  `json:"id"`
	LessonOrder int    `json:"lesson_order"`
	Title       string `json:"title"`
	CreatedAt   string `json:"created_at"`
}

type LessonListResponse struct {
	Lessons []LessonSummary `json:"lessons"`
}

type LessonShowRequest struct {
	ID int64 `json:"id"`
}

type StepSummary struct {
	StepOrder      int    `json:"step_order"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	FinishCriteria string `json:"finish_criteria"`
}

type LessonShowResponse struct {
	Lesson LessonSummary `json:"lesson"`
	Steps  []StepSummary `json:"steps"`
}

// CacheInvalidateRequest drops one lesson from the cache, or everything when
// All is set.
type CacheInvalidateRequest struct {
	LessonID int64 `json:"lesson_id"`
	All      bool  `json:"all"`
}

type CacheInvalidateResponse struct {
	Removed int `json:"removed"`
}

// TestNotificationRequest targets one room, or broadcasts when UserID is
// empty.
type TestNotificationRequest struct {
	UserID string `json:"user_id"`
}

type TestNotificationResponse struct {
	Delivered int `json:"delivered"`
}

type StepImport struct {
	StepOrder      int    `json:"step_order"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	FinishCriteria string `json:"finish_criteria"`
}

type LessonImportRequest struct {
	LessonOrder int          `json:"lesson_order"`
	Title       string       `json:"title"`
	Steps       []StepImport `json:"steps"`
}

type LessonImportResponse struct {
	Lesson LessonSummary `json:"lesson"`
}

// AnnounceRequest publishes a step-start popup to the user's room. Header and
// Body are optional; defaults are synthesized from StepOrder.
type AnnounceRequest struct {
	UserID    string `json:"user_id"`
	LessonID  int64  `json:"lesson_id"`
	StepOrder int    `json:"step_order"`
	Header    string `json:"header"`
	Body      string `json:"body"`
}

type AnnounceResponse struct {
	Header    string `json:"header"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// PopupRequest sends an ad-hoc popup, targeted when UserID is set and
// broadcast otherwise.
type PopupRequest struct {
	Message string `json:"message"`
	Header  string `json:"header"`
	Type    string `json:"type"`
	UserID  string `json:"user_id"`
}

type PopupResponse struct {
	Delivered int `json:"delivered"`
}
