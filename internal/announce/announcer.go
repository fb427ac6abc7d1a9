package announce

import (
	"fmt"
	"log/slog"

	"sherpa/internal/bus"
	"sherpa/internal/logging"
)

// DefaultBody is the instructional text used when no body is supplied.
const DefaultBody = "Follow the instructions displayed in the overlay to complete this step."

// Emitter is the bus surface the announcer needs.
type Emitter interface {
	EmitTo(room string, n bus.Notification) int
}

// Announcer publishes step-start popups to a learner's room.
type Announcer struct {
	emitter Emitter
	logger  *slog.Logger
}

// New creates an announcer that publishes through emitter.
func New(emitter Emitter, logger *slog.Logger) *Announcer {
	return &Announcer{
		emitter: emitter,
		logger:  logging.NewComponentLogger(logger, "announce"),
	}
}

// Request describes one announcement. Header and Body are optional; when
// either is missing a deterministic default is synthesized from StepOrder.
type Request struct {
	UserID    string
	LessonID  int64
	StepOrder int
	Header    string
	Body      string
}

// Announce builds the notification and emits it to the user's room exactly
// once. The constructed payload is returned so callers can echo it back.
// Delivery is fire-and-forget; an empty room is not an error.
func (a *Announcer) Announce(req Request) bus.Notification {
	header := req.Header
	body := req.Body
	if header == "" || body == "" {
		order := req.StepOrder
		if order <= 0 {
			order = 1
		}
		header = fmt.Sprintf("Step %d", order)
		body = DefaultBody
	}

	notification := bus.Notification{Header: header, Body: body}
	delivered := a.emitter.EmitTo(req.UserID, notification)
	a.logger.Info("step announced",
		logging.String(logging.FieldUserID, req.UserID),
		logging.Int64(logging.FieldLessonID, req.LessonID),
		logging.Int(logging.FieldStepOrder, req.StepOrder),
		logging.Int("delivered", delivered))
	return notification
}
