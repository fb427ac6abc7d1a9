package announce

import (
	"testing"

	"sherpa/internal/bus"
	"sherpa/internal/logging"
)

type recordingEmitter struct {
	rooms   []string
	payload []bus.Notification
}

func (e *recordingEmitter) EmitTo(room string, n bus.Notification) int {
	e.rooms = append(e.rooms, room)
	e.payload = append(e.payload, n)
	return 1
}

func TestAnnounceDefaultPayload(t *testing.T) {
	emitter := &recordingEmitter{}
	announcer := New(emitter, logging.NewNop())

	got := announcer.Announce(Request{UserID: "u1", LessonID: 1, StepOrder: 3})

	if got.Header != "Step 3" {
		t.Fatalf("unexpected header %q", got.Header)
	}
	if got.Body != DefaultBody {
		t.Fatalf("unexpected body %q", got.Body)
	}
	if len(emitter.rooms) != 1 || emitter.rooms[0] != "u1" {
		t.Fatalf("expected one emit to u1, got %v", emitter.rooms)
	}
	if emitter.payload[0] != got {
		t.Fatalf("emitted payload differs from returned payload")
	}
}

func TestAnnounceZeroStepOrderDefaultsToOne(t *testing.T) {
	emitter := &recordingEmitter{}
	announcer := New(emitter, logging.NewNop())

	got := announcer.Announce(Request{UserID: "u1"})
	if got.Header != "Step 1" {
		t.Fatalf("unexpected header %q", got.Header)
	}
}

func TestAnnounceExplicitContentVerbatim(t *testing.T) {
	emitter := &recordingEmitter{}
	announcer := New(emitter, logging.NewNop())

	got := announcer.Announce(Request{
		UserID:    "u1",
		StepOrder: 2,
		Header:    "  Custom header ",
		Body:      "Custom body",
	})
	if got.Header != "  Custom header " || got.Body != "Custom body" {
		t.Fatalf("explicit content altered: %+v", got)
	}
}

func TestAnnouncePartialContentFallsBackEntirely(t *testing.T) {
	emitter := &recordingEmitter{}
	announcer := New(emitter, logging.NewNop())

	got := announcer.Announce(Request{UserID: "u1", StepOrder: 4, Header: "Only header"})
	if got.Header != "Step 4" || got.Body != DefaultBody {
		t.Fatalf("expected full default for partial content, got %+v", got)
	}
}

func TestAnnounceEmitsExactlyOnce(t *testing.T) {
	emitter := &recordingEmitter{}
	announcer := New(emitter, logging.NewNop())

	announcer.Announce(Request{UserID: "u1", StepOrder: 1})
	if len(emitter.rooms) != 1 {
		t.Fatalf("expected exactly one emit, got %d", len(emitter.rooms))
	}
}
