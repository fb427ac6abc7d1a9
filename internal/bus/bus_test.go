package bus

import (
	"sync"
	"testing"
	"time"

	"sherpa/internal/logging"
)

type fakeConn struct {
	id   string
	mu   sync.Mutex
	got  []Notification
	fail error
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.got = append(c.got, n)
	return nil
}

func (c *fakeConn) received() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.got))
	copy(out, c.got)
	return out
}

func TestEmitToRoomIsolation(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	alice := &fakeConn{id: "c1"}
	bob := &fakeConn{id: "c2"}
	registry.Join("alice", alice)
	registry.Join("bob", bob)

	delivered := registry.EmitTo("alice", Notification{Header: "Step 1", Body: "Open a terminal"})
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if len(alice.received()) != 1 {
		t.Fatalf("alice should have 1 notification, got %d", len(alice.received()))
	}
	if len(bob.received()) != 0 {
		t.Fatalf("bob should have none, got %d", len(bob.received()))
	}
}

func TestEmitToAbsentRoomIsNoOp(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	if delivered := registry.EmitTo("ghost", Notification{Header: "x"}); delivered != 0 {
		t.Fatalf("expected 0 deliveries, got %d", delivered)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	conn := &fakeConn{id: "c1"}
	registry.Join("alice", conn)
	registry.Join("alice", conn)

	if size := registry.RoomSize("alice"); size != 1 {
		t.Fatalf("expected room size 1, got %d", size)
	}
	if delivered := registry.EmitTo("alice", Notification{Header: "once"}); delivered != 1 {
		t.Fatalf("expected single delivery, got %d", delivered)
	}
}

func TestJoinDuringLeaveOfLastMemberKeepsRoomReachable(t *testing.T) {
	registry := NewRegistry(logging.NewNop())

	for i := 0; i < 2000; i++ {
		leaving := &fakeConn{id: "leaving"}
		joining := &fakeConn{id: "joining"}
		registry.Join("alice", leaving)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Leave(leaving)
		}()
		go func() {
			defer wg.Done()
			registry.Join("alice", joining)
		}()
		wg.Wait()

		if delivered := registry.EmitTo("alice", Notification{Header: "ping"}); delivered != 1 {
			t.Fatalf("iteration %d: joined connection unreachable, delivered %d", i, delivered)
		}
		registry.Leave(joining)
	}
}

func TestLeaveRemovesFromAllRooms(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	conn := &fakeConn{id: "c1"}
	registry.Join("alice", conn)
	registry.Join("shared", conn)

	registry.Leave(conn)

	if rooms := registry.Rooms(); len(rooms) != 0 {
		t.Fatalf("expected empty rooms to be deleted, got %+v", rooms)
	}
	if delivered := registry.EmitTo("alice", Notification{Header: "x"}); delivered != 0 {
		t.Fatalf("expected no delivery after leave, got %d", delivered)
	}
}

func TestEmitAllDeduplicates(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	conn := &fakeConn{id: "c1"}
	other := &fakeConn{id: "c2"}
	registry.Join("alice", conn)
	registry.Join("shared", conn)
	registry.Join("bob", other)

	delivered := registry.EmitAll(Notification{Header: "broadcast"})
	if delivered != 2 {
		t.Fatalf("expected 2 unique deliveries, got %d", delivered)
	}
	if len(conn.received()) != 1 {
		t.Fatalf("multi-room conn should receive one copy, got %d", len(conn.received()))
	}
}

func TestDefaultsApplied(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.clock = func() time.Time { return fixed }
	conn := &fakeConn{id: "c1"}
	registry.Join("alice", conn)

	registry.EmitTo("alice", Notification{Header: "h", Body: "b"})

	got := conn.received()[0]
	if got.Type != DefaultType {
		t.Fatalf("expected default type %q, got %q", DefaultType, got.Type)
	}
	if got.Timestamp != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", got.Timestamp)
	}
	if got.UserID != "alice" {
		t.Fatalf("expected user id from room, got %q", got.UserID)
	}
}

func TestExplicitFieldsSurvive(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	conn := &fakeConn{id: "c1"}
	registry.Join("alice", conn)

	registry.EmitTo("alice", Notification{
		Header:    "h",
		Type:      "toast",
		Timestamp: "2026-01-01T00:00:00Z",
		UserID:    "override",
	})

	got := conn.received()[0]
	if got.Type != "toast" || got.Timestamp != "2026-01-01T00:00:00Z" || got.UserID != "override" {
		t.Fatalf("explicit fields were overwritten: %+v", got)
	}
}

func TestFailedSendDoesNotBlockOthers(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	bad := &fakeConn{id: "bad", fail: errSend}
	good := &fakeConn{id: "good"}
	registry.Join("alice", bad)
	registry.Join("alice", good)

	delivered := registry.EmitTo("alice", Notification{Header: "x"})
	if delivered != 1 {
		t.Fatalf("expected 1 successful delivery, got %d", delivered)
	}
	if len(good.received()) != 1 {
		t.Fatalf("healthy conn should still receive, got %d", len(good.received()))
	}
}

var errSend = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "send failed" }

func TestEmitOrderWithinRoom(t *testing.T) {
	registry := NewRegistry(logging.NewNop())
	conn := &fakeConn{id: "c1"}
	registry.Join("alice", conn)

	registry.EmitTo("alice", Notification{Header: "first"})
	registry.EmitTo("alice", Notification{Header: "second"})

	got := conn.received()
	if len(got) != 2 || got[0].Header != "first" || got[1].Header != "second" {
		t.Fatalf("deliveries out of order: %+v", got)
	}
}
