package editlock

import (
	"testing"
	"time"
)

func TestAcquireIsExclusive(t *testing.T) {
	m := NewManager(time.Minute)

	if _, ok := m.Acquire("proj-1", "sess-a"); !ok {
		t.Fatal("first acquire should succeed")
	}
	lock, ok := m.Acquire("proj-1", "sess-b")
	if ok {
		t.Fatal("second session should not take a held lock")
	}
	if lock.SessionID != "sess-a" {
		t.Errorf("reported holder = %s, want sess-a", lock.SessionID)
	}

	// Re-acquire by the holder is idempotent.
	if _, ok := m.Acquire("proj-1", "sess-a"); !ok {
		t.Error("holder re-acquire should succeed")
	}
	// A different project is independent.
	if _, ok := m.Acquire("proj-2", "sess-b"); !ok {
		t.Error("acquire on another project should succeed")
	}
}

func TestExpiredLockIsTakenOver(t *testing.T) {
	m := NewManager(10 * time.Millisecond)

	if _, ok := m.Acquire("proj-1", "sess-a"); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(20 * time.Millisecond)

	if _, ok := m.Acquire("proj-1", "sess-b"); !ok {
		t.Fatal("expired lock should be taken over")
	}
	if m.Holds("proj-1", "sess-a") {
		t.Error("old holder still reports holding")
	}
	if !m.Holds("proj-1", "sess-b") {
		t.Error("new holder should hold")
	}
}

func TestHeartbeatKeepsLockAlive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)

	if _, ok := m.Acquire("proj-1", "sess-a"); !ok {
		t.Fatal("acquire failed")
	}
	for i := 0; i < 3; i++ {
		time.Sleep(15 * time.Millisecond)
		if !m.Heartbeat("proj-1", "sess-a") {
			t.Fatalf("heartbeat %d failed", i)
		}
	}
	if !m.Holds("proj-1", "sess-a") {
		t.Error("lock should still be held after heartbeats")
	}
}

func TestHeartbeatAfterExpiryFails(t *testing.T) {
	m := NewManager(10 * time.Millisecond)

	if _, ok := m.Acquire("proj-1", "sess-a"); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(20 * time.Millisecond)

	if m.Heartbeat("proj-1", "sess-a") {
		t.Error("heartbeat on expired token should fail")
	}
	if m.Holder("proj-1") != nil {
		t.Error("expired lock should be gone")
	}
}

func TestReleaseOnlyByHolder(t *testing.T) {
	m := NewManager(time.Minute)

	if _, ok := m.Acquire("proj-1", "sess-a"); !ok {
		t.Fatal("acquire failed")
	}
	if m.Release("proj-1", "sess-b") {
		t.Error("non-holder release should fail")
	}
	if !m.Release("proj-1", "sess-a") {
		t.Error("holder release should succeed")
	}
	if m.Holder("proj-1") != nil {
		t.Error("lock should be free after release")
	}
}
