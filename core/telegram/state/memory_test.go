package state

import (
	"testing"
	"time"
)

func TestDraftRoundTrip(t *testing.T) {
	m := NewMemoryManager()

	if _, ok := m.GetDraft(7); ok {
		t.Fatalf("expected no draft for fresh user")
	}

	type draft struct{ Step int }
	m.SetDraft(7, &draft{Step: 2})

	got, ok := m.GetDraft(7)
	if !ok {
		t.Fatalf("expected draft")
	}
	if d := got.(*draft); d.Step != 2 {
		t.Fatalf("unexpected draft: %+v", d)
	}

	m.ClearState(7)
	if _, ok := m.GetDraft(7); ok {
		t.Fatalf("ClearState must drop the draft")
	}
}

func TestStateLifecycle(t *testing.T) {
	m := NewMemoryManager()

	if m.HasState(1) {
		t.Fatalf("fresh user must be idle")
	}
	m.SetState(1, State("checkout:cart"))
	if !m.InProgress(1) {
		t.Fatalf("expected in-progress")
	}
	if got := m.GetState(1); got != State("checkout:cart") {
		t.Fatalf("unexpected state %q", got)
	}
	m.ClearState(1)
	if m.InProgress(1) {
		t.Fatalf("expected idle after clear")
	}
}

func TestReapEvictsIdleSessions(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m := &memoryManager{now: func() time.Time { return now }, sessions: make(map[int64]*Session)}

	m.SetState(1, State("checkout:cart"))
	m.SetState(2, State("subscribe:product"))

	// User 2 comes back later; user 1 goes stale.
	now = now.Add(20 * time.Minute)
	m.Touch(2)

	now = now.Add(15 * time.Minute)
	if n := m.Reap(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 reaped, got %d", n)
	}
	if m.HasState(1) {
		t.Fatalf("stale session must be gone")
	}
	if !m.HasState(2) {
		t.Fatalf("active session must survive")
	}
}

func TestGetTempInt64(t *testing.T) {
	m := NewMemoryManager()
	m.SetTemp(5, "product_id", int64(42))
	m.SetTemp(5, "label", "home")

	if v, ok := m.GetTempInt64(5, "product_id"); !ok || v != 42 {
		t.Fatalf("got %d, %v", v, ok)
	}
	if _, ok := m.GetTempInt64(5, "label"); ok {
		t.Fatalf("string value must not assert as int64")
	}
	m.ClearTemp(5, "product_id")
	if _, ok := m.GetTemp(5, "product_id"); ok {
		t.Fatalf("expected cleared")
	}
}
