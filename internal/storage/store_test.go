package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"postbot/internal/event"
	logx "postbot/pkg/logx"
)

func testEvent(id string) event.Event {
	return event.Event{
		ID:          id,
		Destination: "-100987:7",
		Description: "weekly digest",
		StartDate:   event.NewDate(2026, time.March, 2),
		At:          event.TimeOfDay{Hour: 10, Minute: 30},
		Periodicity: event.Periodicity{Kind: event.Weekly},
		Text:        "Digest time!",
		Status:      event.StatusActive,
	}
}

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{}
	for _, driver := range []string{"sqlite", "file"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "postbot.db")}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func TestEventCRUD(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			ev := testEvent("ev1")
			if err := st.CreateEvent(ctx, ev); err != nil {
				t.Fatalf("CreateEvent: %v", err)
			}

			got, err := st.Event(ctx, "ev1")
			if err != nil {
				t.Fatalf("Event: %v", err)
			}
			if got.Destination != ev.Destination || got.At != ev.At || got.Periodicity.Kind != event.Weekly {
				t.Fatalf("round trip mismatch: %+v", got)
			}
			if !got.Forever() {
				t.Fatal("expected forever event")
			}

			got.Periodicity = event.Periodicity{Kind: event.EveryNDays, EveryN: 3}
			got.EndDate = event.NewDate(2026, time.June, 1)
			if err := st.UpdateEvent(ctx, got); err != nil {
				t.Fatalf("UpdateEvent: %v", err)
			}
			got, err = st.Event(ctx, "ev1")
			if err != nil {
				t.Fatalf("Event after update: %v", err)
			}
			if got.Periodicity.EveryN != 3 || got.Forever() {
				t.Fatalf("update not persisted: %+v", got)
			}

			if err := st.SetStatus(ctx, "ev1", event.StatusCompleted); err != nil {
				t.Fatalf("SetStatus: %v", err)
			}
			got, _ = st.Event(ctx, "ev1")
			if got.Status != event.StatusCompleted {
				t.Fatalf("status = %s", got.Status)
			}
			// Partial update must not clobber other fields.
			if got.Periodicity.EveryN != 3 {
				t.Fatalf("SetStatus clobbered periodicity: %+v", got)
			}

			if err := st.DeleteEvent(ctx, "ev1"); err != nil {
				t.Fatalf("DeleteEvent: %v", err)
			}
			if _, err := st.Event(ctx, "ev1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestNotFoundPaths(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			if _, err := st.Event(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Event: %v", err)
			}
			if err := st.SetStatus(ctx, "nope", event.StatusError); !errors.Is(err, ErrNotFound) {
				t.Fatalf("SetStatus: %v", err)
			}
			if err := st.DeleteEvent(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("DeleteEvent: %v", err)
			}
			ev := testEvent("nope")
			if err := st.UpdateEvent(ctx, ev); !errors.Is(err, ErrNotFound) {
				t.Fatalf("UpdateEvent: %v", err)
			}
		})
	}
}

func TestCreateRejectsInvalidEvent(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			ev := testEvent("bad")
			ev.Text = ""
			if err := st.CreateEvent(ctx, ev); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEventsScan(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			for _, id := range []string{"a1", "b2", "c3"} {
				if err := st.CreateEvent(ctx, testEvent(id)); err != nil {
					t.Fatalf("CreateEvent(%s): %v", id, err)
				}
			}
			evs, err := st.Events(ctx)
			if err != nil {
				t.Fatalf("Events: %v", err)
			}
			if len(evs) != 3 {
				t.Fatalf("len = %d, want 3", len(evs))
			}
		})
	}
}

func TestChatsUpsert(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			if err := st.UpsertChat(ctx, Chat{ID: -100123, Title: "Ops"}); err != nil {
				t.Fatalf("UpsertChat: %v", err)
			}
			if err := st.UpsertChat(ctx, Chat{ID: -100123, Title: "Ops (renamed)"}); err != nil {
				t.Fatalf("UpsertChat again: %v", err)
			}
			chats, err := st.Chats(ctx)
			if err != nil {
				t.Fatalf("Chats: %v", err)
			}
			if len(chats) != 1 || chats[0].Title != "Ops (renamed)" {
				t.Fatalf("unexpected chats: %+v", chats)
			}
		})
	}
}

func TestAuditAppendAndPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	for driver, st := range openDrivers(t) {
		t.Run(driver, func(t *testing.T) {
			old := AuditEntry{At: now.Add(-48 * time.Hour), EventID: "a", Destination: "-1", OK: true}
			fresh := AuditEntry{At: now, EventID: "b", Destination: "-1", OK: false, Error: "chat not found"}
			if err := st.AppendAudit(ctx, old); err != nil {
				t.Fatalf("AppendAudit: %v", err)
			}
			if err := st.AppendAudit(ctx, fresh); err != nil {
				t.Fatalf("AppendAudit: %v", err)
			}
			dropped, err := st.PruneAudit(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("PruneAudit: %v", err)
			}
			if dropped != 1 {
				t.Fatalf("dropped = %d, want 1", dropped)
			}
		})
	}
}

func TestFileStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "postbot.db")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.CreateEvent(ctx, testEvent("keep")); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	_ = st.Close()

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	if _, err := st2.Event(ctx, "keep"); err != nil {
		t.Fatalf("Event after reload: %v", err)
	}
}
