package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"postbot/internal/event"
	"postbot/internal/eventbus"
	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

// fakeStore is an in-memory storage.Store with optional scan overrides.
type fakeStore struct {
	mu     sync.Mutex
	events map[string]event.Event
	audits []storage.AuditEntry

	scanRows []event.Event // when non-nil, Events returns these verbatim
	failAll  bool
}

func newFakeStore(evs ...event.Event) *fakeStore {
	m := map[string]event.Event{}
	for _, ev := range evs {
		m[ev.ID] = ev
	}
	return &fakeStore{events: m}
}

var errStoreDown = errors.New("store down")

func (s *fakeStore) CreateEvent(_ context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
	return nil
}

func (s *fakeStore) Event(_ context.Context, id string) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return event.Event{}, errStoreDown
	}
	ev, ok := s.events[id]
	if !ok {
		return event.Event{}, storage.ErrNotFound
	}
	return ev, nil
}

func (s *fakeStore) UpdateEvent(_ context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; !ok {
		return storage.ErrNotFound
	}
	s.events[ev.ID] = ev
	return nil
}

func (s *fakeStore) SetStatus(_ context.Context, id string, st event.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	ev, ok := s.events[id]
	if !ok {
		return storage.ErrNotFound
	}
	ev.Status = st
	s.events[id] = ev
	return nil
}

func (s *fakeStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *fakeStore) Events(_ context.Context) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	if s.scanRows != nil {
		return append([]event.Event(nil), s.scanRows...), nil
	}
	out := make([]event.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	return out, nil
}

func (s *fakeStore) status(id string) event.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id].Status
}

func (s *fakeStore) UpsertChat(context.Context, storage.Chat) error    { return nil }
func (s *fakeStore) Chats(context.Context) ([]storage.Chat, error)     { return nil, nil }
func (s *fakeStore) PruneAudit(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *fakeStore) Close() error                                      { return nil }

func (s *fakeStore) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	return nil
}

// fakePublisher records publishes and signals each one on a channel.
type fakePublisher struct {
	mu    sync.Mutex
	calls []string
	fired chan string
	err   error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{fired: make(chan string, 16)}
}

func (p *fakePublisher) Publish(_ context.Context, dest, _ string) error {
	p.mu.Lock()
	p.calls = append(p.calls, dest)
	err := p.err
	p.mu.Unlock()
	p.fired <- dest
	return err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestCoordinator(t *testing.T, st *fakeStore, pub *fakePublisher, now time.Time) *Coordinator {
	t.Helper()
	bus := eventbus.New()
	exec := NewExecutor(st, pub, bus, logx.Nop())
	c := New(Config{Timezone: "UTC", ExecTimeout: 5 * time.Second}, st, exec, bus, logx.Nop())
	c.now = func() time.Time { return now }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func dailyEvent(id string, start event.Date, at event.TimeOfDay) event.Event {
	return event.Event{
		ID:          id,
		Destination: "-100" + id,
		StartDate:   start,
		At:          at,
		Periodicity: event.Periodicity{Kind: event.Daily},
		Text:        "scheduled post",
		Status:      event.StatusActive,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestArmTwiceKeepsOneTimer(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	ev := dailyEvent("a1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm again: %v", err)
	}

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("armed timers = %d, want 1", len(snap))
	}
	want := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	if !snap[0].FireAt.Equal(want) {
		t.Fatalf("fireAt = %v, want %v", snap[0].FireAt, want)
	}
}

func TestArmTerminalEventIsNoop(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	for _, st := range []event.Status{event.StatusCompleted, event.StatusError} {
		ev := dailyEvent("t1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
		ev.Status = st
		store := newFakeStore(ev)
		c := newTestCoordinator(t, store, newFakePublisher(), now)

		if err := c.Arm(context.Background(), ev); err != nil {
			t.Fatalf("Arm(%s): %v", st, err)
		}
		if len(c.Snapshot()) != 0 {
			t.Fatalf("status %s: expected no armed timer", st)
		}
	}
}

func TestArmExhaustedMarksCompleted(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	ev := dailyEvent("x1", event.NewDate(2026, time.March, 10), event.TimeOfDay{Hour: 9})
	ev.Periodicity = event.Periodicity{Kind: event.Once}
	st := newFakeStore(ev)
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if got := st.status("x1"); got != event.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	if len(c.Snapshot()) != 0 {
		t.Fatal("expected no armed timer")
	}
}

func TestArmBadRuleMarksError(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	ev := dailyEvent("w1", event.NewDate(2026, time.March, 1), event.TimeOfDay{Hour: 9})
	// Empty weekday set slips past the dialog only through a defect;
	// the coordinator must park it in error status, not loop.
	ev.Periodicity = event.Periodicity{Kind: event.Weekdays}
	st := newFakeStore(ev)
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.Arm(context.Background(), ev); err == nil {
		t.Fatal("expected error")
	}
	if got := st.status("w1"); got != event.StatusError {
		t.Fatalf("status = %s, want error", got)
	}
}

func TestFirePublishesAndRearms(t *testing.T) {
	t.Parallel()
	// The clock starts 50ms before the occurrence and advances with real
	// time, so the timer fires promptly and the re-arm computes the next
	// day instead of the just-fired occurrence.
	occ := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	ev := dailyEvent("d1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	pub := newFakePublisher()
	c := newTestCoordinator(t, st, pub, occ)
	base := time.Now()
	c.now = func() time.Time { return occ.Add(-50 * time.Millisecond).Add(time.Since(base)) }

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	select {
	case <-pub.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("publish never happened")
	}

	// Repeating event: a new timer for the next day must appear.
	waitFor(t, "re-arm", func() bool {
		snap := c.Snapshot()
		return len(snap) == 1 && snap[0].FireAt.Equal(occ.Add(24*time.Hour))
	})
	if got := st.status("d1"); got != event.StatusActive {
		t.Fatalf("status = %s, want active", got)
	}
}

func TestFireOnceCompletesWithoutRearm(t *testing.T) {
	t.Parallel()
	occ := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	now := occ.Add(-50 * time.Millisecond)
	ev := dailyEvent("o1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	ev.Periodicity = event.Periodicity{Kind: event.Once}
	st := newFakeStore(ev)
	pub := newFakePublisher()
	c := newTestCoordinator(t, st, pub, now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	select {
	case <-pub.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("publish never happened")
	}

	waitFor(t, "completion", func() bool { return st.status("o1") == event.StatusCompleted })
	if len(c.Snapshot()) != 0 {
		t.Fatal("one-time event must not re-arm")
	}
}

func TestFirePublishFailureMarksErrorNoRearm(t *testing.T) {
	t.Parallel()
	occ := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	now := occ.Add(-50 * time.Millisecond)
	ev := dailyEvent("f1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	pub := newFakePublisher()
	pub.err = errors.New("chat not found")
	c := newTestCoordinator(t, st, pub, now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	select {
	case <-pub.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("publish attempt never happened")
	}

	waitFor(t, "error status", func() bool { return st.status("f1") == event.StatusError })
	time.Sleep(50 * time.Millisecond)
	if len(c.Snapshot()) != 0 {
		t.Fatal("failed event must not re-arm")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	t.Parallel()
	occ := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	now := occ.Add(-60 * time.Millisecond)
	ev := dailyEvent("c1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	pub := newFakePublisher()
	c := newTestCoordinator(t, st, pub, now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	c.Cancel("c1")
	if len(c.Snapshot()) != 0 {
		t.Fatal("timer survived Cancel")
	}

	time.Sleep(300 * time.Millisecond)
	if n := pub.count(); n != 0 {
		t.Fatalf("publishes after cancel = %d, want 0", n)
	}
}

func TestDeletedEventDoesNotFire(t *testing.T) {
	t.Parallel()
	occ := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	now := occ.Add(-60 * time.Millisecond)
	ev := dailyEvent("del1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	pub := newFakePublisher()
	c := newTestCoordinator(t, st, pub, now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	// Delete request: cancel first, then remove the row.
	c.Cancel("del1")
	if err := st.DeleteEvent(context.Background(), "del1"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := pub.count(); n != 0 {
		t.Fatalf("publishes for deleted event = %d, want 0", n)
	}
}

func TestEditReschedulesWithoutGapOrDouble(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	ev := dailyEvent("e1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	ev.At = event.TimeOfDay{Hour: 18, Minute: 30}
	if err := st.UpdateEvent(context.Background(), ev); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("re-Arm: %v", err)
	}

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("armed timers = %d, want 1", len(snap))
	}
	want := time.Date(2026, time.March, 2, 18, 30, 0, 0, time.UTC)
	if !snap[0].FireAt.Equal(want) {
		t.Fatalf("fireAt = %v, want %v", snap[0].FireAt, want)
	}
}

func TestStaleEventDataNotUsedOnFire(t *testing.T) {
	t.Parallel()
	occ := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	now := occ.Add(-60 * time.Millisecond)
	ev := dailyEvent("s1", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	pub := newFakePublisher()
	c := newTestCoordinator(t, st, pub, now)

	if err := c.Arm(context.Background(), ev); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	// Event turns terminal between arm and fire; the fresh read in the
	// fire path must see it and skip publishing.
	if err := st.SetStatus(context.Background(), "s1", event.StatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := pub.count(); n != 0 {
		t.Fatalf("publishes for completed event = %d, want 0", n)
	}
}

func TestReconcileAllIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	a := dailyEvent("ra", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	b := dailyEvent("rb", event.NewDate(2026, time.March, 3), event.TimeOfDay{Hour: 10})
	done := dailyEvent("rc", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	done.Status = event.StatusCompleted
	st := newFakeStore(a, b, done)
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if err := c.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll again: %v", err)
	}

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("armed timers = %d, want 2", len(snap))
	}
}

func TestReconcileSkipsDuplicateRows(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	ev := dailyEvent("dup", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(ev)
	st.scanRows = []event.Event{ev, ev, ev}
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if len(c.Snapshot()) != 1 {
		t.Fatal("duplicate rows must arm only once")
	}
}

func TestReconcileStoreDownReturnsError(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	st := newFakeStore()
	st.failAll = true
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.ReconcileAll(context.Background()); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestSnapshotOrdering(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	late := dailyEvent("z", event.NewDate(2026, time.March, 5), event.TimeOfDay{Hour: 9})
	early := dailyEvent("a", event.NewDate(2026, time.March, 2), event.TimeOfDay{Hour: 9})
	st := newFakeStore(late, early)
	c := newTestCoordinator(t, st, newFakePublisher(), now)

	if err := c.Arm(context.Background(), late); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := c.Arm(context.Background(), early); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	snap := c.Snapshot()
	if len(snap) != 2 || snap[0].EventID != "a" {
		t.Fatalf("unexpected snapshot order: %+v", snap)
	}
}
