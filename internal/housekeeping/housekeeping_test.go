package housekeeping

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

type countingRec struct{ calls atomic.Int32 }

func (r *countingRec) ReconcileAll(context.Context) error {
	r.calls.Add(1)
	return nil
}

type pruneStore struct {
	storage.Store
	pruned atomic.Int64
	cutoff atomic.Value
}

func (s *pruneStore) PruneAudit(_ context.Context, olderThan time.Time) (int64, error) {
	s.pruned.Add(1)
	s.cutoff.Store(olderThan)
	return 3, nil
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()
	c := Config{}.withDefaults()
	if c.ReconcileEvery != 10*time.Minute {
		t.Errorf("ReconcileEvery = %v", c.ReconcileEvery)
	}
	if c.AuditRetention != 30*24*time.Hour {
		t.Errorf("AuditRetention = %v", c.AuditRetention)
	}
	if c.PruneSchedule != "0 4 * * *" {
		t.Errorf("PruneSchedule = %q", c.PruneSchedule)
	}

	c = Config{ReconcileEvery: time.Minute, PruneSchedule: "30 2 * * *"}.withDefaults()
	if c.ReconcileEvery != time.Minute || c.PruneSchedule != "30 2 * * *" {
		t.Errorf("explicit values overwritten: %+v", c)
	}
}

func TestStartRejectsBadPruneSchedule(t *testing.T) {
	t.Parallel()
	s := New(Config{PruneSchedule: "not a cron spec"}, &pruneStore{}, &countingRec{}, logx.Nop())
	if err := s.Start(context.Background(), time.UTC); err == nil {
		t.Fatal("want error for invalid prune schedule")
	}
}

func TestSweepAndPruneRun(t *testing.T) {
	t.Parallel()
	rec := &countingRec{}
	st := &pruneStore{}
	s := New(Config{AuditRetention: time.Hour}, st, rec, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.runSweep(ctx)
	if rec.calls.Load() != 1 {
		t.Fatalf("sweep calls = %d, want 1", rec.calls.Load())
	}

	before := time.Now()
	s.runPrune(ctx)
	if st.pruned.Load() != 1 {
		t.Fatalf("prune calls = %d, want 1", st.pruned.Load())
	}
	cutoff := st.cutoff.Load().(time.Time)
	want := before.Add(-time.Hour)
	if cutoff.Before(want.Add(-time.Minute)) || cutoff.After(want.Add(time.Minute)) {
		t.Fatalf("cutoff = %v, want ~%v", cutoff, want)
	}

	// A canceled context skips the work entirely.
	cancel()
	s.runSweep(ctx)
	s.runPrune(ctx)
	if rec.calls.Load() != 1 || st.pruned.Load() != 1 {
		t.Fatal("jobs ran after cancellation")
	}
}

var _ Reconciler = (*countingRec)(nil)
