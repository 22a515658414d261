// Package housekeeping runs the background maintenance jobs: the
// periodic reconcile sweep that heals timer drift and the audit-log
// prune. It schedules maintenance only; user events fire through the
// scheduling coordinator, never through cron.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

type Config struct {
	ReconcileEvery time.Duration // default 10m
	AuditRetention time.Duration // default 720h (30 days)
	PruneSchedule  string        // cron expression, default "0 4 * * *"
}

func (c Config) withDefaults() Config {
	if c.ReconcileEvery <= 0 {
		c.ReconcileEvery = 10 * time.Minute
	}
	if c.AuditRetention <= 0 {
		c.AuditRetention = 30 * 24 * time.Hour
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = "0 4 * * *"
	}
	return c
}

// Reconciler is the drift-sweep entry point on the coordinator.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
}

type Service struct {
	cfg   Config
	log   logx.Logger
	store storage.Store
	rec   Reconciler

	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, store storage.Store, rec Reconciler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		log:    log,
		store:  store,
		rec:    rec,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start registers the jobs and launches the cron runner in loc.
func (s *Service) Start(ctx context.Context, loc *time.Location) error {
	if s.c != nil {
		return nil
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))

	sweepSpec := fmt.Sprintf("@every %s", s.cfg.ReconcileEvery)
	if _, err := c.AddFunc(sweepSpec, func() { s.runSweep(ctx) }); err != nil {
		return fmt.Errorf("reconcile sweep schedule: %w", err)
	}
	if _, err := c.AddFunc(s.cfg.PruneSchedule, func() { s.runPrune(ctx) }); err != nil {
		return fmt.Errorf("audit prune schedule %q: %w", s.cfg.PruneSchedule, err)
	}

	s.c = c
	c.Start()
	s.log.Info("housekeeping started",
		logx.Duration("reconcile_every", s.cfg.ReconcileEvery),
		logx.String("prune_schedule", s.cfg.PruneSchedule),
		logx.Duration("audit_retention", s.cfg.AuditRetention))
	return nil
}

// Stop halts the runner and waits for running jobs to finish (bounded by
// ctx).
func (s *Service) Stop(ctx context.Context) error {
	if s.c == nil {
		return nil
	}
	stopCtx := s.c.Stop()
	s.c = nil
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.rec.ReconcileAll(ctx); err != nil {
		// ReconcileAll already logged the cause; the next sweep retries.
		s.log.Warn("reconcile sweep failed", logx.Err(err))
	}
}

func (s *Service) runPrune(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cutoff := time.Now().Add(-s.cfg.AuditRetention)
	n, err := s.store.PruneAudit(ctx, cutoff)
	if err != nil {
		s.log.Error("audit prune failed", logx.Err(err))
		return
	}
	s.log.Info("audit pruned", logx.Int64("removed", n), logx.Time("cutoff", cutoff))
}
