package scheduler

import (
	"context"

	"postbot/internal/event"
	logx "postbot/pkg/logx"
)

// ReconcileAll scans the store and arms every active event exactly once.
// It runs at startup (before dialog-driven mutations are accepted) and is
// re-invoked periodically as a drift sweep, so it must be idempotent:
// events that already hold a timer or an in-flight execution are skipped,
// and duplicate rows for one id (a data-integrity violation) arm only the
// first encountered.
//
// Per-event failures are isolated; one broken row never stops the scan.
func (c *Coordinator) ReconcileAll(ctx context.Context) error {
	evs, err := c.store.Events(ctx)
	if err != nil {
		// Store unreachable. Do not guess at event state; the next sweep
		// retries with everything it finds then.
		c.log.Error("reconcile scan failed", logx.Err(err))
		return err
	}

	seen := make(map[string]bool, len(evs))
	armed, skipped := 0, 0
	for _, ev := range evs {
		if seen[ev.ID] {
			c.log.Warn("duplicate event row ignored", logx.String("event", ev.ID))
			continue
		}
		seen[ev.ID] = true

		if ev.Status != event.StatusActive {
			continue
		}
		if c.IsArmed(ev.ID) {
			skipped++
			continue
		}
		if err := c.Arm(ctx, ev); err != nil {
			c.log.Error("reconcile arm failed", logx.String("event", ev.ID), logx.Err(err))
			continue
		}
		armed++
	}

	c.log.Info("reconcile finished",
		logx.Int("events", len(evs)),
		logx.Int("armed", armed),
		logx.Int("already_armed", skipped))
	return nil
}
