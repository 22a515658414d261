// Package scheduler maps each active event to at most one in-flight timer,
// re-arms after every firing, and transitions events through their
// lifecycle. The store stays authoritative; the timer map is a derived,
// rebuildable cache.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"runtime/debug"
	"time"

	"postbot/internal/event"
	"postbot/internal/eventbus"
	"postbot/internal/recurrence"
	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

// Arm cancels any existing timer for the event and registers a one-shot
// timer for its next occurrence. Terminal events are never armed; an
// exhausted recurrence marks the event completed through the store.
func (c *Coordinator) Arm(ctx context.Context, ev event.Event) error {
	now := c.now()
	next, nerr := recurrence.Next(ev, now, c.loc)

	c.mu.Lock()
	// Cancel-then-arm under one critical section so concurrent Arm calls
	// for the same id cannot leave two live timers.
	ver := c.bumpLocked(ev.ID)
	c.stopTimerLocked(ev.ID)

	if c.closed || ev.Status != event.StatusActive {
		c.mu.Unlock()
		return nil
	}

	if nerr == nil {
		fireAt := next
		if c.collidesLocked(ev.ID, next) {
			fireAt = fireAt.Add(randomJitter(c.cfg.JitterMax))
		}
		delay := fireAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		id := ev.ID
		tm := time.AfterFunc(delay, func() { c.onFire(id, ver) })
		c.timers[ev.ID] = &armedTimer{nominal: next, fireAt: fireAt, timer: tm}
		c.mu.Unlock()

		c.log.Debug("timer armed",
			logx.String("event", ev.ID),
			logx.Time("fire_at", fireAt),
			logx.Duration("in", delay))
		return nil
	}
	c.mu.Unlock()

	switch {
	case errors.Is(nerr, recurrence.ErrExhausted):
		if err := c.store.SetStatus(ctx, ev.ID, event.StatusCompleted); err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.log.Error("completion write failed", logx.String("event", ev.ID), logx.Err(err))
			return err
		}
		c.publish(eventbus.TopicEventCompleted, eventbus.PostResult{EventID: ev.ID, Destination: ev.Destination})
		c.log.Info("event completed", logx.String("event", ev.ID))
		return nil
	default:
		// ErrNoCandidate or a malformed rule: a defect, not a lifecycle end.
		c.log.Error("occurrence computation failed", logx.String("event", ev.ID), logx.Err(nerr))
		if err := c.store.SetStatus(ctx, ev.ID, event.StatusError); err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.log.Error("error-status write failed", logx.String("event", ev.ID), logx.Err(err))
		}
		return nerr
	}
}

// Cancel stops and drops the timer for the event id, if any. After Cancel
// returns, no callback for a previously registered timer can run its body:
// the version bump makes any already-started callback a no-op.
func (c *Coordinator) Cancel(id string) {
	c.mu.Lock()
	c.bumpLocked(id)
	removed := c.stopTimerLocked(id)
	c.mu.Unlock()

	if removed {
		c.log.Debug("timer cancelled", logx.String("event", id))
	}
}

// onFire runs in the timer goroutine. It re-reads the event from the store
// (the armed snapshot may be stale after edits), executes, and re-arms
// repeating events only after the execution settled, keeping firings
// strictly sequential within one event.
func (c *Coordinator) onFire(id string, ver uint64) {
	c.mu.Lock()
	if c.closed || c.vers[id] != ver {
		c.mu.Unlock()
		return
	}
	delete(c.timers, id)
	c.inflight[id] = true
	c.execWG.Add(1)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		c.execWG.Done()
	}()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in fire handler",
				logx.String("event", id),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ExecTimeout)
	defer cancel()

	ev, err := c.store.Event(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.log.Debug("fired for deleted event", logx.String("event", id))
		return
	}
	if err != nil {
		// Store unreachable: nothing can be committed. Leave the event
		// unarmed; the periodic reconcile sweep retries once the store
		// is back.
		c.log.Error("event read failed on fire", logx.String("event", id), logx.Err(err))
		return
	}
	if ev.Status != event.StatusActive {
		c.log.Debug("fired for non-active event", logx.String("event", id), logx.String("status", string(ev.Status)))
		return
	}

	if err := c.exec.Execute(ctx, ev); err != nil {
		// The executor has already moved the event to error status; a
		// failed publish is never retried automatically.
		return
	}
	if !ev.Periodicity.Repeats() {
		return
	}

	// Fresh read before re-arming: the event may have been edited or
	// deleted while the publish was in flight.
	fresh, err := c.store.Event(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.Error("event re-read failed after fire", logx.String("event", id), logx.Err(err))
		}
		return
	}
	if err := c.Arm(ctx, fresh); err != nil {
		c.log.Error("re-arm failed", logx.String("event", id), logx.Err(err))
	}
}

// Close cancels all timers and waits (bounded by ctx) for in-flight
// executions to finish.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	for id, t := range c.timers {
		t.timer.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.execWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bumpLocked invalidates all outstanding timer callbacks for id and
// returns the new current version. Call with c.mu held.
func (c *Coordinator) bumpLocked(id string) uint64 {
	c.vers[id]++
	return c.vers[id]
}

// stopTimerLocked stops and removes the armed timer for id, reporting
// whether one existed. Call with c.mu held.
func (c *Coordinator) stopTimerLocked(id string) bool {
	t, ok := c.timers[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(c.timers, id)
	return true
}

// collidesLocked reports whether another event is already armed for the
// same nominal second. Jitter then spreads the publish calls; it never
// changes which occurrence fires. Call with c.mu held.
func (c *Coordinator) collidesLocked(id string, nominal time.Time) bool {
	sec := nominal.Truncate(time.Second)
	for otherID, t := range c.timers {
		if otherID != id && t.nominal.Truncate(time.Second).Equal(sec) {
			return true
		}
	}
	return false
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func (c *Coordinator) publish(topic string, data eventbus.PostResult) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Topic: topic, Data: data})
}
