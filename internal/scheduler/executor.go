package scheduler

import (
	"context"
	"errors"
	"time"

	"postbot/internal/event"
	"postbot/internal/eventbus"
	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

// PublishExecutor delivers an event's text to its destination and commits
// the resulting lifecycle transition.
//
// Policy: publish failures are not retried. A blind retry could duplicate
// a post when the failure was spurious on the remote side but the message
// actually landed, so the event moves to error status and waits for an
// operator.
type PublishExecutor struct {
	store storage.Store
	pub   Publisher
	bus   eventbus.Bus
	log   logx.Logger
}

func NewExecutor(store storage.Store, pub Publisher, bus eventbus.Bus, log logx.Logger) *PublishExecutor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &PublishExecutor{store: store, pub: pub, bus: bus, log: log}
}

func (x *PublishExecutor) Execute(ctx context.Context, ev event.Event) error {
	start := time.Now()
	pubErr := x.pub.Publish(ctx, ev.Destination, ev.Text)
	took := time.Since(start)

	audit := storage.AuditEntry{
		At:          start,
		EventID:     ev.ID,
		Destination: ev.Destination,
		OK:          pubErr == nil,
		TookMS:      took.Milliseconds(),
	}
	if pubErr != nil {
		audit.Error = pubErr.Error()
	}
	if err := x.store.AppendAudit(ctx, audit); err != nil {
		x.log.Warn("audit write failed", logx.String("event", ev.ID), logx.Err(err))
	}

	if pubErr != nil {
		x.log.Error("publish failed",
			logx.String("event", ev.ID),
			logx.String("dest", ev.Destination),
			logx.Duration("took", took),
			logx.Err(pubErr))
		if err := x.store.SetStatus(ctx, ev.ID, event.StatusError); err != nil && !errors.Is(err, storage.ErrNotFound) {
			x.log.Error("error-status write failed", logx.String("event", ev.ID), logx.Err(err))
		}
		x.signal(eventbus.TopicPostFailed, ev, pubErr.Error(), took)
		return pubErr
	}

	x.log.Info("post published",
		logx.String("event", ev.ID),
		logx.String("dest", ev.Destination),
		logx.Duration("took", took))
	x.signal(eventbus.TopicPostPublished, ev, "", took)

	if !ev.Periodicity.Repeats() {
		if err := x.store.SetStatus(ctx, ev.ID, event.StatusCompleted); err != nil && !errors.Is(err, storage.ErrNotFound) {
			x.log.Error("completion write failed", logx.String("event", ev.ID), logx.Err(err))
			return err
		}
		x.signal(eventbus.TopicEventCompleted, ev, "", took)
	}
	return nil
}

func (x *PublishExecutor) signal(topic string, ev event.Event, errMsg string, took time.Duration) {
	if x.bus == nil {
		return
	}
	x.bus.Publish(eventbus.Event{Topic: topic, Data: eventbus.PostResult{
		EventID:     ev.ID,
		Destination: ev.Destination,
		Error:       errMsg,
		Took:        took,
	}})
}
