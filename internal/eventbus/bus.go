// Package eventbus is a small in-memory fanout used to decouple the
// execution path from chat-facing announcements.
package eventbus

import (
	"sync"
	"time"
)

// Topics published by the scheduler/executor.
const (
	TopicPostPublished  = "post.published"
	TopicPostFailed     = "post.failed"
	TopicEventCompleted = "event.completed"
)

// Event is a lightweight in-memory signal.
//
// Contract:
//   - Publish never blocks.
//   - Slow subscribers drop events (bounded backpressure).
type Event struct {
	Topic string
	Time  time.Time
	Data  any
}

// PostResult is the payload for post.published / post.failed.
type PostResult struct {
	EventID     string
	Destination string
	Error       string
	Took        time.Duration
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *subscriber) deliver(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		// Slow subscriber; drop.
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(e)
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = sub
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.close()
	}
	return sub.ch, unsub
}
