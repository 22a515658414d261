package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"postbot/internal/event"
	"postbot/internal/eventbus"
	"postbot/internal/storage"
	logx "postbot/pkg/logx"
)

// Config controls the scheduling coordinator.
type Config struct {
	Timezone    string        // IANA TZ, e.g. "Europe/Berlin"; empty means local
	JitterMax   time.Duration // spread for colliding fire times (default 5s)
	ExecTimeout time.Duration // per-publish deadline (default 30s)
}

func (c Config) withDefaults() Config {
	if c.JitterMax <= 0 {
		c.JitterMax = 5 * time.Second
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 30 * time.Second
	}
	return c
}

// Executor performs one publication attempt and commits the resulting
// status transition to the store.
type Executor interface {
	Execute(ctx context.Context, ev event.Event) error
}

// Publisher is the outbound delivery capability.
type Publisher interface {
	Publish(ctx context.Context, destination, text string) error
}

// armedTimer is the in-memory handle for one scheduled occurrence. It is
// never persisted; the reconciler rebuilds the set from the store.
type armedTimer struct {
	nominal time.Time // computed occurrence before jitter
	fireAt  time.Time
	timer   *time.Timer
}

// Coordinator owns the mapping from event id to armed timer and enforces
// the at-most-one-timer-per-event invariant. All map mutations go through
// one mutex; per-event arm versions invalidate stale timer callbacks after
// a Cancel or re-Arm.
type Coordinator struct {
	cfg   Config
	log   logx.Logger
	store storage.Store
	exec  Executor
	bus   eventbus.Bus
	loc   *time.Location

	now func() time.Time // test hook

	mu       sync.Mutex
	timers   map[string]*armedTimer
	vers     map[string]uint64
	inflight map[string]bool
	closed   bool

	execWG sync.WaitGroup
}

func New(cfg Config, store storage.Store, exec Executor, bus eventbus.Bus, log logx.Logger) *Coordinator {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Coordinator{
		cfg:      cfg,
		log:      log,
		store:    store,
		exec:     exec,
		bus:      bus,
		now:      time.Now,
		timers:   map[string]*armedTimer{},
		vers:     map[string]uint64{},
		inflight: map[string]bool{},
	}
	c.loc = loadLocation(cfg.Timezone, log)
	return c
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Location returns the zone all occurrence math runs in.
func (c *Coordinator) Location() *time.Location { return c.loc }

// TimerInfo describes one armed timer for operator introspection.
type TimerInfo struct {
	EventID string
	FireAt  time.Time
}

// Snapshot returns the armed set ordered by fire time.
func (c *Coordinator) Snapshot() []TimerInfo {
	c.mu.Lock()
	out := make([]TimerInfo, 0, len(c.timers))
	for id, t := range c.timers {
		out = append(out, TimerInfo{EventID: id, FireAt: t.fireAt})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

// IsArmed reports whether a timer is registered or an execution is in
// flight for the event.
func (c *Coordinator) IsArmed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[id] != nil || c.inflight[id]
}
