package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"postbot/internal/event"
	logx "postbot/pkg/logx"
)

// ErrNotFound is returned for lookups and updates against a missing row.
var ErrNotFound = errors.New("not found")

// Config configures storage.
type Config struct {
	Driver      string // "sqlite" (default) or "file"
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Chat is one known publish target (a group the bot has seen / is admin in).
type Chat struct {
	ID     int64
	Title  string
	SeenAt time.Time
}

// AuditEntry records one publish attempt. Keep it compact and schema-stable.
type AuditEntry struct {
	At          time.Time
	EventID     string
	Destination string
	OK          bool
	Error       string
	TookMS      int64
}

// Store is the persistence API used by the scheduler and the dialog layer.
//
// SetStatus exists besides UpdateEvent because the execution path must be
// able to commit a status transition without rewriting fields a concurrent
// edit may have changed.
type Store interface {
	CreateEvent(ctx context.Context, ev event.Event) error
	Event(ctx context.Context, id string) (event.Event, error)
	UpdateEvent(ctx context.Context, ev event.Event) error
	SetStatus(ctx context.Context, id string, st event.Status) error
	DeleteEvent(ctx context.Context, id string) error
	Events(ctx context.Context) ([]event.Event, error)

	UpsertChat(ctx context.Context, c Chat) error
	Chats(ctx context.Context) ([]Chat, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	PruneAudit(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
