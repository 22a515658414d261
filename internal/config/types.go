package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Scheduler controls occurrence math and firing behavior.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage selects the persistence driver. If omitted, events live in
	// a sqlite file next to the binary.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Housekeeping controls the background sweeps (reconcile, audit prune).
	Housekeeping *HousekeepingConfig `json:"housekeeping,omitempty"`

	// Debug enables local-only diagnostics (pprof).
	Debug *DebugConfig `json:"debug,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	AdminUserIDs []int64 `json:"admin_user_ids"`
	GroupLog     string  `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls when and how posts fire.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - timezone: process-local zone
//   - jitter_max: "5s"
//   - exec_timeout: "30s"
type SchedulerConfig struct {
	// Timezone is the IANA zone all occurrence times are interpreted in,
	// e.g. "Europe/Berlin".
	Timezone string `json:"timezone,omitempty"`

	// JitterMax spreads publishes that land on the same second.
	JitterMax string `json:"jitter_max,omitempty"`

	// ExecTimeout bounds a single publish attempt.
	ExecTimeout string `json:"exec_timeout,omitempty"`
}

// StorageConfig selects the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./postbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HousekeepingConfig controls the periodic sweeps.
//
// Defaults (when fields are omitted/zero):
//   - reconcile_every: "10m"
//   - audit_retention: "720h" (30 days)
//   - prune_schedule: "0 4 * * *" (daily at 04:00)
type HousekeepingConfig struct {
	// ReconcileEvery is a Go duration string between drift sweeps.
	ReconcileEvery string `json:"reconcile_every,omitempty"`

	// AuditRetention is how long publish audit rows are kept.
	AuditRetention string `json:"audit_retention,omitempty"`

	// PruneSchedule is a cron expression for the audit prune job.
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

type DebugConfig struct {
	Pprof PprofConfig `json:"pprof"`
}

// PprofConfig controls the optional pprof HTTP listener. Bind it to
// loopback; there is no auth in front of it.
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Address              string `json:"address,omitempty"` // default 127.0.0.1:6060
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
}

// Validate rejects configs that cannot possibly run. It is also the
// reload validator: a config failing here never replaces the running one.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token: required")
	}
	if len(c.Telegram.AdminUserIDs) == 0 {
		return fmt.Errorf("telegram.admin_user_ids: at least one admin required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.jitter_max", c.Scheduler.JitterMax); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.exec_timeout", c.Scheduler.ExecTimeout); err != nil {
		return err
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	if s := c.Storage; s != nil {
		switch strings.TrimSpace(s.Driver) {
		case "", "sqlite", "file":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}
	if h := c.Housekeeping; h != nil {
		if _, err := ParseDurationField("housekeeping.reconcile_every", h.ReconcileEvery); err != nil {
			return err
		}
		if _, err := ParseDurationField("housekeeping.audit_retention", h.AuditRetention); err != nil {
			return err
		}
	}
	return nil
}
