package config

import (
	"reflect"
	"sort"
	"strings"

	logx "postbot/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (the bot token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Telegram (never log token)
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.AdminUserIDs, newCfg.Telegram.AdminUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.admin_count", len(newCfg.Telegram.AdminUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Scheduler
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.jitter_max", strings.TrimSpace(newCfg.Scheduler.JitterMax)),
			logx.String("scheduler.exec_timeout", strings.TrimSpace(newCfg.Scheduler.ExecTimeout)),
		)
	}

	// Storage. Nil means default driver; compare normalized views.
	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if !reflect.DeepEqual(oldS, newS) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	// Housekeeping
	var oldH, newH HousekeepingConfig
	if oldCfg.Housekeeping != nil {
		oldH = *oldCfg.Housekeeping
	}
	if newCfg.Housekeeping != nil {
		newH = *newCfg.Housekeeping
	}
	if !reflect.DeepEqual(oldH, newH) {
		changed = append(changed, "housekeeping")
		attrs = append(attrs,
			logx.String("housekeeping.reconcile_every", strings.TrimSpace(newH.ReconcileEvery)),
			logx.String("housekeeping.audit_retention", strings.TrimSpace(newH.AuditRetention)),
			logx.String("housekeeping.prune_schedule", strings.TrimSpace(newH.PruneSchedule)),
		)
	}

	// Debug
	var oldD, newD DebugConfig
	if oldCfg.Debug != nil {
		oldD = *oldCfg.Debug
	}
	if newCfg.Debug != nil {
		newD = *newCfg.Debug
	}
	if !reflect.DeepEqual(oldD, newD) {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.pprof_enabled", newD.Pprof.Enabled),
			logx.String("debug.pprof_address", strings.TrimSpace(newD.Pprof.Address)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
