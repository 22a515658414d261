// Package app assembles the bot: config, logging, storage, transport,
// scheduling, dialog, and housekeeping, with live config reload.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"postbot/internal/config"
	"postbot/internal/dialog"
	"postbot/internal/event"
	"postbot/internal/eventbus"
	"postbot/internal/housekeeping"
	"postbot/internal/router"
	"postbot/internal/scheduler"
	"postbot/internal/storage"
	kit "postbot/internal/transport"
	"postbot/internal/transport/telegram"
	logx "postbot/pkg/logx"
)

const updateQueueSize = 256

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store   storage.Store
	adapter *telegram.Adapter
	bus     eventbus.Bus
	coord   *scheduler.Coordinator
	dlg     *dialog.Service
	router  *router.Router
	hk      *housekeeping.Service
	pprof   *pprofServer

	updates chan kit.Update
	cfgSub  chan *config.Config
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	mgr.SetValidator(func(_ context.Context, cfg *config.Config) error { return cfg.Validate() })
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	// The adapter exists before the log service (the Telegram log sink
	// sends through it), so it gets a console-only logger.
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging), adapter)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(storageConfig(cfg.Storage), log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	schedCfg, err := schedulerConfig(cfg.Scheduler)
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	exec := scheduler.NewExecutor(store, newTelegramPublisher(adapter), bus, log.With(logx.String("comp", "executor")))
	coord := scheduler.New(schedCfg, store, exec, bus, log.With(logx.String("comp", "scheduler")))
	dlg := dialog.New(store, coord, adapter, log.With(logx.String("comp", "dialog")))
	rt := router.New(store, dlg, coord, adapter, log.With(logx.String("comp", "router")))
	rt.SetAdmins(cfg.Telegram.AdminUserIDs)

	hkCfg, err := housekeepingConfig(cfg.Housekeeping)
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}
	hk := housekeeping.New(hkCfg, store, coord, log.With(logx.String("comp", "housekeeping")))

	return &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		store:   store,
		adapter: adapter,
		bus:     bus,
		coord:   coord,
		dlg:     dlg,
		router:  rt,
		hk:      hk,
		pprof:   newPprofServer(log),
		updates: make(chan kit.Update, updateQueueSize),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	cfg := a.cfgMgr.Get()
	if dest := strings.TrimSpace(cfg.Telegram.GroupLog); dest != "" {
		if chatID, threadID, err := event.ParseDestination(dest); err == nil {
			a.logSvc.SetTelegramTarget(chatID, threadID)
		} else {
			a.log.Warn("invalid telegram.group_log; log sink disabled", logx.String("dest", dest))
		}
	}

	// Rebuild every timer from the store before any dialog mutation can
	// land, so edited/created events never race a missing timer.
	if err := a.coord.ReconcileAll(runCtx); err != nil {
		a.log.Error("startup reconcile failed; sweep will retry", logx.Err(err))
	}

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("start telegram adapter: %w", err)
	}
	if err := a.adapter.SetCommands(runCtx, router.Commands()); err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	if err := a.hk.Start(runCtx, a.coord.Location()); err != nil {
		a.log.Error("housekeeping start failed", logx.Err(err))
	}

	a.pprof.Apply(runCtx, pprofConfig(cfg.Debug))
	a.watchBus(runCtx)
	a.watchConfig(runCtx)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.watchdog(runCtx)

	a.log.Info("bot started",
		logx.Int("admins", len(cfg.Telegram.AdminUserIDs)),
		logx.String("timezone", a.coord.Location().String()))
	return nil
}

// watchdog feeds the systemd watchdog when the unit enables one.
func (a *App) watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

// watchBus forwards execution outcomes into the log stream; with the
// Telegram log sink enabled they surface in the ops chat.
func (a *App) watchBus(ctx context.Context) {
	events, unsub := a.bus.Subscribe(64)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				res, _ := ev.Data.(eventbus.PostResult)
				switch ev.Topic {
				case eventbus.TopicPostFailed:
					a.log.Error("publication failed",
						logx.String("event", res.EventID),
						logx.String("dest", res.Destination),
						logx.String("cause", res.Error))
				case eventbus.TopicEventCompleted:
					a.log.Info("event completed", logx.String("event", res.EventID))
				default:
					a.log.Debug("publication delivered",
						logx.String("event", res.EventID),
						logx.Duration("took", res.Took))
				}
			}
		}
	}()
}

// watchConfig applies hot-reloadable settings: log sinks, admin list,
// ops chat. Scheduler timezone and storage changes need a restart.
func (a *App) watchConfig(ctx context.Context) {
	a.cfgSub = a.cfgMgr.Subscribe(1)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(ctx)
	}()
	go func() {
		defer a.wg.Done()
		prev := a.cfgMgr.Get()
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-a.cfgSub:
				if !ok {
					return
				}
				changed, attrs := config.SummarizeChange(prev, cfg)
				prev = cfg

				a.logSvc.Apply(logxConfig(cfg.Logging))
				a.router.SetAdmins(cfg.Telegram.AdminUserIDs)
				a.pprof.Apply(ctx, pprofConfig(cfg.Debug))
				if dest := strings.TrimSpace(cfg.Telegram.GroupLog); dest != "" {
					if chatID, threadID, err := event.ParseDestination(dest); err == nil {
						a.logSvc.SetTelegramTarget(chatID, threadID)
					}
				}
				a.log.Info("config applied", append(attrs, logx.Any("sections", changed))...)
			}
		}
	}()
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	a.pprof.Stop(ctx)
	if err := a.hk.Stop(ctx); err != nil {
		a.log.Warn("housekeeping stop", logx.Err(err))
	}
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}
	if err := a.coord.Close(ctx); err != nil {
		a.log.Warn("scheduler close", logx.Err(err))
	}
	a.cfgMgr.Unsubscribe(a.cfgSub)
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}
	a.log.Info("bye")
	return a.logSvc.Close()
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Telegram.Enabled,
			ThreadID:   c.Telegram.ThreadID,
			MinLevel:   c.Telegram.MinLevel,
			RatePerSec: c.Telegram.RatePerSec,
		},
	}
}

func storageConfig(c *config.StorageConfig) storage.Config {
	if c == nil {
		return storage.Config{}
	}
	busy, _ := config.ParseDurationField("storage.busy_timeout", c.BusyTimeout)
	return storage.Config{Driver: c.Driver, Path: c.Path, BusyTimeout: busy}
}

func schedulerConfig(c config.SchedulerConfig) (scheduler.Config, error) {
	jitter, err := config.ParseDurationField("scheduler.jitter_max", c.JitterMax)
	if err != nil {
		return scheduler.Config{}, err
	}
	execTimeout, err := config.ParseDurationField("scheduler.exec_timeout", c.ExecTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Timezone:    c.Timezone,
		JitterMax:   jitter,
		ExecTimeout: execTimeout,
	}, nil
}

func housekeepingConfig(c *config.HousekeepingConfig) (housekeeping.Config, error) {
	if c == nil {
		return housekeeping.Config{}, nil
	}
	every, err := config.ParseDurationField("housekeeping.reconcile_every", c.ReconcileEvery)
	if err != nil {
		return housekeeping.Config{}, err
	}
	retention, err := config.ParseDurationField("housekeeping.audit_retention", c.AuditRetention)
	if err != nil {
		return housekeeping.Config{}, err
	}
	return housekeeping.Config{
		ReconcileEvery: every,
		AuditRetention: retention,
		PruneSchedule:  strings.TrimSpace(c.PruneSchedule),
	}, nil
}
