// Package router dispatches incoming chat updates: group messages feed
// the known-groups registry, private messages and callbacks from admins
// drive the dialog layer, everything else is dropped.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"postbot/internal/dialog"
	"postbot/internal/event"
	"postbot/internal/scheduler"
	"postbot/internal/storage"
	kit "postbot/internal/transport"
	logx "postbot/pkg/logx"
	"postbot/pkg/tgui"
)

type Router struct {
	store storage.Store
	dlg   *dialog.Service
	coord *scheduler.Coordinator
	ad    kit.Adapter
	log   logx.Logger

	mu     sync.RWMutex
	admins map[int64]bool
}

func New(store storage.Store, dlg *dialog.Service, coord *scheduler.Coordinator, ad kit.Adapter, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		store:  store,
		dlg:    dlg,
		coord:  coord,
		ad:     ad,
		log:    log,
		admins: map[int64]bool{},
	}
}

// SetAdmins replaces the allow-list. Called at startup and on config
// reload.
func (r *Router) SetAdmins(ids []int64) {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	r.mu.Lock()
	r.admins = m
	r.mu.Unlock()
}

func (r *Router) isAdmin(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins[id]
}

// Commands returns the command menu shown in private chats.
func Commands() []kit.BotCommand {
	return []kit.BotCommand{
		{Command: "start", Description: "Main menu"},
		{Command: "help", Description: "What this bot does"},
		{Command: "status", Description: "Scheduler overview"},
		{Command: "cancel", Description: "Abort the current action"},
	}
}

// Run consumes updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, in <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-in:
			if !ok {
				return
			}
			r.dispatch(ctx, up)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, up kit.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in update handler", logx.Any("panic", rec))
		}
	}()

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return
		}
		r.handleMessage(ctx, up.Message)
	case kit.UpdateCallback:
		if up.Callback == nil {
			return
		}
		r.handleCallback(ctx, up.Callback)
	}
}

func (r *Router) handleMessage(ctx context.Context, m *kit.Message) {
	// Group traffic only maintains the registry the wizard picks targets
	// from; the bot never converses in groups.
	if m.IsGroup {
		ch := storage.Chat{ID: m.ChatID, Title: m.ChatTitle, SeenAt: time.Now()}
		if err := r.store.UpsertChat(ctx, ch); err != nil {
			r.log.Warn("chat upsert failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		}
		return
	}

	if !r.isAdmin(m.FromID) {
		r.log.Debug("message from non-admin ignored",
			logx.Int64("user", m.FromID),
			logx.String("username", m.FromUsername))
		return
	}

	if cmd, ok := command(m.Text); ok {
		r.handleCommand(ctx, m, cmd)
		return
	}
	r.dlg.HandleMessage(ctx, m)
}

func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) {
	if !r.isAdmin(cb.FromID) {
		_ = r.ad.AnswerCallback(ctx, cb.ID, "Not allowed")
		return
	}
	r.dlg.HandleCallback(ctx, cb)
}

func (r *Router) handleCommand(ctx context.Context, m *kit.Message, cmd string) {
	switch cmd {
	case "start":
		r.dlg.ShowMenu(ctx, m.ChatID)
	case "help":
		r.sendHelp(ctx, m.ChatID)
	case "cancel":
		r.dlg.CancelFlow(ctx, m.FromID, m.ChatID)
	case "status":
		r.sendStatus(ctx, m.ChatID)
	default:
		r.send(ctx, m.ChatID, tgui.New().Line("Unknown command. Try /help.").Build())
	}
}

func (r *Router) sendHelp(ctx context.Context, chatID int64) {
	msg := tgui.New().
		Title("🤖", "Publication scheduler").
		Blank().
		Section("What I do").
		Bullets(
			"Create scheduled posts for your groups",
			"Repeat them daily, weekly, monthly, every N days, or on chosen weekdays",
			"Browse, edit, and delete existing events",
		).
		Blank().
		Section("Commands").
		Bullets(
			"/start — main menu",
			"/status — scheduler overview",
			"/cancel — abort the current action",
		).
		Blank().
		Line("Add me to a group with permission to post; the group then shows up when you create an event.").
		Build()
	r.send(ctx, chatID, msg)
}

func (r *Router) sendStatus(ctx context.Context, chatID int64) {
	evs, err := r.store.Events(ctx)
	if err != nil {
		r.log.Error("status scan failed", logx.Err(err))
		r.send(ctx, chatID, tgui.New().Line("❌ Could not read the store.").Build())
		return
	}

	var active, completed, failed int
	for _, ev := range evs {
		switch ev.Status {
		case event.StatusActive:
			active++
		case event.StatusCompleted:
			completed++
		default:
			failed++
		}
	}

	b := tgui.New().
		Title("📊", "Scheduler status").
		KV("Active", fmt.Sprintf("%d", active)).
		KV("Completed", fmt.Sprintf("%d", completed)).
		KV("Error", fmt.Sprintf("%d", failed))

	timers := r.coord.Snapshot()
	b.KV("Armed timers", fmt.Sprintf("%d", len(timers)))
	if len(timers) > 0 {
		b.Blank().Section("Next fires")
		max := len(timers)
		if max > 5 {
			max = 5
		}
		for _, ti := range timers[:max] {
			b.Line(ti.FireAt.In(r.coord.Location()).Format("2006-01-02 15:04") + " — " + ti.EventID)
		}
	}
	r.send(ctx, chatID, b.Build())
}

func (r *Router) send(ctx context.Context, chatID int64, m tgui.Message) {
	if _, err := m.Send(ctx, r.ad, kit.ChatTarget{ChatID: chatID}); err != nil {
		r.log.Warn("reply send failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

// command extracts "start" from "/start" or "/start@PostBot". Non-command
// text returns ok=false.
func command(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "/") {
		return "", false
	}
	t = strings.TrimPrefix(t, "/")
	if i := strings.IndexAny(t, " \t"); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexByte(t, '@'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(t), t != ""
}
