// Package telegram adapts the chat-platform boundary to the Telegram Bot
// API via telebot long polling.
package telegram

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "postbot/internal/transport"
	logx "postbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot       *tele.Bot
	out       chan<- kit.Update
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	runMu     sync.Mutex
	running   bool

	// droppedUpdates counts updates dropped because the consumer was
	// slower than the poll loop. Logged periodically, not per update.
	droppedUpdates uint64

	menuMu   sync.Mutex
	menuHash uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Bot exposes the underlying telebot instance for log-sink wiring.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out = out
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)
	a.runMu.Unlock()

	// Periodic summary for dropped updates.
	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		flush := func() {
			if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
				a.log.Warn("incoming updates dropped (channel full)",
					logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
			}
		}
		for {
			select {
			case <-rctx.Done():
				flush()
				return
			case <-ticker.C:
				flush()
			}
		}
	}()

	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil || m.Chat == nil {
			return nil
		}
		up := kit.Update{
			Kind: kit.UpdateMessage,
			Message: &kit.Message{
				ID:           m.ID,
				ChatID:       m.Chat.ID,
				ThreadID:     m.ThreadID,
				FromID:       m.Sender.ID,
				FromUsername: m.Sender.Username,
				Text:         m.Text,
				IsGroup:      m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
				ChatTitle:    m.Chat.Title,
			},
		}
		a.push(out, up)
		return nil
	})

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil || m.Chat == nil {
			return nil
		}
		up := kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				ChatID:    m.Chat.ID,
				ThreadID:  m.ThreadID,
				FromID:    cb.Sender.ID,
				MessageID: m.ID,
				Data:      strings.TrimPrefix(cb.Data, "\f"),
			},
		}
		a.push(out, up)
		return nil
	})

	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop() called
	}()

	return nil
}

func (a *Adapter) push(out chan<- kit.Update, up kit.Update) {
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

// Stop is a best-effort graceful stop. It never blocks shutdown for long
// on the Telegram long-poll.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	if a.bot != nil {
		go a.bot.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	// Grace window keeps shutdown snappy even while getUpdates waits.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	if rm, ok := opt.ReplyMarkup.(*tele.ReplyMarkup); ok {
		sendOpt.ReplyMarkup = rm
	}

	msg, err := a.bot.Send(chat, text, sendOpt)
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	sendOpt := &tele.SendOptions{ParseMode: opt.ParseMode, DisableWebPagePreview: opt.DisablePreview}
	if rm, ok := opt.ReplyMarkup.(*tele.ReplyMarkup); ok {
		sendOpt.ReplyMarkup = rm
	}
	_, err := a.bot.Edit(m, text, sendOpt)
	return err
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// SetCommands updates Telegram's global /menu command list. Best-effort:
// a network call happens only when the list actually changes.
func (a *Adapter) SetCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	h := fnv.New64a()
	for _, c := range cmds {
		h.Write([]byte(c.Command))
		h.Write([]byte{0})
		h.Write([]byte(c.Description))
		h.Write([]byte{0})
	}
	sum := h.Sum64()
	if sum == a.menuHash {
		return nil
	}

	tcmds := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		tcmds = append(tcmds, tele.Command{Text: strings.TrimPrefix(c.Command, "/"), Description: d})
	}
	if err := a.bot.SetCommands(tcmds); err != nil {
		return err
	}

	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(tcmds)))
	return nil
}
