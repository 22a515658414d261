package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "postbot/internal/transport"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig routes warnings/errors to an ops chat.
type TelegramConfig struct {
	Enabled    bool
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

// Service owns the log sinks and supports live reconfiguration.
type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // zerolog.Logger

	file *os.File

	sender   kit.Adapter
	tgQueue  chan telegramItem
	tgOnce   sync.Once
	tgCancel context.CancelFunc
	tgWG     sync.WaitGroup

	// guarded by mu
	chatID   int64
	threadID int
	limiter  *rate.Limiter
	minLevel zerolog.Level
}

type telegramItem struct {
	to  kit.ChatTarget
	msg string
}

// New creates the logging service, applies the initial config immediately,
// and returns both the Service and a root Logger.
func New(cfg Config, sender kit.Adapter) (*Service, Logger) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = consoleTimeFormat

	s := &Service{
		cfg:      cfg,
		sender:   sender,
		tgQueue:  make(chan telegramItem, 256),
		threadID: cfg.Telegram.ThreadID,
	}

	// Safe bootstrap root until Apply() builds the real sinks.
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat}
	boot := zerolog.New(cw).Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger()
	s.root.Store(boot)

	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	v := s.root.Load()
	zl, ok := v.(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return zl
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetTelegramTarget points the Telegram sink at an ops chat (and optional topic).
func (s *Service) SetTelegramTarget(chatID int64, threadID int) {
	s.mu.Lock()
	s.chatID = chatID
	if threadID != 0 {
		s.threadID = threadID
	}
	s.mu.Unlock()
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	cancel := s.tgCancel
	s.tgCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.tgWG.Wait()
	}
	if f != nil {
		_ = f.Close()
	}
	return nil
}

// Apply swaps logger outputs/levels at runtime. Safe to call concurrently.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg

	s.minLevel = parseLevel(cfg.Telegram.MinLevel, zerolog.WarnLevel)
	rps := cfg.Telegram.RatePerSec
	if rps < 1 {
		rps = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	if cfg.Telegram.ThreadID != 0 {
		s.threadID = cfg.Telegram.ThreadID
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	writers := make([]io.Writer, 0, 3)
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat})
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./postbot.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if cfg.Telegram.Enabled {
		s.tgOnce.Do(func() {
			ctx, cancel := context.WithCancel(context.Background())
			s.tgCancel = cancel
			s.tgWG.Add(1)
			go func() {
				defer s.tgWG.Done()
				s.telegramWorker(ctx)
			}()
		})
		writers = append(writers, &telegramWriter{svc: s})
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat})
	}

	lvl := parseLevel(cfg.Level, zerolog.InfoLevel)
	mw := zerolog.MultiLevelWriter(writers...)
	s.root.Store(zerolog.New(mw).Level(lvl).With().Timestamp().Logger())
}

func (s *Service) telegramWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-s.tgQueue:
			if s.sender == nil {
				continue
			}
			_, _ = s.sender.SendText(ctx, it.to, it.msg, &kit.SendOptions{DisablePreview: true})
		}
	}
}

// ---- Telegram writer (zerolog sink) ----

type telegramWriter struct{ svc *Service }

func (w *telegramWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *telegramWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	if s == nil {
		return len(p), nil
	}

	s.mu.Lock()
	chatID := s.chatID
	threadID := s.threadID
	lim := s.limiter
	min := s.minLevel
	s.mu.Unlock()

	if chatID == 0 || s.sender == nil || lim == nil {
		return len(p), nil
	}
	if level < min || !lim.Allow() {
		return len(p), nil
	}

	msg := formatTelegramLine(p)
	if msg == "" {
		return len(p), nil
	}

	// Never block core logging; drop when the queue is full.
	select {
	case s.tgQueue <- telegramItem{to: kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, msg: msg}:
	default:
	}
	return len(p), nil
}

// formatTelegramLine turns one zerolog JSON line into a compact chat message.
func formatTelegramLine(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), 3500)
	}

	lvl, _ := m["level"].(string)
	msg, _ := m["message"].(string)

	var b strings.Builder
	if lvl != "" {
		b.WriteString("[")
		b.WriteString(strings.ToUpper(lvl))
		b.WriteString("] ")
	}
	b.WriteString(msg)

	for k, v := range m {
		switch k {
		case "time", "level", "message", "caller":
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(truncate(fmt.Sprint(v), 600))
	}
	return truncate(b.String(), 3500)
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
