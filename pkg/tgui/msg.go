package tgui

import (
	"context"
	"strings"

	kit "postbot/internal/transport"

	tele "gopkg.in/telebot.v4"
)

// Message is a rendered UI payload: text + send options. Build it once and
// send/edit without repeating ParseMode/preview/markup boilerplate.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

// Send sends the Message via the provided adapter.
func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return ad.SendText(ctx, to, m.Text, m.Opt)
}

// Edit edits the message referred by ref in place.
func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	return ad.EditText(ctx, ref, m.Text, m.Opt)
}

// Builder assembles a Telegram message line by line.
// Default: ParseMode=HTML, DisablePreview=true.
type Builder struct {
	parseMode      string
	disablePreview bool
	rm             *tele.ReplyMarkup
	lines          []string
}

// New creates a builder with sensible defaults for Telegram.
func New() *Builder {
	return &Builder{parseMode: "HTML", disablePreview: true}
}

// ParseMode overrides Telegram parse mode ("HTML", "Markdown", or empty).
func (b *Builder) ParseMode(mode string) *Builder {
	b.parseMode = strings.TrimSpace(mode)
	return b
}

// Inline attaches an inline keyboard.
func (b *Builder) Inline(kb *Inline) *Builder {
	if kb == nil {
		b.rm = nil
		return b
	}
	b.rm = kb.Markup()
	return b
}

// Markup attaches a raw reply markup.
func (b *Builder) Markup(rm *tele.ReplyMarkup) *Builder {
	b.rm = rm
	return b
}

func (b *Builder) html() bool { return strings.EqualFold(b.parseMode, "HTML") }

// Title adds a bold title line. Emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e := strings.TrimSpace(emoji)
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if b.html() {
		t = B(t).String()
		if e != "" {
			t = Esc(e).String() + " " + t
		}
		b.lines = append(b.lines, t)
		return b
	}
	if e != "" {
		t = e + " " + t
	}
	b.lines = append(b.lines, t)
	return b
}

// Section adds a bold section header.
func (b *Builder) Section(title string) *Builder {
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if b.html() {
		t = B(t).String()
	}
	b.lines = append(b.lines, t)
	return b
}

// Line adds a single line, escaping when ParseMode is HTML.
func (b *Builder) Line(s string) *Builder {
	if strings.TrimSpace(s) == "" {
		b.lines = append(b.lines, "")
		return b
	}
	if b.html() {
		s = Esc(s).String()
	}
	b.lines = append(b.lines, s)
	return b
}

// RawLine appends a line without escaping.
func (b *Builder) RawLine(s string) *Builder {
	b.lines = append(b.lines, s)
	return b
}

// Blank inserts an empty line.
func (b *Builder) Blank() *Builder { return b.Line("") }

// Bullets adds bullet lines, skipping blanks.
func (b *Builder) Bullets(items ...string) *Builder {
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		b.Line("• " + it)
	}
	return b
}

// KV adds a "key: value" row with a bold key.
func (b *Builder) KV(key, value string) *Builder {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return b
	}
	if b.html() {
		b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(value).String())
		return b
	}
	if value == "" {
		b.lines = append(b.lines, "• "+key)
	} else {
		b.lines = append(b.lines, "• "+key+": "+value)
	}
	return b
}

// Pre adds a preformatted block.
func (b *Builder) Pre(code string) *Builder {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return b
	}
	if b.html() {
		b.lines = append(b.lines, Pre(code).String())
		return b
	}
	b.lines = append(b.lines, code)
	return b
}

// Build produces a ready-to-send Message.
func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	opt := &kit.SendOptions{ParseMode: b.parseMode, DisablePreview: b.disablePreview}
	if b.rm != nil {
		opt.ReplyMarkup = b.rm
	}
	return Message{Text: text, Opt: opt}
}
