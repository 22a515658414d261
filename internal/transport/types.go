package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// Update is one platform-neutral incoming event (message or button press).
type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
	ChatTitle    string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

// ChatTarget addresses an outgoing message: a chat plus an optional
// forum-topic thread. ThreadID 0 means the primary/general topic.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyMarkup    any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// BotCommand is a single command-menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// Adapter is the chat platform boundary. Start pushes updates into out
// until the context is cancelled or Stop is called.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
	SetCommands(ctx context.Context, cmds []BotCommand) error
}
