// Package event defines the scheduling domain model: the Event record, its
// periodicity rules, and the calendar types the recurrence math works on.
package event

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTextLen bounds the message body (Telegram's message limit).
const MaxTextLen = 4096

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further occurrence may be armed.
// Transitions are monotone: Active may move to Completed or Error; both
// terminal states are dead ends.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Event is the unit of scheduling: one recurring or one-time publication
// request created through the dialog layer.
type Event struct {
	ID          string
	Destination string // "<chatID>" or "<chatID>:<threadID>", opaque to the core
	Description string
	StartDate   Date
	EndDate     Date // zero value means "forever"
	At          TimeOfDay
	Periodicity Periodicity
	Text        string
	Status      Status
}

// Forever reports whether the event has no end bound.
func (e Event) Forever() bool { return e.EndDate.IsZero() }

// NewID generates a short event identifier (uuid prefix, 8 hex chars).
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Validate checks the invariants the dialog boundary must guarantee before
// an event is persisted. Stored rows are assumed to have passed it.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("event id is empty")
	}
	if _, _, err := ParseDestination(e.Destination); err != nil {
		return err
	}
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("event text is empty")
	}
	if utf8.RuneCountInString(e.Text) > MaxTextLen {
		return fmt.Errorf("event text exceeds %d characters", MaxTextLen)
	}
	if e.StartDate.IsZero() {
		return fmt.Errorf("start date is not set")
	}
	if !e.Forever() && !e.EndDate.After(e.StartDate) {
		return fmt.Errorf("end date %s must be after start date %s", e.EndDate, e.StartDate)
	}
	if err := e.Periodicity.Validate(); err != nil {
		return err
	}
	switch e.Status {
	case StatusActive, StatusCompleted, StatusError:
	default:
		return fmt.Errorf("unknown status %q", e.Status)
	}
	return nil
}

// FormatDestination encodes a chat id plus optional topic thread.
func FormatDestination(chatID int64, threadID int) string {
	if threadID == 0 {
		return strconv.FormatInt(chatID, 10)
	}
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(threadID)
}

// ParseDestination splits a destination into chat id and thread id
// (0 when the message goes to the primary/general topic).
func ParseDestination(dest string) (chatID int64, threadID int, err error) {
	s := strings.TrimSpace(dest)
	if s == "" {
		return 0, 0, fmt.Errorf("destination is empty")
	}
	head, tail, hasThread := strings.Cut(s, ":")
	chatID, err = strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad destination chat id %q: %w", head, err)
	}
	if hasThread {
		threadID, err = strconv.Atoi(tail)
		if err != nil {
			return 0, 0, fmt.Errorf("bad destination thread id %q: %w", tail, err)
		}
	}
	return chatID, threadID, nil
}
