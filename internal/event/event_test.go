package event

import (
	"strings"
	"testing"
	"time"
)

func validEvent() Event {
	return Event{
		ID:          "abc12345",
		Destination: "-1001234567890",
		Description: "standup reminder",
		StartDate:   NewDate(2026, time.March, 1),
		At:          TimeOfDay{Hour: 9},
		Periodicity: Periodicity{Kind: Daily},
		Text:        "Daily standup in 15 minutes",
		Status:      StatusActive,
	}
}

func TestValidateAcceptsWellFormedEvent(t *testing.T) {
	t.Parallel()
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"empty id", func(e *Event) { e.ID = " " }},
		{"empty destination", func(e *Event) { e.Destination = "" }},
		{"bad destination", func(e *Event) { e.Destination = "not-a-chat" }},
		{"empty text", func(e *Event) { e.Text = "  " }},
		{"oversized text", func(e *Event) { e.Text = strings.Repeat("x", MaxTextLen+1) }},
		{"no start date", func(e *Event) { e.StartDate = Date{} }},
		{"end before start", func(e *Event) { e.EndDate = NewDate(2026, time.February, 1) }},
		{"end equals start", func(e *Event) { e.EndDate = e.StartDate }},
		{"zero interval", func(e *Event) { e.Periodicity = Periodicity{Kind: EveryNDays} }},
		{"oversized interval", func(e *Event) { e.Periodicity = Periodicity{Kind: EveryNDays, EveryN: 366} }},
		{"empty weekday set", func(e *Event) { e.Periodicity = Periodicity{Kind: Weekdays} }},
		{"weekday out of range", func(e *Event) { e.Periodicity = Periodicity{Kind: Weekdays, Days: []int{7}} }},
		{"unknown status", func(e *Event) { e.Status = "paused" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := validEvent()
			tt.mutate(&ev)
			if err := ev.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dest     string
		chatID   int64
		threadID int
	}{
		{"-1001234567890", -1001234567890, 0},
		{"-1001234567890:42", -1001234567890, 42},
		{"12345", 12345, 0},
	}
	for _, tt := range tests {
		chatID, threadID, err := ParseDestination(tt.dest)
		if err != nil {
			t.Fatalf("ParseDestination(%q): %v", tt.dest, err)
		}
		if chatID != tt.chatID || threadID != tt.threadID {
			t.Fatalf("ParseDestination(%q) = (%d,%d)", tt.dest, chatID, threadID)
		}
		if got := FormatDestination(chatID, threadID); got != tt.dest {
			t.Fatalf("FormatDestination = %q, want %q", got, tt.dest)
		}
	}
}

func TestPeriodicityCodecRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []Periodicity{
		{Kind: Once},
		{Kind: Daily},
		{Kind: Weekly},
		{Kind: Monthly},
		{Kind: EveryNDays, EveryN: 10},
		{Kind: Weekdays, Days: []int{0, 2, 4}},
	}
	for _, p := range tests {
		got, err := DecodePeriodicity(string(p.Kind), p.EncodeValue())
		if err != nil {
			t.Fatalf("DecodePeriodicity(%s): %v", p.Kind, err)
		}
		if got.Kind != p.Kind || got.EveryN != p.EveryN || len(got.Days) != len(p.Days) {
			t.Fatalf("round trip mismatch: %+v vs %+v", got, p)
		}
	}
}

func TestDecodePeriodicityRejectsBadRows(t *testing.T) {
	t.Parallel()
	bad := [][2]string{
		{"hourly", ""},
		{"every_n_days", ""},
		{"every_n_days", "zero"},
		{"every_n_days", "0"},
		{"weekdays", ""},
		{"weekdays", "[]"},
		{"weekdays", "[9]"},
	}
	for _, kv := range bad {
		if _, err := DecodePeriodicity(kv[0], kv[1]); err == nil {
			t.Fatalf("DecodePeriodicity(%q,%q): expected error", kv[0], kv[1])
		}
	}
}

func TestNewIDShape(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 8 {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestDescribePeriodicity(t *testing.T) {
	t.Parallel()
	p := Periodicity{Kind: Weekdays, Days: []int{4, 0}}
	if got := p.Describe(); got != "on Mon, Fri" {
		t.Fatalf("Describe() = %q", got)
	}
	if got := (Periodicity{Kind: EveryNDays, EveryN: 3}).Describe(); got != "every 3 days" {
		t.Fatalf("Describe() = %q", got)
	}
}
