package dialog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"postbot/internal/event"
)

// parseDateInput accepts "YYYY-MM-DD" plus the "today"/"tomorrow"
// shortcuts, resolved in the scheduler's zone.
func parseDateInput(raw string, now time.Time) (event.Date, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "today":
		return event.DateOf(now), nil
	case "tomorrow":
		return event.DateOf(now).AddDays(1), nil
	}
	d, err := event.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return event.Date{}, fmt.Errorf("use YYYY-MM-DD, or \"today\"/\"tomorrow\"")
	}
	return d, nil
}

// parseEndDateInput is parseDateInput plus the "forever" keyword.
// (forever, date, err)
func parseEndDateInput(raw string, now time.Time) (bool, event.Date, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "forever" || s == "never" {
		return true, event.Date{}, nil
	}
	d, err := parseDateInput(raw, now)
	if err != nil {
		return false, event.Date{}, fmt.Errorf("use YYYY-MM-DD or \"forever\"")
	}
	return false, d, nil
}

func parseTimeInput(raw string) (event.TimeOfDay, error) {
	t, err := event.ParseTimeOfDay(strings.TrimSpace(raw))
	if err != nil {
		return event.TimeOfDay{}, fmt.Errorf("use HH:MM (24-hour), e.g. 09:30")
	}
	return t, nil
}

func parseEveryNInput(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < event.MinEveryN || n > event.MaxEveryN {
		return 0, fmt.Errorf("enter a number between %d and %d", event.MinEveryN, event.MaxEveryN)
	}
	return n, nil
}

func parseDescriptionInput(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if len([]rune(s)) > 100 {
		return "", fmt.Errorf("name too long (max 100 characters)")
	}
	return s, nil
}

func parseTextInput(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("post text cannot be empty")
	}
	if len([]rune(s)) > event.MaxTextLen {
		return "", fmt.Errorf("post text too long (max %d characters)", event.MaxTextLen)
	}
	return s, nil
}
