package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind enumerates the closed set of repetition rules. This is deliberately
// not a cron engine; each kind has fixed semantics.
type Kind string

const (
	Once       Kind = "once"
	Daily      Kind = "daily"
	Weekly     Kind = "weekly"
	Monthly    Kind = "monthly"
	EveryNDays Kind = "every_n_days"
	Weekdays   Kind = "weekdays"
)

const (
	// MinEveryN and MaxEveryN bound the EveryNDays interval.
	MinEveryN = 1
	MaxEveryN = 365
)

// Periodicity is the tagged union governing how occurrences repeat.
// EveryN is meaningful only for EveryNDays; Days only for Weekdays.
type Periodicity struct {
	Kind   Kind
	EveryN int
	// Days uses Monday=0 .. Sunday=6 indexing (matches the stored encoding).
	Days []int
}

func (p Periodicity) Repeats() bool { return p.Kind != Once }

func (p Periodicity) Validate() error {
	switch p.Kind {
	case Once, Daily, Weekly, Monthly:
		return nil
	case EveryNDays:
		if p.EveryN < MinEveryN || p.EveryN > MaxEveryN {
			return fmt.Errorf("interval must be between %d and %d days, got %d", MinEveryN, MaxEveryN, p.EveryN)
		}
		return nil
	case Weekdays:
		if len(p.Days) == 0 {
			return fmt.Errorf("weekday set must not be empty")
		}
		for _, d := range p.Days {
			if d < 0 || d > 6 {
				return fmt.Errorf("weekday index out of range: %d", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown periodicity kind %q", p.Kind)
	}
}

// Matches reports whether wd is in the Weekdays set.
func (p Periodicity) Matches(wd time.Weekday) bool {
	for _, d := range p.Days {
		if mondayIndex(wd) == d {
			return true
		}
	}
	return false
}

// mondayIndex converts Go's Sunday=0 weekday to the stored Monday=0 indexing.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayName returns the short name for a Monday=0 index.
func WeekdayName(i int) string {
	if i < 0 || i > 6 {
		return "?"
	}
	return weekdayNames[i]
}

// Describe renders the rule for user-facing cards and lists.
func (p Periodicity) Describe() string {
	switch p.Kind {
	case Once:
		return "one-time"
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case EveryNDays:
		return fmt.Sprintf("every %d days", p.EveryN)
	case Weekdays:
		days := append([]int(nil), p.Days...)
		sort.Ints(days)
		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, WeekdayName(d))
		}
		return "on " + strings.Join(names, ", ")
	default:
		return string(p.Kind)
	}
}

// EncodeValue serializes the kind-specific payload for the store: the
// interval as a bare integer, the weekday set as a JSON list, else empty.
func (p Periodicity) EncodeValue() string {
	switch p.Kind {
	case EveryNDays:
		return strconv.Itoa(p.EveryN)
	case Weekdays:
		b, _ := json.Marshal(p.Days)
		return string(b)
	default:
		return ""
	}
}

// DecodePeriodicity parses the stored (kind, value) pair back into the
// tagged union, failing fast on malformed rows.
func DecodePeriodicity(kind, value string) (Periodicity, error) {
	p := Periodicity{Kind: Kind(kind)}
	switch p.Kind {
	case Once, Daily, Weekly, Monthly:
	case EveryNDays:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Periodicity{}, fmt.Errorf("bad interval value %q: %w", value, err)
		}
		p.EveryN = n
	case Weekdays:
		if err := json.Unmarshal([]byte(value), &p.Days); err != nil {
			return Periodicity{}, fmt.Errorf("bad weekday set %q: %w", value, err)
		}
	default:
		return Periodicity{}, fmt.Errorf("unknown periodicity kind %q", kind)
	}
	if err := p.Validate(); err != nil {
		return Periodicity{}, err
	}
	return p, nil
}
