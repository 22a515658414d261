// Package recurrence computes the next occurrence for an event. It is pure:
// no I/O, deterministic for a given (event, now, location) triple.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"postbot/internal/event"
)

// ErrExhausted means no further occurrence exists; the event is done and
// should transition to completed. This is a normal lifecycle signal, not a
// failure.
var ErrExhausted = errors.New("recurrence exhausted")

// ErrNoCandidate means the weekday scan found nothing inside its window.
// Unreachable for a validated (non-empty) weekday set; callers treat it as
// a defect and mark the event errored rather than looping.
var ErrNoCandidate = errors.New("no candidate in scan window")

// weekdayScanWindow covers any non-empty weekday subset within two weeks.
const weekdayScanWindow = 14

// Next returns the earliest fire time strictly after now that is compatible
// with the event's periodicity and end bound.
//
// The comparison is strict so an occurrence equal to now is never returned
// twice: re-arming immediately after a fire always makes forward progress.
// All arithmetic is calendar-based in loc, so repeating events keep their
// wall-clock time across DST shifts (a daily 09:00 event fires at 09:00
// local even when a day is 23 or 25 hours long).
func Next(ev event.Event, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	switch ev.Periodicity.Kind {
	case event.Once:
		at := ev.StartDate.At(ev.At, loc)
		if !at.After(now) {
			return time.Time{}, ErrExhausted
		}
		return at, nil

	case event.Daily:
		return nextFixedStep(ev, now, loc, 1)
	case event.Weekly:
		return nextFixedStep(ev, now, loc, 7)
	case event.EveryNDays:
		return nextFixedStep(ev, now, loc, ev.Periodicity.EveryN)

	case event.Monthly:
		return nextMonthly(ev, now, loc)

	case event.Weekdays:
		return nextWeekday(ev, now, loc)

	default:
		return time.Time{}, fmt.Errorf("unknown periodicity kind %q", ev.Periodicity.Kind)
	}
}

// nextFixedStep handles daily/weekly/every-N rules: occurrences fall on
// startDate + k*step days. Rather than walking day ranges one step at a
// time, it jumps close to now and then advances at most twice.
func nextFixedStep(ev event.Event, now time.Time, loc *time.Location, step int) (time.Time, error) {
	if step <= 0 {
		return time.Time{}, fmt.Errorf("invalid step %d", step)
	}

	d := ev.StartDate
	if elapsed := daysBetween(d, event.DateOf(now)); elapsed > step {
		d = d.AddDays((elapsed / step) * step)
	}
	for !d.At(ev.At, loc).After(now) {
		d = d.AddDays(step)
	}
	return boundedCandidate(ev, d, loc)
}

func nextMonthly(ev event.Event, now time.Time, loc *time.Location) (time.Time, error) {
	// Month advance always starts from the original start date so the
	// day-of-month anchor survives clamping (Jan 31 -> Feb 28 -> Mar 31
	// would drift if we advanced the clamped date instead).
	d := ev.StartDate
	anchor := ev.StartDate.Day
	for !d.At(ev.At, loc).After(now) {
		d = d.AddMonth()
		if d.Day < anchor && daysInMonth(d) >= anchor {
			// Re-anchor when the month is long enough again (Feb 28 -> Mar 31).
			d = event.NewDate(d.Year, d.Month, anchor)
		}
	}
	return boundedCandidate(ev, d, loc)
}

func nextWeekday(ev event.Event, now time.Time, loc *time.Location) (time.Time, error) {
	from := event.DateOf(now)
	if ev.StartDate.After(from) {
		from = ev.StartDate
	}
	for i := 0; i < weekdayScanWindow; i++ {
		d := from.AddDays(i)
		if !ev.Periodicity.Matches(d.Weekday()) {
			continue
		}
		if d.At(ev.At, loc).After(now) {
			return boundedCandidate(ev, d, loc)
		}
	}
	return time.Time{}, ErrNoCandidate
}

// boundedCandidate applies the end bound: no occurrence whose date is
// strictly after the end date may fire.
func boundedCandidate(ev event.Event, d event.Date, loc *time.Location) (time.Time, error) {
	if !ev.Forever() && d.After(ev.EndDate) {
		return time.Time{}, ErrExhausted
	}
	return d.At(ev.At, loc), nil
}

func daysBetween(a, b event.Date) int {
	ta := time.Date(a.Year, a.Month, a.Day, 0, 0, 0, 0, time.UTC)
	tb := time.Date(b.Year, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
	return int(tb.Sub(ta) / (24 * time.Hour))
}

func daysInMonth(d event.Date) int {
	return time.Date(d.Year, d.Month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}
