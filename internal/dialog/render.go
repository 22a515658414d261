package dialog

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"postbot/internal/event"
	"postbot/internal/recurrence"
	"postbot/internal/storage"
	"postbot/pkg/tgui"
)

const listPageSize = 5

func mainMenuKeyboard() *tgui.Inline {
	return tgui.NewInline().
		Row(tgui.Btn("📝 New event", tgui.Data("dlg", "new", ""))).
		Row(tgui.Btn("📋 My events", tgui.Data("ev", "groups", "")))
}

func groupKeyboard(chats []storage.Chat, scope, action string) *tgui.Inline {
	kb := tgui.NewInline()
	for _, ch := range chats {
		kb.Row(tgui.Btn("📱 "+tgui.TruncRunes(ch.Title, 28),
			tgui.Data(scope, action, strconv.FormatInt(ch.ID, 10))))
	}
	kb.Row(tgui.Btn("🔙 Menu", tgui.Data("dlg", "menu", "")))
	return kb
}

func periodKeyboard() *tgui.Inline {
	return tgui.NewInline().
		Row(
			tgui.Btn("Daily", tgui.Data("dlg", "per", string(event.Daily))),
			tgui.Btn("Weekly", tgui.Data("dlg", "per", string(event.Weekly))),
		).
		Row(
			tgui.Btn("Monthly", tgui.Data("dlg", "per", string(event.Monthly))),
			tgui.Btn("One time", tgui.Data("dlg", "per", string(event.Once))),
		).
		Row(
			tgui.Btn("Every N days", tgui.Data("dlg", "per", string(event.EveryNDays))),
			tgui.Btn("Days of week", tgui.Data("dlg", "per", string(event.Weekdays))),
		).
		Row(tgui.Btn("🔙 Cancel", tgui.Data("dlg", "cancel", "")))
}

func weekdayKeyboard(selected map[int]bool) *tgui.Inline {
	kb := tgui.NewInline()
	for i := 0; i < 7; i++ {
		mark := "⬜ "
		if selected[i] {
			mark = "✅ "
		}
		kb.Row(tgui.Btn(mark+event.WeekdayName(i), tgui.Data("dlg", "wd", strconv.Itoa(i))))
	}
	kb.Row(
		tgui.Btn("✅ Done", tgui.Data("dlg", "wd", "done")),
		tgui.Btn("🔙 Cancel", tgui.Data("dlg", "cancel", "")),
	)
	return kb
}

func confirmKeyboard() *tgui.Inline {
	return tgui.ConfirmInline(
		tgui.Btn("✅ Create", tgui.Data("dlg", "cfm", "yes")),
		tgui.Btn("❌ Discard", tgui.Data("dlg", "cfm", "no")),
	)
}

func eventListKeyboard(evs []event.Event, chatID int64, page int, hasPrev, hasNext bool) *tgui.Inline {
	kb := tgui.NewInline()
	for _, ev := range evs {
		label := fmt.Sprintf("%s %s", statusEmoji(ev.Status), tgui.TruncRunes(ev.Description, 26))
		kb.Row(tgui.Btn(label, tgui.Data("ev", "open", ev.ID)))
	}
	var nav []tele.Btn
	if hasPrev {
		nav = append(nav, tgui.Btn("⬅️", tgui.Data("ev", "page", fmt.Sprintf("%d:%d", chatID, page-1))))
	}
	if hasNext {
		nav = append(nav, tgui.Btn("➡️", tgui.Data("ev", "page", fmt.Sprintf("%d:%d", chatID, page+1))))
	}
	if len(nav) > 0 {
		kb.Row(nav...)
	}
	kb.Row(tgui.Btn("🔙 Groups", tgui.Data("ev", "groups", "")))
	return kb
}

func eventCardKeyboard(ev event.Event) *tgui.Inline {
	kb := tgui.NewInline()
	if ev.Status == event.StatusActive {
		kb.Row(
			tgui.Btn("✏️ Edit", tgui.Data("ev", "edit", ev.ID)),
			tgui.Btn("🗑 Delete", tgui.Data("ev", "del", ev.ID)),
		)
	}
	kb.Row(tgui.Btn("🔙 Back", tgui.Data("ev", "back", ev.ID)))
	return kb
}

func editMenuKeyboard(ev event.Event) *tgui.Inline {
	f := func(field, label string) tele.Btn {
		return tgui.Btn(label, tgui.Data("ev", "fld", ev.ID+":"+field))
	}
	return tgui.NewInline().
		Row(f("name", "Name"), f("period", "Periodicity")).
		Row(f("start", "Start date"), f("end", "End date")).
		Row(f("time", "Time"), f("text", "Text")).
		Row(tgui.Btn("🔙 Back", tgui.Data("ev", "open", ev.ID)))
}

func deleteConfirmKeyboard(id string) *tgui.Inline {
	return tgui.ConfirmInline(
		tgui.Btn("🗑 Yes, delete", tgui.Data("ev", "delok", id)),
		tgui.Btn("❌ Keep", tgui.Data("ev", "open", id)),
	)
}

func statusEmoji(st event.Status) string {
	switch st {
	case event.StatusActive:
		return "🟢"
	case event.StatusCompleted:
		return "✔️"
	default:
		return "⚠️"
	}
}

func endLabel(ev event.Event) string {
	if ev.EndDate.IsZero() {
		return "forever"
	}
	return ev.EndDate.String()
}

// confirmCard renders the pre-create summary.
func confirmCard(d draft) tgui.Message {
	end := "forever"
	if !d.Forever {
		end = d.End.String()
	}
	return tgui.New().
		Title("📋", "New event").
		KV("Group", d.DestTitle).
		KV("Name", d.Description).
		KV("Periodicity", d.Per.Describe()).
		KV("Start", d.Start.String()).
		KV("End", end).
		KV("Time", d.At.String()).
		Blank().
		Section("Post text").
		Line(tgui.TruncRunes(d.Text, 500)).
		Inline(confirmKeyboard()).
		Build()
}

// eventCard renders one stored event with its computed next occurrence.
func eventCard(ev event.Event, title string, now time.Time, loc *time.Location) tgui.Message {
	next := "—"
	if ev.Status == event.StatusActive {
		if at, err := recurrence.Next(ev, now, loc); err == nil {
			next = at.Format("2006-01-02 15:04")
		} else if errors.Is(err, recurrence.ErrExhausted) {
			next = "exhausted"
		}
	}
	b := tgui.New().
		Title(statusEmoji(ev.Status), ev.Description).
		KV("Group", title).
		KV("Periodicity", ev.Periodicity.Describe()).
		KV("Start", ev.StartDate.String()).
		KV("End", endLabel(ev)).
		KV("Time", ev.At.String()).
		KV("Next post", next).
		KV("Status", string(ev.Status)).
		Blank().
		Section("Post text").
		Line(tgui.TruncRunes(ev.Text, 500))
	if ev.Status != event.StatusActive {
		b.Blank().Line("This event is finished and can no longer be edited.")
	}
	return b.Inline(eventCardKeyboard(ev)).Build()
}
