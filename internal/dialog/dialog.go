// Package dialog implements the admin conversation: an inline-keyboard
// wizard for creating publication events and a management surface for
// browsing, editing, and deleting them. All state lives in per-user
// sessions; every accepted mutation is written to the store and pushed
// through the scheduler before the user sees a confirmation.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"postbot/internal/event"
	"postbot/internal/recurrence"
	"postbot/internal/storage"
	kit "postbot/internal/transport"
	logx "postbot/pkg/logx"
	"postbot/pkg/tgui"
)

// Scheduler is the slice of the coordinator the dialog needs: re-arming
// after edits, cancelling before deletes.
type Scheduler interface {
	Arm(ctx context.Context, ev event.Event) error
	Cancel(id string)
	Location() *time.Location
}

type Service struct {
	store storage.Store
	sched Scheduler
	ad    kit.Adapter
	log   logx.Logger

	now func() time.Time

	sessions *sessions
}

func New(store storage.Store, sched Scheduler, ad kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:    store,
		sched:    sched,
		ad:       ad,
		log:      log,
		now:      time.Now,
		sessions: newSessions(),
	}
}

// ShowMenu renders the main menu. Used by /start and by flow exits.
func (s *Service) ShowMenu(ctx context.Context, chatID int64) {
	msg := tgui.New().
		Title("🤖", "Publication scheduler").
		Line("I publish scheduled posts to your groups.").
		Blank().
		Line("Pick an action:").
		Inline(mainMenuKeyboard()).
		Build()
	s.send(ctx, chatID, msg)
}

// CancelFlow aborts any in-progress wizard for the user (/cancel).
func (s *Service) CancelFlow(ctx context.Context, userID, chatID int64) {
	s.sessions.Reset(userID)
	s.send(ctx, chatID, tgui.New().Line("❌ Action cancelled.").Inline(mainMenuKeyboard()).Build())
}

// HandleMessage consumes a private text message according to the user's
// wizard step. Group messages never reach here.
func (s *Service) HandleMessage(ctx context.Context, m *kit.Message) {
	ses := s.sessions.Get(m.FromID, m.ChatID)
	text := m.Text

	switch ses.Step {
	case stepEnterName:
		name, err := parseDescriptionInput(text)
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		ses.Draft.Description = name
		ses.Step = stepSelectPeriod
		s.send(ctx, ses.ChatID, tgui.New().
			Line("🔄 How often should this post repeat?").
			Inline(periodKeyboard()).
			Build())

	case stepEnterEveryN:
		n, err := parseEveryNInput(text)
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		per := event.Periodicity{Kind: event.EveryNDays, EveryN: n}
		if ses.editing() {
			s.applyPatch(ctx, ses, func(ev *event.Event) { ev.Periodicity = per })
			return
		}
		ses.Draft.Per = per
		s.askStartDate(ctx, ses)

	case stepEnterStartDate:
		d, err := parseDateInput(text, s.now().In(s.sched.Location()))
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		if ses.editing() {
			s.applyPatch(ctx, ses, func(ev *event.Event) { ev.StartDate = d })
			return
		}
		ses.Draft.Start = d
		ses.Step = stepEnterEndDate
		s.prompt(ctx, ses.ChatID, "📅 Enter the last publication date (YYYY-MM-DD), or \"forever\":")

	case stepEnterEndDate:
		forever, d, err := parseEndDateInput(text, s.now().In(s.sched.Location()))
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		if ses.editing() {
			s.applyPatch(ctx, ses, func(ev *event.Event) {
				if forever {
					ev.EndDate = event.Date{}
				} else {
					ev.EndDate = d
				}
			})
			return
		}
		if !forever && d.Compare(ses.Draft.Start) <= 0 {
			s.reprompt(ctx, ses, fmt.Errorf("end date must be after the start date (%s)", ses.Draft.Start))
			return
		}
		ses.Draft.Forever = forever
		ses.Draft.End = d
		ses.Step = stepEnterTime
		s.prompt(ctx, ses.ChatID, "🕘 Enter the publication time (HH:MM, 24-hour):")

	case stepEnterTime:
		at, err := parseTimeInput(text)
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		if ses.editing() {
			s.applyPatch(ctx, ses, func(ev *event.Event) { ev.At = at })
			return
		}
		ses.Draft.At = at
		ses.Step = stepEnterText
		s.prompt(ctx, ses.ChatID, "✍️ Send the post text:")

	case stepEnterText:
		body, err := parseTextInput(text)
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		if ses.editing() {
			s.applyPatch(ctx, ses, func(ev *event.Event) { ev.Text = body })
			return
		}
		ses.Draft.Text = body
		ses.Step = stepConfirm
		s.send(ctx, ses.ChatID, confirmCard(ses.Draft))

	case stepEditField:
		s.handleEditInput(ctx, ses, text)

	case stepConfirm:
		s.send(ctx, ses.ChatID, tgui.New().
			Line("Use the buttons above to confirm or discard the event.").
			Build())

	default:
		s.send(ctx, ses.ChatID, tgui.New().
			Line("Use /start for the menu or /help for a guide.").
			Build())
	}
}

// handleEditInput applies a single-field text edit.
func (s *Service) handleEditInput(ctx context.Context, ses *session, text string) {
	switch ses.EditingField {
	case "name":
		name, err := parseDescriptionInput(text)
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		s.applyPatch(ctx, ses, func(ev *event.Event) { ev.Description = name })
	case "start":
		d, err := parseDateInput(text, s.now().In(s.sched.Location()))
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		s.applyPatch(ctx, ses, func(ev *event.Event) { ev.StartDate = d })
	case "end":
		forever, d, err := parseEndDateInput(text, s.now().In(s.sched.Location()))
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		s.applyPatch(ctx, ses, func(ev *event.Event) {
			if forever {
				ev.EndDate = event.Date{}
			} else {
				ev.EndDate = d
			}
		})
	case "time":
		at, err := parseTimeInput(text)
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		s.applyPatch(ctx, ses, func(ev *event.Event) { ev.At = at })
	case "text":
		body, err := parseTextInput(text)
		if err != nil {
			s.reprompt(ctx, ses, err)
			return
		}
		s.applyPatch(ctx, ses, func(ev *event.Event) { ev.Text = body })
	default:
		s.sessions.Reset(ses.UserID)
		s.ShowMenu(ctx, ses.ChatID)
	}
}

// HandleCallback consumes an inline-button press.
func (s *Service) HandleCallback(ctx context.Context, cb *kit.Callback) {
	scope, action, payload := tgui.SplitData(cb.Data)
	ses := s.sessions.Get(cb.FromID, cb.ChatID)

	var note string
	switch scope {
	case "dlg":
		note = s.handleWizardCallback(ctx, ses, cb, action, payload)
	case "ev":
		note = s.handleManageCallback(ctx, ses, cb, action, payload)
	}
	if err := s.ad.AnswerCallback(ctx, cb.ID, note); err != nil {
		s.log.Debug("callback answer failed", logx.Err(err))
	}
}

func (s *Service) handleWizardCallback(ctx context.Context, ses *session, cb *kit.Callback, action, payload string) string {
	switch action {
	case "new":
		chats, err := s.knownChats(ctx)
		if err != nil {
			s.log.Error("chat registry read failed", logx.Err(err))
			return "Something went wrong, try again"
		}
		if len(chats) == 0 {
			s.editOrSend(ctx, cb, tgui.New().
				Line("❌ I don't know any groups yet.").
				Blank().
				Line("Add me to a group with permission to post, then come back.").
				Inline(mainMenuKeyboard()).
				Build())
			return ""
		}
		ses.beginCreate()
		s.editOrSend(ctx, cb, tgui.New().
			Line("📱 Pick the group to post into:").
			Inline(groupKeyboard(chats, "dlg", "grp")).
			Build())

	case "grp":
		chatID, err := strconv.ParseInt(payload, 10, 64)
		if err != nil || ses.Step != stepSelectGroup {
			return "This menu has expired, use /start"
		}
		ses.Draft.Destination = event.FormatDestination(chatID, 0)
		ses.Draft.DestTitle = s.chatTitle(ctx, chatID)
		ses.Step = stepEnterName
		s.editOrSend(ctx, cb, tgui.New().
			Line("✅ Group: "+ses.Draft.DestTitle).
			Blank().
			Line("📝 Enter a name for this event:").
			Inline(cancelKeyboard()).
			Build())

	case "per":
		kind := event.Kind(payload)
		switch kind {
		case event.EveryNDays:
			if !ses.editing() {
				ses.Draft.Per.Kind = kind
			}
			ses.Step = stepEnterEveryN
			s.editOrSend(ctx, cb, tgui.New().
				Line(fmt.Sprintf("🔢 How many days between posts? (%d–%d)", event.MinEveryN, event.MaxEveryN)).
				Inline(cancelKeyboard()).
				Build())
		case event.Weekdays:
			if !ses.editing() {
				ses.Draft.Per.Kind = kind
			}
			ses.Draft.Days = map[int]bool{}
			ses.Step = stepSelectWeekdays
			s.editOrSend(ctx, cb, weekdayCard(ses.Draft.Days))
		default:
			per := event.Periodicity{Kind: kind}
			if per.Validate() != nil {
				return "Unknown periodicity"
			}
			if ses.editing() {
				s.applyPatch(ctx, ses, func(ev *event.Event) { ev.Periodicity = per })
				return ""
			}
			ses.Draft.Per = per
			s.askStartDate(ctx, ses)
		}

	case "wd":
		if ses.Step != stepSelectWeekdays {
			return "This menu has expired, use /start"
		}
		if payload == "done" {
			if len(ses.Draft.Days) == 0 {
				return "Pick at least one weekday"
			}
			per := event.Periodicity{Kind: event.Weekdays, Days: sortedDays(ses.Draft.Days)}
			if ses.editing() {
				s.applyPatch(ctx, ses, func(ev *event.Event) { ev.Periodicity = per })
				return ""
			}
			ses.Draft.Per = per
			s.askStartDate(ctx, ses)
			return ""
		}
		day, err := strconv.Atoi(payload)
		if err != nil || day < 0 || day > 6 {
			return ""
		}
		if ses.Draft.Days[day] {
			delete(ses.Draft.Days, day)
		} else {
			ses.Draft.Days[day] = true
		}
		s.editOrSend(ctx, cb, weekdayCard(ses.Draft.Days))

	case "cfm":
		if ses.Step != stepConfirm {
			return "This menu has expired, use /start"
		}
		if payload != "yes" {
			s.sessions.Reset(ses.UserID)
			s.editOrSend(ctx, cb, tgui.New().Line("🗑 Draft discarded.").Inline(mainMenuKeyboard()).Build())
			return ""
		}
		s.createFromDraft(ctx, ses, cb)

	case "cancel":
		s.sessions.Reset(ses.UserID)
		s.editOrSend(ctx, cb, tgui.New().Line("❌ Action cancelled.").Inline(mainMenuKeyboard()).Build())

	case "menu":
		s.sessions.Reset(ses.UserID)
		s.editOrSend(ctx, cb, tgui.New().
			Title("🤖", "Publication scheduler").
			Line("Pick an action:").
			Inline(mainMenuKeyboard()).
			Build())
	}
	return ""
}

func (s *Service) createFromDraft(ctx context.Context, ses *session, cb *kit.Callback) {
	d := ses.Draft
	ev := event.Event{
		ID:          event.NewID(),
		Destination: d.Destination,
		Description: d.Description,
		StartDate:   d.Start,
		At:          d.At,
		Periodicity: d.Per,
		Text:        d.Text,
		Status:      event.StatusActive,
	}
	if !d.Forever {
		ev.EndDate = d.End
	}
	if err := ev.Validate(); err != nil {
		s.editOrSend(ctx, cb, tgui.New().
			Line("❌ The event is invalid: "+err.Error()).
			Line("Start over with /start.").
			Build())
		s.sessions.Reset(ses.UserID)
		return
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		s.log.Error("event create failed", logx.String("event", ev.ID), logx.Err(err))
		s.editOrSend(ctx, cb, tgui.New().Line("❌ Could not save the event, try again later.").Build())
		return
	}
	if err := s.sched.Arm(ctx, ev); err != nil {
		s.log.Error("arm after create failed", logx.String("event", ev.ID), logx.Err(err))
	}
	s.log.Info("event created",
		logx.String("event", ev.ID),
		logx.String("dest", ev.Destination),
		logx.String("period", string(ev.Periodicity.Kind)))
	s.sessions.Reset(ses.UserID)
	s.editOrSend(ctx, cb, tgui.New().
		Line("✅ Event created and scheduled.").
		Inline(mainMenuKeyboard()).
		Build())
}

func (s *Service) handleManageCallback(ctx context.Context, ses *session, cb *kit.Callback, action, payload string) string {
	switch action {
	case "groups":
		chats, err := s.knownChats(ctx)
		if err != nil {
			s.log.Error("chat registry read failed", logx.Err(err))
			return "Something went wrong, try again"
		}
		if len(chats) == 0 {
			s.editOrSend(ctx, cb, tgui.New().
				Line("No groups known yet. Add me to a group first.").
				Inline(mainMenuKeyboard()).
				Build())
			return ""
		}
		s.editOrSend(ctx, cb, tgui.New().
			Line("📋 Pick a group to list its events:").
			Inline(groupKeyboard(chats, "ev", "lst")).
			Build())

	case "lst":
		chatID, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return ""
		}
		s.showEventList(ctx, ses, cb, chatID, 0)

	case "page":
		chatStr, pageStr, _ := strings.Cut(payload, ":")
		chatID, err1 := strconv.ParseInt(chatStr, 10, 64)
		page, err2 := strconv.Atoi(pageStr)
		if err1 != nil || err2 != nil {
			return ""
		}
		s.showEventList(ctx, ses, cb, chatID, page)

	case "open":
		ev, ok := s.loadEvent(ctx, cb, payload)
		if !ok {
			return "Event not found"
		}
		chatID, _, _ := event.ParseDestination(ev.Destination)
		s.editOrSend(ctx, cb, eventCard(ev, s.chatTitle(ctx, chatID), s.now(), s.sched.Location()))

	case "edit":
		ev, ok := s.loadEvent(ctx, cb, payload)
		if !ok {
			return "Event not found"
		}
		if ev.Status.Terminal() {
			return "Finished events cannot be edited"
		}
		s.editOrSend(ctx, cb, tgui.New().
			Title("✏️", ev.Description).
			Line("Which field do you want to change?").
			Inline(editMenuKeyboard(ev)).
			Build())

	case "fld":
		id, field, _ := strings.Cut(payload, ":")
		ev, ok := s.loadEvent(ctx, cb, id)
		if !ok {
			return "Event not found"
		}
		if ev.Status.Terminal() {
			return "Finished events cannot be edited"
		}
		s.startFieldEdit(ctx, ses, cb, ev, field)

	case "del":
		ev, ok := s.loadEvent(ctx, cb, payload)
		if !ok {
			return "Event not found"
		}
		s.editOrSend(ctx, cb, tgui.New().
			Line("🗑 Delete \""+ev.Description+"\"?").
			Line("Scheduled publications stop immediately.").
			Inline(deleteConfirmKeyboard(ev.ID)).
			Build())

	case "delok":
		// Cancel before delete so no fire can land between the two.
		s.sched.Cancel(payload)
		if err := s.store.DeleteEvent(ctx, payload); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("event delete failed", logx.String("event", payload), logx.Err(err))
			return "Delete failed, try again"
		}
		s.log.Info("event deleted", logx.String("event", payload))
		s.editOrSend(ctx, cb, tgui.New().
			Line("🗑 Event deleted.").
			Inline(mainMenuKeyboard()).
			Build())

	case "back":
		ev, ok := s.loadEvent(ctx, cb, payload)
		if !ok {
			s.editOrSend(ctx, cb, tgui.New().Line("Pick an action:").Inline(mainMenuKeyboard()).Build())
			return ""
		}
		chatID, _, _ := event.ParseDestination(ev.Destination)
		s.showEventList(ctx, ses, cb, chatID, ses.ListPage)
	}
	return ""
}

// startFieldEdit prompts for the new value of one field. Periodicity goes
// back through the period keyboard; everything else is a text input.
func (s *Service) startFieldEdit(ctx context.Context, ses *session, cb *kit.Callback, ev event.Event, field string) {
	switch field {
	case "period":
		ses.beginEdit(ev.ID, field, stepSelectPeriod)
		s.editOrSend(ctx, cb, tgui.New().
			Line("🔄 Pick the new periodicity:").
			Inline(periodKeyboard()).
			Build())
	case "name":
		ses.beginEdit(ev.ID, field, stepEditField)
		s.prompt(ctx, ses.ChatID, "📝 Enter the new name:")
	case "start":
		ses.beginEdit(ev.ID, field, stepEditField)
		s.prompt(ctx, ses.ChatID, "📅 Enter the new start date (YYYY-MM-DD):")
	case "end":
		ses.beginEdit(ev.ID, field, stepEditField)
		s.prompt(ctx, ses.ChatID, "📅 Enter the new end date (YYYY-MM-DD) or \"forever\":")
	case "time":
		ses.beginEdit(ev.ID, field, stepEditField)
		s.prompt(ctx, ses.ChatID, "🕘 Enter the new time (HH:MM):")
	case "text":
		ses.beginEdit(ev.ID, field, stepEditField)
		s.prompt(ctx, ses.ChatID, "✍️ Send the new post text:")
	}
}

// applyPatch loads the event fresh, applies the mutation, validates, and
// commits the edit: store write first, then cancel+re-arm through the
// coordinator so the timer always reflects the stored state.
func (s *Service) applyPatch(ctx context.Context, ses *session, mutate func(*event.Event)) {
	id := ses.EditingID
	ev, err := s.store.Event(ctx, id)
	if err != nil {
		s.sessions.Reset(ses.UserID)
		s.send(ctx, ses.ChatID, tgui.New().Line("❌ The event no longer exists.").Inline(mainMenuKeyboard()).Build())
		return
	}
	if ev.Status.Terminal() {
		s.sessions.Reset(ses.UserID)
		s.send(ctx, ses.ChatID, tgui.New().Line("❌ Finished events cannot be edited.").Build())
		return
	}

	mutate(&ev)
	if err := ev.Validate(); err != nil {
		s.reprompt(ctx, ses, err)
		return
	}
	if err := s.store.UpdateEvent(ctx, ev); err != nil {
		s.log.Error("event update failed", logx.String("event", id), logx.Err(err))
		s.send(ctx, ses.ChatID, tgui.New().Line("❌ Could not save the change, try again.").Build())
		return
	}
	if err := s.sched.Arm(ctx, ev); err != nil {
		s.log.Error("re-arm after edit failed", logx.String("event", id), logx.Err(err))
	}
	s.log.Info("event updated", logx.String("event", id), logx.String("field", ses.EditingField))
	s.sessions.Reset(ses.UserID)

	// Show the refreshed card.
	fresh, err := s.store.Event(ctx, id)
	if err != nil {
		s.send(ctx, ses.ChatID, tgui.New().Line("✅ Saved.").Inline(mainMenuKeyboard()).Build())
		return
	}
	chatID, _, _ := event.ParseDestination(fresh.Destination)
	s.send(ctx, ses.ChatID, eventCard(fresh, s.chatTitle(ctx, chatID), s.now(), s.sched.Location()))
}

func (s *Service) showEventList(ctx context.Context, ses *session, cb *kit.Callback, chatID int64, page int) {
	all, err := s.store.Events(ctx)
	if err != nil {
		s.log.Error("event scan failed", logx.Err(err))
		s.editOrSend(ctx, cb, tgui.New().Line("❌ Could not load events, try again.").Build())
		return
	}
	var evs []event.Event
	for _, ev := range all {
		id, _, err := event.ParseDestination(ev.Destination)
		if err == nil && id == chatID {
			evs = append(evs, ev)
		}
	}
	sort.Slice(evs, func(i, j int) bool { return evs[i].Description < evs[j].Description })

	title := s.chatTitle(ctx, chatID)
	if len(evs) == 0 {
		s.editOrSend(ctx, cb, tgui.New().
			Line("No events for "+title+" yet.").
			Inline(mainMenuKeyboard()).
			Build())
		return
	}

	pageEvs, hasPrev, hasNext := tgui.PaginateSlice(evs, page, listPageSize)
	ses.ListChatID = chatID
	ses.ListPage = page
	s.editOrSend(ctx, cb, tgui.New().
		Title("📋", title).
		Line(tgui.PageLabel(page, listPageSize, len(evs))).
		Inline(eventListKeyboard(pageEvs, chatID, page, hasPrev, hasNext)).
		Build())
}

func (s *Service) askStartDate(ctx context.Context, ses *session) {
	ses.Step = stepEnterStartDate
	today := event.DateOf(s.now().In(s.sched.Location()))
	s.prompt(ctx, ses.ChatID, fmt.Sprintf(
		"📅 Enter the first publication date (YYYY-MM-DD), e.g. %s.\nShortcuts: \"today\", \"tomorrow\".", today))
}

func (s *Service) loadEvent(ctx context.Context, cb *kit.Callback, id string) (event.Event, bool) {
	ev, err := s.store.Event(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("event read failed", logx.String("event", id), logx.Err(err))
		}
		return event.Event{}, false
	}
	return ev, true
}

// knownChats returns the group registry sorted by title.
func (s *Service) knownChats(ctx context.Context) ([]storage.Chat, error) {
	chats, err := s.store.Chats(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].Title < chats[j].Title })
	return chats, nil
}

func (s *Service) chatTitle(ctx context.Context, chatID int64) string {
	chats, err := s.store.Chats(ctx)
	if err == nil {
		for _, ch := range chats {
			if ch.ID == chatID {
				return ch.Title
			}
		}
	}
	return strconv.FormatInt(chatID, 10)
}

func (s *Service) reprompt(ctx context.Context, ses *session, cause error) {
	s.send(ctx, ses.ChatID, tgui.New().
		Line("❌ "+cause.Error()).
		Line("Try again, or /cancel to abort.").
		Build())
}

func (s *Service) prompt(ctx context.Context, chatID int64, text string) {
	s.send(ctx, chatID, tgui.New().Line(text).Inline(cancelKeyboard()).Build())
}

func (s *Service) send(ctx context.Context, chatID int64, m tgui.Message) {
	if _, err := m.Send(ctx, s.ad, kit.ChatTarget{ChatID: chatID}); err != nil {
		s.log.Warn("dialog send failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

// editOrSend edits the message the callback came from, falling back to a
// fresh message when the edit is rejected (e.g. message too old).
func (s *Service) editOrSend(ctx context.Context, cb *kit.Callback, m tgui.Message) {
	ref := kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	if err := m.Edit(ctx, s.ad, ref); err != nil {
		s.send(ctx, cb.ChatID, m)
	}
}

func weekdayCard(selected map[int]bool) tgui.Message {
	names := make([]string, 0, len(selected))
	for _, d := range sortedDays(selected) {
		names = append(names, event.WeekdayName(d))
	}
	picked := "none yet"
	if len(names) > 0 {
		picked = strings.Join(names, ", ")
	}
	return tgui.New().
		Line("📅 Toggle the weekdays to publish on:").
		Blank().
		Line("Selected: " + picked).
		Inline(weekdayKeyboard(selected)).
		Build()
}

func cancelKeyboard() *tgui.Inline {
	return tgui.NewInline().Row(tgui.Btn("🔙 Cancel", tgui.Data("dlg", "cancel", "")))
}

func sortedDays(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// NextFireLabel formats the next occurrence for /status style summaries.
func NextFireLabel(ev event.Event, now time.Time, loc *time.Location) string {
	at, err := recurrence.Next(ev, now, loc)
	if err != nil {
		return "—"
	}
	return at.Format("2006-01-02 15:04")
}
