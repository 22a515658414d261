package dialog

import (
	"sync"

	"postbot/internal/event"
)

// step identifies where a user is inside the wizard.
type step int

const (
	stepIdle step = iota
	stepSelectGroup
	stepEnterName
	stepSelectPeriod
	stepEnterEveryN
	stepSelectWeekdays
	stepEnterStartDate
	stepEnterEndDate
	stepEnterTime
	stepEnterText
	stepConfirm
	stepEditField
)

// draft accumulates the answers of an in-progress create flow.
type draft struct {
	Destination string
	DestTitle   string
	Description string
	Per         event.Periodicity
	Days        map[int]bool // weekday toggles before they land in Per
	Start       event.Date
	End         event.Date
	Forever     bool
	At          event.TimeOfDay
	Text        string
}

// session is the per-user wizard state. One user drives at most one flow
// at a time; /cancel or finishing a flow resets it.
type session struct {
	UserID int64
	ChatID int64 // private chat the wizard runs in
	Step   step

	Draft draft

	// Edit mode: which stored event and which field the next text input
	// patches. Empty EditingID means create mode.
	EditingID    string
	EditingField string

	// Paging state for the manage flow.
	ListChatID int64
	ListPage   int
}

// sessions holds wizard state per user id behind a mutex. State is only
// ever mutated through Get/Reset so handlers cannot race on a shared map.
type sessions struct {
	mu sync.Mutex
	m  map[int64]*session
}

func newSessions() *sessions {
	return &sessions{m: map[int64]*session{}}
}

// Get returns the session for the user, creating an idle one if missing.
func (s *sessions) Get(userID, chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ses, ok := s.m[userID]; ok {
		return ses
	}
	ses := &session{UserID: userID, ChatID: chatID, Step: stepIdle}
	s.m[userID] = ses
	return ses
}

// Reset drops all flow state for the user but keeps the session alive.
func (s *sessions) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ses, ok := s.m[userID]; ok {
		*ses = session{UserID: ses.UserID, ChatID: ses.ChatID, Step: stepIdle}
	}
}

// beginCreate switches the session into a fresh create flow.
func (ses *session) beginCreate() {
	ses.Draft = draft{Days: map[int]bool{}}
	ses.EditingID = ""
	ses.EditingField = ""
	ses.Step = stepSelectGroup
}

// beginEdit switches the session into single-field edit mode.
func (ses *session) beginEdit(eventID, field string, st step) {
	ses.Draft = draft{Days: map[int]bool{}}
	ses.EditingID = eventID
	ses.EditingField = field
	ses.Step = st
}

func (ses *session) editing() bool { return ses.EditingID != "" }
