package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"postbot/internal/event"
	logx "postbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend for small deployments.
//
// Files:
//   - <prefix>.events.json  (full snapshot, rewritten atomically on mutation)
//   - <prefix>.audit.jsonl  (append-only JSON Lines)
//
// Event counts here are tens, not thousands, so rewriting the snapshot per
// mutation is cheaper than maintaining a journal.
type fileStore struct {
	log logx.Logger

	mu        sync.Mutex
	snapPath  string
	auditFile *os.File

	events map[string]eventRow
	chats  map[int64]Chat
}

// eventRow mirrors the sqlite column encoding so both drivers share the
// same on-disk vocabulary (dates and periodicity as strings).
type eventRow struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	TimeOfDay   string `json:"time_of_day"`
	PeriodKind  string `json:"period_kind"`
	PeriodValue string `json:"period_value,omitempty"`
	Body        string `json:"body"`
	Status      string `json:"status"`
}

type snapshot struct {
	Events []eventRow `json:"events"`
	Chats  []Chat     `json:"chats"`
}

type auditLine struct {
	At          time.Time `json:"at"`
	EventID     string    `json:"event_id"`
	Destination string    `json:"destination"`
	OK          bool      `json:"ok"`
	Error       string    `json:"err,omitempty"`
	TookMS      int64     `json:"took_ms"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{
		log:      log,
		snapPath: prefix + ".events.json",
		events:   map[string]eventRow{},
		chats:    map[int64]Chat{},
	}
	if err := st.loadSnapshot(); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st.auditFile = af
	return st, nil
}

func (s *fileStore) loadSnapshot() error {
	b, err := os.ReadFile(s.snapPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("corrupt event snapshot %s: %w", s.snapPath, err)
	}
	for _, r := range snap.Events {
		s.events[r.ID] = r
	}
	for _, c := range snap.Chats {
		s.chats[c.ID] = c
	}
	return nil
}

// writeSnapshotLocked persists the current state via temp-file rename.
func (s *fileStore) writeSnapshotLocked() error {
	snap := snapshot{
		Events: make([]eventRow, 0, len(s.events)),
		Chats:  make([]Chat, 0, len(s.chats)),
	}
	for _, r := range s.events {
		snap.Events = append(snap.Events, r)
	}
	for _, c := range s.chats {
		snap.Chats = append(snap.Chats, c)
	}

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.snapPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapPath)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile != nil {
		err := s.auditFile.Close()
		s.auditFile = nil
		return err
	}
	return nil
}

// ---- events ----

func toRow(ev event.Event) eventRow {
	endDate := ""
	if !ev.Forever() {
		endDate = ev.EndDate.String()
	}
	return eventRow{
		ID:          ev.ID,
		Destination: ev.Destination,
		Description: ev.Description,
		StartDate:   ev.StartDate.String(),
		EndDate:     endDate,
		TimeOfDay:   ev.At.String(),
		PeriodKind:  string(ev.Periodicity.Kind),
		PeriodValue: ev.Periodicity.EncodeValue(),
		Body:        ev.Text,
		Status:      string(ev.Status),
	}
}

func fromRow(r eventRow) (event.Event, error) {
	ev := event.Event{
		ID:          r.ID,
		Destination: r.Destination,
		Description: r.Description,
		Text:        r.Body,
		Status:      event.Status(r.Status),
	}
	var err error
	if ev.StartDate, err = event.ParseDate(r.StartDate); err != nil {
		return event.Event{}, fmt.Errorf("event %s: %w", r.ID, err)
	}
	if r.EndDate != "" {
		if ev.EndDate, err = event.ParseDate(r.EndDate); err != nil {
			return event.Event{}, fmt.Errorf("event %s: %w", r.ID, err)
		}
	}
	if ev.At, err = event.ParseTimeOfDay(r.TimeOfDay); err != nil {
		return event.Event{}, fmt.Errorf("event %s: %w", r.ID, err)
	}
	if ev.Periodicity, err = event.DecodePeriodicity(r.PeriodKind, r.PeriodValue); err != nil {
		return event.Event{}, fmt.Errorf("event %s: %w", r.ID, err)
	}
	return ev, nil
}

func (s *fileStore) CreateEvent(_ context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[ev.ID]; exists {
		return fmt.Errorf("event %s already exists", ev.ID)
	}
	s.events[ev.ID] = toRow(ev)
	return s.writeSnapshotLocked()
}

func (s *fileStore) Event(_ context.Context, id string) (event.Event, error) {
	s.mu.Lock()
	r, ok := s.events[id]
	s.mu.Unlock()
	if !ok {
		return event.Event{}, ErrNotFound
	}
	return fromRow(r)
}

func (s *fileStore) UpdateEvent(_ context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; !ok {
		return ErrNotFound
	}
	s.events[ev.ID] = toRow(ev)
	return s.writeSnapshotLocked()
}

func (s *fileStore) SetStatus(_ context.Context, id string, st event.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = string(st)
	s.events[id] = r
	return s.writeSnapshotLocked()
}

func (s *fileStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return s.writeSnapshotLocked()
}

func (s *fileStore) Events(_ context.Context) ([]event.Event, error) {
	s.mu.Lock()
	rows := make([]eventRow, 0, len(s.events))
	for _, r := range s.events {
		rows = append(rows, r)
	}
	s.mu.Unlock()

	out := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// ---- chats ----

func (s *fileStore) UpsertChat(_ context.Context, c Chat) error {
	if c.SeenAt.IsZero() {
		c.SeenAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[c.ID] = c
	return s.writeSnapshotLocked()
}

func (s *fileStore) Chats(_ context.Context) ([]Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c)
	}
	return out, nil
}

// ---- publish audit ----

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	line, err := json.Marshal(auditLine{
		At:          e.At,
		EventID:     e.EventID,
		Destination: e.Destination,
		OK:          e.OK,
		Error:       e.Error,
		TookMS:      e.TookMS,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("store closed")
	}
	_, err = s.auditFile.Write(append(line, '\n'))
	return err
}

// PruneAudit rewrites the audit file keeping only entries at/after the cutoff.
func (s *fileStore) PruneAudit(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return 0, errors.New("store closed")
	}
	path := s.auditFile.Name()

	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	tmp := path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		_ = in.Close()
		return 0, err
	}

	var dropped int64
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	w := bufio.NewWriter(out)
	for sc.Scan() {
		var l auditLine
		if err := json.Unmarshal(sc.Bytes(), &l); err == nil && l.At.Before(olderThan) {
			dropped++
			continue
		}
		_, _ = w.Write(sc.Bytes())
		_ = w.WriteByte('\n')
	}
	_ = in.Close()
	if err := sc.Err(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	_ = out.Close()

	_ = s.auditFile.Close()
	if err := os.Rename(tmp, path); err != nil {
		s.auditFile, _ = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		return 0, err
	}
	s.auditFile, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	return dropped, err
}
