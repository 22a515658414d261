package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"postbot/internal/event"
	logx "postbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- events ----

const eventCols = `id, destination, description, start_date, end_date, time_of_day, period_kind, period_value, body, status`

func (s *sqliteStore) CreateEvent(ctx context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	endDate := ""
	if !ev.Forever() {
		endDate = ev.EndDate.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(`+eventCols+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.Destination, ev.Description, ev.StartDate.String(), endDate,
		ev.At.String(), string(ev.Periodicity.Kind), ev.Periodicity.EncodeValue(),
		ev.Text, string(ev.Status),
	)
	return err
}

func (s *sqliteStore) Event(ctx context.Context, id string) (event.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, ErrNotFound
	}
	return ev, err
}

func (s *sqliteStore) UpdateEvent(ctx context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	endDate := ""
	if !ev.Forever() {
		endDate = ev.EndDate.String()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET destination=?, description=?, start_date=?, end_date=?,
		 time_of_day=?, period_kind=?, period_value=?, body=?, status=? WHERE id=?`,
		ev.Destination, ev.Description, ev.StartDate.String(), endDate,
		ev.At.String(), string(ev.Periodicity.Kind), ev.Periodicity.EncodeValue(),
		ev.Text, string(ev.Status), ev.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) SetStatus(ctx context.Context, id string, st event.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET status=? WHERE id=?`, string(st), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) Events(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventCols+` FROM events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (event.Event, error) {
	var (
		ev                             event.Event
		startDate, endDate, timeOfDay  string
		periodKind, periodValue, state string
	)
	err := r.Scan(&ev.ID, &ev.Destination, &ev.Description, &startDate, &endDate,
		&timeOfDay, &periodKind, &periodValue, &ev.Text, &state)
	if err != nil {
		return event.Event{}, err
	}
	if ev.StartDate, err = event.ParseDate(startDate); err != nil {
		return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	if endDate != "" {
		if ev.EndDate, err = event.ParseDate(endDate); err != nil {
			return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
		}
	}
	if ev.At, err = event.ParseTimeOfDay(timeOfDay); err != nil {
		return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	if ev.Periodicity, err = event.DecodePeriodicity(periodKind, periodValue); err != nil {
		return event.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	ev.Status = event.Status(state)
	return ev, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- chats ----

func (s *sqliteStore) UpsertChat(ctx context.Context, c Chat) error {
	if c.SeenAt.IsZero() {
		c.SeenAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(id, title, seen_at) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, seen_at=excluded.seen_at`,
		c.ID, c.Title, c.SeenAt.Format(time.RFC3339),
	)
	return err
}

func (s *sqliteStore) Chats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, seen_at FROM chats ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var c Chat
		var seen string
		if err := rows.Scan(&c.ID, &c.Title, &seen); err != nil {
			return nil, err
		}
		c.SeenAt, _ = time.Parse(time.RFC3339, seen)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- publish audit ----

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publish_audit(at, event_id, destination, ok, err, took_ms) VALUES(?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.EventID, e.Destination, e.OK, nullStr(e.Error), e.TookMS,
	)
	return err
}

func (s *sqliteStore) PruneAudit(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM publish_audit WHERE at < ?`,
		olderThan.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
