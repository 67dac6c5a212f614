package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/activitytask/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// defaultListLimit bounds event listings without an explicit limit.
const defaultListLimit = 100

// Session is one engine run recorded in the journal.
type Session struct {
	ID         string
	StartedAt  time.Time
	EventCount int
}

// Journal is an append-only lifecycle event log. Each opened journal writes
// under a fresh session id; nothing in it is ever replayed into the engine.
type Journal struct {
	db        *sql.DB
	sessionID string
}

// Open opens or creates the journal at path and starts a new session.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return start(db)
}

// OpenInMemory opens a private in-memory journal.
func OpenInMemory() (*Journal, error) {
	db, err := sql.Open(driverName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return start(db)
}

func start(db *sql.DB) (*Journal, error) {
	j := &Journal{db: db}
	ctx := context.Background()
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := j.StartSession(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// StartSession begins a new session; later appends are written under it.
// Call it between engine runs, never while an engine is appending.
func (j *Journal) StartSession(ctx context.Context) error {
	id := uuid.NewString()
	if _, err := j.db.ExecContext(ctx, `INSERT INTO sessions(id, started_at) VALUES (?, ?)`, id, ts(time.Now())); err != nil {
		return fmt.Errorf("start journal session: %w", err)
	}
	j.sessionID = id
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SessionID returns the id events are currently written under.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// migrate creates the journal schema.
func (j *Journal) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lifecycle_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			activity_id TEXT NOT NULL DEFAULT '',
			component TEXT NOT NULL DEFAULT '',
			task_id INTEGER NOT NULL DEFAULT 0,
			affinity TEXT NOT NULL DEFAULT '',
			flags TEXT NOT NULL DEFAULT 'none',
			occurred_at TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_session_seq ON lifecycle_events(session_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_activity ON lifecycle_events(activity_id);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// AppendEvents writes events under the current session in one transaction.
func (j *Journal) AppendEvents(ctx context.Context, events []domain.LifecycleEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lifecycle_events(session_id, seq, kind, activity_id, component, task_id, affinity, flags, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err = stmt.ExecContext(ctx,
			j.sessionID,
			ev.Seq,
			string(ev.Kind),
			ev.ActivityID,
			string(ev.Component),
			ev.TaskID,
			ev.Affinity,
			ev.Flags.String(),
			ts(ev.At),
		); err != nil {
			return fmt.Errorf("insert lifecycle event %d: %w", ev.Seq, err)
		}
	}
	err = tx.Commit()
	return err
}

// ListEvents returns the latest limit events of the current session in commit order.
func (j *Journal) ListEvents(ctx context.Context, limit int) ([]domain.LifecycleEvent, error) {
	return j.ListSessionEvents(ctx, j.sessionID, limit)
}

// ListSessionEvents returns the latest limit events of sessionID in commit order.
func (j *Journal) ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]domain.LifecycleEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, activity_id, component, task_id, affinity, flags, occurred_at
		FROM (
			SELECT id, seq, kind, activity_id, component, task_id, affinity, flags, occurred_at
			FROM lifecycle_events
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LifecycleEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListActivityEvents returns every journaled event of one activity record, oldest first.
func (j *Journal) ListActivityEvents(ctx context.Context, activityID string) ([]domain.LifecycleEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, activity_id, component, task_id, affinity, flags, occurred_at
		FROM lifecycle_events
		WHERE activity_id = ?
		ORDER BY id ASC
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LifecycleEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListSessions returns recorded sessions, newest first.
func (j *Journal) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, COUNT(e.id)
		FROM sessions s
		LEFT JOIN lifecycle_events e ON e.session_id = s.id
		GROUP BY s.id, s.started_at
		ORDER BY s.started_at DESC, s.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		var (
			session    Session
			startedRaw string
		)
		if err := rows.Scan(&session.ID, &startedRaw, &session.EventCount); err != nil {
			return nil, err
		}
		session.StartedAt = parseTS(startedRaw)
		out = append(out, session)
	}
	return out, rows.Err()
}

// scanner represents a row scanner shared by sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEvent decodes one lifecycle_events row.
func scanEvent(s scanner) (domain.LifecycleEvent, error) {
	var (
		ev          domain.LifecycleEvent
		kindRaw     string
		componentRw string
		flagsRaw    string
		occurredRaw string
	)
	if err := s.Scan(&ev.Seq, &kindRaw, &ev.ActivityID, &componentRw, &ev.TaskID, &ev.Affinity, &flagsRaw, &occurredRaw); err != nil {
		return domain.LifecycleEvent{}, err
	}
	flags, err := domain.ParseIntentFlags(flagsRaw)
	if err != nil {
		return domain.LifecycleEvent{}, fmt.Errorf("decode lifecycle_events.flags %q: %w", flagsRaw, err)
	}
	ev.Kind = domain.LifecycleEventKind(kindRaw)
	ev.Component = domain.ComponentID(componentRw)
	ev.Flags = flags
	ev.At = parseTS(occurredRaw)
	return ev, nil
}

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored timestamp.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
