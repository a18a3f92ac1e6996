// Package history keeps a SQLite journal of link, session and light
// transitions so an operator can see why a node went quiet.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/light"
	"github.com/nerrad567/gray-logic-lightnode/internal/link"
	"github.com/nerrad567/gray-logic-lightnode/internal/session"
)

// Event sources.
const (
	SourceLink    = "link"
	SourceSession = "session"
	SourceLight   = "light"
	SourceSystem  = "system"
)

// timestampLayout is fixed-width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// recordTimeout bounds a journal write made from the control goroutine.
const recordTimeout = time.Second

// Event is one journal row.
type Event struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	Detail     string    `json:"detail,omitempty"`
}

// Logger defines the logging interface for the journal.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Journal appends events to the connectivity_events table.
type Journal struct {
	db     *sql.DB
	now    func() time.Time
	logger Logger
}

// NewJournal returns a journal on an already migrated database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now, logger: noopLogger{}}
}

// SetLogger sets the logger used for write failures in the notifier methods.
func (j *Journal) SetLogger(logger Logger) {
	if logger != nil {
		j.logger = logger
	}
}

// Record appends e. A zero OccurredAt is stamped with the current time.
func (j *Journal) Record(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO connectivity_events (occurred_at, source, from_state, to_state, detail)
		VALUES (?, ?, ?, ?, ?)
	`, e.OccurredAt.UTC().Format(timestampLayout), e.Source, e.From, e.To, e.Detail)
	if err != nil {
		return fmt.Errorf("recording %s event: %w", e.Source, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, occurred_at, source, from_state, to_state, detail
		FROM connectivity_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var occurredAt string
		if err := rows.Scan(&e.ID, &occurredAt, &e.Source, &e.From, &e.To, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.OccurredAt, _ = time.Parse(timestampLayout, occurredAt) //nolint:errcheck // Format is controlled
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// Prune deletes events older than before and returns how many went.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM connectivity_events WHERE occurred_at < ?",
		before.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	return res.RowsAffected()
}

// RunPruner deletes events older than retention once per interval until
// ctx is cancelled.
func (j *Journal) RunPruner(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Prune(ctx, j.now().Add(-retention)); err != nil {
				j.logger.Warn("event prune failed", "error", err)
			}
		}
	}
}

// LinkChanged records a link transition.
func (j *Journal) LinkChanged(from, to link.State) {
	j.record(Event{Source: SourceLink, From: from.String(), To: to.String()})
}

// SessionChanged records a session transition.
func (j *Journal) SessionChanged(from, to session.State) {
	j.record(Event{Source: SourceSession, From: from.String(), To: to.String()})
}

// LightChanged records the lamp state after a change.
func (j *Journal) LightChanged(s light.Snapshot) {
	to := "off"
	if s.On {
		to = "on"
	}
	j.record(Event{
		Source: SourceLight,
		To:     to,
		Detail: "brightness=" + strconv.Itoa(s.Brightness) + " mode=" + strconv.Itoa(s.Mode),
	})
}

func (j *Journal) record(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := j.Record(ctx, e); err != nil {
		j.logger.Warn("journal write failed", "source", e.Source, "error", err)
	}
}
