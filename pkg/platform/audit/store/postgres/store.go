package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "ecoprado/pkg/domain"
	audit "ecoprado/pkg/platform/audit"
	txcontext "ecoprado/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id            UUID PRIMARY KEY,
	category      TEXT NOT NULL,
	timestamp     TIMESTAMPTZ NOT NULL,
	user_id       TEXT NOT NULL,
	action        TEXT NOT NULL,
	amount        TEXT NOT NULL DEFAULT '',
	counterparty  TEXT NOT NULL DEFAULT '',
	record_id     TEXT NOT NULL DEFAULT '',
	digest        TEXT NOT NULL DEFAULT '',
	decision      TEXT NOT NULL DEFAULT '',
	reason        TEXT NOT NULL DEFAULT '',
	request_id    TEXT NOT NULL DEFAULT '',
	actor_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_user_idx ON audit_events (user_id, timestamp);
`

// Store implements audit.Store on the audit_events table. Appends join a
// transaction carried on ctx so events can commit with the ledger write.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// Append inserts an event. Duplicate ids are ignored so redelivery is harmless.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, user_id, action,
			amount, counterparty, record_id, digest,
			decision, reason, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = txcontext.QuerierFrom(ctx, s.db).ExecContext(ctx, query,
		eventID,
		string(category),
		event.Timestamp,
		event.UserID.String(),
		event.Action,
		event.Amount,
		event.Counterparty,
		event.RecordID,
		event.Digest,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns events for a specific user, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, user_id, action,
			   amount, counterparty, record_id, digest,
			   decision, reason, request_id, actor_id
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := txcontext.QuerierFrom(ctx, s.db).QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, user_id, action,
			   amount, counterparty, record_id, digest,
			   decision, reason, request_id, actor_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := txcontext.QuerierFrom(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			eventID  uuid.UUID
			category string
			userID   string
		)
		err := rows.Scan(
			&eventID,
			&category,
			&event.Timestamp,
			&userID,
			&event.Action,
			&event.Amount,
			&event.Counterparty,
			&event.RecordID,
			&event.Digest,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = eventID.String()
		event.Category = audit.EventCategory(category)
		event.UserID = id.UserID(userID)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
