// Package observability records business events and simple metrics into a
// SQLite database shared with the session registry. All writes are
// best-effort: failures are logged via slog and never propagate, so a
// broken observability store cannot block capture traffic.
package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"pageforge/idgen"
)

// BusinessEvent represents a domain-level event to record.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string
	EntityID    string
	Action      string
	Details     string // optional JSON
	Success     bool
}

// EventLogger writes business events.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given database.
// The schema must already be applied via Init.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Errors are logged, not returned.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.ServiceName, event.EntityType,
		event.EntityID, event.Action, event.Details, event.Success,
		time.Now().Unix())
	if err != nil {
		slog.Error("observability event log failed", "error", err, "event_type", event.EventType)
	}
}

// CountEvents returns the number of recorded events of a type, or all
// events when eventType is empty. Used by admin surfaces and tests.
func (l *EventLogger) CountEvents(ctx context.Context, eventType string) (int, error) {
	var count int
	var err error
	if eventType == "" {
		err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM business_event_logs`).Scan(&count)
	} else {
		err = l.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM business_event_logs WHERE event_type = ?`, eventType).Scan(&count)
	}
	return count, err
}
