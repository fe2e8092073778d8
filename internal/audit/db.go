// internal/audit/db.go
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	actor_id    TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs (entity_type, entity_id);
`

// DBRecorder appends entries to an audit_logs table. Rows are insert-only;
// nothing in the system updates or deletes them.
type DBRecorder struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewDBRecorder migrates the audit_logs table and returns the recorder.
func NewDBRecorder(db *sqlx.DB) (*DBRecorder, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to migrate audit_logs table: %w", err)
	}
	return &DBRecorder{
		db:     db,
		tracer: otel.Tracer("librum/audit"),
	}, nil
}

func (r *DBRecorder) Record(ctx context.Context, e Entry) error {
	ctx, span := r.tracer.Start(ctx, "audit.record",
		trace.WithAttributes(
			attribute.String("audit.action", e.Action),
			attribute.String("audit.entity_type", e.EntityType),
		),
	)
	defer span.End()

	query := r.db.Rebind(`
		INSERT INTO audit_logs (id, action, entity_type, entity_id, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query,
		uuid.New(), e.Action, e.EntityType, e.EntityID, e.ActorID, e.At,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
