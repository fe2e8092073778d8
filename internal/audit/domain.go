// internal/audit/domain.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names recorded in the trail. The admin confirm keeps its own name
// so the two return flows stay distinguishable downstream.
const (
	ActionBookBorrowed    = "BOOK_BORROWED"
	ActionBookReturned    = "BOOK_RETURNED"
	ActionConfirmedReturn = "BORROWING_CONFIRMED_RETURN"
)

// Entry is one immutable audit event describing a state-changing operation.
type Entry struct {
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	ActorID    uuid.UUID `json:"actor_id"`
	At         time.Time `json:"at"`
}

// Recorder receives audit entries. Recording is best-effort: callers log a
// failed Record and move on; it never rolls back the operation it describes.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}
