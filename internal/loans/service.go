// internal/loans/service.go
package loans

import (
	"context"

	"github.com/google/uuid"
)

// Store owns loan records and their state machine. State transitions are
// conditional updates; callers learn about races from the returned errors,
// never from stale reads.
type Store interface {
	// Create inserts a new borrowed loan, guarded against a second active
	// loan for the same (user, book) pair. ErrDuplicateActiveLoan otherwise.
	Create(ctx context.Context, userID, bookID uuid.UUID) (*Loan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	HasActiveLoan(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	// MarkReturned transitions the loan to returned exactly once.
	// ErrAlreadyReturned on any later attempt, ErrNotFound for unknown ids.
	MarkReturned(ctx context.Context, id uuid.UUID) error
	// ListActive returns the user's open loans with overdue computed live.
	ListActive(ctx context.Context, userID uuid.UUID) ([]Loan, error)
	// ListOverdue returns every loan past due, unifying rows already swept
	// to overdue with borrowed rows whose due date has passed.
	ListOverdue(ctx context.Context) ([]Loan, error)
	ListReturned(ctx context.Context, userID uuid.UUID, limit int) ([]Loan, error)
	// SweepOverdue materializes overdue status on borrowed loans past due.
	// Idempotent; the read paths derive the same set without it.
	SweepOverdue(ctx context.Context) (int64, error)
}
