// internal/inventory/service.go
package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Ledger owns the copy counters. Every mutation of available_copies in the
// system goes through it; nothing else writes those columns.
type Ledger interface {
	// Reserve takes one available copy off the shelf. ErrOutOfStock when none
	// is left, ErrNotFound when the book is unknown.
	Reserve(ctx context.Context, bookID uuid.UUID) error
	// Release puts one copy back. Clamped at total_copies, so a stray double
	// release cannot push available past total.
	Release(ctx context.Context, bookID uuid.UUID) error
	// SetTotal adjusts total_copies to n and moves available_copies by the
	// same delta, floored at zero and at n minus the outstanding loans.
	SetTotal(ctx context.Context, bookID uuid.UUID, n int) error
	// Counts reads the current counters.
	Counts(ctx context.Context, bookID uuid.UUID) (Counts, error)
}
