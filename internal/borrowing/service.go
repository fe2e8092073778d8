// internal/borrowing/service.go
package borrowing

import (
	"context"

	"github.com/google/uuid"

	"librum/internal/loans"
)

// Catalog is the slice of the catalog service the borrowing core consults.
type Catalog interface {
	BookExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service orchestrates the loan store and the inventory ledger. It holds no
// state of its own; both stores keep their own atomic guards.
type Service interface {
	Borrow(ctx context.Context, userID, bookID uuid.UUID) (*BorrowResult, error)
	// ReturnLoan returns a loan on behalf of actorID. Admins skip the
	// ownership comparison, never the state check.
	ReturnLoan(ctx context.Context, loanID, actorID uuid.UUID, asAdmin bool) error
	ActiveLoans(ctx context.Context, userID uuid.UUID) ([]loans.Loan, error)
	ReturnedLoans(ctx context.Context, userID uuid.UUID, limit int) ([]loans.Loan, error)
	OverdueLoans(ctx context.Context) ([]loans.Loan, error)
	RunOverdueSweep(ctx context.Context) (int64, error)
}
