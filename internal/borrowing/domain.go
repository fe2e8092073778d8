// internal/borrowing/domain.go
package borrowing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// The caller-facing error taxonomy. Store-level errors are translated into
// these so the presentation layer matches one set of kinds.
var (
	ErrBookNotFound    = errors.New("book not found")
	ErrLoanNotFound    = errors.New("loan not found")
	ErrOutOfStock      = errors.New("no copies available")
	ErrAlreadyBorrowed = errors.New("user already has an active loan for this book")
	ErrAlreadyReturned = errors.New("loan already returned")
	ErrForbidden       = errors.New("loan belongs to a different user")
	// ErrInvariantViolation marks a detectable inconsistency the system could
	// not correct, such as a failed reservation rollback. Needs an operator.
	ErrInvariantViolation = errors.New("inventory invariant violation")
)

// BorrowResult is the success payload of a borrow.
type BorrowResult struct {
	LoanID  uuid.UUID `json:"loan_id"`
	DueDate time.Time `json:"due_date"`
}
