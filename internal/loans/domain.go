// internal/loans/domain.go
package loans

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Loan period is a fixed policy: due two weeks after the borrow date.
const PeriodDays = 14

var (
	// ErrNotFound means no loan row has that id.
	ErrNotFound = errors.New("loan not found")
	// ErrDuplicateActiveLoan means the user already holds this book.
	ErrDuplicateActiveLoan = errors.New("active loan already exists for this user and book")
	// ErrAlreadyReturned reports a second return of the same loan, so callers
	// can tell a double submit apart from success.
	ErrAlreadyReturned = errors.New("loan already returned")
)

// Status is the persisted loan state.
type Status string

const (
	StatusBorrowed Status = "borrowed"
	StatusOverdue  Status = "overdue"
	StatusReturned Status = "returned"
)

// Clock supplies the single time source used by the borrow path, the list
// queries and the sweep. Overdue is always judged against the same today.
type Clock func() time.Time

// Loan is one borrow event. Returned is terminal; the row never changes again.
type Loan struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	BookID     uuid.UUID  `json:"book_id" db:"book_id"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     Status     `json:"status" db:"status"`
}

// Active reports whether the loan still holds a copy.
func (l Loan) Active() bool {
	return l.Status == StatusBorrowed || l.Status == StatusOverdue
}

// EffectiveStatus is the one overdue predicate: a borrowed loan whose due
// date lies before today reads as overdue, whether or not a sweep ran.
func (l Loan) EffectiveStatus(today time.Time) Status {
	if l.Status == StatusBorrowed && DateOf(today).After(DateOf(l.DueDate)) {
		return StatusOverdue
	}
	return l.Status
}

// DateOf truncates a timestamp to its calendar date in its own location.
// Due dates carry no time-of-day component.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
