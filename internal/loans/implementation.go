// internal/loans/implementation.go
package loans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS loans (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	book_id     TEXT NOT NULL,
	borrow_date TIMESTAMP NOT NULL,
	due_date    TIMESTAMP NOT NULL,
	return_date TIMESTAMP,
	status      TEXT NOT NULL DEFAULT 'borrowed'
);
CREATE INDEX IF NOT EXISTS idx_loans_user_status ON loans (user_id, status);
CREATE INDEX IF NOT EXISTS idx_loans_due ON loans (status, due_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_active_pair
	ON loans (user_id, book_id) WHERE status IN ('borrowed', 'overdue');
`

// store implements Store over the loans table.
type store struct {
	db  *sqlx.DB
	now Clock
}

// NewStore migrates the loans table and returns the store. A nil clock
// defaults to time.Now.
func NewStore(db *sqlx.DB, now Clock) (Store, error) {
	if now == nil {
		now = time.Now
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to migrate loans table: %w", err)
	}
	return &store{db: db, now: now}, nil
}

// Create inserts through a guarded INSERT ... SELECT: the duplicate-active
// check runs inside the statement, so check and insert cannot interleave
// with another borrow for the same pair. The partial unique index on
// (user_id, book_id) backstops the same invariant.
func (s *store) Create(ctx context.Context, userID, bookID uuid.UUID) (*Loan, error) {
	borrowDate := s.now()
	loan := &Loan{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowDate,
		DueDate:    DateOf(borrowDate).AddDate(0, 0, PeriodDays),
		Status:     StatusBorrowed,
	}

	query := s.db.Rebind(`
		INSERT INTO loans (id, user_id, book_id, borrow_date, due_date, status)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM loans
			WHERE user_id = ? AND book_id = ? AND status IN ('borrowed', 'overdue')
		)
	`)
	res, err := s.db.ExecContext(ctx, query,
		loan.ID, loan.UserID, loan.BookID, loan.BorrowDate, loan.DueDate, loan.Status,
		userID, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrDuplicateActiveLoan
	}
	return loan, nil
}

func (s *store) GetByID(ctx context.Context, id uuid.UUID) (*Loan, error) {
	var loan Loan
	query := s.db.Rebind(`
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status
		FROM loans WHERE id = ?
	`)
	if err := s.db.GetContext(ctx, &loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return &loan, nil
}

func (s *store) HasActiveLoan(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	var n int
	query := s.db.Rebind(`
		SELECT COUNT(1) FROM loans
		WHERE user_id = ? AND book_id = ? AND status IN ('borrowed', 'overdue')
	`)
	if err := s.db.GetContext(ctx, &n, query, userID, bookID); err != nil {
		return false, fmt.Errorf("failed to check active loan: %w", err)
	}
	return n > 0, nil
}

// MarkReturned makes the state transition itself the atomic guard: the
// status filter in the UPDATE decides the race, and the affected-row count
// tells this caller whether it won.
func (s *store) MarkReturned(ctx context.Context, id uuid.UUID) error {
	query := s.db.Rebind(`
		UPDATE loans
		SET status = 'returned', return_date = ?
		WHERE id = ? AND status != 'returned'
	`)
	res, err := s.db.ExecContext(ctx, query, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark loan returned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyReturned
	}
	return nil
}

func (s *store) ListActive(ctx context.Context, userID uuid.UUID) ([]Loan, error) {
	var out []Loan
	query := s.db.Rebind(`
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status
		FROM loans
		WHERE user_id = ? AND status IN ('borrowed', 'overdue')
		ORDER BY due_date
	`)
	if err := s.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}
	today := s.now()
	for i := range out {
		out[i].Status = out[i].EffectiveStatus(today)
	}
	return out, nil
}

// ListOverdue mirrors the sweep's predicate at query time, so a loan due
// yesterday shows up here even if no sweep ever ran.
func (s *store) ListOverdue(ctx context.Context) ([]Loan, error) {
	var out []Loan
	query := s.db.Rebind(`
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status
		FROM loans
		WHERE status = 'overdue' OR (status = 'borrowed' AND due_date < ?)
		ORDER BY due_date
	`)
	if err := s.db.SelectContext(ctx, &out, query, DateOf(s.now())); err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	for i := range out {
		out[i].Status = StatusOverdue
	}
	return out, nil
}

func (s *store) ListReturned(ctx context.Context, userID uuid.UUID, limit int) ([]Loan, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Loan
	query := s.db.Rebind(`
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status
		FROM loans
		WHERE user_id = ? AND status = 'returned'
		ORDER BY return_date DESC
		LIMIT ?
	`)
	if err := s.db.SelectContext(ctx, &out, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list returned loans: %w", err)
	}
	return out, nil
}

func (s *store) SweepOverdue(ctx context.Context) (int64, error) {
	query := s.db.Rebind(`
		UPDATE loans
		SET status = 'overdue'
		WHERE status = 'borrowed' AND due_date < ?
	`)
	res, err := s.db.ExecContext(ctx, query, DateOf(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep overdue loans: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}
