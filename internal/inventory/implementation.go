// internal/inventory/implementation.go
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const setTotalRetries = 3

// ledger implements the Ledger interface over the books table.
type ledger struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// NewLedger creates a ledger over an already-migrated books table (the
// catalog store owns the schema).
func NewLedger(db *sqlx.DB, log zerolog.Logger) Ledger {
	return &ledger{db: db, log: log.With().Str("component", "inventory").Logger()}
}

// Reserve decrements available_copies with the availability check inside the
// statement itself. Two callers racing for the last copy resolve on the
// affected-row count, not on anything read beforehand.
func (l *ledger) Reserve(ctx context.Context, bookID uuid.UUID) error {
	query := l.db.Rebind(`
		UPDATE books
		SET available_copies = available_copies - 1, updated_at = ?
		WHERE id = ? AND available_copies > 0
	`)
	res, err := l.db.ExecContext(ctx, query, time.Now(), bookID)
	if err != nil {
		return fmt.Errorf("failed to reserve copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		if _, err := l.Counts(ctx, bookID); err != nil {
			return err
		}
		return ErrOutOfStock
	}
	return nil
}

// Release increments available_copies, guarded so the counter never exceeds
// total_copies. A clamped release is logged and reported as success.
func (l *ledger) Release(ctx context.Context, bookID uuid.UUID) error {
	query := l.db.Rebind(`
		UPDATE books
		SET available_copies = available_copies + 1, updated_at = ?
		WHERE id = ? AND available_copies < total_copies
	`)
	res, err := l.db.ExecContext(ctx, query, time.Now(), bookID)
	if err != nil {
		return fmt.Errorf("failed to release copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		if _, err := l.Counts(ctx, bookID); err != nil {
			return err
		}
		l.log.Warn().Stringer("book_id", bookID).Msg("release clamped at total_copies")
	}
	return nil
}

// SetTotal is a compare-and-swap loop: read both counters, compute the new
// pair in memory, and write only if neither counter moved in between.
func (l *ledger) SetTotal(ctx context.Context, bookID uuid.UUID, n int) error {
	if n < 0 {
		return fmt.Errorf("total copies must not be negative, got %d", n)
	}

	for attempt := 0; attempt < setTotalRetries; attempt++ {
		cur, err := l.Counts(ctx, bookID)
		if err != nil {
			return err
		}

		outstanding := cur.Total - cur.Available
		available := n - outstanding
		if available < 0 {
			available = 0
		}
		if available > n {
			available = n
		}

		query := l.db.Rebind(`
			UPDATE books
			SET total_copies = ?, available_copies = ?, updated_at = ?
			WHERE id = ? AND total_copies = ? AND available_copies = ?
		`)
		res, err := l.db.ExecContext(ctx, query, n, available, time.Now(), bookID, cur.Total, cur.Available)
		if err != nil {
			return fmt.Errorf("failed to set total copies: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 1 {
			return nil
		}
	}
	return ErrConflict
}

func (l *ledger) Counts(ctx context.Context, bookID uuid.UUID) (Counts, error) {
	var c Counts
	query := l.db.Rebind(`SELECT available_copies, total_copies FROM books WHERE id = ?`)
	if err := l.db.GetContext(ctx, &c, query, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Counts{}, ErrNotFound
		}
		return Counts{}, fmt.Errorf("failed to read counters: %w", err)
	}
	return c, nil
}
