// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"librum/internal/inventory"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id               TEXT PRIMARY KEY,
	isbn             TEXT NOT NULL,
	title            TEXT NOT NULL,
	author           TEXT NOT NULL,
	total_copies     INTEGER NOT NULL DEFAULT 0,
	available_copies INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_isbn ON books (isbn);
`

// service implements the Service interface.
type service struct {
	db     *sqlx.DB
	ledger inventory.Ledger
}

// NewService migrates the books table and returns the catalog service.
func NewService(db *sqlx.DB, ledger inventory.Ledger) (Service, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to migrate books table: %w", err)
	}
	return &service{db: db, ledger: ledger}, nil
}

// AddBook creates a new book with all copies available.
func (s *service) AddBook(ctx context.Context, isbn, title, author string, totalCopies int) (*Book, error) {
	if totalCopies < 0 {
		return nil, fmt.Errorf("total copies must not be negative, got %d", totalCopies)
	}

	now := time.Now()
	book := &Book{
		ID:              uuid.New(),
		ISBN:            isbn,
		Title:           title,
		Author:          author,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	query := s.db.Rebind(`
		INSERT INTO books (id, isbn, title, author, total_copies, available_copies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		book.ID, book.ISBN, book.Title, book.Author,
		book.TotalCopies, book.AvailableCopies, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}
	return book, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	var book Book
	query := s.db.Rebind(`
		SELECT id, isbn, title, author, total_copies, available_copies, created_at, updated_at
		FROM books WHERE id = ?
	`)
	if err := s.db.GetContext(ctx, &book, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &book, nil
}

func (s *service) BookExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(1) FROM books WHERE id = ?`)
	if err := s.db.GetContext(ctx, &n, query, id); err != nil {
		return false, fmt.Errorf("failed to check book existence: %w", err)
	}
	return n > 0, nil
}

// SetTotalCopies goes through the ledger; catalog edits must not touch the
// counters directly.
func (s *service) SetTotalCopies(ctx context.Context, id uuid.UUID, n int) error {
	if err := s.ledger.SetTotal(ctx, id, n); err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
