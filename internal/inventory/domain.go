// internal/inventory/domain.go
package inventory

import "errors"

var (
	// ErrNotFound means the book has no counter row.
	ErrNotFound = errors.New("book not found")
	// ErrOutOfStock means no copy was available to reserve.
	ErrOutOfStock = errors.New("no copies available")
	// ErrConflict means a conditional update lost against concurrent writers.
	ErrConflict = errors.New("concurrent counter update conflict")
)

// Counts is a snapshot of one book's copy counters.
type Counts struct {
	Available int `db:"available_copies" json:"available"`
	Total     int `db:"total_copies" json:"total"`
}
