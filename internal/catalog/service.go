// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service is the catalog surface the rest of the system consumes. Copy-count
// edits are delegated to the inventory ledger so its invariants hold.
type Service interface {
	AddBook(ctx context.Context, isbn, title, author string, totalCopies int) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	BookExists(ctx context.Context, id uuid.UUID) (bool, error)
	SetTotalCopies(ctx context.Context, id uuid.UUID, n int) error
}
