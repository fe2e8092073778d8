// internal/borrowing/implementation.go
package borrowing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librum/internal/audit"
	"librum/internal/inventory"
	"librum/internal/loans"
)

// service implements the Service interface.
type service struct {
	catalog  Catalog
	ledger   inventory.Ledger
	loans    loans.Store
	recorder audit.Recorder
	log      zerolog.Logger
	tracer   trace.Tracer
}

// NewService creates the borrowing service.
func NewService(cat Catalog, ledger inventory.Ledger, store loans.Store, recorder audit.Recorder, log zerolog.Logger) Service {
	return &service{
		catalog:  cat,
		ledger:   ledger,
		loans:    store,
		recorder: recorder,
		log:      log.With().Str("component", "borrowing").Logger(),
		tracer:   otel.Tracer("librum/borrowing"),
	}
}

// Borrow reserves a copy, then creates the loan. The reservation is the only
// step that needs compensation: if the loan insert fails afterwards, the
// copy goes back, and a failed rollback escalates to an invariant violation.
func (s *service) Borrow(ctx context.Context, userID, bookID uuid.UUID) (*BorrowResult, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.borrow",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	exists, err := s.catalog.BookExists(ctx, bookID)
	if err != nil {
		borrowOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to check book existence: %w", err)
	}
	if !exists {
		borrowOutcomes.WithLabelValues("book_not_found").Inc()
		return nil, ErrBookNotFound
	}

	active, err := s.loans.HasActiveLoan(ctx, userID, bookID)
	if err != nil {
		borrowOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to check active loan: %w", err)
	}
	if active {
		borrowOutcomes.WithLabelValues("already_borrowed").Inc()
		return nil, ErrAlreadyBorrowed
	}

	if err := s.ledger.Reserve(ctx, bookID); err != nil {
		switch {
		case errors.Is(err, inventory.ErrOutOfStock):
			borrowOutcomes.WithLabelValues("out_of_stock").Inc()
			return nil, ErrOutOfStock
		case errors.Is(err, inventory.ErrNotFound):
			borrowOutcomes.WithLabelValues("book_not_found").Inc()
			return nil, ErrBookNotFound
		default:
			borrowOutcomes.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to reserve copy: %w", err)
		}
	}

	loan, err := s.loans.Create(ctx, userID, bookID)
	if err != nil {
		if relErr := s.ledger.Release(ctx, bookID); relErr != nil {
			s.log.Error().
				Err(relErr).
				Stringer("book_id", bookID).
				Msg("reservation rollback failed, counters need operator attention")
			span.RecordError(relErr)
			borrowOutcomes.WithLabelValues("invariant_violation").Inc()
			return nil, fmt.Errorf("%w: reservation rollback failed: %v", ErrInvariantViolation, relErr)
		}
		if errors.Is(err, loans.ErrDuplicateActiveLoan) {
			borrowOutcomes.WithLabelValues("already_borrowed").Inc()
			return nil, ErrAlreadyBorrowed
		}
		borrowOutcomes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	s.notify(ctx, audit.Entry{
		Action:     audit.ActionBookBorrowed,
		EntityType: "loan",
		EntityID:   loan.ID,
		ActorID:    userID,
		At:         loan.BorrowDate,
	})
	borrowOutcomes.WithLabelValues("ok").Inc()

	return &BorrowResult{LoanID: loan.ID, DueDate: loan.DueDate}, nil
}

func (s *service) ReturnLoan(ctx context.Context, loanID, actorID uuid.UUID, asAdmin bool) error {
	ctx, span := s.tracer.Start(ctx, "borrowing.return",
		trace.WithAttributes(
			attribute.String("loan.id", loanID.String()),
			attribute.Bool("actor.admin", asAdmin),
		),
	)
	defer span.End()

	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, loans.ErrNotFound) {
			returnOutcomes.WithLabelValues("not_found").Inc()
			return ErrLoanNotFound
		}
		returnOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to get loan: %w", err)
	}
	if !asAdmin && loan.UserID != actorID {
		returnOutcomes.WithLabelValues("forbidden").Inc()
		return ErrForbidden
	}

	// The transition is the atomic guard; of two racing returns only the one
	// whose update takes effect proceeds to release the copy.
	if err := s.loans.MarkReturned(ctx, loanID); err != nil {
		switch {
		case errors.Is(err, loans.ErrAlreadyReturned):
			returnOutcomes.WithLabelValues("already_returned").Inc()
			return ErrAlreadyReturned
		case errors.Is(err, loans.ErrNotFound):
			returnOutcomes.WithLabelValues("not_found").Inc()
			return ErrLoanNotFound
		default:
			returnOutcomes.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to mark loan returned: %w", err)
		}
	}

	if err := s.ledger.Release(ctx, loan.BookID); err != nil {
		// A reservation was made at borrow time, so this release can only
		// fail if the data is already inconsistent.
		s.log.Error().
			Err(err).
			Stringer("book_id", loan.BookID).
			Stringer("loan_id", loanID).
			Msg("release after return failed, counters need operator attention")
		span.RecordError(err)
		returnOutcomes.WithLabelValues("invariant_violation").Inc()
		return fmt.Errorf("%w: release after return failed: %v", ErrInvariantViolation, err)
	}

	action := audit.ActionBookReturned
	if asAdmin {
		action = audit.ActionConfirmedReturn
	}
	s.notify(ctx, audit.Entry{
		Action:     action,
		EntityType: "loan",
		EntityID:   loanID,
		ActorID:    actorID,
		At:         time.Now(),
	})
	returnOutcomes.WithLabelValues("ok").Inc()

	return nil
}

func (s *service) ActiveLoans(ctx context.Context, userID uuid.UUID) ([]loans.Loan, error) {
	return s.loans.ListActive(ctx, userID)
}

func (s *service) ReturnedLoans(ctx context.Context, userID uuid.UUID, limit int) ([]loans.Loan, error) {
	return s.loans.ListReturned(ctx, userID, limit)
}

func (s *service) OverdueLoans(ctx context.Context) ([]loans.Loan, error) {
	return s.loans.ListOverdue(ctx)
}

func (s *service) RunOverdueSweep(ctx context.Context) (int64, error) {
	n, err := s.loans.SweepOverdue(ctx)
	if err != nil {
		return 0, err
	}
	sweepTransitions.Add(float64(n))
	return n, nil
}

// notify sends the audit entry and swallows failures: the trail is
// best-effort and must never undo a committed operation.
func (s *service) notify(ctx context.Context, e audit.Entry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("action", e.Action).Msg("audit record failed")
	}
}
