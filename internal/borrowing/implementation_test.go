// internal/borrowing/implementation_test.go
package borrowing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librum/internal/audit"
	"librum/internal/borrowing"
	"librum/internal/catalog"
	"librum/internal/inventory"
	"librum/internal/loans"
	"librum/internal/testdb"
)

type recorderSpy struct {
	mu      sync.Mutex
	entries []audit.Entry
	fail    bool
}

func (r *recorderSpy) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("recorder down")
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *recorderSpy) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

type fakeClock struct {
	now time.Time
}

type fixture struct {
	cat    catalog.Service
	ledger inventory.Ledger
	store  loans.Store
	rec    *recorderSpy
	svc    borrowing.Service
	clock  *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)}

	ledger := inventory.NewLedger(db, zerolog.Nop())
	cat, err := catalog.NewService(db, ledger)
	require.NoError(t, err)
	store, err := loans.NewStore(db, func() time.Time { return clock.now })
	require.NoError(t, err)

	rec := &recorderSpy{}
	svc := borrowing.NewService(cat, ledger, store, rec, zerolog.Nop())
	return &fixture{cat: cat, ledger: ledger, store: store, rec: rec, svc: svc, clock: clock}
}

func (f *fixture) addBook(t *testing.T, copies int) uuid.UUID {
	t.Helper()
	book, err := f.cat.AddBook(context.Background(), "9780261103573", "The Hobbit", "J.R.R. Tolkien", copies)
	require.NoError(t, err)
	return book.ID
}

func (f *fixture) available(t *testing.T, bookID uuid.UUID) int {
	t.Helper()
	counts, err := f.ledger.Counts(context.Background(), bookID)
	require.NoError(t, err)
	return counts.Available
}

func TestBorrowHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 3)
	userID := uuid.New()

	result, err := f.svc.Borrow(ctx, userID, bookID)
	require.NoError(t, err)
	assert.Equal(t, loans.DateOf(f.clock.now).AddDate(0, 0, 14), result.DueDate)
	assert.Equal(t, 2, f.available(t, bookID))
	assert.Equal(t, []string{audit.ActionBookBorrowed}, f.rec.actions())

	loan, err := f.store.GetByID(ctx, result.LoanID)
	require.NoError(t, err)
	assert.Equal(t, userID, loan.UserID)
	assert.Equal(t, loans.StatusBorrowed, loan.Status)
}

func TestBorrowUnknownBook(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Borrow(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, borrowing.ErrBookNotFound)
	assert.Empty(t, f.rec.actions())
}

func TestBorrowDuplicateLeavesCountersAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 3)
	userID := uuid.New()

	_, err := f.svc.Borrow(ctx, userID, bookID)
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, userID, bookID)
	require.ErrorIs(t, err, borrowing.ErrAlreadyBorrowed)
	assert.Equal(t, 2, f.available(t, bookID), "failed borrow must not touch the counter")
}

func TestBorrowOutOfStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 1)

	_, err := f.svc.Borrow(ctx, uuid.New(), bookID)
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, uuid.New(), bookID)
	require.ErrorIs(t, err, borrowing.ErrOutOfStock)
	assert.Equal(t, 0, f.available(t, bookID))
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 2)
	userID := uuid.New()

	result, err := f.svc.Borrow(ctx, userID, bookID)
	require.NoError(t, err)
	require.NoError(t, f.svc.ReturnLoan(ctx, result.LoanID, userID, false))

	assert.Equal(t, 2, f.available(t, bookID), "round trip restores the counter")
	assert.Equal(t, []string{audit.ActionBookBorrowed, audit.ActionBookReturned}, f.rec.actions())
}

func TestReturnTwiceIsIdempotentSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 2)
	userID := uuid.New()

	result, err := f.svc.Borrow(ctx, userID, bookID)
	require.NoError(t, err)

	require.NoError(t, f.svc.ReturnLoan(ctx, result.LoanID, userID, false))
	err = f.svc.ReturnLoan(ctx, result.LoanID, userID, false)
	require.ErrorIs(t, err, borrowing.ErrAlreadyReturned)

	assert.Equal(t, 2, f.available(t, bookID), "copy count increases exactly once")
}

func TestReturnOwnershipCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 1)
	owner, stranger := uuid.New(), uuid.New()

	result, err := f.svc.Borrow(ctx, owner, bookID)
	require.NoError(t, err)

	err = f.svc.ReturnLoan(ctx, result.LoanID, stranger, false)
	require.ErrorIs(t, err, borrowing.ErrForbidden)
	assert.Equal(t, 0, f.available(t, bookID), "forbidden return releases nothing")

	// Admin confirm bypasses ownership, not state, and keeps its own audit name.
	admin := uuid.New()
	require.NoError(t, f.svc.ReturnLoan(ctx, result.LoanID, admin, true))
	assert.Equal(t, 1, f.available(t, bookID))
	assert.Equal(t, []string{audit.ActionBookBorrowed, audit.ActionConfirmedReturn}, f.rec.actions())

	err = f.svc.ReturnLoan(ctx, result.LoanID, admin, true)
	require.ErrorIs(t, err, borrowing.ErrAlreadyReturned, "admin does not bypass the state check")
}

func TestReturnUnknownLoan(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ReturnLoan(context.Background(), uuid.New(), uuid.New(), false)
	require.ErrorIs(t, err, borrowing.ErrLoanNotFound)
}

// failingCreateStore breaks the loan insert to exercise the compensation path.
type failingCreateStore struct {
	loans.Store
}

func (f *failingCreateStore) Create(context.Context, uuid.UUID, uuid.UUID) (*loans.Loan, error) {
	return nil, errors.New("insert failed")
}

func TestBorrowCompensatesFailedCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 2)

	svc := borrowing.NewService(f.cat, f.ledger, &failingCreateStore{Store: f.store}, f.rec, zerolog.Nop())
	_, err := svc.Borrow(ctx, uuid.New(), bookID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, borrowing.ErrInvariantViolation)

	assert.Equal(t, 2, f.available(t, bookID), "reservation rolled back")
	assert.Empty(t, f.rec.actions(), "no audit event for a failed borrow")
}

// failingReleaseLedger breaks the rollback itself.
type failingReleaseLedger struct {
	inventory.Ledger
}

func (f *failingReleaseLedger) Release(context.Context, uuid.UUID) error {
	return errors.New("release failed")
}

func TestBorrowRollbackFailureEscalates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 2)

	svc := borrowing.NewService(
		f.cat,
		&failingReleaseLedger{Ledger: f.ledger},
		&failingCreateStore{Store: f.store},
		f.rec,
		zerolog.Nop(),
	)
	_, err := svc.Borrow(ctx, uuid.New(), bookID)
	require.ErrorIs(t, err, borrowing.ErrInvariantViolation)
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.rec.fail = true
	ctx := context.Background()
	bookID := f.addBook(t, 1)
	userID := uuid.New()

	result, err := f.svc.Borrow(ctx, userID, bookID)
	require.NoError(t, err)
	require.NoError(t, f.svc.ReturnLoan(ctx, result.LoanID, userID, false))
}

func TestConcurrentBorrowLastCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 1)

	const attempts = 6
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Borrow(ctx, uuid.New(), bookID)
		}(i)
	}
	wg.Wait()

	var ok, outOfStock int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, borrowing.ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, outOfStock)
	assert.Equal(t, 0, f.available(t, bookID))
}

// The walkthrough scenario: two copies, three users.
func TestBorrowScenarioTwoCopiesThreeUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 2)
	userA, userB, userC := uuid.New(), uuid.New(), uuid.New()

	l1, err := f.svc.Borrow(ctx, userA, bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, bookID))

	_, err = f.svc.Borrow(ctx, userB, bookID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, bookID))

	_, err = f.svc.Borrow(ctx, userC, bookID)
	require.ErrorIs(t, err, borrowing.ErrOutOfStock)

	require.NoError(t, f.svc.ReturnLoan(ctx, l1.LoanID, userA, false))
	assert.Equal(t, 1, f.available(t, bookID))

	l3, err := f.svc.Borrow(ctx, userC, bookID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, bookID))

	loan, err := f.store.GetByID(ctx, l3.LoanID)
	require.NoError(t, err)
	assert.Equal(t, loans.StatusBorrowed, loan.Status)
}

func TestOverdueProjectionsAndSweepThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.addBook(t, 1)
	userID := uuid.New()

	_, err := f.svc.Borrow(ctx, userID, bookID)
	require.NoError(t, err)

	f.clock.now = f.clock.now.AddDate(0, 0, 15)

	overdue, err := f.svc.OverdueLoans(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1, "overdue derives live, no sweep needed")

	n, err := f.svc.RunOverdueSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := f.svc.ActiveLoans(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, loans.StatusOverdue, active[0].Status)
}
