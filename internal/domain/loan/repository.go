package loan

import "context"

// Mutator edits a copy of the persisted application. Returning an error
// aborts the write.
type Mutator func(l *Application) error

type Repository interface {
	// Create assigns the numeric ID; LoanID and Version must already be set.
	Create(ctx context.Context, l *Application) error

	// GetByLoanID returns ErrNotFound when no row matches.
	GetByLoanID(ctx context.Context, loanID string) (*Application, error)

	// CompareAndSwap applies mutate and a fresh version token in one write
	// that only succeeds while the stored version equals expectedVersion.
	// A mismatch, before or during the write, is ErrConcurrencyConflict.
	CompareAndSwap(ctx context.Context, loanID, expectedVersion string, mutate Mutator) (*Application, error)

	ListByApplicant(ctx context.Context, applicantID string) ([]Application, error)

	// ListByStatus orders by submission time, oldest first.
	ListByStatus(ctx context.Context, statuses ...Status) ([]Application, error)
}
