package decision

import "context"

type Repository interface {
	// Create a decision (db uniqueness ensures at most one per loan)
	Create(ctx context.Context, d *Decision) error

	// Get decision by numeric loan id; ErrNotFound if the loan is undecided
	GetByLoanID(ctx context.Context, loanID uint64) (*Decision, error)

	// Get by public decision_id
	GetByDecisionID(ctx context.Context, decisionID string) (*Decision, error)
}
