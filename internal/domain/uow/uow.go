package uow

import (
	"context"

	"creditflow-backend/internal/domain/decision"
	"creditflow-backend/internal/domain/document"
	"creditflow-backend/internal/domain/loan"
)

// Repos are bound to one transaction.
type Repos struct {
	Loans     loan.Repository
	Decisions decision.Repository
	Documents document.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: load the loan first, then pass it in; ErrNotFound if missing
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Application) error) error
}
