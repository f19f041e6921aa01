package loanmock

import (
	"context"

	domain "creditflow-backend/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset lookups return context.Canceled; unset writes succeed.
type Repo struct {
	CreateFn          func(ctx context.Context, l *domain.Application) error
	GetByLoanIDFn     func(ctx context.Context, loanID string) (*domain.Application, error)
	CompareAndSwapFn  func(ctx context.Context, loanID, expectedVersion string, mutate domain.Mutator) (*domain.Application, error)
	ListByApplicantFn func(ctx context.Context, applicantID string) ([]domain.Application, error)
	ListByStatusFn    func(ctx context.Context, statuses ...domain.Status) ([]domain.Application, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Application) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Application, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) CompareAndSwap(ctx context.Context, loanID, expectedVersion string, mutate domain.Mutator) (*domain.Application, error) {
	if m.CompareAndSwapFn != nil {
		return m.CompareAndSwapFn(ctx, loanID, expectedVersion, mutate)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByApplicant(ctx context.Context, applicantID string) ([]domain.Application, error) {
	if m.ListByApplicantFn != nil {
		return m.ListByApplicantFn(ctx, applicantID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Application, error) {
	if m.ListByStatusFn != nil {
		return m.ListByStatusFn(ctx, statuses...)
	}
	return nil, context.Canceled
}

// SwapOn returns a CompareAndSwapFn that behaves like the real repository
// against a single in-memory row: stale versions conflict, the mutator runs
// on a copy and the stored row gets version next.
func SwapOn(row *domain.Application, next string) func(context.Context, string, string, domain.Mutator) (*domain.Application, error) {
	return func(_ context.Context, loanID, expected string, mutate domain.Mutator) (*domain.Application, error) {
		if row == nil || row.LoanID != loanID {
			return nil, domain.ErrNotFound
		}
		if row.Version != expected {
			return nil, domain.ErrConcurrencyConflict
		}
		cp := *row
		if err := mutate(&cp); err != nil {
			return nil, err
		}
		cp.Version = next
		*row = cp
		return &cp, nil
	}
}
