package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	loanDomain "creditflow-backend/internal/domain/loan"
	"creditflow-backend/pkg/id"

	"gorm.io/gorm"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

// Tx runs fn in a db transaction, passing a repo bound to the tx
func (r *LoanRepository) Tx(ctx context.Context, fn func(repo loanDomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LoanRepository{db: tx})
	})
}

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Application) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Application, error) {
	var out loanDomain.Application
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", loanDomain.ErrNotFound, loanID)
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &out, nil
}

// CompareAndSwap never holds a row lock. The version read up front gives a
// clear error for stale callers; the UPDATE's version predicate is what
// actually serializes concurrent writers.
func (r *LoanRepository) CompareAndSwap(ctx context.Context, loanID, expectedVersion string, mutate loanDomain.Mutator) (*loanDomain.Application, error) {
	current, err := r.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: loan %s is at a newer version", loanDomain.ErrConcurrencyConflict, loanID)
	}

	next := *current
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.Version = id.NewVersion()
	next.UpdatedAt = time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&loanDomain.Application{}).
		Where("loan_id = ? AND version = ?", loanID, expectedVersion).
		Updates(mutableColumns(&next))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: loan %s changed during update", loanDomain.ErrConcurrencyConflict, loanID)
	}
	return &next, nil
}

// mutableColumns is every column a lifecycle or draft edit may touch. Identity
// and ownership columns are never updated.
func mutableColumns(l *loanDomain.Application) map[string]any {
	return map[string]any{
		"loan_amount":          l.LoanAmount,
		"term_months":          l.TermMonths,
		"purpose":              l.Purpose,
		"employer_name":        l.EmployerName,
		"job_title":            l.JobTitle,
		"years_employed":       l.YearsEmployed,
		"monthly_income":       l.MonthlyIncome,
		"monthly_expenses":     l.MonthlyExpenses,
		"interest_rate":        l.InterestRate,
		"monthly_payment":      l.MonthlyPayment,
		"total_interest":       l.TotalInterest,
		"debt_to_income_ratio": l.DebtToIncomeRatio,
		"risk_tier":            l.RiskTier,
		"status":               l.Status,
		"submitted_at":         l.SubmittedAt,
		"reviewer_id":          l.ReviewerID,
		"reviewer_comments":    l.ReviewerComments,
		"decided_at":           l.DecidedAt,
		"updated_at":           l.UpdatedAt,
		"version":              l.Version,
	}
}

func (r *LoanRepository) ListByApplicant(ctx context.Context, applicantID string) ([]loanDomain.Application, error) {
	var out []loanDomain.Application
	res := r.db.WithContext(ctx).
		Where("applicant_id = ?", applicantID).
		Order("created_at DESC, id DESC").
		Find(&out)
	return out, res.Error
}

func (r *LoanRepository) ListByStatus(ctx context.Context, statuses ...loanDomain.Status) ([]loanDomain.Application, error) {
	var out []loanDomain.Application
	if len(statuses) == 0 {
		return out, nil
	}
	res := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("submitted_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}
