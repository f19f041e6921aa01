package mysql

import (
	"context"
	"errors"

	decisionDomain "creditflow-backend/internal/domain/decision"

	"gorm.io/gorm"
)

type DecisionRepository struct{ db *gorm.DB }

func NewDecisionRepository(db *gorm.DB) *DecisionRepository { return &DecisionRepository{db: db} }

func (r *DecisionRepository) Create(ctx context.Context, d *decisionDomain.Decision) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DecisionRepository) GetByLoanID(ctx context.Context, loanNumericID uint64) (*decisionDomain.Decision, error) {
	var out decisionDomain.Decision
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanNumericID).
		First(&out)
	return oneDecision(&out, res.Error)
}

func (r *DecisionRepository) GetByDecisionID(ctx context.Context, decisionID string) (*decisionDomain.Decision, error) {
	var out decisionDomain.Decision
	res := r.db.WithContext(ctx).
		Where("decision_id = ?", decisionID).
		First(&out)
	return oneDecision(&out, res.Error)
}

func oneDecision(d *decisionDomain.Decision, err error) (*decisionDomain.Decision, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, decisionDomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
