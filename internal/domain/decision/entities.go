package decision

import (
	"errors"
	"time"

	"creditflow-backend/internal/domain/loan"
)

var (
	ErrNotFound = errors.New("decision not found")
)

// Table: loan_decisions
type Decision struct {
	// Internal numeric PK
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Public identifier (32-char lowercase hex)
	DecisionID string `gorm:"column:decision_id;type:char(32);not null;uniqueIndex:ux_loan_decisions_decision_id"`
	// FK to loan_applications.id; unique so a second decision on the same loan fails at the db
	LoanID          uint64            `gorm:"column:loan_id;not null;uniqueIndex:ux_loan_decisions_loan"`
	ReviewerID      string            `gorm:"column:reviewer_id;size:64;not null"`
	Kind            loan.DecisionKind `gorm:"column:kind;size:16;not null"`
	Comments        string            `gorm:"column:comments;size:500;not null"`
	PreviousVersion string            `gorm:"column:previous_version;type:char(32);not null"`
	NewVersion      string            `gorm:"column:new_version;type:char(32);not null"`
	DecidedAt       time.Time         `gorm:"column:decided_at;not null"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (Decision) TableName() string { return "loan_decisions" }
