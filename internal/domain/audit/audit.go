package audit

import (
	"context"
	"time"
)

const (
	ActionCreated       = "LoanCreated"
	ActionUpdated       = "LoanUpdated"
	ActionDocument      = "DocumentAttached"
	ActionSubmitted     = "LoanSubmitted"
	ActionReviewStarted = "ReviewStarted"
	ActionApproved      = "LoanApproved"
	ActionRejected      = "LoanRejected"
)

// Table: audit_logs
type Entry struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:64;not null;index:idx_audit_logs_user"`
	Action    string    `gorm:"column:action;size:64;not null"`
	Details   string    `gorm:"column:details;type:text"`
	Timestamp time.Time `gorm:"column:timestamp;not null"`
}

func (Entry) TableName() string { return "audit_logs" }

type Repository interface {
	Create(ctx context.Context, e *Entry) error
}
