package decision

import (
	"time"

	"creditflow-backend/internal/domain/loan"
)

type DecideInput struct {
	LoanID          string
	ExpectedVersion string // 32-char hex the reviewer last observed
	Kind            loan.DecisionKind
	Comments        string
}

type DecisionDTO struct {
	DecisionID string    `json:"decision_id"`
	LoanID     string    `json:"loan_id"`
	Kind       string    `json:"decision"`
	Status     string    `json:"status"`
	Comments   string    `json:"comments"`
	ReviewerID string    `json:"reviewer_id"`
	DecidedAt  time.Time `json:"decided_at"`
	Version    string    `json:"version"`
}

type ReviewDTO struct {
	LoanID     string `json:"loan_id"`
	Status     string `json:"status"`
	ReviewerID string `json:"reviewer_id"`
	Version    string `json:"version"`
}
