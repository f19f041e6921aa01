package loan

import (
	"fmt"
	"strings"
	"time"

	"creditflow-backend/internal/domain/pricing"
)

type DecisionKind string

const (
	DecisionApprove DecisionKind = "Approve"
	DecisionReject  DecisionKind = "Reject"
)

func (k DecisionKind) Valid() bool { return k == DecisionApprove || k == DecisionReject }

func (k DecisionKind) Outcome() Status {
	if k == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// transitions lists every legal edge. Approved and Rejected have none.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

// IsPending reports whether a reviewer may decide on an application in s.
func (s Status) IsPending() bool { return s == StatusSubmitted || s == StatusUnderReview }

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func invalidTransition(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// NewApplication prices the inputs and returns a Draft owned by the actor.
// Callers assign LoanID and Version before persisting.
func NewApplication(owner Actor, in Inputs, now time.Time) *Application {
	l := &Application{
		ApplicantID:    owner.UserID,
		ApplicantEmail: owner.Email,
		ApplicantName:  owner.Name,
		Status:         StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	l.apply(in)
	return l
}

func (l *Application) apply(in Inputs) {
	terms := pricing.Price(in.pricing())

	l.LoanAmount = in.LoanAmount
	l.TermMonths = in.TermMonths
	l.Purpose = in.Purpose
	l.EmployerName = in.EmployerName
	l.JobTitle = in.JobTitle
	l.YearsEmployed = in.YearsEmployed
	l.MonthlyIncome = in.MonthlyIncome
	l.MonthlyExpenses = in.MonthlyExpenses

	l.InterestRate = terms.InterestRate
	l.MonthlyPayment = terms.MonthlyPayment
	l.TotalInterest = terms.TotalInterest
	l.DebtToIncomeRatio = terms.DebtToIncomeRatio
	l.RiskTier = terms.RiskTier
}

// EnsureDraft guards owner edits.
func (l *Application) EnsureDraft() error {
	if l.Status != StatusDraft {
		return fmt.Errorf("%w: application is %s, only Draft can be edited", ErrInvalidTransition, l.Status)
	}
	return nil
}

// Reprice replaces the inputs and every computed field together.
func (l *Application) Reprice(in Inputs) error {
	if err := l.EnsureDraft(); err != nil {
		return err
	}
	l.apply(in)
	return nil
}

func (l *Application) Submit(now time.Time) error {
	if l.Status != StatusDraft {
		return invalidTransition(l.Status, StatusSubmitted)
	}
	if l.LoanAmount.Sign() <= 0 {
		return fmt.Errorf("%w: loan amount must be positive to submit", ErrInvalidTransition)
	}
	l.Status = StatusSubmitted
	l.SubmittedAt = &now
	return nil
}

func (l *Application) StartReview(reviewerID string) error {
	if l.Status != StatusSubmitted {
		return invalidTransition(l.Status, StatusUnderReview)
	}
	l.Status = StatusUnderReview
	l.ReviewerID = &reviewerID
	return nil
}

// Decide moves a pending application to its terminal status. The state is
// checked before the comments so that a terminal application always reports
// ErrInvalidTransition.
func (l *Application) Decide(kind DecisionKind, reviewerID, comments string, now time.Time) error {
	if !kind.Valid() {
		return NewValidationError("decision", "must be Approve or Reject")
	}
	to := kind.Outcome()
	if !l.Status.CanTransitionTo(to) {
		return invalidTransition(l.Status, to)
	}
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return NewValidationError("comments", "required")
	}
	l.Status = to
	l.ReviewerID = &reviewerID
	l.ReviewerComments = &comments
	l.DecidedAt = &now
	return nil
}

func (l *Application) Approve(reviewerID, comments string, now time.Time) error {
	return l.Decide(DecisionApprove, reviewerID, comments, now)
}

func (l *Application) Reject(reviewerID, comments string, now time.Time) error {
	return l.Decide(DecisionReject, reviewerID, comments, now)
}

// Affordable reports whether the priced payment fits the applicant's income.
func (l *Application) Affordable() bool {
	return pricing.Affordable(l.MonthlyPayment, l.MonthlyIncome)
}
