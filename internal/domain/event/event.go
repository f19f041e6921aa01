// Package event names the notifications produced by lifecycle transitions and
// the subscriber groups they go to.
package event

import (
	"context"
	"time"

	"creditflow-backend/internal/domain/loan"
)

type Kind string

const (
	KindSubmissionConfirmed Kind = "submission-confirmed"
	KindNewSubmission       Kind = "new-submission"
	KindReviewStarted       Kind = "review-started"
	KindDecisionMade        Kind = "decision-made"
)

// ReviewersGroup is shared by every connected reviewer.
const ReviewersGroup = "reviewers"

func ApplicantGroup(applicantID string) string { return "applicant:" + applicantID }

// Event is what subscribers receive.
type Event struct {
	Kind       Kind        `json:"kind"`
	LoanID     string      `json:"loan_id"`
	Status     loan.Status `json:"status"`
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	Comments   *string     `json:"comments,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Transition is a committed change, handed to the notifier after the write
// that produced it. From is empty for a newly created application and equals
// the current status for Draft edits. Action is the audit action recorded for
// it; Detail is free text for the audit log.
type Transition struct {
	Loan   loan.Application
	From   loan.Status
	Actor  loan.Actor
	Action string
	Detail string
	At     time.Time
}

func (t Transition) To() loan.Status { return t.Loan.Status }

// Emitter receives committed transitions. Implementations must not block the
// caller on delivery and must not report delivery failures back.
type Emitter interface {
	Emit(ctx context.Context, t Transition)
}

type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Transition) {}
