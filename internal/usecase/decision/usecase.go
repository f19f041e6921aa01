package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creditflow-backend/internal/domain/audit"
	decisionDomain "creditflow-backend/internal/domain/decision"
	"creditflow-backend/internal/domain/event"
	"creditflow-backend/internal/domain/loan"
	"creditflow-backend/internal/domain/uow"
	"creditflow-backend/pkg/id"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("creditflow-backend/usecase/decision")

type Usecase struct {
	loanRepo     loan.Repository
	decisionRepo decisionDomain.Repository
	uow          uow.UnitOfWork
	emit         event.Emitter
	now          func() time.Time
}

// NewUsecase: pass both repos and a UoW for tx flows.
func NewUsecase(loans loan.Repository, decisions decisionDomain.Repository, tx uow.UnitOfWork, emit event.Emitter) *Usecase {
	if emit == nil {
		emit = event.NopEmitter{}
	}
	return &Usecase{
		loanRepo:     loans,
		decisionRepo: decisions,
		uow:          tx,
		emit:         emit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func requireReviewer(actor loan.Actor) error {
	if !actor.IsReviewer || actor.UserID == "" {
		return fmt.Errorf("%w: reviewers only", loan.ErrUnauthorized)
	}
	return nil
}

func ensureNotOwn(actor loan.Actor, l *loan.Application) error {
	if actor.Owns(l) {
		return fmt.Errorf("%w: reviewers cannot act on their own application", loan.ErrUnauthorized)
	}
	return nil
}

// Decide approves or rejects a pending application the reviewer last saw at
// ExpectedVersion. It never retries: a ConcurrencyConflict goes back to the
// caller, who must re-read before deciding again.
func (u *Usecase) Decide(ctx context.Context, actor loan.Actor, in DecideInput) (_ *DecisionDTO, err error) {
	ctx, span := tracer.Start(ctx, "decision.Decide", trace.WithAttributes(
		attribute.String("loan.id", in.LoanID),
		attribute.String("decision.kind", string(in.Kind)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	comments := strings.TrimSpace(in.Comments)
	ve := &loan.ValidationError{}
	if comments == "" {
		ve.Add("comments", "required")
	}
	if !in.Kind.Valid() {
		ve.Add("decision", "must be Approve or Reject")
	}
	if in.ExpectedVersion == "" {
		ve.Add("version", "required")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var (
		dto     *DecisionDTO
		decided loan.Application
		from    loan.Status
		now     = u.now()
	)
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *loan.Application) error {
		if err := ensureNotOwn(actor, l); err != nil {
			return err
		}
		if !l.Status.IsPending() {
			if l.Status.IsTerminal() {
				lost, err := lostRace(ctx, r.Decisions, l, in.ExpectedVersion)
				if err != nil {
					return err
				}
				if lost {
					return fmt.Errorf("%w: loan %s was decided by another reviewer", loan.ErrConcurrencyConflict, l.LoanID)
				}
			}
			return fmt.Errorf("%w: loan %s is %s", loan.ErrInvalidTransition, l.LoanID, l.Status)
		}
		if l.Version != in.ExpectedVersion {
			return fmt.Errorf("%w: loan %s is at a newer version", loan.ErrConcurrencyConflict, l.LoanID)
		}

		from = l.Status
		updated, err := r.Loans.CompareAndSwap(ctx, l.LoanID, in.ExpectedVersion, func(a *loan.Application) error {
			return a.Decide(in.Kind, actor.UserID, comments, now)
		})
		if err != nil {
			return err
		}

		d := &decisionDomain.Decision{
			DecisionID:      id.NewVersion(),
			LoanID:          l.ID,
			ReviewerID:      actor.UserID,
			Kind:            in.Kind,
			Comments:        comments,
			PreviousVersion: in.ExpectedVersion,
			NewVersion:      updated.Version,
			DecidedAt:       now,
		}
		if err := r.Decisions.Create(ctx, d); err != nil {
			return err
		}

		decided = *updated
		dto = &DecisionDTO{
			DecisionID: d.DecisionID,
			LoanID:     updated.LoanID,
			Kind:       string(d.Kind),
			Status:     string(updated.Status),
			Comments:   comments,
			ReviewerID: actor.UserID,
			DecidedAt:  now,
			Version:    updated.Version,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := audit.ActionApproved
	if decided.Status == loan.StatusRejected {
		action = audit.ActionRejected
	}
	u.emit.Emit(ctx, event.Transition{Loan: decided, From: from, Actor: actor, Action: action, Detail: comments, At: now})
	return dto, nil
}

// lostRace reports whether expected is the version the winning decision
// consumed. Such a caller raced another reviewer and lost, which is a
// conflict; any other version against a decided loan is an invalid
// transition.
func lostRace(ctx context.Context, decisions decisionDomain.Repository, l *loan.Application, expected string) (bool, error) {
	d, err := decisions.GetByLoanID(ctx, l.ID)
	if errors.Is(err, decisionDomain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return d.PreviousVersion == expected, nil
}

// OpenForReview marks a Submitted application as being looked at. An empty
// expectedVersion opens whatever version is current.
func (u *Usecase) OpenForReview(ctx context.Context, actor loan.Actor, loanID, expectedVersion string) (_ *ReviewDTO, err error) {
	ctx, span := tracer.Start(ctx, "decision.OpenForReview", trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	l, err := u.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotOwn(actor, l); err != nil {
		return nil, err
	}
	if expectedVersion == "" {
		expectedVersion = l.Version
	}

	updated, err := u.loanRepo.CompareAndSwap(ctx, loanID, expectedVersion, func(a *loan.Application) error {
		return a.StartReview(actor.UserID)
	})
	if err != nil {
		return nil, err
	}
	u.emit.Emit(ctx, event.Transition{Loan: *updated, From: l.Status, Actor: actor, Action: audit.ActionReviewStarted, At: u.now()})
	return &ReviewDTO{LoanID: updated.LoanID, Status: string(updated.Status), ReviewerID: actor.UserID, Version: updated.Version}, nil
}

// Get returns the decision on a loan to its applicant or any reviewer.
func (u *Usecase) Get(ctx context.Context, actor loan.Actor, loanID string) (*DecisionDTO, error) {
	l, err := u.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(l) && !actor.IsReviewer {
		return nil, fmt.Errorf("%w: loan %s belongs to another applicant", loan.ErrUnauthorized, loanID)
	}
	d, err := u.decisionRepo.GetByLoanID(ctx, l.ID)
	if errors.Is(err, decisionDomain.ErrNotFound) {
		return nil, fmt.Errorf("%w: loan %s has no decision yet", loan.ErrNotFound, loanID)
	}
	if err != nil {
		return nil, err
	}
	return &DecisionDTO{
		DecisionID: d.DecisionID,
		LoanID:     l.LoanID,
		Kind:       string(d.Kind),
		Status:     string(d.Kind.Outcome()),
		Comments:   d.Comments,
		ReviewerID: d.ReviewerID,
		DecidedAt:  d.DecidedAt,
		Version:    d.NewVersion,
	}, nil
}
