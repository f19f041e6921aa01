package loan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"creditflow-backend/internal/domain/audit"
	"creditflow-backend/internal/domain/document"
	"creditflow-backend/internal/domain/event"
	domain "creditflow-backend/internal/domain/loan"
	"creditflow-backend/internal/domain/uow"
	"creditflow-backend/pkg/id"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("creditflow-backend/usecase/loan")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type Usecase struct {
	repo domain.Repository
	uow  uow.UnitOfWork
	emit event.Emitter
	now  func() time.Time
}

func NewUsecase(r domain.Repository, tx uow.UnitOfWork, emit event.Emitter) *Usecase {
	if emit == nil {
		emit = event.NopEmitter{}
	}
	return &Usecase{repo: r, uow: tx, emit: emit, now: func() time.Time { return time.Now().UTC() }}
}

// validateInput re-checks what the core needs to price and store an
// application. Tighter request bounds live at the HTTP layer. A zero amount is
// accepted here and refused at submission.
func validateInput(in ApplicationInput) error {
	ve := &domain.ValidationError{}
	if in.LoanAmount.Sign() < 0 {
		ve.Add("loan_amount", "must not be negative")
	}
	if in.TermMonths <= 0 {
		ve.Add("term_months", "must be positive")
	}
	if in.YearsEmployed < 0 {
		ve.Add("years_employed", "must not be negative")
	}
	if in.MonthlyIncome.Sign() < 0 {
		ve.Add("monthly_income", "must not be negative")
	}
	if in.MonthlyExpenses.Sign() < 0 {
		ve.Add("monthly_expenses", "must not be negative")
	}
	return ve.OrNil()
}

func (u *Usecase) Create(ctx context.Context, actor domain.Actor, in ApplicationInput) (_ *LoanDTO, err error) {
	ctx, span := tracer.Start(ctx, "loan.Create")
	defer func() { endSpan(span, err) }()

	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: anonymous caller", domain.ErrUnauthorized)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := u.now()
	l := domain.NewApplication(actor, in.domain(), now)
	l.LoanID = id.New()
	l.Version = id.NewVersion()

	if err := u.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("loan.id", l.LoanID), attribute.String("loan.risk_tier", string(l.RiskTier)))

	u.emit.Emit(ctx, event.Transition{Loan: *l, Actor: actor, Action: audit.ActionCreated, At: now})
	return ToDTO(l), nil
}

// load returns the application if the actor may see it: its owner, or any
// reviewer when reviewerMayRead is set.
func (u *Usecase) load(ctx context.Context, actor domain.Actor, loanID string, reviewerMayRead bool) (*domain.Application, error) {
	l, err := u.repo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if actor.Owns(l) || (reviewerMayRead && actor.IsReviewer) {
		return l, nil
	}
	return nil, fmt.Errorf("%w: loan %s belongs to another applicant", domain.ErrUnauthorized, loanID)
}

func (u *Usecase) Get(ctx context.Context, actor domain.Actor, loanID string) (*LoanDTO, error) {
	l, err := u.load(ctx, actor, loanID, true)
	if err != nil {
		return nil, err
	}
	return ToDTO(l), nil
}

func (u *Usecase) ListMine(ctx context.Context, actor domain.Actor) ([]LoanDTO, error) {
	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: anonymous caller", domain.ErrUnauthorized)
	}
	rows, err := u.repo.ListByApplicant(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return toDTOs(rows), nil
}

// ListPending is the reviewers' queue, oldest submission first.
func (u *Usecase) ListPending(ctx context.Context, actor domain.Actor) ([]LoanDTO, error) {
	if !actor.IsReviewer {
		return nil, fmt.Errorf("%w: reviewers only", domain.ErrUnauthorized)
	}
	rows, err := u.repo.ListByStatus(ctx, domain.StatusSubmitted, domain.StatusUnderReview)
	if err != nil {
		return nil, err
	}
	return toDTOs(rows), nil
}

func toDTOs(rows []domain.Application) []LoanDTO {
	out := make([]LoanDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *ToDTO(&rows[i]))
	}
	return out
}

// UpdateDraft replaces the applicant's inputs and reprices. expectedVersion
// must be the version the caller last read.
func (u *Usecase) UpdateDraft(ctx context.Context, actor domain.Actor, loanID, expectedVersion string, in ApplicationInput) (_ *LoanDTO, err error) {
	ctx, span := tracer.Start(ctx, "loan.UpdateDraft", trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer func() { endSpan(span, err) }()

	if err := validateInput(in); err != nil {
		return nil, err
	}
	l, err := u.load(ctx, actor, loanID, false)
	if err != nil {
		return nil, err
	}
	if expectedVersion == "" {
		return nil, domain.NewValidationError("version", "required")
	}
	if err := l.EnsureDraft(); err != nil {
		return nil, err
	}

	updated, err := u.repo.CompareAndSwap(ctx, loanID, expectedVersion, func(a *domain.Application) error {
		return a.Reprice(in.domain())
	})
	if err != nil {
		return nil, err
	}
	u.emit.Emit(ctx, event.Transition{Loan: *updated, From: l.Status, Actor: actor, Action: audit.ActionUpdated, At: u.now()})
	return ToDTO(updated), nil
}

// Submit moves a Draft to Submitted. An empty expectedVersion submits
// whatever version is current.
func (u *Usecase) Submit(ctx context.Context, actor domain.Actor, loanID, expectedVersion string) (_ *LoanDTO, err error) {
	ctx, span := tracer.Start(ctx, "loan.Submit", trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer func() { endSpan(span, err) }()

	l, err := u.load(ctx, actor, loanID, false)
	if err != nil {
		return nil, err
	}
	// State before version: a resubmit is never retryable.
	if l.Status != domain.StatusDraft {
		return nil, fmt.Errorf("%w: loan %s is %s", domain.ErrInvalidTransition, loanID, l.Status)
	}
	if expectedVersion == "" {
		expectedVersion = l.Version
	}

	now := u.now()
	updated, err := u.repo.CompareAndSwap(ctx, loanID, expectedVersion, func(a *domain.Application) error {
		return a.Submit(now)
	})
	if err != nil {
		return nil, err
	}
	u.emit.Emit(ctx, event.Transition{Loan: *updated, From: l.Status, Actor: actor, Action: audit.ActionSubmitted, At: now})
	return ToDTO(updated), nil
}

// AttachDocument records metadata for a file the applicant already uploaded.
// The attachment is a Draft edit: it bumps the version in the same
// transaction that inserts the document row.
func (u *Usecase) AttachDocument(ctx context.Context, actor domain.Actor, loanID, expectedVersion string, in AttachDocumentInput) (_ *DocumentDTO, err error) {
	ctx, span := tracer.Start(ctx, "loan.AttachDocument", trace.WithAttributes(attribute.String("loan.id", loanID)))
	defer func() { endSpan(span, err) }()

	in.FileName = strings.TrimSpace(in.FileName)
	in.FilePath = strings.TrimSpace(in.FilePath)
	ve := &domain.ValidationError{}
	if in.FileName == "" {
		ve.Add("file_name", "required")
	}
	if in.FilePath == "" {
		ve.Add("file_path", "required")
	}
	if in.SizeBytes <= 0 {
		ve.Add("size_bytes", "must be positive")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var (
		dto     DocumentDTO
		updated *domain.Application
		now     = u.now()
	)
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Application) error {
		if !actor.Owns(l) {
			return fmt.Errorf("%w: loan %s belongs to another applicant", domain.ErrUnauthorized, loanID)
		}
		if err := l.EnsureDraft(); err != nil {
			return err
		}
		version := expectedVersion
		if version == "" {
			version = l.Version
		}
		var err error
		updated, err = r.Loans.CompareAndSwap(ctx, loanID, version, func(a *domain.Application) error {
			return a.EnsureDraft()
		})
		if err != nil {
			return err
		}
		d := &document.Document{
			DocumentID: id.NewVersion(),
			LoanID:     l.ID,
			FileName:   in.FileName,
			FilePath:   in.FilePath,
			SizeBytes:  in.SizeBytes,
			UploadedAt: now,
		}
		if err := r.Documents.Create(ctx, d); err != nil {
			return err
		}
		dto = toDocumentDTO(loanID, d)
		dto.LoanVersion = updated.Version
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.emit.Emit(ctx, event.Transition{
		Loan: *updated, From: updated.Status, Actor: actor,
		Action: audit.ActionDocument, Detail: in.FileName, At: now,
	})
	return &dto, nil
}

func (u *Usecase) ListDocuments(ctx context.Context, actor domain.Actor, loanID string) ([]DocumentDTO, error) {
	var out []DocumentDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Application) error {
		if !actor.Owns(l) && !actor.IsReviewer {
			return fmt.Errorf("%w: loan %s belongs to another applicant", domain.ErrUnauthorized, loanID)
		}
		docs, err := r.Documents.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		out = make([]DocumentDTO, 0, len(docs))
		for i := range docs {
			out = append(out, toDocumentDTO(loanID, &docs[i]))
		}
		return nil
	})
	return out, err
}
