package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"creditflow-backend/internal/domain/audit"
	"creditflow-backend/internal/domain/event"
	"creditflow-backend/internal/domain/loan"

	"go.uber.org/zap"
)

// Mail is a single outbound message.
type Mail struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

type Auditor interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Outbound is one event addressed to one group.
type Outbound struct {
	Group string
	Event event.Event
}

// Notifier turns a committed transition into audit entries, subscriber
// events and applicant email. Every step is attempted; failures are joined.
type Notifier struct {
	transport Transport
	auditor   Auditor
	mailer    Mailer
	log       *zap.Logger
}

func NewNotifier(transport Transport, auditor Auditor, mailer Mailer, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{transport: transport, auditor: auditor, mailer: mailer, log: log}
}

func (n *Notifier) Handle(ctx context.Context, t event.Transition) error {
	var errs []error

	if n.auditor != nil && t.Action != "" {
		entry := &audit.Entry{
			UserID:    t.Actor.UserID,
			Action:    t.Action,
			Details:   auditDetails(t),
			Timestamp: t.At,
		}
		if err := n.auditor.Create(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("audit %s: %w", t.Action, err))
		}
	}

	if n.transport != nil {
		for _, out := range Route(t) {
			if err := n.transport.Publish(ctx, out.Group, out.Event); err != nil {
				errs = append(errs, fmt.Errorf("publish %s to %s: %w", out.Event.Kind, out.Group, err))
			}
		}
	}

	if n.mailer != nil {
		if m, ok := mailFor(t); ok {
			if err := n.mailer.Send(ctx, m); err != nil {
				errs = append(errs, fmt.Errorf("mail %s: %w", t.Loan.LoanID, err))
			}
		}
	}

	return errors.Join(errs...)
}

// Route lists the events a transition produces. Draft edits and creation
// produce none.
func Route(t event.Transition) []Outbound {
	l := t.Loan
	to := t.To()
	if t.From == to {
		return nil
	}
	applicant := event.ApplicantGroup(l.ApplicantID)
	base := event.Event{LoanID: l.LoanID, Status: to, OccurredAt: t.At}

	switch {
	case t.From == loan.StatusDraft && to == loan.StatusSubmitted:
		confirmed := base
		confirmed.Kind = event.KindSubmissionConfirmed
		confirmed.Title = "Application Submitted"
		confirmed.Message = fmt.Sprintf("Your application for %s over %d months was submitted.", l.LoanAmount.StringFixed(2), l.TermMonths)

		incoming := base
		incoming.Kind = event.KindNewSubmission
		incoming.Title = "New Loan Application"
		incoming.Message = fmt.Sprintf("Application %s for %s is waiting for review.", l.LoanID, l.LoanAmount.StringFixed(2))
		return []Outbound{{Group: applicant, Event: confirmed}, {Group: event.ReviewersGroup, Event: incoming}}

	case to == loan.StatusUnderReview:
		ev := base
		ev.Kind = event.KindReviewStarted
		ev.Title = "Application Under Review"
		ev.Message = "A reviewer has started looking at your application."
		return []Outbound{{Group: applicant, Event: ev}}

	case to.IsTerminal():
		ev := base
		ev.Kind = event.KindDecisionMade
		ev.Title = "Application " + string(to)
		ev.Message = fmt.Sprintf("Your application %s was %s.", l.LoanID, strings.ToLower(string(to)))
		if l.ReviewerComments != nil {
			c := *l.ReviewerComments
			ev.Comments = &c
		}
		return []Outbound{{Group: applicant, Event: ev}}
	}
	return nil
}

func auditDetails(t event.Transition) string {
	d := "loan " + t.Loan.LoanID
	if t.From != "" && t.From != t.To() {
		d += fmt.Sprintf(": %s -> %s", t.From, t.To())
	}
	if t.Detail != "" {
		d += " (" + t.Detail + ")"
	}
	return d
}

// mailFor renders the applicant's email. User-entered text is HTML-escaped.
func mailFor(t event.Transition) (Mail, bool) {
	l := t.Loan
	if l.ApplicantEmail == "" || t.From == t.To() {
		return Mail{}, false
	}
	name := html.EscapeString(l.ApplicantName)
	if name == "" {
		name = "Applicant"
	}
	m := Mail{To: l.ApplicantEmail, ToName: l.ApplicantName}

	switch t.To() {
	case loan.StatusSubmitted:
		m.Subject = "We received your loan application"
		m.Body = fmt.Sprintf("<p>Dear %s,</p><p>Your application <b>%s</b> for %s over %d months has been submitted. "+
			"Estimated monthly payment: %s at %s%% interest.</p>",
			name, l.LoanID, l.LoanAmount.StringFixed(2), l.TermMonths, l.MonthlyPayment.StringFixed(2), l.InterestRate.StringFixed(2))
	case loan.StatusApproved:
		m.Subject = "Your loan application was approved"
		m.Body = fmt.Sprintf("<p>Dear %s,</p><p>Your application <b>%s</b> for %s has been approved.</p>%s",
			name, l.LoanID, l.LoanAmount.StringFixed(2), commentsHTML(l))
	case loan.StatusRejected:
		m.Subject = "Update on your loan application"
		m.Body = fmt.Sprintf("<p>Dear %s,</p><p>We are unable to approve application <b>%s</b> at this time.</p>%s",
			name, l.LoanID, commentsHTML(l))
	default:
		return Mail{}, false
	}
	return m, true
}

func commentsHTML(l loan.Application) string {
	if l.ReviewerComments == nil {
		return ""
	}
	return "<p>Reviewer comments: " + html.EscapeString(*l.ReviewerComments) + "</p>"
}
