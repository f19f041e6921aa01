package http

import (
	"github.com/labstack/echo/v4"
)

type Routes struct {
	Health    *Handler
	Loans     *LoanHandler
	Decisions *DecisionHandler
	Stream    *StreamHandler
}

// Mount registers every route. auth runs on all /api routes; mutating is the
// chain applied to writes only (idempotency).
func (r Routes) Mount(e *echo.Echo, auth echo.MiddlewareFunc, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", r.Health.Health)

	api := e.Group("/api", auth)

	api.GET("/loans", r.Loans.ListLoans)
	api.GET("/loans/pending", r.Loans.ListPending)
	api.GET("/loans/:loan_id", r.Loans.GetLoan)
	api.GET("/loans/:loan_id/documents", r.Loans.ListDocuments)
	api.GET("/loans/:loan_id/decision", r.Decisions.GetDecision)

	api.POST("/loans", r.Loans.CreateLoan, mutating...)
	api.PUT("/loans/:loan_id", r.Loans.UpdateLoan, mutating...)
	api.POST("/loans/:loan_id/submit", r.Loans.SubmitLoan, mutating...)
	api.POST("/loans/:loan_id/documents", r.Loans.AttachDocument, mutating...)
	api.POST("/loans/:loan_id/review", r.Decisions.OpenReview, mutating...)
	api.POST("/loans/:loan_id/decision", r.Decisions.Decide, mutating...)

	if r.Stream != nil {
		api.GET("/notifications/stream", r.Stream.Stream)
	}
}
