package loan

import (
	"time"

	"creditflow-backend/internal/domain/document"
	domain "creditflow-backend/internal/domain/loan"
	"creditflow-backend/internal/domain/pricing"

	"github.com/shopspring/decimal"
)

// ApplicationInput is shared by create and draft update.
type ApplicationInput struct {
	LoanAmount      decimal.Decimal `json:"loan_amount"`
	TermMonths      int             `json:"term_months"`
	Purpose         string          `json:"purpose"`
	EmployerName    string          `json:"employer_name"`
	JobTitle        string          `json:"job_title"`
	YearsEmployed   int             `json:"years_employed"`
	MonthlyIncome   decimal.Decimal `json:"monthly_income"`
	MonthlyExpenses decimal.Decimal `json:"monthly_expenses"`
}

func (in ApplicationInput) domain() domain.Inputs {
	return domain.Inputs{
		LoanAmount:      in.LoanAmount,
		TermMonths:      in.TermMonths,
		Purpose:         in.Purpose,
		EmployerName:    in.EmployerName,
		JobTitle:        in.JobTitle,
		YearsEmployed:   in.YearsEmployed,
		MonthlyIncome:   in.MonthlyIncome,
		MonthlyExpenses: in.MonthlyExpenses,
	}
}

type AttachDocumentInput struct {
	FileName  string `json:"file_name"`
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
}

type LoanDTO struct {
	LoanID            string           `json:"loan_id"`
	ApplicantID       string           `json:"applicant_id"`
	LoanAmount        decimal.Decimal  `json:"loan_amount"`
	TermMonths        int              `json:"term_months"`
	Purpose           string           `json:"purpose"`
	EmployerName      string           `json:"employer_name"`
	JobTitle          string           `json:"job_title"`
	YearsEmployed     int              `json:"years_employed"`
	MonthlyIncome     decimal.Decimal  `json:"monthly_income"`
	MonthlyExpenses   decimal.Decimal  `json:"monthly_expenses"`
	InterestRate      decimal.Decimal  `json:"interest_rate"`
	MonthlyPayment    decimal.Decimal  `json:"monthly_payment"`
	TotalInterest     decimal.Decimal  `json:"total_interest"`
	TotalCost         decimal.Decimal  `json:"total_cost"`
	DebtToIncomeRatio decimal.Decimal  `json:"debt_to_income_ratio"`
	RiskTier          pricing.RiskTier `json:"risk_tier"`
	Affordable        bool             `json:"affordable"`
	Status            string           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	SubmittedAt       *time.Time       `json:"submitted_at,omitempty"`
	ReviewerComments  *string          `json:"reviewer_comments,omitempty"`
	DecidedAt         *time.Time       `json:"decided_at,omitempty"`
	Version           string           `json:"version"`
}

func ToDTO(l *domain.Application) *LoanDTO {
	return &LoanDTO{
		LoanID:            l.LoanID,
		ApplicantID:       l.ApplicantID,
		LoanAmount:        l.LoanAmount,
		TermMonths:        l.TermMonths,
		Purpose:           l.Purpose,
		EmployerName:      l.EmployerName,
		JobTitle:          l.JobTitle,
		YearsEmployed:     l.YearsEmployed,
		MonthlyIncome:     l.MonthlyIncome,
		MonthlyExpenses:   l.MonthlyExpenses,
		InterestRate:      l.InterestRate,
		MonthlyPayment:    l.MonthlyPayment,
		TotalInterest:     l.TotalInterest,
		TotalCost:         pricing.TotalCost(l.MonthlyPayment, l.TermMonths),
		DebtToIncomeRatio: l.DebtToIncomeRatio,
		RiskTier:          l.RiskTier,
		Affordable:        l.Affordable(),
		Status:            string(l.Status),
		CreatedAt:         l.CreatedAt,
		SubmittedAt:       l.SubmittedAt,
		ReviewerComments:  l.ReviewerComments,
		DecidedAt:         l.DecidedAt,
		Version:           l.Version,
	}
}

type DocumentDTO struct {
	DocumentID  string    `json:"document_id"`
	LoanID      string    `json:"loan_id"`
	FileName    string    `json:"file_name"`
	FilePath    string    `json:"file_path"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
	LoanVersion string    `json:"loan_version,omitempty"`
}

func toDocumentDTO(loanID string, d *document.Document) DocumentDTO {
	return DocumentDTO{
		DocumentID: d.DocumentID,
		LoanID:     loanID,
		FileName:   d.FileName,
		FilePath:   d.FilePath,
		SizeBytes:  d.SizeBytes,
		UploadedAt: d.UploadedAt,
	}
}
