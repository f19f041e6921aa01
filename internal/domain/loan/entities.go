package loan

import (
	"time"

	"creditflow-backend/internal/domain/pricing"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft       Status = "Draft"
	StatusSubmitted   Status = "Submitted"
	StatusUnderReview Status = "UnderReview"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
)

// Application is a loan request and the terms priced for it.
// Table: loan_applications
type Application struct {
	// Internal numeric PK
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	// Public identifier (uuid)
	LoanID string `gorm:"column:loan_id;size:36;not null;uniqueIndex:ux_loan_applications_loan_id" json:"loan_id"`

	ApplicantID    string `gorm:"column:applicant_id;size:64;not null;index:idx_loan_applications_applicant" json:"applicant_id"`
	ApplicantEmail string `gorm:"column:applicant_email;size:254" json:"-"`
	ApplicantName  string `gorm:"column:applicant_name;size:200" json:"-"`

	// Inputs
	LoanAmount      decimal.Decimal `gorm:"column:loan_amount;type:decimal(18,2);not null" json:"loan_amount"`
	TermMonths      int             `gorm:"column:term_months;not null" json:"term_months"`
	Purpose         string          `gorm:"column:purpose;size:200" json:"purpose"`
	EmployerName    string          `gorm:"column:employer_name;size:200" json:"employer_name"`
	JobTitle        string          `gorm:"column:job_title;size:100" json:"job_title"`
	YearsEmployed   int             `gorm:"column:years_employed" json:"years_employed"`
	MonthlyIncome   decimal.Decimal `gorm:"column:monthly_income;type:decimal(18,2)" json:"monthly_income"`
	MonthlyExpenses decimal.Decimal `gorm:"column:monthly_expenses;type:decimal(18,2)" json:"monthly_expenses"`

	// Computed by pricing
	InterestRate      decimal.Decimal  `gorm:"column:interest_rate;type:decimal(6,4)" json:"interest_rate"`
	MonthlyPayment    decimal.Decimal  `gorm:"column:monthly_payment;type:decimal(18,2)" json:"monthly_payment"`
	TotalInterest     decimal.Decimal  `gorm:"column:total_interest;type:decimal(18,2)" json:"total_interest"`
	DebtToIncomeRatio decimal.Decimal  `gorm:"column:debt_to_income_ratio;type:decimal(9,2)" json:"debt_to_income_ratio"`
	RiskTier          pricing.RiskTier `gorm:"column:risk_tier;size:16" json:"risk_tier"`

	// Lifecycle
	Status           Status     `gorm:"column:status;size:16;not null;index:idx_loan_applications_status" json:"status"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
	SubmittedAt      *time.Time `gorm:"column:submitted_at;index:idx_loan_applications_status" json:"submitted_at,omitempty"`
	ReviewerID       *string    `gorm:"column:reviewer_id;size:64" json:"reviewer_id,omitempty"`
	ReviewerComments *string    `gorm:"column:reviewer_comments;size:500" json:"reviewer_comments,omitempty"`
	DecidedAt        *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updated_at"`

	// Version is replaced on every persisted mutation; see Repository.CompareAndSwap.
	Version string `gorm:"column:version;type:char(32);not null" json:"version"`
}

func (Application) TableName() string { return "loan_applications" }

// Inputs is what an applicant controls. Everything else on Application is
// derived from it or from the lifecycle.
type Inputs struct {
	LoanAmount      decimal.Decimal
	TermMonths      int
	Purpose         string
	EmployerName    string
	JobTitle        string
	YearsEmployed   int
	MonthlyIncome   decimal.Decimal
	MonthlyExpenses decimal.Decimal
}

func (in Inputs) pricing() pricing.Inputs {
	return pricing.Inputs{
		LoanAmount:    in.LoanAmount,
		TermMonths:    in.TermMonths,
		YearsEmployed: in.YearsEmployed,
		MonthlyIncome: in.MonthlyIncome,
	}
}

// Actor is the authenticated caller as seen by the core.
type Actor struct {
	UserID     string
	IsReviewer bool
	Email      string
	Name       string
}

func (a Actor) Owns(l *Application) bool {
	return l != nil && a.UserID != "" && a.UserID == l.ApplicantID
}
