package http

import (
	"net/http"

	"creditflow-backend/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type applicationReq struct {
	LoanAmount      decimal.Decimal `json:"loan_amount"      validate:"gt=0,lt=500000,dec2"`
	TermMonths      int             `json:"term_months"      validate:"gte=6,lte=120"`
	Purpose         string          `json:"purpose"          validate:"required,max=200"`
	EmployerName    string          `json:"employer_name"    validate:"required,max=200"`
	JobTitle        string          `json:"job_title"        validate:"required,max=100"`
	YearsEmployed   int             `json:"years_employed"   validate:"gte=0,lte=80"`
	MonthlyIncome   decimal.Decimal `json:"monthly_income"   validate:"gt=0,dec2"`
	MonthlyExpenses decimal.Decimal `json:"monthly_expenses" validate:"gte=0,dec2"`
}

func (r applicationReq) input() loan.ApplicationInput {
	return loan.ApplicationInput{
		LoanAmount:      r.LoanAmount,
		TermMonths:      r.TermMonths,
		Purpose:         r.Purpose,
		EmployerName:    r.EmployerName,
		JobTitle:        r.JobTitle,
		YearsEmployed:   r.YearsEmployed,
		MonthlyIncome:   r.MonthlyIncome,
		MonthlyExpenses: r.MonthlyExpenses,
	}
}

type updateLoanReq struct {
	Version string `json:"version" validate:"required,hex32"`
	applicationReq
}

// versionReq is the body of transitions where the version is optional; an
// empty version acts on whatever is current.
type versionReq struct {
	Version string `json:"version" validate:"omitempty,hex32"`
}

type attachDocumentReq struct {
	Version   string `json:"version"    validate:"omitempty,hex32"`
	FileName  string `json:"file_name"  validate:"required,max=255"`
	FilePath  string `json:"file_path"  validate:"required,max=500"`
	SizeBytes int64  `json:"size_bytes" validate:"gt=0,lte=10485760"`
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req applicationReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Create(c.Request().Context(), actorOf(c), req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) ListLoans(c echo.Context) error {
	list, err := h.uc.ListMine(c.Request().Context(), actorOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *LoanHandler) ListPending(c echo.Context) error {
	list, err := h.uc.ListPending(c.Request().Context(), actorOf(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), actorOf(c), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) UpdateLoan(c echo.Context) error {
	var req updateLoanReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.UpdateDraft(c.Request().Context(), actorOf(c), c.Param("loan_id"), req.Version, req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) SubmitLoan(c echo.Context) error {
	var req versionReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Submit(c.Request().Context(), actorOf(c), c.Param("loan_id"), req.Version)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) AttachDocument(c echo.Context) error {
	var req attachDocumentReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.AttachDocument(c.Request().Context(), actorOf(c), c.Param("loan_id"), req.Version, loan.AttachDocumentInput{
		FileName:  req.FileName,
		FilePath:  req.FilePath,
		SizeBytes: req.SizeBytes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) ListDocuments(c echo.Context) error {
	list, err := h.uc.ListDocuments(c.Request().Context(), actorOf(c), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}
