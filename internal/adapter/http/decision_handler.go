package http

import (
	"net/http"

	"creditflow-backend/internal/domain/loan"
	"creditflow-backend/internal/usecase/decision"

	"github.com/labstack/echo/v4"
)

type DecisionHandler struct{ uc *decision.Usecase }

func NewDecisionHandler(uc *decision.Usecase) *DecisionHandler { return &DecisionHandler{uc: uc} }

type decideReq struct {
	Version  string `json:"version"  validate:"required,hex32"`
	Decision string `json:"decision" validate:"required,oneof=Approve Reject"`
	Comments string `json:"comments" validate:"required,min=10,max=500"`
}

func (h *DecisionHandler) Decide(c echo.Context) error {
	// Validate path param
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param", Code: "bad_request"})
	}
	var req decideReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Decide(c.Request().Context(), actorOf(c), decision.DecideInput{
		LoanID:          loanID,
		ExpectedVersion: req.Version,
		Kind:            loan.DecisionKind(req.Decision),
		Comments:        req.Comments,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *DecisionHandler) OpenReview(c echo.Context) error {
	var req versionReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.OpenForReview(c.Request().Context(), actorOf(c), c.Param("loan_id"), req.Version)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *DecisionHandler) GetDecision(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), actorOf(c), c.Param("loan_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
