package http

import (
	"errors"
	"net/http"

	"creditflow-backend/internal/adapter/middleware"
	"creditflow-backend/internal/domain/loan"
	"creditflow-backend/internal/infrastructure/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ---- helpers ----

func actorOf(c echo.Context) loan.Actor {
	a, _ := middleware.ActorFrom(c.Request().Context())
	return a
}

// bindAndValidate writes the 400/422 response itself and reports whether the
// handler should continue.
func bindAndValidate(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: "bad_request"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Code:    "validation_failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}

// Map domain errors → HTTP codes
func writeError(c echo.Context, err error) error {
	var ve *loan.ValidationError
	switch {
	case errors.As(err, &ve):
		details := make([]FieldError, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			details = append(details, FieldError{Field: f.Field, Message: f.Message})
		}
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Code: "validation_failed", Details: details})
	case errors.Is(err, loan.ErrValidation):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "validation_failed"})
	case errors.Is(err, loan.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: "not_found"})
	case errors.Is(err, loan.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, loan.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "the application changed since it was read; reload and retry", Code: "concurrency_conflict"})
	case errors.Is(err, loan.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Code: "forbidden"})
	default:
		logger.FromContext(c.Request().Context(), nil).Error("unhandled error",
			zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}
}
