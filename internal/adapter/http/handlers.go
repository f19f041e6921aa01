package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check is a readiness check for one dependency.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Handler struct{ checks []Check }

func NewHandler(checks ...Check) *Handler { return &Handler{checks: checks} }

func (h *Handler) Health(c echo.Context) error {
	status, code := "ok", http.StatusOK
	components := make(map[string]string, len(h.checks))
	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, chk := range h.checks {
			if err := chk.Fn(ctx); err != nil {
				components[chk.Name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			components[chk.Name] = "ok"
		}
	}
	body := map[string]any{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(components) > 0 {
		body["components"] = components
	}
	return c.JSON(code, body)
}
