package http

import (
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
)

func TestMount_RegistersRoutes(t *testing.T) {
	s := newTestServer(t)
	got := map[string]bool{}
	for _, r := range s.e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"POST /api/loans",
		"GET /api/loans",
		"GET /api/loans/pending",
		"GET /api/loans/:loan_id",
		"PUT /api/loans/:loan_id",
		"POST /api/loans/:loan_id/submit",
		"POST /api/loans/:loan_id/documents",
		"GET /api/loans/:loan_id/documents",
		"POST /api/loans/:loan_id/review",
		"POST /api/loans/:loan_id/decision",
		"GET /api/loans/:loan_id/decision",
		"GET /api/notifications/stream",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestMount_MutatingChainOnWritesOnly(t *testing.T) {
	marker := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Mutating", "1")
			return next(c)
		}
	}
	s := newTestServer(t, marker)

	rec := s.do(t, stdhttp.MethodPost, "/api/loans", "u1", "Applicant", application())
	assert.Equal(t, stdhttp.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Mutating"))

	rec = s.do(t, stdhttp.MethodGet, "/api/loans", "u1", "Applicant", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Mutating"))
}

func TestHealth_Public(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, stdhttp.MethodGet, "/health", "", "", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
}

func TestMount_BodyLimitAheadOfHandlers(t *testing.T) {
	s := newTestServer(t, echomw.BodyLimit("1K"))
	body := application()
	body["purpose"] = strings.Repeat("x", 2048)

	rec := s.do(t, stdhttp.MethodPost, "/api/loans", "u1", "Applicant", body)
	assert.Equal(t, stdhttp.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, s.events.All())
}
