package http

import (
	"bytes"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"creditflow-backend/internal/adapter/middleware"
	"creditflow-backend/internal/adapter/repository/mysql"
	"creditflow-backend/internal/notify"
	"creditflow-backend/internal/testutil/eventmock"
	ucdecision "creditflow-backend/internal/usecase/decision"
	ucloan "creditflow-backend/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testSecret = []byte("test-secret")

type testServer struct {
	e       *echo.Echo
	hub     *notify.Hub
	streams *StreamHandler
	events  *eventmock.Recorder
}

func newTestServer(t *testing.T, mutating ...echo.MiddlewareFunc) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, mysql.Migrate(db))

	loanRepo := mysql.NewLoanRepository(db)
	tx := mysql.NewGormUoW(db)
	rec := &eventmock.Recorder{}
	hub := notify.NewHub(8, nil)
	streams := NewStreamHandler(hub, 50*time.Millisecond)

	e := echo.New()
	e.Validator = NewValidator()
	Routes{
		Health:    NewHandler(),
		Loans:     NewLoanHandler(ucloan.NewUsecase(loanRepo, tx, rec)),
		Decisions: NewDecisionHandler(ucdecision.NewUsecase(loanRepo, mysql.NewDecisionRepository(db), tx, rec)),
		Stream:    streams,
	}.Mount(e, middleware.Identity(testSecret), mutating...)
	return &testServer{e: e, hub: hub, streams: streams, events: rec}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := middleware.SignToken(testSecret, userID, role, time.Minute)
	require.NoError(t, err)
	return tok
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// do sends a request as userID; an empty userID sends no token.
func (s *testServer) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *stdhttp.Request
	if body != nil {
		req = httptest.NewRequest(method, path, mustJSON(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, userID, role))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func application() map[string]any {
	return map[string]any{
		"loan_amount":      10000,
		"term_months":      36,
		"purpose":          "Car purchase",
		"employer_name":    "Acme",
		"job_title":        "Engineer",
		"years_employed":   2,
		"monthly_income":   3000,
		"monthly_expenses": 500,
	}
}

func (s *testServer) create(t *testing.T, userID string) ucloan.LoanDTO {
	t.Helper()
	rec := s.do(t, stdhttp.MethodPost, "/api/loans", userID, "Applicant", application())
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	return decode[ucloan.LoanDTO](t, rec)
}

func (s *testServer) submitted(t *testing.T, userID string) ucloan.LoanDTO {
	t.Helper()
	l := s.create(t, userID)
	rec := s.do(t, stdhttp.MethodPost, "/api/loans/"+l.LoanID+"/submit", userID, "Applicant", map[string]string{"version": l.Version})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	return decode[ucloan.LoanDTO](t, rec)
}

func hasField(details []FieldError, field string) bool {
	for _, d := range details {
		if d.Field == field {
			return true
		}
	}
	return false
}
