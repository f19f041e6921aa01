package http

import (
	"bufio"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"creditflow-backend/internal/domain/event"
	"creditflow-backend/internal/domain/loan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve registers Close before any stream so the streams are cancelled first.
func serve(t *testing.T, s *testServer) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)
	return srv
}

type sseClient struct {
	lines  *bufio.Scanner
	cancel context.CancelFunc
}

func openStream(t *testing.T, srv *httptest.Server, userID, role string) *sseClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet,
		srv.URL+"/api/notifications/stream?access_token="+token(t, userID, role), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { cancel(); _ = resp.Body.Close() })
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &sseClient{lines: bufio.NewScanner(resp.Body), cancel: cancel}
	// the retry hint is written after the subscription exists
	require.Equal(t, "retry: 2000", c.next(t))
	return c
}

func (c *sseClient) next(t *testing.T) string {
	t.Helper()
	for c.lines.Scan() {
		if line := c.lines.Text(); line != "" {
			return line
		}
	}
	t.Fatalf("stream ended: %v", c.lines.Err())
	return ""
}

// nextEvent skips heartbeats.
func (c *sseClient) nextEvent(t *testing.T) (string, event.Event) {
	t.Helper()
	line := c.next(t)
	for strings.HasPrefix(line, ":") {
		line = c.next(t)
	}
	require.True(t, strings.HasPrefix(line, "event: "), line)
	data := c.next(t)
	require.True(t, strings.HasPrefix(data, "data: "), data)
	var ev event.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &ev))
	return strings.TrimPrefix(line, "event: "), ev
}

func TestStream_DeliversApplicantEvents(t *testing.T) {
	s := newTestServer(t)
	srv := serve(t, s)

	c := openStream(t, srv, "u1", "Applicant")
	require.NoError(t, s.hub.Publish(context.Background(), event.ApplicantGroup("u2"), event.Event{Kind: event.KindReviewStarted, LoanID: "other"}))
	require.NoError(t, s.hub.Publish(context.Background(), event.ApplicantGroup("u1"), event.Event{
		Kind:   event.KindDecisionMade,
		LoanID: "L1",
		Status: loan.StatusApproved,
		Title:  "Application Approved",
	}))

	kind, ev := c.nextEvent(t)
	assert.Equal(t, "decision-made", kind)
	assert.Equal(t, "L1", ev.LoanID)
	assert.Equal(t, loan.StatusApproved, ev.Status)
	assert.Equal(t, 0, s.hub.Members(event.ReviewersGroup))
}

func TestStream_ReviewersJoinSharedGroup(t *testing.T) {
	s := newTestServer(t)
	srv := serve(t, s)

	c := openStream(t, srv, "b1", "Banker")
	assert.Equal(t, 1, s.hub.Members(event.ReviewersGroup))
	assert.Equal(t, 1, s.hub.Members(event.ApplicantGroup("b1")))

	require.NoError(t, s.hub.Publish(context.Background(), event.ReviewersGroup, event.Event{Kind: event.KindNewSubmission, LoanID: "L9"}))
	kind, ev := c.nextEvent(t)
	assert.Equal(t, "new-submission", kind)
	assert.Equal(t, "L9", ev.LoanID)
}

func TestStream_HeartbeatAndDisconnect(t *testing.T) {
	s := newTestServer(t)
	srv := serve(t, s)

	c := openStream(t, srv, "u1", "Applicant")
	assert.Equal(t, ": ping", c.next(t))

	c.cancel()
	assert.Eventually(t, func() bool {
		return s.hub.Members(event.ApplicantGroup("u1")) == 0
	}, 2*time.Second, 10*time.Millisecond, "subscription is released when the client leaves")
}

func TestStream_EndsOnServerShutdown(t *testing.T) {
	s := newTestServer(t)
	srv := serve(t, s)
	srv.Config.RegisterOnShutdown(s.streams.Close)

	c := openStream(t, srv, "u1", "Applicant")
	require.Equal(t, 1, s.hub.Members(event.ApplicantGroup("u1")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Config.Shutdown(ctx), "shutdown must not wait for the client to leave")
	assert.Less(t, time.Since(start), time.Second)

	for c.lines.Scan() {
	}
	assert.Eventually(t, func() bool {
		return s.hub.Members(event.ApplicantGroup("u1")) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Close is idempotent.
	s.streams.Close()
}

func TestStream_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, stdhttp.MethodGet, "/api/notifications/stream", "", "", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
}
