package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"creditflow-backend/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, s *Subscription) event.Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return event.Event{}
}

func assertNoEvent(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestHub_DeliversToGroupMembersOnly(t *testing.T) {
	h := NewHub(4, nil)
	alice := h.Subscribe(event.ApplicantGroup("alice"))
	bob := h.Subscribe(event.ApplicantGroup("bob"))
	reviewer := h.Subscribe(event.ReviewersGroup)

	n := h.Deliver(event.ApplicantGroup("alice"), event.Event{Kind: event.KindReviewStarted, LoanID: "L1"})
	assert.Equal(t, 1, n)

	assert.Equal(t, "L1", recv(t, alice).LoanID)
	assertNoEvent(t, bob)
	assertNoEvent(t, reviewer)
}

func TestHub_SubscriptionInSeveralGroups(t *testing.T) {
	h := NewHub(4, nil)
	s := h.Subscribe(event.ApplicantGroup("carol"), event.ReviewersGroup)

	require.NoError(t, h.Publish(context.Background(), event.ReviewersGroup, event.Event{Kind: event.KindNewSubmission}))
	require.NoError(t, h.Publish(context.Background(), event.ApplicantGroup("carol"), event.Event{Kind: event.KindDecisionMade}))

	assert.Equal(t, event.KindNewSubmission, recv(t, s).Kind)
	assert.Equal(t, event.KindDecisionMade, recv(t, s).Kind)
}

func TestHub_NoSubscribers(t *testing.T) {
	h := NewHub(0, nil)
	assert.Equal(t, 0, h.Deliver("nobody", event.Event{}))
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	h := NewHub(1, nil)
	slow := h.Subscribe(event.ReviewersGroup)

	done := make(chan struct{})
	go func() {
		h.Deliver(event.ReviewersGroup, event.Event{LoanID: "1"})
		h.Deliver(event.ReviewersGroup, event.Event{LoanID: "2"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver blocked on a full subscriber")
	}

	assert.Equal(t, uint64(1), slow.Dropped())
	assert.Equal(t, "1", recv(t, slow).LoanID)
	assertNoEvent(t, slow)
}

func TestSubscription_Close(t *testing.T) {
	h := NewHub(1, nil)
	s := h.Subscribe(event.ReviewersGroup, event.ApplicantGroup("x"))
	require.Equal(t, 1, h.Members(event.ReviewersGroup))

	s.Close()
	s.Close()

	assert.Equal(t, 0, h.Members(event.ReviewersGroup))
	assert.Equal(t, 0, h.Members(event.ApplicantGroup("x")))
	_, ok := <-s.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Deliver(event.ReviewersGroup, event.Event{}))
}

func TestHub_ConcurrentPublishAndClose(t *testing.T) {
	h := NewHub(2, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		s := h.Subscribe(event.ReviewersGroup)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Deliver(event.ReviewersGroup, event.Event{})
			}
		}()
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Members(event.ReviewersGroup))
}

func TestBackoff_Delay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 0},
		{0, 0},
		{1, 2 * time.Second},
		{2, 10 * time.Second},
		{3, 30 * time.Second},
		{9, 30 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DefaultBackoff.Delay(tc.attempt), "attempt %d", tc.attempt)
	}
	assert.Zero(t, Backoff(nil).Delay(3))
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, sleepCtx(ctx, 0))
	assert.NoError(t, sleepCtx(ctx, time.Millisecond))
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepCtx(ctx, 0), context.Canceled)
}
