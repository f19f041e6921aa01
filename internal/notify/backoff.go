package notify

import (
	"context"
	"time"
)

// Backoff is a reconnect schedule indexed by consecutive failures. Attempts
// past the end reuse the last delay.
type Backoff []time.Duration

// DefaultBackoff reconnects immediately, then after 2s, 10s and every 30s.
var DefaultBackoff = Backoff{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

func (b Backoff) Delay(attempt int) time.Duration {
	if len(b) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(b) {
		return b[len(b)-1]
	}
	return b[attempt]
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
