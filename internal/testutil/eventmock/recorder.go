package eventmock

import (
	"context"
	"sync"

	"creditflow-backend/internal/domain/event"
)

var _ event.Emitter = (*Recorder)(nil)

// Recorder keeps every emitted transition in order.
type Recorder struct {
	mu          sync.Mutex
	transitions []event.Transition
}

func (r *Recorder) Emit(_ context.Context, t event.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *Recorder) All() []event.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transitions)
}
