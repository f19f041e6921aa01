// Package notify fans lifecycle events out to connected subscribers. Delivery
// is fire-and-forget: a subscriber that is not connected, or is too slow to
// drain its buffer, misses the event and the publisher is never told.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"creditflow-backend/internal/domain/event"

	"go.uber.org/zap"
)

const DefaultSubscriberBuffer = 16

// Transport publishes an event to every member of a group, wherever they are
// connected.
type Transport interface {
	Publish(ctx context.Context, group string, ev event.Event) error
}

var _ Transport = (*Hub)(nil)

// Hub holds the subscribers connected to this process.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{groups: make(map[string]map[*Subscription]struct{}), buffer: buffer, log: log}
}

// Subscription is one connection's membership in one or more groups.
type Subscription struct {
	hub     *Hub
	groups  []string
	ch      chan event.Event
	once    sync.Once
	dropped atomic.Uint64
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan event.Event { return s.ch }

// Dropped counts events this subscriber missed because its buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		for _, g := range s.groups {
			members := s.hub.groups[g]
			delete(members, s)
			if len(members) == 0 {
				delete(s.hub.groups, g)
			}
		}
		s.hub.mu.Unlock()
		// no publisher can hold s once it is out of every group
		close(s.ch)
	})
}

func (h *Hub) Subscribe(groups ...string) *Subscription {
	s := &Subscription{hub: h, groups: groups, ch: make(chan event.Event, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range groups {
		members, ok := h.groups[g]
		if !ok {
			members = make(map[*Subscription]struct{})
			h.groups[g] = members
		}
		members[s] = struct{}{}
	}
	return s
}

// Publish delivers locally. It never fails.
func (h *Hub) Publish(_ context.Context, group string, ev event.Event) error {
	h.Deliver(group, ev)
	return nil
}

// Deliver sends ev to every current member of group without blocking and
// returns how many members received it.
func (h *Hub) Deliver(group string, ev event.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.groups[group] {
		select {
		case s.ch <- ev:
			delivered++
		default:
			s.dropped.Add(1)
			h.log.Debug("notify: subscriber buffer full, event dropped",
				zap.String("group", group), zap.String("kind", string(ev.Kind)), zap.String("loan_id", ev.LoanID))
		}
	}
	return delivered
}

func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
